// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared bootstrap for CLI command handlers.
package cli

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/lingualens/lingualens-tui/internal/config"
	"github.com/lingualens/lingualens-tui/internal/conversation"
	"github.com/lingualens/lingualens-tui/internal/gemini"
	"github.com/lingualens/lingualens-tui/internal/history"
	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/locale"
	"github.com/lingualens/lingualens-tui/internal/models"
	"github.com/lingualens/lingualens-tui/internal/scene"
	"github.com/lingualens/lingualens-tui/internal/signal"
)

// App bundles the stores and client every command handler needs.
type App struct {
	Cfg     *config.Config
	KV      *kvstore.Store
	Scenes  *scene.Store
	History *history.Store
	Client  *gemini.Client
	Locale  language.Tag
}

// Bootstrap loads configuration and opens the backing stores.
func Bootstrap() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dir, err := cfg.StoreDir()
	if err != nil {
		return nil, err
	}
	kv, err := kvstore.Open(dir)
	if err != nil {
		return nil, err
	}

	client := gemini.NewClient(cfg.API.Key)
	if cfg.API.BaseURL != "" {
		client = client.WithBaseURL(cfg.API.BaseURL)
	}
	if cfg.API.MaxRetries > 0 {
		client = client.WithMaxRetries(cfg.API.MaxRetries)
	}

	return &App{
		Cfg:     cfg,
		KV:      kv,
		Scenes:  scene.NewStore(kv),
		History: history.NewStoreWithRetention(kv, time.Duration(cfg.History.RetentionDays)*24*time.Hour),
		Client:  client,
		Locale:  locale.Detect(cfg.Locale),
	}, nil
}

// NewController wires a conversation controller to the app's stores and
// backend client.
func (a *App) NewController(signals *signal.Channel) *conversation.Controller {
	return conversation.New(a.Scenes, a.History, signals, a.KV, a.Client)
}

// EnglishUI reports whether scene names should render in English.
func (a *App) EnglishUI() bool {
	return a.Cfg.UI.EnglishNames || locale.EnglishUI(a.Locale)
}

// ResolveScene picks the scene for a request: the flag value (id or name),
// then the saved selection, then the fallback scene.
func (a *App) ResolveScene(flag string) (scene.Scene, error) {
	if flag != "" {
		if s, ok := a.Scenes.FindByID(flag); ok {
			return s, nil
		}
		if s, ok := a.Scenes.FindByName(flag); ok {
			return s, nil
		}
		return scene.Scene{}, fmt.Errorf("unknown scene: %s", flag)
	}

	if saved, ok, _ := a.KV.Get(kvstore.KeySelectedScene); ok {
		if s, ok := a.Scenes.FindByID(saved); ok {
			return s, nil
		}
	}
	return a.Scenes.Fallback(), nil
}

// ResolveModel picks the model id: the flag value, then the saved selection,
// then the configured default. An unknown flag value is an error; an unknown
// saved selection falls through silently.
func (a *App) ResolveModel(flag string) (string, error) {
	if flag != "" {
		if err := models.Validate(flag); err != nil {
			return "", err
		}
		return flag, nil
	}

	if saved, ok, _ := a.KV.Get(kvstore.KeySelectedModel); ok {
		if models.Validate(saved) == nil {
			return saved, nil
		}
	}
	return a.Cfg.DefaultModel, nil
}
