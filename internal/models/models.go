// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models defines the static catalog of hosted language models the
// application can route translation requests to.
package models

import (
	"errors"
	"fmt"
)

// DefaultID is the model used when nothing has been selected yet, and the
// fallback recorded on session records whose model id is missing.
const DefaultID = "gemini-2.5-flash"

// Model describes one selectable backend model.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Description string `json:"description"`
}

// ErrUnknownModel indicates a model id outside the catalog.
var ErrUnknownModel = errors.New("unknown model")

// catalog is the full static model list, fastest first.
var catalog = []Model{
	{
		ID:          "gemini-2.5-flash",
		DisplayName: "Gemini 2.5 Flash",
		Description: "Fast, balanced default for everyday translation",
	},
	{
		ID:          "gemini-2.5-flash-lite",
		DisplayName: "Gemini 2.5 Flash Lite",
		Description: "Lowest latency, short casual text",
	},
	{
		ID:          "gemini-2.5-pro",
		DisplayName: "Gemini 2.5 Pro",
		Description: "Highest quality for long or nuanced documents",
	},
	{
		ID:          "gemini-2.0-flash",
		DisplayName: "Gemini 2.0 Flash",
		Description: "Previous generation, kept for compatibility",
	},
}

// Catalog returns a copy of the model list.
func Catalog() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Model, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Validate returns ErrUnknownModel for ids outside the catalog.
func Validate(id string) error {
	if _, ok := Lookup(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return nil
}

// IsDefault reports whether id is the default model. The UI uses this to add
// a hint to transport error notifications when the default model is in use.
func IsDefault(id string) bool {
	return id == DefaultID
}
