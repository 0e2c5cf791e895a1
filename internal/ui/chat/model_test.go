// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingualens/lingualens-tui/internal/conversation"
	"github.com/lingualens/lingualens-tui/internal/gemini"
	"github.com/lingualens/lingualens-tui/internal/history"
	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/scene"
	"github.com/lingualens/lingualens-tui/internal/signal"
)

type echoTransport struct{}

func (echoTransport) ChatStream(ctx context.Context, system string, messages []gemini.Message, callback gemini.StreamCallback) error {
	callback("ok")
	return nil
}

type fixture struct {
	m       Model
	ctrl    *conversation.Controller
	kv      *kvstore.Store
	hist    *history.Store
	scenes  *scene.Store
	signals *signal.Channel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)

	scenes := scene.NewStore(kv)
	hist := history.NewStore(kv)
	signals := signal.NewChannelWithPulse(time.Hour)
	ctrl := conversation.New(scenes, hist, signals, kv, echoTransport{})

	return &fixture{
		m:       New(ctrl, signals, hist, scenes, nil, true),
		ctrl:    ctrl,
		kv:      kv,
		hist:    hist,
		scenes:  scenes,
		signals: signals,
	}
}

func seedSession(t *testing.T, hist *history.Store, content string) string {
	t.Helper()
	id := hist.CreateSession(scene.DefaultSceneID, "gemini-2.5-flash")
	msgs := []history.Message{
		{ID: id + "-0", Role: "user", Content: content},
		{ID: id + "-1", Role: "assistant", Content: "translated " + content},
	}
	require.NoError(t, hist.Upsert(id, msgs, scene.DefaultSceneID, "gemini-2.5-flash"))
	return id
}

type failTransport struct{}

func (failTransport) ChatStream(ctx context.Context, system string, messages []gemini.Message, callback gemini.StreamCallback) error {
	return errors.New("backend down")
}

func TestView_TransportErrorShowsDefaultModelHint(t *testing.T) {
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	scenes := scene.NewStore(kv)
	hist := history.NewStore(kv)
	signals := signal.NewChannelWithPulse(time.Hour)
	defer signals.Close()
	ctrl := conversation.New(scenes, hist, signals, kv, failTransport{})

	m := New(ctrl, signals, hist, scenes, nil, true)
	mm, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = mm.(Model)

	require.Error(t, ctrl.Send(context.Background(), "hi"))
	require.Equal(t, conversation.StatusError, ctrl.Status())

	view := m.View()
	assert.Contains(t, view, "backend down")
	assert.Contains(t, view, "default model in use")
}

func TestView_ErrorOnNonDefaultModelOmitsHint(t *testing.T) {
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	scenes := scene.NewStore(kv)
	hist := history.NewStore(kv)
	signals := signal.NewChannelWithPulse(time.Hour)
	defer signals.Close()
	ctrl := conversation.New(scenes, hist, signals, kv, failTransport{})
	require.NoError(t, ctrl.SelectModel("gemini-2.5-pro"))

	m := New(ctrl, signals, hist, scenes, nil, true)
	mm, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = mm.(Model)

	require.Error(t, ctrl.Send(context.Background(), "hi"))

	view := m.View()
	assert.Contains(t, view, "backend down")
	assert.NotContains(t, view, "default model in use")
}

func TestRebuildHistoryRows_SelectionSkipsDateHeader(t *testing.T) {
	f := newFixture(t)
	seedSession(t, f.hist, "hello")

	f.m.rebuildHistoryRows()

	require.NotEmpty(t, f.m.histRows)
	assert.True(t, f.m.histRows[0].header, "first row is the date header")
	assert.False(t, f.m.histRows[f.m.histSel].header, "selection starts on a session")
}

func TestSelectedSessionID_ListMode(t *testing.T) {
	f := newFixture(t)
	id := seedSession(t, f.hist, "hello")

	f.m.rebuildHistoryRows()
	got, ok := f.m.selectedSessionID()
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestRequestLoad_PostsCompleteSignal(t *testing.T) {
	f := newFixture(t)
	id := seedSession(t, f.hist, "hello")

	f.m.requestLoad(id)

	req, ok := f.signals.TakeLoad()
	require.True(t, ok)
	assert.Equal(t, id, req.SessionID)
	assert.Equal(t, scene.DefaultSceneID, req.SceneID)
	assert.Equal(t, "gemini-2.5-flash", req.ModelID)
	assert.Len(t, req.Messages, 2)
}

func TestSignalMsg_LoadAdoptsSessionAndClosesOverlay(t *testing.T) {
	f := newFixture(t)
	id := seedSession(t, f.hist, "hello")
	f.m.active = overlayHistory
	f.m.requestLoad(id)

	updated, _ := f.m.Update(signalMsg{})
	m := updated.(Model)

	assert.Equal(t, overlayNone, m.active)
	assert.Equal(t, id, f.ctrl.SessionID())
}

func TestSignalMsg_ClearResetsConversation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Send(context.Background(), "hello"))
	require.NotEmpty(t, f.ctrl.SessionID())

	f.signals.RequestClear()
	updated, _ := f.m.Update(signalMsg{})
	m := updated.(Model)

	assert.Equal(t, overlayNone, m.active)
	assert.Empty(t, f.ctrl.SessionID())
	assert.Empty(t, f.ctrl.Messages())
}

func TestSubmitKey_IgnoresEmptyInput(t *testing.T) {
	f := newFixture(t)

	_, cmd := f.m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestSubmitKey_SendsText(t *testing.T) {
	f := newFixture(t)
	f.m.input.SetValue("hello")

	updated, cmd := f.m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	m := updated.(Model)
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value(), "input resets on submit")

	msg := cmd()
	done, ok := msg.(sendFinishedMsg)
	require.True(t, ok)
	assert.NoError(t, done.err)
	assert.Equal(t, "ok", f.ctrl.Messages()[1].Content)
}

func TestStoreChangedMsg_PicksUpExternalSceneEdit(t *testing.T) {
	f := newFixture(t)
	builtin := len(f.scenes.Scenes())

	// Another process added a scene to the same store directory.
	other, err := kvstore.Open(f.kv.Dir())
	require.NoError(t, err)
	_, err = scene.NewStore(other).Add(scene.Scene{
		Name:        "法律合同",
		NameEN:      "Legal Contracts",
		Description: "contract translation",
		Prompt:      "You translate legal contracts.",
	})
	require.NoError(t, err)

	_, cmd := f.m.Update(storeChangedMsg{key: kvstore.KeyCustomScenes})
	assert.Nil(t, cmd, "no watcher to re-arm in this fixture")
	assert.Len(t, f.scenes.Scenes(), builtin+1)
}

func TestHistoryOverlay_DeleteRemovesSession(t *testing.T) {
	f := newFixture(t)
	seedSession(t, f.hist, "hello")
	f.m.rebuildHistoryRows()
	f.m.active = overlayHistory

	updated, _ := f.m.handleHistoryKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	m := updated.(Model)

	assert.Empty(t, m.histRows)
	assert.Empty(t, f.hist.ListGroupedByDate())
}

func TestScenesOverlay_SelectPersists(t *testing.T) {
	f := newFixture(t)
	f.m.active = overlayScenes
	f.m.sceneSel = 1

	updated, _ := f.m.handleScenesKey(tea.KeyMsg{Type: tea.KeyEnter})
	m := updated.(Model)

	want := f.scenes.Scenes()[1].ID
	assert.Equal(t, overlayNone, m.active)
	assert.Equal(t, want, f.ctrl.SceneID())
}
