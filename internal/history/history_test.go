// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/models"
	"github.com/lingualens/lingualens-tui/internal/scene"
)

func newTestStore(t *testing.T) (*Store, *kvstore.Store) {
	t.Helper()
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	return NewStore(kv), kv
}

func userMsg(id, content string) Message {
	return Message{ID: id, Role: "user", Content: content, CreatedAt: time.Now().UnixMilli()}
}

func TestCreateSession_IsLazy(t *testing.T) {
	st, kv := newTestStore(t)

	id := st.CreateSession(scene.IDDailyConversation, models.DefaultID)
	require.NotEmpty(t, id)
	assert.Equal(t, id, st.Current())

	// Nothing hits storage until the first message.
	_, ok, err := kv.Get(kvstore.KeyChatHistory)
	require.NoError(t, err)
	assert.False(t, ok, "empty sessions must never be persisted")
}

func TestUpsert_InsertThenList(t *testing.T) {
	st, _ := newTestStore(t)

	id := st.CreateSession(scene.IDDailyConversation, "gemini-2.5-flash")
	require.NoError(t, st.Upsert(id, []Message{userMsg("m1", "hello")}, scene.IDDailyConversation, "gemini-2.5-flash"))

	groups := st.ListGroupedByDate()
	require.Len(t, groups, 1)
	assert.Equal(t, time.Now().Format(DateLayout), groups[0].Date)
	require.Len(t, groups[0].Sessions, 1)

	got := groups[0].Sessions[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, scene.IDDailyConversation, got.Scene)
	assert.Equal(t, "gemini-2.5-flash", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestUpsert_EmptyRemovesSession(t *testing.T) {
	st, kv := newTestStore(t)

	id := st.CreateSession("", "")
	require.NoError(t, st.Upsert(id, []Message{userMsg("m1", "hi")}, "", ""))
	require.NoError(t, st.Upsert(id, nil, "", ""))

	// Absent from memory.
	_, ok := st.Load(id)
	assert.False(t, ok)

	// Absent from storage too.
	var stored []Session
	_, err := kv.GetJSON(kvstore.KeyChatHistory, &stored)
	require.NoError(t, err)
	for _, s := range stored {
		assert.NotEqual(t, id, s.ID)
	}
}

func TestUpsert_FallbackSceneAndModel(t *testing.T) {
	st, _ := newTestStore(t)

	// Upsert for an id never created, with no scene/model. Must not fail.
	require.NoError(t, st.Upsert("orphan-1", []Message{userMsg("m1", "x")}, "", ""))

	s, ok := st.Load("orphan-1")
	require.True(t, ok)
	assert.Equal(t, scene.DefaultSceneID, s.Scene)
	assert.Equal(t, models.DefaultID, s.Model)
}

func TestUpsert_RefreshesTimestampKeepsScene(t *testing.T) {
	st, _ := newTestStore(t)
	base := time.Now()
	st.now = func() time.Time { return base }

	id := st.CreateSession("", "")
	require.NoError(t, st.Upsert(id, []Message{userMsg("m1", "a")}, scene.IDBusinessEmail, "gemini-2.5-pro"))

	st.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, st.Upsert(id, []Message{userMsg("m1", "a"), userMsg("m2", "b")}, "other-scene", "other-model"))

	s, ok := st.Load(id)
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour).UnixMilli(), s.Timestamp)
	assert.Equal(t, scene.IDBusinessEmail, s.Scene, "scene is fixed at creation")
	assert.Equal(t, "gemini-2.5-pro", s.Model, "model is fixed at creation")
	assert.Len(t, s.Messages, 2)
}

func TestRetention_PrunesOldSessions(t *testing.T) {
	st, kv := newTestStore(t)
	base := time.Now()

	// An old session, touched 31 days ago.
	st.now = func() time.Time { return base.Add(-31 * 24 * time.Hour) }
	require.NoError(t, st.Upsert("old-1", []Message{userMsg("m1", "stale")}, "", ""))

	// Any later upsert prunes it.
	st.now = func() time.Time { return base }
	require.NoError(t, st.Upsert("new-1", []Message{userMsg("m2", "fresh")}, "", ""))

	_, ok := st.Load("old-1")
	assert.False(t, ok, "sessions older than 30 days must be pruned on save")

	var stored []Session
	_, err := kv.GetJSON(kvstore.KeyChatHistory, &stored)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "new-1", stored[0].ID)
}

func TestListGroupedByDate_Ordering(t *testing.T) {
	st, _ := newTestStore(t)
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	// T3 on an earlier date, then T2 and T1 (T1 > T2) on the same later date.
	st.now = func() time.Time { return base.Add(-24 * time.Hour) }
	require.NoError(t, st.Upsert("t3", []Message{userMsg("a", "3")}, "", ""))

	st.now = func() time.Time { return base.Add(-2 * time.Hour) }
	require.NoError(t, st.Upsert("t2", []Message{userMsg("b", "2")}, "", ""))

	st.now = func() time.Time { return base.Add(-1 * time.Hour) }
	require.NoError(t, st.Upsert("t1", []Message{userMsg("c", "1")}, "", ""))

	groups := st.ListGroupedByDate()
	require.Len(t, groups, 2)
	assert.Equal(t, "2026-08-29", groups[0].Date, "most recent day first")
	require.Len(t, groups[0].Sessions, 2)
	assert.Equal(t, "t1", groups[0].Sessions[0].ID, "within a day, most recent first")
	assert.Equal(t, "t2", groups[0].Sessions[1].ID)
	assert.Equal(t, "t3", groups[1].Sessions[0].ID)
}

func TestLoad_MarksCurrent(t *testing.T) {
	st, _ := newTestStore(t)

	require.NoError(t, st.Upsert("s1", []Message{userMsg("m", "x")}, "", ""))
	st.ClearCurrent()

	_, ok := st.Load("s1")
	require.True(t, ok)
	assert.Equal(t, "s1", st.Current())

	_, ok = st.Load("missing")
	assert.False(t, ok)
}

func TestLoad_CopiesMessages(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.Upsert("s1", []Message{userMsg("m", "original")}, "", ""))

	s, _ := st.Load("s1")
	s.Messages[0].Content = "mutated"

	again, _ := st.Load("s1")
	assert.Equal(t, "original", again.Messages[0].Content)
}

func TestDelete_OnlySession(t *testing.T) {
	st, _ := newTestStore(t)

	require.NoError(t, st.Upsert("s1", []Message{userMsg("m", "x")}, "", ""))
	require.NoError(t, st.Delete("s1"))

	assert.Empty(t, st.ListGroupedByDate())
}

func TestClearAll_RemovesKey(t *testing.T) {
	st, kv := newTestStore(t)

	require.NoError(t, st.Upsert("s1", []Message{userMsg("m", "x")}, "", ""))
	require.NoError(t, st.ClearAll())

	assert.Empty(t, st.ListGroupedByDate())
	_, ok, err := kv.Get(kvstore.KeyChatHistory)
	require.NoError(t, err)
	assert.False(t, ok, "ClearAll removes the storage key itself")
}

func TestClearByDateAndToday(t *testing.T) {
	st, _ := newTestStore(t)
	base := time.Now()

	st.now = func() time.Time { return base.Add(-24 * time.Hour) }
	require.NoError(t, st.Upsert("yesterday", []Message{userMsg("m", "y")}, "", ""))

	st.now = func() time.Time { return base }
	require.NoError(t, st.Upsert("today", []Message{userMsg("m", "t")}, "", ""))

	require.NoError(t, st.ClearToday())
	groups := st.ListGroupedByDate()
	require.Len(t, groups, 1)
	assert.Equal(t, "yesterday", groups[0].Sessions[0].ID)

	require.NoError(t, st.ClearByDate(base.Add(-24*time.Hour).Format(DateLayout)))
	assert.Empty(t, st.ListGroupedByDate())
}

func TestRefresh_PicksUpExternalWrites(t *testing.T) {
	dir := t.TempDir()
	kv, err := kvstore.Open(dir)
	require.NoError(t, err)
	st := NewStore(kv)

	// Another process writes history to the same store.
	otherKV, err := kvstore.Open(dir)
	require.NoError(t, err)
	other := NewStore(otherKV)
	require.NoError(t, other.Upsert("ext-1", []Message{userMsg("m", "external")}, "", ""))

	assert.Empty(t, st.ListGroupedByDate())
	st.Refresh()
	require.Len(t, st.ListGroupedByDate(), 1)
}

func TestRefresh_CorruptHistoryIsEmpty(t *testing.T) {
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Set(kvstore.KeyChatHistory, "not json"))

	st := NewStore(kv)
	assert.Empty(t, st.ListGroupedByDate(), "corrupt history degrades to empty, never errors")
}

func TestSessionIDFormat(t *testing.T) {
	ts := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	id := newSessionID(ts)
	assert.Contains(t, id, "-")
	assert.Contains(t, id, "1787997600000"[:10], "id begins with the creation timestamp")
}
