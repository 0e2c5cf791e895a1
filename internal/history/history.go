// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lingualens/lingualens-tui/internal/kvstore"
	"github.com/lingualens/lingualens-tui/internal/models"
	"github.com/lingualens/lingualens-tui/internal/scene"
	"github.com/lingualens/lingualens-tui/internal/util"
)

// DefaultRetention is how long a session survives without being touched.
const DefaultRetention = 30 * 24 * time.Hour

// DateLayout is the calendar-date format used for grouping.
const DateLayout = "2006-01-02"

// Message is one chat message inside a session. CreatedAt is epoch millis,
// zero when unknown.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// Session is one saved conversation. Scene holds the scene's opaque id;
// records written by older versions may hold a display name instead, which
// scene.Store.FindByID resolves transparently. Timestamp is last-touched
// epoch millis.
type Session struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Timestamp int64     `json:"timestamp"`
	Messages  []Message `json:"messages"`
	Scene     string    `json:"scene"`
	Model     string    `json:"model"`
}

// Preview returns the first user message truncated for list display.
func (s Session) Preview() string {
	for _, m := range s.Messages {
		if m.Role == "user" && m.Content != "" {
			return util.TruncateRunes(util.FirstLine(m.Content), 40)
		}
	}
	return ""
}

// DayGroup is one calendar date with its sessions, most recent first.
type DayGroup struct {
	Date     string
	Sessions []Session
}

// Store is the durable session history. In-memory state is a cache of the
// stored list; every mutation rewrites the full value.
type Store struct {
	kv        *kvstore.Store
	retention time.Duration

	mu       sync.Mutex
	sessions []Session
	current  string

	// now is a seam for retention tests.
	now func() time.Time
}

// NewStore creates a history store with the default 30-day retention and
// loads the stored list.
func NewStore(kv *kvstore.Store) *Store {
	return NewStoreWithRetention(kv, DefaultRetention)
}

// NewStoreWithRetention creates a history store with a custom retention
// window.
func NewStoreWithRetention(kv *kvstore.Store, retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	st := &Store{kv: kv, retention: retention, now: time.Now}
	st.Refresh()
	return st
}

// Refresh re-reads the stored list into memory. Used after another process
// may have changed the stored data, and before showing the history list.
// A missing or unparsable value is treated as an empty history.
func (st *Store) Refresh() {
	var sessions []Session
	if _, err := st.kv.GetJSON(kvstore.KeyChatHistory, &sessions); err != nil {
		log.Printf("history: ignoring unreadable history: %v", err)
		sessions = nil
	}

	st.mu.Lock()
	st.sessions = sessions
	st.mu.Unlock()
}

// CreateSession allocates a session id and marks it current. Nothing is
// written until the first upsert with messages: a session with no messages
// must never be persisted.
func (st *Store) CreateSession(sceneID, modelID string) string {
	id := newSessionID(st.now())
	st.mu.Lock()
	st.current = id
	st.mu.Unlock()
	return id
}

// Current returns the session id subsequent upserts apply to, if any.
func (st *Store) Current() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

// MarkCurrent points subsequent upserts at the given session id.
func (st *Store) MarkCurrent(sessionID string) {
	st.mu.Lock()
	st.current = sessionID
	st.mu.Unlock()
}

// ClearCurrent drops the current-session marker (start-new-conversation).
func (st *Store) ClearCurrent() {
	st.mu.Lock()
	st.current = ""
	st.mu.Unlock()
}

// Upsert replaces the message list of the session with the given id, or
// inserts a new record when the id is unknown. An empty message list removes
// the session. Either way, sessions past the retention window are pruned and
// the full list is persisted.
//
// sceneID and modelID are only consulted on insert; an existing session
// keeps the scene and model it was created with. Empty values fall back to
// the default scene and model - an edge case that should not occur in normal
// flow but must not fail.
func (st *Store) Upsert(sessionID string, messages []Message, sceneID, modelID string) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}

	nowMillis := st.now().UnixMilli()

	st.mu.Lock()
	if len(messages) == 0 {
		st.removeLocked(sessionID)
	} else {
		copied := make([]Message, len(messages))
		copy(copied, messages)

		if idx := st.indexLocked(sessionID); idx >= 0 {
			st.sessions[idx].Messages = copied
			st.sessions[idx].Timestamp = nowMillis
		} else {
			if sceneID == "" {
				sceneID = scene.DefaultSceneID
			}
			if modelID == "" {
				modelID = models.DefaultID
			}
			st.sessions = append(st.sessions, Session{
				ID:        sessionID,
				Date:      st.now().Format(DateLayout),
				Timestamp: nowMillis,
				Messages:  copied,
				Scene:     sceneID,
				Model:     modelID,
			})
		}
	}
	st.pruneLocked(nowMillis)
	snapshot := st.snapshotLocked()
	st.mu.Unlock()

	return st.persist(snapshot)
}

// Load returns the stored session only if it has at least one message, and
// marks it current for subsequent upserts. Messages are copied, never
// aliased into the caller's state.
func (st *Store) Load(sessionID string) (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	idx := st.indexLocked(sessionID)
	if idx < 0 || len(st.sessions[idx].Messages) == 0 {
		return Session{}, false
	}
	st.current = sessionID
	return copySession(st.sessions[idx]), true
}

// ListGroupedByDate groups sessions by calendar date, dates descending,
// sessions within a day by last-touched descending.
func (st *Store) ListGroupedByDate() []DayGroup {
	st.mu.Lock()
	sessions := st.snapshotLocked()
	st.mu.Unlock()

	byDate := make(map[string][]Session)
	var dates []string
	for _, s := range sessions {
		if _, seen := byDate[s.Date]; !seen {
			dates = append(dates, s.Date)
		}
		byDate[s.Date] = append(byDate[s.Date], s)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	groups := make([]DayGroup, 0, len(dates))
	for _, d := range dates {
		day := byDate[d]
		sort.SliceStable(day, func(i, j int) bool {
			return day[i].Timestamp > day[j].Timestamp
		})
		groups = append(groups, DayGroup{Date: d, Sessions: day})
	}
	return groups
}

// Delete removes one session and persists the result.
func (st *Store) Delete(sessionID string) error {
	st.mu.Lock()
	st.removeLocked(sessionID)
	if st.current == sessionID {
		st.current = ""
	}
	snapshot := st.snapshotLocked()
	st.mu.Unlock()

	return st.persist(snapshot)
}

// ClearAll removes every session. The storage key itself is deleted rather
// than rewritten as an empty list.
func (st *Store) ClearAll() error {
	st.mu.Lock()
	st.sessions = nil
	st.current = ""
	st.mu.Unlock()

	if err := st.kv.Delete(kvstore.KeyChatHistory); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// ClearByDate removes every session recorded under the given calendar date.
func (st *Store) ClearByDate(date string) error {
	st.mu.Lock()
	kept := st.sessions[:0]
	for _, s := range st.sessions {
		if s.Date != date {
			kept = append(kept, s)
		} else if st.current == s.ID {
			st.current = ""
		}
	}
	st.sessions = kept
	snapshot := st.snapshotLocked()
	st.mu.Unlock()

	return st.persist(snapshot)
}

// ClearToday removes every session recorded today.
func (st *Store) ClearToday() error {
	return st.ClearByDate(st.now().Format(DateLayout))
}

// =============================================================================
// INTERNAL
// =============================================================================

func (st *Store) indexLocked(sessionID string) int {
	for i := range st.sessions {
		if st.sessions[i].ID == sessionID {
			return i
		}
	}
	return -1
}

func (st *Store) removeLocked(sessionID string) {
	if idx := st.indexLocked(sessionID); idx >= 0 {
		st.sessions = append(st.sessions[:idx], st.sessions[idx+1:]...)
	}
}

// pruneLocked drops sessions whose last-touched timestamp is outside the
// retention window.
func (st *Store) pruneLocked(nowMillis int64) {
	cutoff := nowMillis - st.retention.Milliseconds()
	kept := st.sessions[:0]
	for _, s := range st.sessions {
		if s.Timestamp >= cutoff {
			kept = append(kept, s)
		}
	}
	st.sessions = kept
}

func (st *Store) snapshotLocked() []Session {
	out := make([]Session, len(st.sessions))
	for i, s := range st.sessions {
		out[i] = copySession(s)
	}
	return out
}

func (st *Store) persist(sessions []Session) error {
	if err := st.kv.SetJSON(kvstore.KeyChatHistory, sessions); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}

func copySession(s Session) Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// newSessionID allocates an id from the creation time plus a random suffix.
func newSessionID(t time.Time) string {
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return strconv.FormatInt(t.UnixMilli(), 10) + "-" + hex.EncodeToString(suffix)
}
