// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package scene

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/lingualens/lingualens-tui/internal/kvstore"
)

// Store supplies the active scene list (defaults or the user override) and
// persists edits. The durable store is the source of truth; the in-memory
// list is a cache re-derived on Load and written back in full on every
// mutation.
//
// Write failures are returned to the caller but the in-memory mutation is
// kept, so UI state and storage may diverge until the next successful write.
// That matches the store's best-effort persistence policy; it is not rolled
// back.
type Store struct {
	kv *kvstore.Store

	mu     sync.Mutex
	scenes []Scene
}

// NewStore creates a scene store and loads the active list.
func NewStore(kv *kvstore.Store) *Store {
	st := &Store{kv: kv}
	st.Load()
	return st
}

// Load re-reads the override list from durable storage. An absent or
// unparsable value falls back to the built-in defaults; Load never fails.
func (st *Store) Load() []Scene {
	st.mu.Lock()
	defer st.mu.Unlock()

	var scenes []Scene
	ok, err := st.kv.GetJSON(kvstore.KeyCustomScenes, &scenes)
	if err != nil {
		// Corrupt override data degrades to defaults rather than surfacing.
		log.Printf("scene: ignoring unreadable override list: %v", err)
		st.scenes = DefaultScenes()
	} else if !ok || len(scenes) == 0 {
		st.scenes = DefaultScenes()
	} else {
		st.scenes = scenes
	}
	return st.snapshotLocked()
}

// Scenes returns a copy of the active scene list.
func (st *Store) Scenes() []Scene {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshotLocked()
}

// Save overwrites the override list in full.
func (st *Store) Save(scenes []Scene) error {
	st.mu.Lock()
	st.scenes = make([]Scene, len(scenes))
	copy(st.scenes, scenes)
	st.mu.Unlock()
	return st.persist(scenes)
}

// Add prepends a new scene, assigning it a stable opaque ID.
// New scenes appear first so the user sees their creation immediately.
func (st *Store) Add(draft Scene) (Scene, error) {
	draft.ID = uuid.NewString()

	st.mu.Lock()
	st.scenes = append([]Scene{draft}, st.scenes...)
	snapshot := st.snapshotLocked()
	st.mu.Unlock()

	return draft, st.persist(snapshot)
}

// Edit replaces the scene at index with draft, keeping the existing ID.
func (st *Store) Edit(index int, draft Scene) error {
	st.mu.Lock()
	if index < 0 || index >= len(st.scenes) {
		st.mu.Unlock()
		return fmt.Errorf("scene index %d out of range", index)
	}
	draft.ID = st.scenes[index].ID
	st.scenes[index] = draft
	snapshot := st.snapshotLocked()
	st.mu.Unlock()

	return st.persist(snapshot)
}

// Delete removes the scene at index.
func (st *Store) Delete(index int) error {
	st.mu.Lock()
	if index < 0 || index >= len(st.scenes) {
		st.mu.Unlock()
		return fmt.Errorf("scene index %d out of range", index)
	}
	st.scenes = append(st.scenes[:index], st.scenes[index+1:]...)
	snapshot := st.snapshotLocked()
	st.mu.Unlock()

	return st.persist(snapshot)
}

// Reorder moves the scene at from to position to (drag-and-drop semantics).
func (st *Store) Reorder(from, to int) error {
	st.mu.Lock()
	n := len(st.scenes)
	if from < 0 || from >= n || to < 0 || to >= n {
		st.mu.Unlock()
		return fmt.Errorf("reorder indices (%d, %d) out of range", from, to)
	}
	if from != to {
		moved := st.scenes[from]
		st.scenes = append(st.scenes[:from], st.scenes[from+1:]...)
		rest := st.scenes
		st.scenes = make([]Scene, 0, n)
		st.scenes = append(st.scenes, rest[:to]...)
		st.scenes = append(st.scenes, moved)
		st.scenes = append(st.scenes, rest[to:]...)
	}
	snapshot := st.snapshotLocked()
	st.mu.Unlock()

	return st.persist(snapshot)
}

// ResetToDefaults overwrites the override list with a full copy of the
// built-in set. Idempotent.
func (st *Store) ResetToDefaults() error {
	defaults := DefaultScenes()

	st.mu.Lock()
	st.scenes = defaults
	snapshot := st.snapshotLocked()
	st.mu.Unlock()

	return st.persist(snapshot)
}

// FindByID looks a scene up by its opaque ID, falling back to a name match
// for references written before IDs existed. First match wins.
func (st *Store) FindByID(id string) (Scene, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, s := range st.scenes {
		if s.ID == id {
			return s, true
		}
	}
	for _, s := range st.scenes {
		if s.Name == id {
			return s, true
		}
	}
	return Scene{}, false
}

// FindByName looks a scene up by display name. Duplicate names shadow each
// other; the first match wins.
func (st *Store) FindByName(name string) (Scene, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, s := range st.scenes {
		if s.Name == name || s.NameEN == name {
			return s, true
		}
	}
	return Scene{}, false
}

// Fallback returns the scene used when a reference cannot be resolved.
func (st *Store) Fallback() Scene {
	if s, ok := st.FindByID(DefaultSceneID); ok {
		return s
	}
	return DefaultScenes()[0]
}

func (st *Store) snapshotLocked() []Scene {
	out := make([]Scene, len(st.scenes))
	copy(out, st.scenes)
	return out
}

func (st *Store) persist(scenes []Scene) error {
	if err := st.kv.SetJSON(kvstore.KeyCustomScenes, scenes); err != nil {
		return fmt.Errorf("failed to persist scenes: %w", err)
	}
	return nil
}
