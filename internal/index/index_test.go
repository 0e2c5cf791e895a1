// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingualens/lingualens-tui/internal/history"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func sampleGroups() []history.DayGroup {
	return []history.DayGroup{
		{
			Date: "2026-08-29",
			Sessions: []history.Session{
				{
					ID: "s1", Date: "2026-08-29", Timestamp: 200,
					Scene: "builtin-business-email", Model: "gemini-2.5-flash",
					Messages: []history.Message{
						{ID: "m1", Role: "user", Content: "please translate the quarterly revenue report"},
						{ID: "m2", Role: "assistant", Content: "季度收入报告"},
					},
				},
				{
					ID: "s2", Date: "2026-08-29", Timestamp: 100,
					Scene: "builtin-daily-conversation", Model: "gemini-2.5-flash",
					Messages: []history.Message{
						{ID: "m3", Role: "user", Content: "how do I say good morning"},
					},
				},
			},
		},
		{
			Date: "2026-08-28",
			Sessions: []history.Session{
				{
					ID: "s3", Date: "2026-08-28", Timestamp: 50,
					Scene: "builtin-daily-conversation", Model: "gemini-2.5-pro",
					Messages: []history.Message{
						{ID: "m4", Role: "user", Content: "revenue projections for next year"},
					},
				},
			},
		},
	}
}

func TestSearch_FindsMatchingSessions(t *testing.T) {
	ix := openTestIndex(t)
	require.NoError(t, ix.Rebuild(sampleGroups()))

	results, err := ix.Search("revenue", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := []string{results[0].SessionID, results[1].SessionID}
	assert.Contains(t, ids, "s1")
	assert.Contains(t, ids, "s3")
	assert.NotEmpty(t, results[0].Snippet)
}

func TestSearch_OneResultPerSession(t *testing.T) {
	ix := openTestIndex(t)
	groups := []history.DayGroup{{
		Date: "2026-08-29",
		Sessions: []history.Session{{
			ID: "s1", Date: "2026-08-29", Timestamp: 1,
			Messages: []history.Message{
				{ID: "m1", Role: "user", Content: "translate this contract"},
				{ID: "m2", Role: "user", Content: "another contract clause"},
			},
		}},
	}}
	require.NoError(t, ix.Rebuild(groups))

	results, err := ix.Search("contract", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearch_MultipleTermsAreANDed(t *testing.T) {
	ix := openTestIndex(t)
	require.NoError(t, ix.Rebuild(sampleGroups()))

	results, err := ix.Search("quarterly revenue", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s1", results[0].SessionID)
}

func TestSearch_QuotesDoNotInject(t *testing.T) {
	ix := openTestIndex(t)
	require.NoError(t, ix.Rebuild(sampleGroups()))

	// FTS5 syntax in user input is treated as literal text.
	_, err := ix.Search(`morning" OR "revenue`, 10)
	require.NoError(t, err)

	_, err = ix.Search(`NEAR(foo bar)`, 10)
	require.NoError(t, err)
}

func TestSearch_EmptyQuery(t *testing.T) {
	ix := openTestIndex(t)
	require.NoError(t, ix.Rebuild(sampleGroups()))

	results, err := ix.Search("   ", 10)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestRebuild_ReplacesOldContent(t *testing.T) {
	ix := openTestIndex(t)
	require.NoError(t, ix.Rebuild(sampleGroups()))

	n, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// A rebuild from a smaller snapshot drops vanished sessions.
	require.NoError(t, ix.Rebuild(sampleGroups()[:1]))
	n, err = ix.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := ix.Search("projections", 10)
	require.NoError(t, err)
	assert.Empty(t, results, "messages of dropped sessions are gone")
}

func TestRebuild_Empty(t *testing.T) {
	ix := openTestIndex(t)
	require.NoError(t, ix.Rebuild(sampleGroups()))
	require.NoError(t, ix.Rebuild(nil))

	n, err := ix.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}
