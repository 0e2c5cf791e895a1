// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scene owns the list of translation scenes: the prompt presets that
// control tone and format for a given context (daily chat, business email,
// ticket support, and so on).
//
// The application ships a built-in default set. The first user edit writes a
// full override list to durable storage under "customScenes"; from then on
// the override list fully replaces the defaults until ResetToDefaults.
//
// Every scene carries a stable opaque ID assigned at creation. Display names
// are presentation only; sessions reference scenes by ID, with a by-name
// fallback for history records written before IDs existed.
package scene
