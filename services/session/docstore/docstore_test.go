// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenInMemory verifies in-memory database creation works.
func TestOpenInMemory(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	table := db.Table("sessions")
	require.NoError(t, table.Insert(Document{"id": "s1", "app_name": "autoyou"}))

	doc, ok, err := table.Get(Eq("id", "s1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "autoyou", doc["app_name"])
}

// TestOpenRequiresPath verifies that persistent mode requires a path.
func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

// TestFlushRoundTrip verifies documents survive flush and reopen.
func TestFlushRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	db, err := OpenPath(path)
	require.NoError(t, err)

	table := db.Table("events")
	require.NoError(t, table.Insert(Document{"id": "e1", "timestamp": 100}))
	require.NoError(t, table.Insert(Document{"id": "e2", "timestamp": 200}))
	require.NoError(t, db.Close())

	db2, err := OpenPath(path)
	require.NoError(t, err)
	defer db2.Close()

	docs, err := db2.Table("events").All()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	// JSON round trip turns numbers into float64; Eq must still match ints
	doc, ok, err := db2.Table("events").Get(Eq("timestamp", 100))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "e1", doc["id"])
}

// TestFlushCreatesFileLazily verifies the file only appears on flush.
func TestFlushCreatesFileLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazy.json")

	db, err := OpenPath(path)
	require.NoError(t, err)
	defer db.Close()

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, db.Table("sessions").Insert(Document{"id": "s1"}))
	require.NoError(t, db.Flush())

	_, statErr = os.Stat(path)
	assert.NoError(t, statErr)
}

// TestSearchAndCombinators verifies Eq and And semantics.
func TestSearchAndCombinators(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	table := db.Table("sessions")
	require.NoError(t, table.Insert(Document{"app_name": "a", "user_id": "u1", "id": "s1"}))
	require.NoError(t, table.Insert(Document{"app_name": "a", "user_id": "u2", "id": "s2"}))
	require.NoError(t, table.Insert(Document{"app_name": "b", "user_id": "u1", "id": "s3"}))

	docs, err := table.Search(Eq("app_name", "a"))
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = table.Search(And(Eq("app_name", "a"), Eq("user_id", "u1")))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s1", docs[0]["id"])

	_, ok, err := table.Get(Eq("app_name", "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestUpdateMergesFields verifies Update merges rather than replaces.
func TestUpdateMergesFields(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	table := db.Table("app_state")
	require.NoError(t, table.Insert(Document{"app_name": "a", "state": Document{"k": "v"}}))

	n, err := table.Update(Document{"state": Document{"k": "v2"}}, Eq("app_name", "a"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, ok, err := table.Get(Eq("app_name", "a"))
	require.NoError(t, err)
	require.True(t, ok)
	state := doc["state"].(Document)
	assert.Equal(t, "v2", state["k"])
	assert.Equal(t, "a", doc["app_name"]) // untouched field survives
}

// TestRemove verifies removal count and idempotence.
func TestRemove(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	table := db.Table("events")
	require.NoError(t, table.Insert(Document{"session_id": "s1"}))
	require.NoError(t, table.Insert(Document{"session_id": "s1"}))
	require.NoError(t, table.Insert(Document{"session_id": "s2"}))

	n, err := table.Remove(Eq("session_id", "s1"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Removing again matches nothing and is not an error
	n, err = table.Remove(Eq("session_id", "s1"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := table.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestDocumentIsolation verifies inserts and reads never alias caller maps.
func TestDocumentIsolation(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	table := db.Table("sessions")
	original := Document{"id": "s1", "state": Document{"k": "v"}}
	require.NoError(t, table.Insert(original))

	// Mutating the caller's map must not affect the stored document
	original["state"].(Document)["k"] = "mutated"

	doc, ok, err := table.Get(Eq("id", "s1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", doc["state"].(Document)["k"])

	// Mutating a read result must not affect the stored document either
	doc["state"].(Document)["k"] = "mutated-read"
	doc2, _, err := table.Get(Eq("id", "s1"))
	require.NoError(t, err)
	assert.Equal(t, "v", doc2["state"].(Document)["k"])
}

// TestUseAfterClose verifies ErrClosed on every operation.
func TestUseAfterClose(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	table := db.Table("sessions")
	require.NoError(t, db.Close())
	require.NoError(t, db.Close()) // Idempotent

	assert.ErrorIs(t, table.Insert(Document{}), ErrClosed)
	_, err = table.Search(Eq("id", "x"))
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = table.Get(Eq("id", "x"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = table.Update(Document{}, Eq("id", "x"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = table.Remove(Eq("id", "x"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Flush(), ErrClosed)
}

// TestCorruptFile verifies a parse failure surfaces from Open.
func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0640))

	_, err := OpenPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database file")
}
