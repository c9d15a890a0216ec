// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package docstore provides an embedded, file-backed JSON document database.
//
// The database holds named tables, each an unordered collection of
// schema-less documents queryable by field-equality predicates. All
// mutation happens against an in-memory image of the file; an explicit
// Flush (or Close) writes the image back to disk atomically.
//
// Persisted layout is a single JSON file:
//
//	{
//	    "sessions": [ {...}, {...} ],
//	    "events":   [ {...} ]
//	}
//
// # Concurrency
//
// A DB is safe for concurrent use within one process. The file itself
// assumes a single owning process: there is no cross-process locking,
// and another process must not read the file before Flush has been
// called.
//
// # Failure Model
//
// Lookups that match nothing return empty results, never errors. Only
// genuine I/O faults (open, write, rename) surface as errors, from
// Open, Flush, and Close.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
)

// ErrClosed is returned when the database is used after Close.
var ErrClosed = errors.New("docstore: database is closed")

// Document is a single schema-less record.
//
// Values are anything encoding/json can represent. Documents read back
// from disk carry JSON types (float64 for numbers, []any for arrays).
type Document = map[string]any

// Predicate selects documents in a table.
type Predicate func(Document) bool

// Eq matches documents whose field equals want.
//
// Numeric values compare across Go numeric types, so Eq("n", 5)
// matches a document holding float64(5) after a disk round trip.
func Eq(field string, want any) Predicate {
	return func(doc Document) bool {
		got, ok := doc[field]
		if !ok {
			return false
		}
		return equalValues(got, want)
	}
}

// And matches documents satisfying every given predicate.
func And(preds ...Predicate) Predicate {
	return func(doc Document) bool {
		for _, p := range preds {
			if !p(doc) {
				return false
			}
		}
		return true
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config holds configuration for a DB instance.
type Config struct {
	// Path is the JSON file backing the database.
	// Required unless InMemory is true. Created on first Flush if absent.
	Path string

	// InMemory disables disk persistence entirely.
	// Useful for testing.
	InMemory bool

	// Logger is the logger for database operations.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// -----------------------------------------------------------------------------
// DB
// -----------------------------------------------------------------------------

// DB is an embedded JSON document database.
//
// Thread Safety: Safe for concurrent use within one process.
type DB struct {
	mu     sync.Mutex
	path   string
	inMem  bool
	logger *slog.Logger

	// tables is the in-memory image of the file: table name to documents.
	tables map[string][]Document

	// dirty is true when the image has unflushed mutations.
	dirty bool

	closed bool
}

// Open creates or loads a database with the given configuration.
//
// Description:
//
//	Loads the JSON file at cfg.Path if it exists; starts empty
//	otherwise. The file is only created once Flush or Close runs.
//
// Inputs:
//
//	cfg - Database configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*DB - The opened database. Caller must call Close() when done.
//	error - Non-nil if the path is missing or the file cannot be parsed.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db := &DB{
		path:   cfg.Path,
		inMem:  cfg.InMemory,
		logger: logger,
		tables: make(map[string][]Document),
	}

	if cfg.InMemory {
		return db, nil
	}

	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("database file absent, starting empty", "path", cfg.Path)
			return db, nil
		}
		return nil, fmt.Errorf("read database file %s: %w", cfg.Path, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &db.tables); err != nil {
			return nil, fmt.Errorf("parse database file %s: %w", cfg.Path, err)
		}
		if db.tables == nil {
			db.tables = make(map[string][]Document)
		}
	}

	logger.Debug("database loaded", "path", cfg.Path, "tables", len(db.tables))
	return db, nil
}

// OpenPath is a convenience function for opening a database at a path.
func OpenPath(path string) (*DB, error) {
	return Open(Config{Path: path})
}

// OpenInMemory is a convenience function for tests.
func OpenInMemory() (*DB, error) {
	return Open(Config{InMemory: true})
}

// Table returns a handle to the named table, creating it on first use.
//
// Thread Safety: Safe for concurrent use; handles share the DB's lock.
func (db *DB) Table(name string) *Table {
	return &Table{db: db, name: name}
}

// Flush writes the in-memory image to disk.
//
// Description:
//
//	Marshals every table to JSON and writes it atomically (temp file
//	plus rename in the target directory). A no-op when nothing changed
//	since the last flush, or for in-memory databases.
//
// Outputs:
//
//	error - Non-nil on marshal or I/O failure. The previous file
//	        contents survive a failed flush.
func (db *DB) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.flushLocked()
}

func (db *DB) flushLocked() error {
	if db.closed {
		return ErrClosed
	}
	if db.inMem || !db.dirty {
		return nil
	}

	data, err := json.Marshal(db.tables)
	if err != nil {
		return fmt.Errorf("marshal database: %w", err)
	}

	dir := filepath.Dir(db.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(db.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write database file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync database file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, db.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace database file: %w", err)
	}

	db.dirty = false
	db.logger.Debug("database flushed", "path", db.path, "bytes", len(data))
	return nil
}

// Close flushes pending writes and releases the database.
//
// Further use of the DB or its tables returns ErrClosed. Close is
// idempotent.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	if err := db.flushLocked(); err != nil {
		return err
	}
	db.closed = true
	db.tables = nil
	return nil
}

// -----------------------------------------------------------------------------
// Table
// -----------------------------------------------------------------------------

// Table is a named collection of documents inside a DB.
//
// Thread Safety: Safe for concurrent use.
type Table struct {
	db   *DB
	name string
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Insert appends a document to the table.
//
// The document is deep-copied on insert, so callers may reuse or
// mutate the argument afterwards.
func (t *Table) Insert(doc Document) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.db.closed {
		return ErrClosed
	}
	t.db.tables[t.name] = append(t.db.tables[t.name], copyDocument(doc))
	t.db.dirty = true
	return nil
}

// Search returns deep copies of every document matching p, in
// insertion order.
func (t *Table) Search(p Predicate) ([]Document, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.db.closed {
		return nil, ErrClosed
	}
	var out []Document
	for _, doc := range t.db.tables[t.name] {
		if p(doc) {
			out = append(out, copyDocument(doc))
		}
	}
	return out, nil
}

// Get returns a deep copy of the first document matching p, or
// (nil, false) when nothing matches.
func (t *Table) Get(p Predicate) (Document, bool, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.db.closed {
		return nil, false, ErrClosed
	}
	for _, doc := range t.db.tables[t.name] {
		if p(doc) {
			return copyDocument(doc), true, nil
		}
	}
	return nil, false, nil
}

// Update merges fields into every document matching p and returns the
// number of documents updated. Existing fields are overwritten;
// other fields are left alone.
func (t *Table) Update(fields Document, p Predicate) (int, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.db.closed {
		return 0, ErrClosed
	}
	updated := 0
	for _, doc := range t.db.tables[t.name] {
		if p(doc) {
			for k, v := range fields {
				doc[k] = copyValue(v)
			}
			updated++
		}
	}
	if updated > 0 {
		t.db.dirty = true
	}
	return updated, nil
}

// Remove deletes every document matching p and returns the number of
// documents removed. Removing nothing is not an error.
func (t *Table) Remove(p Predicate) (int, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.db.closed {
		return 0, ErrClosed
	}
	docs := t.db.tables[t.name]
	kept := docs[:0]
	removed := 0
	for _, doc := range docs {
		if p(doc) {
			removed++
		} else {
			kept = append(kept, doc)
		}
	}
	if removed > 0 {
		t.db.tables[t.name] = kept
		t.db.dirty = true
	}
	return removed, nil
}

// All returns deep copies of every document in insertion order.
func (t *Table) All() ([]Document, error) {
	return t.Search(func(Document) bool { return true })
}

// Len returns the number of documents in the table.
func (t *Table) Len() (int, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.db.closed {
		return 0, ErrClosed
	}
	return len(t.db.tables[t.name]), nil
}

// -----------------------------------------------------------------------------
// Value Helpers
// -----------------------------------------------------------------------------

// equalValues compares two document values, treating all numeric types
// as equivalent. JSON decoding turns every number into float64, so a
// predicate built from an int must still match a loaded document.
func equalValues(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// copyDocument deep-copies a document so table internals never alias
// caller-held maps.
func copyDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case Document:
		return copyDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
