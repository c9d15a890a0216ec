// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies production defaults validate.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.False(t, cfg.InMemory)
}

// TestInMemoryConfig verifies the testing preset needs no path.
func TestInMemoryConfig(t *testing.T) {
	cfg := InMemoryConfig()
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.InMemory)
}

// TestValidateRejectsEmpty verifies a path is required for persistent
// mode.
func TestValidateRejectsEmpty(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.Validate())
}

// TestLoadConfig verifies YAML parsing over defaults.
func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /tmp/custom.json\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.json", cfg.DBPath)
}

// TestLoadConfigMissingFile verifies a clear error for a missing file.
func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// TestLoadConfigMalformed verifies parse failures surface.
func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: [unclosed\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
