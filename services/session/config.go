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
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultDBPath is the conventional session database filename.
const DefaultDBPath = "autoyou_sessions.json"

// configValidate is the validator instance for session configuration.
var configValidate = validator.New()

// Config configures a session Service.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// the Service is constructed.
type Config struct {
	// DBPath is the JSON file backing the document store.
	// Required unless InMemory is true.
	DBPath string `json:"db_path" yaml:"db_path" validate:"required_without=InMemory"`

	// InMemory disables disk persistence entirely. Useful for testing.
	InMemory bool `json:"in_memory" yaml:"in_memory"`

	// Logger receives structured logs from the service. If nil, the
	// default logging destinations are used.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		DBPath: DefaultDBPath,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory: true,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}
	return nil
}

// LoadConfig reads a Config from a YAML file.
//
// Description:
//
//	Parses the file at path into a Config starting from
//	DefaultConfig(), so omitted fields keep their defaults. The
//	result is validated before being returned.
//
// Inputs:
//
//	path - YAML configuration file. Must exist.
//
// Outputs:
//
//	Config - The parsed configuration.
//	error - Non-nil on read, parse, or validation failure.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
