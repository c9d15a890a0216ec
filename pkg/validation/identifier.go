// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for caller-provided identifiers that are
// used in document-store predicates and persisted verbatim into the shared
// session database. Using these validators keeps malformed or hostile keys
// (control characters, absurd lengths) out of the durable store.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxIdentifierLength bounds app names, user IDs, and session IDs.
// Generous enough for UUIDs and reverse-DNS app names.
const MaxIdentifierLength = 256

// ValidateIdentifier validates a session-store identifier (app name,
// user ID, or session ID).
//
// Valid identifiers:
//   - 1 to 256 characters
//   - no control characters (including newlines and tabs)
//   - no leading or trailing whitespace
//
// The field name is included in the error for caller context.
//
// Example:
//
//	if err := validation.ValidateIdentifier("app_name", appName); err != nil {
//	    return nil, err
//	}
//	// Safe to use in a document-store predicate
func ValidateIdentifier(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if len(value) > MaxIdentifierLength {
		return fmt.Errorf("%s exceeds %d characters", field, MaxIdentifierLength)
	}
	if strings.TrimSpace(value) != value {
		return fmt.Errorf("%s has leading or trailing whitespace: %q", field, value)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s contains control characters: %q", field, value)
		}
	}
	return nil
}

// ValidateSessionKey validates the composite (app_name, user_id, session_id)
// key. Returns the first validation failure encountered.
func ValidateSessionKey(appName, userID, sessionID string) error {
	if err := ValidateIdentifier("app_name", appName); err != nil {
		return err
	}
	if err := ValidateIdentifier("user_id", userID); err != nil {
		return err
	}
	return ValidateIdentifier("session_id", sessionID)
}
