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
	"github.com/AleutianAI/autoyou/services/session/docstore"
)

// Converters between the typed domain structs and the schemaless
// documents the store holds. Everything is written as plain maps,
// slices, and primitives so a document read back in-process has the
// same shape as one re-parsed from the JSON file.

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

// eventToDoc flattens an event into its stored document. The
// timestamp is stored as an ISO-8601 UTC string; readers order events
// by parsing it back, since the format trims trailing zeros.
func eventToDoc(sess *Session, e *Event) docstore.Document {
	return docstore.Document{
		"id":                    e.ID,
		"app_name":              sess.AppName,
		"user_id":               sess.UserID,
		"session_id":            sess.ID,
		"invocation_id":         e.InvocationID,
		"author":                e.Author,
		"branch":                e.Branch,
		"timestamp":             isoFormat(epochToTime(e.Timestamp)),
		"content":               contentToDoc(e.Content),
		"actions":               actionsToDoc(e.Actions),
		"long_running_tool_ids": stringsToAny(e.LongRunningToolIDs),
		"grounding_metadata":    e.GroundingMetadata,
		"partial":               e.Partial,
		"turn_complete":         e.TurnComplete,
		"error_code":            e.ErrorCode,
		"error_message":         e.ErrorMessage,
		"interrupted":           e.Interrupted,
	}
}

// docToEvent rebuilds an event from its stored document. Fields that
// are missing or of an unexpected shape come back zero-valued.
func docToEvent(doc docstore.Document) *Event {
	e := &Event{
		ID:                 docString(doc, "id"),
		InvocationID:       docString(doc, "invocation_id"),
		Author:             docString(doc, "author"),
		Branch:             docString(doc, "branch"),
		Timestamp:          timeToEpoch(parseISO(docString(doc, "timestamp"))),
		Content:            docToContent(doc["content"]),
		Actions:            docToActions(doc["actions"]),
		LongRunningToolIDs: anyToStrings(doc["long_running_tool_ids"]),
		Partial:            docBool(doc, "partial"),
		TurnComplete:       docBool(doc, "turn_complete"),
		ErrorCode:          docString(doc, "error_code"),
		ErrorMessage:       docString(doc, "error_message"),
		Interrupted:        docBool(doc, "interrupted"),
	}
	if gm, ok := doc["grounding_metadata"].(map[string]any); ok {
		e.GroundingMetadata = gm
	}
	return e
}

func contentToDoc(c *Content) any {
	if c == nil {
		return nil
	}
	parts := make([]any, 0, len(c.Parts))
	for _, p := range c.Parts {
		part := docstore.Document{}
		if p.Text != "" {
			part["text"] = p.Text
		}
		parts = append(parts, part)
	}
	doc := docstore.Document{"parts": parts}
	if c.Role != "" {
		doc["role"] = c.Role
	}
	return doc
}

func docToContent(v any) *Content {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	c := &Content{Role: docString(m, "role")}
	if parts, ok := m["parts"].([]any); ok {
		for _, pv := range parts {
			pm, ok := pv.(map[string]any)
			if !ok {
				continue
			}
			c.Parts = append(c.Parts, Part{Text: docString(pm, "text")})
		}
	}
	return c
}

func actionsToDoc(a *Actions) any {
	if a == nil {
		return nil
	}
	doc := docstore.Document{}
	if len(a.StateDelta) > 0 {
		doc["state_delta"] = a.StateDelta
	}
	if len(a.FunctionCalls) > 0 {
		calls := make([]any, 0, len(a.FunctionCalls))
		for _, fc := range a.FunctionCalls {
			calls = append(calls, docstore.Document{
				"name": fc.Name,
				"args": fc.Args,
			})
		}
		doc["function_calls"] = calls
	}
	return doc
}

func docToActions(v any) *Actions {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	a := &Actions{}
	if delta, ok := m["state_delta"].(map[string]any); ok {
		a.StateDelta = delta
	}
	if calls, ok := m["function_calls"].([]any); ok {
		for _, cv := range calls {
			cm, ok := cv.(map[string]any)
			if !ok {
				continue
			}
			fc := FunctionCall{Name: docString(cm, "name")}
			if args, ok := cm["args"].(map[string]any); ok {
				fc.Args = args
			}
			a.FunctionCalls = append(a.FunctionCalls, fc)
		}
	}
	return a
}

// -----------------------------------------------------------------------------
// Interaction Facts
// -----------------------------------------------------------------------------

// interactionToDoc flattens an interaction fact. Empty optional
// strings are stored as nulls so the on-disk document distinguishes
// "no content" from an empty summary.
func interactionToDoc(f Interaction) docstore.Document {
	return docstore.Document{
		"app_name":             f.AppName,
		"user_id":              f.UserID,
		"session_id":           f.SessionID,
		"event_id":             f.EventID,
		"author":               f.Author,
		"timestamp":            f.Timestamp,
		"content_type":         nullableString(f.ContentType),
		"content_summary":      nullableString(f.ContentSummary),
		"agent_name":           nullableString(f.AgentName),
		"is_user_question":     f.IsUserQuestion,
		"is_agent_response":    f.IsAgentResponse,
		"is_transfer_to_agent": f.IsTransferToAgent,
		"created_at":           isoFormat(f.CreatedAt),
	}
}

func docToInteraction(doc docstore.Document) Interaction {
	return Interaction{
		AppName:           docString(doc, "app_name"),
		UserID:            docString(doc, "user_id"),
		SessionID:         docString(doc, "session_id"),
		EventID:           docString(doc, "event_id"),
		Author:            docString(doc, "author"),
		Timestamp:         docFloat(doc, "timestamp"),
		ContentType:       docString(doc, "content_type"),
		ContentSummary:    docString(doc, "content_summary"),
		AgentName:         docString(doc, "agent_name"),
		IsUserQuestion:    docBool(doc, "is_user_question"),
		IsAgentResponse:   docBool(doc, "is_agent_response"),
		IsTransferToAgent: docBool(doc, "is_transfer_to_agent"),
		CreatedAt:         parseISO(docString(doc, "created_at")),
	}
}

// -----------------------------------------------------------------------------
// Field Helpers
// -----------------------------------------------------------------------------

// docString reads a string field, "" when absent or not a string.
func docString(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

// docBool reads a bool field, false when absent or not a bool.
func docBool(doc map[string]any, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

// docFloat reads a numeric field. JSON numbers decode as float64, but
// in-process documents may still hold int values.
func docFloat(doc map[string]any, key string) float64 {
	switch n := doc[key].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringsToAny(ss []string) []any {
	if len(ss) == 0 {
		return nil
	}
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

func anyToStrings(v any) []string {
	vs, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(vs))
	for _, item := range vs {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
