// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session persists agent conversations and derives interaction
// analytics from them.
//
// The package has two entry points sharing one document store:
//
//   - Service: durable CRUD over sessions and events, with automatic
//     derivation of one interaction fact per appended event and
//     three-tier (app/user/session) state scoping.
//   - Analytics: read-only aggregation over the stored facts — usage
//     statistics, conversation-pattern detection, question clustering.
//
// Storage is a single JSON document file (see the docstore package)
// holding five tables: sessions, events, app_state, user_state, and
// agent_interactions. The file assumes one owning process; call Flush
// before another process reads it.
package session

import (
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// State Scoping
// -----------------------------------------------------------------------------

const (
	// AppStatePrefix marks state keys shared by every user and session
	// of an app.
	AppStatePrefix = "app:"

	// UserStatePrefix marks state keys shared across one user's sessions.
	UserStatePrefix = "user:"
)

// TransferFunctionName is the reserved function-call name that hands a
// conversation off to another agent.
const TransferFunctionName = "transfer_to_agent"

// contentSummaryLimit caps interaction content summaries.
const contentSummaryLimit = 200

// questionPatternLimit caps the normalization key used to cluster
// free-text user questions.
const questionPatternLimit = 100

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

// Part is one piece of a message payload. Only text parts are
// interpreted by this package; anything else is carried opaquely.
type Part struct {
	// Text is the textual content, empty for non-text parts.
	Text string `json:"text,omitempty"`
}

// Content is the structured message payload of an event.
type Content struct {
	// Role is the producer-assigned role of the payload, if any.
	Role string `json:"role,omitempty"`

	// Parts are the message pieces in producer order.
	Parts []Part `json:"parts,omitempty"`
}

// FirstText returns the text of the first part, and whether the
// content has a first text part at all. Never panics on malformed
// content.
func (c *Content) FirstText() (string, bool) {
	if c == nil || len(c.Parts) == 0 {
		return "", false
	}
	if c.Parts[0].Text == "" {
		return "", false
	}
	return c.Parts[0].Text, true
}

// FunctionCall records one function invocation carried on an event.
type FunctionCall struct {
	// Name is the function name (e.g. "transfer_to_agent").
	Name string `json:"name"`

	// Args are the call arguments.
	Args map[string]any `json:"args,omitempty"`
}

// StringArg returns the named argument as a string, and whether it was
// present with a string value.
func (c FunctionCall) StringArg(name string) (string, bool) {
	v, ok := c.Args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Actions is the structured side-effect descriptor of an event.
type Actions struct {
	// StateDelta carries state mutations keyed by the scoping prefixes.
	StateDelta map[string]any `json:"state_delta,omitempty"`

	// FunctionCalls are the function invocations made during the turn.
	FunctionCalls []FunctionCall `json:"function_calls,omitempty"`
}

// TransferTarget returns the agent name of the FIRST transfer_to_agent
// call in the action list, and whether one exists. Later transfer
// calls on the same event are ignored.
func (a *Actions) TransferTarget() (string, bool) {
	if a == nil {
		return "", false
	}
	for _, call := range a.FunctionCalls {
		if call.Name != TransferFunctionName {
			continue
		}
		name, _ := call.StringArg("agent_name")
		return name, true
	}
	return "", false
}

// Event is one recorded conversation turn.
//
// Events are produced by the agent framework, persisted exactly once
// via Service.AppendEvent, and immutable thereafter.
type Event struct {
	// ID is the producer-supplied, globally unique event identifier.
	ID string `json:"id"`

	// InvocationID ties the event to one producer invocation.
	InvocationID string `json:"invocation_id"`

	// Author identifies the speaker: "user", "model", or a named
	// sub-agent.
	Author string `json:"author"`

	// Branch is the conversation branch tag, if any.
	Branch string `json:"branch,omitempty"`

	// Timestamp is epoch seconds (fractional). Kept numeric for fast
	// ordering and duration arithmetic.
	Timestamp float64 `json:"timestamp"`

	// Content is the message payload, nil for contentless events.
	Content *Content `json:"content,omitempty"`

	// Actions is the side-effect descriptor, nil when absent.
	Actions *Actions `json:"actions,omitempty"`

	// LongRunningToolIDs lists tool invocations still in flight.
	LongRunningToolIDs []string `json:"long_running_tool_ids,omitempty"`

	// GroundingMetadata is carried opaquely for the producer.
	GroundingMetadata map[string]any `json:"grounding_metadata,omitempty"`

	// Partial marks streaming fragments that do not complete a turn.
	Partial bool `json:"partial,omitempty"`

	// TurnComplete marks the final event of a turn.
	TurnComplete bool `json:"turn_complete,omitempty"`

	// ErrorCode and ErrorMessage carry producer-side failures.
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Interrupted marks turns cut short by the user.
	Interrupted bool `json:"interrupted,omitempty"`
}

// -----------------------------------------------------------------------------
// Sessions
// -----------------------------------------------------------------------------

// Session is a single continuous conversation instance for one user
// within one application.
//
// The composite key (AppName, UserID, ID) is unique per store. State
// is the three-way merge of app-, user-, and session-scope state at
// read time; app and user keys carry their scoping prefixes.
type Session struct {
	AppName string `json:"app_name"`
	UserID  string `json:"user_id"`
	ID      string `json:"id"`

	// State is the merged, prefix-recomposed state mapping.
	State map[string]any `json:"state"`

	// Events are the session's events in ascending timestamp order.
	// Empty in ListSessions results.
	Events []*Event `json:"events"`

	// LastUpdateTime mirrors the stored updated_at timestamp.
	LastUpdateTime time.Time `json:"last_update_time"`
}

// GetSessionConfig narrows what GetSession loads.
type GetSessionConfig struct {
	// NumRecentEvents caps the result to the N most recent events.
	// Zero means no cap.
	NumRecentEvents int

	// AfterTimestamp drops events before this epoch-seconds bound
	// (inclusive). Zero means no bound.
	AfterTimestamp float64
}

// -----------------------------------------------------------------------------
// Interaction Facts
// -----------------------------------------------------------------------------

// Interaction content types.
const (
	ContentTypeUserInput     = "user_input"
	ContentTypeAgentResponse = "agent_response"
)

// Interaction is the derived, queryable summary of one event's role in
// the conversation. Exactly one exists per stored event.
//
// The three booleans are independent: an event can simultaneously be a
// model response and a transfer.
type Interaction struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	EventID   string `json:"event_id"`

	// Author is the speaker copied from the event.
	Author string `json:"author"`

	// Timestamp is the event's numeric epoch-seconds timestamp, kept
	// numeric for ordering, pairing, and windowing arithmetic.
	Timestamp float64 `json:"timestamp"`

	// ContentType is "user_input", "agent_response", or empty.
	ContentType string `json:"content_type"`

	// ContentSummary is the first 200 characters of the event's first
	// text part, or empty when no text was extractable.
	ContentSummary string `json:"content_summary"`

	// AgentName is the hand-off target for transfer interactions.
	AgentName string `json:"agent_name"`

	IsUserQuestion    bool `json:"is_user_question"`
	IsAgentResponse   bool `json:"is_agent_response"`
	IsTransferToAgent bool `json:"is_transfer_to_agent"`

	// CreatedAt is when the fact was derived.
	CreatedAt time.Time `json:"created_at"`
}

// InteractionSummary aggregates one session's interaction facts.
type InteractionSummary struct {
	TotalInteractions int `json:"total_interactions"`
	UserQuestions     int `json:"user_questions"`
	AgentResponses    int `json:"agent_responses"`
	AgentTransfers    int `json:"agent_transfers"`

	// AgentsUsed is the deduplicated list of transfer targets.
	AgentsUsed []string `json:"agents_used"`

	// Timeline is every interaction in ascending timestamp order.
	Timeline []TimelineEntry `json:"interaction_timeline"`
}

// TimelineEntry is one row of an interaction timeline.
type TimelineEntry struct {
	Timestamp float64 `json:"timestamp"`
	Author    string  `json:"author"`
	Type      string  `json:"type"`
	Summary   string  `json:"summary"`
	AgentName string  `json:"agent_name"`
}

// -----------------------------------------------------------------------------
// Shared Helpers
// -----------------------------------------------------------------------------

// summarize truncates text to the interaction summary limit,
// counting characters rather than bytes.
func summarize(text string) string {
	return firstRunes(text, contentSummaryLimit)
}

// firstRunes returns the first n characters of s.
func firstRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// normalizeQuestion builds the clustering key for a user question:
// the first 100 characters of its summary, lowercased and stripped.
func normalizeQuestion(summary string) string {
	return strings.TrimSpace(strings.ToLower(firstRunes(summary, questionPatternLimit)))
}

// epochToTime converts fractional epoch seconds to a UTC time.
func epochToTime(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// timeToEpoch converts a time to fractional epoch seconds.
func timeToEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// isoFormat renders a timestamp the way every table stores it.
func isoFormat(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseISO parses a stored timestamp. Returns the zero time on
// malformed input; stored values are always written by isoFormat, so
// malformed input only occurs with hand-edited files.
func parseISO(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
