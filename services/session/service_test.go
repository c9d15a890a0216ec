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
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/autoyou/services/session/docstore"
)

// newTestService creates an in-memory service for tests.
func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// userEvent builds a user-authored text event.
func userEvent(id string, ts float64, text string) *Event {
	return &Event{
		ID:        id,
		Author:    "user",
		Timestamp: ts,
		Content:   &Content{Role: "user", Parts: []Part{{Text: text}}},
	}
}

// modelEvent builds a model-authored text event.
func modelEvent(id string, ts float64, text string) *Event {
	return &Event{
		ID:        id,
		Author:    "model",
		Timestamp: ts,
		Content:   &Content{Role: "model", Parts: []Part{{Text: text}}},
	}
}

// transferEvent builds an event carrying a hand-off function call.
func transferEvent(id string, ts float64, target string) *Event {
	return &Event{
		ID:        id,
		Author:    "model",
		Timestamp: ts,
		Actions: &Actions{
			FunctionCalls: []FunctionCall{
				{Name: TransferFunctionName, Args: map[string]any{"agent_name": target}},
			},
		},
	}
}

// TestCreateSessionGeneratesID verifies a collision-resistant ID is
// generated when none is supplied.
func TestCreateSessionGeneratesID(t *testing.T) {
	svc := newTestService(t)

	sess, err := svc.CreateSession(context.Background(), "autoyou", "u1", nil, "")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.ID)
	assert.Empty(t, sess.Events)

	other, err := svc.CreateSession(context.Background(), "autoyou", "u1", nil, "")
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, other.ID)
}

// TestCreateSessionValidatesIdentifiers verifies bad keys are rejected
// before any write happens.
func TestCreateSessionValidatesIdentifiers(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateSession(context.Background(), "", "u1", nil, "")
	assert.Error(t, err)

	_, err = svc.CreateSession(context.Background(), "autoyou", "", nil, "")
	assert.Error(t, err)

	_, err = svc.CreateSession(context.Background(), "autoyou", "u1", nil, " padded ")
	assert.Error(t, err)

	n, err := svc.sessions.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestCreateSessionStateScopes verifies the three-way state split:
// prefixed keys land in the shared app/user documents while the
// session document keeps only session-scope keys, and the returned
// state is the full merge.
func TestCreateSessionStateScopes(t *testing.T) {
	svc := newTestService(t)

	state := map[string]any{
		"app:theme": "dark",
		"user:name": "jo",
		"count":     1,
	}
	sess, err := svc.CreateSession(context.Background(), "autoyou", "u1", state, "s1")
	require.NoError(t, err)

	assert.Equal(t, "dark", sess.State["app:theme"])
	assert.Equal(t, "jo", sess.State["user:name"])
	assert.Equal(t, 1, sess.State["count"])

	// Shared documents hold the stripped keys.
	appDoc, ok, err := svc.appState.Get(docstore.Eq("app_name", "autoyou"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dark", stateFromDoc(appDoc)["theme"])

	userDoc, ok, err := svc.userState.Get(userKey("autoyou", "u1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "jo", stateFromDoc(userDoc)["name"])

	// Session document holds only the session-scope key.
	sessDoc, ok, err := svc.sessions.Get(sessionKey("autoyou", "u1", "s1"))
	require.NoError(t, err)
	require.True(t, ok)
	sessionState := stateFromDoc(sessDoc)
	assert.Equal(t, 1, sessionState["count"])
	assert.NotContains(t, sessionState, "app:theme")
}

// TestCreateSessionSharesAppState verifies a second session for the
// same app sees app-scope state written by the first.
func TestCreateSessionSharesAppState(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateSession(context.Background(), "autoyou", "u1", map[string]any{"app:theme": "dark"}, "s1")
	require.NoError(t, err)

	sess2, err := svc.CreateSession(context.Background(), "autoyou", "u2", nil, "s2")
	require.NoError(t, err)
	assert.Equal(t, "dark", sess2.State["app:theme"])
}

// TestGetSessionNotFound verifies a missing session yields a nil
// result, not an error.
func TestGetSessionNotFound(t *testing.T) {
	svc := newTestService(t)

	sess, err := svc.GetSession(context.Background(), "autoyou", "u1", "missing", nil)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

// TestStateMergeIdempotence verifies an event state delta overwrites
// app-scope state and that an identical second delta is a no-op.
func TestStateMergeIdempotence(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", map[string]any{"app:x": 1}, "s1")
	require.NoError(t, err)

	delta := &Event{
		ID:        "e1",
		Author:    "model",
		Timestamp: 100,
		Actions:   &Actions{StateDelta: map[string]any{"app:x": 2}},
	}
	_, err = svc.AppendEvent(ctx, sess, delta)
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, "autoyou", "u1", "s1", nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.State["app:x"])

	delta2 := &Event{
		ID:        "e2",
		Author:    "model",
		Timestamp: 101,
		Actions:   &Actions{StateDelta: map[string]any{"app:x": 2}},
	}
	_, err = svc.AppendEvent(ctx, sess, delta2)
	require.NoError(t, err)

	got, err = svc.GetSession(ctx, "autoyou", "u1", "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, got.State["app:x"])
}

// TestAppendEventDerivesUserQuestion verifies the interaction fact for
// a user text event.
func TestAppendEventDerivesUserQuestion(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	_, err = svc.AppendEvent(ctx, sess, userEvent("e1", 100, "Hi"))
	require.NoError(t, err)

	facts, err := svc.sessionInteractions("autoyou", "u1", "s1")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.True(t, facts[0].IsUserQuestion)
	assert.False(t, facts[0].IsAgentResponse)
	assert.Equal(t, "Hi", facts[0].ContentSummary)
	assert.Equal(t, ContentTypeUserInput, facts[0].ContentType)
}

// TestAppendEventDerivesTransfer verifies hand-off extraction from
// function-call actions.
func TestAppendEventDerivesTransfer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	_, err = svc.AppendEvent(ctx, sess, transferEvent("e1", 100, "robinhood_portfolio"))
	require.NoError(t, err)

	facts, err := svc.sessionInteractions("autoyou", "u1", "s1")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.True(t, facts[0].IsTransferToAgent)
	assert.Equal(t, "robinhood_portfolio", facts[0].AgentName)
}

// TestAppendEventMalformedContent verifies derivation degrades
// gracefully: a content payload with no text still sets the author
// booleans and leaves the summary empty.
func TestAppendEventMalformedContent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	event := &Event{
		ID:        "e1",
		Author:    "user",
		Timestamp: 100,
		Content:   &Content{Role: "user"},
	}
	_, err = svc.AppendEvent(ctx, sess, event)
	require.NoError(t, err)

	facts, err := svc.sessionInteractions("autoyou", "u1", "s1")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.True(t, facts[0].IsUserQuestion)
	assert.Empty(t, facts[0].ContentSummary)
}

// TestAppendEventSummaryTruncation verifies long content is capped at
// 200 characters in the derived fact.
func TestAppendEventSummaryTruncation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.AppendEvent(ctx, sess, userEvent("e1", 100, string(long)))
	require.NoError(t, err)

	facts, err := svc.sessionInteractions("autoyou", "u1", "s1")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Len(t, facts[0].ContentSummary, contentSummaryLimit)
}

// TestAppendEventPartial verifies partial events are persisted but
// skipped by the in-memory append contract.
func TestAppendEventPartial(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	partial := userEvent("e1", 100, "thinking")
	partial.Partial = true
	_, err = svc.AppendEvent(ctx, sess, partial)
	require.NoError(t, err)
	assert.Empty(t, sess.Events)

	_, err = svc.AppendEvent(ctx, sess, userEvent("e2", 101, "done"))
	require.NoError(t, err)
	require.Len(t, sess.Events, 1)
	assert.Equal(t, "e2", sess.Events[0].ID)

	// Both events are on disk regardless.
	got, err := svc.GetSession(ctx, "autoyou", "u1", "s1", nil)
	require.NoError(t, err)
	assert.Len(t, got.Events, 2)
}

// TestAppendEventNilArgs verifies the nil guards.
func TestAppendEventNilArgs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	_, err = svc.AppendEvent(ctx, nil, userEvent("e1", 100, "hi"))
	assert.ErrorIs(t, err, ErrNilSession)

	_, err = svc.AppendEvent(ctx, sess, nil)
	assert.ErrorIs(t, err, ErrNilEvent)
}

// TestGetSessionEventOrdering verifies events come back ascending by
// timestamp even when appended out of order.
func TestGetSessionEventOrdering(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	_, err = svc.AppendEvent(ctx, sess, userEvent("e2", 200, "second"))
	require.NoError(t, err)
	_, err = svc.AppendEvent(ctx, sess, userEvent("e1", 100, "first"))
	require.NoError(t, err)
	_, err = svc.AppendEvent(ctx, sess, userEvent("e3", 300, "third"))
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, "autoyou", "u1", "s1", nil)
	require.NoError(t, err)
	require.Len(t, got.Events, 3)
	assert.Equal(t, "e1", got.Events[0].ID)
	assert.Equal(t, "e2", got.Events[1].ID)
	assert.Equal(t, "e3", got.Events[2].ID)
}

// TestGetSessionMixedPrecisionTimestamps verifies ordering across
// whole-second and fractional-second timestamps. The stored RFC3339
// form trims trailing zeros, so a whole-second value is a shorter
// string than a fractional one in the same second; ordering must not
// depend on string comparison.
func TestGetSessionMixedPrecisionTimestamps(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	_, err = svc.AppendEvent(ctx, sess, userEvent("e-frac", 100.5, "later"))
	require.NoError(t, err)
	_, err = svc.AppendEvent(ctx, sess, userEvent("e-whole", 100, "earlier"))
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, "autoyou", "u1", "s1", nil)
	require.NoError(t, err)
	require.Len(t, got.Events, 2)
	assert.Equal(t, "e-whole", got.Events[0].ID)
	assert.Equal(t, "e-frac", got.Events[1].ID)

	// The "most recent" cap must keep the fractional (newer) event.
	capped, err := svc.GetSession(ctx, "autoyou", "u1", "s1", &GetSessionConfig{NumRecentEvents: 1})
	require.NoError(t, err)
	require.Len(t, capped.Events, 1)
	assert.Equal(t, "e-frac", capped.Events[0].ID)
}

// TestGetSessionRecentEventsCap verifies NumRecentEvents keeps the
// newest N, still in ascending order.
func TestGetSessionRecentEventsCap(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)
	for i, ts := range []float64{100, 200, 300} {
		_, err = svc.AppendEvent(ctx, sess, userEvent([]string{"e1", "e2", "e3"}[i], ts, "m"))
		require.NoError(t, err)
	}

	got, err := svc.GetSession(ctx, "autoyou", "u1", "s1", &GetSessionConfig{NumRecentEvents: 2})
	require.NoError(t, err)
	require.Len(t, got.Events, 2)
	assert.Equal(t, "e2", got.Events[0].ID)
	assert.Equal(t, "e3", got.Events[1].ID)
}

// TestGetSessionAfterTimestamp verifies the inclusive lower bound.
func TestGetSessionAfterTimestamp(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)
	for i, ts := range []float64{100, 200, 300} {
		_, err = svc.AppendEvent(ctx, sess, userEvent([]string{"e1", "e2", "e3"}[i], ts, "m"))
		require.NoError(t, err)
	}

	got, err := svc.GetSession(ctx, "autoyou", "u1", "s1", &GetSessionConfig{AfterTimestamp: 200})
	require.NoError(t, err)
	require.Len(t, got.Events, 2)
	assert.Equal(t, "e2", got.Events[0].ID)
	assert.Equal(t, "e3", got.Events[1].ID)
}

// TestGetSessionEventRoundTrip verifies content and actions survive
// the document round trip.
func TestGetSessionEventRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	event := transferEvent("e1", 100, "robinhood_trading")
	event.InvocationID = "inv-1"
	event.Branch = "main"
	event.TurnComplete = true
	_, err = svc.AppendEvent(ctx, sess, event)
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, "autoyou", "u1", "s1", nil)
	require.NoError(t, err)
	require.Len(t, got.Events, 1)

	loaded := got.Events[0]
	assert.Equal(t, "inv-1", loaded.InvocationID)
	assert.Equal(t, "main", loaded.Branch)
	assert.True(t, loaded.TurnComplete)
	assert.InDelta(t, 100, loaded.Timestamp, 0.001)
	require.NotNil(t, loaded.Actions)
	target, ok := loaded.Actions.TransferTarget()
	require.True(t, ok)
	assert.Equal(t, "robinhood_trading", target)
}

// TestListSessions verifies listing returns every session for the
// user with empty event lists.
func TestListSessions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	s1, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "autoyou", "u1", nil, "s2")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "autoyou", "other", nil, "s3")
	require.NoError(t, err)

	_, err = svc.AppendEvent(ctx, s1, userEvent("e1", 100, "hi"))
	require.NoError(t, err)

	sessions, err := svc.ListSessions(ctx, "autoyou", "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, sess := range sessions {
		assert.Empty(t, sess.Events)
	}
}

// TestDeleteSessionCascades verifies delete removes the session, its
// events, and its interaction facts, and is idempotent.
func TestDeleteSessionCascades(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)
	_, err = svc.AppendEvent(ctx, sess, userEvent("e1", 100, "hi"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(ctx, "autoyou", "u1", "s1"))

	got, err := svc.GetSession(ctx, "autoyou", "u1", "s1", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	events, err := svc.events.Search(eventKey("autoyou", "u1", "s1"))
	require.NoError(t, err)
	assert.Empty(t, events)

	facts, err := svc.sessionInteractions("autoyou", "u1", "s1")
	require.NoError(t, err)
	assert.Empty(t, facts)

	// Double deletion is a no-op.
	assert.NoError(t, svc.DeleteSession(ctx, "autoyou", "u1", "s1"))
}

// TestGetAgentInteractionSummary verifies counts, deduplicated agent
// list, and ascending timeline.
func TestGetAgentInteractionSummary(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	_, err = svc.AppendEvent(ctx, sess, userEvent("e1", 100, "portfolio?"))
	require.NoError(t, err)
	_, err = svc.AppendEvent(ctx, sess, transferEvent("e2", 110, "robinhood_portfolio"))
	require.NoError(t, err)
	_, err = svc.AppendEvent(ctx, sess, modelEvent("e3", 120, "here it is"))
	require.NoError(t, err)
	_, err = svc.AppendEvent(ctx, sess, transferEvent("e4", 130, "robinhood_portfolio"))
	require.NoError(t, err)

	summary, err := svc.GetAgentInteractionSummary(ctx, "autoyou", "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalInteractions)
	assert.Equal(t, 1, summary.UserQuestions)
	assert.Equal(t, 2, summary.AgentResponses)
	assert.Equal(t, 2, summary.AgentTransfers)
	assert.Equal(t, []string{"robinhood_portfolio"}, summary.AgentsUsed)

	require.Len(t, summary.Timeline, 4)
	assert.Equal(t, "user", summary.Timeline[0].Author)
	assert.InDelta(t, 100, summary.Timeline[0].Timestamp, 0.001)
	assert.InDelta(t, 130, summary.Timeline[3].Timestamp, 0.001)
}

// TestPersistenceRoundTrip verifies a created session with events
// survives close and reopen of the backing file.
func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()

	svc, err := Open(Config{DBPath: path})
	require.NoError(t, err)

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", map[string]any{"app:x": 1, "note": "keep"}, "s1")
	require.NoError(t, err)
	_, err = svc.AppendEvent(ctx, sess, userEvent("e1", 100, "Hi"))
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	svc2, err := Open(Config{DBPath: path})
	require.NoError(t, err)
	defer svc2.Close()

	got, err := svc2.GetSession(ctx, "autoyou", "u1", "s1", nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "keep", got.State["note"])
	// Numeric state values come back as JSON float64 after reload.
	assert.InDelta(t, 1, got.State["app:x"].(float64), 0.001)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "Hi", got.Events[0].Content.Parts[0].Text)
}

// TestAppendEventBumpsUpdatedAt verifies the session document's
// updated_at moves forward on append.
func TestAppendEventBumpsUpdatedAt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	sess, err := svc.CreateSession(ctx, "autoyou", "u1", nil, "s1")
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(time.Hour) }
	_, err = svc.AppendEvent(ctx, sess, userEvent("e1", 100, "hi"))
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, "autoyou", "u1", "s1", nil)
	require.NoError(t, err)
	assert.WithinDuration(t, base.Add(time.Hour), got.LastUpdateTime, time.Second)
}
