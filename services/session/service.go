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
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/autoyou/pkg/logging"
	"github.com/AleutianAI/autoyou/pkg/validation"
	"github.com/AleutianAI/autoyou/services/session/docstore"
)

// -----------------------------------------------------------------------------
// Service Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilSession is returned when AppendEvent receives a nil session.
	ErrNilSession = errors.New("session must not be nil")

	// ErrNilEvent is returned when AppendEvent receives a nil event.
	ErrNilEvent = errors.New("event must not be nil")
)

// -----------------------------------------------------------------------------
// Service Tracer
// -----------------------------------------------------------------------------

var sessionTracer = otel.Tracer("autoyou.session")

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

// Service is the durable session store.
//
// Description:
//
//	Owns five document-store tables (sessions, events, app_state,
//	user_state, agent_interactions) and implements the session
//	lifecycle, event append with layered state merging, and automatic
//	interaction-fact derivation from each appended event.
//
//	Reads that match nothing return nil results, never errors; only
//	storage-layer faults surface as errors. There is no atomicity
//	across the several writes of AppendEvent: a crash mid-append is
//	resolved by manual reconciliation, not by a WAL.
//
// Thread Safety: Safe for concurrent use within one process. The
// backing file assumes a single owning process; call Flush before any
// other process reads it.
type Service struct {
	db     *docstore.DB
	logger *slog.Logger

	sessions     *docstore.Table
	events       *docstore.Table
	appState     *docstore.Table
	userState    *docstore.Table
	interactions *docstore.Table

	// now is the clock; replaced in tests.
	now func() time.Time
}

// Open creates a Service backed by the configured document store.
//
// Description:
//
//	Validates cfg, opens (or creates) the document store, and binds
//	the five session tables. When cfg.Logger is nil the package-level
//	default logging destinations are used.
//
// Inputs:
//
//	cfg - Service configuration. See Config.
//
// Outputs:
//
//	*Service - The ready service. Caller must call Close() when done.
//	error - Non-nil if cfg is invalid or the store cannot be opened.
//
// Example:
//
//	svc, err := session.Open(session.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("open session store: %w", err)
//	}
//	defer svc.Close()
func Open(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default().Slog()
	}

	db, err := docstore.Open(docstore.Config{
		Path:     cfg.DBPath,
		InMemory: cfg.InMemory,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	svc := NewService(db, logger)
	svc.logger.Info("session service initialized", "db_path", cfg.DBPath, "in_memory", cfg.InMemory)
	return svc, nil
}

// NewService binds a Service to an already-open document store.
//
// The store instance is injected rather than ambient so tests can use
// an in-memory or temp-file store per test.
func NewService(db *docstore.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:           db,
		logger:       logger.With(slog.String("component", "session_service")),
		sessions:     db.Table("sessions"),
		events:       db.Table("events"),
		appState:     db.Table("app_state"),
		userState:    db.Table("user_state"),
		interactions: db.Table("agent_interactions"),
		now:          time.Now,
	}
}

// Flush forces buffered writes to durable storage.
func (s *Service) Flush() error {
	if err := s.db.Flush(); err != nil {
		return err
	}
	s.logger.Debug("session service flushed")
	return nil
}

// Close flushes and releases the underlying store.
func (s *Service) Close() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	s.logger.Info("session service closed")
	return nil
}

// -----------------------------------------------------------------------------
// Session Lifecycle
// -----------------------------------------------------------------------------

// CreateSession creates a new session.
//
// Description:
//
//	Generates a session ID when none is supplied, partitions the
//	initial state into app/user/session scopes by prefix, merges the
//	app and user deltas into their shared state documents (creating
//	them if absent), and persists a fresh session document holding the
//	session-scope state. Writes to up to three tables.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	appName - Application name. Must be a valid identifier.
//	userID - User identifier. Must be a valid identifier.
//	state - Initial state delta, may be nil.
//	sessionID - Session identifier; a random UUID is generated when empty.
//
// Outputs:
//
//	*Session - The new session with fully merged state and no events.
//	error - Non-nil on invalid input or storage failure.
func (s *Service) CreateSession(ctx context.Context, appName, userID string, state map[string]any, sessionID string) (*Session, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := validation.ValidateSessionKey(appName, userID, sessionID); err != nil {
		return nil, err
	}

	_, span := sessionTracer.Start(ctx, "session.Service.CreateSession",
		trace.WithAttributes(
			attribute.String("app_name", appName),
			attribute.String("user_id", userID),
			attribute.String("session_id", sessionID),
		),
	)
	defer span.End()

	if state == nil {
		state = map[string]any{}
	}
	appDelta, userDelta, sessState := splitStateDelta(state)

	appState, err := s.upsertAppState(appName, appDelta)
	if err != nil {
		return nil, s.fail(span, "create", err)
	}
	userState, err := s.upsertUserState(appName, userID, userDelta)
	if err != nil {
		return nil, s.fail(span, "create", err)
	}

	now := s.now().UTC()
	if err := s.sessions.Insert(docstore.Document{
		"app_name":   appName,
		"user_id":    userID,
		"id":         sessionID,
		"state":      sessState,
		"created_at": isoFormat(now),
		"updated_at": isoFormat(now),
	}); err != nil {
		return nil, s.fail(span, "create", err)
	}

	sessionOpsTotal.WithLabelValues("create", "success").Inc()
	s.logger.Info("created session",
		"session_id", sessionID,
		"user_id", userID,
		"app_name", appName,
	)

	return &Session{
		AppName:        appName,
		UserID:         userID,
		ID:             sessionID,
		State:          mergeState(appState, userState, sessState),
		Events:         []*Event{},
		LastUpdateTime: now,
	}, nil
}

// GetSession loads an existing session.
//
// Description:
//
//	Returns (nil, nil) when the session does not exist; callers must
//	nil-check. Events are optionally filtered to those at or after
//	cfg.AfterTimestamp and capped to the cfg.NumRecentEvents most
//	recent, then returned in ascending timestamp order. The visible
//	state is recomputed from the CURRENT app/user/session state
//	documents, not from the snapshot taken at creation.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	appName, userID, sessionID - Composite session key.
//	cfg - Optional narrowing of the event list. May be nil.
//
// Outputs:
//
//	*Session - The session, or nil when not found.
//	error - Non-nil only on storage failure.
func (s *Service) GetSession(ctx context.Context, appName, userID, sessionID string, cfg *GetSessionConfig) (*Session, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	_, span := sessionTracer.Start(ctx, "session.Service.GetSession",
		trace.WithAttributes(
			attribute.String("app_name", appName),
			attribute.String("user_id", userID),
			attribute.String("session_id", sessionID),
		),
	)
	defer span.End()

	sessionDoc, ok, err := s.sessions.Get(sessionKey(appName, userID, sessionID))
	if err != nil {
		return nil, s.fail(span, "get", err)
	}
	if !ok {
		return nil, nil
	}

	eventDocs, err := s.events.Search(eventKey(appName, userID, sessionID))
	if err != nil {
		return nil, s.fail(span, "get", err)
	}

	if cfg != nil && cfg.AfterTimestamp != 0 {
		after := epochToTime(cfg.AfterTimestamp)
		kept := eventDocs[:0]
		for _, doc := range eventDocs {
			if !parseISO(docString(doc, "timestamp")).Before(after) {
				kept = append(kept, doc)
			}
		}
		eventDocs = kept
	}

	// Newest first so the "N most recent" cap is a cheap prefix, then
	// reversed into ascending order for the returned session. Stored
	// timestamps trim trailing zeros, so ordering must come from
	// parsed times, never string comparison.
	sort.SliceStable(eventDocs, func(i, j int) bool {
		return parseISO(docString(eventDocs[i], "timestamp")).After(parseISO(docString(eventDocs[j], "timestamp")))
	})
	if cfg != nil && cfg.NumRecentEvents > 0 && len(eventDocs) > cfg.NumRecentEvents {
		eventDocs = eventDocs[:cfg.NumRecentEvents]
	}

	events := make([]*Event, 0, len(eventDocs))
	for i := len(eventDocs) - 1; i >= 0; i-- {
		events = append(events, docToEvent(eventDocs[i]))
	}

	appState, err := s.getAppState(appName)
	if err != nil {
		return nil, s.fail(span, "get", err)
	}
	userState, err := s.getUserState(appName, userID)
	if err != nil {
		return nil, s.fail(span, "get", err)
	}

	sessionOpsTotal.WithLabelValues("get", "success").Inc()
	return &Session{
		AppName:        appName,
		UserID:         userID,
		ID:             sessionID,
		State:          mergeState(appState, userState, stateFromDoc(sessionDoc)),
		Events:         events,
		LastUpdateTime: parseISO(docString(sessionDoc, "updated_at")),
	}, nil
}

// ListSessions returns every session for a user in an app.
//
// Event lists are deliberately left empty: listing is a lightweight
// operation and callers load individual sessions for history.
func (s *Service) ListSessions(ctx context.Context, appName, userID string) ([]*Session, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	_, span := sessionTracer.Start(ctx, "session.Service.ListSessions",
		trace.WithAttributes(
			attribute.String("app_name", appName),
			attribute.String("user_id", userID),
		),
	)
	defer span.End()

	docs, err := s.sessions.Search(docstore.And(
		docstore.Eq("app_name", appName),
		docstore.Eq("user_id", userID),
	))
	if err != nil {
		return nil, s.fail(span, "list", err)
	}

	sessions := make([]*Session, 0, len(docs))
	for _, doc := range docs {
		sessions = append(sessions, &Session{
			AppName:        docString(doc, "app_name"),
			UserID:         docString(doc, "user_id"),
			ID:             docString(doc, "id"),
			State:          stateFromDoc(doc),
			Events:         []*Event{},
			LastUpdateTime: parseISO(docString(doc, "updated_at")),
		})
	}

	sessionOpsTotal.WithLabelValues("list", "success").Inc()
	return sessions, nil
}

// DeleteSession removes a session and cascades to its events and
// interaction facts. Deleting a nonexistent session is a no-op.
func (s *Service) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	if ctx == nil {
		return ErrNilContext
	}

	_, span := sessionTracer.Start(ctx, "session.Service.DeleteSession",
		trace.WithAttributes(
			attribute.String("app_name", appName),
			attribute.String("user_id", userID),
			attribute.String("session_id", sessionID),
		),
	)
	defer span.End()

	if _, err := s.sessions.Remove(sessionKey(appName, userID, sessionID)); err != nil {
		return s.fail(span, "delete", err)
	}
	if _, err := s.events.Remove(eventKey(appName, userID, sessionID)); err != nil {
		return s.fail(span, "delete", err)
	}
	if _, err := s.interactions.Remove(eventKey(appName, userID, sessionID)); err != nil {
		return s.fail(span, "delete", err)
	}

	sessionOpsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("deleted session",
		"session_id", sessionID,
		"user_id", userID,
		"app_name", appName,
	)
	return nil
}

// -----------------------------------------------------------------------------
// Event Append
// -----------------------------------------------------------------------------

// AppendEvent persists an event and its derived interaction fact.
//
// Description:
//
//	Stores the raw event document, derives and stores exactly one
//	interaction fact for it, applies any state delta carried under the
//	event's actions (same three-way split as creation), and bumps the
//	session's updated_at. The in-memory session is updated in place so
//	the caller's object stays consistent without a re-read: non-partial
//	events are appended to session.Events and advance LastUpdateTime.
//
//	Out-of-order timestamps are accepted; ordering is resolved at read
//	time. The three to six writes are not atomic as a group — a crash
//	mid-append requires manual reconciliation.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	sess - The session being appended to. Must not be nil.
//	event - The event to persist. Must not be nil.
//
// Outputs:
//
//	*Event - The same event, for chaining.
//	error - Non-nil on storage failure.
func (s *Service) AppendEvent(ctx context.Context, sess *Session, event *Event) (*Event, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if sess == nil {
		return nil, ErrNilSession
	}
	if event == nil {
		return nil, ErrNilEvent
	}

	_, span := sessionTracer.Start(ctx, "session.Service.AppendEvent",
		trace.WithAttributes(
			attribute.String("app_name", sess.AppName),
			attribute.String("session_id", sess.ID),
			attribute.String("event_id", event.ID),
			attribute.String("author", event.Author),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		appendEventDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.events.Insert(eventToDoc(sess, event)); err != nil {
		return nil, s.fail(span, "append", err)
	}

	if err := s.trackInteraction(sess, event); err != nil {
		return nil, s.fail(span, "append", err)
	}

	if event.Actions != nil && len(event.Actions.StateDelta) > 0 {
		appDelta, userDelta, sessDelta := splitStateDelta(event.Actions.StateDelta)
		if len(appDelta) > 0 {
			if err := s.updateAppState(sess.AppName, appDelta); err != nil {
				return nil, s.fail(span, "append", err)
			}
		}
		if len(userDelta) > 0 {
			if err := s.updateUserState(sess.AppName, sess.UserID, userDelta); err != nil {
				return nil, s.fail(span, "append", err)
			}
		}
		if len(sessDelta) > 0 {
			if err := s.updateSessionState(sess.AppName, sess.UserID, sess.ID, sessDelta); err != nil {
				return nil, s.fail(span, "append", err)
			}
		}
	}

	if _, err := s.sessions.Update(
		docstore.Document{"updated_at": isoFormat(s.now().UTC())},
		sessionKey(sess.AppName, sess.UserID, sess.ID),
	); err != nil {
		return nil, s.fail(span, "append", err)
	}

	// In-memory append contract: partial events are persisted but do
	// not enter the caller's event list.
	if !event.Partial {
		sess.Events = append(sess.Events, event)
		sess.LastUpdateTime = epochToTime(event.Timestamp)
	}

	sessionOpsTotal.WithLabelValues("append", "success").Inc()
	s.logger.Debug("appended event",
		"event_id", event.ID,
		"session_id", sess.ID,
		"author", event.Author,
	)
	return event, nil
}

// trackInteraction derives and persists the interaction fact for one
// event. Derivation is deterministic and never fails on malformed
// content: a missing or shapeless payload just leaves the summary
// empty while the booleans still reflect the author.
func (s *Service) trackInteraction(sess *Session, event *Event) error {
	fact := Interaction{
		AppName:   sess.AppName,
		UserID:    sess.UserID,
		SessionID: sess.ID,
		EventID:   event.ID,
		Author:    event.Author,
		Timestamp: event.Timestamp,
		CreatedAt: s.now().UTC(),
	}

	if event.Content != nil {
		switch event.Author {
		case "user":
			fact.IsUserQuestion = true
			fact.ContentType = ContentTypeUserInput
			if text, ok := event.Content.FirstText(); ok {
				fact.ContentSummary = summarize(text)
			}
		case "model":
			fact.IsAgentResponse = true
			fact.ContentType = ContentTypeAgentResponse
			if text, ok := event.Content.FirstText(); ok {
				fact.ContentSummary = summarize(text)
			}
		}
	}

	if target, ok := event.Actions.TransferTarget(); ok {
		fact.IsTransferToAgent = true
		fact.AgentName = target
	}

	if fact.IsUserQuestion {
		interactionsDerivedTotal.WithLabelValues("user_question").Inc()
	}
	if fact.IsAgentResponse {
		interactionsDerivedTotal.WithLabelValues("agent_response").Inc()
	}
	if fact.IsTransferToAgent {
		interactionsDerivedTotal.WithLabelValues("transfer").Inc()
	}

	return s.interactions.Insert(interactionToDoc(fact))
}

// -----------------------------------------------------------------------------
// Interaction Summary
// -----------------------------------------------------------------------------

// GetAgentInteractionSummary aggregates one session's interaction
// facts: counts by kind, the deduplicated list of transfer targets,
// and a timeline in ascending timestamp order. Pure read.
func (s *Service) GetAgentInteractionSummary(ctx context.Context, appName, userID, sessionID string) (*InteractionSummary, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	_, span := sessionTracer.Start(ctx, "session.Service.GetAgentInteractionSummary",
		trace.WithAttributes(
			attribute.String("app_name", appName),
			attribute.String("session_id", sessionID),
		),
	)
	defer span.End()

	facts, err := s.sessionInteractions(appName, userID, sessionID)
	if err != nil {
		return nil, s.fail(span, "summary", err)
	}

	summary := &InteractionSummary{
		TotalInteractions: len(facts),
		AgentsUsed:        []string{},
		Timeline:          make([]TimelineEntry, 0, len(facts)),
	}
	seen := make(map[string]bool)
	for _, fact := range facts {
		if fact.IsUserQuestion {
			summary.UserQuestions++
		}
		if fact.IsAgentResponse {
			summary.AgentResponses++
		}
		if fact.IsTransferToAgent {
			summary.AgentTransfers++
		}
		if fact.AgentName != "" && !seen[fact.AgentName] {
			seen[fact.AgentName] = true
			summary.AgentsUsed = append(summary.AgentsUsed, fact.AgentName)
		}
	}

	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].Timestamp < facts[j].Timestamp
	})
	for _, fact := range facts {
		summary.Timeline = append(summary.Timeline, TimelineEntry{
			Timestamp: fact.Timestamp,
			Author:    fact.Author,
			Type:      fact.ContentType,
			Summary:   fact.ContentSummary,
			AgentName: fact.AgentName,
		})
	}
	return summary, nil
}

// sessionInteractions loads one session's interaction facts in
// insertion order.
func (s *Service) sessionInteractions(appName, userID, sessionID string) ([]Interaction, error) {
	docs, err := s.interactions.Search(eventKey(appName, userID, sessionID))
	if err != nil {
		return nil, err
	}
	facts := make([]Interaction, 0, len(docs))
	for _, doc := range docs {
		facts = append(facts, docToInteraction(doc))
	}
	return facts, nil
}

// -----------------------------------------------------------------------------
// State Documents
// -----------------------------------------------------------------------------

// upsertAppState merges a delta into the app-scope state document,
// creating it when absent, and returns the resulting state.
func (s *Service) upsertAppState(appName string, delta map[string]any) (map[string]any, error) {
	doc, ok, err := s.appState.Get(docstore.Eq("app_name", appName))
	if err != nil {
		return nil, err
	}
	if ok {
		state := applyDelta(stateFromDoc(doc), delta)
		if _, err := s.appState.Update(docstore.Document{"state": state}, docstore.Eq("app_name", appName)); err != nil {
			return nil, err
		}
		return state, nil
	}
	if err := s.appState.Insert(docstore.Document{
		"app_name":   appName,
		"state":      delta,
		"created_at": isoFormat(s.now().UTC()),
	}); err != nil {
		return nil, err
	}
	return delta, nil
}

// upsertUserState merges a delta into the user-scope state document,
// creating it when absent, and returns the resulting state.
func (s *Service) upsertUserState(appName, userID string, delta map[string]any) (map[string]any, error) {
	pred := userKey(appName, userID)
	doc, ok, err := s.userState.Get(pred)
	if err != nil {
		return nil, err
	}
	if ok {
		state := applyDelta(stateFromDoc(doc), delta)
		if _, err := s.userState.Update(docstore.Document{"state": state}, pred); err != nil {
			return nil, err
		}
		return state, nil
	}
	if err := s.userState.Insert(docstore.Document{
		"app_name":   appName,
		"user_id":    userID,
		"state":      delta,
		"created_at": isoFormat(s.now().UTC()),
	}); err != nil {
		return nil, err
	}
	return delta, nil
}

// getAppState returns the app-scope state, empty when absent.
func (s *Service) getAppState(appName string) (map[string]any, error) {
	doc, ok, err := s.appState.Get(docstore.Eq("app_name", appName))
	if err != nil || !ok {
		return map[string]any{}, err
	}
	return stateFromDoc(doc), nil
}

// getUserState returns the user-scope state, empty when absent.
func (s *Service) getUserState(appName, userID string) (map[string]any, error) {
	doc, ok, err := s.userState.Get(userKey(appName, userID))
	if err != nil || !ok {
		return map[string]any{}, err
	}
	return stateFromDoc(doc), nil
}

// updateAppState merges a delta into an EXISTING app-state document.
// A delta for an app that was never created is dropped.
func (s *Service) updateAppState(appName string, delta map[string]any) error {
	doc, ok, err := s.appState.Get(docstore.Eq("app_name", appName))
	if err != nil || !ok {
		return err
	}
	state := applyDelta(stateFromDoc(doc), delta)
	_, err = s.appState.Update(docstore.Document{"state": state}, docstore.Eq("app_name", appName))
	return err
}

// updateUserState merges a delta into an EXISTING user-state document.
func (s *Service) updateUserState(appName, userID string, delta map[string]any) error {
	pred := userKey(appName, userID)
	doc, ok, err := s.userState.Get(pred)
	if err != nil || !ok {
		return err
	}
	state := applyDelta(stateFromDoc(doc), delta)
	_, err = s.userState.Update(docstore.Document{"state": state}, pred)
	return err
}

// updateSessionState merges a delta into an EXISTING session document.
func (s *Service) updateSessionState(appName, userID, sessionID string, delta map[string]any) error {
	pred := sessionKey(appName, userID, sessionID)
	doc, ok, err := s.sessions.Get(pred)
	if err != nil || !ok {
		return err
	}
	state := applyDelta(stateFromDoc(doc), delta)
	_, err = s.sessions.Update(docstore.Document{"state": state}, pred)
	return err
}

// -----------------------------------------------------------------------------
// Predicates
// -----------------------------------------------------------------------------

// sessionKey matches a session document by composite key.
func sessionKey(appName, userID, sessionID string) docstore.Predicate {
	return docstore.And(
		docstore.Eq("app_name", appName),
		docstore.Eq("user_id", userID),
		docstore.Eq("id", sessionID),
	)
}

// eventKey matches event and interaction documents by composite key.
func eventKey(appName, userID, sessionID string) docstore.Predicate {
	return docstore.And(
		docstore.Eq("app_name", appName),
		docstore.Eq("user_id", userID),
		docstore.Eq("session_id", sessionID),
	)
}

// userKey matches user-state documents.
func userKey(appName, userID string) docstore.Predicate {
	return docstore.And(
		docstore.Eq("app_name", appName),
		docstore.Eq("user_id", userID),
	)
}

// fail records the error on the span and the ops counter, then
// returns it unchanged.
func (s *Service) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	sessionOpsTotal.WithLabelValues(op, "error").Inc()
	s.logger.Error("session store operation failed", "op", op, "error", err.Error())
	return err
}
