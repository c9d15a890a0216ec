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
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/autoyou/services/session/docstore"
)

var analyticsTracer = otel.Tracer("autoyou.analytics")

// -----------------------------------------------------------------------------
// Analytics Result Types
// -----------------------------------------------------------------------------

// AgentCount is one row of an agent frequency table.
type AgentCount struct {
	AgentName string `json:"agent_name"`
	Count     int    `json:"count"`
}

// SessionStub is the lightweight session reference carried in user
// summaries: identity and timestamps only.
type SessionStub struct {
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// UserSessionSummary aggregates everything known about one user's
// activity inside an app.
type UserSessionSummary struct {
	UserID            string         `json:"user_id"`
	AppName           string         `json:"app_name"`
	TotalSessions     int            `json:"total_sessions"`
	TotalInteractions int            `json:"total_interactions"`
	UserQuestions     int            `json:"user_questions"`
	AgentResponses    int            `json:"agent_responses"`
	AgentTransfers    int            `json:"agent_transfers"`
	MostUsedAgents    []AgentCount   `json:"most_used_agents"`
	DailyActivity     map[string]int `json:"daily_activity"`
	Sessions          []SessionStub  `json:"sessions"`
}

// AgentUsageStatistics reports app-wide agent engagement over a
// trailing window of days.
type AgentUsageStatistics struct {
	AppName               string         `json:"app_name"`
	AnalysisPeriodDays    int            `json:"analysis_period_days"`
	TotalInteractions     int            `json:"total_interactions"`
	TotalTransfers        int            `json:"total_transfers"`
	AgentTransferCounts   map[string]int `json:"agent_transfer_counts"`
	AgentUserCounts       map[string]int `json:"agent_user_counts"`
	DailyTransferActivity map[string]int `json:"daily_transfer_activity"`
	MostPopularAgents     []AgentCount   `json:"most_popular_agents"`
}

// Loop is one detected repeat of a hand-off subsequence. EndIndex is
// the index of the repeat's last element in the transfer sequence.
type Loop struct {
	Pattern       []string `json:"pattern"`
	StartIndex    int      `json:"start_index"`
	EndIndex      int      `json:"end_index"`
	Repetitions   int      `json:"repetitions"`
	PatternLength int      `json:"pattern_length"`
}

// QuestionResponsePair pairs a user question with the agent response
// that closed it.
type QuestionResponsePair struct {
	QuestionTime    float64 `json:"question_time"`
	ResponseTime    float64 `json:"response_time"`
	DurationSeconds float64 `json:"duration_seconds"`
	QuestionSummary string  `json:"question_summary"`
	ResponseSummary string  `json:"response_summary"`
}

// ConversationPatterns is the per-session pattern analysis: the
// ordered hand-off sequence, detected loops, question/response
// latency pairs, and overall shape of the conversation.
type ConversationPatterns struct {
	SessionID             string                 `json:"session_id"`
	TotalInteractions     int                    `json:"total_interactions"`
	TransferSequence      []string               `json:"transfer_sequence"`
	DetectedLoops         []Loop                 `json:"detected_loops"`
	QuestionResponsePairs []QuestionResponsePair `json:"question_response_pairs"`
	AgentsInvolved        []string               `json:"agents_involved"`
	ConversationDuration  float64                `json:"conversation_duration"`
}

// FrequentQuestion is one cluster of similar user questions.
type FrequentQuestion struct {
	QuestionPattern     string  `json:"question_pattern"`
	Frequency           int     `json:"frequency"`
	ExampleFullQuestion string  `json:"example_full_question"`
	UsersAsked          int     `json:"users_asked"`
	RecentTimestamp     float64 `json:"recent_timestamp"`
}

// SessionExport is the full debug snapshot of one session: raw
// documents plus the computed interaction summary.
type SessionExport struct {
	Session      docstore.Document   `json:"session"`
	Events       []docstore.Document `json:"events"`
	Interactions []docstore.Document `json:"interactions"`
	Summary      *InteractionSummary `json:"summary"`
}

// -----------------------------------------------------------------------------
// Analytics
// -----------------------------------------------------------------------------

// Analytics is the read-only query layer over a Service's tables.
//
// Description:
//
//	Stateless aggregation: holds a reference to the store, performs no
//	mutation of its own, and has no lifecycle beyond construction.
//	All queries scan whole tables in memory; they are sized for
//	debugging and reporting workloads, not high query load.
//
// Thread Safety: Safe for concurrent use.
type Analytics struct {
	svc *Service

	// now is the window-end clock; replaced in tests.
	now func() time.Time
}

// NewAnalytics binds an analytics engine to an existing session store.
func NewAnalytics(svc *Service) *Analytics {
	return &Analytics{svc: svc, now: time.Now}
}

// OpenAnalytics is a convenience constructor that opens a file-backed
// store at dbPath and binds an analytics engine to it. Closing the
// returned Service closes the store for both.
func OpenAnalytics(dbPath string) (*Analytics, *Service, error) {
	svc, err := Open(Config{DBPath: dbPath})
	if err != nil {
		return nil, nil, err
	}
	return NewAnalytics(svc), svc, nil
}

// GetUserSessionSummary aggregates one user's activity inside an app.
//
// Description:
//
//	Counts the user's sessions and interactions, splits interaction
//	counts by kind, ranks the agents referenced by the user's
//	interactions (top 10 by count, ties kept in first-encountered
//	order), buckets session creation into a per-date histogram, and
//	lists session stubs newest first.
func (a *Analytics) GetUserSessionSummary(ctx context.Context, appName, userID string) (*UserSessionSummary, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	_, span := analyticsTracer.Start(ctx, "session.Analytics.GetUserSessionSummary",
		trace.WithAttributes(
			attribute.String("app_name", appName),
			attribute.String("user_id", userID),
		),
	)
	defer span.End()
	defer observeQuery("user_session_summary", time.Now())

	sessionDocs, err := a.svc.sessions.Search(userKey(appName, userID))
	if err != nil {
		return nil, a.fail(span, err)
	}
	factDocs, err := a.svc.interactions.Search(userKey(appName, userID))
	if err != nil {
		return nil, a.fail(span, err)
	}

	summary := &UserSessionSummary{
		UserID:            userID,
		AppName:           appName,
		TotalSessions:     len(sessionDocs),
		TotalInteractions: len(factDocs),
		DailyActivity:     map[string]int{},
	}

	agentCounts := map[string]int{}
	var agentOrder []string
	for _, doc := range factDocs {
		fact := docToInteraction(doc)
		if fact.IsUserQuestion {
			summary.UserQuestions++
		}
		if fact.IsAgentResponse {
			summary.AgentResponses++
		}
		if fact.IsTransferToAgent {
			summary.AgentTransfers++
		}
		if fact.AgentName != "" {
			if agentCounts[fact.AgentName] == 0 {
				agentOrder = append(agentOrder, fact.AgentName)
			}
			agentCounts[fact.AgentName]++
		}
	}
	summary.MostUsedAgents = topAgents(agentOrder, agentCounts, 10)

	for _, doc := range sessionDocs {
		created := parseISO(docString(doc, "created_at"))
		if !created.IsZero() {
			summary.DailyActivity[created.Format("2006-01-02")]++
		}
	}

	sort.SliceStable(sessionDocs, func(i, j int) bool {
		return parseISO(docString(sessionDocs[i], "created_at")).After(parseISO(docString(sessionDocs[j], "created_at")))
	})
	summary.Sessions = make([]SessionStub, 0, len(sessionDocs))
	for _, doc := range sessionDocs {
		summary.Sessions = append(summary.Sessions, SessionStub{
			SessionID: docString(doc, "id"),
			CreatedAt: docString(doc, "created_at"),
			UpdatedAt: docString(doc, "updated_at"),
		})
	}
	return summary, nil
}

// GetAgentUsageStatistics reports app-wide agent usage over the
// trailing window of days, ending at the current time. The lower
// bound is inclusive on created_at.
func (a *Analytics) GetAgentUsageStatistics(ctx context.Context, appName string, days int) (*AgentUsageStatistics, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	_, span := analyticsTracer.Start(ctx, "session.Analytics.GetAgentUsageStatistics",
		trace.WithAttributes(
			attribute.String("app_name", appName),
			attribute.Int("days", days),
		),
	)
	defer span.End()
	defer observeQuery("agent_usage_statistics", time.Now())

	factDocs, err := a.svc.interactions.Search(docstore.Eq("app_name", appName))
	if err != nil {
		return nil, a.fail(span, err)
	}

	cutoff := a.now().UTC().AddDate(0, 0, -days)
	recent := make([]Interaction, 0, len(factDocs))
	for _, doc := range factDocs {
		fact := docToInteraction(doc)
		if !fact.CreatedAt.Before(cutoff) {
			recent = append(recent, fact)
		}
	}

	stats := &AgentUsageStatistics{
		AppName:               appName,
		AnalysisPeriodDays:    days,
		TotalInteractions:     len(recent),
		AgentTransferCounts:   map[string]int{},
		AgentUserCounts:       map[string]int{},
		DailyTransferActivity: map[string]int{},
	}

	agentUsers := map[string]map[string]bool{}
	var transferOrder []string
	for _, fact := range recent {
		if fact.AgentName != "" {
			if agentUsers[fact.AgentName] == nil {
				agentUsers[fact.AgentName] = map[string]bool{}
			}
			agentUsers[fact.AgentName][fact.UserID] = true
		}
		if !fact.IsTransferToAgent {
			continue
		}
		stats.TotalTransfers++
		if fact.AgentName != "" {
			if stats.AgentTransferCounts[fact.AgentName] == 0 {
				transferOrder = append(transferOrder, fact.AgentName)
			}
			stats.AgentTransferCounts[fact.AgentName]++
		}
		stats.DailyTransferActivity[fact.CreatedAt.Format("2006-01-02")]++
	}
	for agent, users := range agentUsers {
		stats.AgentUserCounts[agent] = len(users)
	}
	stats.MostPopularAgents = topAgents(transferOrder, stats.AgentTransferCounts, 10)
	return stats, nil
}

// DetectConversationPatterns analyzes one session's interaction
// stream.
//
// Description:
//
//	Sorts the session's interaction facts ascending by timestamp,
//	extracts the ordered hand-off targets, runs repeating-subsequence
//	loop detection over them, and pairs each user question with the
//	first following agent response (a question stays open until a
//	response closes it; a trailing unanswered question is dropped).
//	Conversation duration is last minus first timestamp, zero when
//	the session has at most one interaction.
func (a *Analytics) DetectConversationPatterns(ctx context.Context, appName, userID, sessionID string) (*ConversationPatterns, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	_, span := analyticsTracer.Start(ctx, "session.Analytics.DetectConversationPatterns",
		trace.WithAttributes(
			attribute.String("app_name", appName),
			attribute.String("session_id", sessionID),
		),
	)
	defer span.End()
	defer observeQuery("conversation_patterns", time.Now())

	facts, err := a.svc.sessionInteractions(appName, userID, sessionID)
	if err != nil {
		return nil, a.fail(span, err)
	}
	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].Timestamp < facts[j].Timestamp
	})

	patterns := &ConversationPatterns{
		SessionID:             sessionID,
		TotalInteractions:     len(facts),
		TransferSequence:      []string{},
		QuestionResponsePairs: []QuestionResponsePair{},
		AgentsInvolved:        []string{},
	}

	seen := make(map[string]bool)
	for _, fact := range facts {
		if fact.IsTransferToAgent && fact.AgentName != "" {
			patterns.TransferSequence = append(patterns.TransferSequence, fact.AgentName)
		}
		if fact.AgentName != "" && !seen[fact.AgentName] {
			seen[fact.AgentName] = true
			patterns.AgentsInvolved = append(patterns.AgentsInvolved, fact.AgentName)
		}
	}

	patterns.DetectedLoops = findLoopsInSequence(patterns.TransferSequence)

	var question *Interaction
	for i := range facts {
		fact := &facts[i]
		if fact.IsUserQuestion {
			question = fact
		} else if fact.IsAgentResponse && question != nil {
			patterns.QuestionResponsePairs = append(patterns.QuestionResponsePairs, QuestionResponsePair{
				QuestionTime:    question.Timestamp,
				ResponseTime:    fact.Timestamp,
				DurationSeconds: fact.Timestamp - question.Timestamp,
				QuestionSummary: question.ContentSummary,
				ResponseSummary: fact.ContentSummary,
			})
			question = nil
		}
	}

	if len(facts) > 1 {
		patterns.ConversationDuration = facts[len(facts)-1].Timestamp - facts[0].Timestamp
	}
	return patterns, nil
}

// findLoopsInSequence reports repeating subsequences of agent
// hand-offs.
//
// An exhaustive scan: for every window seq[i:j] of length >= 3, the
// first later position where the window repeats is recorded as a
// loop, then scanning moves to the next window. Overlapping windows
// of the same underlying cycle are each reported separately;
// downstream consumers rely on that literal shape, so do not replace
// this with a minimal-period detector.
func findLoopsInSequence(sequence []string) []Loop {
	loops := []Loop{}
	n := len(sequence)
	for i := 0; i < n; i++ {
		for j := i + 2; j <= n; j++ {
			sub := sequence[i:j]
			if len(sub) < 3 {
				continue
			}
			patternLength := len(sub)
			for k := j; k < n; k++ {
				if k+patternLength > n {
					continue
				}
				if equalSequence(sub, sequence[k:k+patternLength]) {
					loops = append(loops, Loop{
						Pattern:       append([]string(nil), sub...),
						StartIndex:    i,
						EndIndex:      k + patternLength - 1,
						Repetitions:   2,
						PatternLength: patternLength,
					})
					break
				}
			}
		}
	}
	return loops
}

func equalSequence(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GetFrequentUserQuestions clusters user questions app-wide.
//
// Questions are grouped by a normalization key, the first 100
// characters of the content summary lowercased and stripped. Each
// cluster reports its size, the first summary encountered as the
// example, the distinct asking users, and the newest timestamp.
// Clusters come back sorted by frequency descending, capped at limit.
func (a *Analytics) GetFrequentUserQuestions(ctx context.Context, appName string, limit int) ([]FrequentQuestion, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	_, span := analyticsTracer.Start(ctx, "session.Analytics.GetFrequentUserQuestions",
		trace.WithAttributes(
			attribute.String("app_name", appName),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()
	defer observeQuery("frequent_user_questions", time.Now())

	factDocs, err := a.svc.interactions.Search(docstore.And(
		docstore.Eq("app_name", appName),
		docstore.Eq("is_user_question", true),
	))
	if err != nil {
		return nil, a.fail(span, err)
	}

	groups := map[string]*FrequentQuestion{}
	groupUsers := map[string]map[string]bool{}
	var order []string
	for _, doc := range factDocs {
		fact := docToInteraction(doc)
		if fact.ContentSummary == "" {
			continue
		}
		key := normalizeQuestion(fact.ContentSummary)
		group := groups[key]
		if group == nil {
			group = &FrequentQuestion{
				QuestionPattern:     key,
				ExampleFullQuestion: fact.ContentSummary,
				RecentTimestamp:     fact.Timestamp,
			}
			groups[key] = group
			groupUsers[key] = map[string]bool{}
			order = append(order, key)
		}
		group.Frequency++
		groupUsers[key][fact.UserID] = true
		if fact.Timestamp > group.RecentTimestamp {
			group.RecentTimestamp = fact.Timestamp
		}
	}

	ranked := make([]FrequentQuestion, 0, len(groups))
	for _, key := range order {
		group := groups[key]
		group.UsersAsked = len(groupUsers[key])
		ranked = append(ranked, *group)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Frequency > ranked[j].Frequency
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// ExportSessionData bundles everything stored for one session: the
// raw session document (nil when the session does not exist), events
// and interaction facts sorted ascending by timestamp, and the
// interaction summary.
func (a *Analytics) ExportSessionData(ctx context.Context, appName, userID, sessionID string) (*SessionExport, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	_, span := analyticsTracer.Start(ctx, "session.Analytics.ExportSessionData",
		trace.WithAttributes(
			attribute.String("app_name", appName),
			attribute.String("session_id", sessionID),
		),
	)
	defer span.End()
	defer observeQuery("export_session_data", time.Now())

	sessionDoc, ok, err := a.svc.sessions.Get(sessionKey(appName, userID, sessionID))
	if err != nil {
		return nil, a.fail(span, err)
	}
	if !ok {
		sessionDoc = nil
	}

	eventDocs, err := a.svc.events.Search(eventKey(appName, userID, sessionID))
	if err != nil {
		return nil, a.fail(span, err)
	}
	// Timestamps trim trailing zeros, so compare parsed, not as strings.
	sort.SliceStable(eventDocs, func(i, j int) bool {
		return parseISO(docString(eventDocs[i], "timestamp")).Before(parseISO(docString(eventDocs[j], "timestamp")))
	})

	factDocs, err := a.svc.interactions.Search(eventKey(appName, userID, sessionID))
	if err != nil {
		return nil, a.fail(span, err)
	}
	sort.SliceStable(factDocs, func(i, j int) bool {
		return docFloat(factDocs[i], "timestamp") < docFloat(factDocs[j], "timestamp")
	})

	summary, err := a.svc.GetAgentInteractionSummary(ctx, appName, userID, sessionID)
	if err != nil {
		return nil, a.fail(span, err)
	}

	return &SessionExport{
		Session:      sessionDoc,
		Events:       eventDocs,
		Interactions: factDocs,
		Summary:      summary,
	}, nil
}

// topAgents ranks agents by count descending, ties kept in
// first-encountered order, capped at limit.
func topAgents(order []string, counts map[string]int, limit int) []AgentCount {
	ranked := make([]AgentCount, 0, len(order))
	for _, agent := range order {
		ranked = append(ranked, AgentCount{AgentName: agent, Count: counts[agent]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// observeQuery records one analytics query duration.
func observeQuery(query string, start time.Time) {
	analyticsQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}

func (a *Analytics) fail(span trace.Span, err error) error {
	span.RecordError(err)
	a.svc.logger.Error("analytics query failed", "error", err.Error())
	return err
}
