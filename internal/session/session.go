// Package session rebuilds logical conversation sessions from the raw
// message-level event log. Sessions are derived values, recomputed on every
// run, never persisted as a source of truth.
package session

import (
	"sort"
	"time"

	conversationdomain "github.com/agendobot/metrics/internal/conversation/domain"
	"github.com/bwmarrin/snowflake"
)

// ConversationSession is one logical conversation, grouped by session id.
type ConversationSession struct {
	SessionID      string
	TenantID       snowflake.ID
	StartTime      time.Time
	EndTime        time.Time
	FinalOutcome   string
	MessageCount   int
	InboundCount   int
	MeanConfidence float64
	TotalCostUSD   float64
	TokensUsed     int64
	DurationMins   float64
}

// Result carries the reconstructed sessions plus the number of events that
// could not be attributed to any session.
type Result struct {
	Sessions     []ConversationSession
	OrphanEvents int
}

// Reconstruct groups events by session id. Events with a null or empty
// session id are discarded and counted as orphans. Final outcome is the
// outcome of the latest event carrying a non-null outcome; when two such
// events share the identical timestamp the one with the highest event id
// wins, which matches insertion order for snowflake ids. Sessions come back
// ordered by start time then session id so reruns are byte-identical.
func Reconstruct(events []conversationdomain.ConversationEvent) Result {
	groups := make(map[string][]conversationdomain.ConversationEvent)
	orphans := 0
	for _, ev := range events {
		if ev.SessionID == nil || *ev.SessionID == "" {
			orphans++
			continue
		}
		groups[*ev.SessionID] = append(groups[*ev.SessionID], ev)
	}

	sessions := make([]ConversationSession, 0, len(groups))
	for id, evs := range groups {
		sessions = append(sessions, build(id, evs))
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].StartTime.Before(sessions[j].StartTime)
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})
	return Result{Sessions: sessions, OrphanEvents: orphans}
}

func build(id string, evs []conversationdomain.ConversationEvent) ConversationSession {
	s := ConversationSession{
		SessionID: id,
		TenantID:  evs[0].TenantID,
		StartTime: evs[0].CreatedAt,
		EndTime:   evs[0].CreatedAt,
	}

	var (
		confidenceSum   float64
		confidenceCount int
		outcomeAt       time.Time
		outcomeID       snowflake.ID
	)
	for _, ev := range evs {
		if ev.CreatedAt.Before(s.StartTime) {
			s.StartTime = ev.CreatedAt
		}
		if ev.CreatedAt.After(s.EndTime) {
			s.EndTime = ev.CreatedAt
		}
		s.MessageCount++
		if ev.IsFromUser {
			s.InboundCount++
		}
		if ev.ConfidenceScore != nil {
			confidenceSum += *ev.ConfidenceScore
			confidenceCount++
		}
		if ev.APICostUSD != nil {
			s.TotalCostUSD += *ev.APICostUSD
		}
		if ev.ProcessingCostUSD != nil {
			s.TotalCostUSD += *ev.ProcessingCostUSD
		}
		if ev.TokensUsed != nil {
			s.TokensUsed += *ev.TokensUsed
		}
		if ev.DurationMinutes != nil {
			s.DurationMins += *ev.DurationMinutes
		}
		if ev.Outcome != nil && *ev.Outcome != "" {
			later := ev.CreatedAt.After(outcomeAt)
			tie := ev.CreatedAt.Equal(outcomeAt) && ev.ID > outcomeID
			if s.FinalOutcome == "" || later || tie {
				s.FinalOutcome = *ev.Outcome
				outcomeAt = ev.CreatedAt
				outcomeID = ev.ID
			}
		}
	}
	if confidenceCount > 0 {
		s.MeanConfidence = confidenceSum / float64(confidenceCount)
	}
	return s
}

// FilterByStart keeps sessions whose start time falls in [from, to). A
// session with messages inside the window but an earlier start belongs to the
// window that contains its start, not this one.
func FilterByStart(sessions []ConversationSession, from, to time.Time) []ConversationSession {
	out := make([]ConversationSession, 0, len(sessions))
	for _, s := range sessions {
		if !s.StartTime.Before(from) && s.StartTime.Before(to) {
			out = append(out, s)
		}
	}
	return out
}
