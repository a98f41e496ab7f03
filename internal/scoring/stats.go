// Package scoring re-derives structured metrics from a persisted
// transcript: deterministic time/size statistics plus an LLM-judged
// originality/influence assessment of the session's final idea.
package scoring

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/cognivia/ideaflow/internal/chat"
)

// disengagementGap separates active conversation from a walk-away pause.
const disengagementGap = 30 * time.Minute

type TimeStats struct {
	TotalMessages             int     `bson:"total_messages" json:"total_messages"`
	TotalDurationMinutes      float64 `bson:"total_duration_minutes" json:"total_duration_minutes"`
	UserReturnedAfter30Mins   bool    `bson:"user_returned_after_30mins" json:"user_returned_after_30mins"`
	NumGapsOver30Mins         int     `bson:"num_gaps_over_30mins" json:"num_gaps_over_30mins"`
	AvgResponseLatencySeconds float64 `bson:"avg_response_latency_seconds" json:"avg_response_latency_seconds"`
}

type SizeStats struct {
	AvgUserSize float64 `bson:"avg_user_size" json:"avg_user_size"`
	AvgAISize   float64 `bson:"avg_ai_size" json:"avg_ai_size"`
}

// ComputeTimeStats derives timing metrics from a transcript. Gaps strictly
// under 30 minutes sum into the active duration; gaps at or over 30 minutes
// are disengagement events and excluded from it. Never fails: an empty
// transcript yields zeroes.
func ComputeTimeStats(history []chat.Message) TimeStats {
	if len(history) == 0 {
		return TimeStats{}
	}

	sorted := make([]chat.Message, len(history))
	copy(sorted, history)
	chat.SortByTimestamp(sorted)

	stats := TimeStats{TotalMessages: len(sorted)}

	var active time.Duration
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Timestamp.Sub(sorted[i-1].Timestamp)
		if gap >= disengagementGap {
			stats.NumGapsOver30Mins++
		} else {
			active += gap
		}
	}
	stats.TotalDurationMinutes = round2(active.Minutes())
	stats.UserReturnedAfter30Mins = stats.NumGapsOver30Mins > 0

	var latency time.Duration
	pairs := 0
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].Role == chat.RoleUser && sorted[i+1].Role == chat.RoleAssistant {
			latency += sorted[i+1].Timestamp.Sub(sorted[i].Timestamp)
			pairs++
		}
	}
	if pairs > 0 {
		stats.AvgResponseLatencySeconds = round2(latency.Seconds() / float64(pairs))
	}

	return stats
}

// ComputeSizeStats averages per-role character counts. Messages persisted
// without a size fall back to counting their content.
func ComputeSizeStats(history []chat.Message) SizeStats {
	var userTotal, aiTotal float64
	var userN, aiN int

	for _, m := range history {
		size := m.Size
		if size == 0 {
			size = utf8.RuneCountInString(m.Content)
		}
		switch m.Role {
		case chat.RoleUser:
			userTotal += float64(size)
			userN++
		case chat.RoleAssistant:
			aiTotal += float64(size)
			aiN++
		}
	}

	var stats SizeStats
	if userN > 0 {
		stats.AvgUserSize = userTotal / float64(userN)
	}
	if aiN > 0 {
		stats.AvgAISize = aiTotal / float64(aiN)
	}
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
