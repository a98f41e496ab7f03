package scoring

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cognivia/ideaflow/internal/chat"
	"github.com/cognivia/ideaflow/internal/config"
	"github.com/cognivia/ideaflow/internal/llm"
)

// Result is the analysis record persisted per session.
type Result struct {
	AnalysisID              string          `bson:"analysis_id" json:"analysis_id"`
	SessionID               string          `bson:"session_id" json:"session_id"`
	FinalIdea               string          `bson:"final_idea" json:"final_idea"`
	TimeStats               TimeStats       `bson:"time_stats" json:"time_stats"`
	SizeStats               SizeStats       `bson:"size_stats" json:"size_stats"`
	OriginalityScore        float64         `bson:"originality_score" json:"originality_score"`
	MatchingScore           float64         `bson:"matching_score" json:"matching_score"`
	AssistantInfluenceScore float64         `bson:"assistant_influence_score" json:"assistant_influence_score"`
	MatchingAnalysis        AnalysisDetails `bson:"matching_analysis" json:"matching_analysis"`
	CreatedAt               time.Time       `bson:"created_at" json:"created_at"`
}

// ThemeCount is one entry of the theme distribution. The `_id` name matches
// what the dashboard consumes.
type ThemeCount struct {
	Theme string  `bson:"_id" json:"_id"`
	Count float64 `bson:"count" json:"count"`
}

// Engine computes a full analysis for a session transcript. The
// deterministic statistics never fail; the LLM-dependent judgment fails
// closed to zero scores with a diagnostic narrative.
type Engine struct {
	client      llm.Client
	model       string
	temperature float64
}

func NewEngine(cfg *config.Config, client llm.Client) *Engine {
	return &Engine{
		client: client,
		model:  cfg.Provider.ScoringModel,
		// Scoring wants reproducibility, not creativity.
		temperature: 0,
	}
}

// Analyze scores a session. It never returns an error: every failure mode
// degrades to a well-formed Result.
func (e *Engine) Analyze(ctx context.Context, sessionID string, history []chat.Message, finalIdea string) Result {
	sorted := make([]chat.Message, len(history))
	copy(sorted, history)
	chat.SortByTimestamp(sorted)

	res := Result{
		AnalysisID: uuid.NewString(),
		SessionID:  sessionID,
		FinalIdea:  finalIdea,
		TimeStats:  ComputeTimeStats(sorted),
		SizeStats:  ComputeSizeStats(sorted),
		CreatedAt:  time.Now().UTC(),
	}

	j := e.judge(ctx, sorted, finalIdea)
	res.OriginalityScore = j.OriginalityScore
	res.MatchingScore = j.MatchingScore
	res.AssistantInfluenceScore = j.AssistantInfluenceScore
	res.MatchingAnalysis = j.AnalysisDetails
	return res
}

func (e *Engine) judge(ctx context.Context, history []chat.Message, finalIdea string) Judgment {
	if strings.TrimSpace(finalIdea) == "" {
		return Judgment{
			AnalysisDetails: AnalysisDetails{OverallAssessment: noFinalIdeaPhrase},
		}
	}

	raw, err := e.client.Complete(ctx, llm.Request{
		Model:       e.model,
		Temperature: e.temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: analysisSystemPrompt},
			{Role: llm.RoleUser, Content: buildAnalysisPrompt(history, finalIdea)},
		},
	})
	if err != nil {
		log.Printf("[scoring] judgment request failed: %v", err)
		return failedJudgment(err)
	}

	j, err := parseJudgment(raw)
	if err != nil {
		log.Printf("[scoring] judgment response rejected: %v", err)
		return failedJudgment(err)
	}
	return j
}

// ExtractThemes derives the theme distribution across a set of final
// ideas for the dashboard. Failures degrade to an empty list.
func (e *Engine) ExtractThemes(ctx context.Context, texts []string) []ThemeCount {
	if len(texts) == 0 {
		return nil
	}

	raw, err := e.client.Complete(ctx, llm.Request{
		Model:       e.model,
		Temperature: 0.3,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: themeSystemPrompt},
			{Role: llm.RoleUser, Content: buildThemePrompt(texts)},
		},
	})
	if err != nil {
		log.Printf("[scoring] theme extraction failed: %v", err)
		return nil
	}

	themes, err := parseThemeMap(raw)
	if err != nil {
		log.Printf("[scoring] theme response rejected: %v", err)
		return nil
	}

	out := make([]ThemeCount, 0, len(themes))
	for theme, freq := range themes {
		out = append(out, ThemeCount{Theme: theme, Count: round2(freq)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Theme < out[j].Theme
	})
	return out
}
