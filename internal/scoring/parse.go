package scoring

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnalysisDetails is the narrative part of a qualitative judgment.
type AnalysisDetails struct {
	RoleAnalysis      string `bson:"role_analysis" json:"role_analysis"`
	Influence         string `bson:"influence" json:"influence"`
	OriginalElements  string `bson:"original_elements" json:"original_elements"`
	OverallAssessment string `bson:"overall_assessment" json:"overall_assessment"`
}

// Judgment is the typed form of the provider's qualitative response. The
// three scores are independent values in [0,100]; they do not sum to 100.
type Judgment struct {
	OriginalityScore        float64         `json:"originality_score"`
	MatchingScore           float64         `json:"matching_score"`
	AssistantInfluenceScore float64         `json:"assistant_influence_score"`
	AnalysisDetails         AnalysisDetails `json:"analysis_details"`
}

var judgmentRequiredKeys = []string{
	"originality_score",
	"matching_score",
	"assistant_influence_score",
	"analysis_details",
}

// parseJudgment deserializes the provider's raw text as strict JSON with a
// validated shape. Provider output is data, never code: nothing here
// evaluates the response. Any shape mismatch is an error; callers convert
// errors into the fail-closed zero judgment.
func parseJudgment(raw string) (Judgment, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return Judgment{}, fmt.Errorf("empty response")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &probe); err != nil {
		return Judgment{}, fmt.Errorf("not a JSON object: %w", err)
	}
	for _, key := range judgmentRequiredKeys {
		if _, ok := probe[key]; !ok {
			return Judgment{}, fmt.Errorf("missing key %q", key)
		}
	}

	var j Judgment
	if err := json.Unmarshal([]byte(cleaned), &j); err != nil {
		return Judgment{}, fmt.Errorf("schema mismatch: %w", err)
	}

	j.OriginalityScore = clampScore(j.OriginalityScore)
	j.MatchingScore = clampScore(j.MatchingScore)
	j.AssistantInfluenceScore = clampScore(j.AssistantInfluenceScore)
	return j, nil
}

// failedJudgment is the fail-closed result: all scores zero and the
// diagnostic recorded in the narrative.
func failedJudgment(reason error) Judgment {
	return Judgment{
		AnalysisDetails: AnalysisDetails{
			OverallAssessment: fmt.Sprintf("Analysis response could not be interpreted: %v", reason),
		},
	}
}

// parseThemeMap deserializes a theme→relative-frequency object.
func parseThemeMap(raw string) (map[string]float64, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}
	var themes map[string]float64
	if err := json.Unmarshal([]byte(cleaned), &themes); err != nil {
		return nil, fmt.Errorf("not a frequency object: %w", err)
	}
	return themes, nil
}

// stripFences tolerates providers that wrap JSON in markdown code fences
// despite instructions.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop a language tag such as ```json.
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "python" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
