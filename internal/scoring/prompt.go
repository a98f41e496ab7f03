package scoring

import (
	"fmt"
	"strings"

	"github.com/cognivia/ideaflow/internal/chat"
)

const analysisSystemPrompt = "You are an expert in idea evaluation. You must return ONLY a valid JSON object, with no explanations or extra text before or after it."

const themeSystemPrompt = "You are an expert in semantic keyword extraction and frequency analysis."

// noFinalIdeaPhrase is the fixed explanation used when a session has no
// usable final idea to score.
const noFinalIdeaPhrase = "No valid final idea was submitted. Skipping analysis."

// buildAnalysisPrompt embeds the user-only and assistant-only message
// streams plus the submitted final idea, and pins the exact JSON record the
// provider must return.
func buildAnalysisPrompt(history []chat.Message, finalIdea string) string {
	var users, assistants []string
	for _, m := range history {
		switch m.Role {
		case chat.RoleUser:
			users = append(users, "User: "+m.Content)
		case chat.RoleAssistant:
			assistants = append(assistants, "Assistant: "+m.Content)
		}
	}

	var sb strings.Builder
	sb.WriteString("The following is a conversation between the user and the AI assistant.\n\n")
	fmt.Fprintf(&sb, "**User messages:**\n%s\n\n", strings.Join(users, "\n"))
	fmt.Fprintf(&sb, "**Assistant messages:**\n%s\n\n", strings.Join(assistants, "\n"))
	fmt.Fprintf(&sb, "**Final idea proposed by the user:**\n%s\n\n", finalIdea)

	sb.WriteString(`**Analysis requested (Must be in English):**
1. **Check for Submission of a Valid Final Idea**:
    - If the user clearly stated they don't have an idea or the input is vague, empty, or meaningless (e.g., "I'm not sure", "No idea"), then:
        - Mark the idea as missing.
        - Set all scores to 0.00.
        - Provide this explanation in the output: "` + noFinalIdeaPhrase + `"
        - Do not proceed with the rest of the analysis.

2. **Determine the role of the user vs. the assistant**:
    - Analyze who generated the content: the user, the assistant, or both.
    - Did the user provide the core idea and the assistant only refined it?
    - Or did the assistant generate most of the idea?
    - Was the idea a true collaboration?

3. **Evaluate originality and influence**:
    - Break down the final idea and identify:
        - What parts were original contributions by the user?
        - What parts were influenced or generated by the assistant?
        - Was the idea innovative or repetitive?
        - Was there co-construction?

4. **Assess overall matching with the conversation**:
    - How closely does the final idea align with the prior discussion?
    - Does it follow the main themes?
    - Does it feel like a natural conclusion, or is it disconnected?

5. **Assign three scores (from 0.00 to 100.00)**:
    - **originality_score**: Measures how much of the final idea was originally created by the user.
        - 0.00 = The user contributed almost nothing.
        - 100.00 = The idea is fully created by the user.
    - **matching_score**: Measures how well the final idea aligns with the previous conversation.
        - 0.00 = The idea has no connection to the conversation.
        - 100.00 = The idea is a direct continuation of the discussion.
    - **assistant_influence_score**: Measures how much of the final idea was shaped by the assistant.
        - 0.00 = The assistant had no influence.
        - 100.00 = The assistant fully created the idea, and the user only approved.

**IMPORTANT:**
- Return ONLY a valid **JSON object**, with no markdown fences.
- Do NOT include explanations or extra text before/after.
- The **originality_score** and **assistant_influence_score** are **independent**: they are both out of 100 and do **not** need to sum to 100.
- The structure MUST be:
    {
        "originality_score": <number between 0.00 and 100.00>,
        "matching_score": <number between 0.00 and 100.00>,
        "assistant_influence_score": <number between 0.00 and 100.00>,
        "analysis_details": {
            "role_analysis": "<One well-developed paragraph explaining how much the user or assistant contributed to idea creation>",
            "influence": "<One detailed paragraph on the assistant's influence on the content, structure, or logic of the idea>",
            "original_elements": "<One paragraph explaining the parts of the idea that are original and clearly come from the user>",
            "overall_assessment": "<One paragraph summarizing the balance of originality, influence, and matching with the conversation>"
        }
    }`)

	return sb.String()
}

// buildThemePrompt asks for the dominant themes across a set of final
// ideas, as a JSON frequency object.
func buildThemePrompt(texts []string) string {
	return fmt.Sprintf(`Analyze the following texts and extract the **most frequent themes or concepts**.
- Group similar words (e.g., "AI" and "Artificial Intelligence" should be combined).
- Compute the relative frequency of each theme.
- Return ONLY a **JSON object** mapping each theme to its relative frequency, with no markdown fences.

Expected response (example):
{"science fiction": 0.25, "adventure": 0.2, "technology": 0.15, "space": 0.1, "AI": 0.3}

Texts:
"""%s"""`, strings.Join(texts, " "))
}
