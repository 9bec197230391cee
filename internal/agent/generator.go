package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/models"
)

// GenerateInput is everything the developer agent sees for one generation.
type GenerateInput struct {
	Requirement  models.StructuredRequirement
	Feedback     string // accumulated review feedback; empty on the first pass
	PreviousCode string // the draft the feedback refers to
}

func buildGeneratePrompt(in GenerateInput, lang Language) (system string, user string) {
	system = fmt.Sprintf(`You are an expert %s %s. Your job is to convert structured requirements into clean, functional %s code.

Rules:
- Follow %s
- Include proper error handling and handle every listed edge case
- Add doc comments where they help a reader
- Write modular, reusable code
- Provide ONLY the code, without markdown code fences or explanations before or after
- Do NOT read interactive input or start servers at import time; show example usage in comments instead`,
		lang.Name, RoleDeveloper, lang.Name, lang.StyleGuide)

	reqJSON, _ := json.MarshalIndent(in.Requirement, "", "  ")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate %s code for these requirements:\n%s\n", lang.Name, reqJSON)
	if in.Feedback != "" {
		sb.WriteString("\nThe previous version was reviewed. Address every point below; do not reintroduce issues flagged in earlier reviews.\n\n")
		sb.WriteString(in.Feedback)
		if in.PreviousCode != "" {
			sb.WriteString("\nPrevious version:\n")
			sb.WriteString(in.PreviousCode)
			sb.WriteString("\n")
		}
		sb.WriteString("\nProvide ONLY the improved code.")
	}
	user = sb.String()
	return
}

// Generate asks the developer agent for source code. The reply is treated
// as opaque text; only a fence wrapping the whole reply is removed.
func Generate(ctx context.Context, c llm.Client, o Options, in GenerateInput) (string, error) {
	system, user := buildGeneratePrompt(in, o.Language)
	text, err := complete(ctx, c, o, system, user)
	if err != nil {
		return "", err
	}
	return StripFence(text), nil
}

// FormatFeedback renders the findings and suggestions of every verdict in
// history, oldest first, so the developer sees the whole review trail.
func FormatFeedback(history []models.ReviewVerdict) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, v := range history {
		fmt.Fprintf(&sb, "Review %d (status: %s, score: %.1f/10):\n", i+1, v.Status, v.Score)
		if len(v.Findings) == 0 && len(v.Suggestions) == 0 {
			sb.WriteString("- no findings\n")
		}
		for _, f := range v.Findings {
			fmt.Fprintf(&sb, "- [%s] %s\n", f.Kind, f.Message)
		}
		for _, s := range v.Suggestions {
			fmt.Fprintf(&sb, "- suggestion: %s\n", s)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
