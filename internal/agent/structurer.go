package agent

import (
	"context"
	"strings"

	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/models"
)

// UntitledRequirement is the title of the fallback requirement record.
const UntitledRequirement = "Untitled"

func buildStructurePrompt(raw string) (system string, user string) {
	system = `You are a ` + RoleAnalyst + `. Your job is to analyze a natural-language software requirement, extract its key features and constraints, and identify potential edge cases.

Return ONLY a JSON object with these fields:
- "title": short project title
- "description": detailed description of what is being built
- "features": array of strings, one per feature
- "constraints": array of strings, one per constraint (language, platform, performance, etc.)
- "edge_cases": array of strings, one per edge case the implementation must handle

Rules:
- Return valid JSON only, no markdown fencing or explanation
- Use empty arrays when nothing applies; never invent placeholder entries`

	var sb strings.Builder
	sb.WriteString("Analyze this requirement and provide structured output:\n\n")
	sb.WriteString(strings.TrimSpace(raw))
	user = sb.String()
	return
}

// Structure asks the model to turn raw requirement text into a structured
// record. An unparseable response is not an error: the fallback record is
// returned together with a degradation entry.
func Structure(ctx context.Context, c llm.Client, o Options, raw string) (models.StructuredRequirement, *models.Degradation, error) {
	system, user := buildStructurePrompt(raw)
	text, err := complete(ctx, c, o, system, user)
	if err != nil {
		return models.StructuredRequirement{}, nil, err
	}
	req, parseErr := parseStructure(text)
	if parseErr != nil {
		return fallbackStructure(raw, parseErr), &models.Degradation{Stage: models.StageStructure, Reason: parseErr.Error()}, nil
	}
	return req, nil, nil
}

func parseStructure(text string) (models.StructuredRequirement, error) {
	var req models.StructuredRequirement
	if err := decodeObject(text, &req); err != nil {
		return models.StructuredRequirement{}, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Features = nonEmpty(req.Features)
	req.Constraints = nonEmpty(req.Constraints)
	req.EdgeCases = nonEmpty(req.EdgeCases)
	return req, nil
}

func fallbackStructure(raw string, cause error) models.StructuredRequirement {
	return models.StructuredRequirement{
		Title:       UntitledRequirement,
		Description: strings.TrimSpace(raw),
		Features:    []string{},
		Constraints: []string{},
		EdgeCases:   []string{"requirement analysis could not be parsed (" + cause.Error() + "); the raw requirement text is used as the description"},
	}
}

// nonEmpty trims entries, drops blanks and never returns nil.
func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
