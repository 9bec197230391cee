package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/models"
)

// UnparseableReview is the finding recorded when a review reply cannot be parsed.
const UnparseableReview = "unparseable review response"

func buildReviewPrompt(code string, req models.StructuredRequirement, lang Language) (system string, user string) {
	system = fmt.Sprintf(`You are a %s. Review %s code for correctness, efficiency, security vulnerabilities, error handling, readability and how well it meets the requirements.

Return ONLY a JSON object with these fields:
- "status": "approved" if the code is ready to ship, otherwise "needs_revision"
- "score": number from 0 to 10
- "findings": array of objects {"type": "error"|"warning"|"info"|"success", "message": "..."}
- "suggestions": array of strings with concrete, actionable improvements

Rules:
- Return valid JSON only, no markdown fencing or explanation
- Use "needs_revision" when any finding of type "error" remains
- Do not execute the code; judge it by reading it`, RoleReviewer, lang.Name)

	reqJSON, _ := json.MarshalIndent(req, "", "  ")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Requirements:\n%s\n\n", reqJSON)
	sb.WriteString("Review this code:\n")
	sb.WriteString(code)
	user = sb.String()
	return
}

// Review asks the reviewer agent for a verdict on code. An unparseable reply
// yields a needs_revision verdict with score 0 and a degradation entry; it
// never approves by default.
func Review(ctx context.Context, c llm.Client, o Options, code string, req models.StructuredRequirement) (models.ReviewVerdict, *models.Degradation, error) {
	system, user := buildReviewPrompt(code, req, o.Language)
	text, err := complete(ctx, c, o, system, user)
	if err != nil {
		return models.ReviewVerdict{}, nil, err
	}
	v, parseErr := parseReview(text)
	if parseErr != nil {
		return FallbackVerdict(), &models.Degradation{Stage: models.StageReview, Reason: parseErr.Error()}, nil
	}
	return v, nil, nil
}

// FallbackVerdict is the verdict used when a review reply cannot be parsed.
func FallbackVerdict() models.ReviewVerdict {
	return models.ReviewVerdict{
		Status:      models.ReviewStatusNeedsRevision,
		Score:       0,
		Findings:    []models.Finding{{Kind: models.FindingError, Message: UnparseableReview}},
		Suggestions: []string{},
	}
}

// reviewReply is the wire shape of a review; score is a pointer so a
// missing score is distinguishable from a zero score.
type reviewReply struct {
	Status      string           `json:"status"`
	Score       *float64         `json:"score"`
	Findings    []models.Finding `json:"findings"`
	Suggestions []string         `json:"suggestions"`
}

func parseReview(text string) (models.ReviewVerdict, error) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return models.ReviewVerdict{}, errNoJSON
	}
	var reply reviewReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return models.ReviewVerdict{}, fmt.Errorf("malformed JSON: %w", err)
	}
	if reply.Score == nil {
		return models.ReviewVerdict{}, fmt.Errorf("invalid fields: missing score")
	}

	v := models.ReviewVerdict{
		Status:      models.ReviewStatus(normalizeStatus(reply.Status)),
		Score:       *reply.Score,
		Findings:    make([]models.Finding, 0, len(reply.Findings)),
		Suggestions: nonEmpty(reply.Suggestions),
	}
	if err := validate.Struct(v); err != nil {
		return models.ReviewVerdict{}, fmt.Errorf("invalid fields: %w", err)
	}
	for _, f := range reply.Findings {
		msg := strings.TrimSpace(f.Message)
		if msg == "" {
			continue
		}
		v.Findings = append(v.Findings, models.Finding{Kind: normalizeKind(f.Kind), Message: msg})
	}
	return v, nil
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, " ", "_"))) {
	case "approved", "approve":
		return string(models.ReviewStatusApproved)
	case "needs_revision", "needs-revision", "revise", "request_changes":
		return string(models.ReviewStatusNeedsRevision)
	default:
		return s
	}
}

func normalizeKind(k models.FindingKind) models.FindingKind {
	switch models.FindingKind(strings.ToLower(strings.TrimSpace(string(k)))) {
	case models.FindingError:
		return models.FindingError
	case models.FindingWarning:
		return models.FindingWarning
	case models.FindingSuccess:
		return models.FindingSuccess
	default:
		return models.FindingInfo
	}
}
