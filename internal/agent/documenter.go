package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/models"
)

func buildDocumentPrompt(code string, req models.StructuredRequirement, lang Language) (system string, user string) {
	system = fmt.Sprintf(`You are a %s. Write clear, complete Markdown documentation for a %s project.

Include:
- Overview
- Installation
- API reference for every public function, class or type
- Usage examples
- Error handling notes`, RoleWriter, lang.Name)

	reqJSON, _ := json.MarshalIndent(req, "", "  ")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Requirements:\n%s\n\n", reqJSON)
	sb.WriteString("Create documentation for this code:\n")
	sb.WriteString(code)
	user = sb.String()
	return
}

// Document returns Markdown documentation for the final code, verbatim.
func Document(ctx context.Context, c llm.Client, o Options, code string, req models.StructuredRequirement) (string, error) {
	system, user := buildDocumentPrompt(code, req, o.Language)
	text, err := complete(ctx, c, o, system, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
