package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/models"
)

func buildTestsPrompt(code string, req models.StructuredRequirement, lang Language) (system string, user string) {
	system = fmt.Sprintf(`You are a %s specializing in test automation. Generate a comprehensive %s test suite using %s.

Include:
- Setup and teardown where needed
- Several test cases per public function
- Edge cases and error conditions, including every listed edge case
- Coverage of at least 80%% of the code

Provide ONLY the test code, without markdown code fences or explanations.`, RoleQA, lang.Name, lang.TestFramework)

	reqJSON, _ := json.MarshalIndent(req, "", "  ")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Requirements:\n%s\n\n", reqJSON)
	sb.WriteString("Generate comprehensive tests for this code:\n")
	sb.WriteString(code)
	user = sb.String()
	return
}

// Tests returns the generated test suite for the final code.
func Tests(ctx context.Context, c llm.Client, o Options, code string, req models.StructuredRequirement) (string, error) {
	system, user := buildTestsPrompt(code, req, o.Language)
	text, err := complete(ctx, c, o, system, user)
	if err != nil {
		return "", err
	}
	return StripFence(text), nil
}
