package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/models"
)

// Metadata keys set by the deployer itself.
const (
	MetaGeneratedAt = "generated_at"
	MetaParseStatus = "parse_status"
)

// now is replaceable in tests.
var now = time.Now

func buildDeployPrompt(code string, req models.StructuredRequirement, lang Language) (system string, user string) {
	system = fmt.Sprintf(`You are a %s. Create the deployment artifacts for a %s project.

Return ONLY a JSON object with these fields:
- "script": a complete POSIX shell deployment script (deploy.sh) that installs dependencies and starts the program
- "metadata": object of string values, including "%s" (full contents of the dependency manifest), "runtime" (required runtime and version), "dockerfile" (a Dockerfile if one is useful, otherwise an empty string) and "setup" (environment setup instructions)

Rules:
- Return valid JSON only, no markdown fencing or explanation
- Every metadata value must be a string`, RoleDevOps, lang.Name, lang.Manifest)

	reqJSON, _ := json.Marshal(req)

	var sb strings.Builder
	sb.WriteString("Create deployment configuration for this project.\n\n")
	fmt.Fprintf(&sb, "Requirements:\n%s\n\n", reqJSON)
	sb.WriteString("Code:\n")
	sb.WriteString(code)
	user = sb.String()
	return
}

// deployReply is the wire shape of the deployer's reply.
type deployReply struct {
	Script   string         `json:"script" validate:"required"`
	Metadata map[string]any `json:"metadata"`
}

// Deploy asks the DevOps agent for a deployment script and metadata. If the
// reply is not the expected JSON object, the raw text becomes the script and
// a degradation entry is returned.
func Deploy(ctx context.Context, c llm.Client, o Options, code string, req models.StructuredRequirement) (models.Deployment, *models.Degradation, error) {
	system, user := buildDeployPrompt(code, req, o.Language)
	text, err := complete(ctx, c, o, system, user)
	if err != nil {
		return models.Deployment{}, nil, err
	}

	d, parseErr := parseDeploy(text)
	if parseErr != nil {
		d = models.Deployment{
			Script: StripFence(text),
			Metadata: map[string]string{
				MetaParseStatus: "degraded",
			},
		}
		d.Metadata[MetaGeneratedAt] = now().UTC().Format(time.RFC3339)
		return d, &models.Degradation{Stage: models.StageDeployment, Reason: parseErr.Error()}, nil
	}
	d.Metadata[MetaGeneratedAt] = now().UTC().Format(time.RFC3339)
	return d, nil, nil
}

func parseDeploy(text string) (models.Deployment, error) {
	var reply deployReply
	if err := decodeObject(text, &reply); err != nil {
		return models.Deployment{}, err
	}
	meta := make(map[string]string, len(reply.Metadata)+1)
	for k, v := range reply.Metadata {
		meta[k] = stringify(v)
	}
	return models.Deployment{Script: StripFence(reply.Script), Metadata: meta}, nil
}

// stringify flattens a decoded JSON value into a metadata string.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any, map[string]any:
		b, _ := json.Marshal(x)
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
