// Package artifact lays a pipeline result out as files and ships them to a
// directory, a zip bundle or an S3-compatible bucket.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joescharf/forge/internal/agent"
	"github.com/joescharf/forge/internal/models"
)

// Fixed artifact names. Code files take the target language's extension.
const (
	RequirementsFile   = "requirements.json"
	ReviewFile         = "code_review.json"
	DocumentationFile  = "documentation.md"
	DeployScriptFile   = "deploy.sh"
	DeploymentInfoFile = "deployment_info.json"
	FullResultsFile    = "full_results.json"
	ReadmeFile         = "README.md"
)

// File is one named artifact.
type File struct {
	Name string
	Data []byte
	Mode os.FileMode
}

// InitialCodeFile returns the name of the pre-review code file.
func InitialCodeFile(lang agent.Language) string { return "initial_code." + lang.Ext }

// FinalCodeFile returns the name of the reviewed code file.
func FinalCodeFile(lang agent.Language) string { return "generated_code." + lang.Ext }

// TestsFile returns the name of the generated test suite.
func TestsFile(lang agent.Language) string { return "test_generated_code." + lang.Ext }

// Files renders res into the standard artifact set, README last.
func Files(res models.PipelineResult, lang agent.Language) ([]File, error) {
	requirements, err := marshal(res.Requirement.Structured)
	if err != nil {
		return nil, err
	}
	review, err := marshal(res.Review)
	if err != nil {
		return nil, err
	}
	deployment, err := marshal(res.Deployment)
	if err != nil {
		return nil, err
	}
	full, err := marshal(res)
	if err != nil {
		return nil, err
	}

	return []File{
		{Name: RequirementsFile, Data: requirements, Mode: 0o644},
		{Name: InitialCodeFile(lang), Data: []byte(res.InitialCode.Source), Mode: 0o644},
		{Name: FinalCodeFile(lang), Data: []byte(res.FinalCode.Source), Mode: 0o644},
		{Name: ReviewFile, Data: review, Mode: 0o644},
		{Name: DocumentationFile, Data: []byte(res.Documentation), Mode: 0o644},
		{Name: TestsFile(lang), Data: []byte(res.Tests), Mode: 0o644},
		{Name: DeployScriptFile, Data: []byte(res.Deployment.Script), Mode: 0o755},
		{Name: DeploymentInfoFile, Data: deployment, Mode: 0o644},
		{Name: FullResultsFile, Data: full, Mode: 0o644},
		{Name: ReadmeFile, Data: []byte(Readme(res, lang)), Mode: 0o644},
	}, nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteDir writes files into dir, creating it if needed.
func WriteDir(dir string, files []File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, f := range files {
		mode := f.Mode
		if mode == 0 {
			mode = 0o644
		}
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, f.Data, mode); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return nil
}

// Readme describes the artifact set of one run.
func Readme(res models.PipelineResult, lang agent.Language) string {
	generated := res.CompletedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	title := res.Requirement.Structured.Title
	if title == "" {
		title = "Generated Output"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	sb.WriteString("Artifacts generated by forge from a natural-language requirement.\n\n")

	sb.WriteString("## Generated Files\n\n")
	sb.WriteString("### Requirements\n")
	fmt.Fprintf(&sb, "- `%s` - Structured requirements from natural language input\n\n", RequirementsFile)
	sb.WriteString("### Code\n")
	fmt.Fprintf(&sb, "- `%s` - Final code after review\n", FinalCodeFile(lang))
	fmt.Fprintf(&sb, "- `%s` - Initial code before review\n\n", InitialCodeFile(lang))
	sb.WriteString("### Quality Assurance\n")
	fmt.Fprintf(&sb, "- `%s` - Code review results\n", ReviewFile)
	fmt.Fprintf(&sb, "- `%s` - Test suite (%s)\n\n", TestsFile(lang), lang.TestFramework)
	sb.WriteString("### Documentation\n")
	fmt.Fprintf(&sb, "- `%s` - Technical documentation\n\n", DocumentationFile)
	sb.WriteString("### Deployment\n")
	fmt.Fprintf(&sb, "- `%s` - Deployment script\n", DeployScriptFile)
	fmt.Fprintf(&sb, "- `%s` - Deployment metadata and timestamps\n\n", DeploymentInfoFile)
	sb.WriteString("### Complete Data\n")
	fmt.Fprintf(&sb, "- `%s` - All results in structured JSON format\n\n", FullResultsFile)

	sb.WriteString("## Run Summary\n\n")
	fmt.Fprintf(&sb, "- Language: %s\n", lang.Name)
	fmt.Fprintf(&sb, "- Model: %s\n", res.Model)
	fmt.Fprintf(&sb, "- Review: %s (score %.1f/10)\n", res.Review.Status, res.Review.Score)
	fmt.Fprintf(&sb, "- Iterations: %d (%s)\n", res.Iterations, res.Termination)
	for _, d := range res.Degradations {
		fmt.Fprintf(&sb, "- Degraded %s: %s\n", d.Stage, d.Reason)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(&sb, "- Failed %s: %s\n", f.Stage, f.Error)
	}
	fmt.Fprintf(&sb, "- Generated on: %s\n\n", generated.Format("2006-01-02 15:04:05"))

	sb.WriteString("## Deploy\n\n")
	sb.WriteString("```bash\nchmod +x deploy.sh\n./deploy.sh\n```\n\n")
	sb.WriteString("Generated code has not been executed or compiled. Review it before running.\n")
	return sb.String()
}
