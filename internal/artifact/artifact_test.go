package artifact

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/forge/internal/agent"
	"github.com/joescharf/forge/internal/models"
)

func sampleResult() models.PipelineResult {
	return models.PipelineResult{
		Requirement: models.Requirement{
			Raw:        "Create a calculator",
			Structured: models.StructuredRequirement{Title: "Calculator", Features: []string{"add"}, Constraints: []string{}, EdgeCases: []string{}},
		},
		InitialCode:   models.CodeArtifact{Source: "v1", Version: models.CodeVersionInitial, Iteration: 1},
		Review:        models.ReviewVerdict{Status: models.ReviewStatusApproved, Score: 9, Findings: []models.Finding{}, Suggestions: []string{}},
		FinalCode:     models.CodeArtifact{Source: "v2", Version: models.CodeVersionFinal, Iteration: 2},
		Documentation: "# Calculator",
		Tests:         "def test_add(): pass",
		Deployment:    models.Deployment{Script: "#!/bin/sh\necho hi", Metadata: map[string]string{"generated_at": "2026-02-01T10:00:00Z"}},
		Iterations:    2,
		Termination:   models.TerminationApproved,
		Degradations:  []models.Degradation{{Stage: models.StageStructure, Reason: "no JSON object in response"}},
		Failures:      []models.StageFailure{},
		Model:         "scripted",
		CompletedAt:   time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func names(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestFiles(t *testing.T) {
	files, err := Files(sampleResult(), agent.LookupLanguage("python"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"requirements.json", "initial_code.py", "generated_code.py", "code_review.json",
		"documentation.md", "test_generated_code.py", "deploy.sh", "deployment_info.json",
		"full_results.json", "README.md",
	}, names(files))

	byName := map[string]File{}
	for _, f := range files {
		byName[f.Name] = f
	}
	assert.Equal(t, "v1", string(byName["initial_code.py"].Data))
	assert.Equal(t, "v2", string(byName["generated_code.py"].Data))
	assert.Equal(t, os.FileMode(0o755), byName["deploy.sh"].Mode)

	var req models.StructuredRequirement
	require.NoError(t, json.Unmarshal(byName["requirements.json"].Data, &req))
	assert.Equal(t, "Calculator", req.Title)

	var full map[string]any
	require.NoError(t, json.Unmarshal(byName["full_results.json"].Data, &full))
	assert.Contains(t, full, "final_code")
	assert.Contains(t, full, "deployment")
}

func TestFiles_LanguageExtension(t *testing.T) {
	files, err := Files(sampleResult(), agent.LookupLanguage("go"))
	require.NoError(t, err)
	assert.Contains(t, names(files), "generated_code.go")
	assert.Contains(t, names(files), "test_generated_code.go")
}

func TestReadme(t *testing.T) {
	got := Readme(sampleResult(), agent.LookupLanguage("python"))
	assert.True(t, strings.HasPrefix(got, "# Calculator\n"))
	assert.Contains(t, got, "`generated_code.py`")
	assert.Contains(t, got, "pytest")
	assert.Contains(t, got, "approved (score 9.0/10)")
	assert.Contains(t, got, "Degraded structure: no JSON object in response")
	assert.Contains(t, got, "2026-02-01 10:00:00")
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files, err := Files(sampleResult(), agent.LookupLanguage("python"))
	require.NoError(t, err)

	require.NoError(t, WriteDir(dir, files))

	data, err := os.ReadFile(filepath.Join(dir, "documentation.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Calculator", string(data))

	info, err := os.Stat(filepath.Join(dir, "deploy.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "deploy.sh should be executable")
}

func TestZip(t *testing.T) {
	files := []File{
		{Name: "a.txt", Data: []byte("alpha")},
		{Name: "deploy.sh", Data: []byte("#!/bin/sh"), Mode: 0o755},
	}
	var buf bytes.Buffer
	require.NoError(t, Zip(&buf, files, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "a.txt", zr.File[0].Name)
	assert.Equal(t, os.FileMode(0o755), zr.File[1].Mode().Perm())

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "run-1/deploy.sh", ObjectKey(" run-1 ", "/deploy.sh"))
}

func TestS3Config_Enabled(t *testing.T) {
	assert.False(t, S3Config{}.Enabled())
	assert.False(t, S3Config{Endpoint: "localhost:9000"}.Enabled())
	assert.True(t, S3Config{Endpoint: "localhost:9000", Bucket: "runs"}.Enabled())
}

func TestNewS3Uploader_Validation(t *testing.T) {
	_, err := NewS3Uploader(S3Config{})
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewS3Uploader(S3Config{Endpoint: "localhost:9000", Bucket: "b"})
	assert.ErrorContains(t, err, "access key")

	_, err = NewS3Uploader(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket")
}

func TestS3Uploader_Upload(t *testing.T) {
	var mu sync.Mutex
	var puts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if r.Method == http.MethodPut {
			mu.Lock()
			puts = append(puts, r.URL.Path)
			mu.Unlock()
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	up, err := NewS3Uploader(S3Config{Endpoint: u.Host, AccessKey: "key", SecretKey: "secret", Bucket: "forge-runs"})
	require.NoError(t, err)

	keys, err := up.Upload(t.Context(), "run-1", []File{
		{Name: "README.md", Data: []byte("# hi")},
		{Name: "deploy.sh", Data: []byte("#!/bin/sh")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1/README.md", "run-1/deploy.sh"}, keys)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/forge-runs/run-1/README.md", "/forge-runs/run-1/deploy.sh"}, puts)
}
