package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/forge/internal/agent"
	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/llm/llmtest"
	"github.com/joescharf/forge/internal/models"
	"github.com/joescharf/forge/internal/pipeline"
	"github.com/joescharf/forge/internal/runner"
	"github.com/joescharf/forge/internal/store"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockStore implements store.Store for testing.
type mockStore struct {
	runs []*models.Run

	// Optional error injection.
	listRunsErr error
	getRunErr   error
}

func (m *mockStore) CreateRun(_ context.Context, r *models.Run) error {
	if r.ID == "" {
		r.ID = fmt.Sprintf("run-%d", len(m.runs)+1)
	}
	m.runs = append(m.runs, r)
	return nil
}

func (m *mockStore) GetRun(_ context.Context, id string) (*models.Run, error) {
	if m.getRunErr != nil {
		return nil, m.getRunErr
	}
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("run %w: %s", store.ErrNotFound, id)
}

func (m *mockStore) ListRuns(_ context.Context, filter store.RunListFilter) ([]*models.Run, error) {
	if m.listRunsErr != nil {
		return nil, m.listRunsErr
	}
	var out []*models.Run
	for _, r := range m.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) DeleteRun(_ context.Context, id string) error { return nil }
func (m *mockStore) Migrate(_ context.Context) error             { return nil }
func (m *mockStore) Close() error                                { return nil }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func calculatorClient() *llmtest.Client {
	return llmtest.New().
		On(agent.RoleAnalyst, llmtest.Reply(`{"title": "Calculator", "description": "", "features": [], "constraints": [], "edge_cases": []}`)).
		On(agent.RoleDeveloper, llmtest.Reply("def add(a, b):\n    return a + b")).
		On(agent.RoleReviewer, llmtest.Reply(`{"status": "approved", "score": 9.0, "findings": [], "suggestions": []}`)).
		On(agent.RoleWriter, llmtest.Reply("# Calculator")).
		On(agent.RoleQA, llmtest.Reply("def test_add(): pass")).
		On(agent.RoleDevOps, llmtest.Reply(`{"script": "#!/bin/sh", "metadata": {}}`))
}

func newTestServer(t *testing.T, client llm.Client) (*Server, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	var r *runner.Runner
	if client != nil {
		var err error
		r, err = runner.New(client, pipeline.DefaultConfig(), runner.WithStore(ms))
		require.NoError(t, err)
	}
	return NewServer(ms, r, "test"), ms
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func seedRun(ms *mockStore, id string, status models.RunStatus) *models.Run {
	r := &models.Run{ID: id, Title: "Run " + id, Status: status, Language: "python", CreatedAt: time.Now()}
	if status == models.RunStatusCompleted {
		r.Result = &models.PipelineResult{
			FinalCode:     models.CodeArtifact{Source: "print('final')", Version: models.CodeVersionFinal, Iteration: 1},
			Documentation: "# Docs",
			Deployment:    models.Deployment{Script: "#!/bin/sh", Metadata: map[string]string{}},
			Review:        models.ReviewVerdict{Status: models.ReviewStatusApproved, Score: 8},
		}
	}
	ms.runs = append(ms.runs, r)
	return r
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv, "MCPServer() should return non-nil")
}

func TestHandleRun(t *testing.T) {
	srv, ms := newTestServer(t, calculatorClient())

	req := callToolReq("forge_run", map[string]any{"requirement": "a calculator", "language": "python", "max_iterations": float64(2)})
	result, err := srv.handleRun(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		ID          string  `json:"id"`
		Status      string  `json:"status"`
		ReviewScore float64 `json:"review_score"`
		FinalCode   string  `json:"final_code"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "run-1", out.ID)
	assert.Equal(t, "completed", out.Status)
	assert.Equal(t, 9.0, out.ReviewScore)
	assert.Contains(t, out.FinalCode, "def add")
	assert.Len(t, ms.runs, 1)
}

func TestHandleRun_MissingRequirement(t *testing.T) {
	srv, _ := newTestServer(t, calculatorClient())

	result, err := srv.handleRun(context.Background(), callToolReq("forge_run", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "requirement")
}

func TestHandleRun_NoLLM(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	result, err := srv.handleRun(context.Background(), callToolReq("forge_run", map[string]any{"requirement": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "LLM not configured")
}

func TestHandleRun_StageFailure(t *testing.T) {
	c := llmtest.New().On(agent.RoleAnalyst, llmtest.Fail(llm.ErrAuth))
	srv, ms := newTestServer(t, c)

	result, err := srv.handleRun(context.Background(), callToolReq("forge_run", map[string]any{"requirement": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "structure stage failed")
	require.Len(t, ms.runs, 1)
	assert.Equal(t, models.RunStatusFailed, ms.runs[0].Status)
}

func TestHandleListRuns(t *testing.T) {
	srv, ms := newTestServer(t, nil)
	seedRun(ms, "a", models.RunStatusCompleted)
	seedRun(ms, "b", models.RunStatusFailed)

	result, err := srv.handleListRuns(context.Background(), callToolReq("forge_list_runs", nil))
	require.NoError(t, err)

	var out []runSummary
	resultJSON(t, result, &out)
	assert.Len(t, out, 2)

	result, err = srv.handleListRuns(context.Background(), callToolReq("forge_list_runs", map[string]any{"status": "failed"}))
	require.NoError(t, err)
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
}

func TestHandleListRuns_StoreError(t *testing.T) {
	srv, ms := newTestServer(t, nil)
	ms.listRunsErr = errors.New("db down")

	result, err := srv.handleListRuns(context.Background(), callToolReq("forge_list_runs", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "db down")
}

func TestHandleGetRun(t *testing.T) {
	srv, ms := newTestServer(t, nil)
	seedRun(ms, "a", models.RunStatusCompleted)

	result, err := srv.handleGetRun(context.Background(), callToolReq("forge_get_run", map[string]any{"id": "a"}))
	require.NoError(t, err)
	var run models.Run
	resultJSON(t, result, &run)
	assert.Equal(t, "a", run.ID)
	require.NotNil(t, run.Result)

	result, err = srv.handleGetRun(context.Background(), callToolReq("forge_get_run", map[string]any{"id": "a", "artifact": "final_code"}))
	require.NoError(t, err)
	assert.Equal(t, "print('final')", resultText(t, result))

	result, err = srv.handleGetRun(context.Background(), callToolReq("forge_get_run", map[string]any{"id": "a", "artifact": "review"}))
	require.NoError(t, err)
	var verdict models.ReviewVerdict
	resultJSON(t, result, &verdict)
	assert.Equal(t, 8.0, verdict.Score)

	result, err = srv.handleGetRun(context.Background(), callToolReq("forge_get_run", map[string]any{"id": "a", "artifact": "bogus"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleGetRun_Errors(t *testing.T) {
	srv, ms := newTestServer(t, nil)
	seedRun(ms, "f", models.RunStatusFailed)

	result, err := srv.handleGetRun(context.Background(), callToolReq("forge_get_run", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleGetRun(context.Background(), callToolReq("forge_get_run", map[string]any{"id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "run not found")

	result, err = srv.handleGetRun(context.Background(), callToolReq("forge_get_run", map[string]any{"id": "f", "artifact": "final_code"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no artifacts")
}

func TestHandleRun_WithSQLiteStore(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	r, err := runner.New(calculatorClient(), pipeline.DefaultConfig(), runner.WithStore(s))
	require.NoError(t, err)
	srv := NewServer(s, r, "")

	result, err := srv.handleRun(context.Background(), callToolReq("forge_run", map[string]any{"requirement": "calc"}))
	require.NoError(t, err)
	var out runSummary
	resultJSON(t, result, &out)

	result, err = srv.handleGetRun(context.Background(), callToolReq("forge_get_run", map[string]any{"id": out.ID, "artifact": "documentation"}))
	require.NoError(t, err)
	assert.Equal(t, "# Calculator", resultText(t, result))
}
