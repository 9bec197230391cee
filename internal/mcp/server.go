package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/forge/internal/models"
	"github.com/joescharf/forge/internal/runner"
	"github.com/joescharf/forge/internal/store"
)

// Server exposes forge runs as MCP tools.
type Server struct {
	store   store.Store
	runner  *runner.Runner
	version string
}

// NewServer creates the MCP server wrapper. The runner may be nil when no
// model is configured; forge_run then reports an error result.
func NewServer(s store.Store, r *runner.Runner, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{store: s, runner: r, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("forge", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.runTool())
	srv.AddTool(s.listRunsTool())
	srv.AddTool(s.getRunTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// runSummary is the compact view of a run returned by the tools.
type runSummary struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Language     string              `json:"language"`
	Status       models.RunStatus    `json:"status"`
	ReviewStatus models.ReviewStatus `json:"review_status,omitempty"`
	ReviewScore  float64             `json:"review_score"`
	Iterations   int                 `json:"iterations"`
	Termination  models.Termination  `json:"termination,omitempty"`
	FailedStage  models.Stage        `json:"failed_stage,omitempty"`
	Error        string              `json:"error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

func summarize(r *models.Run) runSummary {
	return runSummary{
		ID:           r.ID,
		Title:        r.Title,
		Language:     r.Language,
		Status:       r.Status,
		ReviewStatus: r.ReviewStatus,
		ReviewScore:  r.ReviewScore,
		Iterations:   r.Iterations,
		Termination:  r.Termination,
		FailedStage:  r.FailedStage,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// forge_run
func (s *Server) runTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_run",
		mcp.WithDescription("Turn a natural-language software requirement into reviewed code, tests, documentation and a deployment script. Blocks until the run finishes and returns the run summary with the final code."),
		mcp.WithString("requirement", mcp.Required(), mcp.Description("The software requirement in plain language")),
		mcp.WithString("language", mcp.Description("Target language (python, go, javascript, typescript, java, rust). Defaults to the configured language.")),
		mcp.WithNumber("max_iterations", mcp.Description("Maximum review iterations (1-10). Defaults to the configured cap.")),
	)
	return tool, s.handleRun
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requirement, err := request.RequireString("requirement")
	if err != nil || strings.TrimSpace(requirement) == "" {
		return mcp.NewToolResultError("missing required parameter: requirement"), nil
	}
	if s.runner == nil {
		return mcp.NewToolResultError("LLM not configured (set llm.api_key or the provider's API key env var)"), nil
	}

	run, err := s.runner.Execute(ctx, runner.Request{
		Requirement:   requirement,
		Language:      request.GetString("language", ""),
		MaxIterations: request.GetInt("max_iterations", 0),
	})
	if run == nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid run request: %v", err)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run %s failed: %v", run.ID, err)), nil
	}

	out := struct {
		runSummary
		FinalCode    string                `json:"final_code"`
		Degradations []models.Degradation  `json:"degradations"`
		Failures     []models.StageFailure `json:"failures"`
	}{runSummary: summarize(run)}
	if run.Result != nil {
		out.FinalCode = run.Result.FinalCode.Source
		out.Degradations = run.Result.Degradations
		out.Failures = run.Result.Failures
	}
	return jsonResult(out)
}

// forge_list_runs
func (s *Server) listRunsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_list_runs",
		mcp.WithDescription("List recorded runs, newest first. Returns a JSON array of run summaries."),
		mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("completed", "failed")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return (default 20)")),
	)
	return tool, s.handleListRuns
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.RunListFilter{
		Status: models.RunStatus(request.GetString("status", "")),
		Limit:  request.GetInt("limit", 20),
	}
	runs, err := s.store.ListRuns(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	out := make([]runSummary, len(runs))
	for i, r := range runs {
		out[i] = summarize(r)
	}
	return jsonResult(out)
}

// forge_get_run
func (s *Server) getRunTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_get_run",
		mcp.WithDescription("Get one run. Without an artifact, returns the run with its full result as JSON. With an artifact, returns that artifact's text."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Run ID")),
		mcp.WithString("artifact", mcp.Description("Artifact to return"),
			mcp.Enum("requirements", "initial_code", "final_code", "review", "documentation", "tests", "deploy_script", "deployment")),
	)
	return tool, s.handleGetRun
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("run not found: %s", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to get run: %v", err)), nil
	}

	name := request.GetString("artifact", "")
	if name == "" {
		return jsonResult(run)
	}
	if run.Result == nil {
		return mcp.NewToolResultError(fmt.Sprintf("run %s has no artifacts (status %s)", id, run.Status)), nil
	}

	res := run.Result
	switch name {
	case "requirements":
		return jsonResult(res.Requirement.Structured)
	case "initial_code":
		return mcp.NewToolResultText(res.InitialCode.Source), nil
	case "final_code":
		return mcp.NewToolResultText(res.FinalCode.Source), nil
	case "review":
		return jsonResult(res.Review)
	case "documentation":
		return mcp.NewToolResultText(res.Documentation), nil
	case "tests":
		return mcp.NewToolResultText(res.Tests), nil
	case "deploy_script":
		return mcp.NewToolResultText(res.Deployment.Script), nil
	case "deployment":
		return jsonResult(res.Deployment)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown artifact: %s", name)), nil
	}
}
