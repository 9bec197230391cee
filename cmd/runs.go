package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/forge/internal/models"
	"github.com/joescharf/forge/internal/output"
	"github.com/joescharf/forge/internal/store"
)

var (
	runsStatus   string
	runsLimit    int
	runsShowCode bool
	runsOut      string
	runsZip      bool
)

var runsCmd = &cobra.Command{
	Use:     "runs",
	Aliases: []string{"history"},
	Short:   "Inspect recorded pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsListRun(cmd.Context())
	},
}

var runsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsListRun(cmd.Context())
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a run's review, artifacts and errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsShowRun(cmd.Context(), args[0])
	},
}

var runsRmCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"delete"},
	Short:   "Delete recorded runs",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsRmRun(cmd.Context(), args)
	},
}

var runsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a recorded run's artifacts to a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsExportRun(cmd.Context(), args[0])
	},
}

func init() {
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "Filter by status (completed, failed)")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list (0 for all)")
	runsShowCmd.Flags().BoolVar(&runsShowCode, "code", false, "Print the final code")
	runsExportCmd.Flags().StringVarP(&runsOut, "out", "o", "", "Target directory (default <output_dir>/<run id>)")
	runsExportCmd.Flags().BoolVar(&runsZip, "zip", false, "Also write a zip bundle")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsRmCmd)
	runsCmd.AddCommand(runsExportCmd)
	rootCmd.AddCommand(runsCmd)
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func runsListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	filter := store.RunListFilter{Limit: runsLimit}
	if runsStatus != "" {
		status := models.RunStatus(strings.ToLower(runsStatus))
		if status != models.RunStatusCompleted && status != models.RunStatusFailed {
			return fmt.Errorf("invalid status %q (want completed or failed)", runsStatus)
		}
		filter.Status = status
	}

	runs, err := s.ListRuns(ctxOrBackground(ctx), filter)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded yet. Start one with: forge run --requirement \"...\"")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Lang", "Status", "Review", "Score", "Iter", "Created"})
	for _, r := range runs {
		review, score := "-", "-"
		if r.Status == models.RunStatusCompleted {
			review = output.StatusColor(string(r.ReviewStatus))
			score = output.ScoreColor(r.ReviewScore)
		}
		_ = table.Append([]string{
			r.ID,
			truncate(runTitle(r), 40),
			r.Language,
			output.StatusColor(string(r.Status)),
			review,
			score,
			fmt.Sprintf("%d", r.Iterations),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()
	return nil
}

func runsShowRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	run, err := s.GetRun(ctxOrBackground(ctx), id)
	if err != nil {
		return err
	}

	printRunSummary(run)
	fmt.Fprintf(ui.Out, "Model:       %s\n", run.Model)
	fmt.Fprintf(ui.Out, "Created:     %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if run.FailedStage != "" {
		fmt.Fprintf(ui.Out, "Stage:       %s\n", output.Red(string(run.FailedStage)))
	}

	ui.Section("Requirement", run.Requirement)
	if run.Result == nil {
		return nil
	}
	res := run.Result

	ui.Section("Features", bullets(res.Requirement.Structured.Features))
	ui.Section("Findings", findingLines(res.Review.Findings))
	ui.Section("Suggestions", bullets(res.Review.Suggestions))
	ui.Section("Degradations", degradationLines(res.Degradations))
	ui.Section("Failures", failureLines(res.Failures))
	if runsShowCode {
		ui.Section("Final code", res.FinalCode.Source)
	}
	if meta, err := json.MarshalIndent(res.Deployment.Metadata, "", "  "); err == nil && len(res.Deployment.Metadata) > 0 {
		ui.Section("Deployment", string(meta))
	}
	return nil
}

func runsRmRun(ctx context.Context, ids []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx = ctxOrBackground(ctx)

	for _, id := range ids {
		if dryRun {
			ui.DryRunMsg("Would delete run %s", id)
			continue
		}
		if err := s.DeleteRun(ctx, id); err != nil {
			return err
		}
		ui.Success("Deleted run %s", id)
	}
	return nil
}

func runsExportRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	run, err := s.GetRun(ctxOrBackground(ctx), id)
	if err != nil {
		return err
	}

	dir := runsOut
	if dir == "" {
		dir = filepath.Join(viper.GetString("output_dir"), run.ID)
	}
	return exportRun(run, dir, runsZip)
}

func runTitle(r *models.Run) string {
	if r.Title != "" {
		return r.Title
	}
	return firstLine(r.Requirement)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func bullets(items []string) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "  - %s\n", it)
	}
	return b.String()
}

func findingLines(findings []models.Finding) string {
	var b strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&b, "  [%s] %s\n", output.FindingColor(string(f.Kind)), f.Message)
	}
	return b.String()
}

func degradationLines(ds []models.Degradation) string {
	var b strings.Builder
	for _, d := range ds {
		fmt.Fprintf(&b, "  %s: %s\n", output.Yellow(string(d.Stage)), d.Reason)
	}
	return b.String()
}

func failureLines(fs []models.StageFailure) string {
	var b strings.Builder
	for _, f := range fs {
		fmt.Fprintf(&b, "  %s: %s\n", output.Red(string(f.Stage)), f.Error)
	}
	return b.String()
}
