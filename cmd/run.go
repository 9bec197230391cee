package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/forge/internal/artifact"
	"github.com/joescharf/forge/internal/models"
	"github.com/joescharf/forge/internal/output"
	"github.com/joescharf/forge/internal/pipeline"
	"github.com/joescharf/forge/internal/runner"
	"github.com/joescharf/forge/internal/store"
)

var (
	runRequirement   string
	runMaxIterations int
	runLanguage      string
	runOut           string
	runZip           bool
	runUpload        bool
	runNoSave        bool
)

var runCmd = &cobra.Command{
	Use:   "run [file|-]",
	Short: "Run the pipeline on a requirement",
	Long: `Run the full agent pipeline on a requirement.

The requirement is read from --requirement, from a file argument, or from
stdin when the argument is "-". Artifacts are written to
<output_dir>/<run id>/ and the run is recorded in the local history.`,
	Example: `  forge run --requirement "Create a calculator class with add and divide"
  forge run requirement.txt --language go --max-iterations 5
  cat requirement.txt | forge run - --zip`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context(), args)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runRequirement, "requirement", "r", "", "Requirement text")
	runCmd.Flags().IntVarP(&runMaxIterations, "max-iterations", "i", 0, "Review iterations before accepting the code (default pipeline.max_iterations)")
	runCmd.Flags().StringVarP(&runLanguage, "language", "l", "", "Target language (default pipeline.language)")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Artifact directory (default <output_dir>/<run id>)")
	runCmd.Flags().BoolVar(&runZip, "zip", false, "Also write a zip bundle next to the artifact directory")
	runCmd.Flags().BoolVar(&runUpload, "upload", false, "Upload artifacts to the configured S3 bucket")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Do not record the run in the history database")
	rootCmd.AddCommand(runCmd)
}

func runRun(ctx context.Context, args []string) error {
	text, err := readRequirement(runRequirement, args, os.Stdin)
	if err != nil {
		return err
	}

	req := runner.Request{
		Requirement:   text,
		Language:      runLanguage,
		MaxIterations: runMaxIterations,
	}

	if dryRun {
		cfg := pipelineConfig()
		if req.Language != "" {
			cfg.Language = strings.ToLower(req.Language)
		}
		if req.MaxIterations > 0 {
			cfg.MaxIterations = req.MaxIterations
		}
		ui.DryRunMsg("Would run pipeline with %s (%s, %d iterations, parallel=%t)",
			llmConfig().Provider, cfg.Language, cfg.MaxIterations, cfg.Parallel)
		return nil
	}

	var s store.Store
	if !runNoSave {
		if s, err = getStore(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctxOrBackground(ctx), os.Interrupt)
	defer stop()

	r, err := newRunner(ctx, s)
	if err != nil {
		return err
	}

	start := time.Now()
	run, err := r.Execute(ctx, req, pipeline.WithObserver(progressObserver(ui)))
	if err != nil {
		if run != nil && run.ID != "" {
			ui.Info("Failed run recorded as %s", output.Cyan(run.ID))
		}
		return err
	}
	ui.VerboseLog("Pipeline finished in %s", time.Since(start).Round(time.Millisecond))

	dir := runOut
	if dir == "" {
		dir = filepath.Join(viper.GetString("output_dir"), runDirName(run, start))
	}
	if err := exportRun(run, dir, runZip); err != nil {
		return err
	}

	if runUpload {
		keys, err := r.Upload(ctx, run)
		if err != nil {
			return fmt.Errorf("upload artifacts: %w", err)
		}
		ui.Success("Uploaded %d objects", len(keys))
	}

	printRunSummary(run)
	return nil
}

// readRequirement resolves the requirement from the flag, a file argument
// or stdin ("-"). Exactly one source must be given.
func readRequirement(flag string, args []string, stdin io.Reader) (string, error) {
	if flag != "" && len(args) > 0 {
		return "", errors.New("pass the requirement either with --requirement or as an argument, not both")
	}

	var text string
	switch {
	case flag != "":
		text = flag
	case len(args) == 0:
		return "", errors.New("no requirement given (use --requirement, a file, or - for stdin)")
	case args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read requirement: %w", err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", pipeline.ErrEmptyRequirement
	}
	return text, nil
}

// runDirName names the artifact directory of a run: its id when recorded,
// otherwise a timestamp.
func runDirName(run *models.Run, start time.Time) string {
	if run.ID != "" {
		return run.ID
	}
	return "run_" + start.Format("20060102_150405")
}

// exportRun writes a completed run's artifacts into dir, and dir.zip when
// withZip is set.
func exportRun(run *models.Run, dir string, withZip bool) error {
	files, err := runner.Files(run)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would write %d files to %s", len(files), dir)
		return nil
	}

	if err := artifact.WriteDir(dir, files); err != nil {
		return err
	}
	ui.Success("Wrote %d files to %s", len(files), dir)

	if withZip {
		zipPath := strings.TrimRight(dir, string(filepath.Separator)) + ".zip"
		if err := writeZip(zipPath, files, runModified(run)); err != nil {
			return err
		}
		ui.Success("Wrote bundle %s", zipPath)
	}
	return nil
}

func writeZip(path string, files []artifact.File, modified time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	if err := artifact.Zip(f, files, modified); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func runModified(run *models.Run) time.Time {
	if run.CompletedAt != nil {
		return *run.CompletedAt
	}
	return run.CreatedAt
}

// progressObserver reports pipeline events on the terminal.
func progressObserver(u *output.UI) pipeline.Observer {
	return func(ev pipeline.Event) {
		label := stageLabel(ev)
		switch ev.Kind {
		case pipeline.EventStarted:
			u.Info("%s...", label)
		case pipeline.EventFinished:
			if ev.Verdict != nil {
				u.Info("%s: %s (score %s)", label,
					output.StatusColor(string(ev.Verdict.Status)), output.ScoreColor(ev.Verdict.Score))
				return
			}
			u.VerboseLog("%s done in %s", label, ev.Duration.Round(time.Millisecond))
		case pipeline.EventDegraded:
			u.Warning("%s: %s", label, ev.Reason)
		case pipeline.EventFailed:
			u.Error("%s: %v", label, ev.Err)
		}
	}
}

func stageLabel(ev pipeline.Event) string {
	var name string
	switch ev.Stage {
	case models.StageStructure:
		name = "Analyzing requirements"
	case models.StageGenerate:
		name = "Generating code"
	case models.StageReview:
		name = "Reviewing code"
	case models.StageDocumentation:
		name = "Writing documentation"
	case models.StageTests:
		name = "Writing tests"
	case models.StageDeployment:
		name = "Writing deploy script"
	default:
		name = string(ev.Stage)
	}
	if ev.Iteration > 0 && (ev.Stage == models.StageGenerate || ev.Stage == models.StageReview) {
		return fmt.Sprintf("%s (iteration %d)", name, ev.Iteration)
	}
	return name
}

// printRunSummary prints the one-screen outcome of a run.
func printRunSummary(run *models.Run) {
	fmt.Fprintln(ui.Out)
	if run.ID != "" {
		fmt.Fprintf(ui.Out, "Run:         %s\n", output.Cyan(run.ID))
	}
	fmt.Fprintf(ui.Out, "Title:       %s\n", run.Title)
	fmt.Fprintf(ui.Out, "Language:    %s\n", run.Language)
	fmt.Fprintf(ui.Out, "Status:      %s\n", output.StatusColor(string(run.Status)))
	if run.Result == nil {
		if run.Error != "" {
			fmt.Fprintf(ui.Out, "Error:       %s\n", output.Red(run.Error))
		}
		return
	}

	res := run.Result
	fmt.Fprintf(ui.Out, "Review:      %s (score %s)\n",
		output.StatusColor(string(res.Review.Status)), output.ScoreColor(res.Review.Score))
	fmt.Fprintf(ui.Out, "Iterations:  %d (%s)\n", res.Iterations, output.StatusColor(string(res.Termination)))
	if len(res.Degradations) > 0 {
		fmt.Fprintf(ui.Out, "Degraded:    %s\n", output.Yellow(joinStages(degradedStages(res))))
	}
	if len(res.Failures) > 0 {
		fmt.Fprintf(ui.Out, "Failed:      %s\n", output.Red(joinStages(failedStages(res))))
	}
}

func degradedStages(res *models.PipelineResult) []models.Stage {
	out := make([]models.Stage, 0, len(res.Degradations))
	for _, d := range res.Degradations {
		out = append(out, d.Stage)
	}
	return out
}

func failedStages(res *models.PipelineResult) []models.Stage {
	out := make([]models.Stage, 0, len(res.Failures))
	for _, f := range res.Failures {
		out = append(out, f.Stage)
	}
	return out
}

func joinStages(stages []models.Stage) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
