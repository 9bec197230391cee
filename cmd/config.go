package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "forge"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage forge configuration.

Running bare 'forge config' is the same as 'forge config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# forge configuration
# See: forge config show (for effective values and sources)

# State/data directory (default: ~/.config/forge)
# state_dir: {{ .StateDir }}

# SQLite run history (default: ~/.config/forge/forge.db)
# db_path: {{ .DBPath }}

# Where 'forge run' writes artifact directories
output_dir: "{{ .OutputDir }}"

# Model provider
llm:
  # One of: anthropic, openai, groq, gemini
  provider: "{{ .Provider }}"

  # Empty uses the provider default
  model: "{{ .Model }}"

  # Empty falls back to ANTHROPIC_API_KEY, OPENAI_API_KEY, GROQ_API_KEY or GEMINI_API_KEY
  # api_key: ""

  temperature: {{ .Temperature }}
  timeout: {{ .Timeout }}
  max_tokens: {{ .MaxTokens }}

  retry:
    max_attempts: {{ .MaxAttempts }}
    base_delay: {{ .BaseDelay }}

  # rps 0 disables client-side rate limiting
  rate_limit:
    rps: {{ .RPS }}
    burst: {{ .Burst }}

# Pipeline behaviour
pipeline:
  # Review/regenerate rounds before accepting the code (1-10)
  max_iterations: {{ .MaxIterations }}
  language: "{{ .Language }}"
  # Run documentation, tests and deployment concurrently
  parallel: {{ .Parallel }}

# Artifact upload (S3 or MinIO); disabled while endpoint or bucket is empty
s3:
  endpoint: "{{ .S3Endpoint }}"
  bucket: "{{ .S3Bucket }}"
  region: "{{ .S3Region }}"
  use_ssl: {{ .S3UseSSL }}
  # access_key: ""
  # secret_key: ""

# HTTP API port for 'forge serve'
port: {{ .Port }}
`

type configTemplateData struct {
	StateDir      string
	DBPath        string
	OutputDir     string
	Provider      string
	Model         string
	Temperature   float64
	Timeout       string
	MaxTokens     int
	MaxAttempts   int
	BaseDelay     string
	RPS           float64
	Burst         int
	MaxIterations int
	Language      string
	Parallel      bool
	S3Endpoint    string
	S3Bucket      string
	S3Region      string
	S3UseSSL      bool
	Port          int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:      viper.GetString("state_dir"),
		DBPath:        viper.GetString("db_path"),
		OutputDir:     viper.GetString("output_dir"),
		Provider:      viper.GetString("llm.provider"),
		Model:         viper.GetString("llm.model"),
		Temperature:   viper.GetFloat64("llm.temperature"),
		Timeout:       viper.GetDuration("llm.timeout").String(),
		MaxTokens:     viper.GetInt("llm.max_tokens"),
		MaxAttempts:   viper.GetInt("llm.retry.max_attempts"),
		BaseDelay:     viper.GetDuration("llm.retry.base_delay").String(),
		RPS:           viper.GetFloat64("llm.rate_limit.rps"),
		Burst:         viper.GetInt("llm.rate_limit.burst"),
		MaxIterations: viper.GetInt("pipeline.max_iterations"),
		Language:      viper.GetString("pipeline.language"),
		Parallel:      viper.GetBool("pipeline.parallel"),
		S3Endpoint:    viper.GetString("s3.endpoint"),
		S3Bucket:      viper.GetString("s3.bucket"),
		S3Region:      viper.GetString("s3.region"),
		S3UseSSL:      viper.GetBool("s3.use_ssl"),
		Port:          viper.GetInt("port"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeys lists the keys shown by 'config show', in display order.
var configKeys = []string{
	"state_dir",
	"db_path",
	"output_dir",
	"llm.provider",
	"llm.model",
	"llm.api_key",
	"llm.base_url",
	"llm.temperature",
	"llm.timeout",
	"llm.max_tokens",
	"llm.retry.max_attempts",
	"llm.retry.base_delay",
	"llm.rate_limit.rps",
	"llm.rate_limit.burst",
	"pipeline.max_iterations",
	"pipeline.language",
	"pipeline.parallel",
	"s3.endpoint",
	"s3.bucket",
	"s3.region",
	"s3.use_ssl",
	"s3.access_key",
	"s3.secret_key",
	"port",
}

// envVarFor maps a config key to the environment variable viper reads it from.
func envVarFor(key string) string {
	return "FORGE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// isSecret reports whether a key's value must not be printed.
func isSecret(key string) bool {
	return strings.HasSuffix(key, "_key")
}

// displayValue renders a value for 'config show', masking secrets.
func displayValue(key string, val any) string {
	s := fmt.Sprint(val)
	if isSecret(key) && s != "" {
		return "********"
	}
	return s
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := displayValue(k, viper.Get(k))
		source := detectSource(k, envVarFor(k), fileValues)
		fmt.Fprintf(ui.Out, "  %-26s %s  %s\n", k, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'forge config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
