// Command campus answers questions about a student's courses and deadlines
// by reading the learning dashboard through a logged-in browser profile and
// reasoning over it with a local language model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"campusnerd/internal/config"
	"campusnerd/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgPath     string
	verbose     bool
	provider    string
	model       string
	endpoint    string
	maxSteps    int
	timeout     time.Duration
	headless    bool
	debuggerURL string
	userDataDir string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "campus",
	Short: "campus - ask questions about your courses and deadlines",
	Long: `campus reads your learning dashboard (courses and timeline) through a
browser profile where you are already logged in, and answers questions with a
locally hosted language model.

Answers are grounded in what the dashboard shows: when the data cannot be
retrieved, campus says so instead of guessing.

Run without arguments to start the interactive chat.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", ".campus/config.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "LLM provider: ollama or openai")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "Model identifier (default from config, mistral)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "LLM endpoint (or set OLLAMA_HOST)")
	rootCmd.PersistentFlags().IntVar(&maxSteps, "max-steps", 0, "Maximum reasoning steps per question")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Wall-clock limit per question (0 = none)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "Run Chrome headless")
	rootCmd.PersistentFlags().StringVar(&debuggerURL, "debugger-url", "", "Attach to a running Chrome (ws:// or http://host:port)")
	rootCmd.PersistentFlags().StringVar(&userDataDir, "user-data-dir", "", "Chrome profile holding the dashboard login")

	askCmd.Flags().Bool("show-steps", false, "Print the reasoning trace")
	coursesCmd.Flags().Bool("json", false, "Print JSON instead of a table")
	deadlinesCmd.Flags().Bool("json", false, "Print JSON instead of a table")
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	healthCmd.Flags().Bool("browser", false, "Also check that Chrome can be started or attached")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(deadlinesCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads .env and the config file, applies flag overrides and
// initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	loaded, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, loaded)
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	// The chat UI owns the terminal; log only when asked to.
	if isInteractive(cmd) && !verbose {
		logger = zap.NewNop()
	} else if logger, err = logging.Build(level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.Initialize(logger, cfg.Logging.Categories)

	if err := logging.InitAudit(cfg.Logging.AuditFile); err != nil {
		logging.BootWarn("Audit log disabled: %v", err)
	}
	logging.BootDebug("Config loaded from %s (provider=%s model=%s)", cfgPath, cfg.LLM.Provider, cfg.LLM.Model)
	return nil
}

func isInteractive(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd.Name() == "chat"
}

// applyFlags copies explicitly set global flags over the loaded config.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		c.LLM.Provider = strings.ToLower(provider)
	}
	if flags.Changed("model") {
		c.LLM.Model = model
	}
	if flags.Changed("endpoint") {
		c.LLM.Endpoint = endpoint
	}
	if flags.Changed("max-steps") {
		c.Agent.MaxSteps = maxSteps
	}
	if flags.Changed("timeout") {
		c.Agent.Timeout = timeout.String()
	}
	if flags.Changed("headless") {
		c.Browser.Headless = headless
	}
	if flags.Changed("debugger-url") {
		c.Browser.DebuggerURL = debuggerURL
	}
	if flags.Changed("user-data-dir") {
		c.Browser.UserDataDir = userDataDir
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
