package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"campusnerd/cmd/campus/ui"
	"campusnerd/internal/browser"
	"campusnerd/internal/llm"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available on the Ollama endpoint",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the language model backend is reachable",
	Long: `Checks the language model backend and, with --browser, that Chrome can be
launched on the configured profile or attached over --debugger-url.`,
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), 15*time.Second)
	defer cancel()

	ollama := llm.NewOllama(cfg.LLM.Endpoint, cfg.LLM.Model, cfg.GetLLMTimeout())
	models, err := ollama.Models(ctx)
	if err != nil {
		return fmt.Errorf("could not list models at %s: %w", ollama.Endpoint(), err)
	}

	t := ui.NewTable(fmt.Sprintf("Models at %s", ollama.Endpoint()), "Name", "Size", "Modified")
	for _, m := range models {
		name := m.Name
		if modelMatches(m.Name, cfg.LLM.Model) {
			name += " *"
		}
		t.AddRow(name, humanSize(m.Size), m.ModifiedAt.Format("2006-01-02"))
	}
	fmt.Fprint(cmd.OutOrStdout(), t.View(ui.DefaultStyles()))
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), 15*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()
	styles := ui.DefaultStyles()

	if err := checkBackend(ctx, out, styles); err != nil {
		return err
	}
	if withBrowser, _ := cmd.Flags().GetBool("browser"); withBrowser {
		return checkBrowser(ctx, out, styles, browser.NewSessionManager(browserConfig(cfg)))
	}
	return nil
}

// checkBrowser starts Chrome (or attaches to it) and disconnects again.
func checkBrowser(ctx context.Context, out io.Writer, styles ui.Styles, m *browser.SessionManager) error {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = m.Shutdown(shutdownCtx)
	}()

	if err := m.Start(ctx); err != nil || !m.IsConnected() {
		msg := "not connected"
		if err != nil {
			msg = err.Error()
		}
		fmt.Fprintln(out, styles.Error.Render("✗ Chrome: "+msg))
		return fmt.Errorf("browser unavailable")
	}
	fmt.Fprintf(out, "✓ Chrome connected at %s\n", m.ControlURL())
	return nil
}

func checkBackend(ctx context.Context, out io.Writer, styles ui.Styles) error {
	if cfg.LLM.Provider == "openai" {
		client := newLLMClient(cfg)
		_, err := client.Complete(ctx, llm.Request{Prompt: "Reply with OK."})
		if err != nil {
			fmt.Fprintln(out, styles.Error.Render("✗ "+cfg.LLM.Endpoint+": "+err.Error()))
			return fmt.Errorf("backend unreachable")
		}
		fmt.Fprintf(out, "✓ %s answers with model %s\n", cfg.LLM.Endpoint, client.Model())
		return nil
	}

	ollama := llm.NewOllama(cfg.LLM.Endpoint, cfg.LLM.Model, cfg.GetLLMTimeout())
	if err := ollama.Ping(ctx); err != nil {
		fmt.Fprintln(out, styles.Error.Render("✗ "+ollama.Endpoint()+": "+err.Error()))
		return fmt.Errorf("backend unreachable")
	}
	fmt.Fprintf(out, "✓ Ollama reachable at %s\n", ollama.Endpoint())

	models, err := ollama.Models(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if modelMatches(m.Name, cfg.LLM.Model) {
			fmt.Fprintf(out, "✓ Model %s is available\n", m.Name)
			return nil
		}
	}
	fmt.Fprintln(out, styles.Warning.Render(fmt.Sprintf("! Model %s is not pulled; run: ollama pull %s", cfg.LLM.Model, cfg.LLM.Model)))
	return fmt.Errorf("model %s not available", cfg.LLM.Model)
}

// modelMatches treats "mistral" and "mistral:latest" as the same model.
func modelMatches(name, want string) bool {
	if name == want {
		return true
	}
	return !strings.Contains(want, ":") && name == want+":latest"
}

func humanSize(b int64) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "kMGTPE"[exp])
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
