package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// initCmd writes the effective configuration to the config path
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Long: `Writes the effective configuration (defaults, environment and flags) to the
--config path so it can be edited. API keys are never written; keep them in
OPENAI_API_KEY or .env.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", cfgPath, err)
	}

	out := *cfg
	out.LLM.APIKey = ""
	if err := out.Save(cfgPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfgPath)
	return nil
}
