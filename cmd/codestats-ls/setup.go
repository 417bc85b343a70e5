// ABOUTME: Cobra command for interactive Code::Stats account setup.
// ABOUTME: Launches a bubbletea TUI wizard to collect and validate the API URL and token.
package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/codestats-ls/internal/config"
	"github.com/2389-research/codestats-ls/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Connect your Code::Stats account",
	Long:  "Interactive wizard to configure the Code::Stats API URL and machine token.",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	// Pre-fill from every source, but only write back what the file holds.
	resolved, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := config.LoadFile()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	model := tui.NewSetupModel(resolved.API.URL, resolved.API.Token)

	p := tea.NewProgram(model)
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tui.SetupModel)
	if !final.ShouldSave() {
		fmt.Println("Setup cancelled.")
		return nil
	}

	apiURL, apiToken := final.Result()
	cfg.API.URL = apiURL
	if apiURL == config.DefaultAPIURL {
		cfg.API.URL = ""
	}
	cfg.API.Token = apiToken

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	configPath, err := config.GetConfigPath()
	if err != nil {
		fmt.Println("Config saved successfully.")
	} else {
		fmt.Printf("Config saved to %s\n", configPath)
	}
	return nil
}
