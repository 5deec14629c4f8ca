package main

import (
	"github.com/spf13/cobra"

	"gemimg/pkg/gemini"
	"gemimg/pkg/logger"
	"gemimg/pkg/ui"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Open a browser window to sign in to Gemini",
	Long: `Open a visible browser window on Gemini and wait until you are signed in.

The session is stored in the browser profile directory, so later headless
runs are already logged in. The command polls for the chat input and gives
up after the configured login bound (5 minutes by default).`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.GetLogger().WithComponent("login")

	client := gemini.NewClient(cfg)
	defer func() {
		if err := client.Disconnect(); err != nil {
			log.WithError(err).Warn("Failed to disconnect browser")
		}
	}()

	if err := client.Connect(cmd.Context(), gemini.ConnectOptions{Headed: true}); err != nil {
		return err
	}

	ui.PrintHighlight("Sign in to your Google account in the browser window.")
	ui.PrintDim("Waiting for Gemini to show the chat input...")

	if err := client.EnsureLoggedIn(cmd.Context()); err != nil {
		return err
	}

	ui.PrintSuccess("✓ Logged in")
	ui.PrintInfo("Profile", cfg.Browser.ProfileDir)
	return nil
}
