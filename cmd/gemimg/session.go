package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gemimg/pkg/browser"
	"gemimg/pkg/ui"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or repair the saved browser session",
}

var sessionInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the profile directory and whether it is locked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ui.PrintInfo("Profile", cfg.Browser.ProfileDir)
		if owner, locked := browser.LockOwner(cfg.Browser.ProfileDir); locked {
			ui.PrintInfo("Lock", fmt.Sprintf("held by %s", owner))
		} else {
			ui.PrintInfo("Lock", "none")
		}
		return nil
	},
}

var sessionUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Remove a stale profile lock left behind by a crashed browser",
	Long: `Remove the SingletonLock files Chromium leaves in the profile directory.

Only run this when no browser is using the profile. A live browser holding
the lock will keep running, but a second one may corrupt the profile.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		owner, _ := browser.LockOwner(cfg.Browser.ProfileDir)
		removed, err := browser.RemoveStaleLock(cfg.Browser.ProfileDir)
		if err != nil {
			return fmt.Errorf("failed to remove profile lock: %w", err)
		}

		if !removed {
			ui.PrintDim("No lock found in " + cfg.Browser.ProfileDir)
			return nil
		}
		if owner != "" {
			ui.PrintSuccess(fmt.Sprintf("✓ Removed lock held by %s", owner))
		} else {
			ui.PrintSuccess("✓ Removed profile lock")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionInfoCmd)
	sessionCmd.AddCommand(sessionUnlockCmd)
}
