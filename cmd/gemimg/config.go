package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gemimg/pkg/browser"
	"gemimg/pkg/config"
	"gemimg/pkg/ui"
	"gemimg/pkg/watermark"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage gemimg configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (GEMIMG_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration with every available option.

The file is created in the current directory as '.gemimg.yaml' unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and check the environment",
	Long: `Validate the configuration and check that it can be used.

This command checks:
  - YAML syntax and value ranges
  - Output and profile directory accessibility
  - Whether the watermark removal tool is installed
  - Whether the browser profile is locked`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".gemimg.yaml"
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("✓ Configuration file created: " + path)
	fmt.Fprintln(os.Stdout, "\nNext steps:")
	fmt.Fprintln(os.Stdout, "1. Adjust the profile directory and watermark tool location if needed")
	fmt.Fprintln(os.Stdout, "2. Run 'gemimg config validate' to check the configuration")
	fmt.Fprintln(os.Stdout, "3. Run 'gemimg login' once, then 'gemimg generate \"<prompt>\"'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(os.Stdout)
	fmt.Fprint(os.Stdout, string(data))

	fmt.Fprintln(os.Stdout, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(os.Stdout, "1. Command line flags")
	fmt.Fprintf(os.Stdout, "2. Environment variables (%s*)\n", config.EnvPrefix)
	if configFile != "" {
		fmt.Fprintf(os.Stdout, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(os.Stdout, "3. Configuration file: (searched in default locations)")
	}
	fmt.Fprintln(os.Stdout, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var problems, warnings []string

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
	}
	if err := os.MkdirAll(cfg.Browser.ProfileDir, 0700); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create profile directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	if cfg.Watermark.Enabled && !watermark.NewExternalRemover(&cfg.Watermark).Available() {
		warnings = append(warnings, fmt.Sprintf("Watermark removal tool not found in %s; images will keep their watermark", cfg.Watermark.ToolDir))
	}
	if owner, locked := browser.LockOwner(cfg.Browser.ProfileDir); locked {
		warnings = append(warnings, fmt.Sprintf("Browser profile is locked by %s; run 'gemimg session unlock' if no browser is open", owner))
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Fprintf(os.Stdout, "  - %s\n", p)
		}
		return fmt.Errorf("%d configuration problem(s)", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Fprintf(os.Stdout, "  - %s\n", w)
		}
		fmt.Fprintln(os.Stdout)
	}

	ui.PrintSuccess("✓ Configuration is valid")

	fmt.Fprintln(os.Stdout, "\nConfiguration summary:")
	fmt.Fprintf(os.Stdout, "  Profile directory: %s\n", cfg.Browser.ProfileDir)
	fmt.Fprintf(os.Stdout, "  Output directory: %s\n", cfg.Output.Directory)
	fmt.Fprintf(os.Stdout, "  Generation timeout: %s\n", cfg.Gemini.GenerationTimeout)
	fmt.Fprintf(os.Stdout, "  Watermark removal: %t\n", cfg.Watermark.Enabled)
	fmt.Fprintf(os.Stdout, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
