package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gemimg/pkg/config"
	errs "gemimg/pkg/errors"
	"gemimg/pkg/logger"
	"gemimg/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	profileDir string
	install    bool
	noColor    bool
	noLogo     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gemimg",
	Short: "Generate images with Gemini from the command line",
	Long: `gemimg drives the Gemini web app in a real browser to turn a text prompt
into a full-size image file.

The browser profile keeps your Google login between runs. Run 'gemimg login'
once to sign in, then generate headlessly:

  gemimg generate "a red circle on white background" -o circle.png

If the SynthID removal tool is installed, the watermark is stripped from
every downloaded image.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		tty := term.IsTerminal(int(os.Stdout.Fd()))
		ui.SetColor(tty && !noColor)

		switch cmd.Name() {
		case "generate", "batch", "login":
			if tty && !noLogo {
				ui.PrintLogo()
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: .gemimg.yaml, then ~/.config/gemimg/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&profileDir, "profile-dir", "", "browser profile directory (default: ~/.gemimg/profile)")
	rootCmd.PersistentFlags().BoolVar(&install, "install", false, "download the playwright driver and Chromium before launching")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noLogo, "no-logo", false, "do not print the banner")

	rootCmd.SetVersionTemplate(`gemimg {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig layers flags over env over file over defaults and initialises
// the global logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialise logging: %w", err)
	}
	return cfg, nil
}

// collectFlags returns only the flags the user set, keyed the way
// config.MergeCommandLineFlags expects
func collectFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	fs := cmd.Flags()

	for _, name := range []string{"profile-dir", "output-dir", "log-level"} {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			flags[name] = v
		}
	}
	for _, name := range []string{"headless", "install", "watermark", "metadata"} {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			flags[name] = v
		}
	}
	if fs.Changed("timeout") {
		v, _ := fs.GetDuration("timeout")
		flags["timeout"] = v
	}
	if fs.Changed("per-minute") {
		v, _ := fs.GetInt("per-minute")
		flags["per-minute"] = v
	}

	return flags
}

// reportError prints err and, for typed failures, what to do about it
func reportError(err error) {
	if t, ok := errs.TypeOf(err); ok {
		ui.PrintError(t.Code(), err.Error())
	} else {
		ui.PrintError("Error", err.Error())
	}
	fmt.Fprintln(os.Stdout)
	ui.PrintDim(errs.Guidance(err))
}
