package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gemimg/pkg/config"
	"gemimg/pkg/gemini"
	"gemimg/pkg/imageinfo"
	"gemimg/pkg/metadata"
	"gemimg/pkg/storage"
	"gemimg/pkg/ui"
)

var (
	outputPath  string
	outputDir   string
	aspectRatio string
	timeout     time.Duration
	headless    bool
	stripMark   bool
	writeMeta   bool
	notify      bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate one image from a prompt",
	Long: `Generate one image from a text prompt and save it to disk.

The prompt is sent to Gemini together with an instruction to generate an
image. The full-size image is downloaded, the watermark removed when the
removal tool is available, and the absolute path printed.

Examples:
  gemimg generate "a red circle on white background" -o circle.png
  gemimg generate "mountain lake at dawn" --aspect-ratio 16:9 --timeout 3m
  gemimg generate "pixel art cat" --headless=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: next free gemini-NNN.png in the output directory)")
	generateCmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for generated images when --output is not set")
	addGenerationFlags(generateCmd)
}

// addGenerationFlags registers the flags shared by generate and batch
func addGenerationFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&aspectRatio, "aspect-ratio", "", "aspect ratio hint appended to the prompt, e.g. 16:9")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 120*time.Second, "how long to wait for the image to appear")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	cmd.Flags().BoolVar(&stripMark, "watermark", true, "remove the watermark when the removal tool is installed")
	cmd.Flags().BoolVar(&writeMeta, "metadata", false, "write a JSON sidecar next to each image")
	cmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when done")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	target := outputPath
	if target == "" {
		manager, err := storage.NewManager(cfg.Output.Directory)
		if err != nil {
			return err
		}
		target = manager.NextPath("gemini", ".png")
	}

	ui.PrintInfo("Prompt", prompt)
	if aspectRatio != "" {
		ui.PrintInfo("Aspect ratio", aspectRatio)
	}
	ui.PrintDim(fmt.Sprintf("Waiting up to %s for the image...", cfg.Gemini.GenerationTimeout))

	result, err := gemini.GenerateImage(cmd.Context(), cfg, prompt, target, generationOptions(cfg))
	if err != nil {
		if notify {
			ui.NewNotifier().SendError("gemimg", "Image generation failed")
		}
		return err
	}

	printResult(result)
	if notify {
		ui.NewNotifier().SendSuccess("gemimg", "Saved "+result.ImagePath)
	}
	return nil
}

func generationOptions(cfg *config.Config) gemini.Options {
	return gemini.Options{
		Headed:      !cfg.Browser.Headless,
		Timeout:     cfg.Gemini.GenerationTimeout,
		AspectRatio: aspectRatio,
	}
}

func printResult(result *gemini.Result) {
	ui.PrintSuccess("✓ Image saved")
	ui.PrintInfo("Path", result.ImagePath)
	dims := imageinfo.Dimensions{Width: result.Width, Height: result.Height}
	if dims.Known() {
		ratio := (&metadata.ImageMetadata{Width: dims.Width, Height: dims.Height}).GetAspectRatio()
		ui.PrintInfo("Size", fmt.Sprintf("%dx%d (%s)", dims.Width, dims.Height, ratio))
	}
	if result.WatermarkRemoved {
		ui.PrintInfo("Watermark", "removed")
	} else {
		ui.PrintInfo("Watermark", "kept")
	}
	if result.MetadataPath != "" {
		ui.PrintInfo("Metadata", result.MetadataPath)
	}
}
