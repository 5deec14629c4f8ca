package gemini

import (
	"context"
	"time"

	"gemimg/pkg/config"
)

// Options for the one-shot GenerateImage. The zero value runs headless
// with the configured timeout.
type Options struct {
	Headed      bool
	Timeout     time.Duration
	AspectRatio string
}

// DefaultOptions returns headless with the default 120s timeout
func DefaultOptions() Options {
	return Options{
		Timeout: 120 * time.Second,
	}
}

// GenerateImage connects, generates one image and disconnects, whatever the outcome
func GenerateImage(ctx context.Context, cfg *config.Config, prompt, outputPath string, opts Options, clientOpts ...Option) (*Result, error) {
	client := NewClient(cfg, clientOpts...)
	defer func() {
		if err := client.Disconnect(); err != nil {
			client.log.WithError(err).Warn("Failed to disconnect browser")
		}
	}()

	if err := client.Connect(ctx, ConnectOptions{Headed: opts.Headed}); err != nil {
		return nil, err
	}

	return client.GenerateImage(ctx, Request{
		Prompt:      prompt,
		OutputPath:  outputPath,
		AspectRatio: opts.AspectRatio,
		Timeout:     opts.Timeout,
	})
}
