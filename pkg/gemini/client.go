package gemini

import (
	"context"
	"strings"
	"time"

	"gemimg/pkg/browser"
	"gemimg/pkg/config"
	"gemimg/pkg/driver"
	errs "gemimg/pkg/errors"
	"gemimg/pkg/imageinfo"
	"gemimg/pkg/logger"
	"gemimg/pkg/metadata"
	"gemimg/pkg/storage"
	"gemimg/pkg/watermark"
)

// SessionManager owns the browser session a Client drives
type SessionManager interface {
	Connect(ctx context.Context, headless bool) error
	Disconnect() error
	CurrentPage() (driver.Page, error)
}

// ConnectOptions controls how the browser is launched. The zero value runs headless.
type ConnectOptions struct {
	// Headed shows the browser window, e.g. for an interactive login
	Headed bool
}

// Request is one image generation
type Request struct {
	Prompt     string
	OutputPath string
	// AspectRatio is an optional hint such as "16:9"
	AspectRatio string
	// Timeout bounds the wait for the image; zero uses the configured default
	Timeout time.Duration
}

// Result describes a generated image. Width and Height are zero when the
// file format was not recognised.
type Result struct {
	ImagePath        string
	Width            int
	Height           int
	WatermarkRemoved bool
	MetadataPath     string
}

// Option customises a Client
type Option func(*Client)

// WithSessionManager replaces the playwright session
func WithSessionManager(s SessionManager) Option {
	return func(c *Client) { c.session = s }
}

// WithRemover replaces the external watermark tool
func WithRemover(r watermark.Remover) Option {
	return func(c *Client) { c.remover = r }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithDriverOptions overrides the page interaction settings derived from config
func WithDriverOptions(o driver.Options) Option {
	return func(c *Client) { c.driverOpts = &o }
}

// Client generates images through one logged-in browser session. Calls are
// sequential; use one Client per profile directory.
type Client struct {
	cfg        *config.Config
	session    SessionManager
	remover    watermark.Remover
	driverOpts *driver.Options
	log        logger.Logger

	processor *watermark.Processor
	page      driver.Page
	driver    *driver.Driver
}

// NewClient creates a client from cfg
func NewClient(cfg *config.Config, opts ...Option) *Client {
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	c.log = logger.OrDefault(c.log).WithComponent("gemini")
	if c.session == nil {
		c.session = browser.NewManager(browser.OptionsFromConfig(&cfg.Browser), c.log)
	}
	if c.driverOpts == nil {
		o := driver.OptionsFromConfig(&cfg.Gemini)
		c.driverOpts = &o
	}
	if cfg.Watermark.Enabled {
		if c.remover == nil {
			c.remover = watermark.NewExternalRemover(&cfg.Watermark)
		}
		c.processor = watermark.NewProcessor(c.remover, c.log)
	}
	return c
}

// Connect opens the browser session
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) error {
	return c.session.Connect(ctx, !opts.Headed)
}

// Disconnect closes the browser session. Safe to call repeatedly.
func (c *Client) Disconnect() error {
	c.page = nil
	c.driver = nil
	return c.session.Disconnect()
}

func (c *Client) currentDriver() (*driver.Driver, error) {
	page, err := c.session.CurrentPage()
	if err != nil {
		return nil, err
	}
	if c.driver == nil || page != c.page {
		c.page = page
		c.driver = driver.New(page, *c.driverOpts, c.log)
	}
	return c.driver, nil
}

// EnsureLoggedIn opens the app and waits until the profile has a signed-in session
func (c *Client) EnsureLoggedIn(ctx context.Context) error {
	d, err := c.currentDriver()
	if err != nil {
		return err
	}
	if err := d.Navigate(ctx); err != nil {
		return err
	}
	if err := d.HandleConsent(ctx); err != nil {
		return err
	}
	return d.WaitForLogin(ctx)
}

// GenerateImage submits a prompt and saves the resulting image at
// req.OutputPath. It can be called repeatedly on one connection.
func (c *Client) GenerateImage(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	var outPath string
	defer func() {
		w, h := 0, 0
		if result != nil {
			w, h = result.Width, result.Height
		}
		logger.LogGeneration(c.log, req.Prompt, outPath, w, h, time.Since(start), err)
	}()

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errs.NewGeneration("Prompt is empty")
	}
	outPath, err = storage.ResolveOutputPath(req.OutputPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeGeneration, err, "Invalid output path")
	}

	d, err := c.currentDriver()
	if err != nil {
		return nil, err
	}
	if err := c.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}
	d.DismissOverlay(ctx)

	if err := d.SubmitPrompt(ctx, req.Prompt, req.AspectRatio); err != nil {
		return nil, err
	}
	if err := d.WaitForImage(ctx, req.Timeout); err != nil {
		return nil, err
	}
	if err := d.Download(ctx, outPath); err != nil {
		return nil, err
	}

	removed := c.processor.RemoveWatermark(ctx, outPath)
	dims := imageinfo.ReadDimensions(outPath)

	result = &Result{
		ImagePath:        outPath,
		Width:            dims.Width,
		Height:           dims.Height,
		WatermarkRemoved: removed,
	}

	if c.cfg.Output.WriteMetadata {
		meta := metadata.New(outPath, req.Prompt)
		meta.SentPrompt = driver.BuildPrompt(c.driverOpts.InstructionPrefix, req.Prompt, req.AspectRatio)
		meta.AspectRatio = req.AspectRatio
		meta.Width = dims.Width
		meta.Height = dims.Height
		meta.WatermarkRemoved = removed
		meta.Duration = time.Since(start)
		if path, err := meta.Save(); err != nil {
			c.log.WithError(err).Warn("Failed to write metadata")
		} else {
			result.MetadataPath = path
		}
	}

	return result, nil
}
