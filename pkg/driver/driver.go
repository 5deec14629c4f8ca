package driver

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	errs "gemimg/pkg/errors"
	"gemimg/pkg/logger"
	"gemimg/pkg/retry"
	"gemimg/pkg/storage"
)

var errNoDownloadEvent = stderrors.New("no download event")

// Driver runs the interaction sequence against one page. It is not safe for
// concurrent use; the page is driven strictly one step at a time.
type Driver struct {
	page    Page
	opts    Options
	machine *Machine
	log     logger.Logger
}

// New creates a driver for page
func New(page Page, opts Options, log logger.Logger) *Driver {
	log = logger.OrDefault(log).WithComponent("driver")
	return &Driver{
		page:    page,
		opts:    opts,
		machine: NewMachine(log),
		log:     log,
	}
}

// State returns the current interaction state
func (d *Driver) State() State {
	return d.machine.State()
}

// Machine exposes the state machine, mostly for inspection in tests
func (d *Driver) Machine() *Machine {
	return d.machine
}

// Navigate loads the application and waits for client-side rendering
func (d *Driver) Navigate(ctx context.Context) error {
	d.machine.Reset()

	d.log.DebugWithFields("Navigating", map[string]interface{}{"url": d.opts.AppURL})
	if err := d.page.Goto(ctx, d.opts.AppURL); err != nil {
		return errs.Wrap(errs.ErrorTypeBrowser, err, fmt.Sprintf("Failed to load %s", d.opts.AppURL))
	}

	// single-page app; there is no reliable network-idle signal
	return retry.Wait(ctx, d.opts.SettleDelay)
}

// HandleConsent accepts the cookie interstitial if the page landed on it.
// A missing accept control is not an error.
func (d *Driver) HandleConsent(ctx context.Context) error {
	if !hostIs(d.page.URL(), d.opts.ConsentHost) {
		return nil
	}
	if err := d.machine.Transition(StateAwaitingConsent); err != nil {
		return err
	}

	match, ok := d.opts.Selectors.ConsentAccept.Detect(ctx, d.page)
	if !ok {
		d.log.Debug("Consent page without an accept control")
		return ctx.Err()
	}

	if err := d.page.Click(ctx, match.Target); err != nil {
		d.log.WithError(err).Warn("Failed to accept consent")
		return ctx.Err()
	}
	d.log.Info("Accepted consent interstitial")
	return retry.Wait(ctx, d.opts.SettleDelay)
}

// IsLoggedIn reports whether a chat input is visible and the page is not on
// the sign-in host
func (d *Driver) IsLoggedIn(ctx context.Context) bool {
	if hostIs(d.page.URL(), d.opts.AuthHost) {
		return false
	}
	_, ok := d.opts.Selectors.ChatInput.Detect(ctx, d.page)
	return ok
}

// WaitForLogin polls until the user is logged in. Each poll is a fresh
// evaluation; failures inside a poll count as "not yet".
func (d *Driver) WaitForLogin(ctx context.Context) error {
	maxAttempts := d.opts.LoginMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if d.IsLoggedIn(ctx) {
			if attempt > 1 {
				d.log.InfoWithFields("Login detected", map[string]interface{}{"polls": attempt})
			}
			return d.machine.Transition(StateReady)
		}

		if attempt == 1 {
			if err := d.machine.Transition(StateAwaitingLogin); err != nil {
				return err
			}
			d.log.Warn("Not logged in. Sign in to Google in the browser window")
		}

		if attempt == maxAttempts {
			break
		}
		if err := retry.Wait(ctx, d.opts.LoginPollInterval); err != nil {
			return fmt.Errorf("waiting for login: %w", err)
		}
	}

	_ = d.machine.Transition(StateTimedOut)
	return errs.NewAuth("Login timeout after %s", humanDuration(d.opts.LoginPollInterval*time.Duration(maxAttempts)))
}

// DismissOverlay closes the disclosure dialog if one is showing. Its last
// button dismisses; an earlier one opens a settings tab.
func (d *Driver) DismissOverlay(ctx context.Context) {
	match, ok := d.opts.Selectors.Overlay.Detect(ctx, d.page)
	if !ok {
		return
	}
	if err := d.page.Click(ctx, match.Target); err != nil {
		d.log.WithError(err).Debug("Failed to dismiss overlay")
		return
	}
	d.log.Debug("Dismissed overlay")
}

// SubmitPrompt types the prompt into the chat input and sends it with Enter.
// The send button label is localized, the key is not.
func (d *Driver) SubmitPrompt(ctx context.Context, prompt, aspectRatio string) error {
	if err := d.machine.Transition(StateSubmitting); err != nil {
		return err
	}

	match, ok := d.opts.Selectors.ChatInput.Detect(ctx, d.page)
	if !ok {
		d.log.WithField("strategies", d.opts.Selectors.ChatInput.Names()).Debug("No chat input strategy matched")
		return errs.NewBrowser("Chat input not found")
	}

	text := BuildPrompt(d.opts.InstructionPrefix, prompt, aspectRatio)
	if err := d.page.Click(ctx, match.Target); err != nil {
		return errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to focus chat input")
	}
	if err := d.page.Fill(ctx, match.Target, text); err != nil {
		return errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to enter prompt")
	}
	if err := retry.Wait(ctx, d.opts.InputSettleDelay); err != nil {
		return err
	}
	if err := d.page.Press(ctx, "Enter"); err != nil {
		return errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to submit prompt")
	}

	d.log.InfoWithFields("Prompt submitted", map[string]interface{}{
		"length":       len(text),
		"aspect_ratio": aspectRatio,
	})
	return d.machine.Transition(StateAwaitingImage)
}

// WaitForImage polls until a generated image shows up. A refusal in the
// same poll wins over a visible image. timeout <= 0 uses the configured one.
func (d *Driver) WaitForImage(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = d.opts.GenerationTimeout
	}
	start := time.Now()
	deadline := start.Add(timeout)

	for poll := 1; ; poll++ {
		if text, err := d.page.BodyText(ctx); err != nil {
			d.log.WithError(err).Debug("Failed to read page text")
		} else if reason, refused := findRefusal(text, d.opts.Selectors.RefusalPhrases); refused {
			_ = d.machine.Transition(StateRefused)
			return errs.NewGeneration("Gemini refused the request: %s", reason)
		}

		if _, ok := d.opts.Selectors.GeneratedImage.Detect(ctx, d.page); ok {
			d.log.InfoWithFields("Image generated", map[string]interface{}{
				"polls":   poll,
				"elapsed": time.Since(start).Round(time.Millisecond),
			})
			return d.machine.Transition(StateDownloading)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := d.opts.GenerationPollInterval
		if wait > remaining {
			wait = remaining
		}
		if err := retry.Wait(ctx, wait); err != nil {
			return fmt.Errorf("waiting for image: %w", err)
		}
	}

	_ = d.machine.Transition(StateTimedOut)
	return errs.NewGeneration("Image generation timed out after %d seconds", int(timeout.Seconds()))
}

// Download clicks the full-size download control and saves the file at
// outputPath. The click is retried because the first one is sometimes ignored.
func (d *Driver) Download(ctx context.Context, outputPath string) error {
	match, ok := d.opts.Selectors.DownloadButton.Detect(ctx, d.page)
	if !ok {
		d.log.WithField("strategies", d.opts.Selectors.DownloadButton.Names()).Debug("No download button strategy matched")
		return errs.NewGeneration("Could not find a download button")
	}
	d.log.DebugWithFields("Download control found", map[string]interface{}{"strategy": match.Strategy})

	cfg := &retry.Config{
		MaxAttempts: d.opts.DownloadAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: d.opts.DownloadRetryDelay},
		RetryIf:     func(err error) bool { return stderrors.Is(err, errNoDownloadEvent) },
		Logger:      d.log,
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	dl, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context, attempt int) (Download, error) {
		dl, err := d.page.ExpectDownload(ctx, func() error {
			return d.page.Click(ctx, match.Target)
		}, d.opts.DownloadTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %w", errNoDownloadEvent, err)
		}
		return dl, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exhausted *retry.ExhaustedError
		if stderrors.As(err, &exhausted) {
			_ = d.machine.Transition(StateTimedOut)
			return errs.Wrap(errs.ErrorTypeGeneration, exhausted.Last, "Download button did not trigger a file download")
		}
		return err
	}

	if err := d.save(dl, outputPath); err != nil {
		return err
	}
	return d.machine.Transition(StateDone)
}

func (d *Driver) save(dl Download, outputPath string) error {
	if err := dl.Failure(); err != nil {
		return errs.Wrap(errs.ErrorTypeGeneration, err, "Download failed")
	}
	if err := storage.EnsureParent(outputPath); err != nil {
		return errs.Wrap(errs.ErrorTypeGeneration, err, "Failed to prepare output directory")
	}

	tmp := storage.TempPath(outputPath, "part")
	if err := dl.SaveAs(tmp); err != nil {
		return errs.Wrap(errs.ErrorTypeGeneration, err, "Failed to save download")
	}
	if err := storage.Commit(tmp, outputPath); err != nil {
		return errs.Wrap(errs.ErrorTypeGeneration, err, "Failed to save download")
	}

	d.log.InfoWithFields("Image saved", map[string]interface{}{"path": outputPath})
	return nil
}

func hostIs(rawURL, host string) bool {
	if host == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	h := strings.ToLower(u.Hostname())
	host = strings.ToLower(host)
	return h == host || strings.HasSuffix(h, "."+host)
}

// humanDuration renders whole minutes as "N minutes"
func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
