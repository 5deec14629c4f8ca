package browser

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/playwright-community/playwright-go"

	"gemimg/pkg/config"
	"gemimg/pkg/driver"
	errs "gemimg/pkg/errors"
	"gemimg/pkg/logger"
)

// Viewport is the fixed page size
type Viewport struct {
	Width  int
	Height int
}

// Options describes the persistent session
type Options struct {
	ProfileDir string
	Headless   bool
	Viewport   Viewport
	Args       []string
	// Install downloads the driver and Chromium before the first launch
	Install bool
}

// OptionsFromConfig builds session options from the browser config section
func OptionsFromConfig(cfg *config.BrowserConfig) Options {
	return Options{
		ProfileDir: cfg.ProfileDir,
		Headless:   cfg.Headless,
		Viewport:   Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		Args:       append([]string(nil), cfg.Args...),
		Install:    cfg.Install,
	}
}

// Manager owns one persistent browser context and its single page.
// Two managers must not share a profile directory; the engine locks it.
type Manager struct {
	opts Options
	log  logger.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	context playwright.BrowserContext
	page    *Page
}

// NewManager creates a manager. Nothing is launched until Connect.
func NewManager(opts Options, log logger.Logger) *Manager {
	return &Manager{
		opts: opts,
		log:  logger.OrDefault(log).WithComponent("browser"),
	}
}

// ProfileDir returns the session directory
func (m *Manager) ProfileDir() string {
	return m.opts.ProfileDir
}

// Connected reports whether a page is open
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page != nil
}

// Connect launches the persistent context and opens one fresh page.
// Connecting while connected is a no-op.
func (m *Manager) Connect(ctx context.Context, headless bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(m.opts.ProfileDir, 0700); err != nil {
		return errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to create profile directory")
	}

	logger.LogComponentStart(m.log, "browser", map[string]interface{}{
		"profile_dir": m.opts.ProfileDir,
		"headless":    headless,
	})

	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if m.opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to install playwright")
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to start playwright")
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(m.opts.ProfileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(headless),
		Viewport: &playwright.Size{
			Width:  m.opts.Viewport.Width,
			Height: m.opts.Viewport.Height,
		},
		Args:            m.opts.Args,
		AcceptDownloads: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		if _, locked := LockOwner(m.opts.ProfileDir); locked {
			return errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to launch browser; the profile is locked by another instance or an unclean shutdown")
		}
		return errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to launch browser")
	}

	// tabs restored from a crashed run would compete with ours
	for _, stale := range bctx.Pages() {
		if err := stale.Close(); err != nil {
			m.log.WithError(err).Debug("Failed to close stale page")
		}
	}

	pg, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		pw.Stop()
		return errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to open page")
	}

	m.pw = pw
	m.context = bctx
	m.page = &Page{page: pg}
	m.log.Info("Browser connected")
	return nil
}

// Disconnect closes the context and stops the driver. Safe to call at any time.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.context == nil && m.pw == nil {
		return nil
	}

	var firstErr error
	if m.context != nil {
		if err := m.context.Close(); err != nil {
			firstErr = errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to close browser context")
		}
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil && firstErr == nil {
			firstErr = errs.Wrap(errs.ErrorTypeBrowser, err, "Failed to stop playwright")
		}
	}

	m.context = nil
	m.pw = nil
	m.page = nil
	logger.LogComponentStop(m.log, "browser", "disconnect")
	return firstErr
}

// CurrentPage returns the active page
func (m *Manager) CurrentPage() (driver.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page == nil {
		return nil, errs.NewBrowser("Browser not connected. Call Connect first")
	}
	return m.page, nil
}
