// Package drivertest provides an in-memory driver.Page for tests.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gemimg/pkg/driver"
)

// ErrDownloadTimeout is returned by ExpectDownload when no download is queued
var ErrDownloadTimeout = errors.New("timeout waiting for download event")

// Download is a canned download
type Download struct {
	Content []byte
	Err     error
	// Saved records where SaveAs wrote the file
	Saved []string
}

func (d *Download) SaveAs(path string) error {
	if err := os.WriteFile(path, d.Content, 0644); err != nil {
		return err
	}
	d.Saved = append(d.Saved, path)
	return nil
}

func (d *Download) Failure() error {
	return d.Err
}

// Page is a scripted driver.Page. Elements are keyed by driver.Target.String().
type Page struct {
	mu sync.Mutex

	CurrentURL string
	// RedirectTo, when set, is where Goto lands instead of the requested URL
	RedirectTo string
	GotoErr    error

	// VisibleFunc overrides the per-target visibility rules when set.
	// call is the 1-based number of Visible checks made for t so far.
	VisibleFunc func(t driver.Target, call int) (bool, error)

	// BodyFunc overrides Body when set
	BodyFunc func(call int) (string, error)
	Body     string

	ClickErr error

	// OnExpectDownload, when set, runs at the start of each download wait
	// with the 1-based call number
	OnExpectDownload func(call int)

	visibleAfter map[string]int
	visibleCalls map[string]int
	bodyCalls    int
	downloads    []*Download

	Gotos   []string
	Clicks  []string
	Fills   []string
	Presses []string
	// ExpectDownloadCalls counts download waits, including failed ones
	ExpectDownloadCalls int
}

// NewPage returns a page at url with nothing visible
func NewPage(url string) *Page {
	return &Page{
		CurrentURL:   url,
		visibleAfter: make(map[string]int),
		visibleCalls: make(map[string]int),
	}
}

// Show makes target visible on every check
func (p *Page) Show(target string) {
	p.ShowAfter(target, 0)
}

// ShowAfter makes target visible once it has been checked more than n times
func (p *Page) ShowAfter(target string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visibleAfter[target] = n
}

// Hide makes target invisible again
func (p *Page) Hide(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.visibleAfter, target)
}

// QueueDownload makes the next ExpectDownload call return d. A nil d makes
// that call time out.
func (p *Page) QueueDownload(d *Download) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downloads = append(p.downloads, d)
}

// VisibleCalls returns how many times target was checked
func (p *Page) VisibleCalls(target string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visibleCalls[target]
}

// BodyCalls returns how many times the page text was read
func (p *Page) BodyCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bodyCalls
}

func (p *Page) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Gotos = append(p.Gotos, url)
	if p.GotoErr != nil {
		return p.GotoErr
	}
	p.CurrentURL = url
	if p.RedirectTo != "" {
		p.CurrentURL = p.RedirectTo
	}
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL
}

func (p *Page) Visible(ctx context.Context, t driver.Target, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := t.String()
	p.visibleCalls[key]++
	call := p.visibleCalls[key]

	if p.VisibleFunc != nil {
		return p.VisibleFunc(t, call)
	}
	n, ok := p.visibleAfter[key]
	return ok && call > n, nil
}

func (p *Page) Click(ctx context.Context, t driver.Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Clicks = append(p.Clicks, t.String())
	return p.ClickErr
}

func (p *Page) Fill(ctx context.Context, t driver.Target, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Fills = append(p.Fills, text)
	return nil
}

func (p *Page) Press(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Presses = append(p.Presses, key)
	return nil
}

func (p *Page) BodyText(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodyCalls++
	if p.BodyFunc != nil {
		return p.BodyFunc(p.bodyCalls)
	}
	return p.Body, nil
}

func (p *Page) ExpectDownload(ctx context.Context, trigger func() error, timeout time.Duration) (driver.Download, error) {
	p.mu.Lock()
	p.ExpectDownloadCalls++
	call, hook := p.ExpectDownloadCalls, p.OnExpectDownload
	p.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err := trigger(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.downloads) == 0 {
		return nil, fmt.Errorf("%w (%s)", ErrDownloadTimeout, timeout)
	}
	d := p.downloads[0]
	p.downloads = p.downloads[1:]
	if d == nil {
		return nil, fmt.Errorf("%w (%s)", ErrDownloadTimeout, timeout)
	}
	return d, nil
}
