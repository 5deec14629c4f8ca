package browser

import (
	"context"
	"errors"
	"time"

	"github.com/playwright-community/playwright-go"

	"gemimg/pkg/driver"
)

// Page adapts a playwright page to driver.Page. Playwright calls are not
// cancellable, so ctx is checked before each one.
type Page struct {
	page playwright.Page
}

func (p *Page) locate(t driver.Target) playwright.Locator {
	var loc playwright.Locator
	if t.Role != "" {
		opts := playwright.PageGetByRoleOptions{}
		if t.Name != nil {
			opts.Name = t.Name
		}
		loc = p.page.GetByRole(playwright.AriaRole(t.Role), opts)
	} else {
		loc = p.page.Locator(t.Selector)
	}

	if t.Last {
		return loc.Last()
	}
	return loc.First()
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) Visible(ctx context.Context, t driver.Target, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	loc := p.locate(t)
	if timeout <= 0 {
		return loc.IsVisible()
	}

	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Page) Click(ctx context.Context, t driver.Target) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.locate(t).Click()
}

func (p *Page) Fill(ctx context.Context, t driver.Target, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.locate(t).Fill(text)
}

func (p *Page) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Keyboard().Press(key)
}

func (p *Page) BodyText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Locator("body").InnerText()
}

func (p *Page) ExpectDownload(ctx context.Context, trigger func() error, timeout time.Duration) (driver.Download, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dl, err := p.page.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, err
	}
	return dl, nil
}
