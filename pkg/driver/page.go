package driver

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Target addresses one element on the page, either by CSS selector or by
// ARIA role and accessible name.
type Target struct {
	Selector string
	Role     string
	Name     *regexp.Regexp
	// Last picks the last match instead of the first
	Last bool
}

func (t Target) String() string {
	var s string
	if t.Role != "" {
		s = "role=" + t.Role
		if t.Name != nil {
			s += fmt.Sprintf("[name=/%s/]", t.Name.String())
		}
	} else {
		s = t.Selector
	}
	if t.Last {
		s += " >> last"
	}
	return s
}

// Download is a file the engine received after a click
type Download interface {
	SaveAs(path string) error
	// Failure reports an engine-side download failure, nil on success
	Failure() error
}

// Page is what the driver needs from a browser page
type Page interface {
	Goto(ctx context.Context, url string) error
	URL() string
	// Visible waits up to timeout for t to become visible. A zero timeout
	// checks once. Not finding the element is (false, nil).
	Visible(ctx context.Context, t Target, timeout time.Duration) (bool, error)
	Click(ctx context.Context, t Target) error
	Fill(ctx context.Context, t Target, text string) error
	Press(ctx context.Context, key string) error
	BodyText(ctx context.Context) (string, error)
	// ExpectDownload runs trigger and waits up to timeout for the resulting download
	ExpectDownload(ctx context.Context, trigger func() error, timeout time.Duration) (Download, error)
}
