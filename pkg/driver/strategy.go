package driver

import (
	"context"
	"regexp"
	"time"
)

// Match is a positive detection
type Match struct {
	Strategy string
	Target   Target
}

// Strategy recognises one logical element on the page
type Strategy interface {
	Name() string
	Detect(ctx context.Context, page Page) (Match, bool)
}

// SelectorStrategy matches a CSS selector
type SelectorStrategy struct {
	Selector string
	Last     bool
	// Wait is how long to wait for the element to appear
	Wait time.Duration
}

func (s SelectorStrategy) Name() string {
	return "selector:" + s.Target().String()
}

func (s SelectorStrategy) Target() Target {
	return Target{Selector: s.Selector, Last: s.Last}
}

func (s SelectorStrategy) Detect(ctx context.Context, page Page) (Match, bool) {
	return detect(ctx, page, s.Name(), s.Target(), s.Wait)
}

// RoleStrategy matches an ARIA role whose accessible name matches a pattern
type RoleStrategy struct {
	Role  string
	Label *regexp.Regexp
	Last  bool
	Wait  time.Duration
}

func (s RoleStrategy) Name() string {
	return "role:" + s.Target().String()
}

func (s RoleStrategy) Target() Target {
	return Target{Role: s.Role, Name: s.Label, Last: s.Last}
}

func (s RoleStrategy) Detect(ctx context.Context, page Page) (Match, bool) {
	return detect(ctx, page, s.Name(), s.Target(), s.Wait)
}

// Evaluation errors count as "not found". Transient navigation makes them routine.
func detect(ctx context.Context, page Page, name string, t Target, wait time.Duration) (Match, bool) {
	visible, err := page.Visible(ctx, t, wait)
	if err != nil || !visible {
		return Match{}, false
	}
	return Match{Strategy: name, Target: t}, true
}

// Chain evaluates strategies in priority order
type Chain []Strategy

// Detect returns the first positive match
func (c Chain) Detect(ctx context.Context, page Page) (Match, bool) {
	for _, s := range c {
		if ctx.Err() != nil {
			return Match{}, false
		}
		if m, ok := s.Detect(ctx, page); ok {
			return m, true
		}
	}
	return Match{}, false
}

// Names lists the strategies in order, for log output
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return names
}
