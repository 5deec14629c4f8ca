package driver

import (
	"regexp"
	"time"

	"gemimg/pkg/config"
)

// Selectors groups the detection chains for every element the driver touches
type Selectors struct {
	ChatInput      Chain
	ConsentAccept  Chain
	Overlay        Chain
	GeneratedImage Chain
	DownloadButton Chain
	// RefusalPhrases are matched case-insensitively against the page text
	RefusalPhrases []string
}

// Options configures a Driver
type Options struct {
	AppURL            string
	ConsentHost       string
	AuthHost          string
	InstructionPrefix string

	SettleDelay      time.Duration
	InputSettleDelay time.Duration

	LoginPollInterval time.Duration
	LoginMaxAttempts  int

	GenerationPollInterval time.Duration
	GenerationTimeout      time.Duration

	DownloadTimeout    time.Duration
	DownloadAttempts   int
	DownloadRetryDelay time.Duration

	Selectors Selectors
}

// DefaultRefusalPhrases are the replies that mean no image is coming
var DefaultRefusalPhrases = []string{
	"I can't create images",
	"I can't generate images",
	"I can't help with that",
	"I can't create that image",
	"I can't make images",
	"I'm not able to create",
	"I'm unable to create",
	"I'm unable to generate",
	"I'm just a language model",
	"goes against my guidelines",
	"violates my policy",
}

// DefaultSelectors returns the detection chains for the current Gemini markup
func DefaultSelectors() Selectors {
	return Selectors{
		// the input has shipped as a quill editor, a plain contenteditable and a textarea
		ChatInput: Chain{
			SelectorStrategy{Selector: `rich-textarea div.ql-editor[contenteditable="true"]`},
			SelectorStrategy{Selector: `div[contenteditable="true"][role="textbox"]`},
			SelectorStrategy{Selector: `textarea[aria-label]`},
			RoleStrategy{Role: "textbox", Label: regexp.MustCompile(`(?i)prompt|gemini`)},
		},
		ConsentAccept: Chain{
			RoleStrategy{Role: "button", Label: regexp.MustCompile(`(?i)^\s*accept all\s*$`), Wait: 5 * time.Second},
			SelectorStrategy{Selector: `form[action*="consent"] button:has-text("Accept all")`},
		},
		// the last button dismisses; the first opens a "manage" tab
		Overlay: Chain{
			SelectorStrategy{Selector: `mat-dialog-container mat-dialog-actions button`, Last: true, Wait: 2 * time.Second},
			SelectorStrategy{Selector: `div[role="dialog"] button`, Last: true},
		},
		GeneratedImage: Chain{
			SelectorStrategy{Selector: `generated-image img.image`},
			SelectorStrategy{Selector: `single-image img.image.loaded`},
			SelectorStrategy{Selector: `div.generated-images img`},
		},
		DownloadButton: Chain{
			SelectorStrategy{Selector: `button[data-test-id="download-generated-image-button"]`, Wait: 5 * time.Second},
			SelectorStrategy{Selector: `download-generated-image-button button`},
			RoleStrategy{Role: "button", Label: regexp.MustCompile(`(?i)download`)},
		},
		RefusalPhrases: append([]string(nil), DefaultRefusalPhrases...),
	}
}

// DefaultOptions mirrors config.DefaultConfig
func DefaultOptions() Options {
	return OptionsFromConfig(&config.DefaultConfigFor("").Gemini)
}

// OptionsFromConfig builds driver options from the gemini config section
func OptionsFromConfig(cfg *config.GeminiConfig) Options {
	return Options{
		AppURL:                 cfg.AppURL,
		ConsentHost:            cfg.ConsentHost,
		AuthHost:               cfg.AuthHost,
		InstructionPrefix:      cfg.InstructionPrefix,
		SettleDelay:            cfg.SettleDelay,
		InputSettleDelay:       500 * time.Millisecond,
		LoginPollInterval:      cfg.LoginPollInterval,
		LoginMaxAttempts:       cfg.LoginMaxAttempts,
		GenerationPollInterval: cfg.GenerationPollInterval,
		GenerationTimeout:      cfg.GenerationTimeout,
		DownloadTimeout:        cfg.DownloadTimeout,
		DownloadAttempts:       cfg.DownloadAttempts,
		DownloadRetryDelay:     cfg.DownloadRetryDelay,
		Selectors:              DefaultSelectors(),
	}
}
