package driver

import (
	"regexp"
	"strings"
)

// BuildPrompt assembles the text sent to the chat input
func BuildPrompt(prefix, prompt, aspectRatio string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(strings.TrimSpace(prompt))
	if ar := strings.TrimSpace(aspectRatio); ar != "" {
		b.WriteString(" (aspect ratio: ")
		b.WriteString(ar)
		b.WriteString(")")
	}
	return b.String()
}

// findRefusal returns the line of text containing the first refusal phrase
func findRefusal(text string, phrases []string) (string, bool) {
	text = normalizeApostrophes(text)
	for _, phrase := range phrases {
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(normalizeApostrophes(phrase)))
		if err != nil {
			continue
		}
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		return lineAround(text, loc[0]), true
	}
	return "", false
}

func normalizeApostrophes(s string) string {
	return strings.ReplaceAll(s, "’", "'")
}

// lineAround returns the trimmed line of text containing byte offset idx
func lineAround(text string, idx int) string {
	if idx > len(text) {
		idx = len(text)
	}
	start := strings.LastIndexByte(text[:idx], '\n') + 1
	end := strings.IndexByte(text[idx:], '\n')
	if end < 0 {
		end = len(text)
	} else {
		end += idx
	}
	line := strings.TrimSpace(text[start:end])
	if r := []rune(line); len(r) > 300 {
		line = string(r[:297]) + "..."
	}
	return line
}
