package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// ASCII logo for the application
const ASCIILogo = `
   ██████╗ ███████╗███╗   ███╗██╗███╗   ███╗ ██████╗
  ██╔════╝ ██╔════╝████╗ ████║██║████╗ ████║██╔════╝
  ██║  ███╗█████╗  ██╔████╔██║██║██╔████╔██║██║  ███╗
  ██║   ██║██╔══╝  ██║╚██╔╝██║██║██║╚██╔╝██║██║   ██║
  ╚██████╔╝███████╗██║ ╚═╝ ██║██║██║ ╚═╝ ██║╚██████╔╝
   ╚═════╝ ╚══════╝╚═╝     ╚═╝╚═╝╚═╝     ╚═╝ ╚═════╝
          prompt in, full-size image out
`

var (
	colorEnabled atomic.Bool
	out          io.Writer = os.Stdout
)

func init() {
	colorEnabled.Store(true)
}

// SetColor turns ANSI colors on or off, e.g. when stdout is not a terminal
func SetColor(enabled bool) {
	colorEnabled.Store(enabled)
}

// SetOutput redirects all printing, mostly for tests. nil restores stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled.Load() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Fprint(out, Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(out, Magenta(msg))
}

// PrintDim prints secondary text
func PrintDim(msg string) {
	fmt.Fprintln(out, Dim(msg))
}
