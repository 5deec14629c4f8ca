package errors

import "strings"

// Guidance returns multi-line recovery instructions for err.
// Errors outside the taxonomy get generic advice.
func Guidance(err error) string {
	t, _ := TypeOf(err)
	return GuidanceFor(t)
}

// GuidanceFor returns the recovery instructions for an error type
func GuidanceFor(t ErrorType) string {
	switch t {
	case ErrorTypeAuth:
		return strings.Join([]string{
			"Gemini did not report a logged-in session in time.",
			"",
			"  1. Run 'gemimg login' to open a visible browser window.",
			"  2. Sign in to your Google account and wait until the chat input appears.",
			"  3. Close the command; the session is kept in the profile directory.",
			"  4. Re-run your command. Headless runs reuse the saved session.",
			"",
			"If you are already signed in, the saved session may have expired or",
			"Google may be asking for extra verification. Repeat the steps above.",
		}, "\n")

	case ErrorTypeGeneration:
		return strings.Join([]string{
			"Gemini did not produce a downloadable image.",
			"",
			"  - If Gemini refused the request, rephrase or try a different prompt.",
			"  - If generation timed out, raise --timeout (for example --timeout 3m).",
			"  - If the download did not start, re-run the command; the download",
			"    button is occasionally unresponsive.",
			"  - Run with --headless=false to watch what the page is doing.",
		}, "\n")

	case ErrorTypeBrowser:
		return strings.Join([]string{
			"The browser session could not be started or was not ready.",
			"",
			"  - Make sure no other gemimg process is using the same profile directory.",
			"  - After a crash, remove the stale profile lock with 'gemimg session unlock'",
			"    (or delete the SingletonLock file in the profile directory).",
			"  - If Chromium is missing, re-run with --install to download it.",
		}, "\n")

	default:
		return strings.Join([]string{
			"An unexpected error occurred.",
			"",
			"  - Re-run with --log-level debug for more detail.",
			"  - Check that the output path is writable.",
		}, "\n")
	}
}
