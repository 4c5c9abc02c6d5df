package menu

import "regexp"

var strongTagRe = regexp.MustCompile(`(?is)<strong>(.*?)</strong>`)

// FormatEmphasis converts <strong> markup from the menu store into the
// WhatsApp plain-text bold convention (*text*).
func FormatEmphasis(text string) string {
	if text == "" {
		return text
	}
	return strongTagRe.ReplaceAllString(text, "*$1*")
}
