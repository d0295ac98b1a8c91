package mcp

import (
	"regexp"
	"strings"
)

var (
	tripleNewline = regexp.MustCompile(`\n{3,}`)
	bareURL       = regexp.MustCompile(`(^|[^(\[])(https?://[^\s<>\[\]()]+)`)
)

const headerMaxLen = 60

// FormatToolResult applies a cosmetic cleanup pass to tool output before it
// is shown to the user: collapses runs of blank lines, separates bullet lists
// and header-like lines from surrounding prose, and wraps bare URLs as
// markdown links. The pass is idempotent: formatting already-formatted text
// is a no-op.
func FormatToolResult(text string) string {
	if text == "" {
		return text
	}

	out := tripleNewline.ReplaceAllString(text, "\n\n")
	out = linkBareURLs(out)
	out = spaceBulletsAndHeaders(out)
	return out
}

func linkBareURLs(text string) string {
	return bareURL.ReplaceAllStringFunc(text, func(match string) string {
		sub := bareURL.FindStringSubmatch(match)
		prefix, url := sub[1], sub[2]

		// Trailing sentence punctuation belongs to the prose, not the URL.
		trimmed := strings.TrimRight(url, ".,;:!?")
		trailer := url[len(trimmed):]
		return prefix + "[" + trimmed + "](" + trimmed + ")" + trailer
	})
}

func spaceBulletsAndHeaders(text string) string {
	lines := strings.Split(text, "\n")
	var out []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		prevBlank := len(out) == 0 || strings.TrimSpace(out[len(out)-1]) == ""

		switch {
		case isBullet(trimmed):
			// Separate a list from preceding prose, but keep consecutive
			// bullets together.
			if !prevBlank && !isBullet(strings.TrimSpace(out[len(out)-1])) {
				out = append(out, "")
			}
			out = append(out, line)

		case isHeader(trimmed):
			if !prevBlank {
				out = append(out, "")
			}
			out = append(out, line, "")

		default:
			// Drop a duplicate blank that a header already inserted.
			if trimmed == "" && len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
				continue
			}
			out = append(out, line)
		}
	}

	return strings.Join(out, "\n")
}

func isBullet(trimmed string) bool {
	return strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "• ")
}

func isHeader(trimmed string) bool {
	return trimmed != "" &&
		strings.HasSuffix(trimmed, ":") &&
		len(trimmed) <= headerMaxLen &&
		!isBullet(trimmed) &&
		!strings.Contains(trimmed, "](")
}
