package chat

import (
	"fmt"
	"strings"
)

// FormatContext renders the page-state snapshot the browser attached to a
// message as a suffix for the completion request. Returns the empty string
// when the snapshot carries nothing usable, so the suffix can always be
// appended unconditionally.
func FormatContext(pageContext map[string]any) string {
	if len(pageContext) == 0 {
		return ""
	}

	var parts []string

	if v := stringField(pageContext, "current_node"); v != "" {
		parts = append(parts, "Current node: "+v)
	}
	if v := stringField(pageContext, "current_program"); v != "" {
		parts = append(parts, "Current program: "+v)
	}
	if v := stringField(pageContext, "page_type"); v != "" {
		parts = append(parts, "Page type: "+v)
	}

	if info, ok := pageContext["node_info"].(map[string]any); ok {
		var counts []string
		if n := intField(info, "cell_count"); n > 0 {
			counts = append(counts, groupDigits(n)+" cells")
		}
		if n := intField(info, "gene_count"); n > 0 {
			counts = append(counts, groupDigits(n)+" genes")
		}
		if n := intField(info, "program_count"); n > 0 {
			counts = append(counts, fmt.Sprintf("%d programs", n))
		}
		if len(counts) > 0 {
			parts = append(parts, "Node contains: "+strings.Join(counts, ", "))
		}
	}

	if visible, ok := pageContext["visible_data"].([]any); ok && len(visible) > 0 {
		items := make([]string, 0, len(visible))
		for _, v := range visible {
			if s, ok := v.(string); ok && s != "" {
				items = append(items, s)
			}
		}
		if len(items) > 0 {
			parts = append(parts, "Currently visible: "+strings.Join(items, ", "))
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return "\n\nCurrent context: " + strings.Join(parts, " | ")
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// intField reads a numeric field that may arrive as float64 (decoded JSON)
// or int (tests and in-process callers).
func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// groupDigits renders n with comma-grouped thousands, e.g. 1234567 ->
// "1,234,567".
func groupDigits(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
