package narrative

import (
	"strings"
)

// Render formats fields as plain text, one section per line.
func Render(f Fields) string {
	var b strings.Builder
	b.WriteString("summary: " + f.Summary + "\n")
	b.WriteString("state: " + f.EmotionalState + "\n")
	writeList(&b, "key events", f.KeyEvents)
	writeList(&b, "decisions", f.Decisions)
	writeList(&b, "lessons", f.Lessons)
	if len(f.Tags) == 0 {
		b.WriteString("tags: none\n")
	} else {
		b.WriteString("tags: " + strings.Join(f.Tags, ", ") + "\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		b.WriteString(title + ": none\n")
		return
	}
	b.WriteString(title + ":\n")
	for _, it := range items {
		b.WriteString("  - " + it + "\n")
	}
}
