// Package draw renders the state of a machine as text.
package draw

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Box frames content with a rounded border and puts title into the top edge.
// The box is as wide as the longest line, and at least four columns wider
// than the title.
func Box(title, content string) string {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if content == "" {
		lines = nil
	}

	width := utf8.RuneCountInString(title) + 4
	for _, l := range lines {
		width = max(width, utf8.RuneCountInString(l))
	}

	width++

	var b strings.Builder

	b.WriteString("╭─")
	b.WriteString(title)
	b.WriteString(strings.Repeat("─", width-utf8.RuneCountInString(title)))
	b.WriteString("╮\n")

	for _, l := range lines {
		b.WriteString("│ ")
		b.WriteString(l)
		b.WriteString(strings.Repeat(" ", width-utf8.RuneCountInString(l)))
		b.WriteString("│\n")
	}

	b.WriteString("╰")
	b.WriteString(strings.Repeat("─", width+1))
	b.WriteString("╯")

	return b.String()
}

// PrintBox writes the box of title and content into w, followed by a newline.
func PrintBox(w io.Writer, title, content string) error {
	_, err := fmt.Fprintln(w, Box(title, content))
	return err
}
