package cmdutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/papercomputeco/cortex/pkg/cliui"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRows writes a titled table as a terminal table or as markdown.
// Markdown is rendered with glamour on a terminal and written raw otherwise
// so that it can be piped into files.
func WriteRows(w io.Writer, format, title string, headers []string, rows [][]string) error {
	switch format {
	case FormatMarkdown:
		md := MarkdownTable(title, headers, rows)
		if !cliui.IsTerminal(w) {
			_, err := io.WriteString(w, md)
			return err
		}
		rendered, err := cliui.RenderMarkdown(md)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, rendered)
		return err

	default:
		if title != "" {
			fmt.Fprintf(w, "\n  %s\n", cliui.KeyStyle.Render(title))
		}
		if len(rows) == 0 {
			fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render("(none)"))
			return nil
		}
		fmt.Fprintln(w, cliui.Table(headers, rows))
		return nil
	}
}

// MarkdownTable formats rows as a GitHub flavoured markdown table under an
// optional heading.
func MarkdownTable(title string, headers []string, rows [][]string) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "## %s\n\n", title)
	}
	if len(rows) == 0 {
		b.WriteString("_none_\n")
		return b.String()
	}

	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(strings.ReplaceAll(c, "|", `\|`))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(headers)
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, r := range rows {
		writeRow(r)
	}
	return b.String()
}
