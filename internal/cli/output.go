package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teilomillet/docbot"
	"github.com/teilomillet/docbot/pagelabel"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	// dimStyle for labels and metadata
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	// answerStyle frames model answers
	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

// printIngested summarises ingested documents per file.
func printIngested(w io.Writer, docs []docbot.IngestedDoc) {
	counts := make(map[string]int)
	var order []string
	for _, d := range docs {
		if counts[d.FileName] == 0 {
			order = append(order, d.FileName)
		}
		counts[d.FileName]++
	}
	for _, name := range order {
		fmt.Fprintf(w, "%s %s %s\n", successStyle.Render("✓"), name,
			dimStyle.Render(fmt.Sprintf("(%d documents)", counts[name])))
	}
}

// printPages renders a page table, one physical page per line.
func printPages(w io.Writer, pages []pagelabel.Page) {
	fmt.Fprintf(w, "%s\n", titleStyle.Render("physical  label"))
	for _, p := range pages {
		origin := "printed"
		if !p.Printed {
			origin = "position"
		}
		fmt.Fprintf(w, "%8d  %-6s %s\n", p.Physical, p.Label, dimStyle.Render(origin))
	}
}

// printResponse renders an answer. The sources section, if any, is printed
// below the framed answer.
func printResponse(w io.Writer, mode docbot.Mode, resp docbot.Response) {
	if mode == docbot.ModeSearch {
		fmt.Fprintln(w, resp.Text)
		return
	}
	answer, _, _ := strings.Cut(resp.Text, docbot.SourcesSeparator)
	fmt.Fprintln(w, answerStyle.Render(answer))
	if len(resp.Citations) == 0 {
		return
	}
	fmt.Fprintln(w, titleStyle.Render("Sources"))
	for _, c := range resp.Citations {
		fmt.Fprintln(w, c.String())
	}
}
