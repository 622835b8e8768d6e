package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/olekukonko/tablewriter"
)

// Renderer writes sections to a terminal
type Renderer struct {
	au aurora.Aurora
}

// NewRenderer creates a new renderer. Colors are disabled when noColor is set.
func NewRenderer(noColor bool) *Renderer {
	return &Renderer{au: aurora.NewAurora(!noColor)}
}

// Render writes a header line followed by every section
func (r *Renderer) Render(w io.Writer, header string, sections []Section) error {
	if header != "" {
		if _, err := fmt.Fprintf(w, "%s\n\n", r.au.Bold(header)); err != nil {
			return err
		}
	}

	for _, s := range sections {
		if err := r.renderSection(w, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderSection(w io.Writer, s Section) error {
	if _, err := fmt.Fprintf(w, "%s\n", r.title(s)); err != nil {
		return err
	}

	if len(s.Rows) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetAutoWrapText(false)
		table.SetBorder(true)
		table.SetColumnSeparator("│")
		for _, row := range s.Rows {
			value := row.Value
			if row.Highlight {
				value = r.au.Bold(value).String()
			}
			table.Append([]string{row.Key, value})
		}
		table.Render()
	}

	if len(s.Tags) > 0 {
		if _, err := fmt.Fprintf(w, "  %s\n", strings.Join(s.Tags, "  ")); err != nil {
			return err
		}
	}

	if s.Note != "" {
		if _, err := fmt.Fprintf(w, "  %s\n", r.note(s)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}

func (r *Renderer) title(s Section) string {
	switch s.Category {
	case CategorySuccess:
		return r.au.Green(s.Title).Bold().String()
	case CategoryNotice:
		return r.au.Yellow(s.Title).Bold().String()
	case CategoryEmpty:
		return r.au.Gray(12, s.Title).String()
	default:
		return r.au.Cyan(s.Title).Bold().String()
	}
}

func (r *Renderer) note(s Section) string {
	switch s.Category {
	case CategoryNotice:
		return r.au.Yellow(s.Note).String()
	case CategoryEmpty:
		return r.au.Gray(12, s.Note).String()
	default:
		return r.au.Yellow(s.Note).String()
	}
}
