package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/CosmoTheDev/forgemirror/internal/mirror"
	"github.com/charmbracelet/lipgloss"
	"go.yaml.in/yaml/v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var failStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#EF4444"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

func checkOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (supported: table, json, yaml)", format)
	}
}

// resultView is the serialised form of a mirror.Result.
type resultView struct {
	Repo       string             `json:"repo"                 yaml:"repo"`
	Outcome    mirror.Outcome     `json:"outcome"              yaml:"outcome"`
	Descriptor *mirror.Descriptor `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	Reason     string             `json:"reason,omitempty"     yaml:"reason,omitempty"`
	Error      string             `json:"error,omitempty"      yaml:"error,omitempty"`
	ErrorKind  mirror.Kind        `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	DryRun     bool               `json:"dry_run"              yaml:"dry_run"`
}

func viewOf(res mirror.Result) resultView {
	return resultView{
		Repo:       res.Repo,
		Outcome:    res.Kind,
		Descriptor: res.Descriptor,
		Reason:     res.Reason,
		Error:      res.ErrorText(),
		ErrorKind:  mirror.KindOf(res.Err),
		DryRun:     res.DryRun,
	}
}

// resultPrinter renders results as they arrive. Table output is streamed;
// json and yaml are buffered and written by flush.
type resultPrinter struct {
	w       io.Writer
	format  string
	views   []resultView
	summary mirror.Summary
}

func newResultPrinter(w io.Writer, format string) *resultPrinter {
	return &resultPrinter{w: w, format: format}
}

func (p *resultPrinter) add(res mirror.Result) {
	p.summary.Add(res)
	if p.format != outputTable {
		p.views = append(p.views, viewOf(res))
		return
	}

	prefix := ""
	if res.DryRun {
		prefix = dimStyle.Render("[dry-run] ")
	}
	switch res.Kind {
	case mirror.OutcomeMirrored, mirror.OutcomeUpdated:
		d := res.Descriptor
		fmt.Fprintf(p.w, "%s%s %-28s %s\n", prefix, successStyle.Render(fmt.Sprintf("%-8s", res.Kind)), res.Repo, d.MirrorURL)
		fmt.Fprintln(p.w, dimStyle.Render(fmt.Sprintf("         %s · %s", d.Description, d.URL)))
	case mirror.OutcomeSkipped:
		fmt.Fprintf(p.w, "%s%s %-28s %s\n", prefix, warnStyle.Render(fmt.Sprintf("%-8s", res.Kind)), res.Repo, res.Reason)
	default:
		fmt.Fprintf(p.w, "%s%s %-28s %s\n", prefix, failStyle.Render(fmt.Sprintf("%-8s", res.Kind)), res.Repo, res.ErrorText())
	}
}

// flush writes buffered output, or the table footer for batches.
func (p *resultPrinter) flush(batch bool) error {
	switch p.format {
	case outputJSON:
		var v any = p.views
		if !batch && len(p.views) == 1 {
			v = p.views[0]
		}
		return writeJSON(p.w, v)
	case outputYAML:
		var v any = p.views
		if !batch && len(p.views) == 1 {
			v = p.views[0]
		}
		return writeYAML(p.w, v)
	}
	if !batch {
		return nil
	}
	s := p.summary
	if s.Total == 0 {
		fmt.Fprintln(p.w, dimStyle.Render("Nothing to mirror."))
		return nil
	}
	parts := []string{fmt.Sprintf("%d repositories", s.Total)}
	for _, c := range []struct {
		n    int
		name string
	}{{s.Mirrored, "mirrored"}, {s.Updated, "updated"}, {s.Skipped, "skipped"}, {s.Failed, "failed"}} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.name))
		}
	}
	line := strings.Join(parts, " · ")
	fmt.Fprintln(p.w)
	if s.Failed > 0 {
		fmt.Fprintln(p.w, warnStyle.Render(line))
	} else {
		fmt.Fprintln(p.w, successStyle.Render(line))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// render writes v in the requested non-table format. It reports false for
// table output, which callers print themselves.
func render(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case outputJSON:
		return true, writeJSON(w, v)
	case outputYAML:
		return true, writeYAML(w, v)
	default:
		return false, nil
	}
}
