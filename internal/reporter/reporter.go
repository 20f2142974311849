// Package reporter renders scan sessions, trees and deletion outcomes.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/pkg/utils"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// ParseFormat validates a format name
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

const pathWidth = 60

// Reporter handles report generation
type Reporter struct {
	writer io.Writer
	format OutputFormat
	styled bool
}

// New creates a new Reporter. styled enables colours, for terminals.
func New(writer io.Writer, format OutputFormat, styled bool) *Reporter {
	return &Reporter{
		writer: writer,
		format: format,
		styled: styled,
	}
}

func (r *Reporter) render(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *Reporter) printf(format string, args ...any) {
	fmt.Fprintf(r.writer, format, args...)
}

// Session reports the results of a scan
func (r *Reporter) Session(s *scanner.Session) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(sessionReport(s))
	case FormatYAML:
		return r.encodeYAML(sessionReport(s))
	case FormatSummary:
		r.sessionSummary(s)
		return nil
	case FormatTable:
		r.sessionTable(s)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

type categoryReport struct {
	Category           string                   `json:"category" yaml:"category"`
	Items              []scanner.DiscoveredItem `json:"items" yaml:"items"`
	TotalSize          int64                    `json:"total_size" yaml:"total_size"`
	TotalSizeFormatted string                   `json:"total_size_formatted" yaml:"total_size_formatted"`
}

type scanReport struct {
	ID                 string           `json:"id" yaml:"id"`
	Timestamp          string           `json:"timestamp" yaml:"timestamp"`
	TotalItems         int              `json:"total_items" yaml:"total_items"`
	TotalSize          int64            `json:"total_size" yaml:"total_size"`
	TotalSizeFormatted string           `json:"total_size_formatted" yaml:"total_size_formatted"`
	Categories         []categoryReport `json:"categories" yaml:"categories"`
}

func sessionReport(s *scanner.Session) scanReport {
	report := scanReport{
		ID:                 s.ID,
		Timestamp:          s.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		TotalItems:         len(s.Items()),
		TotalSize:          s.TotalSize(),
		TotalSizeFormatted: utils.FormatBytes(s.TotalSize()),
		Categories:         make([]categoryReport, 0, len(s.Categories)),
	}
	for _, c := range s.Categories {
		report.Categories = append(report.Categories, categoryReport{
			Category:           c.Category,
			Items:              c.Items,
			TotalSize:          c.TotalSize,
			TotalSizeFormatted: utils.FormatBytes(c.TotalSize),
		})
	}
	return report
}

func (r *Reporter) sessionSummary(s *scanner.Session) {
	r.printf("%s\n", r.render(TitleStyle, "=== Scan Summary ==="))
	r.printf("Total Items: %d\n", len(s.Items()))
	r.printf("Total Size: %s\n", r.render(SizeStyle, utils.FormatBytes(s.TotalSize())))
	if len(s.Categories) == 0 {
		return
	}
	r.printf("\nBreakdown by Category:\n")
	for _, c := range s.Categories {
		r.printf("  %s: %d items, %s\n",
			r.render(CategoryStyle, c.Category), len(c.Items), r.render(SizeStyle, utils.FormatBytes(c.TotalSize)))
	}
}

func (r *Reporter) sessionTable(s *scanner.Session) {
	rule := strings.Repeat("-", pathWidth+40)
	for _, c := range s.Categories {
		r.printf("%s  %s\n", r.render(CategoryStyle, c.Category), r.render(SizeStyle, utils.FormatBytes(c.TotalSize)))
		r.printf("%s\n", r.render(MutedStyle, rule))
		for _, item := range c.Items {
			marker := " "
			if item.Selected {
				marker = "x"
			}
			admin := ""
			if item.AdminRequired {
				admin = r.render(MutedStyle, " (admin)")
			}
			r.printf("[%s] %s %s  %s%s\n",
				marker,
				r.render(PathStyle, pad(truncatePath(item.Path, pathWidth), pathWidth)),
				r.render(SizeStyle, fmt.Sprintf("%10s", utils.FormatBytes(item.Size))),
				item.ModTime.Format("2006-01-02"),
				admin)
		}
		r.printf("\n")
	}
	r.printf("Total: %d items, %s\n", len(s.Items()), r.render(SizeStyle, utils.FormatBytes(s.TotalSize())))
}

// Items reports a flat item list under a title, as produced by the orphan scan
func (r *Reporter) Items(title string, items []scanner.DiscoveredItem) error {
	s := &scanner.Session{Categories: scanner.GroupByCategory(items)}
	if r.format == FormatJSON || r.format == FormatYAML {
		return r.Session(s)
	}
	r.printf("%s\n\n", r.render(TitleStyle, title))
	if len(items) == 0 {
		r.printf("Nothing found.\n")
		return nil
	}
	return r.Session(s)
}

type outcomeReport struct {
	DryRun                bool           `json:"dry_run" yaml:"dry_run"`
	DeletedCount          int            `json:"deleted_count" yaml:"deleted_count"`
	DeletedBytes          int64          `json:"deleted_bytes" yaml:"deleted_bytes"`
	DeletedBytesFormatted string         `json:"deleted_bytes_formatted" yaml:"deleted_bytes_formatted"`
	Errors                []errorReport  `json:"errors" yaml:"errors"`
	ErrorCounts           map[string]int `json:"error_counts,omitempty" yaml:"error_counts,omitempty"`
	SkippedRunning        []cleaner.Skip `json:"skipped_running" yaml:"skipped_running"`
}

type errorReport struct {
	Path    string              `json:"path" yaml:"path"`
	Reason  cleaner.ErrorReason `json:"reason" yaml:"reason"`
	Message string              `json:"message" yaml:"message"`
}

func newOutcomeReport(o *cleaner.DeletionOutcome) outcomeReport {
	report := outcomeReport{
		DryRun:                o.DryRun,
		DeletedCount:          o.DeletedCount,
		DeletedBytes:          o.DeletedBytes,
		DeletedBytesFormatted: utils.FormatBytes(o.DeletedBytes),
		Errors:                make([]errorReport, 0, len(o.Errors)),
		SkippedRunning:        o.SkippedRunning,
	}
	if len(o.Errors) > 0 {
		report.ErrorCounts = make(map[string]int)
	}
	for _, e := range o.Errors {
		report.Errors = append(report.Errors, errorReport{Path: e.Path, Reason: e.Reason, Message: e.UserMessage()})
		report.ErrorCounts[e.Reason.Key()]++
	}
	if report.SkippedRunning == nil {
		report.SkippedRunning = []cleaner.Skip{}
	}
	return report
}

// Outcome reports the result of a clean
func (r *Reporter) Outcome(o *cleaner.DeletionOutcome) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(newOutcomeReport(o))
	case FormatYAML:
		return r.encodeYAML(newOutcomeReport(o))
	case FormatTable, FormatSummary:
		r.outcomeSummary(o)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

func (r *Reporter) outcomeSummary(o *cleaner.DeletionOutcome) {
	verb := "Removed"
	if o.DryRun {
		verb = "Would remove"
	}
	r.printf("%s %d items, %s\n",
		r.render(SuccessStyle, verb), o.DeletedCount, r.render(SizeStyle, utils.FormatBytes(o.DeletedBytes)))

	if len(o.SkippedRunning) > 0 {
		r.printf("\n%s %d items (application running)\n", r.render(MutedStyle, "Skipped"), len(o.SkippedRunning))
		for _, s := range o.SkippedRunning {
			r.printf("  %s  %s\n", r.render(PathStyle, s.Path), r.render(MutedStyle, s.Identifier))
		}
	}

	if len(o.Errors) > 0 {
		r.printf("\n%s\n", r.render(ErrorStyle, fmt.Sprintf("%d items could not be removed", len(o.Errors))))
		r.printf("%s", cleaner.FormatErrorSummary(o.Errors))
		for _, e := range o.Errors {
			r.printf("  %s: %s\n", r.render(PathStyle, e.Path), e.UserMessage())
		}
	}
}

type treeReport struct {
	Name     string       `json:"name" yaml:"name"`
	Path     string       `json:"path" yaml:"path"`
	Size     int64        `json:"size" yaml:"size"`
	IsDir    bool         `json:"is_dir" yaml:"is_dir"`
	State    string       `json:"children" yaml:"children"`
	Children []treeReport `json:"entries,omitempty" yaml:"entries,omitempty"`
}

func newTreeReport(t *scanner.Tree, id int) treeReport {
	n, _ := t.Node(id)
	out := treeReport{Name: n.Name, Path: n.Path, Size: n.Size, IsDir: n.IsDir, State: n.State.String()}
	for _, c := range t.Children(id) {
		out.Children = append(out.Children, newTreeReport(t, c.ID))
	}
	return out
}

// Tree reports a directory tree, largest entries first
func (r *Reporter) Tree(t *scanner.Tree) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(newTreeReport(t, t.Root().ID))
	case FormatYAML:
		return r.encodeYAML(newTreeReport(t, t.Root().ID))
	}

	root := t.Root()
	r.printf("%s  %s\n", r.render(PathStyle, root.Path), r.render(SizeStyle, utils.FormatBytes(root.Size)))
	r.treeChildren(t, root.ID, "")
	return nil
}

func (r *Reporter) treeChildren(t *scanner.Tree, id int, indent string) {
	children := t.Children(id)
	for i, c := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		name := c.Name
		if c.IsDir {
			name += "/"
		}
		suffix := ""
		if c.IsDir && c.State == scanner.ChildrenUnknown {
			suffix = r.render(MutedStyle, " …")
		}
		r.printf("%s%s%s  %s%s\n", indent, branch, name, r.render(SizeStyle, utils.FormatBytes(c.Size)), suffix)
		r.treeChildren(t, c.ID, indent+next)
	}
}

func (r *Reporter) encodeJSON(v any) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (r *Reporter) encodeYAML(v any) error {
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	return encoder.Encode(v)
}

// truncatePath shortens a path from the left to fit width
func truncatePath(path string, width int) string {
	if len(path) <= width {
		return path
	}
	return "..." + path[len(path)-width+3:]
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
