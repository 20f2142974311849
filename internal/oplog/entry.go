package oplog

import (
	"fmt"
	"strings"
	"time"

	"github.com/fenilsonani/reclaim/pkg/utils"
)

// Kind is the operation an entry records
type Kind string

const (
	KindTrash       Kind = "TRASH"
	KindDelete      Kind = "DELETE"
	KindAdminDelete Kind = "ADMIN_DELETE"
	KindDryRun      Kind = "DRY_RUN"
	KindEmptyTrash  Kind = "EMPTY_TRASH"
	KindProtected   Kind = "PROTECTED"
)

var knownKinds = map[Kind]bool{
	KindTrash:       true,
	KindDelete:      true,
	KindAdminDelete: true,
	KindDryRun:      true,
	KindEmptyTrash:  true,
	KindProtected:   true,
}

// NoSize marks an entry whose size is unknown
const NoSize int64 = -1

const timeLayout = time.RFC3339

// Entry is one line of the operation log
type Entry struct {
	Time    time.Time
	Kind    Kind
	Path    string
	Size    int64
	Success bool
}

// String renders the entry as "[<time>] <OK|FAIL> <KIND>: <path> [<size>]"
func (e Entry) String() string {
	status := "FAIL"
	if e.Success {
		status = "OK"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s: %s", e.Time.Format(timeLayout), status, e.Kind, sanitize(e.Path))
	if e.Size >= 0 {
		fmt.Fprintf(&b, " [%s]", utils.FormatBytes(e.Size))
	}
	return b.String()
}

// sanitize keeps one entry on one line whatever the path contains
func sanitize(path string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '?'
		}
		return r
	}, path)
}

// ParseEntry parses a line written by Entry.String. Sizes come back rounded to
// the precision they were printed with.
func ParseEntry(line string) (Entry, error) {
	var e Entry

	if !strings.HasPrefix(line, "[") {
		return e, fmt.Errorf("malformed log line: %q", line)
	}
	end := strings.Index(line, "] ")
	if end < 0 {
		return e, fmt.Errorf("malformed log line: %q", line)
	}
	ts, err := time.Parse(timeLayout, line[1:end])
	if err != nil {
		return e, fmt.Errorf("malformed timestamp in %q: %w", line, err)
	}
	e.Time = ts
	rest := line[end+2:]

	status, rest, ok := strings.Cut(rest, " ")
	if !ok {
		return e, fmt.Errorf("malformed log line: %q", line)
	}
	switch status {
	case "OK":
		e.Success = true
	case "FAIL":
	default:
		return e, fmt.Errorf("unknown status %q", status)
	}

	kind, rest, ok := strings.Cut(rest, ": ")
	if !ok {
		return e, fmt.Errorf("malformed log line: %q", line)
	}
	e.Kind = Kind(kind)
	if !knownKinds[e.Kind] {
		return e, fmt.Errorf("unknown operation %q", kind)
	}

	e.Size = NoSize
	if strings.HasSuffix(rest, "]") {
		if i := strings.LastIndex(rest, " ["); i >= 0 {
			if size, err := utils.ParseSize(rest[i+2 : len(rest)-1]); err == nil {
				e.Size = size
				rest = rest[:i]
			}
		}
	}
	e.Path = rest

	return e, nil
}
