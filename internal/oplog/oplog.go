// Package oplog is the durable, size-rotated record of every removal the
// cleaner attempts. A single goroutine owns the file; Append, Tail and Clear
// are requests to it, so entries are never interleaved.
package oplog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file name inside the config directory
const FileName = "operations.log"

// DefaultMaxSizeMB is the rotation ceiling
const DefaultMaxSizeMB = 5

// ErrLogClosed is returned for requests after Close
var ErrLogClosed = errors.New("operation log closed")

// Options configures a Log
type Options struct {
	Path      string
	MaxSizeMB int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type opKind int

const (
	opAppend opKind = iota
	opTail
	opClear
)

type request struct {
	op    opKind
	entry Entry
	n     int
	resp  chan response
}

type response struct {
	lines []string
	err   error
}

// Log is the operation log
type Log struct {
	path   string
	now    func() time.Time
	writer *lumberjack.Logger

	reqs      chan request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// DefaultPath returns the log path inside configDir
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, FileName)
}

// Open starts the writer goroutine. The file is created on first append.
func Open(opts Options) *Log {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := &Log{
		path: opts.Path,
		now:  opts.Now,
		writer: &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: 1,
			LocalTime:  true,
		},
		reqs:    make(chan request),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go l.run()
	return l
}

// Path returns the log file path
func (l *Log) Path() string {
	return l.path
}

func (l *Log) run() {
	defer close(l.stopped)

	for {
		select {
		case req := <-l.reqs:
			req.resp <- l.handle(req)
		case <-l.done:
			l.writer.Close()
			return
		}
	}
}

func (l *Log) handle(req request) response {
	switch req.op {
	case opAppend:
		return response{err: l.append(req.entry)}
	case opTail:
		lines, err := l.tail(req.n)
		return response{lines: lines, err: err}
	case opClear:
		return response{err: l.clear()}
	default:
		return response{err: fmt.Errorf("unknown request %d", req.op)}
	}
}

func (l *Log) do(req request) response {
	req.resp = make(chan response, 1)
	select {
	case l.reqs <- req:
	case <-l.done:
		return response{err: ErrLogClosed}
	}
	return <-req.resp
}

// Append writes one entry. A zero Time is replaced with the current time.
func (l *Log) Append(e Entry) error {
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	return l.do(request{op: opAppend, entry: e}).err
}

// Record is a shorthand for Append
func (l *Log) Record(kind Kind, path string, size int64, success bool) error {
	return l.Append(Entry{Kind: kind, Path: path, Size: size, Success: success})
}

// Tail returns the last n lines of the current log file, oldest first
func (l *Log) Tail(n int) ([]string, error) {
	resp := l.do(request{op: opTail, n: n})
	return resp.lines, resp.err
}

// Clear deletes the log file and its backup
func (l *Log) Clear() error {
	return l.do(request{op: opClear}).err
}

// Close stops the writer goroutine and closes the file
func (l *Log) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	<-l.stopped
	return nil
}

func (l *Log) append(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if _, err := l.writer.Write([]byte(e.String() + "\n")); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}

// tail returns the last n lines, reaching into the newest backup when the
// current file was rotated recently
func (l *Log) tail(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	lines, err := lastLines(l.path, n)
	if err != nil || len(lines) == n {
		return lines, err
	}

	backups, err := l.backups()
	if err != nil {
		return nil, err
	}
	newest := ""
	for _, b := range backups {
		// lumberjack's timestamp names sort chronologically
		if !strings.HasSuffix(b, ".gz") && b > newest {
			newest = b
		}
	}
	if newest == "" {
		return lines, nil
	}

	older, err := lastLines(newest, n-len(lines))
	if err != nil {
		return nil, err
	}
	return append(older, lines...), nil
}

func lastLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[1:], sc.Text())
			continue
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return ring, nil
}

func (l *Log) clear() error {
	if err := l.writer.Close(); err != nil {
		return fmt.Errorf("failed to close log: %w", err)
	}

	backups, err := l.backups()
	if err != nil {
		return err
	}
	for _, path := range append([]string{l.path}, backups...) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// backups lists the rotated generations lumberjack left next to the log
func (l *Log) backups() ([]string, error) {
	dir := filepath.Dir(l.path)
	ext := filepath.Ext(l.path)
	prefix := strings.TrimSuffix(filepath.Base(l.path), ext) + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list log directory: %w", err)
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && (strings.HasSuffix(name, ext) || strings.HasSuffix(name, ext+".gz")) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

// Backups returns the paths of rotated log generations
func (l *Log) Backups() ([]string, error) {
	return l.backups()
}
