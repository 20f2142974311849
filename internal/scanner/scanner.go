package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fenilsonani/reclaim/internal/log"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/google/uuid"
)

// DefaultConcurrency is the number of targets scanned at once
const DefaultConcurrency = 4

// Scanner runs a catalog of targets through the traversal engine
type Scanner struct {
	engine      *Engine
	home        string
	concurrency int
}

// New creates a Scanner. home expands "~" in target paths.
func New(engine *Engine, home string, concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scanner{
		engine:      engine,
		home:        home,
		concurrency: concurrency,
	}
}

// Engine returns the underlying traversal engine
func (s *Scanner) Engine() *Engine {
	return s.engine
}

// Scan sizes every target concurrently and returns the results grouped by
// category in catalog order. A cancellation aborts the whole session.
func (s *Scanner) Scan(ctx context.Context, targets []ScanTarget, report progress.Func) (*Session, error) {
	if report == nil {
		report = progress.Nop
	}
	s.engine.Reset()

	results := make([][]DiscoveredItem, len(targets))
	sem := make(chan struct{}, s.concurrency)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     int
		firstErr error
	)

	for i, target := range targets {
		wg.Add(1)
		go func(i int, target ScanTarget) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			items, err := s.scanTarget(ctx, target)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					s.engine.Cancel()
				}
				return
			}
			results[i] = items
			done++
			report(fmt.Sprintf("Scanned %s", target.Path), float64(done)/float64(len(targets)))
		}(i, target)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	var items []DiscoveredItem
	for _, r := range results {
		items = append(items, r...)
	}

	session := NewSession(items)
	report(fmt.Sprintf("Scan complete: %d items", len(items)), 1)
	log.Debug().
		Str("session", session.ID).
		Int("targets", len(targets)).
		Int("items", len(items)).
		Int64("entries", s.engine.Entries()).
		Msg("scan finished")

	return session, nil
}

func (s *Scanner) scanTarget(ctx context.Context, target ScanTarget) ([]DiscoveredItem, error) {
	root := security.ExpandHome(target.Path, s.home)

	if err := s.engine.checkCancel(ctx); err != nil {
		return nil, err
	}

	info, err := os.Lstat(root)
	if err != nil {
		log.Debug().Str("path", root).Err(err).Msg("target skipped")
		return nil, nil
	}

	if !target.ExpandOneLevel || !info.IsDir() {
		item, err := s.item(ctx, target, root, info)
		if err != nil || item == nil {
			return nil, err
		}
		return []DiscoveredItem{*item}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		log.Debug().Str("path", root).Err(err).Msg("target unreadable")
		return nil, nil
	}

	var items []DiscoveredItem
	for _, de := range entries {
		if s.engine.skip(de) {
			continue
		}
		path := filepath.Join(root, de.Name())
		childInfo, err := de.Info()
		if err != nil {
			continue
		}
		item, err := s.item(ctx, target, path, childInfo)
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

// item sizes one path; empty paths yield no item
func (s *Scanner) item(ctx context.Context, target ScanTarget, path string, info os.FileInfo) (*DiscoveredItem, error) {
	size, err := s.engine.Size(ctx, path)
	if err != nil {
		if errors.Is(err, ErrScanCancelled) {
			return nil, err
		}
		return nil, nil
	}
	if size == 0 {
		return nil, nil
	}

	return &DiscoveredItem{
		Path:          path,
		Name:          filepath.Base(path),
		Size:          size,
		Category:      target.Category,
		ModTime:       info.ModTime(),
		AdminRequired: target.AdminRequired,
	}, nil
}

// Session holds the results of one scan. Items are only mutated through the
// selection methods.
type Session struct {
	ID         string           `json:"id" yaml:"id"`
	StartedAt  time.Time        `json:"started_at" yaml:"started_at"`
	Categories []CategoryResult `json:"categories" yaml:"categories"`
}

// NewSession groups items into a new session with a fresh id
func NewSession(items []DiscoveredItem) *Session {
	return &Session{
		ID:         uuid.New().String(),
		StartedAt:  time.Now(),
		Categories: GroupByCategory(items),
	}
}

// Items returns every item in category order
func (s *Session) Items() []DiscoveredItem {
	var out []DiscoveredItem
	for _, c := range s.Categories {
		out = append(out, c.Items...)
	}
	return out
}

// TotalSize is the sum of all category totals
func (s *Session) TotalSize() int64 {
	var total int64
	for _, c := range s.Categories {
		total += c.TotalSize
	}
	return total
}

// Category returns the result for name
func (s *Session) Category(name string) (*CategoryResult, bool) {
	for i := range s.Categories {
		if s.Categories[i].Category == name {
			return &s.Categories[i], true
		}
	}
	return nil, false
}

// SetSelected changes the selection of the item at path
func (s *Session) SetSelected(path string, selected bool) bool {
	for i := range s.Categories {
		for j := range s.Categories[i].Items {
			if s.Categories[i].Items[j].Path == path {
				s.Categories[i].Items[j].Selected = selected
				return true
			}
		}
	}
	return false
}

// SelectCategory changes the selection of every item in a category
func (s *Session) SelectCategory(name string, selected bool) bool {
	c, ok := s.Category(name)
	if !ok {
		return false
	}
	for j := range c.Items {
		c.Items[j].Selected = selected
	}
	return true
}

// SelectAll changes the selection of every item
func (s *Session) SelectAll(selected bool) {
	for i := range s.Categories {
		for j := range s.Categories[i].Items {
			s.Categories[i].Items[j].Selected = selected
		}
	}
}

// SelectedItems returns the selected items in category order
func (s *Session) SelectedItems() []DiscoveredItem {
	var out []DiscoveredItem
	for i := range s.Categories {
		out = append(out, s.Categories[i].SelectedItems()...)
	}
	return out
}
