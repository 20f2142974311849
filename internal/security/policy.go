package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/IGLOU-EU/go-wildcard"

	"github.com/fenilsonani/reclaim/internal/owner"
)

var (
	// ErrProtected is matched by every *ProtectedError.
	ErrProtected = errors.New("protected")
	// ErrBuiltinRule is returned when removing a rule that only exists in the built-in layer.
	ErrBuiltinRule = errors.New("built-in rule cannot be removed")
)

// RuleKind selects one of the four rule lists
type RuleKind int

const (
	RulePath RuleKind = iota
	RuleAppID
	RuleCacheName
	RuleOrphanID
)

// String returns the config key for the rule kind
func (k RuleKind) String() string {
	switch k {
	case RulePath:
		return "paths"
	case RuleAppID:
		return "app_ids"
	case RuleCacheName:
		return "cache_names"
	case RuleOrphanID:
		return "orphan_ids"
	default:
		return "unknown"
	}
}

// ParseRuleKind maps a config key back to a RuleKind
func ParseRuleKind(s string) (RuleKind, error) {
	for _, k := range []RuleKind{RulePath, RuleAppID, RuleCacheName, RuleOrphanID} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown rule kind %q", s)
}

// Rules is one layer of protection rules
type Rules struct {
	Paths      []string `yaml:"paths" json:"paths"`
	AppIDs     []string `yaml:"app_ids" json:"app_ids"`
	CacheNames []string `yaml:"cache_names" json:"cache_names"`
	OrphanIDs  []string `yaml:"orphan_ids" json:"orphan_ids"`
}

func (r *Rules) list(kind RuleKind) *[]string {
	switch kind {
	case RuleAppID:
		return &r.AppIDs
	case RuleCacheName:
		return &r.CacheNames
	case RuleOrphanID:
		return &r.OrphanIDs
	default:
		return &r.Paths
	}
}

func (r Rules) clone() Rules {
	return Rules{
		Paths:      slices.Clone(r.Paths),
		AppIDs:     slices.Clone(r.AppIDs),
		CacheNames: slices.Clone(r.CacheNames),
		OrphanIDs:  slices.Clone(r.OrphanIDs),
	}
}

// ProtectedError reports why a path may not be touched
type ProtectedError struct {
	Path   string
	Rule   string
	Reason string
}

func (e *ProtectedError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("refusing to delete %s: %s (%s)", e.Path, e.Reason, e.Rule)
	}
	return fmt.Sprintf("refusing to delete %s: %s", e.Path, e.Reason)
}

func (e *ProtectedError) Is(target error) bool {
	return target == ErrProtected
}

// Policy decides whether paths and identifiers are protected. It combines an
// immutable built-in layer with a user layer that can change at runtime.
type Policy struct {
	home    string
	builtin Rules

	mu   sync.RWMutex
	user Rules
}

// NewPolicy creates a policy. home is used to expand "~" in rules and candidates.
func NewPolicy(home string, builtin, user Rules) *Policy {
	return &Policy{
		home:    home,
		builtin: builtin.clone(),
		user:    user.clone(),
	}
}

// Home returns the directory "~" expands to
func (p *Policy) Home() string {
	return p.home
}

// ExpandHome replaces a leading "~" with the policy's home directory
func (p *Policy) ExpandHome(path string) string {
	return ExpandHome(path, p.home)
}

// ExpandHome replaces a leading "~" or "~/" with home
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// IsProtectedPath reports whether path falls under any protected prefix. The
// match is a plain string prefix so rules such as "~/Library/Preferences/com.apple."
// cover every file that starts with them.
func (p *Policy) IsProtectedPath(path string) bool {
	_, ok := p.matchPath(path)
	return ok
}

func (p *Policy) matchPath(path string) (string, bool) {
	candidate := filepath.Clean(p.ExpandHome(path))

	for _, rule := range p.builtin.Paths {
		if strings.HasPrefix(candidate, p.ExpandHome(rule)) {
			return rule, true
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, rule := range p.user.Paths {
		expanded := p.ExpandHome(rule)
		if isGlob(expanded) {
			if wildcard.Match(expanded, candidate) {
				return rule, true
			}
			continue
		}
		if strings.HasPrefix(candidate, expanded) {
			return rule, true
		}
	}
	return "", false
}

func isGlob(rule string) bool {
	return strings.ContainsAny(rule, "*?")
}

// IsProtectedApp reports whether an application identifier is protected.
// Matching is case-insensitive; a rule ending in "." is an identifier prefix.
func (p *Policy) IsProtectedApp(id string) bool {
	return p.matchIdentifier(id, RuleAppID)
}

// IsProtectedOrphan reports whether an identifier must never be treated as orphaned.
func (p *Policy) IsProtectedOrphan(id string) bool {
	return p.matchIdentifier(id, RuleOrphanID)
}

func (p *Policy) matchIdentifier(id string, kind RuleKind) bool {
	if id == "" {
		return false
	}
	lower := strings.ToLower(id)
	match := func(rules []string) bool {
		for _, rule := range rules {
			r := strings.ToLower(rule)
			if strings.HasSuffix(r, ".") {
				if strings.HasPrefix(lower, r) {
					return true
				}
				continue
			}
			if lower == r {
				return true
			}
		}
		return false
	}

	if match(*p.builtin.list(kind)) {
		return true
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return match(*p.user.list(kind))
}

// IsProtectedCacheName reports whether name contains any protected cache substring.
func (p *Policy) IsProtectedCacheName(name string) bool {
	lower := strings.ToLower(name)
	match := func(rules []string) bool {
		for _, rule := range rules {
			if rule != "" && strings.Contains(lower, strings.ToLower(rule)) {
				return true
			}
		}
		return false
	}

	if match(p.builtin.CacheNames) {
		return true
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return match(p.user.CacheNames)
}

// Validate is the check run before any mutation: injection first, then the
// path rules, the protected cache names (matched against the base name) and
// the protected application identifiers (matched against the identifier that
// owns the path). The returned error is a *ProtectedError.
func (p *Policy) Validate(path string) error {
	if err := CheckInjection(path); err != nil {
		return err
	}
	if rule, ok := p.matchPath(path); ok {
		return &ProtectedError{Path: path, Rule: rule, Reason: "path is whitelisted"}
	}
	if name := filepath.Base(path); p.IsProtectedCacheName(name) {
		return &ProtectedError{Path: path, Rule: name, Reason: "cache name is protected"}
	}
	if id, ok := owner.ExtractIdentifier(path); ok && p.IsProtectedApp(id) {
		return &ProtectedError{Path: path, Rule: id, Reason: "application is protected"}
	}
	return nil
}

// AddUser adds a rule to the user layer. Duplicates are ignored.
func (p *Policy) AddUser(kind RuleKind, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("empty %s rule", kind)
	}
	if kind == RulePath && isGlob(value) {
		if err := ValidateGlobPattern(value); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.user.list(kind)
	if !slices.Contains(*list, value) {
		*list = append(*list, value)
	}
	return nil
}

// RemoveUser removes a rule from the user layer. Built-in rules are never removed.
func (p *Policy) RemoveUser(kind RuleKind, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.user.list(kind)
	if i := slices.Index(*list, value); i >= 0 {
		*list = slices.Delete(*list, i, i+1)
		return nil
	}
	if slices.Contains(*p.builtin.list(kind), value) {
		return fmt.Errorf("%s %q: %w", kind, value, ErrBuiltinRule)
	}
	return fmt.Errorf("%s rule %q not found", kind, value)
}

// UserRules returns a copy of the user layer
func (p *Policy) UserRules() Rules {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.user.clone()
}

// BuiltinRules returns a copy of the built-in layer
func (p *Policy) BuiltinRules() Rules {
	return p.builtin.clone()
}

// Effective returns the built-in and user layers merged, built-in first
func (p *Policy) Effective() Rules {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := p.builtin.clone()
	for _, kind := range []RuleKind{RulePath, RuleAppID, RuleCacheName, RuleOrphanID} {
		dst := out.list(kind)
		for _, v := range *p.user.list(kind) {
			if !slices.Contains(*dst, v) {
				*dst = append(*dst, v)
			}
		}
	}
	return out
}
