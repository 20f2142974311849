package cleaner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// DefaultSessionTimeout is how long a validated password is trusted
const DefaultSessionTimeout = 5 * time.Minute

// SudoElevator removes paths through sudo. The password is asked for once
// and kept in memory until Clear.
type SudoElevator struct {
	mu            sync.RWMutex
	password      []byte
	authenticated bool
	sessionExpiry time.Time

	available      bool
	sessionTimeout time.Duration

	run    commandRunner
	prompt func() ([]byte, error)
}

// NewSudoElevator creates a sudo elevator that prompts on the terminal
func NewSudoElevator() *SudoElevator {
	return &SudoElevator{
		available:      checkSudoAvailable(),
		sessionTimeout: DefaultSessionTimeout,
		run:            runCommand,
		prompt:         promptPassword,
	}
}

// checkSudoAvailable checks if sudo is available on the system
func checkSudoAvailable() bool {
	_, err := exec.LookPath("sudo")
	return err == nil
}

// promptPassword reads the password from the terminal without echo
func promptPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: no terminal to ask for a password", ErrElevationDenied)
	}

	fmt.Fprint(os.Stderr, "\n🔐 Some items require administrator access.\n")
	fmt.Fprint(os.Stderr, "Password (or press Ctrl+C to skip): ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// IsAvailable returns whether sudo is available
func (s *SudoElevator) IsAvailable() bool {
	return s.available
}

// IsAuthenticated returns whether we have a valid sudo session
func (s *SudoElevator) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated && time.Now().Before(s.sessionExpiry)
}

// CheckSession checks if sudo works without a password (cached or NOPASSWD)
func (s *SudoElevator) CheckSession(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.run(ctx, nil, "sudo", "-n", "true")
	return err == nil
}

// Authenticate makes sure later sudo calls succeed, prompting if needed
func (s *SudoElevator) Authenticate(ctx context.Context) error {
	if !s.available {
		return fmt.Errorf("%w: sudo is not available on this system", ErrElevationDenied)
	}
	if s.IsAuthenticated() {
		return nil
	}

	if s.CheckSession(ctx) {
		s.mu.Lock()
		s.authenticated = true
		s.sessionExpiry = time.Now().Add(s.sessionTimeout)
		s.mu.Unlock()
		return nil
	}

	password, err := s.prompt()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrElevationDenied, err)
	}
	if len(password) == 0 {
		return fmt.Errorf("%w: empty password", ErrElevationDenied)
	}

	if err := s.validatePassword(ctx, password); err != nil {
		clearBytes(password)
		return err
	}

	s.mu.Lock()
	s.password = password
	s.authenticated = true
	s.sessionExpiry = time.Now().Add(s.sessionTimeout)
	s.mu.Unlock()
	return nil
}

// validatePassword validates the sudo password by running a test command
func (s *SudoElevator) validatePassword(ctx context.Context, password []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stderr, err := s.run(ctx, withNewline(password), "sudo", "-S", "-v")
	if err != nil {
		if strings.Contains(stderr, "Sorry") || strings.Contains(stderr, "incorrect password") {
			return fmt.Errorf("%w: incorrect password", ErrElevationDenied)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("sudo command timed out")
		}
		return fmt.Errorf("sudo validation failed: %v (stderr: %s)", err, stderr)
	}
	return nil
}

// RemoveAll implements Elevator with a single "sudo rm -rf" for all paths
func (s *SudoElevator) RemoveAll(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := s.Authenticate(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	args := append([]string{"-S", "rm", "-rf", "--"}, paths...)

	s.mu.RLock()
	stdin := withNewline(s.password)
	s.mu.RUnlock()

	stderr, err := s.run(ctx, stdin, "sudo", args...)
	clearBytes(stdin)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("sudo rm interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("sudo rm failed: %w (stderr: %s)", err, stderr)
	}

	for _, p := range paths {
		if _, err := os.Lstat(p); !os.IsNotExist(err) {
			return fmt.Errorf("%s still exists after sudo rm", p)
		}
	}
	return nil
}

// Clear clears the password from memory and invalidates the session
func (s *SudoElevator) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.password != nil {
		clearBytes(s.password)
		s.password = nil
	}
	s.authenticated = false
	s.sessionExpiry = time.Time{}
}

func withNewline(password []byte) []byte {
	out := make([]byte, 0, len(password)+1)
	out = append(out, password...)
	return append(out, '\n')
}

// clearBytes securely zeros a byte slice
func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
