// Package prefs persists per-(package, source) update decisions.
//
// Two values are kept for every pair: the version the user chose to ignore
// and the instant until which prompting is deferred. Values live in a
// Namespace, which callers may redirect to an isolated node for tests.
package prefs

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"updateclient/internal/debug"
)

const (
	ignorePrefix       = "update.ignore."
	deferUntilPrefix   = "update.deferUntil."
	deferVersionPrefix = "update.deferVersion."

	// MaxKeyLength bounds namespace keys; longer keys are shortened with a digest.
	MaxKeyLength = 80
)

// Namespace is a durable string key/value namespace.
type Namespace interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
	Remove(key string) error
}

// Record is the stored decision state for one (package, source) pair.
type Record struct {
	IgnoredVersion  string    `json:"ignored_version,omitempty" yaml:"ignored_version,omitempty"`
	DeferUntil      time.Time `json:"defer_until" yaml:"defer_until"`
	DeferredVersion string    `json:"deferred_version,omitempty" yaml:"deferred_version,omitempty"`
}

// Store reads and writes update preferences.
type Store struct {
	ns  Namespace
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used by ShouldSkipPrompt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store backed by ns.
func New(ns Namespace, opts ...Option) *Store {
	s := &Store{ns: ns, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetIgnored returns the ignored version, or "" when none is stored.
func (s *Store) GetIgnored(pkg, source string) string {
	v, ok, err := s.ns.Get(keyFor(ignorePrefix, pkg, source))
	if err != nil {
		debug.Logf("prefs: read ignored version for %s: %v", pkg, err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// SetIgnored stores the ignored version. An empty version clears it.
func (s *Store) SetIgnored(pkg, source, version string) error {
	key := keyFor(ignorePrefix, pkg, source)
	if version == "" {
		return s.ns.Remove(key)
	}
	return s.ns.Put(key, version)
}

// GetDeferUntil returns the defer deadline, or the Unix epoch when unset.
func (s *Store) GetDeferUntil(pkg, source string) time.Time {
	raw, ok, err := s.ns.Get(keyFor(deferUntilPrefix, pkg, source))
	if err != nil {
		debug.Logf("prefs: read defer deadline for %s: %v", pkg, err)
		return time.UnixMilli(0)
	}
	if !ok {
		return time.UnixMilli(0)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		debug.Logf("prefs: malformed defer deadline %q for %s", raw, pkg)
		return time.UnixMilli(0)
	}
	return time.UnixMilli(ms)
}

// SetDeferUntil stores the defer deadline as epoch milliseconds.
func (s *Store) SetDeferUntil(pkg, source string, until time.Time) error {
	return s.ns.Put(keyFor(deferUntilPrefix, pkg, source), strconv.FormatInt(until.UnixMilli(), 10))
}

// Defer records a "later" decision. It replaces any ignored version so the
// two gates never disagree, and remembers which version was deferred.
func (s *Store) Defer(pkg, source, version string, until time.Time) error {
	if err := s.SetDeferUntil(pkg, source, until); err != nil {
		return fmt.Errorf("set defer deadline: %w", err)
	}
	if err := s.SetIgnored(pkg, source, ""); err != nil {
		return fmt.Errorf("clear ignored version: %w", err)
	}
	if err := s.ns.Put(keyFor(deferVersionPrefix, pkg, source), version); err != nil {
		debug.Logf("prefs: record deferred version for %s: %v", pkg, err)
	}
	return nil
}

// ShouldSkipPrompt reports whether required was explicitly ignored or the
// pair is still inside its defer window.
func (s *Store) ShouldSkipPrompt(pkg, source, required string) bool {
	if ignored := s.GetIgnored(pkg, source); ignored != "" && ignored == required {
		return true
	}
	return s.now().Before(s.GetDeferUntil(pkg, source))
}

// Get returns all stored values for the pair.
func (s *Store) Get(pkg, source string) Record {
	rec := Record{
		IgnoredVersion: s.GetIgnored(pkg, source),
		DeferUntil:     s.GetDeferUntil(pkg, source),
	}
	if v, ok, err := s.ns.Get(keyFor(deferVersionPrefix, pkg, source)); err == nil && ok {
		rec.DeferredVersion = v
	}
	return rec
}

// Clear removes every value stored for the pair.
func (s *Store) Clear(pkg, source string) error {
	for _, prefix := range []string{ignorePrefix, deferUntilPrefix, deferVersionPrefix} {
		if err := s.ns.Remove(keyFor(prefix, pkg, source)); err != nil {
			return fmt.Errorf("remove %s: %w", prefix, err)
		}
	}
	return nil
}

// SafeKey encodes pkg and source into a namespace-safe key fragment.
func SafeKey(pkg, source string) string {
	return url.QueryEscape(pkg + "|" + source)
}

func keyFor(prefix, pkg, source string) string {
	key := prefix + SafeKey(pkg, source)
	if len(key) <= MaxKeyLength {
		return key
	}
	digest := strconv.FormatUint(xxhash.Sum64String(pkg+"|"+source), 16)
	keep := MaxKeyLength - len(digest) - 1
	return key[:keep] + "~" + digest
}
