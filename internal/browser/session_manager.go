// Package browser owns the Chrome instance that carries the student's
// logged-in dashboard session and leases one page at a time to extraction.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"campusnerd/internal/extract"
	"campusnerd/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Session describes the page currently leased to a scope.
type Session struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Config holds browser configuration.
type Config struct {
	// DebuggerURL attaches to a running Chrome (ws:// or http://host:port).
	DebuggerURL string `json:"debugger_url"`
	// Bin overrides the Chrome binary used when launching.
	Bin string `json:"bin"`
	// UserDataDir is the persistent profile holding the login cookies.
	UserDataDir         string   `json:"user_data_dir"`
	Headless            bool     `json:"headless"`
	Flags               []string `json:"flags"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
	AcquireTimeoutMs    int      `json:"acquire_timeout_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            false,
		NavigationTimeoutMs: 30000,
		AcquireTimeoutMs:    120000,
	}
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// AcquireTimeout returns how long a scope waits for the browsing context.
func (c Config) AcquireTimeout() time.Duration {
	if c.AcquireTimeoutMs == 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.AcquireTimeoutMs) * time.Millisecond
}

// opener creates a fresh page and the func that closes it.
type opener func(ctx context.Context) (extract.Page, *Session, func() error, error)

// SessionManager owns the Chrome instance and enforces that at most one
// browsing context is active at a time.
type SessionManager struct {
	cfg        Config
	mu         sync.RWMutex
	browser    *rod.Browser
	controlURL string
	launched   bool // we started Chrome and must close it

	slot   *semaphore.Weighted
	open   opener
	active *Session
}

// NewSessionManager creates a new session manager. Chrome is started lazily on
// the first leased page.
func NewSessionManager(cfg Config) *SessionManager {
	m := newSessionManager(cfg, nil)
	m.open = m.openPage
	return m
}

func newSessionManager(cfg Config, open opener) *SessionManager {
	return &SessionManager{
		cfg:  cfg,
		slot: semaphore.NewWeighted(1),
		open: open,
	}
}

// Start connects to an existing Chrome or launches a new one on the
// configured profile.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("Stale browser connection detected, reconnecting...")
		if m.launched {
			_ = m.browser.Close()
		}
		m.browser = nil
		m.controlURL = ""
		m.launched = false
	}

	controlURL, launched, err := m.resolveControlURL()
	if err != nil {
		return err
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		logging.BrowserError("Failed to connect to Chrome at %s: %v", controlURL, err)
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	m.launched = launched
	logging.Browser("Connected to Chrome (launched=%v)", launched)
	return nil
}

func (m *SessionManager) resolveControlURL() (string, bool, error) {
	if u := strings.TrimSpace(m.cfg.DebuggerURL); u != "" {
		if strings.HasPrefix(u, "ws://") || strings.HasPrefix(u, "wss://") {
			return u, false, nil
		}
		resolved, err := launcher.ResolveURL(u)
		if err != nil {
			return "", false, fmt.Errorf("resolve debugger url %s: %w", u, err)
		}
		return resolved, false, nil
	}

	l := launcher.New().
		Headless(m.cfg.Headless).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	if m.cfg.UserDataDir != "" {
		l = l.UserDataDir(m.cfg.UserDataDir)
	}
	for _, rawFlag := range m.cfg.Flags {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	url, err := l.Launch()
	if err != nil {
		return "", false, fmt.Errorf("launch chrome: %w", err)
	}
	return url, true, nil
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Active returns the currently leased page, if any.
func (m *SessionManager) Active() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return Session{}, false
	}
	return *m.active, true
}

func (m *SessionManager) setActive(s *Session) {
	m.mu.Lock()
	m.active = s
	m.mu.Unlock()
}

// Shutdown waits for the active scope to finish, then disconnects. A Chrome we
// attached to over DebuggerURL is left running.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	if err := m.slot.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for active scope: %w", err)
	}
	defer m.slot.Release(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.browser != nil && m.launched {
		err = m.browser.Close()
	}
	m.browser = nil
	m.controlURL = ""
	m.launched = false
	return err
}

// NewScope returns a scope that lazily leases the browsing context.
func (m *SessionManager) NewScope() *Scope {
	return &Scope{m: m}
}

// openPage creates a page in the default (profile) browser context so the
// session cookies are shared. Incognito contexts would start logged out.
func (m *SessionManager) openPage(ctx context.Context) (extract.Page, *Session, func() error, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, nil, nil, err
	}

	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, nil, nil, errors.New("browser not connected")
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create page: %w", err)
	}

	meta := &Session{
		ID:        uuid.NewString(),
		TargetID:  string(page.TargetID),
		CreatedAt: time.Now(),
	}
	return &rodPage{page: page, timeout: m.cfg.NavigationTimeout()}, meta, page.Close, nil
}
