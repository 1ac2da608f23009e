package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"campusnerd/internal/extract"
	"campusnerd/internal/logging"
)

// ErrScopeClosed is returned by Page after Close.
var ErrScopeClosed = errors.New("browser scope closed")

// Scope is the browsing context of a single question. The page is leased on
// the first Page call and released by Close, which is safe to call more than
// once and on scopes that never leased anything.
type Scope struct {
	m *SessionManager

	mu        sync.Mutex
	held      bool
	closed    bool
	page      extract.Page
	session   *Session
	closePage func() error
}

var _ extract.PageSource = (*Scope)(nil)

// Page returns the scope's page, waiting for any other scope to close first.
func (s *Scope) Page(ctx context.Context) (extract.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrScopeClosed
	}
	if s.page != nil {
		return s.page, nil
	}

	if !s.held {
		acquireCtx, cancel := context.WithTimeout(ctx, s.m.cfg.AcquireTimeout())
		err := s.m.slot.Acquire(acquireCtx, 1)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("wait for browsing context: %w", err)
		}
		s.held = true
	}

	page, meta, closePage, err := s.m.open(ctx)
	if err != nil {
		s.m.slot.Release(1)
		s.held = false
		return nil, fmt.Errorf("open page: %w", err)
	}

	s.page, s.session, s.closePage = page, meta, closePage
	s.m.setActive(meta)
	logging.BrowserDebug("Leased page %s", meta.ID)
	return page, nil
}

// Close releases the page and the browsing-context slot.
func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.closePage != nil {
		if err = s.closePage(); err != nil {
			logging.BrowserWarn("Closing page %s: %v", s.session.ID, err)
		}
	}
	if s.held {
		s.m.setActive(nil)
		s.m.slot.Release(1)
		s.held = false
		if s.session != nil {
			logging.BrowserDebug("Released page %s", s.session.ID)
		}
	}
	s.page, s.closePage = nil, nil
	return err
}
