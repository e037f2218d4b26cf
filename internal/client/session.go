package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"podsearch/internal/domain"
)

const searchKey = "search"

// View renders session output. Methods are called from background goroutines,
// one at a time, and must not call back into the Session.
type View interface {
	Loading(term string)
	Results(term string, result *domain.SearchResult)
	Error(term string, err error)
	Cleared()
}

// Backend is the subset of Client a Session drives.
type Backend interface {
	Search(ctx context.Context, term string) (*domain.SearchResult, error)
	Recent(ctx context.Context) (*domain.SearchResult, error)
}

type SessionConfig struct {
	MinLength int
	Debounce  time.Duration
}

// Session connects a SearchBox to a Backend. Only the latest navigation is
// ever rendered.
type Session struct {
	box     *SearchBox
	group   *Group
	backend Backend
	view    View
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSession(ctx context.Context, backend Backend, view View, cfg SessionConfig, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		group:   NewGroup(),
		backend: backend,
		view:    view,
		logger:  logger.With("component", "session"),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.box = NewSearchBox(cfg.MinLength, cfg.Debounce, s.search, s.clear)
	return s
}

func (s *Session) Type(text string) { s.box.Type(text) }

func (s *Session) Submit() { s.box.Submit() }

func (s *Session) Clear() { s.box.Clear() }

func (s *Session) Box() *SearchBox { return s.box }

// ShowRecent loads the unfiltered view without touching the input.
func (s *Session) ShowRecent() {
	s.recent()
}

// Wait blocks until every started request has settled.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels pending input and in-flight requests.
func (s *Session) Close() {
	s.box.debouncer.Cancel()
	s.group.CancelAll()
	s.cancel()
	s.wg.Wait()
}

func (s *Session) search(term string) {
	call := s.group.Start(s.ctx, searchKey)
	s.view.Loading(term)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		_, err := finish(call, func(ctx context.Context) (*domain.SearchResult, error) {
			return s.backend.Search(ctx, term)
		}, func(result *domain.SearchResult, err error) {
			s.box.Done()
			if err != nil {
				s.view.Error(term, err)
				return
			}
			s.view.Results(term, result)
		})
		if errors.Is(err, ErrSuperseded) {
			s.logger.Debug("search superseded", "term", term)
		}
	}()
}

func (s *Session) clear() {
	s.group.Cancel(searchKey)
	s.view.Cleared()
	s.recent()
}

func (s *Session) recent() {
	call := s.group.Start(s.ctx, searchKey)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		_, err := finish(call, s.backend.Recent, func(result *domain.SearchResult, err error) {
			if err != nil {
				s.view.Error("", err)
				return
			}
			s.view.Results("", result)
		})
		if errors.Is(err, ErrSuperseded) {
			s.logger.Debug("recent superseded")
		}
	}()
}
