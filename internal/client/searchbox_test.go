package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type SearchBoxTestSuite struct {
	suite.Suite
	box      *SearchBox
	timers   *fakeTimers
	mu       sync.Mutex
	searches []string
	clears   int
}

func (s *SearchBoxTestSuite) SetupTest() {
	s.searches = nil
	s.clears = 0
	s.timers = &fakeTimers{}
	s.box = NewSearchBox(2, 500*time.Millisecond, func(term string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.searches = append(s.searches, term)
	}, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.clears++
	})
	s.box.debouncer.after = s.timers.after
}

func TestSearchBoxTestSuite(t *testing.T) {
	suite.Run(t, new(SearchBoxTestSuite))
}

func (s *SearchBoxTestSuite) searched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searches...)
}

func (s *SearchBoxTestSuite) TestTypingIsDebounced() {
	s.box.Type("p")
	s.box.Type("po")
	s.box.Type("pod")
	s.Equal(StateTyping, s.box.State())
	s.Empty(s.searched())

	s.timers.fire()

	s.Equal([]string{"pod"}, s.searched())
	s.Equal(StateSearching, s.box.State())
	s.Equal("pod", s.box.LastTerm())

	s.box.Done()
	s.Equal(StateIdle, s.box.State())
}

func (s *SearchBoxTestSuite) TestTermIsTrimmed() {
	s.box.Type("  pod  ")
	s.timers.fire()

	s.Equal([]string{"pod"}, s.searched())
}

func (s *SearchBoxTestSuite) TestMinLengthCountsRunes() {
	s.box.Type("a")
	s.timers.fire()
	s.Empty(s.searched())
	s.Equal(StateIdle, s.box.State())

	s.box.Type(" é ")
	s.timers.fire()
	s.Empty(s.searched())

	s.box.Type("éé")
	s.timers.fire()
	s.Equal([]string{"éé"}, s.searched())
}

func (s *SearchBoxTestSuite) TestDuplicateTermSuppressed() {
	s.box.Type("pod")
	s.timers.fire()
	s.box.Done()

	s.box.Type("pod ")
	s.timers.fire()
	s.box.Submit()

	s.Equal([]string{"pod"}, s.searched())
	s.Equal(StateIdle, s.box.State())
}

func (s *SearchBoxTestSuite) TestSubmitBypassesDebounce() {
	s.box.Type("pod")
	s.box.Submit()

	s.Equal([]string{"pod"}, s.searched())
	s.False(s.box.debouncer.Pending())

	s.timers.get(0).f()
	s.Equal([]string{"pod"}, s.searched())
}

func (s *SearchBoxTestSuite) TestSubmitRespectsMinLength() {
	s.box.Type("p")
	s.box.Submit()

	s.Empty(s.searched())
	s.Equal(StateIdle, s.box.State())
}

func (s *SearchBoxTestSuite) TestClearIsImmediate() {
	s.box.Type("pod")
	s.box.Clear()

	s.Equal(1, s.clears)
	s.Equal("", s.box.Text())
	s.Equal(StateIdle, s.box.State())

	s.timers.fire()
	s.Empty(s.searched())
}

func (s *SearchBoxTestSuite) TestEmptyTextClears() {
	s.box.Type("pod")
	s.timers.fire()

	s.box.Type("")
	s.box.Type("   ")

	s.Equal(2, s.clears)
	s.Equal("", s.box.LastTerm())
}

func (s *SearchBoxTestSuite) TestClearResetsDuplicateGuard() {
	s.box.Type("pod")
	s.timers.fire()
	s.box.Clear()

	s.box.Type("pod")
	s.timers.fire()

	s.Equal([]string{"pod", "pod"}, s.searched())
}

func (s *SearchBoxTestSuite) TestTypingDuringSearch() {
	s.box.Type("pod")
	s.timers.fire()
	s.box.Type("podc")
	s.Equal(StateTyping, s.box.State())

	s.box.Done()
	s.Equal(StateTyping, s.box.State())
}
