package client

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

type State int

const (
	StateIdle State = iota
	StateTyping
	StateSearching
)

func (s State) String() string {
	switch s {
	case StateTyping:
		return "typing"
	case StateSearching:
		return "searching"
	default:
		return "idle"
	}
}

// SearchBox turns raw keystrokes into search and clear navigations.
type SearchBox struct {
	mu        sync.Mutex
	state     State
	text      string
	lastTerm  string
	minLength int

	debouncer *Debouncer
	onSearch  func(term string)
	onClear   func()
}

// NewSearchBox wires a box whose debounced or submitted terms go to onSearch.
// onClear runs synchronously when the input is emptied.
func NewSearchBox(minLength int, debounce time.Duration, onSearch func(string), onClear func()) *SearchBox {
	if minLength < 1 {
		minLength = 1
	}
	b := &SearchBox{
		minLength: minLength,
		onSearch:  onSearch,
		onClear:   onClear,
	}
	b.debouncer = NewDebouncer(debounce, b.navigate)
	return b
}

// Type replaces the current input text.
func (b *SearchBox) Type(text string) {
	if strings.TrimSpace(text) == "" {
		b.Clear()
		return
	}

	b.mu.Lock()
	b.text = text
	b.state = StateTyping
	b.mu.Unlock()

	b.debouncer.Trigger(text)
}

// Submit searches the current text now, skipping the debounce delay.
func (b *SearchBox) Submit() {
	b.debouncer.Cancel()

	b.mu.Lock()
	text := b.text
	b.mu.Unlock()

	b.navigate(text)
}

// Clear empties the input and shows the unfiltered view.
func (b *SearchBox) Clear() {
	b.debouncer.Cancel()

	b.mu.Lock()
	b.text = ""
	b.lastTerm = ""
	b.state = StateIdle
	b.mu.Unlock()

	if b.onClear != nil {
		b.onClear()
	}
}

// Done marks the running search as finished.
func (b *SearchBox) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateSearching {
		b.state = StateIdle
	}
}

func (b *SearchBox) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *SearchBox) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// LastTerm is the term of the most recent navigation.
func (b *SearchBox) LastTerm() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTerm
}

func (b *SearchBox) navigate(text string) {
	term := strings.TrimSpace(text)

	b.mu.Lock()
	if utf8.RuneCountInString(term) < b.minLength || term == b.lastTerm {
		if b.state == StateTyping {
			b.state = StateIdle
		}
		b.mu.Unlock()
		return
	}
	b.lastTerm = term
	b.state = StateSearching
	b.mu.Unlock()

	if b.onSearch != nil {
		b.onSearch(term)
	}
}
