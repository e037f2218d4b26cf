package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"podsearch/internal/client"
	"podsearch/internal/domain"
	"podsearch/internal/textutil"
)

const (
	maxRows      = 10
	maxNameWidth = 60
)

type terminalView struct {
	mu  sync.Mutex
	out io.Writer
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out}
}

func (v *terminalView) println(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format+"\n", args...)
}

func (v *terminalView) Loading(term string) {
	v.println("searching %q ...", textutil.Sanitize(term))
}

func (v *terminalView) Results(term string, result *domain.SearchResult) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if term == "" {
		fmt.Fprintln(v.out, "== recent ==")
	} else {
		fmt.Fprintf(v.out, "== results for %q ==\n", textutil.Sanitize(term))
	}
	if result.Len() == 0 {
		fmt.Fprintln(v.out, "no results")
		return
	}

	v.section("Podcasts", result.Podcasts)
	v.section("Episodes", result.Episodes)
}

func (v *terminalView) section(title string, items []domain.ResultItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(v.out, "%s (%d)\n", title, len(items))
	for i, item := range items {
		if i == maxRows {
			fmt.Fprintf(v.out, "  ... %d more\n", len(items)-maxRows)
			break
		}
		line := textutil.Truncate(textutil.Sanitize(item.TrackName), maxNameWidth)
		if artist := textutil.SanitizePtr(item.ArtistName); artist != nil && *artist != "" {
			line += " - " + textutil.Truncate(*artist, maxNameWidth/2)
		}
		fmt.Fprintf(v.out, "  %2d. %s\n", i+1, line)
	}
}

func (v *terminalView) Error(term string, err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		v.println("error: %s", apiErr.Message)
		return
	}
	if term == "" {
		v.println("error loading recent results: %v", err)
		return
	}
	v.println("error searching %q: %v", textutil.Sanitize(term), err)
}

func (v *terminalView) Cleared() {
	v.println("-- cleared --")
}

func (v *terminalView) Health(h *client.Health, err error) {
	if err != nil {
		v.println("backend unreachable: %v", err)
		return
	}
	if h.Healthy() {
		v.println("backend %s, database %s (%s)", h.Status, h.Database, h.Environment)
		return
	}
	v.println("backend %s, database %s: %s", h.Status, h.Database, h.Error)
}
