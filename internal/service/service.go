// Package service implements the use cases of the feed and notification
// engine on top of the repositories: graph mutations, posting, feed
// assembly, trending, and notification reads.
package service

import (
	"context"
	"unicode/utf8"

	"zing/internal/events"

	"golang.org/x/text/unicode/norm"
)

// Publisher receives events after successful mutations.
// *events.Dispatcher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps (page-1)*MaxPageSize well inside int32.
	MaxPage = 100_000
)

// ClampPage returns page limited to [1, MaxPage].
func ClampPage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > MaxPage:
		return MaxPage
	}
	return page
}

// pageWindow turns a 1-based page and a page size into limit and offset.
// page is clamped with ClampPage; size <= 0 falls back to def; size is
// capped at MaxPageSize.
func pageWindow(page, size, def int) (limit, offset int) {
	page = ClampPage(page)
	if def <= 0 {
		def = DefaultPageSize
	}
	if size <= 0 {
		size = def
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size, (page - 1) * size
}

// normalize returns s in Unicode NFC so that lengths count code points of
// the composed form.
func normalize(s string) string {
	return norm.NFC.String(s)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func publish(ctx context.Context, p Publisher, ev events.Event) {
	if p != nil {
		p.Publish(ctx, ev)
	}
}
