package storage

import (
	"context"
	"errors"
)

// Sink persists crawl output as it is produced.
type Sink interface {
	WriteDocument(ctx context.Context, doc Document) error
	WriteRawHTML(ctx context.Context, page RawPage) error
	WriteOutLinks(ctx context.Context, links LinkSet) error
	WriteInLinks(ctx context.Context, links []LinkSet) error
	WriteCrawled(ctx context.Context, urls []string) error
	WriteDiscovered(ctx context.Context, urls []string) error
	Close() error
}

// Tee writes every record to all sinks. Failures are joined; a failing sink
// does not stop the others.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) each(fn func(Sink) error) error {
	var errs []error
	for _, s := range t {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) WriteDocument(ctx context.Context, doc Document) error {
	return t.each(func(s Sink) error { return s.WriteDocument(ctx, doc) })
}

func (t tee) WriteRawHTML(ctx context.Context, page RawPage) error {
	return t.each(func(s Sink) error { return s.WriteRawHTML(ctx, page) })
}

func (t tee) WriteOutLinks(ctx context.Context, links LinkSet) error {
	return t.each(func(s Sink) error { return s.WriteOutLinks(ctx, links) })
}

func (t tee) WriteInLinks(ctx context.Context, links []LinkSet) error {
	return t.each(func(s Sink) error { return s.WriteInLinks(ctx, links) })
}

func (t tee) WriteCrawled(ctx context.Context, urls []string) error {
	return t.each(func(s Sink) error { return s.WriteCrawled(ctx, urls) })
}

func (t tee) WriteDiscovered(ctx context.Context, urls []string) error {
	return t.each(func(s Sink) error { return s.WriteDiscovered(ctx, urls) })
}

func (t tee) Close() error {
	return t.each(func(s Sink) error { return s.Close() })
}

// Discard accepts and drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) WriteDocument(context.Context, Document) error   { return nil }
func (discard) WriteRawHTML(context.Context, RawPage) error     { return nil }
func (discard) WriteOutLinks(context.Context, LinkSet) error    { return nil }
func (discard) WriteInLinks(context.Context, []LinkSet) error   { return nil }
func (discard) WriteCrawled(context.Context, []string) error    { return nil }
func (discard) WriteDiscovered(context.Context, []string) error { return nil }
func (discard) Close() error                                    { return nil }
