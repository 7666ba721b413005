package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	discard
	docs []Document
	err  error
}

func (r *recordingSink) WriteDocument(_ context.Context, doc Document) error {
	r.docs = append(r.docs, doc)
	return r.err
}

func TestTeeWritesToAllSinks(t *testing.T) {
	t.Parallel()

	broken := &recordingSink{err: errors.New("disk full")}
	healthy := &recordingSink{}
	sink := Tee(broken, healthy)

	err := sink.WriteDocument(context.Background(), Document{ID: 1, URL: "http://example.org/"})
	assert.EqualError(t, err, "disk full")
	assert.Len(t, broken.docs, 1)
	assert.Len(t, healthy.docs, 1)

	assert.NoError(t, sink.WriteCrawled(context.Background(), []string{"http://example.org/"}))
	assert.NoError(t, sink.Close())
}
