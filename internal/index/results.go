package index

import (
	"context"
	"sync"

	"github.com/roach88/contentql/internal/change"
)

// ResultWriter receives the node keys of one batch.
type ResultWriter interface {
	// Add adds one node with its relevance score.
	Add(key change.NodeKey, score float32)
	// AddAll adds several nodes sharing one score.
	AddAll(keys []change.NodeKey, score float32)
}

// Results is a pull-based cursor over the nodes matched by an index.
//
// Callers ask for batches until GetNextBatch reports no more, then Close.
// Close must be called exactly once even when not every batch was read;
// no other call is valid afterwards.
type Results interface {
	// GetNextBatch writes up to batchSize nodes to w and reports whether
	// more batches may follow.
	GetNextBatch(ctx context.Context, w ResultWriter, batchSize int) (bool, error)
	Close() error
}

// Hit is one matched node.
type Hit struct {
	Key   change.NodeKey `json:"key"`
	Score float32        `json:"score"`
}

// Batch is a ResultWriter that keeps the hits it is given.
type Batch struct {
	Hits []Hit
}

func (b *Batch) Add(key change.NodeKey, score float32) {
	b.Hits = append(b.Hits, Hit{Key: key, Score: score})
}

func (b *Batch) AddAll(keys []change.NodeKey, score float32) {
	for _, k := range keys {
		b.Add(k, score)
	}
}

// Len returns the number of hits.
func (b *Batch) Len() int { return len(b.Hits) }

// Reset empties the batch for reuse.
func (b *Batch) Reset() { b.Hits = b.Hits[:0] }

// Closing wraps r so that the underlying Close runs at most once and any
// use after Close fails with ErrResultsClosed.
func Closing(r Results) Results {
	if c, ok := r.(*closing); ok {
		return c
	}
	return &closing{inner: r}
}

type closing struct {
	mu     sync.Mutex
	inner  Results
	closed bool
}

func (c *closing) GetNextBatch(ctx context.Context, w ResultWriter, batchSize int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrResultsClosed
	}
	return c.inner.GetNextBatch(ctx, w, batchSize)
}

func (c *closing) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.inner.Close()
}

// Collect reads every batch of r and closes it.
func Collect(ctx context.Context, r Results, batchSize int) (hits []Hit, err error) {
	defer func() {
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}()
	var b Batch
	for {
		if err := ctx.Err(); err != nil {
			return hits, err
		}
		b.Reset()
		more, err := r.GetNextBatch(ctx, &b, batchSize)
		if err != nil {
			return hits, err
		}
		hits = append(hits, b.Hits...)
		if !more {
			return hits, nil
		}
	}
}

// SliceResults serves hits held in memory.
type SliceResults struct {
	hits []Hit
	pos  int
}

// NewSliceResults returns results over a copy of hits.
func NewSliceResults(hits ...Hit) *SliceResults {
	return &SliceResults{hits: append([]Hit(nil), hits...)}
}

func (s *SliceResults) GetNextBatch(_ context.Context, w ResultWriter, batchSize int) (bool, error) {
	if batchSize <= 0 {
		batchSize = len(s.hits)
	}
	end := min(s.pos+batchSize, len(s.hits))
	for _, h := range s.hits[s.pos:end] {
		w.Add(h.Key, h.Score)
	}
	s.pos = end
	return s.pos < len(s.hits), nil
}

func (s *SliceResults) Close() error { return nil }
