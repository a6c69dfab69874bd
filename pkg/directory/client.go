// Package directory looks up supplementary employee attributes from an
// external people-directory service. The production endpoint is not wired
// yet; FileClient serves the same contract from a local snapshot file.
package directory

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Directory is the single-operation lookup capability injected into the
// enrichment stage. Implementations must treat unknown IDs as a miss, not an
// error: Lookup returns an empty map when the ID has no directory entry.
type Directory interface {
	Lookup(ctx context.Context, id string) (map[string]string, error)
}

// FileClient implements Directory from a JSON snapshot keyed by person ID.
// It carries the same cache, rate limit, and retry shape a network client
// would, so swapping in a real endpoint does not touch the enrichment stage.
type FileClient struct {
	data    map[string]map[string]string
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]map[string]string

	retries int
}

// Options configures the file-backed directory client.
type Options struct {
	Path       string
	MaxRetries int
	RateLimit  rate.Limit // lookups per second; 0 = default
}

// NewFileClient loads the snapshot at opts.Path.
func NewFileClient(opts Options) (*FileClient, error) {
	raw, err := os.ReadFile(opts.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "directory: read snapshot %s", opts.Path)
	}

	var data map[string]map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, eris.Wrapf(err, "directory: parse snapshot %s", opts.Path)
	}

	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 50
	}

	return &FileClient{
		data:    data,
		limiter: rate.NewLimiter(opts.RateLimit, int(opts.RateLimit)),
		cache:   make(map[string]map[string]string),
		retries: opts.MaxRetries,
	}, nil
}

// Lookup returns the attribute map for the given ID. Misses return an empty
// map. Results are cached for the life of the client.
func (c *FileClient) Lookup(ctx context.Context, id string) (map[string]string, error) {
	c.mu.Lock()
	if cached, ok := c.cache[id]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	var attrs map[string]string
	var lastErr error
	for attempt := range c.retries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "directory: rate limiter wait")
		}

		attrs, lastErr = c.fetch(id)
		if lastErr == nil {
			break
		}
		zap.L().Warn("directory lookup failed, retrying",
			zap.String("id", id),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
		backoff(ctx, attempt)
	}
	if lastErr != nil {
		return nil, eris.Wrapf(lastErr, "directory: lookup %s", id)
	}

	c.mu.Lock()
	c.cache[id] = attrs
	c.mu.Unlock()
	return attrs, nil
}

// fetch is the snapshot stand-in for the network call.
func (c *FileClient) fetch(id string) (map[string]string, error) {
	entry, ok := c.data[id]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(entry))
	for k, v := range entry {
		out[k] = v
	}
	return out, nil
}

func backoff(ctx context.Context, attempt int) {
	base := 500 * time.Millisecond
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
