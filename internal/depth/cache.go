package depth

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/ivlev/depthflow/internal/logging"
	"github.com/ivlev/depthflow/internal/source"
)

const lockRetryDelay = 50 * time.Millisecond

// Key derives the cache key for an image and model: the hex BLAKE2b-256 of
// the pixel geometry and raw bytes, a dash, and the path-escaped model id, so
// ids like "org/model" stay a single file or object name.
func Key(img source.Image, modelID string) string {
	h, _ := blake2b.New256(nil)
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(img.Width))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(img.Height))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(img.Format))
	h.Write(hdr[:])
	h.Write(img.Pix)
	return hex.EncodeToString(h.Sum(nil)) + "-" + url.PathEscape(strings.ReplaceAll(modelID, `\`, "/"))
}

// Result is the outcome of a cache lookup.
type Result struct {
	Depth source.Image
	Key   string
	Hit   bool
	// Warnings holds non-fatal conditions such as ErrDegenerateDepthRange.
	Warnings []error
}

// Stats counts cache traffic.
type Stats struct {
	Hits   int64
	Misses int64
	Writes int64
}

// Cache is a content-addressed depth map cache in front of an estimator.
// It is safe for concurrent use; concurrent misses on one key run the
// estimator once.
type Cache struct {
	store Store
	est   Estimator
	log   *slog.Logger
	group singleflight.Group

	hits, misses, writes atomic.Int64
}

func NewCache(store Store, est Estimator, logger *slog.Logger) *Cache {
	return &Cache{
		store: store,
		est:   est,
		log:   logging.Component(logger, "depth"),
	}
}

func (c *Cache) Estimator() Estimator {
	return c.est
}

func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Writes: c.writes.Load()}
}

// GetDepth returns the normalized depth map for img under modelID (the
// estimator's own id when empty). A hit is returned exactly as stored.
// Estimator errors are returned unwrapped.
func (c *Cache) GetDepth(ctx context.Context, img source.Image, modelID string) (Result, error) {
	if err := img.Validate(); err != nil {
		return Result{}, &source.ImageLoadError{Err: err}
	}
	if modelID == "" {
		modelID = c.est.ModelID()
	}
	key := Key(img, modelID)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// The shared lookup outlives any one caller; each caller stops waiting
	// when its own context ends.
	ch := c.group.DoChan(key, func() (any, error) {
		return c.resolve(context.WithoutCancel(ctx), key, img)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

// GetDepthFile decodes the image at path and looks it up.
func (c *Cache) GetDepthFile(ctx context.Context, path, modelID string) (Result, error) {
	img, err := source.LoadFile(path, source.RGB8)
	if err != nil {
		return Result{}, err
	}
	return c.GetDepth(ctx, img, modelID)
}

func (c *Cache) resolve(ctx context.Context, key string, img source.Image) (Result, error) {
	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		depth, derr := source.DecodeBytes(data, source.L8)
		if derr == nil {
			c.hits.Add(1)
			c.log.Debug("cache hit", "key", key)
			return Result{Depth: depth, Key: key, Hit: true}, nil
		}
		c.log.Warn("corrupt cache entry, recomputing", "key", key, "error", derr)
	case !errors.Is(err, ErrNotFound):
		return Result{}, fmt.Errorf("depth cache lookup: %w", err)
	}

	c.misses.Add(1)
	start := time.Now()
	raw, err := c.est.Estimate(ctx, img)
	if err != nil {
		return Result{}, err
	}
	if raw.Format != source.L8 && raw.Validate() == nil {
		raw = source.FromImage(raw.ToImage(), source.L8)
	}
	if err := raw.Validate(); err != nil {
		return Result{}, fmt.Errorf("estimator %s returned invalid depth: %w", c.est.ModelID(), err)
	}

	res := Result{Key: key}
	depth, ok := Normalize(raw)
	if !ok {
		c.log.Warn("depth map has no dynamic range, using it unnormalized", "key", key)
		res.Warnings = append(res.Warnings, fmt.Errorf("%w: key %s", ErrDegenerateDepthRange, key))
	}
	res.Depth = depth

	encoded, err := source.PNGBytes(depth)
	if err != nil {
		return Result{}, fmt.Errorf("encode depth: %w", err)
	}
	if err := c.store.Put(ctx, key, encoded); err != nil {
		return Result{}, fmt.Errorf("depth cache store: %w", err)
	}
	c.writes.Add(1)
	c.log.Info("depth estimated", "key", key, "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}
