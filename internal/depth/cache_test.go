package depth

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ivlev/depthflow/internal/source"
)

type countingStore struct {
	Store
	gets, puts atomic.Int64
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, key)
}

func (s *countingStore) Put(ctx context.Context, key string, data []byte) error {
	s.puts.Add(1)
	return s.Store.Put(ctx, key, data)
}

func gradientImage(w, h int) source.Image {
	img := source.NewImage(w, h, source.RGB8)
	for i := range img.Pix {
		img.Pix[i] = byte(i % 251)
	}
	return img
}

// rampEstimator returns a horizontal ramp 40..(40+w-1), which needs normalizing.
func rampEstimator(calls *atomic.Int64) Estimator {
	return EstimatorFunc{ID: "ramp", Fn: func(_ context.Context, img source.Image) (source.Image, error) {
		calls.Add(1)
		out := source.NewImage(img.Width, img.Height, source.L8)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				out.Pix[y*img.Width+x] = byte(40 + x)
			}
		}
		return out, nil
	}}
}

func newTestCache(t *testing.T, est Estimator) (*Cache, *countingStore) {
	t.Helper()
	dir, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	store := &countingStore{Store: dir}
	return NewCache(store, est, nil), store
}

func TestCacheDeterminism(t *testing.T) {
	var calls atomic.Int64
	cache, store := newTestCache(t, rampEstimator(&calls))
	img := gradientImage(32, 8)

	first, err := cache.GetDepth(context.Background(), img, "")
	if err != nil {
		t.Fatalf("first GetDepth: %v", err)
	}
	if first.Hit {
		t.Error("first lookup should miss")
	}
	second, err := cache.GetDepth(context.Background(), img, "")
	if err != nil {
		t.Fatalf("second GetDepth: %v", err)
	}
	if !second.Hit {
		t.Error("second lookup should hit")
	}
	if !bytes.Equal(first.Depth.Pix, second.Depth.Pix) {
		t.Error("cached depth differs from fresh depth")
	}

	raw, _ := rampEstimator(new(atomic.Int64)).Estimate(context.Background(), img)
	fresh, _ := Normalize(raw)
	if !bytes.Equal(fresh.Pix, second.Depth.Pix) {
		t.Error("cached depth differs from uncached estimate+normalize")
	}

	if calls.Load() != 1 {
		t.Errorf("estimator calls = %d, want 1", calls.Load())
	}
	if store.puts.Load() != 1 {
		t.Errorf("store writes = %d, want exactly one per miss", store.puts.Load())
	}
	st := cache.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Writes != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestCacheKeyIncludesModel(t *testing.T) {
	img := gradientImage(4, 4)
	if Key(img, "a") == Key(img, "b") {
		t.Error("different models share a key")
	}
	if Key(img, "a") != Key(gradientImage(4, 4), "a") {
		t.Error("same content produced different keys")
	}
	reshaped := img
	reshaped.Width, reshaped.Height = 8, 2
	if Key(img, "a") == Key(reshaped, "a") {
		t.Error("geometry should be part of the key")
	}

	var calls atomic.Int64
	cache, store := newTestCache(t, rampEstimator(&calls))
	cache.GetDepth(context.Background(), img, "a")
	cache.GetDepth(context.Background(), img, "b")
	if calls.Load() != 2 || store.puts.Load() != 2 {
		t.Errorf("calls=%d puts=%d, want 2/2", calls.Load(), store.puts.Load())
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	img := source.NewImage(256, 1, source.L8)
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	out, ok := Normalize(img)
	if !ok || !bytes.Equal(out.Pix, img.Pix) {
		t.Error("normalizing a 0..255 map changed it")
	}

	narrow := source.NewImage(3, 1, source.L8)
	copy(narrow.Pix, []byte{100, 150, 200})
	once, _ := Normalize(narrow)
	if once.Pix[0] != 0 || once.Pix[1] != 127 || once.Pix[2] != 255 {
		t.Errorf("Normalize = %v, want [0 127 255]", once.Pix)
	}
	twice, _ := Normalize(once)
	if !bytes.Equal(once.Pix, twice.Pix) {
		t.Error("Normalize is not idempotent")
	}
}

func TestNormalizeTruncates(t *testing.T) {
	tests := []struct {
		in, want []byte
	}{
		{[]byte{0, 1, 2}, []byte{0, 127, 255}},
		{[]byte{0, 1, 4}, []byte{0, 63, 255}},
		{[]byte{5, 6, 7, 9}, []byte{0, 63, 127, 255}},
	}
	for _, tt := range tests {
		img := source.NewImage(len(tt.in), 1, source.L8)
		copy(img.Pix, tt.in)
		out, ok := Normalize(img)
		if !ok || !bytes.Equal(out.Pix, tt.want) {
			t.Errorf("Normalize(%v) = %v, want %v", tt.in, out.Pix, tt.want)
		}
	}

	q, ok := Quantize(3, 1, []float32{0, 0.5, 1})
	if !ok || !bytes.Equal(q.Pix, []byte{0, 127, 255}) {
		t.Errorf("Quantize = %v, want [0 127 255]", q.Pix)
	}
}

func TestModelIDWithSlash(t *testing.T) {
	img := gradientImage(8, 4)
	key := Key(img, "vinvino02/glpn-nyu")
	if err := validKey(key); err != nil {
		t.Errorf("Key: %v", err)
	}
	if key == Key(img, "vinvino02_glpn-nyu") {
		t.Error("escaped id collides with a plain one")
	}

	var calls atomic.Int64
	cache, _ := newTestCache(t, rampEstimator(&calls))
	for _, id := range []string{"vinvino02/glpn-nyu", `org\model`} {
		first, err := cache.GetDepth(context.Background(), img, id)
		if err != nil {
			t.Fatalf("GetDepth(%q): %v", id, err)
		}
		second, err := cache.GetDepth(context.Background(), img, id)
		if err != nil || !second.Hit || second.Key != first.Key {
			t.Errorf("GetDepth(%q) second lookup: hit=%v err=%v", id, second.Hit, err)
		}
	}
}

func TestCancelledCallerDoesNotCancelOthers(t *testing.T) {
	var calls atomic.Int64
	started := make(chan struct{})
	var startOnce sync.Once
	release := make(chan struct{})
	slow := EstimatorFunc{ID: "slow", Fn: func(ctx context.Context, img source.Image) (source.Image, error) {
		startOnce.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return source.Image{}, err
		}
		return rampEstimator(&calls).Estimate(ctx, img)
	}}
	cache, _ := newTestCache(t, slow)
	img := gradientImage(16, 4)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.GetDepth(ctx, img, "")
		firstErr <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := cache.GetDepth(context.Background(), img, "")
		second <- err
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller err = %v, want context.Canceled", err)
	}
	close(release)
	if err := <-second; err != nil {
		t.Errorf("waiting caller err = %v, want success", err)
	}
}

func TestDegenerateDepthRange(t *testing.T) {
	flat := EstimatorFunc{ID: "flat", Fn: func(_ context.Context, img source.Image) (source.Image, error) {
		return source.Fill(img.Width, img.Height, source.L8, 42), nil
	}}
	cache, store := newTestCache(t, flat)

	res, err := cache.GetDepth(context.Background(), gradientImage(4, 4), "")
	if err != nil {
		t.Fatalf("GetDepth: %v", err)
	}
	if len(res.Warnings) != 1 || !errors.Is(res.Warnings[0], ErrDegenerateDepthRange) {
		t.Fatalf("warnings = %v, want ErrDegenerateDepthRange", res.Warnings)
	}
	if res.Depth.Pix[0] != 42 {
		t.Errorf("degenerate map should stay unnormalized, got %d", res.Depth.Pix[0])
	}
	if store.puts.Load() != 1 {
		t.Errorf("degenerate map should still be persisted once, puts=%d", store.puts.Load())
	}
}

func TestEstimatorErrorPropagatesUnwrapped(t *testing.T) {
	boom := errors.New("model crashed")
	cache, store := newTestCache(t, EstimatorFunc{ID: "x", Fn: func(context.Context, source.Image) (source.Image, error) {
		return source.Image{}, boom
	}})

	_, err := cache.GetDepth(context.Background(), gradientImage(2, 2), "")
	if err != boom {
		t.Fatalf("err = %v, want the estimator error itself", err)
	}
	if store.puts.Load() != 0 {
		t.Error("failed estimate must not write")
	}
}

func TestGetDepthFileLoadError(t *testing.T) {
	cache, _ := newTestCache(t, Luminance)
	_, err := cache.GetDepthFile(context.Background(), "/nonexistent/input.png", "")
	if !errors.Is(err, source.ErrImageLoad) {
		t.Fatalf("err = %v, want ErrImageLoad", err)
	}
	_, err = cache.GetDepth(context.Background(), source.Image{}, "")
	if !errors.Is(err, source.ErrImageLoad) {
		t.Fatalf("empty image err = %v, want ErrImageLoad", err)
	}
}

func TestConcurrentMissesEstimateOnce(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	slow := EstimatorFunc{ID: "slow", Fn: func(ctx context.Context, img source.Image) (source.Image, error) {
		<-release
		return rampEstimator(&calls).Estimate(ctx, img)
	}}
	cache, store := newTestCache(t, slow)
	img := gradientImage(16, 4)

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := cache.GetDepth(context.Background(), img, "")
			if err != nil {
				t.Errorf("GetDepth: %v", err)
			}
			results[i] = res
		}()
	}
	close(release)
	wg.Wait()

	// singleflight collapses overlapping calls; late arrivals hit the store
	if calls.Load() > int64(len(results)) || store.puts.Load() != calls.Load() {
		t.Errorf("calls=%d puts=%d", calls.Load(), store.puts.Load())
	}
	for i := 1; i < len(results); i++ {
		if !bytes.Equal(results[0].Depth.Pix, results[i].Depth.Pix) {
			t.Fatalf("result %d differs", i)
		}
	}
}
