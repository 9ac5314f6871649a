package depth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestDirStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDirStore(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Get(ctx, "abc-model"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store = %v, want ErrNotFound", err)
	}
	if err := store.Put(ctx, "abc-model", []byte("png")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := store.Get(ctx, "abc-model")
	if err != nil || string(data) != "png" {
		t.Fatalf("Get = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache", "abc-model.png")); err != nil {
		t.Errorf("entry not stored under key filename: %v", err)
	}

	if err := store.Put(ctx, "../escape", nil); err == nil {
		t.Error("expected error for key with path separator")
	}
}

func TestDirStoreConcurrentPuts(t *testing.T) {
	store, _ := NewDirStore(t.TempDir())
	ctx := context.Background()
	payload := bytes.Repeat([]byte{7}, 4096)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Put(ctx, "same-key", payload); err != nil {
				t.Errorf("Put: %v", err)
			}
		}()
	}
	wg.Wait()

	data, err := store.Get(ctx, "same-key")
	if err != nil || !bytes.Equal(data, payload) {
		t.Fatalf("final entry corrupt: %d bytes, %v", len(data), err)
	}
	matches, _ := filepath.Glob(filepath.Join(store.Dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := &S3Store{Client: fake, Bucket: "depth", Prefix: "maps/v1"}
	ctx := context.Background()

	if _, err := store.Get(ctx, "k-model"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
	if err := store.Put(ctx, "k-model", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := fake.objects["depth/maps/v1/k-model.png"]; !ok {
		t.Errorf("object stored under unexpected key: %v", fake.objects)
	}
	data, err := store.Get(ctx, "k-model")
	if err != nil || !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Fatalf("Get = %v, %v", data, err)
	}
}

func TestCacheOverS3Store(t *testing.T) {
	store := &S3Store{Client: &fakeS3{objects: map[string][]byte{}}, Bucket: "b"}
	cache := NewCache(store, Luminance, nil)
	img := gradientImage(8, 8)

	first, err := cache.GetDepth(context.Background(), img, "")
	if err != nil {
		t.Fatalf("GetDepth: %v", err)
	}
	second, err := cache.GetDepth(context.Background(), img, "")
	if err != nil || !second.Hit {
		t.Fatalf("second GetDepth hit=%v err=%v", second.Hit, err)
	}
	if !bytes.Equal(first.Depth.Pix, second.Depth.Pix) {
		t.Error("S3-backed cache is not deterministic")
	}
}
