package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 records calls instead of talking to a server.
type fakeS3 struct {
	bucketExists bool
	headErr      error
	putErr       error

	created      []string
	puts         map[string][]byte
	contentTypes map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{puts: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if !f.bucketExists {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = append(f.created, aws.ToString(in.Bucket))
	f.bucketExists = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.puts[key] = body
	f.contentTypes[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		if err := os.WriteFile(paths[i], []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func TestNewUploader_RequiresBucket(t *testing.T) {
	if _, err := NewUploader(newFakeS3(), Config{}, nil); err == nil {
		t.Error("Expected error without bucket")
	}
}

func TestEnsureBucket(t *testing.T) {
	t.Run("creates missing bucket", func(t *testing.T) {
		fake := newFakeS3()
		u, _ := NewUploader(fake, Config{Bucket: "tiles-bucket"}, nil)
		if err := u.EnsureBucket(context.Background()); err != nil {
			t.Fatalf("EnsureBucket returned error: %v", err)
		}
		if len(fake.created) != 1 || fake.created[0] != "tiles-bucket" {
			t.Errorf("Expected tiles-bucket to be created, got %v", fake.created)
		}
	})

	t.Run("keeps existing bucket", func(t *testing.T) {
		fake := newFakeS3()
		fake.bucketExists = true
		u, _ := NewUploader(fake, Config{Bucket: "tiles-bucket"}, nil)
		if err := u.EnsureBucket(context.Background()); err != nil {
			t.Fatalf("EnsureBucket returned error: %v", err)
		}
		if len(fake.created) != 0 {
			t.Errorf("Expected no bucket creation, got %v", fake.created)
		}
	})

	t.Run("propagates other errors", func(t *testing.T) {
		fake := newFakeS3()
		fake.headErr = errors.New("access denied")
		u, _ := NewUploader(fake, Config{Bucket: "tiles-bucket"}, nil)
		if err := u.EnsureBucket(context.Background()); err == nil {
			t.Fatal("Expected error")
		}
		if len(fake.created) != 0 {
			t.Errorf("Expected no bucket creation, got %v", fake.created)
		}
	})
}

func TestUploadFiles(t *testing.T) {
	fake := newFakeS3()
	u, _ := NewUploader(fake, Config{Bucket: "tiles-bucket", Prefix: "job1"}, nil)
	files := writeFiles(t, "tile_0_0.png", "tile_0_1.png")

	keys, err := u.UploadFiles(context.Background(), files)
	if err != nil {
		t.Fatalf("UploadFiles returned error: %v", err)
	}

	expected := []string{"job1/tile_0_0.png", "job1/tile_0_1.png"}
	if len(keys) != len(expected) {
		t.Fatalf("Expected keys %v, got %v", expected, keys)
	}
	for i, k := range expected {
		if keys[i] != k {
			t.Errorf("Key %d = %s, expected %s", i, keys[i], k)
		}
		if string(fake.puts[k]) != filepath.Base(files[i]) {
			t.Errorf("Unexpected body for %s: %q", k, fake.puts[k])
		}
		if fake.contentTypes[k] != "image/png" {
			t.Errorf("Expected image/png content type for %s, got %q", k, fake.contentTypes[k])
		}
	}
}

func TestUploadFiles_Errors(t *testing.T) {
	t.Run("put failure", func(t *testing.T) {
		fake := newFakeS3()
		fake.putErr = errors.New("boom")
		u, _ := NewUploader(fake, Config{Bucket: "b"}, nil)
		keys, err := u.UploadFiles(context.Background(), writeFiles(t, "a.png"))
		if err == nil || len(keys) != 0 {
			t.Fatalf("Expected failure with no keys, got %v %v", keys, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		u, _ := NewUploader(newFakeS3(), Config{Bucket: "b"}, nil)
		if _, err := u.UploadFiles(context.Background(), []string{filepath.Join(t.TempDir(), "gone.png")}); err == nil {
			t.Fatal("Expected error for missing file")
		}
	})
}

func TestKey(t *testing.T) {
	u, _ := NewUploader(newFakeS3(), Config{Bucket: "b"}, nil)
	if got := u.Key("/tmp/out/tile_1_2.png"); got != "tile_1_2.png" {
		t.Errorf("Expected key without prefix, got %s", got)
	}
}
