package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestLocalRoundTrip(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	ctx := context.Background()

	if err := l.Put(ctx, "documents/u1/1-a.pdf", []byte("%PDF-1.4"), "application/pdf"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := l.Get(ctx, "documents/u1/1-a.pdf")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "%PDF-1.4" {
		t.Errorf("Get = %q", got)
	}

	if _, err := l.Get(ctx, "documents/u1/missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := l.PresignGet(ctx, "documents/u1/1-a.pdf", time.Minute); !errors.Is(err, ErrPresignUnsupported) {
		t.Errorf("Expected ErrPresignUnsupported, got %v", err)
	}
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	l, _ := NewLocal(t.TempDir())
	for _, key := range []string{"", "/etc/passwd", "../outside", "a/../../outside", `a\b`} {
		if err := l.Put(context.Background(), key, []byte("x"), ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestDocumentKey(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	got := DocumentKey("u1", "my income (2024).pdf", now)
	want := "documents/u1/1700000000000-my_income__2024_.pdf"
	if got != want {
		t.Errorf("DocumentKey = %q, want %q", got, want)
	}
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	s := NewS3WithClient(fake, nil, "bucket")
	ctx := context.Background()

	if err := s.Put(ctx, "documents/u1/1-a_VERIFIED.pdf", []byte("sealed"), "application/pdf"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(ctx, "documents/u1/1-a_VERIFIED.pdf")
	if err != nil || string(got) != "sealed" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := s.PresignGet(ctx, "documents/u1/1-a_VERIFIED.pdf", time.Hour); !errors.Is(err, ErrPresignUnsupported) {
		t.Errorf("Expected ErrPresignUnsupported without a presigner, got %v", err)
	}
	if err := s.Put(ctx, "../escape", nil, ""); !strings.Contains(err.Error(), "invalid key") {
		t.Errorf("Expected invalid key, got %v", err)
	}
}
