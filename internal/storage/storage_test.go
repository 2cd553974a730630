package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStorage) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func TestCatalogArchiveLatest(t *testing.T) {
	ctx := context.Background()
	archive := NewCatalogArchive(newMemoryStorage(), "/snapshots/")
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	archive.now = func() time.Time { return clock }

	first, err := archive.Put(ctx, []byte("name\nRome\n"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if first != "snapshots/20240301T100000Z.csv" {
		t.Errorf("key = %q", first)
	}

	clock = clock.Add(24 * time.Hour)
	second, err := archive.Put(ctx, []byte("name\nOslo\n"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	body, key, err := archive.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer body.Close()
	if key != second {
		t.Errorf("latest = %q, want %q", key, second)
	}
	data, _ := io.ReadAll(body)
	if !strings.Contains(string(data), "Oslo") {
		t.Errorf("latest body = %q", data)
	}
}

func TestCatalogArchiveLatestEmpty(t *testing.T) {
	archive := NewCatalogArchive(newMemoryStorage(), "")
	if _, err := archive.Latest(context.Background()); err == nil {
		t.Fatal("expected error for empty archive")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://minio.local:9000/", "minio.local:9000"},
		{"http://host/path/x", "host"},
		{"localhost:9000", "localhost:9000"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeEndpoint(tt.in); got != tt.want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{"abc.r2.cloudflarestorage.com", StorageTypeR2},
		{"s3.eu-west-1.amazonaws.com", StorageTypeS3},
		{"", StorageTypeS3},
		{"localhost:9000", StorageTypeS3Compatible},
	}
	for _, tt := range tests {
		if got := detectStorageType(tt.endpoint); got != tt.want {
			t.Errorf("detectStorageType(%q) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}
