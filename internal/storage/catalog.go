package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"
)

const csvContentType = "text/csv"

// CatalogArchive keeps timestamped CSV snapshots of the destination catalog.
type CatalogArchive struct {
	store  ObjectStorage
	prefix string
	now    func() time.Time
}

// NewCatalogArchive creates an archive rooted at prefix (default "catalog").
func NewCatalogArchive(store ObjectStorage, prefix string) *CatalogArchive {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "catalog"
	}
	return &CatalogArchive{store: store, prefix: prefix, now: time.Now}
}

// Put stores a snapshot and returns its key.
func (a *CatalogArchive) Put(ctx context.Context, data []byte) (string, error) {
	key := path.Join(a.prefix, a.now().UTC().Format("20060102T150405Z")+".csv")
	if err := a.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), csvContentType); err != nil {
		return "", err
	}
	return key, nil
}

// Latest returns the key of the most recent snapshot.
func (a *CatalogArchive) Latest(ctx context.Context) (string, error) {
	objects, err := a.store.List(ctx, a.prefix+"/")
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, ".csv") {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("no catalog snapshot under %s/", a.prefix)
	}
	// Keys embed a sortable UTC timestamp.
	sort.Strings(keys)
	return keys[len(keys)-1], nil
}

// Open downloads a snapshot. An empty key opens the latest one.
func (a *CatalogArchive) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if key == "" {
		latest, err := a.Latest(ctx)
		if err != nil {
			return nil, "", err
		}
		key = latest
	}
	body, err := a.store.Download(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return body, key, nil
}
