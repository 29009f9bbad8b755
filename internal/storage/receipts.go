package storage

import (
	"bytes"
	"context"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// ReceiptStore persists receipt attachments. The upload happens before the
// request row is created, so a storage failure never leaves a half-created
// request behind.
type ReceiptStore interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
	Delete(ctx context.Context, location string) error
}

type receiptStore struct {
	fs      afs.Service
	baseURL string
}

// NewReceiptStore returns a store rooted at baseURL. Any scheme the afs
// service understands works: a plain directory path, file://, or mem://
// in tests.
func NewReceiptStore(baseURL string) ReceiptStore {
	return &receiptStore{fs: afs.New(), baseURL: baseURL}
}

// Save writes the receipt under a date-bucketed, collision-free name and
// returns its location for the request's image_path column.
func (s *receiptStore) Save(ctx context.Context, filename string, data []byte) (string, error) {
	dest := url.Join(s.baseURL, time.Now().Format("20060102"), uuid.NewString()+path.Ext(filename))
	if err := s.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return dest, nil
}

func (s *receiptStore) Delete(ctx context.Context, location string) error {
	if location == "" {
		return nil
	}
	return s.fs.Delete(ctx, location)
}
