package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	defaultExportPageSize = 500
	exportContentType     = "application/x-ndjson"
)

// ObjectWriter stores a blob under a key.
type ObjectWriter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// ExportResult describes an uploaded directory snapshot.
type ExportResult struct {
	Key   string
	Count int
}

// ExportService writes a snapshot of the user directory to object storage.
// Each line is a UserResponse; password hashes are never exported.
type ExportService struct {
	repo     UserRepository
	objects  ObjectWriter
	pageSize int
	now      func() time.Time
}

func NewExportService(repo UserRepository, objects ObjectWriter) *ExportService {
	return &ExportService{
		repo:     repo,
		objects:  objects,
		pageSize: defaultExportPageSize,
		now:      time.Now,
	}
}

func (s *ExportService) Export(ctx context.Context) (ExportResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	count := 0
	for offset := 0; ; offset += s.pageSize {
		users, err := s.repo.List(ctx, offset, s.pageSize)
		if err != nil {
			return ExportResult{}, storageFailure("export users", err)
		}
		for _, user := range users {
			if err := enc.Encode(user.Response()); err != nil {
				return ExportResult{}, fmt.Errorf("encode user %s: %w", user.ID, err)
			}
		}
		count += len(users)
		if len(users) < s.pageSize {
			break
		}
	}

	key := fmt.Sprintf("exports/users-%s.jsonl", s.now().UTC().Format("20060102T150405Z"))
	if err := s.objects.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), exportContentType); err != nil {
		return ExportResult{}, fmt.Errorf("upload %s: %w", key, err)
	}
	return ExportResult{Key: key, Count: count}, nil
}
