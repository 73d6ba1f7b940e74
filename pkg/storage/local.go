package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalInbox implements Inbox using the local filesystem
type LocalInbox struct {
	basePath string
	// mu serializes metadata rewrites.
	mu  sync.Mutex
	now func() time.Time
}

var _ Inbox = (*LocalInbox)(nil)

// NewLocalInbox creates a new local filesystem inbox
func NewLocalInbox(basePath string) (*LocalInbox, error) {
	if err := os.MkdirAll(filepath.Join(basePath, ".meta"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalInbox{basePath: basePath, now: time.Now}, nil
}

// Save stores an upload and returns its metadata
func (s *LocalInbox) Save(ctx context.Context, filename, contentType string, r io.Reader, opts ...SaveOption) (*FileInfo, error) {
	fileID := uuid.New()

	// Sanitize filename and add UUID prefix for uniqueness
	storedFilename := fmt.Sprintf("%s_%s", fileID.String()[:8], sanitizeFilename(filepath.Base(filename)))
	filePath := filepath.Join(s.basePath, storedFilename)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          fileID,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        storedFilename,
		Status:      StatusPending,
		CreatedAt:   s.now(),
	}
	for _, opt := range opts {
		opt(info)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveMetadata(info); err != nil {
		os.Remove(filePath)
		return nil, err
	}
	return info, nil
}

// Open returns the upload and its metadata
func (s *LocalInbox) Open(ctx context.Context, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.info(fileID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.basePath, info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// Pending returns every upload still waiting for import
func (s *LocalInbox) Pending(ctx context.Context) ([]*FileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, ".meta"))
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := s.info(id)
		if err != nil || info.Status != StatusPending {
			continue
		}
		files = append(files, info)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

// Claim takes a pending upload for import
func (s *LocalInbox) Claim(ctx context.Context, fileID uuid.UUID) (*FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.info(fileID)
	if err != nil {
		return nil, err
	}
	if info.Status != StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, fileID, info.Status)
	}
	info.Status = StatusImporting
	if err := s.saveMetadata(info); err != nil {
		return nil, err
	}
	return info, nil
}

// MarkProcessed stamps the upload with its import outcome
func (s *LocalInbox) MarkProcessed(ctx context.Context, fileID uuid.UUID, batchID *uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.info(fileID)
	if err != nil {
		return err
	}
	now := s.now()
	info.Status = status
	info.BatchID = batchID
	info.ProcessedAt = &now
	return s.saveMetadata(info)
}

func (s *LocalInbox) info(fileID uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(s.metaPath(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalInbox) metaPath(fileID uuid.UUID) string {
	return filepath.Join(s.basePath, ".meta", fileID.String()+".json")
}

// saveMetadata saves file metadata to a JSON file
func (s *LocalInbox) saveMetadata(info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(info.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
