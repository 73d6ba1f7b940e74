// Package storage keeps uploaded import workbooks until they are processed.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrFileNotFound is returned for unknown file IDs.
	ErrFileNotFound = errors.New("storage: file not found")
	// ErrNotPending is returned by Claim when another caller already took the upload.
	ErrNotPending = errors.New("storage: file is not pending")
)

// File states.
const (
	StatusPending   = "pending"
	StatusImporting = "importing"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// FileInfo contains metadata about a stored upload
type FileInfo struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type"`
	Path        string     `json:"path"` // Internal storage path
	Status      string     `json:"status"`
	BatchID     *uuid.UUID `json:"batch_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// SaveOption adjusts the metadata of a new upload.
type SaveOption func(*FileInfo)

// Importing stores the upload already claimed by the caller. Pending never
// returns it, so the scheduled import cannot post it a second time.
func Importing() SaveOption {
	return func(f *FileInfo) { f.Status = StatusImporting }
}

// Inbox stores uploads and tracks which of them have been imported.
type Inbox interface {
	// Save stores an upload, pending unless an option says otherwise.
	Save(ctx context.Context, filename, contentType string, r io.Reader, opts ...SaveOption) (*FileInfo, error)

	// Open returns a reader for the upload.
	Open(ctx context.Context, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Pending lists uploads not yet processed, oldest first.
	Pending(ctx context.Context) ([]*FileInfo, error)

	// Claim moves a pending upload to importing. It fails with ErrNotPending
	// if the upload is in any other state.
	Claim(ctx context.Context, fileID uuid.UUID) (*FileInfo, error)

	// MarkProcessed records the outcome of importing an upload.
	MarkProcessed(ctx context.Context, fileID uuid.UUID, batchID *uuid.UUID, status string) error
}

// Config holds storage configuration
type Config struct {
	// Path is the inbox directory.
	Path string
}

// New creates the inbox described by cfg.
func New(cfg Config) (Inbox, error) {
	path := cfg.Path
	if path == "" {
		path = "./uploads"
	}
	return NewLocalInbox(path)
}
