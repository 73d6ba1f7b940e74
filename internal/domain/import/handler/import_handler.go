package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/report"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/service"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/koperasi-ledger/pkg/storage"
)

const (
	defaultMaxUpload    = 10 << 20
	defaultHistoryLimit = 50
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Importer is the part of the import engine the handler drives.
type Importer interface {
	ImportBytes(ctx context.Context, data []byte, opts service.RunOptions) (*report.ImportResult, error)
	History(ctx context.Context, limit int) ([]ledger.HistoryEntry, error)
}

// ImportHandler serves the transaction upload API
type ImportHandler struct {
	importer Importer
	inbox    storage.Inbox
	maxBytes int64
	logger   *slog.Logger
}

// NewImportHandler creates a new import handler. inbox may be nil, in which
// case uploads are imported without being kept.
func NewImportHandler(importer Importer, inbox storage.Inbox, maxBytes int64, logger *slog.Logger) *ImportHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	return &ImportHandler{
		importer: importer,
		inbox:    inbox,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Register mounts the import routes.
func (h *ImportHandler) Register(r chi.Router) {
	r.Post("/api/import-transactions", h.ImportTransactions)
	r.Get("/api/import-history", h.ImportHistory)
}

// ImportTransactions accepts a multipart "file" field holding an .xlsx
// workbook and imports it synchronously. With ?errors=csv or ?errors=xlsx the
// rejected rows are returned as a correction file instead of JSON.
func (h *ImportHandler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File terlalu besar")
			return
		}
		writeError(w, http.StatusBadRequest, "Request must be multipart/form-data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		writeError(w, http.StatusBadRequest, "File must be an Excel (.xlsx) file")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read upload", slog.Any("error", err))
		writeError(w, http.StatusBadRequest, "Error reading file")
		return
	}

	ctx := r.Context()
	stored := h.store(ctx, header.Filename, data)

	result, err := h.importer.ImportBytes(ctx, data, service.RunOptions{Source: header.Filename})
	if err != nil {
		h.mark(ctx, stored, nil, storage.StatusFailed)
		if errors.Is(err, importerr.ErrParse) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("failed to import transactions", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Error importing transactions")
		return
	}
	batchID := result.BatchID
	h.mark(ctx, stored, &batchID, storage.StatusProcessed)

	switch r.URL.Query().Get("errors") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="import-errors.csv"`)
		if err := report.WriteErrorsCSV(w, result); err != nil {
			h.logger.Error("failed to write error report", slog.Any("error", err))
		}
	case "xlsx":
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="koreksi-import.xlsx"`)
		if err := report.WriteCorrectionWorkbook(w, result); err != nil {
			h.logger.Error("failed to write correction workbook", slog.Any("error", err))
		}
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// ImportHistory lists recent import batches. ?limit overrides the default 50.
func (h *ImportHandler) ImportHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.importer.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list import history", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Error fetching import history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// store keeps the upload in the inbox, already claimed so the scheduled
// import skips it. Failure to store does not block the import.
func (h *ImportHandler) store(ctx context.Context, name string, data []byte) *storage.FileInfo {
	if h.inbox == nil {
		return nil
	}
	info, err := h.inbox.Save(ctx, name, xlsxContentType, bytes.NewReader(data), storage.Importing())
	if err != nil {
		h.logger.Warn("failed to store upload", slog.String("name", name), slog.Any("error", err))
		return nil
	}
	return info
}

func (h *ImportHandler) mark(ctx context.Context, info *storage.FileInfo, batchID *uuid.UUID, status string) {
	if info == nil {
		return
	}
	if err := h.inbox.MarkProcessed(ctx, info.ID, batchID, status); err != nil {
		h.logger.Warn("failed to mark upload", slog.String("file_id", info.ID.String()), slog.Any("error", err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
