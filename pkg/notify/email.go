// Package notify sends import batch summaries to the cooperative treasurer.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/koperasi-ledger/pkg/money"
)

// Summary is what the treasurer needs to know about a finished batch.
type Summary struct {
	BatchID    uuid.UUID
	Source     string
	Status     string
	Processed  int
	Created    int
	Updated    int
	Errors     int
	Inbound    decimal.Decimal
	Outbound   decimal.Decimal
	FinishedAt time.Time
}

// BatchNotifier is told about every finished batch.
type BatchNotifier interface {
	NotifyBatch(ctx context.Context, s Summary) error
}

// emailSender is the part of the resend client used here.
type emailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailNotifier mails batch summaries through Resend.
type EmailNotifier struct {
	emails emailSender
	from   string
	to     []string
	logger *slog.Logger
}

// NewEmailNotifier creates a notifier. Without an API key or recipients it
// logs and skips every send.
func NewEmailNotifier(apiKey, from string, to []string, logger *slog.Logger) *EmailNotifier {
	n := &EmailNotifier{from: from, to: to, logger: logger}
	if apiKey != "" {
		n.emails = resend.NewClient(apiKey).Emails
	}
	if n.from == "" {
		n.from = "Koperasi <noreply@koperasi.local>"
	}
	return n
}

// NotifyBatch sends the summary e-mail.
func (n *EmailNotifier) NotifyBatch(ctx context.Context, s Summary) error {
	if n.emails == nil || len(n.to) == 0 {
		n.logger.Debug("resend client not configured, skipping batch summary", "batch_id", s.BatchID)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := n.emails.Send(&resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: Subject(s),
		Html:    Body(s),
	})
	if err != nil {
		return fmt.Errorf("failed to send batch summary: %w", err)
	}
	return nil
}

// Subject is the summary e-mail subject line.
func Subject(s Summary) string {
	return fmt.Sprintf("[%s] Import transaksi %s: %d baris, %d error", s.Status, s.FinishedAt.Format("02/01/2006"), s.Processed, s.Errors)
}

// Body renders the summary e-mail.
func Body(s Summary) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>Ringkasan Import Transaksi</h2>
  <p>File: %s<br>Batch: %s<br>Status: %s</p>
  <table>
    <tr><td>Diproses</td><td>%d</td></tr>
    <tr><td>Berhasil</td><td>%d</td></tr>
    <tr><td>Kemungkinan duplikat</td><td>%d</td></tr>
    <tr><td>Error</td><td>%d</td></tr>
    <tr><td>Total masuk</td><td>%s</td></tr>
    <tr><td>Total keluar</td><td>%s</td></tr>
  </table>
</body>
</html>
`,
		html.EscapeString(s.Source), s.BatchID, html.EscapeString(s.Status),
		s.Processed, s.Created, s.Updated, s.Errors,
		money.Format(s.Inbound), money.Format(s.Outbound))
}
