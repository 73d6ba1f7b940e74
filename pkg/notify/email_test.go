package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*resend.SendEmailRequest
	err  error
}

func (f *fakeSender) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &resend.SendEmailResponse{Id: "msg_1"}, nil
}

func summary() Summary {
	return Summary{
		BatchID:    uuid.New(),
		Source:     "<transaksi>.xlsx",
		Status:     "Berhasil",
		Processed:  3,
		Created:    2,
		Errors:     1,
		Inbound:    decimal.NewFromInt(1500000),
		Outbound:   decimal.NewFromInt(250000),
		FinishedAt: time.Date(2024, 5, 6, 15, 0, 0, 0, time.UTC),
	}
}

func TestEmailNotifier_Send(t *testing.T) {
	sender := &fakeSender{}
	n := NewEmailNotifier("", "Koperasi <a@b.c>", []string{"bendahara@koperasi.id"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.emails = sender

	require.NoError(t, n.NotifyBatch(context.Background(), summary()))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"bendahara@koperasi.id"}, msg.To)
	assert.Equal(t, "[Berhasil] Import transaksi 06/05/2024: 3 baris, 1 error", msg.Subject)
	assert.Contains(t, msg.Html, "Rp 1.500.000")
	assert.Contains(t, msg.Html, "&lt;transaksi&gt;.xlsx")
}

func TestEmailNotifier_Unconfigured(t *testing.T) {
	n := NewEmailNotifier("", "", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, n.NotifyBatch(context.Background(), summary()))
}

func TestEmailNotifier_Error(t *testing.T) {
	n := NewEmailNotifier("", "", []string{"x@y.z"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.emails = &fakeSender{err: errors.New("rate limited")}

	err := n.NotifyBatch(context.Background(), summary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
