package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"retailpos/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	PDFPath string `json:"pdf_path"`
}

// ReceiptSender is satisfied by *infra.Mailer.
type ReceiptSender interface {
	SendReceipt(to, subject, body, pdfPath string) error
}

// EmailWorker sends receipt emails with the PDF attached.
type EmailWorker struct {
	mailer ReceiptSender
}

func NewEmailWorker(mailer ReceiptSender) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("email_worker: invalid payload: %w", err))
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}

	err := w.mailer.SendReceipt(payload.ToEmail, payload.Subject, payload.Body, payload.PDFPath)
	if errors.Is(err, infra.ErrMailerDisabled) {
		return Permanent(err)
	}
	if err != nil {
		return err
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: receipt sent")
	return nil
}
