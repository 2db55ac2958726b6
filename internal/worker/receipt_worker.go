package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"retailpos/internal/infra"
	"retailpos/internal/model"
	"retailpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type ReceiptJobPayload struct {
	OwnerID string `json:"owner_id"`
	OrderID string `json:"order_id"`
}

// EmailEnqueuer is satisfied by *Dispatcher.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

// ReceiptWorker renders the receipt PDF for a committed order and queues an
// email when the customer has an address on file.
type ReceiptWorker struct {
	orders       repository.OrderRepository
	emails       EmailEnqueuer
	businessName string
	storagePath  string
	render       func(order *model.Order, businessName, storagePath string) (string, error)
}

func NewReceiptWorker(orders repository.OrderRepository, emails EmailEnqueuer, businessName, storagePath string) *ReceiptWorker {
	return &ReceiptWorker{
		orders:       orders,
		emails:       emails,
		businessName: businessName,
		storagePath:  storagePath,
		render:       infra.GenerateReceiptPDF,
	}
}

func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("receipt_worker: invalid payload: %w", err))
	}
	ownerID, err := uuid.Parse(payload.OwnerID)
	if err != nil {
		return Permanent(fmt.Errorf("receipt_worker: owner_id: %w", err))
	}
	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		return Permanent(fmt.Errorf("receipt_worker: order_id: %w", err))
	}

	order, err := w.orders.FindByID(ctx, ownerID, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Permanent(fmt.Errorf("receipt_worker: order %s not found", orderID))
	}
	if err != nil {
		return err
	}

	pdfPath, err := w.render(order, w.businessName, w.storagePath)
	if err != nil {
		return err
	}
	log.Info().Str("pdf", pdfPath).Str("order_code", order.OrderCode).Msg("receipt_worker: receipt generated")

	if w.emails == nil || order.Customer == nil || order.Customer.Email == nil || *order.Customer.Email == "" {
		return nil
	}
	job := EmailJobPayload{
		ToEmail: *order.Customer.Email,
		Subject: fmt.Sprintf("%s receipt %s", w.businessName, order.OrderCode),
		Body:    receiptBody(order),
		PDFPath: pdfPath,
	}
	if err := w.emails.EnqueueEmail(ctx, job); err != nil {
		// the PDF exists; losing the email is not worth re-rendering
		log.Warn().Err(err).Str("order_code", order.OrderCode).Msg("receipt_worker: failed to enqueue email")
	}
	return nil
}

func receiptBody(order *model.Order) string {
	body := fmt.Sprintf("Thank you for your purchase.\nOrder: %s\nTotal: %s\nPaid: %s\n",
		order.OrderCode, order.TotalAmount.String(), order.PaidAmount.String())
	if order.Debt != nil {
		body += fmt.Sprintf("Balance due: %s\n", order.Debt.RemainingAmount.String())
	}
	return body
}
