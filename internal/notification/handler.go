package notification

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/domain/payout"
	"github.com/example/marketplace/internal/domain/seller"
	"github.com/example/marketplace/internal/email"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/readmodel"
)

var logger = log.WithField("component", "notifier")

// Handler processes events for sending vendor-facing notifications
type Handler struct {
	sender    email.Sender
	readStore store.ReadStoreInterface
}

func NewHandler(sender email.Sender, readStore store.ReadStoreInterface) *Handler {
	return &Handler{
		sender:    sender,
		readStore: readStore,
	}
}

// HandleEvent processes an event from Kafka or a stream record. Events it
// does not mail about are ignored.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return errors.Wrap(err, "unmarshal event")
	}
	return h.Handle(ctx, event)
}

func (h *Handler) Handle(_ context.Context, event store.Event) error {
	switch event.EventType {
	case seller.EventVendorApproved:
		return h.handleVendorApproved(event)
	case payout.EventPayoutPaid:
		return h.handlePayoutPaid(event)
	}
	return nil
}

func (h *Handler) handleVendorApproved(event store.Event) error {
	var e seller.VendorStateChanged
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return errors.Wrapf(err, "unmarshal %s", event.EventType)
	}

	data := email.VendorMail{Name: e.Name, Code: e.VendorID}
	if v, err := lookup[readmodel.VendorReadModel](h.readStore, readmodel.Vendors, e.VendorID); err == nil && v != nil {
		data.Code = v.Code
	}
	if e.Email == "" {
		logger.WithField("vendor_id", e.VendorID).Warn("approved vendor has no email")
		return nil
	}

	if err := email.Deliver(h.sender, e.Email, email.TemplateVendorApproved, data); err != nil {
		return errors.WithMessagef(err, "vendor %s", e.VendorID)
	}
	logger.WithField("vendor_id", e.VendorID).Info("vendor approval mail sent")
	return nil
}

func (h *Handler) handlePayoutPaid(event store.Event) error {
	var e payout.PayoutPaid
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return errors.Wrapf(err, "unmarshal %s", event.EventType)
	}

	v, err := lookup[readmodel.VendorReadModel](h.readStore, readmodel.Vendors, e.VendorID)
	if err != nil {
		return err
	}
	if v == nil || v.Email == "" {
		logger.WithFields(log.Fields{"vendor_id": e.VendorID, "payout": e.Reference}).Warn("payout vendor has no email")
		return nil
	}

	data := email.PayoutMail{
		VendorName:  v.Name,
		Reference:   e.Reference,
		Amount:      e.Amount,
		Commissions: len(e.CommissionIDs),
		PaidAt:      e.PaidAt,
	}
	if err := email.Deliver(h.sender, v.Email, email.TemplatePayoutPaid, data); err != nil {
		return errors.WithMessagef(err, "payout %s", e.Reference)
	}
	logger.WithFields(log.Fields{"vendor_id": e.VendorID, "payout": e.Reference}).Info("payout mail sent")
	return nil
}
