package notification

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/email"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/readmodel"
)

var ErrRecipientNotFound = errors.Wrap(domainerr.ErrNotFound, "notification recipient")

// Notifier dispatches an order notification. Callers treat it as best-effort.
type Notifier interface {
	Send(ctx context.Context, templateKey string, o *order.Order) error
}

// EmailNotifier mails order notifications to the order's customer.
type EmailNotifier struct {
	sender    email.Sender
	readStore store.ReadStoreInterface
}

func NewEmailNotifier(sender email.Sender, readStore store.ReadStoreInterface) *EmailNotifier {
	return &EmailNotifier{sender: sender, readStore: readStore}
}

func (n *EmailNotifier) Send(ctx context.Context, templateKey string, o *order.Order) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "notify %s for order %s", templateKey, o.Reference)
	}
	user, err := lookup[readmodel.UserReadModel](n.readStore, readmodel.Users, o.CustomerID)
	if err != nil {
		return err
	}
	if user == nil || user.Email == "" {
		return errors.Wrapf(ErrRecipientNotFound, "customer %s of order %s", o.CustomerID, o.Reference)
	}

	data := email.OrderMail{
		Reference:      o.Reference,
		CustomerName:   user.Name,
		AmountUntaxed:  o.AmountUntaxed,
		AmountTax:      o.AmountTax,
		ShippingCost:   o.ShippingCost,
		AmountTotal:    o.AmountTotal,
		TrackingNumber: o.TrackingNumber,
	}
	for _, l := range o.Lines {
		data.Lines = append(data.Lines, email.OrderLine{
			Name:      n.productName(l),
			Quantity:  l.Quantity,
			PriceUnit: l.PriceUnit,
			Subtotal:  l.Subtotal,
		})
	}

	if err := email.Deliver(n.sender, user.Email, templateKey, data); err != nil {
		return errors.WithMessagef(err, "notify %s for order %s", templateKey, o.Reference)
	}
	logger.WithFields(log.Fields{
		"template": templateKey,
		"order":    o.Reference,
	}).Info("order notification sent")
	return nil
}

func (n *EmailNotifier) productName(l order.Line) string {
	if l.ProductName != "" {
		return l.ProductName
	}
	if p, _ := lookup[readmodel.ProductReadModel](n.readStore, readmodel.Products, l.ProductID); p != nil {
		return p.Name
	}
	return l.ProductID
}

// lookup fetches a typed read model, returning nil when it does not exist.
func lookup[T any](rs store.ReadStoreInterface, collection, id string) (*T, error) {
	data, ok, err := rs.Get(collection, id)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s %s", collection, id)
	}
	if !ok {
		return nil, nil
	}
	m, ok := data.(*T)
	if !ok {
		return nil, errors.Errorf("unexpected %s model %T", collection, data)
	}
	return m, nil
}
