// Package command runs the write-side workflows. Every workflow loads the
// aggregates it touches, records all their events into one batch and commits
// it atomically, so a transition either happens completely or not at all.
package command

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/category"
	"github.com/example/marketplace/internal/domain/commission"
	"github.com/example/marketplace/internal/domain/inventory"
	"github.com/example/marketplace/internal/domain/invoice"
	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/domain/payout"
	"github.com/example/marketplace/internal/domain/product"
	"github.com/example/marketplace/internal/domain/review"
	"github.com/example/marketplace/internal/domain/seller"
	"github.com/example/marketplace/internal/infrastructure/sequence"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/metrics"
	"github.com/example/marketplace/internal/notification"
	"github.com/example/marketplace/internal/telemetry"
)

var logger = log.WithField("component", "command")

// DefaultNotifyTimeout bounds the notifications of one transition.
const DefaultNotifyTimeout = 30 * time.Second

type Handler struct {
	eventStore store.EventStoreInterface
	readStore  store.ReadStoreInterface
	sequence   sequence.Generator
	notifier   notification.Notifier
	metrics    *metrics.Workflow
	tracer     trace.Tracer
	now        func() time.Time

	notifyTimeout time.Duration
	pending       sync.WaitGroup

	orderSvc      *order.Service
	inventorySvc  *inventory.Service
	commissionSvc *commission.Service
	payoutSvc     *payout.Service
	vendorSvc     *seller.Service
	productSvc    *product.Service
	categorySvc   *category.Service
	reviewSvc     *review.Service
	invoiceSvc    *invoice.Service
}

func NewHandler(
	eventStore store.EventStoreInterface,
	readStore store.ReadStoreInterface,
	seq sequence.Generator,
	notifier notification.Notifier,
	workflowMetrics *metrics.Workflow,
) *Handler {
	if workflowMetrics == nil {
		workflowMetrics = metrics.NewNopWorkflow()
	}
	return &Handler{
		eventStore:    eventStore,
		readStore:     readStore,
		sequence:      seq,
		notifier:      notifier,
		metrics:       workflowMetrics,
		tracer:        telemetry.Tracer("command"),
		now:           func() time.Time { return time.Now().UTC() },
		notifyTimeout: DefaultNotifyTimeout,
		orderSvc:      order.NewService(eventStore),
		inventorySvc:  inventory.NewService(eventStore),
		commissionSvc: commission.NewService(eventStore),
		payoutSvc:     payout.NewService(eventStore),
		vendorSvc:     seller.NewService(eventStore),
		productSvc:    product.NewService(eventStore),
		categorySvc:   category.NewService(eventStore),
		reviewSvc:     review.NewService(eventStore),
		invoiceSvc:    invoice.NewService(eventStore),
	}
}

// startSpan opens a workflow span; finish records err on it and ends it.
func (h *Handler) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := h.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// commit writes the batch and snapshots the touched aggregates.
func (h *Handler) commit(ctx context.Context, b *store.Batch, aggregateType, action string, snaps ...aggregate.Snapshotter) error {
	if err := h.eventStore.Commit(ctx, b); err != nil {
		return err
	}
	aggregate.SnapshotAll(ctx, h.eventStore, snaps...)
	h.metrics.Transitions.WithLabelValues(aggregateType, action).Inc()
	return nil
}

// SetNotifyTimeout replaces DefaultNotifyTimeout; non-positive values are ignored.
func (h *Handler) SetNotifyTimeout(d time.Duration) {
	if d > 0 {
		h.notifyTimeout = d
	}
}

// notify sends every template of a committed transition in the background,
// on a copy of the order and under notifyTimeout. Failures are logged and
// counted; the transition already happened.
func (h *Handler) notify(ctx context.Context, t order.Transition, o *order.Order) {
	templates := t.Templates()
	if h.notifier == nil || len(templates) == 0 {
		return
	}
	snapshot := *o
	snapshot.Lines = append([]order.Line(nil), o.Lines...)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.notifyTimeout)

	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		defer cancel()
		for _, key := range templates {
			if err := h.notifier.Send(ctx, key, &snapshot); err != nil {
				h.metrics.NotificationFailures.WithLabelValues(key).Inc()
				logger.WithContext(ctx).WithError(err).WithFields(log.Fields{
					"template": key,
					"order":    snapshot.Reference,
				}).Warn("notification failed")
			}
		}
	}()
}

// Wait blocks until every notification started so far has finished.
func (h *Handler) Wait() {
	h.pending.Wait()
}
