package command

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/marketplace/internal/domain/aggregate"
	"github.com/example/marketplace/internal/domain/commission"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/domain/payout"
	"github.com/example/marketplace/internal/domain/seller"
	"github.com/example/marketplace/internal/infrastructure/sequence"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/readmodel"
)

var ErrNothingToPayout = errors.Wrap(domainerr.ErrValidation, "no eligible commissions for payout")

func (h *Handler) ConfirmCommission(ctx context.Context, commissionID string) (*commission.Commission, error) {
	c, err := h.commissionSvc.Confirm(ctx, commissionID)
	if err != nil {
		return nil, err
	}
	h.metrics.Transitions.WithLabelValues(commission.AggregateType, "confirm").Inc()
	return c, nil
}

// commissionsOfVendor lists the vendor's commission read models matching keep,
// sorted by reference.
func (h *Handler) commissionsOfVendor(vendorID string, keep func(c *readmodel.CommissionReadModel) bool) ([]*readmodel.CommissionReadModel, error) {
	items, err := h.readStore.GetAll(readmodel.Commissions)
	if err != nil {
		return nil, errors.Wrap(err, "list commissions")
	}
	var out []*readmodel.CommissionReadModel
	for _, item := range items {
		c, ok := item.(*readmodel.CommissionReadModel)
		if ok && c.VendorID == vendorID && keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out, nil
}

// CreatePayout groups commissions of one vendor into a draft payout. Without
// explicit ids every eligible commission of the vendor is taken. Eligibility
// is re-checked on each commission aggregate when it is attached.
func (h *Handler) CreatePayout(ctx context.Context, cmd CreatePayout) (p *payout.Payout, err error) {
	ctx, finish := h.startSpan(ctx, "payout.create", attribute.String("vendor.id", cmd.VendorID))
	defer func() { finish(err) }()

	if _, err := h.vendorSvc.Load(ctx, cmd.VendorID); err != nil {
		return nil, err
	}

	ids := cmd.CommissionIDs
	if len(ids) == 0 {
		eligible, err := h.commissionsOfVendor(cmd.VendorID, func(c *readmodel.CommissionReadModel) bool {
			return c.State == string(commission.StateConfirmed) && c.PayoutID == ""
		})
		if err != nil {
			return nil, err
		}
		for _, c := range eligible {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return nil, errors.Wrapf(ErrNothingToPayout, "vendor %s", cmd.VendorID)
	}

	ref, err := h.sequence.Next(ctx, sequence.Payout)
	if err != nil {
		return nil, errors.Wrap(err, "payout reference")
	}

	at := h.now()
	b := store.NewBatch()
	p, err = payout.Create(b, payout.CreateParams{
		Reference:     ref,
		VendorID:      cmd.VendorID,
		PaymentMethod: cmd.PaymentMethod,
		PayoutDate:    cmd.PayoutDate,
		Notes:         cmd.Notes,
	}, at)
	if err != nil {
		return nil, err
	}

	snaps := []aggregate.Snapshotter{{Aggregate: p, Type: payout.AggregateType}}
	for _, id := range ids {
		c, err := h.commissionSvc.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := p.AddCommission(b, c, at); err != nil {
			return nil, err
		}
		snaps = append(snaps, aggregate.Snapshotter{Aggregate: c, Type: commission.AggregateType})
	}

	if err := h.commit(ctx, b, payout.AggregateType, "create", snaps...); err != nil {
		return nil, err
	}
	logger.WithContext(ctx).WithFields(log.Fields{
		"payout":      p.Reference,
		"vendor":      p.VendorID,
		"commissions": len(p.Members),
		"amount":      p.Amount.String(),
	}).Info("payout created")
	return p, nil
}

// editPayout loads a payout and one of its (candidate) commissions and commits
// the events fn records on both.
func (h *Handler) editPayout(ctx context.Context, cmd PayoutMembership, action string, fn func(p *payout.Payout, c *commission.Commission, b *store.Batch) error) (*payout.Payout, error) {
	p, err := h.payoutSvc.Load(ctx, cmd.PayoutID)
	if err != nil {
		return nil, err
	}
	c, err := h.commissionSvc.Load(ctx, cmd.CommissionID)
	if err != nil {
		return nil, err
	}
	b := store.NewBatch()
	if err := fn(p, c, b); err != nil {
		return nil, err
	}
	err = h.commit(ctx, b, payout.AggregateType, action,
		aggregate.Snapshotter{Aggregate: p, Type: payout.AggregateType},
		aggregate.Snapshotter{Aggregate: c, Type: commission.AggregateType},
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (h *Handler) AddCommissionToPayout(ctx context.Context, cmd PayoutMembership) (*payout.Payout, error) {
	return h.editPayout(ctx, cmd, "add_commission", func(p *payout.Payout, c *commission.Commission, b *store.Batch) error {
		return p.AddCommission(b, c, h.now())
	})
}

func (h *Handler) RemoveCommissionFromPayout(ctx context.Context, cmd PayoutMembership) (*payout.Payout, error) {
	return h.editPayout(ctx, cmd, "remove_commission", func(p *payout.Payout, c *commission.Commission, b *store.Batch) error {
		return p.RemoveCommission(b, c, h.now())
	})
}

func (h *Handler) ConfirmPayout(ctx context.Context, payoutID string) (*payout.Payout, error) {
	p, err := h.payoutSvc.Load(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	b := store.NewBatch()
	if err := p.Confirm(b, h.now()); err != nil {
		return nil, err
	}
	if err := h.commit(ctx, b, payout.AggregateType, "confirm", aggregate.Snapshotter{Aggregate: p, Type: payout.AggregateType}); err != nil {
		return nil, err
	}
	return p, nil
}

// MarkPayoutPaid settles the payout and every member commission in one batch.
func (h *Handler) MarkPayoutPaid(ctx context.Context, payoutID string) (p *payout.Payout, err error) {
	ctx, finish := h.startSpan(ctx, "payout.mark_paid", attribute.String("payout.id", payoutID))
	defer func() { finish(err) }()

	p, err = h.payoutSvc.Load(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	ids := p.CommissionIDs()
	members := make([]*commission.Commission, 0, len(ids))
	snaps := []aggregate.Snapshotter{{Aggregate: p, Type: payout.AggregateType}}
	for _, id := range ids {
		c, err := h.commissionSvc.Load(ctx, id)
		if err != nil {
			return nil, errors.WithMessagef(err, "payout %s", p.Reference)
		}
		members = append(members, c)
		snaps = append(snaps, aggregate.Snapshotter{Aggregate: c, Type: commission.AggregateType})
	}

	b := store.NewBatch()
	if err := p.MarkPaid(b, members, h.now()); err != nil {
		return nil, err
	}
	if err := h.commit(ctx, b, payout.AggregateType, "mark_paid", snaps...); err != nil {
		return nil, err
	}
	logger.WithContext(ctx).WithFields(log.Fields{
		"payout":      p.Reference,
		"commissions": len(members),
		"amount":      p.Amount.String(),
	}).Info("payout paid")
	return p, nil
}

// SetVendorCommissionPolicy stores the vendor's new policy and recomputes
// every open commission of the vendor, keeping payout member amounts in
// step, all in one batch.
func (h *Handler) SetVendorCommissionPolicy(ctx context.Context, cmd SetVendorCommissionPolicy) (v *seller.Vendor, err error) {
	ctx, finish := h.startSpan(ctx, "vendor.set_commission_policy", attribute.String("vendor.id", cmd.VendorID))
	defer func() { finish(err) }()

	v, err = h.vendorSvc.Load(ctx, cmd.VendorID)
	if err != nil {
		return nil, err
	}
	at := h.now()
	b := store.NewBatch()
	if err := v.SetCommissionPolicy(b, cmd.Policy, at); err != nil {
		return nil, err
	}
	snaps := []aggregate.Snapshotter{{Aggregate: v, Type: seller.AggregateType}}

	unpaid, err := h.commissionsOfVendor(cmd.VendorID, func(c *readmodel.CommissionReadModel) bool {
		return c.State == string(commission.StateDraft) || c.State == string(commission.StateConfirmed)
	})
	if err != nil {
		return nil, err
	}

	payouts := make(map[string]*payout.Payout)
	for _, rm := range unpaid {
		c, err := h.commissionSvc.Load(ctx, rm.ID)
		if err != nil {
			return nil, err
		}
		if c.State == commission.StatePaid || c.State == commission.StateCancelled {
			continue
		}
		if err := c.Recompute(b, cmd.Policy, at); err != nil {
			return nil, err
		}
		snaps = append(snaps, aggregate.Snapshotter{Aggregate: c, Type: commission.AggregateType})

		if c.PayoutID == "" {
			continue
		}
		p, ok := payouts[c.PayoutID]
		if !ok {
			if p, err = h.payoutSvc.Load(ctx, c.PayoutID); err != nil {
				return nil, err
			}
			payouts[c.PayoutID] = p
			snaps = append(snaps, aggregate.Snapshotter{Aggregate: p, Type: payout.AggregateType})
		}
		if err := p.UpdateMemberAmount(b, c.ID, c.VendorAmount, at); err != nil {
			return nil, err
		}
	}

	if err := h.commit(ctx, b, seller.AggregateType, "set_commission_policy", snaps...); err != nil {
		return nil, err
	}
	logger.WithContext(ctx).WithFields(log.Fields{
		"vendor":      v.Code,
		"recomputed":  len(unpaid),
		"policy_type": cmd.Policy.Type,
	}).Info("commission policy changed")
	return v, nil
}
