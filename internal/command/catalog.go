package command

import (
	"context"

	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/domain/category"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/domain/inventory"
	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/domain/product"
	"github.com/example/marketplace/internal/domain/review"
	"github.com/example/marketplace/internal/domain/seller"
	"github.com/example/marketplace/internal/infrastructure/sequence"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/readmodel"
)

var ErrUnknownAction = errors.Wrap(domainerr.ErrValidation, "unknown action")

// Vendors

func (h *Handler) RegisterVendor(ctx context.Context, cmd RegisterVendor) (*seller.Vendor, error) {
	code, err := h.sequence.Next(ctx, sequence.Vendor)
	if err != nil {
		return nil, errors.Wrap(err, "vendor code")
	}
	return h.vendorSvc.Register(ctx, code, cmd.UserID, cmd.Profile)
}

func (h *Handler) UpdateVendorProfile(ctx context.Context, cmd UpdateVendorProfile) (*seller.Vendor, error) {
	return h.vendorSvc.Edit(ctx, cmd.VendorID, func(v *seller.Vendor, b *store.Batch) error {
		return v.UpdateProfile(b, cmd.Profile, h.now())
	})
}

func (h *Handler) ChangeVendorState(ctx context.Context, cmd ChangeVendorState) (*seller.Vendor, error) {
	v, err := h.vendorSvc.Edit(ctx, cmd.VendorID, func(v *seller.Vendor, b *store.Batch) error {
		at := h.now()
		switch cmd.Action {
		case VendorSubmit:
			return v.Submit(b, at)
		case VendorApprove:
			return v.Approve(b, at)
		case VendorReject:
			return v.Reject(b, cmd.Reason, at)
		case VendorSuspend:
			return v.Suspend(b, cmd.Reason, at)
		case VendorReactivate:
			return v.Reactivate(b, at)
		}
		return errors.Wrapf(ErrUnknownAction, "vendor action %q", cmd.Action)
	})
	if err != nil {
		return nil, err
	}
	h.metrics.Transitions.WithLabelValues(seller.AggregateType, cmd.Action).Inc()
	return v, nil
}

// countOrders counts order read models matching match.
func (h *Handler) countOrders(match func(o *readmodel.OrderReadModel) bool) (int, error) {
	items, err := h.readStore.GetAll(readmodel.Orders)
	if err != nil {
		return 0, errors.Wrap(err, "list orders")
	}
	n := 0
	for _, item := range items {
		if o, ok := item.(*readmodel.OrderReadModel); ok && match(o) {
			n++
		}
	}
	return n, nil
}

func (h *Handler) DeleteVendor(ctx context.Context, vendorID string) error {
	n, err := h.countOrders(func(o *readmodel.OrderReadModel) bool { return o.VendorID == vendorID })
	if err != nil {
		return err
	}
	_, err = h.vendorSvc.Edit(ctx, vendorID, func(v *seller.Vendor, b *store.Batch) error {
		return v.Delete(b, n, h.now())
	})
	return err
}

// Products

// CreateProduct creates a draft product and, when InitialStock is set, its
// opening stock in the same batch.
func (h *Handler) CreateProduct(ctx context.Context, cmd CreateProduct) (*product.Product, error) {
	if _, err := h.vendorSvc.Load(ctx, cmd.VendorID); err != nil {
		return nil, err
	}
	if cmd.CategoryID != "" {
		if _, err := h.categorySvc.Load(ctx, cmd.CategoryID); err != nil {
			return nil, err
		}
	}
	if cmd.InitialStock < 0 {
		return nil, inventory.ErrInvalidQuantity
	}
	code, err := h.sequence.Next(ctx, sequence.Product)
	if err != nil {
		return nil, errors.Wrap(err, "product code")
	}

	at := h.now()
	b := store.NewBatch()
	p, err := product.Create(b, product.CreateParams{
		Code:       code,
		VendorID:   cmd.VendorID,
		CategoryID: cmd.CategoryID,
		Details:    cmd.Details,
	}, at)
	if err != nil {
		return nil, err
	}
	if cmd.InitialStock > 0 {
		inv, err := h.inventorySvc.Load(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if err := inv.Add(b, cmd.InitialStock, at); err != nil {
			return nil, err
		}
	}
	if err := h.commit(ctx, b, product.AggregateType, "create"); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *Handler) UpdateProduct(ctx context.Context, cmd UpdateProduct) (*product.Product, error) {
	return h.productSvc.Edit(ctx, cmd.ProductID, func(p *product.Product, b *store.Batch) error {
		return p.Update(b, cmd.Details, h.now())
	})
}

func (h *Handler) ChangeProductState(ctx context.Context, cmd ChangeProductState) (*product.Product, error) {
	p, err := h.productSvc.Edit(ctx, cmd.ProductID, func(p *product.Product, b *store.Batch) error {
		at := h.now()
		switch cmd.Action {
		case ProductSubmit:
			return p.Submit(b, at)
		case ProductPublish:
			return p.Publish(b, at)
		case ProductReject:
			return p.Reject(b, cmd.Reason, at)
		case ProductUnpublish:
			return p.Unpublish(b, at)
		}
		return errors.Wrapf(ErrUnknownAction, "product action %q", cmd.Action)
	})
	if err != nil {
		return nil, err
	}
	h.metrics.Transitions.WithLabelValues(product.AggregateType, cmd.Action).Inc()
	return p, nil
}

func (h *Handler) AssignProductCategory(ctx context.Context, productID, categoryID string) (*product.Product, error) {
	if categoryID != "" {
		if _, err := h.categorySvc.Load(ctx, categoryID); err != nil {
			return nil, err
		}
	}
	return h.productSvc.Edit(ctx, productID, func(p *product.Product, b *store.Batch) error {
		return p.AssignCategory(b, categoryID, h.now())
	})
}

func (h *Handler) DeleteProduct(ctx context.Context, productID string) error {
	n, err := h.countOrders(func(o *readmodel.OrderReadModel) bool { return o.HasProduct(productID) })
	if err != nil {
		return err
	}
	_, err = h.productSvc.Edit(ctx, productID, func(p *product.Product, b *store.Batch) error {
		return p.Delete(b, n, h.now())
	})
	return err
}

// AdjustStock adds a positive delta or removes a negative one.
func (h *Handler) AdjustStock(ctx context.Context, cmd AdjustStock) (*inventory.Inventory, error) {
	if _, err := h.productSvc.Load(ctx, cmd.ProductID); err != nil {
		return nil, err
	}
	switch {
	case cmd.Delta > 0:
		return h.inventorySvc.AddStock(ctx, cmd.ProductID, cmd.Delta)
	case cmd.Delta < 0:
		return h.inventorySvc.RemoveStock(ctx, cmd.ProductID, -cmd.Delta, cmd.Reason)
	}
	return nil, inventory.ErrInvalidQuantity
}

// Categories

func (h *Handler) SaveCategory(ctx context.Context, cmd SaveCategory) (*category.Category, error) {
	if cmd.CategoryID == "" {
		return h.categorySvc.Create(ctx, cmd.Fields)
	}
	return h.categorySvc.Update(ctx, cmd.CategoryID, cmd.Fields)
}

func (h *Handler) DeleteCategory(ctx context.Context, categoryID string) error {
	return h.categorySvc.Delete(ctx, categoryID)
}

// Reviews

// SubmitReview records a draft review. It counts as a verified purchase when
// the referenced order is done and belongs to the reviewer.
func (h *Handler) SubmitReview(ctx context.Context, cmd SubmitReview) (*review.Review, error) {
	params := review.SubmitParams{
		ProductID:  cmd.ProductID,
		VendorID:   cmd.VendorID,
		CustomerID: cmd.CustomerID,
		OrderID:    cmd.OrderID,
		Rating:     cmd.Rating,
		Title:      cmd.Title,
		Comment:    cmd.Comment,
	}
	if cmd.OrderID != "" {
		o, err := h.orderSvc.Load(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		params.VerifiedPurchase = o.Status == order.StatusDone && o.CustomerID == cmd.CustomerID
	}
	if cmd.ProductID != "" {
		if _, err := h.productSvc.Load(ctx, cmd.ProductID); err != nil {
			return nil, err
		}
	}
	return h.reviewSvc.Submit(ctx, params)
}

func (h *Handler) ModerateReview(ctx context.Context, cmd ModerateReview) (*review.Review, error) {
	return h.reviewSvc.Moderate(ctx, cmd.ReviewID, cmd.Publish, cmd.Reason)
}
