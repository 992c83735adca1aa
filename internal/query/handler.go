// Package query answers reads from the projected read models.
package query

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/domain/commission"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/domain/product"
	"github.com/example/marketplace/internal/domain/review"
	"github.com/example/marketplace/internal/domain/seller"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/readmodel"
)

var logger = log.WithField("component", "query")

type Handler struct {
	readStore store.ReadStoreInterface
}

func NewHandler(readStore store.ReadStoreInterface) *Handler {
	return &Handler{readStore: readStore}
}

func get[T any](rs store.ReadStoreInterface, collection, id string) (*T, error) {
	data, ok, err := rs.Get(collection, id)
	if err != nil {
		logger.WithError(err).WithField("collection", collection).Error("read failed")
		return nil, errors.Wrapf(err, "get %s %s", collection, id)
	}
	m, isT := data.(*T)
	if !ok || !isT {
		return nil, errors.Wrapf(domainerr.ErrNotFound, "%s %s", collection, id)
	}
	return m, nil
}

// list returns the models of a collection that keep accepts.
func list[T any](rs store.ReadStoreInterface, collection string, keep func(m *T) bool) ([]*T, error) {
	items, err := rs.GetAll(collection)
	if err != nil {
		logger.WithError(err).WithField("collection", collection).Error("list failed")
		return nil, errors.Wrapf(err, "list %s", collection)
	}
	out := make([]*T, 0, len(items))
	for _, item := range items {
		if m, ok := item.(*T); ok && (keep == nil || keep(m)) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Products

func (h *Handler) GetProduct(id string) (*ProductReadModel, error) {
	return get[ProductReadModel](h.readStore, readmodel.Products, id)
}

// ListProducts returns matching products ordered by code.
func (h *Handler) ListProducts(f ProductFilter) ([]*ProductReadModel, error) {
	products, err := list(h.readStore, readmodel.Products, func(p *ProductReadModel) bool {
		return (f.VendorID == "" || p.VendorID == f.VendorID) &&
			(f.CategoryID == "" || p.CategoryID == f.CategoryID) &&
			(f.State == "" || p.State == f.State)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Code < products[j].Code })
	return products, nil
}

// ListPublishedProducts is the storefront catalog.
func (h *Handler) ListPublishedProducts(categoryID string) ([]*ProductReadModel, error) {
	return h.ListProducts(ProductFilter{CategoryID: categoryID, State: string(product.StatePublished)})
}

func (h *Handler) GetInventory(productID string) (*InventoryReadModel, error) {
	return get[InventoryReadModel](h.readStore, readmodel.Inventory, productID)
}

// Vendors

func (h *Handler) GetVendor(id string) (*VendorReadModel, error) {
	return get[VendorReadModel](h.readStore, readmodel.Vendors, id)
}

// GetVendorByUser finds the vendor owned by a user account.
func (h *Handler) GetVendorByUser(userID string) (*VendorReadModel, error) {
	vendors, err := list(h.readStore, readmodel.Vendors, func(v *VendorReadModel) bool { return v.UserID == userID })
	if err != nil {
		return nil, err
	}
	if len(vendors) == 0 {
		return nil, errors.Wrapf(domainerr.ErrNotFound, "vendor of user %s", userID)
	}
	return vendors[0], nil
}

func (h *Handler) ListVendors(state string) ([]*VendorReadModel, error) {
	vendors, err := list(h.readStore, readmodel.Vendors, func(v *VendorReadModel) bool {
		return state == "" || v.State == state
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i].Code < vendors[j].Code })
	return vendors, nil
}

// Categories

func (h *Handler) GetCategory(id string) (*CategoryReadModel, error) {
	return get[CategoryReadModel](h.readStore, readmodel.Categories, id)
}

// ListCategories orders by sequence, then complete name.
func (h *Handler) ListCategories(activeOnly bool) ([]*CategoryReadModel, error) {
	categories, err := list(h.readStore, readmodel.Categories, func(c *CategoryReadModel) bool {
		return !activeOnly || c.Active
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Sequence != categories[j].Sequence {
			return categories[i].Sequence < categories[j].Sequence
		}
		return categories[i].CompleteName < categories[j].CompleteName
	})
	return categories, nil
}

// Orders

func (h *Handler) GetOrder(id string) (*OrderReadModel, error) {
	return get[OrderReadModel](h.readStore, readmodel.Orders, id)
}

// ListOrders returns matching orders, newest first.
func (h *Handler) ListOrders(f OrderFilter) ([]*OrderReadModel, error) {
	orders, err := list(h.readStore, readmodel.Orders, func(o *OrderReadModel) bool {
		return (f.CustomerID == "" || o.CustomerID == f.CustomerID) &&
			(f.VendorID == "" || o.VendorID == f.VendorID) &&
			(f.Status == "" || o.Status == f.Status)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].Reference > orders[j].Reference
	})
	return orders, nil
}

func (h *Handler) GetInvoice(id string) (*InvoiceReadModel, error) {
	return get[InvoiceReadModel](h.readStore, readmodel.Invoices, id)
}

// Settlement

func (h *Handler) GetCommission(id string) (*CommissionReadModel, error) {
	return get[CommissionReadModel](h.readStore, readmodel.Commissions, id)
}

func (h *Handler) ListCommissions(f CommissionFilter) ([]*CommissionReadModel, error) {
	commissions, err := list(h.readStore, readmodel.Commissions, func(c *CommissionReadModel) bool {
		return (f.VendorID == "" || c.VendorID == f.VendorID) &&
			(f.State == "" || c.State == f.State)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(commissions, func(i, j int) bool { return commissions[i].Reference < commissions[j].Reference })
	return commissions, nil
}

// EligibleCommissions lists the vendor's confirmed commissions that are not in
// a payout yet.
func (h *Handler) EligibleCommissions(vendorID string) ([]*CommissionReadModel, error) {
	confirmed, err := h.ListCommissions(CommissionFilter{VendorID: vendorID, State: string(commission.StateConfirmed)})
	if err != nil {
		return nil, err
	}
	eligible := confirmed[:0]
	for _, c := range confirmed {
		if c.PayoutID == "" {
			eligible = append(eligible, c)
		}
	}
	return eligible, nil
}

func (h *Handler) GetPayout(id string) (*PayoutReadModel, error) {
	return get[PayoutReadModel](h.readStore, readmodel.Payouts, id)
}

func (h *Handler) ListPayouts(vendorID string) ([]*PayoutReadModel, error) {
	payouts, err := list(h.readStore, readmodel.Payouts, func(p *PayoutReadModel) bool {
		return vendorID == "" || p.VendorID == vendorID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(payouts, func(i, j int) bool { return payouts[i].Reference < payouts[j].Reference })
	return payouts, nil
}

// Reviews

// ListProductReviews returns published reviews of a product, newest first.
func (h *Handler) ListProductReviews(productID string) ([]*ReviewReadModel, error) {
	return h.listReviews(func(r *ReviewReadModel) bool {
		return r.ProductID == productID && r.State == string(review.StatePublished)
	})
}

// ListPendingReviews is the moderation queue.
func (h *Handler) ListPendingReviews() ([]*ReviewReadModel, error) {
	return h.listReviews(func(r *ReviewReadModel) bool { return r.State == string(review.StateDraft) })
}

func (h *Handler) listReviews(keep func(r *ReviewReadModel) bool) ([]*ReviewReadModel, error) {
	reviews, err := list(h.readStore, readmodel.Reviews, keep)
	if err != nil {
		return nil, err
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.After(reviews[j].CreatedAt) })
	return reviews, nil
}

// Dashboards

// orderCounted reports whether an order counts as an active sale.
func orderCounted(status string) bool {
	switch order.Status(status) {
	case order.StatusConfirmed, order.StatusProcessing, order.StatusShipped,
		order.StatusDelivered, order.StatusDone:
		return true
	}
	return false
}

// VendorDashboard computes the vendor's figures: sales over done orders,
// commission over paid commissions, pending payout over unpaid vendor amounts.
func (h *Handler) VendorDashboard(vendorID string) (*VendorDashboard, error) {
	v, err := h.GetVendor(vendorID)
	if err != nil {
		return nil, err
	}
	d := &VendorDashboard{
		VendorID:    vendorID,
		RatingAvg:   v.RatingAvg,
		ReviewCount: v.ReviewCount,
	}

	products, err := h.ListProducts(ProductFilter{VendorID: vendorID})
	if err != nil {
		return nil, err
	}
	d.ProductCount = len(products)

	orders, err := h.ListOrders(OrderFilter{VendorID: vendorID})
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if orderCounted(o.Status) {
			d.OrderCount++
		}
		if o.Status == string(order.StatusDone) {
			d.TotalSales = d.TotalSales.Add(o.AmountTotal)
		}
	}

	commissions, err := h.ListCommissions(CommissionFilter{VendorID: vendorID})
	if err != nil {
		return nil, err
	}
	for _, c := range commissions {
		switch c.State {
		case string(commission.StatePaid):
			d.TotalCommission = d.TotalCommission.Add(c.CommissionAmount)
			d.PaidAmount = d.PaidAmount.Add(c.VendorAmount)
		case string(commission.StateCancelled):
		default:
			d.PendingPayout = d.PendingPayout.Add(c.VendorAmount)
		}
	}
	return d, nil
}

func (h *Handler) MarketplaceStats() (*MarketplaceStats, error) {
	vendors, err := h.ListVendors(string(seller.StateApproved))
	if err != nil {
		return nil, err
	}
	products, err := h.ListPublishedProducts("")
	if err != nil {
		return nil, err
	}
	orders, err := h.ListOrders(OrderFilter{})
	if err != nil {
		return nil, err
	}
	s := &MarketplaceStats{
		ActiveVendors:     len(vendors),
		PublishedProducts: len(products),
		TotalRevenue:      decimal.Zero,
	}
	for _, o := range orders {
		switch order.Status(o.Status) {
		case order.StatusCancelled:
			continue
		case order.StatusConfirmed:
			s.PendingOrders++
		}
		s.TotalRevenue = s.TotalRevenue.Add(o.AmountTotal)
	}
	return s, nil
}
