package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/command"
	"github.com/example/marketplace/internal/domain/commission"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/query"
)

// Back office handlers. The router guards them with RequireRole(admin).

// transitionInput is the optional body of an order transition.
type transitionInput struct {
	TrackingNumber string `json:"tracking_number"`
	Reason         string `json:"reason"`
}

// transitionOrder dispatches an order action to its workflow.
func (h *Handlers) transitionOrder(w http.ResponseWriter, r *http.Request, orderID, action string) {
	var in transitionInput
	if r.ContentLength > 0 {
		if err := decodeBody(r, &in); err != nil {
			respondError(w, r, err)
			return
		}
	}

	ctx := r.Context()
	res := reply(w, r)
	switch action {
	case "confirm":
		res(h.cmdHandler.ConfirmOrder(ctx, orderID))
	case "process":
		res(h.cmdHandler.ProcessOrder(ctx, orderID))
	case "ship":
		res(h.cmdHandler.ShipOrder(ctx, command.ShipOrder{OrderID: orderID, TrackingNumber: in.TrackingNumber}))
	case "deliver":
		res(h.cmdHandler.DeliverOrder(ctx, orderID))
	case "complete":
		res(h.cmdHandler.CompleteOrder(ctx, orderID))
	case "cancel":
		res(h.cmdHandler.CancelOrder(ctx, command.CancelOrder{OrderID: orderID, Reason: in.Reason}))
	default:
		respondError(w, r, errors.Wrapf(command.ErrUnknownAction, "order action %q", action))
	}
}

// Orders

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reply(w, r)(h.queryHandler.ListOrders(query.OrderFilter{
		CustomerID: q.Get("customer_id"),
		VendorID:   q.Get("vendor_id"),
		Status:     q.Get("status"),
	}))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.queryHandler.GetOrder(chi.URLParam(r, "orderID")))
}

func (h *Handlers) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionOrder(w, r, chi.URLParam(r, "orderID"), chi.URLParam(r, "action"))
}

func (h *Handlers) SetShipping(w http.ResponseWriter, r *http.Request) {
	var cmd command.SetShipping
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	cmd.OrderID = chi.URLParam(r, "orderID")
	reply(w, r)(h.cmdHandler.SetShipping(r.Context(), cmd))
}

func (h *Handlers) MassConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderIDs []string `json:"order_ids"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	reply(w, r)(h.cmdHandler.MassConfirm(r.Context(), body.OrderIDs))
}

func (h *Handlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.queryHandler.GetInvoice(chi.URLParam(r, "invoiceID")))
}

// Vendors

func (h *Handlers) ChangeVendorState(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			respondError(w, r, err)
			return
		}
	}
	reply(w, r)(h.cmdHandler.ChangeVendorState(r.Context(), command.ChangeVendorState{
		VendorID: chi.URLParam(r, "vendorID"),
		Action:   chi.URLParam(r, "action"),
		Reason:   body.Reason,
	}))
}

func (h *Handlers) SetVendorCommissionPolicy(w http.ResponseWriter, r *http.Request) {
	var policy commission.Policy
	if err := decodeBody(r, &policy); err != nil {
		respondError(w, r, err)
		return
	}
	reply(w, r)(h.cmdHandler.SetVendorCommissionPolicy(r.Context(), command.SetVendorCommissionPolicy{
		VendorID: chi.URLParam(r, "vendorID"),
		Policy:   policy,
	}))
}

func (h *Handlers) DeleteVendor(w http.ResponseWriter, r *http.Request) {
	if err := h.cmdHandler.DeleteVendor(r.Context(), chi.URLParam(r, "vendorID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) VendorDashboard(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.queryHandler.VendorDashboard(chi.URLParam(r, "vendorID")))
}

func (h *Handlers) MarketplaceStats(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.queryHandler.MarketplaceStats())
}

// Products

func (h *Handlers) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reply(w, r)(h.queryHandler.ListProducts(query.ProductFilter{
		VendorID:   q.Get("vendor_id"),
		CategoryID: q.Get("category_id"),
		State:      q.Get("state"),
	}))
}

func (h *Handlers) ChangeProductState(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			respondError(w, r, err)
			return
		}
	}
	reply(w, r)(h.cmdHandler.ChangeProductState(r.Context(), command.ChangeProductState{
		ProductID: chi.URLParam(r, "productID"),
		Action:    chi.URLParam(r, "action"),
		Reason:    body.Reason,
	}))
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.cmdHandler.DeleteProduct(r.Context(), chi.URLParam(r, "productID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Commissions

func (h *Handlers) ListCommissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reply(w, r)(h.queryHandler.ListCommissions(query.CommissionFilter{
		VendorID: q.Get("vendor_id"),
		State:    q.Get("state"),
	}))
}

func (h *Handlers) EligibleCommissions(w http.ResponseWriter, r *http.Request) {
	vendorID := r.URL.Query().Get("vendor_id")
	if vendorID == "" {
		respondError(w, r, errors.Wrap(domainerr.ErrValidation, "vendor_id is required"))
		return
	}
	reply(w, r)(h.queryHandler.EligibleCommissions(vendorID))
}

func (h *Handlers) GetCommission(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.queryHandler.GetCommission(chi.URLParam(r, "commissionID")))
}

func (h *Handlers) ConfirmCommission(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.cmdHandler.ConfirmCommission(r.Context(), chi.URLParam(r, "commissionID")))
}

// Payouts

func (h *Handlers) ListPayouts(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.queryHandler.ListPayouts(r.URL.Query().Get("vendor_id")))
}

func (h *Handlers) GetPayout(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.queryHandler.GetPayout(chi.URLParam(r, "payoutID")))
}

func (h *Handlers) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreatePayout
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.cmdHandler.CreatePayout(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) AddCommissionToPayout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CommissionID string `json:"commission_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	reply(w, r)(h.cmdHandler.AddCommissionToPayout(r.Context(), command.PayoutMembership{
		PayoutID:     chi.URLParam(r, "payoutID"),
		CommissionID: body.CommissionID,
	}))
}

func (h *Handlers) RemoveCommissionFromPayout(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.cmdHandler.RemoveCommissionFromPayout(r.Context(), command.PayoutMembership{
		PayoutID:     chi.URLParam(r, "payoutID"),
		CommissionID: chi.URLParam(r, "commissionID"),
	}))
}

func (h *Handlers) ConfirmPayout(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.cmdHandler.ConfirmPayout(r.Context(), chi.URLParam(r, "payoutID")))
}

func (h *Handlers) MarkPayoutPaid(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.cmdHandler.MarkPayoutPaid(r.Context(), chi.URLParam(r, "payoutID")))
}

// Reviews

func (h *Handlers) ListPendingReviews(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.queryHandler.ListPendingReviews())
}

func (h *Handlers) ModerateReview(w http.ResponseWriter, r *http.Request) {
	var cmd command.ModerateReview
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	cmd.ReviewID = chi.URLParam(r, "reviewID")
	reply(w, r)(h.cmdHandler.ModerateReview(r.Context(), cmd))
}
