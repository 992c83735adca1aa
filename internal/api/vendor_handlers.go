package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/marketplace/internal/command"
	"github.com/example/marketplace/internal/domain/seller"
	"github.com/example/marketplace/internal/query"
)

// Vendor portal. Every route acts on the vendor owned by the caller.

func (h *Handlers) RegisterVendor(w http.ResponseWriter, r *http.Request) {
	var profile seller.Profile
	if err := decodeBody(r, &profile); err != nil {
		respondError(w, r, err)
		return
	}
	userID := currentUserID(r)
	if _, err := h.queryHandler.GetVendorByUser(userID); err == nil {
		respondJSONError(w, "user already owns a vendor", http.StatusConflict)
		return
	}

	v, err := h.cmdHandler.RegisterVendor(r.Context(), command.RegisterVendor{UserID: userID, Profile: profile})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

func (h *Handlers) myVendor(w http.ResponseWriter, r *http.Request) (*query.VendorReadModel, bool) {
	v, err := h.queryHandler.GetVendorByUser(currentUserID(r))
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return v, true
}

func (h *Handlers) GetMyVendor(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.myVendor(w, r); ok {
		respondJSON(w, http.StatusOK, v)
	}
}

func (h *Handlers) UpdateMyVendorProfile(w http.ResponseWriter, r *http.Request) {
	v, ok := h.myVendor(w, r)
	if !ok {
		return
	}
	var profile seller.Profile
	if err := decodeBody(r, &profile); err != nil {
		respondError(w, r, err)
		return
	}
	reply(w, r)(h.cmdHandler.UpdateVendorProfile(r.Context(), command.UpdateVendorProfile{VendorID: v.ID, Profile: profile}))
}

func (h *Handlers) SubmitMyVendor(w http.ResponseWriter, r *http.Request) {
	v, ok := h.myVendor(w, r)
	if !ok {
		return
	}
	reply(w, r)(h.cmdHandler.ChangeVendorState(r.Context(), command.ChangeVendorState{VendorID: v.ID, Action: command.VendorSubmit}))
}

func (h *Handlers) MyDashboard(w http.ResponseWriter, r *http.Request) {
	v, ok := h.myVendor(w, r)
	if !ok {
		return
	}
	reply(w, r)(h.queryHandler.VendorDashboard(v.ID))
}

// Products

func (h *Handlers) ListMyProducts(w http.ResponseWriter, r *http.Request) {
	v, ok := h.myVendor(w, r)
	if !ok {
		return
	}
	reply(w, r)(h.queryHandler.ListProducts(query.ProductFilter{
		VendorID:   v.ID,
		CategoryID: r.URL.Query().Get("category_id"),
		State:      r.URL.Query().Get("state"),
	}))
}

func (h *Handlers) CreateMyProduct(w http.ResponseWriter, r *http.Request) {
	v, ok := h.myVendor(w, r)
	if !ok {
		return
	}
	var cmd command.CreateProduct
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	cmd.VendorID = v.ID

	p, err := h.cmdHandler.CreateProduct(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// myProduct resolves the product in the path and checks the caller's vendor
// owns it.
func (h *Handlers) myProduct(w http.ResponseWriter, r *http.Request) (*query.ProductReadModel, bool) {
	v, ok := h.myVendor(w, r)
	if !ok {
		return nil, false
	}
	p, err := h.queryHandler.GetProduct(chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	if p.VendorID != v.ID {
		respondJSONError(w, "product not found", http.StatusNotFound)
		return nil, false
	}
	return p, true
}

func (h *Handlers) UpdateMyProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.myProduct(w, r)
	if !ok {
		return
	}
	var cmd command.UpdateProduct
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	cmd.ProductID = p.ID
	reply(w, r)(h.cmdHandler.UpdateProduct(r.Context(), cmd))
}

// ChangeMyProductState accepts only the vendor-side actions. Publishing and
// rejection belong to the back office.
func (h *Handlers) ChangeMyProductState(w http.ResponseWriter, r *http.Request) {
	p, ok := h.myProduct(w, r)
	if !ok {
		return
	}
	action := chi.URLParam(r, "action")
	if action != command.ProductSubmit && action != command.ProductUnpublish {
		respondJSONError(w, "forbidden", http.StatusForbidden)
		return
	}
	reply(w, r)(h.cmdHandler.ChangeProductState(r.Context(), command.ChangeProductState{ProductID: p.ID, Action: action}))
}

func (h *Handlers) AssignMyProductCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := h.myProduct(w, r)
	if !ok {
		return
	}
	var body struct {
		CategoryID string `json:"category_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	reply(w, r)(h.cmdHandler.AssignProductCategory(r.Context(), p.ID, body.CategoryID))
}

func (h *Handlers) AdjustMyStock(w http.ResponseWriter, r *http.Request) {
	p, ok := h.myProduct(w, r)
	if !ok {
		return
	}
	var cmd command.AdjustStock
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	cmd.ProductID = p.ID
	reply(w, r)(h.cmdHandler.AdjustStock(r.Context(), cmd))
}

// Orders

func (h *Handlers) ListMyVendorOrders(w http.ResponseWriter, r *http.Request) {
	v, ok := h.myVendor(w, r)
	if !ok {
		return
	}
	reply(w, r)(h.queryHandler.ListOrders(query.OrderFilter{VendorID: v.ID, Status: r.URL.Query().Get("status")}))
}

// TransitionMyVendorOrder runs the fulfilment actions a vendor may take.
func (h *Handlers) TransitionMyVendorOrder(w http.ResponseWriter, r *http.Request) {
	v, ok := h.myVendor(w, r)
	if !ok {
		return
	}
	o, err := h.queryHandler.GetOrder(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if o.VendorID != v.ID {
		respondJSONError(w, "order not found", http.StatusNotFound)
		return
	}
	switch action := chi.URLParam(r, "action"); action {
	case "process", "ship", "deliver":
		h.transitionOrder(w, r, o.ID, action)
	default:
		respondJSONError(w, "forbidden", http.StatusForbidden)
	}
}

// Settlement

func (h *Handlers) ListMyCommissions(w http.ResponseWriter, r *http.Request) {
	v, ok := h.myVendor(w, r)
	if !ok {
		return
	}
	reply(w, r)(h.queryHandler.ListCommissions(query.CommissionFilter{VendorID: v.ID, State: r.URL.Query().Get("state")}))
}

func (h *Handlers) ListMyPayouts(w http.ResponseWriter, r *http.Request) {
	v, ok := h.myVendor(w, r)
	if !ok {
		return
	}
	reply(w, r)(h.queryHandler.ListPayouts(v.ID))
}
