// Package api exposes the command and query handlers over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/api/middleware"
	"github.com/example/marketplace/internal/command"
	"github.com/example/marketplace/internal/domain/domainerr"
	"github.com/example/marketplace/internal/query"
)

var logger = log.WithField("component", "api")

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(err error) int {
	switch domainerr.Kind(err) {
	case domainerr.ErrNotFound:
		return http.StatusNotFound
	case domainerr.ErrValidation:
		return http.StatusBadRequest
	case domainerr.ErrInvalidTransition, domainerr.ErrInsufficientStock, domainerr.ErrConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes err with the status of its kind. Errors outside the
// domain kinds are logged and hidden from the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithContext(r.Context()).WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		respondJSONError(w, "internal error", status)
		return
	}
	respondJSONError(w, err.Error(), status)
}

// reply writes a command result: reply(w, r)(h.cmdHandler.ConfirmOrder(ctx, id)).
func reply(w http.ResponseWriter, r *http.Request) func(result any, err error) {
	return func(result any, err error) {
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(domainerr.ErrValidation, "invalid request body")
	}
	return nil
}

func currentUserID(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}

func isAdmin(r *http.Request) bool {
	claims, ok := middleware.GetUserFromContext(r.Context())
	return ok && claims.IsAdmin()
}

// ============================================
// Storefront
// ============================================

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.queryHandler.ListPublishedProducts(r.URL.Query().Get("category_id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.queryHandler.GetProduct(chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) GetInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := h.queryHandler.GetInventory(chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (h *Handlers) ListProductReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.queryHandler.ListProductReviews(chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reviews)
}

func (h *Handlers) ListVendors(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if !isAdmin(r) {
		state = "approved"
	}
	vendors, err := h.queryHandler.ListVendors(state)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, vendors)
}

func (h *Handlers) GetVendor(w http.ResponseWriter, r *http.Request) {
	vendor, err := h.queryHandler.GetVendor(chi.URLParam(r, "vendorID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, vendor)
}

func (h *Handlers) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var cmd command.SubmitReview
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	cmd.CustomerID = currentUserID(r)

	rev, err := h.cmdHandler.SubmitReview(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rev)
}

// ============================================
// Customer orders
// ============================================

func (h *Handlers) PlaceOrders(w http.ResponseWriter, r *http.Request) {
	var cmd command.PlaceOrders
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	cmd.CustomerID = currentUserID(r)

	orders, err := h.cmdHandler.PlaceOrders(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, orders)
}

func (h *Handlers) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListOrders(query.OrderFilter{
		CustomerID: currentUserID(r),
		Status:     r.URL.Query().Get("status"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// ownOrder resolves the order in the path and checks that the caller placed
// it. Admins may act on any order.
func (h *Handlers) ownOrder(w http.ResponseWriter, r *http.Request) (*query.OrderReadModel, bool) {
	o, err := h.queryHandler.GetOrder(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	if o.CustomerID != currentUserID(r) && !isAdmin(r) {
		respondJSONError(w, "order not found", http.StatusNotFound)
		return nil, false
	}
	return o, true
}

func (h *Handlers) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.ownOrder(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) AddOrderLine(w http.ResponseWriter, r *http.Request) {
	o, ok := h.ownOrder(w, r)
	if !ok {
		return
	}
	var line command.CheckoutLine
	if err := decodeBody(r, &line); err != nil {
		respondError(w, r, err)
		return
	}
	reply(w, r)(h.cmdHandler.AddOrderLine(r.Context(), command.AddOrderLine{OrderID: o.ID, Line: line}))
}

func (h *Handlers) UpdateOrderLine(w http.ResponseWriter, r *http.Request) {
	o, ok := h.ownOrder(w, r)
	if !ok {
		return
	}
	var cmd command.UpdateOrderLine
	if err := decodeBody(r, &cmd); err != nil {
		respondError(w, r, err)
		return
	}
	cmd.OrderID = o.ID
	cmd.LineID = chi.URLParam(r, "lineID")
	reply(w, r)(h.cmdHandler.UpdateOrderLine(r.Context(), cmd))
}

func (h *Handlers) RemoveOrderLine(w http.ResponseWriter, r *http.Request) {
	o, ok := h.ownOrder(w, r)
	if !ok {
		return
	}
	reply(w, r)(h.cmdHandler.RemoveOrderLine(r.Context(), command.RemoveOrderLine{
		OrderID: o.ID,
		LineID:  chi.URLParam(r, "lineID"),
	}))
}

func (h *Handlers) ConfirmMyOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.ownOrder(w, r)
	if !ok {
		return
	}
	reply(w, r)(h.cmdHandler.ConfirmOrder(r.Context(), o.ID))
}

func (h *Handlers) CancelMyOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.ownOrder(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			respondError(w, r, err)
			return
		}
	}
	reply(w, r)(h.cmdHandler.CancelOrder(r.Context(), command.CancelOrder{OrderID: o.ID, Reason: body.Reason}))
}
