package terminal

import (
	"encoding/json"
	"net/http"

	"posd/internal/cart"
	"posd/internal/domain"
	"posd/internal/pos"
)

// CartHandler serves the terminal's single in-progress cart. Checkout
// prices the cart, hands it to the POS store and clears it.
type CartHandler struct {
	cart  *cart.Cart
	store *pos.Store
}

func NewCartHandler(c *cart.Cart, store *pos.Store) *CartHandler {
	return &CartHandler{cart: c, store: store}
}

func (h *CartHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/cart", h.Get)
	mux.HandleFunc("DELETE /api/v1/cart", h.Clear)
	mux.HandleFunc("POST /api/v1/cart/items", h.AddItem)
	mux.HandleFunc("PUT /api/v1/cart/items/{item_id}", h.UpdateQuantity)
	mux.HandleFunc("DELETE /api/v1/cart/items/{item_id}", h.RemoveItem)
	mux.HandleFunc("POST /api/v1/cart/details", h.SetDetails)
	mux.HandleFunc("POST /api/v1/cart/checkout", h.Checkout)
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	totals, err := h.cart.Totals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":        h.cart.Items(),
		"order_type":   h.cart.OrderType(),
		"totals":       totals,
		"can_checkout": h.cart.CanCheckout(),
	})
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	id, err := h.cart.AddItem(req.MenuItemID, req.Name, req.Price, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item_id": id})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if err := h.cart.UpdateQuantity(r.PathValue("item_id"), req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.RemoveItem(r.PathValue("item_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cartDetailsRequest struct {
	OrderType       *string `json:"order_type,omitempty"`
	TableNumber     *int    `json:"table_number,omitempty"`
	IncludeDelivery *bool   `json:"include_delivery,omitempty"`
	CustomerName    *string `json:"customer_name,omitempty"`
	CustomerPhone   *string `json:"customer_phone,omitempty"`
}

// SetDetails applies the optional fields present in the request. Setting
// a table number switches the cart to dine-in.
func (h *CartHandler) SetDetails(w http.ResponseWriter, r *http.Request) {
	var req cartDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if req.OrderType != nil {
		if err := h.cart.SetOrderType(domain.OrderType(*req.OrderType)); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.TableNumber != nil {
		h.cart.SetTableNumber(req.TableNumber)
	}
	if req.IncludeDelivery != nil {
		h.cart.SetIncludeDelivery(*req.IncludeDelivery)
	}
	if req.CustomerName != nil || req.CustomerPhone != nil {
		name, phone := h.cart.CustomerInfo()
		if req.CustomerName != nil {
			name = *req.CustomerName
		}
		if req.CustomerPhone != nil {
			phone = *req.CustomerPhone
		}
		h.cart.SetCustomerInfo(name, phone)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if !h.cart.CanCheckout() {
		writeProblem(w, http.StatusBadRequest, "validation_error", "cart needs items and customer name and phone")
		return
	}
	name, phone := h.cart.CustomerInfo()
	o, err := h.store.CreateOrder(pos.CreateOrderInput{
		Type:          h.cart.OrderType(),
		Source:        domain.SourcePOS,
		TableNumber:   h.cart.TableNumber(),
		CustomerName:  name,
		CustomerPhone: phone,
		Items:         h.cart.Items(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.cart.Clear()
	writeJSON(w, http.StatusCreated, o)
}
