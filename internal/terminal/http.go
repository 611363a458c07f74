package terminal

import (
	"encoding/json"
	"errors"
	"net/http"

	"posd/internal/apperr"
	"posd/internal/domain"
	"posd/internal/pos"
	"posd/internal/syncer"
)

// Handler exposes the POS store over HTTP. Every write lands in the
// local store and the durable queue; nothing here waits for the central
// database.
type Handler struct {
	store  *pos.Store
	engine *syncer.Engine
}

func NewHandler(store *pos.Store, engine *syncer.Engine) *Handler {
	return &Handler{store: store, engine: engine}
}

func Router(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/v1/orders", h.ListOrders)
	mux.HandleFunc("GET /api/v1/orders/{order_id}", h.GetOrder)
	mux.HandleFunc("POST /api/v1/orders/{order_id}/status", h.UpdateStatus)
	mux.HandleFunc("POST /api/v1/orders/{order_id}/payment", h.RecordPayment)
	mux.HandleFunc("POST /api/v1/orders/{order_id}/cancel", h.CancelOrder)
	mux.HandleFunc("PUT /api/v1/orders/{order_id}/items", h.UpdateItems)
	mux.HandleFunc("GET /api/v1/tables", h.ListTables)
	mux.HandleFunc("GET /api/v1/sync/status", h.SyncStatus)
	return mux
}

type createOrderRequest struct {
	Type          string        `json:"order_type"`
	TableNumber   *int          `json:"table_number,omitempty"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	Items         []itemRequest `json:"items"`
}

type itemRequest struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{
			MenuItemID: it.MenuItemID, Name: it.Name, Price: it.Price, Quantity: it.Quantity,
		})
	}
	o, err := h.store.CreateOrder(pos.CreateOrderInput{
		Type:          domain.OrderType(req.Type),
		Source:        domain.SourcePOS,
		TableNumber:   req.TableNumber,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Items:         items,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"orders": h.store.Orders()})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.store.Order(r.PathValue("order_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	o, err := h.store.UpdateStatus(r.PathValue("order_id"), domain.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	o, err := h.store.RecordPayment(r.PathValue("order_id"), domain.PaymentMethod(req.Method))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if err := h.store.Cancel(r.PathValue("order_id"), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": r.PathValue("order_id"), "status": domain.StatusCancelled})
}

func (h *Handler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []itemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{
			MenuItemID: it.MenuItemID, Name: it.Name, Price: it.Price, Quantity: it.Quantity,
		})
	}
	o, err := h.store.UpdateItems(r.PathValue("order_id"), items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tables": h.store.Tables()})
}

func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"online":  h.engine.Online(),
		"pending": h.engine.Pending(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, code int, typ, detail string) {
	writeJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperr.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
