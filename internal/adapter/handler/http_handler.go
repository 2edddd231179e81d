package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/order-engine/internal/core/domain"
	"github.com/rl1809/order-engine/internal/core/service"
)

type HTTPHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger
}

func NewHTTPHandler(orderService *service.OrderService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{orderService: orderService, logger: logger}
}

type orderItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type subOrderPayload struct {
	Items []orderItemPayload `json:"items"`
}

// createOrderRequest carries either Items (single order) or Orders (bulk).
// customer_id and region are trusted as validated by the auth collaborator.
type createOrderRequest struct {
	CustomerID      string             `json:"customer_id"`
	Region          string             `json:"region"`
	ContactName     string             `json:"contact_name"`
	PhoneNumber     string             `json:"phone_number"`
	DeliveryAddress string             `json:"delivery_address"`
	Items           []orderItemPayload `json:"items,omitempty"`
	Orders          []subOrderPayload  `json:"orders,omitempty"`
}

type orderLineResponse struct {
	ProductID     string          `json:"product_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Region        string          `json:"region"`
	VATPercentage decimal.Decimal `json:"vat_percentage"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
	FinalPrice    decimal.Decimal `json:"final_price"`
}

type orderResponse struct {
	OrderID            string              `json:"order_id"`
	CustomerID         string              `json:"customer_id"`
	Region             string              `json:"region"`
	Status             string              `json:"status"`
	TotalPrice         decimal.Decimal     `json:"total_price"`
	ConfirmationNumber string              `json:"confirmation_number,omitempty"`
	ContactName        string              `json:"contact_name,omitempty"`
	PhoneNumber        string              `json:"phone_number,omitempty"`
	DeliveryAddress    string              `json:"delivery_address,omitempty"`
	Items              []orderLineResponse `json:"items"`
}

type bulkResultResponse struct {
	OrderIndex int            `json:"order_index"`
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Error      string         `json:"error,omitempty"`
	Order      *orderResponse `json:"order,omitempty"`
}

type bulkOrderResponse struct {
	TotalOrders      int                  `json:"total_orders"`
	SuccessfulOrders int                  `json:"successful_orders"`
	FailedOrders     int                  `json:"failed_orders"`
	Results          []bulkResultResponse `json:"results"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateOrder handles POST /api/orders for both single and bulk payloads.
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   domain.KindInvalidOrderShape,
			Message: "invalid request body",
		})
		return
	}
	if req.CustomerID == "" || req.Region == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   domain.KindInvalidOrderShape,
			Message: "customer_id and region are required",
		})
		return
	}

	switch {
	case len(req.Orders) > 0:
		h.createBulk(w, r, req)
	case len(req.Items) > 0:
		h.createSingle(w, r, req)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   domain.KindInvalidOrderShape,
			Message: "request must contain either items or orders",
		})
	}
}

func (h *HTTPHandler) createSingle(w http.ResponseWriter, r *http.Request, req createOrderRequest) {
	draft := domain.OrderDraft{
		ContactName:     req.ContactName,
		PhoneNumber:     req.PhoneNumber,
		DeliveryAddress: req.DeliveryAddress,
		Items:           toLineRequests(req.Items),
	}

	order, err := h.orderService.CreateOrder(r.Context(), req.CustomerID, req.Region, draft)
	if err != nil {
		kind := domain.ErrorKind(err)
		h.logger.Warn("order rejected",
			zap.String("customer_id", req.CustomerID),
			zap.String("error_kind", kind),
			zap.Error(err),
		)
		writeJSON(w, statusForKind(kind), errorResponse{Error: kind, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *HTTPHandler) createBulk(w http.ResponseWriter, r *http.Request, req createOrderRequest) {
	drafts := make([]domain.OrderDraft, len(req.Orders))
	for i, sub := range req.Orders {
		drafts[i] = domain.OrderDraft{
			ContactName:     req.ContactName,
			PhoneNumber:     req.PhoneNumber,
			DeliveryAddress: req.DeliveryAddress,
			Items:           toLineRequests(sub.Items),
		}
	}

	summary, err := h.orderService.CreateBulkOrders(r.Context(), req.CustomerID, req.Region, drafts)
	if err != nil {
		kind := domain.ErrorKind(err)
		writeJSON(w, statusForKind(kind), errorResponse{Error: kind, Message: err.Error()})
		return
	}

	resp := bulkOrderResponse{
		TotalOrders:      summary.TotalOrders,
		SuccessfulOrders: summary.SuccessfulOrders,
		FailedOrders:     summary.FailedOrders,
		Results:          make([]bulkResultResponse, 0, len(summary.Results)),
	}
	for _, result := range summary.Results {
		entry := bulkResultResponse{
			OrderIndex: result.Index,
			Success:    result.Success,
			Message:    result.Message,
			Error:      result.ErrorKind,
		}
		if result.Order != nil {
			order := toOrderResponse(result.Order)
			entry.Order = &order
		}
		resp.Results = append(resp.Results, entry)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetOrder handles GET /api/orders/{id}.
func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("order lookup failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   domain.KindInternal,
			Message: "internal error",
		})
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:   "ORDER_NOT_FOUND",
			Message: "order not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// ListOrders handles GET /api/orders, filtered by the customer_id or
// region query parameter.
func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var (
		orders []domain.Order
		err    error
	)
	switch {
	case r.URL.Query().Get("customer_id") != "":
		orders, err = h.orderService.OrdersByCustomer(r.Context(), r.URL.Query().Get("customer_id"))
	case r.URL.Query().Get("region") != "":
		orders, err = h.orderService.OrdersByRegion(r.Context(), r.URL.Query().Get("region"))
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   domain.KindInvalidOrderShape,
			Message: "customer_id or region query parameter is required",
		})
		return
	}
	if err != nil {
		h.logger.Error("order listing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   domain.KindInternal,
			Message: "internal error",
		})
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// QuotePrice handles GET /api/price/{productId}.
func (h *HTTPHandler) QuotePrice(w http.ResponseWriter, r *http.Request) {
	quote, err := h.orderService.QuotePrice(r.Context(), r.PathValue("productId"))
	if err != nil {
		kind := domain.ErrorKind(err)
		writeJSON(w, statusForKind(kind), errorResponse{Error: kind, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toLineRequests(items []orderItemPayload) []domain.LineRequest {
	lines := make([]domain.LineRequest, len(items))
	for i, item := range items {
		lines[i] = domain.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}

func toOrderResponse(order *domain.Order) orderResponse {
	items := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, orderLineResponse{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			Region:        line.Region,
			VATPercentage: line.VATPercentage,
			VATAmount:     line.VATAmount,
			FinalPrice:    line.FinalPrice,
		})
	}
	return orderResponse{
		OrderID:            order.ID,
		CustomerID:         order.CustomerID,
		Region:             order.Region,
		Status:             string(order.Status),
		TotalPrice:         order.TotalPrice,
		ConfirmationNumber: order.ConfirmationNumber,
		ContactName:        order.ContactName,
		PhoneNumber:        order.PhoneNumber,
		DeliveryAddress:    order.DeliveryAddress,
		Items:              items,
	}
}

func statusForKind(kind string) int {
	switch kind {
	case domain.KindProductNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientStock:
		return http.StatusConflict
	case domain.KindRegionMismatch, domain.KindPricingConfigMissing:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidOrderShape, domain.KindInvalidPricingInput:
		return http.StatusBadRequest
	case domain.KindConfirmationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
