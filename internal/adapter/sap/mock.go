package sap

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewMockHandler emulates the confirmation authority for local runs and
// tests: every well-formed request gets a fresh SAP-prefixed confirmation
// number.
func NewMockHandler(logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+confirmPath, func(w http.ResponseWriter, r *http.Request) {
		var req confirmationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		number := "SAP" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		logger.Info("mock confirmation issued",
			zap.String("order_id", req.OrderID),
			zap.String("total_price", req.TotalPrice.StringFixed(2)),
			zap.String("confirmation_number", number),
		)

		var resp confirmationResponse
		resp.Success = true
		resp.Message = "confirmation successful"
		resp.Data.ConfirmationNumber = number

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}
