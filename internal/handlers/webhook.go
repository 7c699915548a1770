package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/stocklink/bomsync/internal/bom"
	"github.com/stocklink/bomsync/internal/middleware"
)

// orderWebhook is the HTTP fallback for storefronts that deliver order
// events by webhook instead of the message bus. The authenticated account
// overrides whatever account id the payload claims.
func (r *Router) orderWebhook(w http.ResponseWriter, req *http.Request) {
	accountID, ok := middleware.AccountID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "No account in context")
		return
	}

	var ev bom.OrderEvent
	if err := json.NewDecoder(req.Body).Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	ev.AccountID = accountID

	if err := r.listener.HandleOrderCreated(req.Context(), ev); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "processed",
	})
}
