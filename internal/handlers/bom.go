package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/stocklink/bomsync/internal/bom"
	"github.com/stocklink/bomsync/internal/middleware"
	"github.com/stocklink/bomsync/internal/reports"
)

// getEffectiveStock computes effective stock in fast/local mode: cached
// quantities only, no remote round-trips. For dashboards and widgets.
func (r *Router) getEffectiveStock(w http.ResponseWriter, req *http.Request) {
	accountID, ok := middleware.AccountID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "No account in context")
		return
	}

	productID, err := strconv.ParseUint(mux.Vars(req)["productId"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product id")
		return
	}
	variationID := parseVariation(req)

	result, err := r.orchestrator.EffectiveStockLocal(req.Context(), accountID, uint(productID), variationID)
	if errors.Is(err, bom.ErrNoBOM) {
		respondError(w, http.StatusNotFound, "Product has no bill of materials")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to compute effective stock")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// syncProduct runs a live sync for one (product, variation) target
func (r *Router) syncProduct(w http.ResponseWriter, req *http.Request) {
	accountID, ok := middleware.AccountID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "No account in context")
		return
	}

	productID, err := strconv.ParseUint(mux.Vars(req)["productId"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product id")
		return
	}
	variationID := parseVariation(req)

	result := r.orchestrator.SyncOne(req.Context(), accountID, uint(productID), variationID)
	status := http.StatusOK
	if result.Status == bom.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, result)
}

// syncAll triggers a bulk sync in the background; progress streams over the
// websocket and the outcome is recorded as a sync run.
func (r *Router) syncAll(w http.ResponseWriter, req *http.Request) {
	accountID, ok := middleware.AccountID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "No account in context")
		return
	}

	go func() {
		if _, err := r.orchestrator.SyncAll(context.Background(), accountID); err != nil {
			log.Printf("❌ Bulk sync failed for account %d: %v", accountID, err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Bulk sync started",
		"status":  "processing",
	})
}

// listRuns returns recent sync runs for the account
func (r *Router) listRuns(w http.ResponseWriter, req *http.Request) {
	accountID, ok := middleware.AccountID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "No account in context")
		return
	}

	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	runs, err := r.runs.ListRuns(req.Context(), accountID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list sync runs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// getRun returns one sync run with its per-product results
func (r *Router) getRun(w http.ResponseWriter, req *http.Request) {
	accountID, ok := middleware.AccountID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "No account in context")
		return
	}

	run, err := r.runs.GetRun(req.Context(), accountID, mux.Vars(req)["runId"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load sync run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "Sync run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// getRunReport renders a sync run as a PDF report
func (r *Router) getRunReport(w http.ResponseWriter, req *http.Request) {
	accountID, ok := middleware.AccountID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "No account in context")
		return
	}

	run, err := r.runs.GetRun(req.Context(), accountID, mux.Vars(req)["runId"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load sync run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "Sync run not found")
		return
	}

	pdf, err := reports.SyncRunPDF(run)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=sync-report-"+run.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func parseVariation(req *http.Request) uint {
	v, err := strconv.ParseUint(req.URL.Query().Get("variation"), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}
