package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/giangittb112000/olympia-sub001/internal/app"
	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

// BankHandler exposes the question-bank collaborator endpoints: configure,
// inspect, reset usage, and delete, keyed by match.
type BankHandler struct {
	service *app.RoundService
}

func NewBankHandler(service *app.RoundService) *BankHandler {
	return &BankHandler{service: service}
}

// Register mounts the REST routes on the router.
func (h *BankHandler) Register(router *httprouter.Router) {
	router.PUT("/banks/:matchId", h.configure)
	router.GET("/banks/:matchId/stats", h.stats)
	router.POST("/banks/:matchId/reset", h.resetUsage)
	router.DELETE("/banks/:matchId", h.delete)
	router.GET("/matches/:matchId/scores", h.scores)
}

func (h *BankHandler) configure(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var doc domain.BankDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid bank document: "+err.Error())
		return
	}
	doc.MatchID = params.ByName("matchId")

	stats, err := h.service.ConfigureBank(r.Context(), doc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse(doc.MatchID, stats))
}

func (h *BankHandler) stats(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	matchID := params.ByName("matchId")
	stats, err := h.service.BankStats(r.Context(), matchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse(matchID, stats))
}

func (h *BankHandler) resetUsage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if err := h.service.ResetBankUsage(r.Context(), params.ByName("matchId")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BankHandler) delete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if err := h.service.DeleteBank(r.Context(), params.ByName("matchId")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BankHandler) scores(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	records, err := h.service.Scores(r.Context(), params.ByName("matchId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func statsResponse(matchID string, stats map[int]domain.CategoryStats) map[string]any {
	byCategory := make(map[string]domain.CategoryStats, len(stats))
	for points, s := range stats {
		byCategory[strconv.Itoa(points)+"pt"] = s
	}
	return map[string]any{"matchId": matchID, "categories": byCategory}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBankNotFound), errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
