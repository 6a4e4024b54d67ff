package reporting

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the reporting endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/reports/overview", h.handleOverview)
	r.Get("/reports/pending", h.handleRecentPending)
	r.Get("/reports/issued", h.handleIssued)
	r.Get("/reports/overdue", h.handleOverdue)
	r.Get("/reports/fines", h.handleFines)
	r.Get("/reports/students/{id}", h.handleStudentSummary)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(overview)
}

func (h *Handler) handleRecentPending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	loans, err := h.service.RecentPending(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(loans)
}

func (h *Handler) handleIssued(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.IssuedLoans(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(loans)
}

func (h *Handler) handleOverdue(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.OverdueLoans(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(loans)
}

func (h *Handler) handleFines(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Fines(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(report)
}

func (h *Handler) handleStudentSummary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid student ID", http.StatusBadRequest)
		return
	}

	summary, err := h.service.StudentSummary(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(summary)
}
