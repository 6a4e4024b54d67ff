package lending

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the lending endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/loans/request", h.handleRequest)
	r.Post("/loans/{id}/approve", h.handleApprove)
	r.Post("/loans/{id}/reject", h.handleReject)
	r.Post("/loans/{id}/return", h.handleReturn)
	r.Get("/loans/{id}", h.handleGetRecord)
	r.Get("/loans/{id}/history", h.handleHistory)
	r.Get("/students/{id}/loans", h.handleListByStudent)
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID uuid.UUID `json:"student_id"`
		BookID    uuid.UUID `json:"book_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.StudentID == uuid.Nil || req.BookID == uuid.Nil {
		http.Error(w, "student_id and book_id are required", http.StatusBadRequest)
		return
	}

	record, err := h.service.RequestLoan(r.Context(), req.StudentID, req.BookID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.ApproveAndIssue)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.RejectRequest)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.ReturnBook)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) (*IssueRecord, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid record ID", http.StatusBadRequest)
		return
	}

	record, err := op(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(record)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid record ID", http.StatusBadRequest)
		return
	}

	record, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(record)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid record ID", http.StatusBadRequest)
		return
	}

	events, err := h.service.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(events)
}

func (h *Handler) handleListByStudent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid student ID", http.StatusBadRequest)
		return
	}

	records, err := h.service.ListByStudent(r.Context(), id, Status(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(records)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrBookNotFound), errors.Is(err, ErrStudentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrDuplicateRequest):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
