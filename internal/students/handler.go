package students

import (
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

// Routes mounts the student endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/students/signup", h.handleSignup)
	r.Post("/students/login", h.handleLogin)
	r.Get("/students", h.handleListStudents)
	r.Get("/students/{id}", h.handleGetStudent)
	r.Put("/students/{id}", h.handleUpdateStudent)
	r.Delete("/students/{id}", h.handleDeleteStudent)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName  string `json:"full_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		StudentNo string `json:"student_no"`
		Password  string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.FullName == "" || req.Email == "" || req.StudentNo == "" || req.Password == "" {
		http.Error(w, "full_name, email, student_no and password are required", http.StatusBadRequest)
		return
	}

	student, err := h.service.Signup(r.Context(), &Student{
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
		StudentNo: req.StudentNo,
	}, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(student)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	student, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(student)
}

func (h *Handler) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid student ID", http.StatusBadRequest)
		return
	}

	student, err := h.service.GetStudent(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(student)
}

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListStudents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid student ID", http.StatusBadRequest)
		return
	}

	student := &Student{}
	if err := json.NewDecoder(r.Body).Decode(student); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	student.ID = id

	if err := h.service.UpdateStudent(r.Context(), student); err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(student)
}

func (h *Handler) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid student ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteStudent(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrDuplicateStudentNo):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
