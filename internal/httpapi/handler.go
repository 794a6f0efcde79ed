// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

// Package httpapi exposes the person lifecycle over JSON HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sitter-id/sitter/internal/credential"
	"github.com/sitter-id/sitter/internal/observability"
	"github.com/sitter-id/sitter/internal/person"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Service is the lifecycle surface the API drives; *person.Engine satisfies it.
type Service interface {
	Create(ctx context.Context, req *person.Request) (*person.Person, error)
	Read(ctx context.Context, id *uuid.UUID) ([]*person.Person, error)
	Get(ctx context.Context, id uuid.UUID) (*person.Person, error)
	Update(ctx context.Context, id uuid.UUID, req *person.Request) (*person.Person, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// Checker verifies secrets; *credential.Checker satisfies it.
type Checker interface {
	Check(ctx context.Context, id uuid.UUID, password string) (credential.Result, error)
}

// Handler serves the /persons routes.
type Handler struct {
	people  Service
	checker Checker
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Handler. metrics may be nil.
func New(people Service, checker Checker, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{people: people, checker: checker, logger: logger, metrics: metrics}
}

// Router returns the chi router with middleware applied.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/persons", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
			r.Post("/verify", h.handleVerify)
		})
	})
	return r
}

type personRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Password string `json:"password"`
}

// personResponse never carries the password hash.
type personResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(p *person.Person) personResponse {
	return personResponse{ID: p.ID, Email: p.Email, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body personRequest
	if !h.decode(w, r, &body) {
		return
	}
	p, err := h.people.Create(r.Context(), &person.Request{Email: body.Email, Password: body.Password})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/persons/"+p.ID.String())
	h.writeJSON(w, r, http.StatusCreated, toResponse(p))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	people, err := h.people.Read(r.Context(), nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]personResponse, 0, len(people))
	for _, p := range people {
		out = append(out, toResponse(p))
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.people.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toResponse(p))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var body personRequest
	if !h.decode(w, r, &body) {
		return
	}
	p, err := h.people.Update(r.Context(), id, &person.Request{Email: body.Email, Password: body.Password})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toResponse(p))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	n, err := h.people.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if n == 0 {
		h.writeProblem(w, r, http.StatusNotFound, "not_found", "person not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var body verifyRequest
	if !h.decode(w, r, &body) {
		return
	}
	if body.Password == "" {
		h.writeProblem(w, r, http.StatusBadRequest, "invalid_request", "password is required")
		return
	}
	res, err := h.checker.Check(r.Context(), id, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeProblem(w, r, http.StatusBadRequest, "invalid_request", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err.Error(),
		)
		h.writeProblem(w, r, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}

type problem struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps lifecycle errors onto status codes. Messages are only
// echoed for client errors.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, person.ErrValidation):
		h.writeProblem(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, person.ErrNotFound):
		h.writeProblem(w, r, http.StatusNotFound, "not_found", "person not found")
	case errors.Is(err, person.ErrAlreadyExists):
		h.writeProblem(w, r, http.StatusConflict, "already_exists", "a person with this email already exists")
	default:
		h.logger.ErrorContext(ctx, "request failed",
			"request_id", middleware.GetReqID(ctx),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		h.writeProblem(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (h *Handler) writeProblem(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	h.writeJSON(w, r, status, problem{Error: code, Message: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write response",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
}
