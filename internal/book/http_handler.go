package book

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"librarycatalog/internal/httpx"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type createRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=500"`
	Author      string  `json:"author" validate:"required,min=1,max=300"`
	Year        int     `json:"year" validate:"required"`
	Genre       string  `json:"genre" validate:"required,min=1,max=100"`
	Pages       int     `json:"pages" validate:"required"`
	ISBN        *string `json:"isbn" validate:"omitempty,isbn"`
	Description *string `json:"description"`
}

type updateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=500"`
	Author      *string `json:"author" validate:"omitempty,min=1,max=300"`
	Year        *int    `json:"year"`
	Genre       *string `json:"genre" validate:"omitempty,min=1,max=100"`
	Pages       *int    `json:"pages"`
	ISBN        *string `json:"isbn" validate:"omitempty,isbn"`
	Description *string `json:"description"`
	Available   *bool   `json:"available"`
}

// Create handles POST /books
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if details := validateStruct(req); details != nil {
		httpx.JSONErrorWithRequest(r, w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid book data", details)
		return
	}

	params := CreateParams{
		Title:       req.Title,
		Author:      req.Author,
		Year:        req.Year,
		Genre:       req.Genre,
		Pages:       req.Pages,
		Description: req.Description,
	}
	if req.ISBN != nil {
		canonical := CanonicalISBN(*req.ISBN)
		params.ISBN = &canonical
	}

	created, err := h.service.Create(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccessCreatedWithRequest(r, w, created)
}

// List handles GET /books
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	f := Filter{
		Title:  query.Get("title"),
		Author: query.Get("author"),
		Genre:  query.Get("genre"),
	}

	if yearStr := query.Get("year"); yearStr != "" {
		if val, err := strconv.Atoi(yearStr); err == nil {
			f.Year = &val
		}
	}
	if availStr := query.Get("available"); availStr != "" {
		if val, err := strconv.ParseBool(availStr); err == nil {
			f.Available = &val
		}
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	f.Limit = limit
	f.Offset = offset

	items, total, err := h.service.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []Book{}
	}

	httpx.JSONSuccessWithRequest(r, w, items, map[string]any{
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetByID handles GET /books/{id}
func (h *HTTPHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	b, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, b, nil)
}

// Update handles PUT /books/{id}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if details := validateStruct(req); details != nil {
		httpx.JSONErrorWithRequest(r, w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid book data", details)
		return
	}

	params := UpdateParams{
		Title:       req.Title,
		Author:      req.Author,
		Year:        req.Year,
		Genre:       req.Genre,
		Pages:       req.Pages,
		Description: req.Description,
		Available:   req.Available,
	}
	if req.ISBN != nil {
		canonical := CanonicalISBN(*req.ISBN)
		params.ISBN = &canonical
	}

	updated, err := h.service.Update(r.Context(), id, params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, updated, nil)
}

// Delete handles DELETE /books/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

// Checkout handles POST /books/{id}/checkout
func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	b, err := h.service.Checkout(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, b, nil)
}

// Return handles POST /books/{id}/return
func (h *HTTPHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	b, err := h.service.Return(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, b, nil)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "INVALID_ID", "Book id must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody rejects unknown fields instead of silently ignoring them.
func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON for this endpoint", nil)
		return false
	}
	if dec.More() {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "INVALID_BODY", "Request body must contain a single JSON object", nil)
		return false
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return true
}

// writeServiceError maps the service error kinds to transport status
// codes. No string matching: kinds only.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound     *NotFoundError
		exists       *AlreadyExistsError
		invalid      *ValidationError
		notAvailable *NotAvailableError
	)

	switch {
	case errors.As(err, &notFound):
		httpx.JSONErrorWithRequest(r, w, http.StatusNotFound, "NOT_FOUND", notFound.Error(), nil)
	case errors.As(err, &exists):
		httpx.JSONErrorWithRequest(r, w, http.StatusConflict, "ALREADY_EXISTS", exists.Error(), nil)
	case errors.As(err, &invalid):
		httpx.JSONErrorWithRequest(r, w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", invalid.Error(),
			[]httpx.ErrorDetail{{Field: invalid.Field, Message: invalid.Reason}})
	case errors.As(err, &notAvailable):
		httpx.JSONErrorWithRequest(r, w, http.StatusConflict, "NOT_AVAILABLE", notAvailable.Error(), nil)
	default:
		httpx.JSONErrorWithRequest(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
