package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/architeacher/nocoflo/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/usecases"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type (
	Handler struct {
		app    *usecases.Application
		logger logger.Logger
	}

	mutationResult struct {
		Affected int64 `json:"affected"`
	}
)

func NewHandler(app *usecases.Application, log logger.Logger) *Handler {
	return &Handler{
		app:    app,
		logger: log,
	}
}

// actor returns the caller. Routes behind Identity always have one; anything
// else is treated as an anonymous non-admin that every check rejects.
func actor(r *http.Request) model.Actor {
	a, _ := middleware.GetActor(r.Context())

	return a
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeErrorResponse(w, r, http.StatusBadRequest, codeInvalidID, "invalid "+name)

		return 0, false
	}

	return id, true
}

func (h *Handler) textParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil || value == "" {
		writeErrorResponse(w, r, http.StatusBadRequest, codeInvalidID, "invalid "+name)

		return "", false
	}

	return value, true
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err == nil && len(body) > maxBodyBytes {
		err = errors.New("request body too large")
	}

	if err == nil {
		err = decodeJSON(body, dst)
	}

	if err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, codeInvalidJSON, msgInvalidBody)

		return false
	}

	return true
}

// page reads ?limit and ?offset. Bad values fall back to the defaults
// applied by model.Page.Normalize.
func page(r *http.Request) model.Page {
	var p model.Page

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		p.Limit = limit
	}

	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		p.Offset = offset
	}

	return p.Normalize()
}
