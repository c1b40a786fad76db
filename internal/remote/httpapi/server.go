package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/calcsync/internal/remote"
)

// ItemLister is implemented by services that can enumerate a container.
type ItemLister interface {
	ListItems(ctx context.Context, containerID string) ([]remote.ItemRef, error)
}

// server adapts a remote.Service to HTTP handlers.
type server struct {
	svc    remote.Service
	logger *slog.Logger
}

// NewHandler returns an http.Handler exposing svc. A nil logger discards
// request logs.
func NewHandler(svc remote.Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &server{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/drilldown", s.handleDrilldown)
	r.Post("/containers", s.handleContainer)
	r.Route("/containers/{containerID}/items", func(r chi.Router) {
		r.Get("/", s.handleListItems)
		r.Post("/", s.handleCreateItem)
		r.Get("/{itemID}", s.handleGetItem)
		r.Put("/{itemID}", s.handleUpdateItem)
		r.Delete("/{itemID}", s.handleDeleteItem)
		r.Get("/{itemID}/metadata", s.handleMetadata)
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *server) handleDrilldown(w http.ResponseWriter, r *http.Request) {
	var req drilldownRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Drilldown(r.Context(), req.Category, req.Selection)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleContainer(w http.ResponseWriter, r *http.Request) {
	id, err := s.svc.GetOrCreateContainer(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id})
}

func (s *server) handleListItems(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.svc.(ItemLister)
	if !ok {
		writeError(w, http.StatusNotImplemented, codeUnsupported, "listing items is not supported")
		return
	}
	refs, err := lister.ListItems(r.Context(), chi.URLParam(r, "containerID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.svc.CreateItem(r.Context(), chi.URLParam(r, "containerID"), req.Category, req.Key, req.Values,
		remote.ItemOptions{Name: req.Name, Metadata: req.Metadata})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.GetItem(r.Context(), itemRef(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.svc.UpdateItem(r.Context(), itemRef(r), req.Values,
		remote.ItemOptions{Name: req.Name, Metadata: req.Metadata})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteItem(r.Context(), itemRef(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	ms, ok := s.svc.(remote.MetadataSource)
	if !ok {
		writeError(w, http.StatusNotImplemented, codeUnsupported, "item metadata is not supported")
		return
	}
	md, err := ms.ItemMetadata(r.Context(), itemRef(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if md == nil {
		md = map[string]string{}
	}
	writeJSON(w, http.StatusOK, md)
}

func itemRef(r *http.Request) remote.ItemRef {
	return remote.ItemRef{
		ContainerID: chi.URLParam(r, "containerID"),
		ID:          chi.URLParam(r, "itemID"),
	}
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("decode request: %v", err))
		return false
	}
	return true
}

// fail maps a service error onto a status code.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, remote.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "unclassified service error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Error: msg})
}
