package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"podverse/internal/logging"
	"podverse/internal/models"
	"podverse/internal/repository"
	"podverse/internal/service"
)

// PlaylistResource is the set of playlist verbs reachable over HTTP.
type PlaylistResource interface {
	Get(ctx context.Context, id string, params service.Params) (*models.Playlist, error)
	Find(ctx context.Context, params service.Params) ([]*models.Playlist, error)
	Create(ctx context.Context, data *models.Playlist, params service.Params) (*models.Playlist, error)
	Update(ctx context.Context, id string, data *models.Playlist, params service.Params) (*models.Playlist, error)
}

// PlaylistHandler wires HTTP endpoints to the playlist resource.
type PlaylistHandler struct {
	resource PlaylistResource
}

// New creates a PlaylistHandler.
func New(resource PlaylistResource) *PlaylistHandler {
	return &PlaylistHandler{resource: resource}
}

// Register mounts playlist routes on the given router. Only GET, POST and
// PUT are routed.
func (h *PlaylistHandler) Register(router *mux.Router) {
	router.HandleFunc("/playlists", h.find).Methods(http.MethodGet)
	router.HandleFunc("/playlists", h.create).Methods(http.MethodPost)
	router.HandleFunc("/playlists", h.update).Methods(http.MethodPut)
	router.HandleFunc("/playlists/{id}", h.get).Methods(http.MethodGet)
	router.HandleFunc("/playlists/{id}", h.update).Methods(http.MethodPut)
}

func (h *PlaylistHandler) find(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	playlists, err := h.resource.Find(r.Context(), paramsFrom(r, filter))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*models.Playlist{"playlists": playlists})
}

func (h *PlaylistHandler) get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	playlist, err := h.resource.Get(r.Context(), id, paramsFrom(r, repository.PlaylistFilter{}))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if playlist == nil {
		writeError(w, http.StatusNotFound, string(service.KindNotFound), "Could not find a playlist by \""+id+"\"")
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (h *PlaylistHandler) create(w http.ResponseWriter, r *http.Request) {
	params := paramsFrom(r, repository.PlaylistFilter{})
	if params.UserID == "" {
		writeError(w, http.StatusUnauthorized, "NotAuthenticated", "authorization required")
		return
	}

	var payload models.Playlist
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "invalid request body")
		return
	}

	result, err := h.resource.Create(r.Context(), &payload, params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *PlaylistHandler) update(w http.ResponseWriter, r *http.Request) {
	var payload models.Playlist
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "BadRequest", "invalid request body")
		return
	}

	// An empty id or body reaches the resource so it can answer NotAcceptable.
	id := mux.Vars(r)["id"]
	result, err := h.resource.Update(r.Context(), id, &payload, paramsFrom(r, repository.PlaylistFilter{}))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func paramsFrom(r *http.Request, filter repository.PlaylistFilter) service.Params {
	return service.Params{
		UserID: logging.UserID(r.Context()),
		Query:  filter,
	}
}

func parseFilter(r *http.Request) (repository.PlaylistFilter, error) {
	q := r.URL.Query()
	filter := repository.PlaylistFilter{
		OwnerID: q.Get("ownerId"),
		Title:   q.Get("title"),
	}

	var err error
	if filter.Limit, err = parseNonNegative(q.Get("$limit"), "$limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseNonNegative(q.Get("$skip"), "$skip"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseNonNegative(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid query parameter %s", name)
	}
	return n, nil
}
