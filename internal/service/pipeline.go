package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"podverse/internal/metrics"
	"podverse/internal/models"
)

// Verb names used by hooks and metrics.
const (
	VerbGet    = "get"
	VerbFind   = "find"
	VerbCreate = "create"
	VerbUpdate = "update"
)

// HookContext is passed through the hooks around a verb. Before hooks may
// rewrite Data; after hooks may decorate Result and Results.
type HookContext struct {
	Verb    string
	ID      string
	Data    *models.Playlist
	Params  Params
	Result  *models.Playlist
	Results []*models.Playlist
}

// Hook is one pre- or post-processing step.
type Hook func(ctx context.Context, hc *HookContext) error

// Hooks holds the ordered steps for each verb.
type Hooks struct {
	Get    []Hook
	Find   []Hook
	Create []Hook
	Update []Hook
}

func (h Hooks) forVerb(verb string) []Hook {
	switch verb {
	case VerbGet:
		return h.Get
	case VerbFind:
		return h.Find
	case VerbCreate:
		return h.Create
	case VerbUpdate:
		return h.Update
	}
	return nil
}

// Resource exposes the playlist verbs to the transport with the before and
// after hooks applied in order.
type Resource struct {
	svc    *PlaylistService
	before Hooks
	after  Hooks
}

// NewResource wires the standard playlist pipeline: owner injection before
// create and URL decoration after get, create and update.
func NewResource(svc *PlaylistService, publicBaseURL string) *Resource {
	addURL := AddURL(publicBaseURL)
	return NewResourceWithHooks(svc,
		Hooks{Create: []Hook{ApplyOwnerID}},
		Hooks{
			Get:    []Hook{addURL},
			Create: []Hook{addURL},
			Update: []Hook{addURL},
		},
	)
}

// NewResourceWithHooks builds a Resource with explicit hook lists.
func NewResourceWithHooks(svc *PlaylistService, before, after Hooks) *Resource {
	return &Resource{svc: svc, before: before, after: after}
}

// Get runs the get verb.
func (r *Resource) Get(ctx context.Context, id string, params Params) (*models.Playlist, error) {
	hc := &HookContext{Verb: VerbGet, ID: id, Params: params}
	err := r.run(ctx, hc, func() error {
		var err error
		hc.Result, err = r.svc.Get(ctx, hc.ID)
		return err
	})
	return hc.Result, err
}

// Find runs the find verb.
func (r *Resource) Find(ctx context.Context, params Params) ([]*models.Playlist, error) {
	hc := &HookContext{Verb: VerbFind, Params: params}
	err := r.run(ctx, hc, func() error {
		var err error
		hc.Results, err = r.svc.Find(ctx, hc.Params.Query)
		return err
	})
	return hc.Results, err
}

// Create runs the create verb.
func (r *Resource) Create(ctx context.Context, data *models.Playlist, params Params) (*models.Playlist, error) {
	hc := &HookContext{Verb: VerbCreate, Data: data, Params: params}
	err := r.run(ctx, hc, func() error {
		var err error
		hc.Result, err = r.svc.Create(ctx, hc.Data)
		return err
	})
	return hc.Result, err
}

// Update runs the update verb.
func (r *Resource) Update(ctx context.Context, id string, data *models.Playlist, params Params) (*models.Playlist, error) {
	hc := &HookContext{Verb: VerbUpdate, ID: id, Data: data, Params: params}
	err := r.run(ctx, hc, func() error {
		var err error
		hc.Result, err = r.svc.Update(ctx, hc.ID, hc.Data, hc.Params)
		return err
	})
	return hc.Result, err
}

func (r *Resource) run(ctx context.Context, hc *HookContext, call func() error) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
		}
		metrics.PlaylistOperationsTotal.WithLabelValues(hc.Verb, outcome).Inc()
		metrics.PlaylistOperationDuration.WithLabelValues(hc.Verb).Observe(time.Since(start).Seconds())
	}()

	if err = runHooks(ctx, r.before.forVerb(hc.Verb), hc); err != nil {
		return err
	}
	if err = call(); err != nil {
		return err
	}
	return runHooks(ctx, r.after.forVerb(hc.Verb), hc)
}

func runHooks(ctx context.Context, hooks []Hook, hc *HookContext) error {
	for _, hook := range hooks {
		if err := hook(ctx, hc); err != nil {
			return err
		}
	}
	return nil
}

// ApplyOwnerID makes the caller the owner of the playlist being created.
func ApplyOwnerID(_ context.Context, hc *HookContext) error {
	if hc.Data != nil && hc.Params.UserID != "" {
		hc.Data.OwnerID = hc.Params.UserID
	}
	return nil
}

// AddURL sets the public URL of the result from its slug, or its id when
// the slug is empty.
func AddURL(publicBaseURL string) Hook {
	base := strings.TrimRight(publicBaseURL, "/")
	return func(_ context.Context, hc *HookContext) error {
		decorate := func(p *models.Playlist) {
			if p == nil {
				return
			}
			key := p.Slug
			if key == "" {
				key = p.ID
			}
			p.URL = base + "/playlists/" + url.PathEscape(key)
		}
		decorate(hc.Result)
		for _, p := range hc.Results {
			decorate(p)
		}
		return nil
	}
}
