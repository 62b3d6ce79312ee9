package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"podverse/internal/logging"
	"podverse/internal/models"
	"podverse/internal/repository"
)

var validate = validator.New()

// Params carries the caller context and query of a request.
type Params struct {
	UserID string
	Query  repository.PlaylistFilter
}

// PlaylistService enforces playlist ownership and membership rules on top
// of a repository. Remove and patch are intentionally not offered.
type PlaylistService struct {
	repo repository.Repository
}

// New creates a PlaylistService.
func New(repo repository.Repository) *PlaylistService {
	return &PlaylistService{repo: repo}
}

// Get returns the playlist identified by a UUID-shaped id or by slug,
// hydrated with its MediaRefs. A miss returns nil without an error.
func (s *PlaylistService) Get(ctx context.Context, id string) (*models.Playlist, error) {
	where := repository.PlaylistWhere{Slug: id}
	if isUUID(id) {
		where = repository.PlaylistWhere{ID: id}
	}
	return s.fetch(ctx, where)
}

// Find lists playlists matching filter, each hydrated with its MediaRefs.
func (s *PlaylistService) Find(ctx context.Context, filter repository.PlaylistFilter) ([]*models.Playlist, error) {
	playlists, err := s.repo.ListPlaylists(ctx, filter)
	if err != nil {
		return nil, generalError(err)
	}
	for _, p := range playlists {
		ensureCollections(p)
	}
	return playlists, nil
}

// Create stores a new playlist owned by data.OwnerID. The row insert, the
// membership and the owner's playlist list are written in one transaction.
func (s *PlaylistService) Create(ctx context.Context, data *models.Playlist) (*models.Playlist, error) {
	if data == nil {
		return nil, newError(KindBadRequest, "playlist is required")
	}
	if err := validate.Struct(data); err != nil {
		return nil, &Error{Kind: KindBadRequest, Message: "invalid playlist", Err: err}
	}

	playlist := normalize(data)
	if playlist.ID == "" {
		playlist.ID = uuid.NewString()
		if playlist.Slug == "" {
			playlist.Slug = playlist.ID
		}
	}
	if err := checkSlug(playlist); err != nil {
		return nil, err
	}

	var created *models.Playlist
	err := s.repo.WithinTx(ctx, func(tx repository.Store) error {
		owner, err := tx.FindUser(ctx, playlist.OwnerID)
		if err != nil {
			return fmt.Errorf("resolve owner %q: %w", playlist.OwnerID, err)
		}
		playlist.OwnerName = owner.Name

		if err := tx.CreatePlaylist(ctx, playlist); err != nil {
			return err
		}
		if err := tx.SetMediaRefs(ctx, playlist.ID, playlist.PlaylistItems); err != nil {
			return err
		}
		if err := tx.AddUserPlaylists(ctx, owner.ID, playlist.ID); err != nil {
			return err
		}

		created, err = tx.FindPlaylist(ctx, repository.PlaylistWhere{ID: playlist.ID})
		return err
	})
	if err != nil {
		logging.WithContext(ctx).Error().Err(err).Str("owner_id", playlist.OwnerID).Msg("create playlist failed")
		return nil, persistenceError(err)
	}

	ensureCollections(created)
	return created, nil
}

// Update replaces the title and slug of the playlist matching id by primary
// key or slug, and adds playlistItems to its membership. Existing members
// are kept. Only the owner may update.
func (s *PlaylistService) Update(ctx context.Context, id string, data *models.Playlist, params Params) (*models.Playlist, error) {
	if id == "" {
		return nil, newError(KindNotAcceptable, "Try using POST instead of PUT.")
	}
	if data == nil {
		data = &models.Playlist{}
	}
	// The target is addressed by id; a payload id is never written.
	data = data.Clone()
	data.ID = ""
	if err := validate.Struct(data); err != nil {
		return nil, &Error{Kind: KindBadRequest, Message: "invalid playlist", Err: err}
	}

	var targetID string
	err := s.repo.WithinTx(ctx, func(tx repository.Store) error {
		existing, err := tx.FindPlaylist(ctx, repository.PlaylistWhere{ID: id, Slug: id})
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			return newError(KindNotFound, fmt.Sprintf("Could not find a playlist by %q", id))
		}
		if err != nil {
			return err
		}

		if existing.OwnerID == "" || existing.OwnerID != params.UserID {
			logging.WithContext(ctx).Warn().
				Str("playlist_id", existing.ID).
				Str("caller_id", params.UserID).
				Msg("playlist update rejected for non-owner")
			return newError(KindForbidden, "You are not allowed to update this playlist")
		}

		playlist := normalize(data)
		playlist.ID = existing.ID
		if playlist.Slug == "" {
			playlist.Slug = existing.ID
		}
		if err := checkSlug(playlist); err != nil {
			return err
		}

		if err := tx.AddMediaRefs(ctx, existing.ID, playlist.PlaylistItems); err != nil {
			return err
		}
		if err := tx.UpdatePlaylist(ctx, existing.ID, repository.PlaylistFields{
			Title: playlist.Title,
			Slug:  playlist.Slug,
		}); err != nil {
			return err
		}
		targetID = existing.ID
		return nil
	})
	if err != nil {
		return nil, persistenceError(err)
	}

	updated, err := s.fetch(ctx, repository.PlaylistWhere{ID: targetID})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, newError(KindNotFound, fmt.Sprintf("Could not find a playlist by %q", id))
	}
	return updated, nil
}

func (s *PlaylistService) fetch(ctx context.Context, where repository.PlaylistWhere) (*models.Playlist, error) {
	playlist, err := s.repo.FindPlaylist(ctx, where)
	if errors.Is(err, repository.ErrPlaylistNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, generalError(err)
	}
	ensureCollections(playlist)
	return playlist, nil
}

// normalize returns a copy of data ready to be persisted: the server owns
// url, slug falls back to id and playlistItems is never nil.
func normalize(data *models.Playlist) *models.Playlist {
	playlist := data.Clone()
	playlist.URL = ""
	playlist.MediaRefs = nil
	if playlist.Slug == "" {
		playlist.Slug = playlist.ID
	}
	if playlist.PlaylistItems == nil {
		playlist.PlaylistItems = []string{}
	}
	return playlist
}

func ensureCollections(p *models.Playlist) {
	if p == nil {
		return
	}
	if p.PlaylistItems == nil {
		p.PlaylistItems = []string{}
	}
	if p.MediaRefs == nil {
		p.MediaRefs = []models.MediaRef{}
	}
}

func persistenceError(err error) error {
	if errors.Is(err, repository.ErrSlugTaken) {
		return &Error{Kind: KindConflict, Message: "playlist slug is already in use", Err: err}
	}
	return generalError(err)
}

// checkSlug rejects UUID-shaped slugs other than the playlist's own id.
func checkSlug(p *models.Playlist) error {
	if p.Slug != p.ID && isUUID(p.Slug) {
		return newError(KindBadRequest, "slug must not be a UUID other than the playlist id")
	}
	return nil
}

// isUUID reports whether id is a canonical 36 character UUID string.
func isUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
