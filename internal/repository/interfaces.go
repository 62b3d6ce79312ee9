package repository

import (
	"context"
	"errors"

	"podverse/internal/models"
)

var (
	// ErrPlaylistNotFound is returned when a playlist cannot be located.
	ErrPlaylistNotFound = errors.New("playlist not found")
	// ErrUserNotFound is returned when the owning user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrMediaRefNotFound is returned when an association targets an unknown MediaRef.
	ErrMediaRefNotFound = errors.New("media ref not found")
	// ErrSlugTaken signals a playlist slug or id collision.
	ErrSlugTaken = errors.New("playlist slug already exists")
)

// PlaylistWhere selects a playlist. Non-empty fields are OR-combined.
type PlaylistWhere struct {
	ID   string
	Slug string
}

// PlaylistFilter narrows a playlist listing.
type PlaylistFilter struct {
	OwnerID string
	Title   string
	Limit   int
	Offset  int
}

// PlaylistFields holds the mutable columns of a playlist.
type PlaylistFields struct {
	Title string
	Slug  string
}

// Store defines the persistence operations the playlist service relies on.
// Every playlist returned is hydrated with its MediaRefs in membership order.
type Store interface {
	FindPlaylist(ctx context.Context, where PlaylistWhere) (*models.Playlist, error)
	ListPlaylists(ctx context.Context, filter PlaylistFilter) ([]*models.Playlist, error)
	CreatePlaylist(ctx context.Context, playlist *models.Playlist) error
	UpdatePlaylist(ctx context.Context, id string, fields PlaylistFields) error

	// SetMediaRefs replaces the playlist's membership with ids.
	SetMediaRefs(ctx context.Context, playlistID string, mediaRefIDs []string) error
	// AddMediaRefs appends ids not already present to the membership.
	AddMediaRefs(ctx context.Context, playlistID string, mediaRefIDs []string) error

	FindUser(ctx context.Context, id string) (*models.User, error)
	AddUserPlaylists(ctx context.Context, userID string, playlistIDs ...string) error
}

// Repository is a Store that can run a group of operations atomically.
type Repository interface {
	Store
	// WithinTx runs fn against a transactional Store. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	WithinTx(ctx context.Context, fn func(Store) error) error
}
