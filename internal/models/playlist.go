package models

import "time"

// MediaRef is a clip reference owned by the clip catalogue. Playlists only
// manage membership of MediaRefs, never their fields.
type MediaRef struct {
	ID              string `json:"id" db:"id"`
	Title           string `json:"title" db:"title"`
	StartTime       int    `json:"startTime" db:"start_time"`
	EndTime         *int   `json:"endTime,omitempty" db:"end_time"`
	EpisodeTitle    string `json:"episodeTitle,omitempty" db:"episode_title"`
	PodcastTitle    string `json:"podcastTitle,omitempty" db:"podcast_title"`
	EpisodeMediaURL string `json:"episodeMediaUrl,omitempty" db:"episode_media_url"`
}

// Playlist is a named, owned, ordered collection of MediaRefs.
//
// PlaylistItems carries MediaRef ids on input; MediaRefs carries the
// hydrated records on output. URL is always derived by the server.
type Playlist struct {
	ID            string     `json:"id" db:"id" validate:"omitempty,uuid"`
	Slug          string     `json:"slug" db:"slug" validate:"max=255"`
	Title         string     `json:"title" db:"title" validate:"max=255"`
	OwnerID       string     `json:"ownerId" db:"owner_id"`
	OwnerName     string     `json:"ownerName" db:"owner_name"`
	URL           string     `json:"url,omitempty" db:"-"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
	PlaylistItems []string   `json:"playlistItems" validate:"dive,required"`
	MediaRefs     []MediaRef `json:"mediaRefs"`
}

// Clone returns a deep copy of the playlist.
func (p *Playlist) Clone() *Playlist {
	if p == nil {
		return nil
	}
	clone := *p
	if p.PlaylistItems != nil {
		clone.PlaylistItems = append([]string(nil), p.PlaylistItems...)
	}
	if p.MediaRefs != nil {
		clone.MediaRefs = make([]MediaRef, len(p.MediaRefs))
		copy(clone.MediaRefs, p.MediaRefs)
	}
	return &clone
}

// User is the owning account of a playlist as seen by this service.
type User struct {
	ID          string   `json:"id" db:"id"`
	Name        string   `json:"name" db:"name"`
	PlaylistIDs []string `json:"playlistIds" db:"playlist_ids"`
}
