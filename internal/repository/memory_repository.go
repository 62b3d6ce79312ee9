package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"podverse/internal/models"
)

// InMemoryRepository stores playlists in-memory for demos and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	state *memoryState
}

// NewInMemoryRepository returns an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{state: newMemoryState()}
}

// PutMediaRef registers a MediaRef so playlists can reference it.
func (r *InMemoryRepository) PutMediaRef(ref models.MediaRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.mediaRefs[ref.ID] = ref
}

// PutUser registers or replaces a user.
func (r *InMemoryRepository) PutUser(user models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.users[user.ID] = cloneUser(&user)
}

// FindPlaylist returns the first playlist matching where.
func (r *InMemoryRepository) FindPlaylist(ctx context.Context, where PlaylistWhere) (*models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.findPlaylist(where)
}

// ListPlaylists returns playlists newest first.
func (r *InMemoryRepository) ListPlaylists(ctx context.Context, filter PlaylistFilter) ([]*models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.listPlaylists(filter), nil
}

// CreatePlaylist persists the playlist row with an empty membership.
func (r *InMemoryRepository) CreatePlaylist(ctx context.Context, playlist *models.Playlist) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.createPlaylist(playlist)
}

// UpdatePlaylist writes the mutable fields of the playlist with the given id.
func (r *InMemoryRepository) UpdatePlaylist(ctx context.Context, id string, fields PlaylistFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.updatePlaylist(id, fields)
}

// SetMediaRefs replaces the membership of a playlist.
func (r *InMemoryRepository) SetMediaRefs(ctx context.Context, playlistID string, mediaRefIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.setMediaRefs(playlistID, mediaRefIDs)
}

// AddMediaRefs appends new members to a playlist.
func (r *InMemoryRepository) AddMediaRefs(ctx context.Context, playlistID string, mediaRefIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.addMediaRefs(playlistID, mediaRefIDs)
}

// FindUser returns a user by id.
func (r *InMemoryRepository) FindUser(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.findUser(id)
}

// AddUserPlaylists appends playlist ids to the user's own list.
func (r *InMemoryRepository) AddUserPlaylists(ctx context.Context, userID string, playlistIDs ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.addUserPlaylists(userID, playlistIDs)
}

// WithinTx runs fn against a copy of the state and keeps the copy only if
// fn succeeds. Other callers are blocked until fn returns.
func (r *InMemoryRepository) WithinTx(ctx context.Context, fn func(Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	working := r.state.clone()
	if err := fn(&memoryTx{state: working}); err != nil {
		return err
	}
	r.state = working
	return nil
}

// memoryTx is the Store handed to WithinTx callbacks. The parent lock is
// already held, so it touches the state directly.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) FindPlaylist(ctx context.Context, where PlaylistWhere) (*models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.state.findPlaylist(where)
}

func (t *memoryTx) ListPlaylists(ctx context.Context, filter PlaylistFilter) ([]*models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.state.listPlaylists(filter), nil
}

func (t *memoryTx) CreatePlaylist(ctx context.Context, playlist *models.Playlist) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.state.createPlaylist(playlist)
}

func (t *memoryTx) UpdatePlaylist(ctx context.Context, id string, fields PlaylistFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.state.updatePlaylist(id, fields)
}

func (t *memoryTx) SetMediaRefs(ctx context.Context, playlistID string, mediaRefIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.state.setMediaRefs(playlistID, mediaRefIDs)
}

func (t *memoryTx) AddMediaRefs(ctx context.Context, playlistID string, mediaRefIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.state.addMediaRefs(playlistID, mediaRefIDs)
}

func (t *memoryTx) FindUser(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.state.findUser(id)
}

func (t *memoryTx) AddUserPlaylists(ctx context.Context, userID string, playlistIDs ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.state.addUserPlaylists(userID, playlistIDs)
}

type memoryState struct {
	playlists map[string]*models.Playlist
	// order holds playlist ids in creation order.
	order     []string
	mediaRefs map[string]models.MediaRef
	users     map[string]*models.User
}

func newMemoryState() *memoryState {
	return &memoryState{
		playlists: make(map[string]*models.Playlist),
		mediaRefs: make(map[string]models.MediaRef),
		users:     make(map[string]*models.User),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for id, p := range s.playlists {
		c.playlists[id] = p.Clone()
	}
	c.order = append([]string(nil), s.order...)
	for id, ref := range s.mediaRefs {
		c.mediaRefs[id] = ref
	}
	for id, u := range s.users {
		c.users[id] = cloneUser(u)
	}
	return c
}

func (s *memoryState) findPlaylist(where PlaylistWhere) (*models.Playlist, error) {
	if where.ID == "" && where.Slug == "" {
		return nil, ErrPlaylistNotFound
	}
	// An id match wins over a slug match.
	if p, ok := s.playlists[where.ID]; ok && where.ID != "" {
		return s.hydrate(p), nil
	}
	if where.Slug == "" {
		return nil, ErrPlaylistNotFound
	}
	for _, id := range s.order {
		if p := s.playlists[id]; p.Slug == where.Slug {
			return s.hydrate(p), nil
		}
	}
	return nil, ErrPlaylistNotFound
}

func (s *memoryState) listPlaylists(filter PlaylistFilter) []*models.Playlist {
	title := strings.ToLower(filter.Title)
	result := make([]*models.Playlist, 0)
	skipped := 0
	for i := len(s.order) - 1; i >= 0; i-- {
		p := s.playlists[s.order[i]]
		if filter.OwnerID != "" && p.OwnerID != filter.OwnerID {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(p.Title), title) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, s.hydrate(p))
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result
}

func (s *memoryState) createPlaylist(playlist *models.Playlist) error {
	if playlist == nil {
		return errors.New("playlist is required")
	}
	for _, existing := range s.playlists {
		if existing.ID == playlist.ID || existing.Slug == playlist.Slug {
			return ErrSlugTaken
		}
	}

	now := time.Now().UTC()
	playlist.CreatedAt = now
	playlist.UpdatedAt = now

	stored := playlist.Clone()
	stored.PlaylistItems = []string{}
	stored.MediaRefs = nil
	stored.URL = ""
	s.playlists[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	return nil
}

func (s *memoryState) updatePlaylist(id string, fields PlaylistFields) error {
	p, ok := s.playlists[id]
	if !ok {
		return ErrPlaylistNotFound
	}
	for otherID, other := range s.playlists {
		if otherID != id && other.Slug == fields.Slug {
			return ErrSlugTaken
		}
	}
	p.Title = fields.Title
	p.Slug = fields.Slug
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryState) setMediaRefs(playlistID string, ids []string) error {
	p, ok := s.playlists[playlistID]
	if !ok {
		return ErrPlaylistNotFound
	}
	if err := s.checkMediaRefs(ids); err != nil {
		return err
	}
	p.PlaylistItems = appendMissing(make([]string, 0, len(ids)), ids)
	return nil
}

func (s *memoryState) addMediaRefs(playlistID string, ids []string) error {
	p, ok := s.playlists[playlistID]
	if !ok {
		return ErrPlaylistNotFound
	}
	if err := s.checkMediaRefs(ids); err != nil {
		return err
	}
	p.PlaylistItems = appendMissing(p.PlaylistItems, ids)
	return nil
}

func (s *memoryState) checkMediaRefs(ids []string) error {
	for _, id := range ids {
		if _, ok := s.mediaRefs[id]; !ok {
			return ErrMediaRefNotFound
		}
	}
	return nil
}

func (s *memoryState) findUser(id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *memoryState) addUserPlaylists(userID string, playlistIDs []string) error {
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PlaylistIDs = appendMissing(u.PlaylistIDs, playlistIDs)
	return nil
}

func (s *memoryState) hydrate(p *models.Playlist) *models.Playlist {
	out := p.Clone()
	out.PlaylistItems = make([]string, 0, len(p.PlaylistItems))
	out.MediaRefs = make([]models.MediaRef, 0, len(p.PlaylistItems))
	for _, id := range p.PlaylistItems {
		ref, ok := s.mediaRefs[id]
		if !ok {
			continue
		}
		out.PlaylistItems = append(out.PlaylistItems, id)
		out.MediaRefs = append(out.MediaRefs, ref)
	}
	return out
}

// appendMissing appends the values of add not already present in dst,
// preserving order.
func appendMissing(dst, add []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(add))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range add {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

func cloneUser(src *models.User) *models.User {
	if src == nil {
		return nil
	}
	clone := *src
	if src.PlaylistIDs != nil {
		clone.PlaylistIDs = append([]string(nil), src.PlaylistIDs...)
	}
	return &clone
}
