package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"podverse/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	playlistColumns = `id, slug, title, owner_id, owner_name, created_at, updated_at`
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// PostgresRepository persists playlists in PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
	q  querier
}

// NewPostgresRepository creates a repository backed by PostgreSQL.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, q: db}
}

// WithinTx runs fn inside a database transaction. Calls made on an already
// transactional repository join the running transaction.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(Store) error) (err error) {
	if _, ok := r.q.(*sql.Tx); ok {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&PostgresRepository{db: r.db, q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// FindPlaylist returns the playlist matching the id or slug in where.
func (r *PostgresRepository) FindPlaylist(ctx context.Context, where PlaylistWhere) (*models.Playlist, error) {
	var (
		clauses []string
		args    []any
	)
	if where.ID != "" {
		args = append(args, where.ID)
		clauses = append(clauses, fmt.Sprintf("id = $%d", len(args)))
	}
	if where.Slug != "" {
		args = append(args, where.Slug)
		clauses = append(clauses, fmt.Sprintf("slug = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return nil, ErrPlaylistNotFound
	}

	// An id match wins over a slug match.
	order := "created_at ASC"
	if where.ID != "" {
		order = "(id = $1) DESC, created_at ASC"
	}

	row := r.q.QueryRowContext(ctx, `
		SELECT `+playlistColumns+`
		FROM playlists
		WHERE `+strings.Join(clauses, " OR ")+`
		ORDER BY `+order+`
		LIMIT 1`, args...)

	playlist, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlaylistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}

	if err := r.hydrate(ctx, playlist); err != nil {
		return nil, err
	}
	return playlist, nil
}

// ListPlaylists returns playlists ordered by creation time (newest first).
func (r *PostgresRepository) ListPlaylists(ctx context.Context, filter PlaylistFilter) ([]*models.Playlist, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Title != "" {
		args = append(args, "%"+filter.Title+"%")
		clauses = append(clauses, fmt.Sprintf("title ILIKE $%d", len(args)))
	}

	query := `
		SELECT ` + playlistColumns + `
		FROM playlists`
	if len(clauses) > 0 {
		query += `
		WHERE ` + strings.Join(clauses, " AND ")
	}
	query += `
		ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]*models.Playlist, 0)
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlists: %w", err)
	}
	// Release the connection before hydrating; a transaction cannot run a
	// second query while rows are still open.
	rows.Close()

	for _, playlist := range playlists {
		if err := r.hydrate(ctx, playlist); err != nil {
			return nil, err
		}
	}
	return playlists, nil
}

// CreatePlaylist inserts the playlist row. Membership is written separately.
func (r *PostgresRepository) CreatePlaylist(ctx context.Context, playlist *models.Playlist) error {
	if playlist == nil {
		return errors.New("playlist is required")
	}

	now := time.Now().UTC()
	if err := r.q.QueryRowContext(ctx, `
		INSERT INTO playlists (id, slug, title, owner_id, owner_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING created_at, updated_at`,
		playlist.ID, playlist.Slug, playlist.Title, nullIfEmpty(playlist.OwnerID), playlist.OwnerName, now,
	).Scan(&playlist.CreatedAt, &playlist.UpdatedAt); err != nil {
		return fmt.Errorf("insert playlist: %w", classify(err))
	}
	return nil
}

// UpdatePlaylist writes the mutable columns of the playlist with the given id.
func (r *PostgresRepository) UpdatePlaylist(ctx context.Context, id string, fields PlaylistFields) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE playlists
		SET title = $1, slug = $2, updated_at = $3
		WHERE id = $4`,
		fields.Title, fields.Slug, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update playlist: %w", classify(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrPlaylistNotFound
	}
	return nil
}

// SetMediaRefs replaces the playlist's membership with mediaRefIDs.
func (r *PostgresRepository) SetMediaRefs(ctx context.Context, playlistID string, mediaRefIDs []string) (err error) {
	if _, err = r.q.ExecContext(ctx, `DELETE FROM playlist_items WHERE playlist_id = $1`, playlistID); err != nil {
		return fmt.Errorf("clear playlist items: %w", err)
	}
	return r.insertItems(ctx, playlistID, appendMissing(nil, mediaRefIDs), 0)
}

// AddMediaRefs appends ids that are not yet members after the current last position.
func (r *PostgresRepository) AddMediaRefs(ctx context.Context, playlistID string, mediaRefIDs []string) error {
	ids := appendMissing(nil, mediaRefIDs)
	if len(ids) == 0 {
		return nil
	}

	var last int
	if err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1)
		FROM playlist_items
		WHERE playlist_id = $1`, playlistID).Scan(&last); err != nil {
		return fmt.Errorf("next playlist item position: %w", err)
	}
	return r.insertItems(ctx, playlistID, ids, last+1)
}

// FindUser returns the user with the given id.
func (r *PostgresRepository) FindUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, playlist_ids
		FROM users
		WHERE id = $1`, id).Scan(&user.ID, &user.Name, pq.Array(&user.PlaylistIDs))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// AddUserPlaylists appends playlist ids the user does not list yet.
func (r *PostgresRepository) AddUserPlaylists(ctx context.Context, userID string, playlistIDs ...string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET playlist_ids = playlist_ids || ARRAY(
			SELECT t.pid
			FROM unnest($2::text[]) WITH ORDINALITY AS t(pid, n)
			WHERE NOT (t.pid = ANY(playlist_ids))
			ORDER BY t.n)
		WHERE id = $1`, userID, pq.Array(appendMissing(nil, playlistIDs)))
	if err != nil {
		return fmt.Errorf("update user playlists: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) insertItems(ctx context.Context, playlistID string, ids []string, position int) (err error) {
	if len(ids) == 0 {
		return nil
	}
	stmt, err := r.q.PrepareContext(ctx, `
		INSERT INTO playlist_items (playlist_id, media_ref_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (playlist_id, media_ref_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert playlist item: %w", err)
	}
	defer stmt.Close()

	for idx, id := range ids {
		if _, err = stmt.ExecContext(ctx, playlistID, id, position+idx); err != nil {
			return fmt.Errorf("insert playlist item: %w", classify(err))
		}
	}
	return nil
}

func (r *PostgresRepository) hydrate(ctx context.Context, playlist *models.Playlist) error {
	refs, err := r.listMediaRefs(ctx, playlist.ID)
	if err != nil {
		return err
	}
	playlist.MediaRefs = refs
	playlist.PlaylistItems = make([]string, 0, len(refs))
	for _, ref := range refs {
		playlist.PlaylistItems = append(playlist.PlaylistItems, ref.ID)
	}
	return nil
}

func (r *PostgresRepository) listMediaRefs(ctx context.Context, playlistID string) ([]models.MediaRef, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT m.id, m.title, m.start_time, m.end_time,
			COALESCE(m.episode_title, ''), COALESCE(m.podcast_title, ''), COALESCE(m.episode_media_url, '')
		FROM playlist_items pi
		JOIN media_refs m ON m.id = pi.media_ref_id
		WHERE pi.playlist_id = $1
		ORDER BY pi.position ASC`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list playlist media refs: %w", err)
	}
	defer rows.Close()

	refs := make([]models.MediaRef, 0)
	for rows.Next() {
		var (
			ref     models.MediaRef
			endTime sql.NullInt64
		)
		if err := rows.Scan(&ref.ID, &ref.Title, &ref.StartTime, &endTime,
			&ref.EpisodeTitle, &ref.PodcastTitle, &ref.EpisodeMediaURL); err != nil {
			return nil, fmt.Errorf("scan media ref: %w", err)
		}
		if endTime.Valid {
			v := int(endTime.Int64)
			ref.EndTime = &v
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media refs: %w", err)
	}
	return refs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(row rowScanner) (*models.Playlist, error) {
	var (
		playlist models.Playlist
		ownerID  sql.NullString
	)
	if err := row.Scan(&playlist.ID, &playlist.Slug, &playlist.Title, &ownerID, &playlist.OwnerName,
		&playlist.CreatedAt, &playlist.UpdatedAt); err != nil {
		return nil, err
	}
	playlist.OwnerID = ownerID.String
	return &playlist, nil
}

// classify maps constraint violations onto repository sentinel errors.
func classify(err error) error {
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		return ErrSlugTaken
	case pgForeignKeyViolation:
		return ErrMediaRefNotFound
	}
	return err
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
