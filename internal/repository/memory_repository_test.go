package repository

import (
	"context"
	"errors"
	"testing"

	"podverse/internal/models"
)

func seededMemory() *InMemoryRepository {
	repo := NewInMemoryRepository()
	repo.PutUser(models.User{ID: "u1", Name: "User One"})
	repo.PutMediaRef(models.MediaRef{ID: "m1", Title: "first"})
	repo.PutMediaRef(models.MediaRef{ID: "m2", Title: "second"})
	return repo
}

func TestInMemoryCreateAndFind(t *testing.T) {
	repo := seededMemory()
	ctx := context.Background()

	playlist := &models.Playlist{ID: "p1", Slug: "one", Title: "One", OwnerID: "u1"}
	if err := repo.CreatePlaylist(ctx, playlist); err != nil {
		t.Fatalf("CreatePlaylist error: %v", err)
	}
	if playlist.CreatedAt.IsZero() || !playlist.CreatedAt.Equal(playlist.UpdatedAt) {
		t.Fatalf("expected timestamps to be set, got %v / %v", playlist.CreatedAt, playlist.UpdatedAt)
	}

	for _, where := range []PlaylistWhere{{ID: "p1"}, {Slug: "one"}, {ID: "one", Slug: "one"}} {
		got, err := repo.FindPlaylist(ctx, where)
		if err != nil {
			t.Fatalf("FindPlaylist(%+v) error: %v", where, err)
		}
		if got.ID != "p1" {
			t.Fatalf("FindPlaylist(%+v) returned %q", where, got.ID)
		}
	}

	if _, err := repo.FindPlaylist(ctx, PlaylistWhere{}); !errors.Is(err, ErrPlaylistNotFound) {
		t.Fatalf("expected ErrPlaylistNotFound for empty where, got %v", err)
	}
}

func TestInMemoryCreateRejectsDuplicates(t *testing.T) {
	repo := seededMemory()
	ctx := context.Background()

	if err := repo.CreatePlaylist(ctx, &models.Playlist{ID: "p1", Slug: "one"}); err != nil {
		t.Fatalf("CreatePlaylist error: %v", err)
	}
	if err := repo.CreatePlaylist(ctx, &models.Playlist{ID: "p2", Slug: "one"}); !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken for slug, got %v", err)
	}
	if err := repo.CreatePlaylist(ctx, &models.Playlist{ID: "p1", Slug: "other"}); !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken for id, got %v", err)
	}
}

func TestInMemoryMembership(t *testing.T) {
	repo := seededMemory()
	ctx := context.Background()
	if err := repo.CreatePlaylist(ctx, &models.Playlist{ID: "p1", Slug: "one"}); err != nil {
		t.Fatalf("CreatePlaylist error: %v", err)
	}

	if err := repo.SetMediaRefs(ctx, "p1", []string{"m2"}); err != nil {
		t.Fatalf("SetMediaRefs error: %v", err)
	}
	if err := repo.AddMediaRefs(ctx, "p1", []string{"m1", "m2"}); err != nil {
		t.Fatalf("AddMediaRefs error: %v", err)
	}

	got, _ := repo.FindPlaylist(ctx, PlaylistWhere{ID: "p1"})
	if len(got.MediaRefs) != 2 || got.MediaRefs[0].ID != "m2" || got.MediaRefs[1].ID != "m1" {
		t.Fatalf("unexpected membership %+v", got.MediaRefs)
	}

	if err := repo.SetMediaRefs(ctx, "p1", []string{"m1"}); err != nil {
		t.Fatalf("SetMediaRefs error: %v", err)
	}
	got, _ = repo.FindPlaylist(ctx, PlaylistWhere{ID: "p1"})
	if len(got.PlaylistItems) != 1 || got.PlaylistItems[0] != "m1" {
		t.Fatalf("expected membership to be replaced, got %v", got.PlaylistItems)
	}

	if err := repo.AddMediaRefs(ctx, "p1", []string{"nope"}); !errors.Is(err, ErrMediaRefNotFound) {
		t.Fatalf("expected ErrMediaRefNotFound, got %v", err)
	}
	if err := repo.AddMediaRefs(ctx, "missing", []string{"m1"}); !errors.Is(err, ErrPlaylistNotFound) {
		t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
	}
}

func TestInMemoryReturnsCopies(t *testing.T) {
	repo := seededMemory()
	ctx := context.Background()
	_ = repo.CreatePlaylist(ctx, &models.Playlist{ID: "p1", Slug: "one", Title: "One"})

	got, _ := repo.FindPlaylist(ctx, PlaylistWhere{ID: "p1"})
	got.Title = "mutated"

	again, _ := repo.FindPlaylist(ctx, PlaylistWhere{ID: "p1"})
	if again.Title != "One" {
		t.Fatalf("expected stored playlist to be isolated from callers, got %q", again.Title)
	}
}

func TestInMemoryWithinTxRollsBack(t *testing.T) {
	repo := seededMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithinTx(ctx, func(tx Store) error {
		if err := tx.CreatePlaylist(ctx, &models.Playlist{ID: "p1", Slug: "one"}); err != nil {
			return err
		}
		if err := tx.AddUserPlaylists(ctx, "u1", "p1"); err != nil {
			return err
		}
		if _, err := tx.FindPlaylist(ctx, PlaylistWhere{ID: "p1"}); err != nil {
			t.Fatalf("expected playlist to be visible inside the transaction: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := repo.FindPlaylist(ctx, PlaylistWhere{ID: "p1"}); !errors.Is(err, ErrPlaylistNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
	user, _ := repo.FindUser(ctx, "u1")
	if len(user.PlaylistIDs) != 0 {
		t.Fatalf("expected user playlists to be rolled back, got %v", user.PlaylistIDs)
	}
}

func TestInMemoryWithinTxCommits(t *testing.T) {
	repo := seededMemory()
	ctx := context.Background()

	err := repo.WithinTx(ctx, func(tx Store) error {
		if err := tx.CreatePlaylist(ctx, &models.Playlist{ID: "p1", Slug: "one"}); err != nil {
			return err
		}
		return tx.AddUserPlaylists(ctx, "u1", "p1", "p1")
	})
	if err != nil {
		t.Fatalf("WithinTx error: %v", err)
	}

	user, _ := repo.FindUser(ctx, "u1")
	if len(user.PlaylistIDs) != 1 || user.PlaylistIDs[0] != "p1" {
		t.Fatalf("expected p1 once, got %v", user.PlaylistIDs)
	}
}

func TestInMemoryUpdatePlaylist(t *testing.T) {
	repo := seededMemory()
	ctx := context.Background()
	_ = repo.CreatePlaylist(ctx, &models.Playlist{ID: "p1", Slug: "one"})
	_ = repo.CreatePlaylist(ctx, &models.Playlist{ID: "p2", Slug: "two"})

	if err := repo.UpdatePlaylist(ctx, "p1", PlaylistFields{Title: "Renamed", Slug: "two"}); !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
	if err := repo.UpdatePlaylist(ctx, "p1", PlaylistFields{Title: "Renamed", Slug: "one"}); err != nil {
		t.Fatalf("UpdatePlaylist error: %v", err)
	}
	if err := repo.UpdatePlaylist(ctx, "missing", PlaylistFields{Slug: "x"}); !errors.Is(err, ErrPlaylistNotFound) {
		t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
	}
}

func TestInMemoryHonoursCancelledContext(t *testing.T) {
	repo := seededMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := repo.ListPlaylists(ctx, PlaylistFilter{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryFindPrefersIDOverSlug(t *testing.T) {
	repo := seededMemory()
	ctx := context.Background()
	_ = repo.CreatePlaylist(ctx, &models.Playlist{ID: "p1", Slug: "shared"})
	_ = repo.CreatePlaylist(ctx, &models.Playlist{ID: "shared", Slug: "p2-slug"})

	got, err := repo.FindPlaylist(ctx, PlaylistWhere{ID: "shared", Slug: "shared"})
	if err != nil {
		t.Fatalf("FindPlaylist error: %v", err)
	}
	if got.ID != "shared" {
		t.Fatalf("expected the id match to win, got %q", got.ID)
	}

	got, err = repo.FindPlaylist(ctx, PlaylistWhere{Slug: "shared"})
	if err != nil || got.ID != "p1" {
		t.Fatalf("expected slug lookup to return p1, got %+v, %v", got, err)
	}
}
