package service

import (
	"context"
	"errors"
	"testing"

	"podverse/internal/models"
)

func TestResourceCreateAppliesCallerAsOwner(t *testing.T) {
	res := NewResource(New(newTestRepo(t)), "https://podverse.fm/")

	created, err := res.Create(context.Background(), &models.Playlist{
		Title:   "Hooks",
		Slug:    "hooks",
		OwnerID: otherID,
	}, Params{UserID: ownerID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if created.OwnerID != ownerID {
		t.Fatalf("expected caller to own the playlist, got %q", created.OwnerID)
	}
	if created.URL != "https://podverse.fm/playlists/hooks" {
		t.Fatalf("unexpected url %q", created.URL)
	}
}

func TestResourceGetAddsURL(t *testing.T) {
	svc := New(newTestRepo(t))
	res := NewResource(svc, "http://localhost:8004")
	created := mustCreate(t, svc, &models.Playlist{Title: "No slug", OwnerID: ownerID})

	got, err := res.Get(context.Background(), created.ID, Params{})
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.URL != "http://localhost:8004/playlists/"+created.ID {
		t.Fatalf("unexpected url %q", got.URL)
	}
}

func TestResourceGetMissSkipsDecoration(t *testing.T) {
	res := NewResource(New(newTestRepo(t)), "http://localhost:8004")

	got, err := res.Get(context.Background(), "missing", Params{})
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestResourceUpdateAddsURLForNewSlug(t *testing.T) {
	svc := New(newTestRepo(t))
	res := NewResource(svc, "http://localhost:8004")
	created := mustCreate(t, svc, &models.Playlist{Title: "Before", Slug: "before", OwnerID: ownerID})

	updated, err := res.Update(context.Background(), created.ID, &models.Playlist{Title: "After", Slug: "after me"}, Params{UserID: ownerID})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.URL != "http://localhost:8004/playlists/after%20me" {
		t.Fatalf("unexpected url %q", updated.URL)
	}
}

func TestResourceStopsOnBeforeHookError(t *testing.T) {
	svc := New(newTestRepo(t))
	boom := errors.New("boom")
	var afterRan bool

	res := NewResourceWithHooks(svc,
		Hooks{Create: []Hook{func(context.Context, *HookContext) error { return boom }}},
		Hooks{Create: []Hook{func(context.Context, *HookContext) error {
			afterRan = true
			return nil
		}}},
	)

	_, err := res.Create(context.Background(), &models.Playlist{Title: "x", OwnerID: ownerID}, Params{UserID: ownerID})
	if !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if afterRan {
		t.Fatalf("after hooks must not run when a before hook fails")
	}

	all, _ := svc.Find(context.Background(), Params{}.Query)
	if len(all) != 0 {
		t.Fatalf("expected nothing to be created, got %d", len(all))
	}
}

func TestResourceFindRunsHooksInOrder(t *testing.T) {
	svc := New(newTestRepo(t))
	mustCreate(t, svc, &models.Playlist{Title: "One", OwnerID: ownerID})

	var order []string
	record := func(name string) Hook {
		return func(context.Context, *HookContext) error {
			order = append(order, name)
			return nil
		}
	}
	res := NewResourceWithHooks(svc,
		Hooks{Find: []Hook{record("before-1"), record("before-2")}},
		Hooks{Find: []Hook{record("after-1"), AddURL("http://x")}},
	)

	results, err := res.Find(context.Background(), Params{})
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if !equalStrings(order, []string{"before-1", "before-2", "after-1"}) {
		t.Fatalf("unexpected hook order %v", order)
	}
	if len(results) != 1 || results[0].URL == "" {
		t.Fatalf("expected decorated results, got %#v", results)
	}
}

func TestResourceCreateReplacesCallerURL(t *testing.T) {
	res := NewResource(New(newTestRepo(t)), "https://podverse.fm")

	created, err := res.Create(context.Background(), &models.Playlist{
		Title: "Mine",
		Slug:  "mine",
		URL:   "https://attacker.example/mine",
	}, Params{UserID: ownerID})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.URL != "https://podverse.fm/playlists/mine" {
		t.Fatalf("expected server-derived url, got %q", created.URL)
	}
}

func TestResourceUpdateReplacesCallerURL(t *testing.T) {
	svc := New(newTestRepo(t))
	res := NewResource(svc, "https://podverse.fm")
	created := mustCreate(t, svc, &models.Playlist{Title: "Mine", Slug: "mine", OwnerID: ownerID})

	updated, err := res.Update(context.Background(), created.ID, &models.Playlist{
		Title: "Still mine",
		Slug:  "mine",
		URL:   "https://attacker.example/mine",
	}, Params{UserID: ownerID})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.URL != "https://podverse.fm/playlists/mine" {
		t.Fatalf("expected server-derived url, got %q", updated.URL)
	}

	stored, _ := svc.Get(context.Background(), created.ID)
	if stored.URL != "" {
		t.Fatalf("caller url must not be persisted, got %q", stored.URL)
	}
}
