package main

import (
	"context"
	"database/sql"
	"fmt"

	"podverse/internal/models"
	"podverse/internal/repository"
)

const demoUserID = "demo@podverse.fm"

func demoMediaRefs() []models.MediaRef {
	end := func(v int) *int { return &v }
	return []models.MediaRef{
		{
			ID:              "5f0e6a1c-3d2b-4f4e-9a61-0d6a3c1b7e01",
			Title:           "The cold open",
			StartTime:       0,
			EndTime:         end(95),
			EpisodeTitle:    "Episode 1: Pilot",
			PodcastTitle:    "Podverse Demo",
			EpisodeMediaURL: "https://podverse.fm/demo/episode-1.mp3",
		},
		{
			ID:              "5f0e6a1c-3d2b-4f4e-9a61-0d6a3c1b7e02",
			Title:           "Best listener question",
			StartTime:       1260,
			EndTime:         end(1422),
			EpisodeTitle:    "Episode 2: Mailbag",
			PodcastTitle:    "Podverse Demo",
			EpisodeMediaURL: "https://podverse.fm/demo/episode-2.mp3",
		},
		{
			ID:              "5f0e6a1c-3d2b-4f4e-9a61-0d6a3c1b7e03",
			Title:           "Closing thoughts",
			StartTime:       2710,
			EpisodeTitle:    "Episode 2: Mailbag",
			PodcastTitle:    "Podverse Demo",
			EpisodeMediaURL: "https://podverse.fm/demo/episode-2.mp3",
		},
	}
}

// seedMemory loads the demo user and clips into an in-memory repository.
func seedMemory(repo *repository.InMemoryRepository) {
	repo.PutUser(models.User{ID: demoUserID, Name: "Demo Listener"})
	for _, ref := range demoMediaRefs() {
		repo.PutMediaRef(ref)
	}
}

// seedDatabase inserts the demo user and clips unless they already exist.
func seedDatabase(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, demoUserID, "Demo Listener"); err != nil {
		return fmt.Errorf("insert demo user: %w", err)
	}

	for _, ref := range demoMediaRefs() {
		var endTime any
		if ref.EndTime != nil {
			endTime = *ref.EndTime
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO media_refs (id, title, start_time, end_time, episode_title, podcast_title, episode_media_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, ref.ID, ref.Title, ref.StartTime, endTime, ref.EpisodeTitle, ref.PodcastTitle, ref.EpisodeMediaURL); err != nil {
			return fmt.Errorf("insert demo media ref %q: %w", ref.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	tx = nil

	return nil
}
