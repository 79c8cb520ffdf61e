// seed inserts a handful of sample events into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/arjunbhagat/eventsched/internal/domain"
	"github.com/arjunbhagat/eventsched/internal/infrastructure/postgres"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewEventRepository(pool)
	now := time.Now().UTC()

	events := []*domain.EventRecord{
		{
			Schema:   "app",
			Name:     "purge_expired_sessions",
			Definer:  "seed@localhost",
			TimeZone: "UTC",
			Body:     "https://httpbin.org/post",
			Schedule: domain.Schedule{
				Kind:       domain.KindRecurring,
				Expression: 1,
				Unit:       domain.IntervalHour,
				Starts:     &now,
			},
			OnCompletion: domain.OnCompletionPreserve,
			Status:       domain.StatusEnabled,
			Comment:      "seeded recurring event",
		},
		{
			Schema:   "app",
			Name:     "one_time_migration",
			Definer:  "seed@localhost",
			TimeZone: "UTC",
			Body:     "https://httpbin.org/post",
			Schedule: domain.Schedule{
				Kind:      domain.KindOneShot,
				ExecuteAt: now.Add(time.Minute),
			},
			OnCompletion: domain.OnCompletionDrop,
			Status:       domain.StatusEnabled,
			Comment:      "seeded one-shot event",
		},
	}

	var inserted, skipped int
	for _, e := range events {
		e.Created = now
		e.Modified = now
		if err := e.ComputeNextExecution(now); err != nil {
			log.Fatalf("compute next execution for %s.%s: %v", e.Schema, e.Name, err)
		}

		if err := repo.PersistCreate(ctx, e); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				skipped++
				continue
			}
			log.Fatalf("insert event %s.%s: %v", e.Schema, e.Name, err)
		}
		inserted++
	}

	fmt.Println("Seed complete")
	fmt.Printf("  Events created: %d  (skipped %d already existing)\n", inserted, skipped)
}
