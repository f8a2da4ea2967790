package service

import (
	"context"
	"testing"

	"github.com/smms/internal/clock"
	"github.com/smms/internal/db"
)

func TestAnalyticsService_ForUser(t *testing.T) {
	gdb := setupServiceTestDB(t)
	clk := clock.NewFixed(clock.MustParse("2024-06-15T10:00:00"))
	posts := NewPostService(gdb, clk)
	analytics := NewAnalyticsService(gdb, clk)
	ctx := context.Background()
	user := createTestUser(t, gdb, "stats@example.com")
	other := createTestUser(t, gdb, "other-stats@example.com")

	create := func(owner uint, at string, input PostInput) {
		t.Helper()
		clk.Set(clock.MustParse(at))
		if _, err := posts.Create(ctx, owner, input); err != nil {
			t.Fatalf("create post: %v", err)
		}
	}

	create(user.ID, "2023-01-10T00:00:00", PostInput{Content: "too old"})
	create(user.ID, "2024-04-02T00:00:00", PostInput{Content: "april draft"})
	create(user.ID, "2024-06-01T00:00:00", PostInput{Content: "june published", Status: db.PostStatusPublished})
	create(user.ID, "2024-06-03T00:00:00", PostInput{Content: "june scheduled", Status: db.PostStatusScheduled, ScheduledTime: "2024-07-01T00:00:00"})
	create(other.ID, "2024-06-03T00:00:00", PostInput{Content: "someone else"})

	clk.Set(clock.MustParse("2024-06-15T10:00:00"))
	result, err := analytics.ForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}

	if result.Counts.Total != 4 || result.Counts.Draft != 2 || result.Counts.Published != 1 || result.Counts.Scheduled != 1 {
		t.Fatalf("unexpected counts %+v", result.Counts)
	}
	if len(result.Monthly) != 12 {
		t.Fatalf("expected 12 months, got %d", len(result.Monthly))
	}
	if result.Monthly[0].Month != "2023-07" || result.Monthly[11].Month != "2024-06" {
		t.Fatalf("unexpected month range %s..%s", result.Monthly[0].Month, result.Monthly[11].Month)
	}

	june := result.Monthly[11]
	if june.Published != 1 || june.Scheduled != 1 || june.Draft != 0 {
		t.Fatalf("unexpected june counts %+v", june)
	}
	april := result.Monthly[9]
	if april.Month != "2024-04" || april.Draft != 1 {
		t.Fatalf("unexpected april counts %+v", april)
	}
}
