package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:post-store-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func createStoreUser(t *testing.T, gdb *gorm.DB, email string) User {
	t.Helper()
	user := User{Email: email, PasswordHash: "x", Role: RoleUser, IsActive: true}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func strPtr(value string) *string {
	return &value
}

func TestPostStorePublishDueUsesStringComparison(t *testing.T) {
	gdb := setupStoreTestDB(t)
	store := NewPostStore(gdb)
	ctx := context.Background()
	user := createStoreUser(t, gdb, "store@example.com")

	posts := []Post{
		{UserID: user.ID, Content: "due", Status: PostStatusScheduled, ScheduledTime: strPtr("2024-06-01T00:00:00")},
		{UserID: user.ID, Content: "exact", Status: PostStatusScheduled, ScheduledTime: strPtr("2024-06-01T12:00:00")},
		{UserID: user.ID, Content: "future", Status: PostStatusScheduled, ScheduledTime: strPtr("2024-06-01T12:00:01")},
		{UserID: user.ID, Content: "draft", Status: PostStatusDraft},
	}
	for i := range posts {
		if err := store.Insert(ctx, &posts[i]); err != nil {
			t.Fatalf("insert post: %v", err)
		}
	}

	publishedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	count, err := store.PublishDue(ctx, "2024-06-01T12:00:00", publishedAt)
	if err != nil {
		t.Fatalf("publish due: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 published posts, got %d", count)
	}

	again, err := store.PublishDue(ctx, "2024-06-01T12:00:00", publishedAt)
	if err != nil {
		t.Fatalf("publish due again: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected repeated scan to publish nothing, got %d", again)
	}

	future, err := store.Get(ctx, posts[2].ID)
	if err != nil {
		t.Fatalf("get future post: %v", err)
	}
	if future.Status != PostStatusScheduled || future.PublishedAt != nil {
		t.Fatalf("future post should stay scheduled, got %+v", future)
	}

	due, err := store.Get(ctx, posts[0].ID)
	if err != nil {
		t.Fatalf("get due post: %v", err)
	}
	if due.Status != PostStatusPublished || due.PublishedAt == nil {
		t.Fatalf("due post should be published, got %+v", due)
	}
	if due.ScheduledTimeValue() != "2024-06-01T00:00:00" {
		t.Fatalf("expected scheduled time retained, got %q", due.ScheduledTimeValue())
	}
}

func TestPostStoreUpdateWhereRespectsCondition(t *testing.T) {
	gdb := setupStoreTestDB(t)
	store := NewPostStore(gdb)
	ctx := context.Background()
	owner := createStoreUser(t, gdb, "owner@example.com")
	other := createStoreUser(t, gdb, "other@example.com")

	post := Post{UserID: owner.ID, Content: "body", Status: PostStatusDraft}
	if err := store.Insert(ctx, &post); err != nil {
		t.Fatalf("insert post: %v", err)
	}

	tests := []struct {
		name string
		cond PostCondition
		want int64
	}{
		{name: "wrong owner", cond: PostCondition{ID: post.ID, OwnerID: other.ID}, want: 0},
		{name: "wrong status", cond: PostCondition{ID: post.ID, OwnerID: owner.ID, Statuses: []string{PostStatusScheduled}}, want: 0},
		{name: "matching", cond: PostCondition{ID: post.ID, OwnerID: owner.ID, Statuses: []string{PostStatusDraft, PostStatusScheduled}}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := store.UpdateWhere(ctx, tt.cond, map[string]interface{}{"title": tt.name})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if rows != tt.want {
				t.Fatalf("expected %d rows, got %d", tt.want, rows)
			}
		})
	}
}

func TestPostStoreDeleteWhereAndCounts(t *testing.T) {
	gdb := setupStoreTestDB(t)
	store := NewPostStore(gdb)
	ctx := context.Background()
	user := createStoreUser(t, gdb, "count@example.com")

	statuses := []string{PostStatusDraft, PostStatusDraft, PostStatusScheduled, PostStatusPublished}
	var ids []uint
	for _, status := range statuses {
		post := Post{UserID: user.ID, Content: status, Status: status}
		if status == PostStatusScheduled {
			post.ScheduledTime = strPtr("2099-01-01T00:00:00")
		}
		if err := store.Insert(ctx, &post); err != nil {
			t.Fatalf("insert post: %v", err)
		}
		ids = append(ids, post.ID)
	}

	counts, err := store.CountByStatus(ctx, user.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[PostStatusDraft] != 2 || counts[PostStatusScheduled] != 1 || counts[PostStatusPublished] != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	rows, err := store.DeleteWhere(ctx, PostCondition{ID: ids[3], Statuses: []string{PostStatusDraft, PostStatusScheduled}})
	if err != nil {
		t.Fatalf("delete published: %v", err)
	}
	if rows != 0 {
		t.Fatalf("published post must not match delete condition")
	}

	rows, err = store.DeleteWhere(ctx, PostCondition{ID: ids[0], OwnerID: user.ID})
	if err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected draft deleted, got %d rows", rows)
	}

	var remaining int64
	if err := gdb.Unscoped().Model(&Post{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count remaining: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("expected hard delete leaving 3 rows, got %d", remaining)
	}

	scheduled, err := store.ListScheduled(ctx, 10)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(scheduled) != 1 || scheduled[0].ID != ids[2] {
		t.Fatalf("unexpected scheduled list %+v", scheduled)
	}
}

func TestEnsureAdminCreatesOnce(t *testing.T) {
	gdb := setupStoreTestDB(t)

	created, err := EnsureAdmin(gdb, " Admin@Example.com ", "admin123", 4)
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if !created {
		t.Fatalf("expected admin to be created")
	}

	created, err = EnsureAdmin(gdb, "admin@example.com", "admin123", 4)
	if err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	if created {
		t.Fatalf("expected existing admin to be kept")
	}

	var admin User
	if err := gdb.Where("email = ?", "admin@example.com").First(&admin).Error; err != nil {
		t.Fatalf("load admin: %v", err)
	}
	if !admin.IsAdmin() || !admin.IsActive {
		t.Fatalf("unexpected admin %+v", admin)
	}

	created, err = EnsureAdmin(gdb, "", "", 4)
	if err != nil || created {
		t.Fatalf("expected empty credentials to be skipped, got %v %v", created, err)
	}
}
