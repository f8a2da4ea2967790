package service

import (
	"context"
	"errors"
	"testing"

	"github.com/smms/internal/db"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_RegisterValidation(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewUserService(gdb, bcrypt.MinCost)
	ctx := context.Background()

	tests := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{name: "bad email", input: RegisterInput{Email: "not-an-email", Password: "abc123", ConfirmPassword: "abc123"}, want: ErrEmailInvalid},
		{name: "short password", input: RegisterInput{Email: "a@example.com", Password: "ab1", ConfirmPassword: "ab1"}, want: ErrPasswordTooWeak},
		{name: "letters only", input: RegisterInput{Email: "a@example.com", Password: "abcdefg", ConfirmPassword: "abcdefg"}, want: ErrPasswordTooWeak},
		{name: "digits only", input: RegisterInput{Email: "a@example.com", Password: "1234567", ConfirmPassword: "1234567"}, want: ErrPasswordTooWeak},
		{name: "mismatch", input: RegisterInput{Email: "a@example.com", Password: "abc123", ConfirmPassword: "abc124"}, want: ErrPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.input); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	user, err := svc.Register(ctx, RegisterInput{Email: " New@Example.com ", Password: "abc123", ConfirmPassword: "abc123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "new@example.com" || user.Role != db.RoleUser || !user.IsActive {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash == "abc123" {
		t.Fatalf("password must be hashed")
	}

	if _, err := svc.Register(ctx, RegisterInput{Email: "new@example.com", Password: "abc123", ConfirmPassword: "abc123"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserService_Authenticate(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewUserService(gdb, bcrypt.MinCost)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "login@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "LOGIN@example.com", "secret1"); err != nil {
		t.Fatalf("expected case-insensitive login, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "login@example.com", "wrong1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ghost@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	admin := createTestUser(t, gdb, "boss@example.com")
	if err := svc.Deactivate(ctx, admin.ID, user.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "login@example.com", "secret1"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	if err := svc.Activate(ctx, user.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "login@example.com", "secret1"); err != nil {
		t.Fatalf("expected login after reactivation, got %v", err)
	}
}

func TestUserService_AdminOperations(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewUserService(gdb, bcrypt.MinCost)
	ctx := context.Background()

	admin := createTestUser(t, gdb, "admin@example.com")
	if err := gdb.Model(&admin).Update("role", db.RoleAdmin).Error; err != nil {
		t.Fatalf("make admin: %v", err)
	}
	member := createTestUser(t, gdb, "member@example.com")

	if err := svc.Deactivate(ctx, admin.ID, admin.ID); !errors.Is(err, ErrCannotModifySelf) {
		t.Fatalf("expected self deactivation rejected, got %v", err)
	}
	if err := svc.Demote(ctx, admin.ID, admin.ID); !errors.Is(err, ErrCannotModifySelf) {
		t.Fatalf("expected self demotion rejected, got %v", err)
	}
	if err := svc.Demote(ctx, admin.ID, member.ID); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if err := svc.Promote(ctx, member.ID); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := svc.Promote(ctx, member.ID); !errors.Is(err, ErrAlreadyAdmin) {
		t.Fatalf("expected ErrAlreadyAdmin, got %v", err)
	}
	if err := svc.Demote(ctx, admin.ID, member.ID); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if err := svc.Activate(ctx, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	posts := NewPostService(gdb, nil)
	if _, err := posts.Create(ctx, member.ID, PostInput{Content: "stat"}); err != nil {
		t.Fatalf("create post: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalUsers != 2 || stats.AdminCount != 1 || stats.TotalPosts != 1 || stats.DraftPosts != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	users, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 || users[0].ID != member.ID {
		t.Fatalf("expected newest user first, got %+v", users)
	}
}
