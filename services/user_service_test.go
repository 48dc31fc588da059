package services

import (
	"context"
	"errors"
	"testing"

	"civictrack-be/models"
)

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	svc := NewUserService(newTestStore(t).Users)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ada", "Ada@Example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != models.RoleCitizen {
		t.Errorf("expected citizen role, got %s", user.Role)
	}
	if user.Password == "secret1" {
		t.Errorf("expected password to be hashed")
	}

	if _, err := svc.Register(ctx, "Ada again", "ada@example.com", "secret2"); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate email, got %v", err)
	}

	got, err := svc.Authenticate(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("authenticated the wrong user")
	}

	if _, err := svc.Authenticate(ctx, "ada@example.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for a bad password, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for unknown email, got %v", err)
	}
}

func TestUserService_RegisterValidation(t *testing.T) {
	svc := NewUserService(newTestStore(t).Users)

	if _, err := svc.Register(context.Background(), "Bob", "bob@example.com", "123"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for a short password, got %v", err)
	}
	if _, err := svc.Register(context.Background(), " ", "bob@example.com", "123456"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for a blank name, got %v", err)
	}
}

func TestUserService_EnsureAdmin(t *testing.T) {
	svc := NewUserService(newTestStore(t).Users)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "Root", "root@example.com", "rootpass")
	if err != nil {
		t.Fatalf("EnsureAdmin create: %v", err)
	}
	if !created.IsAdmin() {
		t.Errorf("expected admin role")
	}

	citizen, err := svc.Register(ctx, "Cy", "cy@example.com", "cypass1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	promoted, err := svc.EnsureAdmin(ctx, "", "cy@example.com", "")
	if err != nil {
		t.Fatalf("EnsureAdmin promote: %v", err)
	}
	if promoted.ID != citizen.ID || !promoted.IsAdmin() {
		t.Errorf("expected existing user to be promoted")
	}

	stored, err := svc.GetUser(ctx, citizen.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !stored.IsAdmin() {
		t.Errorf("expected promotion to be stored")
	}
}
