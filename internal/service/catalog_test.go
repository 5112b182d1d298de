package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/rentalops/internal/auth"
	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/models"
	"github.com/punchamoorthee/rentalops/internal/store/memory"
)

func newCatalog(t *testing.T) (*CatalogService, *memory.Store, *auth.TokenService) {
	t.Helper()
	s := memory.NewStore()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	return NewCatalogService(s, tokens), s, tokens
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestCreateMovie_EmbedsGenre(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCatalog(t)

	genre, err := svc.CreateGenre(ctx, models.GenreRequest{Name: "Comedy"})
	if err != nil {
		t.Fatalf("CreateGenre failed: %v", err)
	}

	movie, err := svc.CreateMovie(ctx, models.MovieRequest{
		Title:           "Airplane!",
		GenreID:         genre.ID,
		NumberInStock:   intPtr(4),
		DailyRentalRate: floatPtr(1.5),
	})
	if err != nil {
		t.Fatalf("CreateMovie failed: %v", err)
	}
	if movie.Genre.Name != "Comedy" {
		t.Errorf("expected genre Comedy, got %s", movie.Genre.Name)
	}
	if !movie.DailyRentalRate.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("expected rate 1.5, got %s", movie.DailyRentalRate)
	}
}

func TestCreateMovie_UnknownGenre(t *testing.T) {
	svc, _, _ := newCatalog(t)

	_, err := svc.CreateMovie(context.Background(), models.MovieRequest{
		Title:           "Airplane!",
		GenreID:         "00000000-0000-0000-0000-000000000000",
		NumberInStock:   intPtr(1),
		DailyRentalRate: floatPtr(1),
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateCustomer_DuplicateName(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCatalog(t)
	req := models.CustomerRequest{Name: "Bob Jones", Phone: "5551234"}

	if _, err := svc.CreateCustomer(ctx, req); err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}
	if _, err := svc.CreateCustomer(ctx, req); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens := newCatalog(t)

	user, err := svc.RegisterUser(ctx, models.UserRequest{
		Name:     "Grace Hopper",
		Email:    "grace@example.com",
		Password: "Str0ng!pass",
		IsAdmin:  true,
	})
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if user.PasswordHash == "Str0ng!pass" || user.PasswordHash == "" {
		t.Fatal("expected password to be hashed")
	}

	_, err = svc.RegisterUser(ctx, models.UserRequest{Name: "Grace Again", Email: "grace@example.com", Password: "Str0ng!pass"})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	token, err := svc.Login(ctx, models.LoginRequest{Email: "grace@example.com", Password: "Str0ng!pass"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	actor, err := tokens.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if actor.ID != user.ID {
		t.Errorf("unexpected actor %+v", actor)
	}
	if user.IsAdmin || actor.IsAdmin {
		t.Error("expected self registration to ignore isAdmin")
	}
}

func TestUpdateUser_AdminFlag(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCatalog(t)

	user, err := svc.RegisterUser(ctx, models.UserRequest{Name: "Ada Lovelace", Email: "ada@example.com", Password: "Str0ng!pass"})
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	req := models.UserRequest{Name: "Ada Lovelace", Email: "ada@example.com", Password: "Str0ng!pass", IsAdmin: true}

	updated, err := svc.UpdateUser(ctx, &domain.Actor{ID: user.ID}, user.ID, req)
	if err != nil {
		t.Fatalf("UpdateUser as owner failed: %v", err)
	}
	if updated.IsAdmin {
		t.Error("expected owner update to keep the stored admin flag")
	}

	updated, err = svc.UpdateUser(ctx, &domain.Actor{ID: "admin-1", IsAdmin: true}, user.ID, req)
	if err != nil {
		t.Fatalf("UpdateUser as admin failed: %v", err)
	}
	if !updated.IsAdmin {
		t.Error("expected admin update to grant the admin flag")
	}

	req.IsAdmin = false
	updated, err = svc.UpdateUser(ctx, &domain.Actor{ID: user.ID}, user.ID, req)
	if err != nil {
		t.Fatalf("UpdateUser as owner failed: %v", err)
	}
	if !updated.IsAdmin {
		t.Error("expected owner update to keep the granted admin flag")
	}
}

func TestLogin_Failures(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCatalog(t)
	if _, err := svc.RegisterUser(ctx, models.UserRequest{Name: "Alan Turing", Email: "alan@example.com", Password: "Str0ng!pass"}); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}

	_, err := svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "Str0ng!pass"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown email, got %v", err)
	}

	_, err = svc.Login(ctx, models.LoginRequest{Email: "alan@example.com", Password: "Wr0ng!pass"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestGenreLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCatalog(t)

	g, err := svc.CreateGenre(ctx, models.GenreRequest{Name: "Drama"})
	if err != nil {
		t.Fatalf("CreateGenre failed: %v", err)
	}
	updated, err := svc.UpdateGenre(ctx, g.ID, models.GenreRequest{Name: "Thriller"})
	if err != nil {
		t.Fatalf("UpdateGenre failed: %v", err)
	}
	if updated.Name != "Thriller" {
		t.Errorf("expected Thriller, got %s", updated.Name)
	}
	if _, err := svc.DeleteGenre(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGenre failed: %v", err)
	}
	if _, err := svc.GetGenre(ctx, g.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
