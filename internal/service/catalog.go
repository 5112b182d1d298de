package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/rentalops/internal/auth"
	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/models"
	"github.com/punchamoorthee/rentalops/internal/port"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// CatalogService covers genres, movies, customers and users. None of these
// need more than one record changed at a time.
type CatalogService struct {
	store  port.CatalogStore
	tokens *auth.TokenService
}

func NewCatalogService(store port.CatalogStore, tokens *auth.TokenService) *CatalogService {
	return &CatalogService{store: store, tokens: tokens}
}

func (s *CatalogService) GetGenre(ctx context.Context, id string) (*domain.Genre, error) {
	return s.store.GetGenre(ctx, id)
}

func (s *CatalogService) CreateGenre(ctx context.Context, req models.GenreRequest) (*domain.Genre, error) {
	return s.store.CreateGenre(ctx, &domain.Genre{Name: req.Name})
}

func (s *CatalogService) UpdateGenre(ctx context.Context, id string, req models.GenreRequest) (*domain.Genre, error) {
	return s.store.UpdateGenre(ctx, &domain.Genre{ID: id, Name: req.Name})
}

func (s *CatalogService) DeleteGenre(ctx context.Context, id string) (*domain.Genre, error) {
	return s.store.DeleteGenre(ctx, id)
}

func (s *CatalogService) GetMovie(ctx context.Context, id string) (*domain.Movie, error) {
	return s.store.GetMovie(ctx, id)
}

func (s *CatalogService) CreateMovie(ctx context.Context, req models.MovieRequest) (*domain.Movie, error) {
	movie, err := s.movieFromRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.store.CreateMovie(ctx, movie)
}

func (s *CatalogService) UpdateMovie(ctx context.Context, id string, req models.MovieRequest) (*domain.Movie, error) {
	movie, err := s.movieFromRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	movie.ID = id
	return s.store.UpdateMovie(ctx, movie)
}

func (s *CatalogService) DeleteMovie(ctx context.Context, id string) (*domain.Movie, error) {
	return s.store.DeleteMovie(ctx, id)
}

// movieFromRequest embeds the current genre name into the movie.
func (s *CatalogService) movieFromRequest(ctx context.Context, req models.MovieRequest) (*domain.Movie, error) {
	genre, err := s.store.GetGenre(ctx, req.GenreID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewInvalidInputError("no genre found with given id")
		}
		return nil, err
	}
	return &domain.Movie{
		Title:           req.Title,
		Genre:           *genre,
		DailyRentalRate: decimal.NewFromFloat(*req.DailyRentalRate),
		NumberInStock:   *req.NumberInStock,
		Liked:           req.Liked,
	}, nil
}

func (s *CatalogService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

func (s *CatalogService) CreateCustomer(ctx context.Context, req models.CustomerRequest) (*domain.Customer, error) {
	existing, err := s.store.GetCustomerByName(ctx, req.Name)
	switch {
	case err == nil && existing != nil:
		return nil, fmt.Errorf("customer %q already exists: %w", req.Name, domain.ErrDuplicate)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	return s.store.CreateCustomer(ctx, &domain.Customer{Name: req.Name, Phone: req.Phone, IsGold: req.IsGold})
}

func (s *CatalogService) UpdateCustomer(ctx context.Context, id string, req models.CustomerRequest) (*domain.Customer, error) {
	return s.store.UpdateCustomer(ctx, &domain.Customer{ID: id, Name: req.Name, Phone: req.Phone, IsGold: req.IsGold})
}

func (s *CatalogService) DeleteCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.store.DeleteCustomer(ctx, id)
}

func (s *CatalogService) GetRental(ctx context.Context, id string) (*domain.Rental, error) {
	return s.store.GetRental(ctx, id)
}

func (s *CatalogService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.store.GetUser(ctx, id)
}

// RegisterUser creates a non-admin account. Emails are unique; the isAdmin
// field of the request is ignored.
func (s *CatalogService) RegisterUser(ctx context.Context, req models.UserRequest) (*domain.User, error) {
	existing, err := s.store.GetUserByEmail(ctx, req.Email)
	switch {
	case err == nil && existing != nil:
		return nil, fmt.Errorf("user %q already registered: %w", req.Email, domain.ErrDuplicate)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	return s.store.CreateUser(ctx, &domain.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	})
}

// UpdateUser replaces the account's profile. Only an admin actor may change
// the admin flag; for anyone else the stored value is kept.
func (s *CatalogService) UpdateUser(ctx context.Context, actor *domain.Actor, id string, req models.UserRequest) (*domain.User, error) {
	current, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	isAdmin := current.IsAdmin
	if actor != nil && actor.IsAdmin {
		isAdmin = req.IsAdmin
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateUser(ctx, &domain.User{
		ID:           id,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	})
}

func (s *CatalogService) DeleteUser(ctx context.Context, id string) (*domain.User, error) {
	return s.store.DeleteUser(ctx, id)
}

// Login checks the credentials and returns a signed access token.
func (s *CatalogService) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.NewNotFoundError("user", req.Email)
		}
		return "", err
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	return s.tokens.Issue(user)
}
