package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// OpenRentalRequest is the payload of POST /api/rentals.
type OpenRentalRequest struct {
	CustomerID string `json:"customerId" validate:"required,uuid"`
	MovieID    string `json:"movieId" validate:"required,uuid"`
}

// CloseRentalRequest is the payload of PATCH /api/rentals/{id}.
// A missing dateIn means "returned now".
type CloseRentalRequest struct {
	DateIn *Timestamp `json:"dateIn"`
}

type GenreRequest struct {
	Name string `json:"name" validate:"required,min=3,max=10"`
}

type MovieRequest struct {
	Title           string   `json:"title" validate:"required,min=5,max=50"`
	GenreID         string   `json:"genreId" validate:"required,uuid"`
	NumberInStock   *int     `json:"numberInStock" validate:"required,gte=0,lte=255"`
	DailyRentalRate *float64 `json:"dailyRentalRate" validate:"required,gte=0,lte=255"`
	Liked           bool     `json:"liked"`
}

type CustomerRequest struct {
	Name   string `json:"name" validate:"required,min=5,max=15"`
	Phone  string `json:"phone" validate:"required,min=7,max=10"`
	IsGold bool   `json:"isGold"`
}

type UserRequest struct {
	Name     string `json:"name" validate:"required,min=5,max=25"`
	Email    string `json:"email" validate:"required,min=5,max=255,email"`
	Password string `json:"password" validate:"required,min=8,max=1024,password"`
	IsAdmin  bool   `json:"isAdmin"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,min=5,max=255,email"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
}

// Timestamp accepts either an RFC 3339 string or Unix milliseconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}
