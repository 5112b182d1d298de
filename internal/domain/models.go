package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RentalDays is the flat number of days every rental is billed for.
const RentalDays = 10

// Genre is a movie category.
type Genre struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Movie holds the catalog entry and the stock counter for one title.
// NumberInStock never goes below zero.
type Movie struct {
	ID              string          `json:"_id"`
	Title           string          `json:"title"`
	Genre           Genre           `json:"genre"`
	DailyRentalRate decimal.Decimal `json:"dailyRentalRate"`
	NumberInStock   int             `json:"numberInStock"`
	Liked           bool            `json:"liked"`
}

// Customer is a person who can rent movies.
type Customer struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	IsGold bool   `json:"isGold"`
}

// User is an operator account of the API.
type User struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"isAdmin"`
}

// Actor is the authenticated caller on whose behalf an operation runs.
type Actor struct {
	ID      string
	Email   string
	IsAdmin bool
}

// CustomerSnapshot is the copy of a customer taken when a rental is opened.
type CustomerSnapshot struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// MovieSnapshot is the copy of a movie taken when a rental is opened.
type MovieSnapshot struct {
	ID              string          `json:"_id"`
	Title           string          `json:"title"`
	DailyRentalRate decimal.Decimal `json:"dailyRentalRate"`
}

// Rental is one loan of one unit of a movie. The snapshots are never
// refreshed from the live customer or movie after creation.
type Rental struct {
	ID        string           `json:"_id"`
	Customer  CustomerSnapshot `json:"customer"`
	Movie     MovieSnapshot    `json:"movie"`
	DateOut   time.Time        `json:"dateOut"`
	DateIn    *time.Time       `json:"dateIn"`
	RentalFee decimal.Decimal  `json:"rentalFee"`
}

// IsOpen reports whether the rented unit is still out.
func (r *Rental) IsOpen() bool {
	return r.DateIn == nil
}

// RentalPatch lists the fields UpdateRental may change.
type RentalPatch struct {
	DateIn *time.Time
}

// NewRental builds an open rental from the current customer and movie.
func NewRental(customer *Customer, movie *Movie, now time.Time) *Rental {
	return &Rental{
		Customer: CustomerSnapshot{
			ID:    customer.ID,
			Name:  customer.Name,
			Phone: customer.Phone,
		},
		Movie: MovieSnapshot{
			ID:              movie.ID,
			Title:           movie.Title,
			DailyRentalRate: movie.DailyRentalRate,
		},
		DateOut:   now,
		RentalFee: RentalFee(movie.DailyRentalRate),
	}
}

// RentalFee returns the fee charged for a movie at the given daily rate.
func RentalFee(dailyRate decimal.Decimal) decimal.Decimal {
	return dailyRate.Mul(decimal.NewFromInt(RentalDays))
}

// RentalEventType names a committed lifecycle transition.
type RentalEventType string

const (
	RentalOpened    RentalEventType = "rental.opened"
	RentalClosed    RentalEventType = "rental.closed"
	RentalCancelled RentalEventType = "rental.cancelled"
)

// RentalEvent is emitted after a lifecycle transaction commits.
type RentalEvent struct {
	Type       RentalEventType `json:"type"`
	Rental     Rental          `json:"rental"`
	ActorID    string          `json:"actorId"`
	OccurredAt time.Time       `json:"occurredAt"`
}
