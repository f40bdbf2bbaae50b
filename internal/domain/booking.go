package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCanceled  BookingStatus = "canceled"
)

// IsTerminal reports whether no further status change is allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusConfirmed || s == BookingStatusCanceled
}

// Booking represents a guest's stay at a listing.
type Booking struct {
	ID         string
	ListingID  string
	GuestID    string
	StartDate  time.Time // check-in, civil date in UTC
	EndDate    time.Time // check-out, civil date in UTC
	TotalPrice decimal.Decimal
	Status     BookingStatus
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Nights returns the number of nights between check-in and check-out.
func (b *Booking) Nights() int {
	return NightsBetween(b.StartDate, b.EndDate)
}

// CivilDate strips the clock and zone from t.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NightsBetween counts whole nights from start to end. It is zero or negative
// when end does not come after start.
func NightsBetween(start, end time.Time) int {
	return int(CivilDate(end).Sub(CivilDate(start)).Hours() / 24)
}

// StayPrice computes the total for a stay rounded to currency precision.
func StayPrice(pricePerNight decimal.Decimal, nights int) decimal.Decimal {
	return pricePerNight.Mul(decimal.NewFromInt(int64(nights))).Round(MoneyPlaces)
}
