package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing represents a property a host offers for booking.
type Listing struct {
	ID            string
	HostID        string
	Name          string
	Description   string
	Location      string
	PricePerNight decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
