package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"travel/internal/domain"
	"travel/internal/repository"
)

// ErrNothingToSend is returned by a Renderer when the entities a job refers
// to no longer exist. The job is dropped.
var ErrNothingToSend = errors.New("notification target no longer exists")

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Renderer turns a job into a message using current ledger state.
type Renderer interface {
	Render(ctx context.Context, job Job) (*Message, error)
}

const dateLayout = "2006-01-02"

var templates = template.Must(template.New("notification").Funcs(template.FuncMap{
	"date": func(b *domain.Booking, end bool) string {
		if end {
			return b.EndDate.Format(dateLayout)
		}
		return b.StartDate.Format(dateLayout)
	},
}).Parse(`
{{define "booking-confirmation"}}Thank you for booking with us.

Your booking {{.Booking.ID}} for {{.Listing.Name}} has been confirmed.

Welcome
{{end}}

{{define "payment-confirmation"}}Dear {{.Guest.FullName}}, your payment of {{.Payment.Amount.StringFixed 2}} {{.Payment.Currency}} for {{.Listing.Name}} has been confirmed.

Details:
* Property  : {{.Listing.Name}}
* Check-In  : {{date .Booking false}}
* Check-Out : {{date .Booking true}}
* Amount    : {{.Payment.Amount.StringFixed 2}} {{.Payment.Currency}}
* Reference : {{.Reference}}
* Nights    : {{.Booking.Nights}}

Regards,
{{end}}

{{define "payment-checkout-link"}}Hello {{.Guest.FullName}}, please complete your payment for your {{.Listing.Name}} booking.

Details:
* Property  : {{.Listing.Name}}
* Check-In  : {{date .Booking false}}
* Check-Out : {{date .Booking true}}
* Amount    : {{.Payment.Amount.StringFixed 2}} {{.Payment.Currency}}

Complete your payment here: {{.Payment.Gateway.CheckoutURL}}

This link expires in 24 hours.

Regards,
{{end}}
`))

type view struct {
	Guest     *domain.User
	Listing   *domain.Listing
	Booking   *domain.Booking
	Payment   *domain.Payment
	Reference string
}

// StoreRenderer renders jobs from the ledger.
type StoreRenderer struct {
	store repository.Store
}

// NewStoreRenderer creates a renderer backed by store.
func NewStoreRenderer(store repository.Store) *StoreRenderer {
	return &StoreRenderer{store: store}
}

// Render builds the message for job.
func (r *StoreRenderer) Render(ctx context.Context, job Job) (*Message, error) {
	if !job.Kind.Valid() {
		return nil, fmt.Errorf("unknown notification kind %q: %w", job.Kind, ErrNothingToSend)
	}

	v, err := r.load(ctx, job)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s %s: %w", job.Kind, job.BookingID, ErrNothingToSend)
		}
		return nil, err
	}

	var subject string
	switch job.Kind {
	case KindBookingConfirmation:
		subject = "Booking confirmation for " + v.Listing.Name
	case KindPaymentConfirmation:
		subject = "Payment confirmation - " + v.Listing.Name
	case KindPaymentCheckoutLink:
		subject = "Complete your payment for - " + v.Listing.Name
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, string(job.Kind), v); err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Kind, err)
	}

	to := job.Recipient
	if to == "" {
		to = v.Guest.Email
	}

	return &Message{To: to, Subject: subject, Body: body.String()}, nil
}

func (r *StoreRenderer) load(ctx context.Context, job Job) (*view, error) {
	booking, err := r.store.Bookings().GetByID(ctx, job.BookingID)
	if err != nil {
		return nil, err
	}
	listing, err := r.store.Listings().GetByID(ctx, booking.ListingID)
	if err != nil {
		return nil, err
	}
	guest, err := r.store.Users().GetByID(ctx, booking.GuestID)
	if err != nil {
		return nil, err
	}

	v := &view{Guest: guest, Listing: listing, Booking: booking}
	if job.Kind == KindBookingConfirmation {
		return v, nil
	}

	payment, err := r.store.Payments().GetByID(ctx, job.PaymentID)
	if err != nil {
		return nil, err
	}
	v.Payment = payment
	v.Reference = payment.Gateway.Reference
	if v.Reference == "" {
		v.Reference = payment.TransactionID
	}
	return v, nil
}
