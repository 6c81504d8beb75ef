// Package payment is a stand-in for a card processor. It checks that the
// card form is filled in and always accepts it; nothing is charged.
package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrMissingPaymentField is returned when any card field is empty
var ErrMissingPaymentField = errors.New("missing payment field")

// Form is the submitted card form
type Form struct {
	CardNumber string
	Expiry     string
	CVC        string
}

// Missing returns the names of the empty fields
func (f Form) Missing() []string {
	var missing []string
	if f.CardNumber == "" {
		missing = append(missing, "card_number")
	}
	if f.Expiry == "" {
		missing = append(missing, "expiry")
	}
	if f.CVC == "" {
		missing = append(missing, "cvc")
	}
	return missing
}

// Receipt identifies an accepted payment
type Receipt struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// Process accepts f when every field is non-empty. Values are not validated.
func Process(f Form) (Receipt, error) {
	if len(f.Missing()) > 0 {
		return Receipt{}, ErrMissingPaymentField
	}
	return Receipt{ID: uuid.New(), CreatedAt: time.Now()}, nil
}
