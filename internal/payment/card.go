package payment

import (
	"strconv"
	"strings"
	"time"
)

// Card is a buyer's stored payment method. The full number is kept
// only for pre-filling the checkout form; orders only ever see the
// last four digits.
type Card struct {
	UserEmail  string    `json:"userEmail"`
	CardNumber string    `json:"cardNumber,omitempty"`
	CardHolder string    `json:"cardHolder"`
	ExpiryDate string    `json:"expiryDate"`
	LastFour   string    `json:"lastFour"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CardInput is what the checkout form submits.
type CardInput struct {
	CardNumber string `json:"cardNumber"`
	CardHolder string `json:"cardHolder"`
	ExpiryDate string `json:"expiryDate"`
	CVV        string `json:"cvv"`
}

// ValidateCVV checks the CVV alone, for checkouts paying with a
// stored card.
func ValidateCVV(cvv string) map[string]string {
	errs := map[string]string{}
	if len(strings.TrimSpace(cvv)) < 3 {
		errs["cvv"] = "Please enter a valid CVV"
	}
	return errs
}

// Validate returns field-level validation errors for a freshly entered
// card, keyed by field name. An empty map means the input is valid.
func (in CardInput) Validate(now time.Time) map[string]string {
	errs := map[string]string{}

	if len(strings.TrimSpace(in.CardNumber)) < 16 {
		errs["cardNumber"] = "Please enter a valid 16-digit card number"
	}
	if strings.TrimSpace(in.CardHolder) == "" {
		errs["cardHolder"] = "Please enter the cardholder name"
	}
	if msg := validateExpiry(in.ExpiryDate, now); msg != "" {
		errs["expiryDate"] = msg
	}
	if len(strings.TrimSpace(in.CVV)) < 3 {
		errs["cvv"] = "Please enter a valid CVV"
	}

	return errs
}

func validateExpiry(expiry string, now time.Time) string {
	if !strings.Contains(expiry, "/") {
		return "Please enter a valid expiry date (MM/YY)"
	}

	parts := strings.SplitN(expiry, "/", 2)
	month, errM := strconv.Atoi(strings.TrimSpace(parts[0]))
	year, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errM != nil || errY != nil {
		return "Please enter a valid expiry date (MM/YY)"
	}

	currentYear := now.Year() % 100
	currentMonth := int(now.Month())
	if month < 1 || month > 12 ||
		year < currentYear ||
		(year == currentYear && month < currentMonth) {
		return "Card has expired or date is invalid"
	}
	return ""
}

// LastFourOf returns the last four digits of a card number.
func LastFourOf(number string) string {
	number = strings.TrimSpace(number)
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
