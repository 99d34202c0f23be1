package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	cart "github.com/kimspro130/promode/internal/cart/domain"
)

// ValidationError is field-attributable and safe to surface verbatim
// to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

var (
	// Letters, spaces, hyphens, apostrophes and periods only.
	nameRe = regexp.MustCompile(`^[a-zA-Z\s\-'.]+$`)
	// 5 digits with an optional 4-digit extension.
	postalCodeRe = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	// Loose E.164: optional +, no leading zero, up to 16 digits.
	phoneRe = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
)

func ValidateAddress(prefix string, a Address) error {
	switch {
	case len(a.FullName) < 2 || len(a.FullName) > 100:
		return invalid(prefix+".full_name", "full name must be between 2 and 100 characters")
	case !nameRe.MatchString(a.FullName):
		return invalid(prefix+".full_name", "full name contains invalid characters")
	case len(a.AddressLine1) < 5 || len(a.AddressLine1) > 200:
		return invalid(prefix+".address_line_1", "address must be between 5 and 200 characters")
	case len(a.AddressLine2) > 200:
		return invalid(prefix+".address_line_2", "address line 2 must be less than 200 characters")
	case len(a.City) < 2 || len(a.City) > 100:
		return invalid(prefix+".city", "city must be between 2 and 100 characters")
	case !nameRe.MatchString(a.City):
		return invalid(prefix+".city", "city contains invalid characters")
	case len(a.State) < 2 || len(a.State) > 50:
		return invalid(prefix+".state", "state must be between 2 and 50 characters")
	case !nameRe.MatchString(a.State):
		return invalid(prefix+".state", "state contains invalid characters")
	case !postalCodeRe.MatchString(a.PostalCode):
		return invalid(prefix+".postal_code", "postal code must look like 12345 or 12345-6789")
	case len(a.Country) < 2:
		return invalid(prefix+".country", "country is required")
	}

	if a.Phone != "" {
		stripped := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(a.Phone)
		if !phoneRe.MatchString(stripped) {
			return invalid(prefix+".phone", "phone number is not valid")
		}
	}

	return nil
}

// ValidateCartItems runs the shape checks the submission pipeline
// applies before any totals are computed. First failure wins.
func ValidateCartItems(items []cart.CartItem) error {
	if len(items) == 0 {
		return invalid("items", "cart is empty")
	}
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case item.ProductID == "":
			return invalid(field+".product_id", "product id is required")
		case item.Name == "":
			return invalid(field+".name", "product name is required")
		case item.UnitPrice <= 0:
			return invalid(field+".unit_price", "price must be positive")
		case item.Quantity < 1:
			return invalid(field+".quantity", "quantity must be at least 1")
		case item.Size == "":
			return invalid(field+".size", "size is required")
		}
		if u, err := url.ParseRequestURI(item.ImageURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return invalid(field+".image_url", "image reference is not a valid URL")
		}
	}
	return nil
}

const maxCustomerNotesLen = 500

func ValidateCustomerNotes(notes string) error {
	if len(notes) > maxCustomerNotesLen {
		return invalid("customer_notes", "notes must be less than 500 characters")
	}
	return nil
}
