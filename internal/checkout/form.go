package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/order"
)

// FormValues are the delivery details collected at checkout. City and State are fixed by the
// store and are not taken from the shopper.
type FormValues struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Zipcode string `json:"zipcode" validate:"required"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city"`
	State   string `json:"state"`
}

// ValidationError lists the required fields that were left blank.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout: missing required fields: %s", strings.Join(e.Fields, ", "))
}

// NewForm returns empty form values with the fixed location filled in.
func NewForm(city, state string) FormValues {
	return FormValues{City: city, State: state}
}

// Normalize trims every field and pins the location to city and state.
func (f FormValues) Normalize(city, state string) FormValues {
	return FormValues{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Phone:   strings.TrimSpace(f.Phone),
		Zipcode: strings.TrimSpace(f.Zipcode),
		Address: strings.TrimSpace(f.Address),
		City:    city,
		State:   state,
	}
}

// Validate reports a *ValidationError when a required field is blank.
func (f FormValues) Validate() error {
	err := common.Validator().Struct(f)
	if err == nil {
		return nil
	}
	details := common.ValidationDetails(err)
	fields := make([]string, 0, len(details))
	for field := range details {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return &ValidationError{Fields: fields}
}

// Delivery converts the form into the order's delivery snapshot.
func (f FormValues) Delivery() *order.Delivery {
	return &order.Delivery{
		Name:    f.Name,
		Email:   f.Email,
		Phone:   f.Phone,
		Address: f.Address,
		Zipcode: f.Zipcode,
		City:    f.City,
		State:   f.State,
	}
}

// IsValidationError reports whether err is a form validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
