package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	validatorv10 "github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validatorv10.Validate
)

// Validator returns the process-wide validator. Field names are reported using json tags.
func Validator() *validatorv10.Validate {
	validateOnce.Do(func() {
		validate = validatorv10.New(validatorv10.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidationDetails flattens validator errors into field -> failed tag.
func ValidationDetails(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return out
	}
	if err != nil {
		out["error"] = err.Error()
	}
	return out
}

// DecodeJSON decodes the request body into out and validates it.
func DecodeJSON(r *http.Request, out any) *AppError {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err)
	}
	if err := Validator().Struct(out); err != nil {
		return NewAppError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest, err).
			WithDetails(ValidationDetails(err))
	}
	return nil
}
