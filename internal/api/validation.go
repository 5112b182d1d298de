package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("password", validatePassword)
	return v
}

// validatePassword requires at least one lower case letter, one upper case
// letter, one digit and one symbol.
func validatePassword(fl validator.FieldLevel) bool {
	var lower, upper, digit, symbol bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// decodeAndValidate reads a JSON body into T and validates it. On failure it
// writes a 400 response and returns false.
func decodeAndValidate[T any](h *Handler, w http.ResponseWriter, body io.Reader) (T, bool) {
	var payload T
	// An empty body decodes to the zero value and is left to the validator.
	if err := json.NewDecoder(body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return payload, false
	}
	if err := h.validate.Struct(payload); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return payload, false
	}
	return payload, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%q must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%q must be at most %s", fe.Field(), fe.Param())
	case "uuid":
		return fmt.Sprintf("%q must be a valid id", fe.Field())
	case "email":
		return fmt.Sprintf("%q must be a valid email", fe.Field())
	case "password":
		return fmt.Sprintf("%q must contain lower case, upper case, numeric and symbol characters", fe.Field())
	default:
		return fmt.Sprintf("%q is invalid", fe.Field())
	}
}
