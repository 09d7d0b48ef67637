package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/mahamart/commerce-backend/internal/apperr"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// requestBody is a JSON DTO. requiredMessage is the client message returned
// when a `validate` rule fails.
type requestBody interface {
	requiredMessage() string
}

// decodeJSON reads an optional JSON body into dst and validates it. An empty
// body decodes to the zero value so missing fields surface as validation
// failures.
func decodeJSON(r *http.Request, dst requestBody) error {
	if r.Body != nil {
		err := json.NewDecoder(r.Body).Decode(dst)
		var maxBytesErr *http.MaxBytesError
		switch {
		case err == nil, errors.Is(err, io.EOF):
		case errors.As(err, &maxBytesErr):
			return apperr.InvalidInput("Request body too large")
		default:
			return apperr.InvalidInput("Invalid request body")
		}
	}
	if err := getValidator().Struct(dst); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, dst.requiredMessage(), err)
	}
	return nil
}

func parsePathID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// queryInt parses an optional positive integer; anything else yields def.
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil || v < 1 {
		return def
	}
	return v
}
