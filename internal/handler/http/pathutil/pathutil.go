// Package pathutil parses identifiers out of URL path segments.
package pathutil

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when a path segment is not a usable id.
var ErrInvalidID = errors.New("invalid id")

// ListingID reads the named wildcard from the request path and parses it
// as a positive int64 listing id.
func ListingID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// UUID reads the named wildcard and validates it as a UUID, returning
// its canonical lowercase form.
func UUID(r *http.Request, name string) (string, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return "", ErrInvalidID
	}
	return id.String(), nil
}
