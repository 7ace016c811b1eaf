package image

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidResponse is returned when the provider answers without a usable
// image URL. The text is part of the public error envelope.
var ErrInvalidResponse = errors.New("Invalid response from FAL.ai") //nolint:stylecheck

// APIError is a non-2xx reply from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}
