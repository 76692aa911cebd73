package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/knowledgepin/cli/internal/api"
)

// CleanedUpAPIError wraps a backend client error with a one-line message fit
// for the terminal. The original error stays reachable through Unwrap.
type CleanedUpAPIError struct {
	Err error
}

func (e CleanedUpAPIError) Error() string {
	if e.Err == nil {
		return ""
	}
	var apiErr *api.APIError
	if errors.As(e.Err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("backend returned %d %s for %s", apiErr.StatusCode, http.StatusText(apiErr.StatusCode), apiErr.Endpoint)
	}
	var urlErr *url.Error
	if errors.As(e.Err, &urlErr) {
		return "could not reach the KnowledgePin backend: " + urlErr.Err.Error()
	}
	return e.Err.Error()
}

func (e CleanedUpAPIError) Unwrap() error {
	return e.Err
}
