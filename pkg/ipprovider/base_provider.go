package ipprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 15 * time.Second

type IncrementFunc func(provider string)

var ErrEmptyResponse = errors.New("ip provider returned an empty body")

// LookupError is returned when the echo service could not be reached or answered badly.
type LookupError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *LookupError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

func GetProviderName(provider Provider) string {
	return provider.GetProviderName()
}

func GetCurrentIP(ctx context.Context, provider Provider, incrementFunc IncrementFunc) (string, error) {
	if incrementFunc != nil {
		incrementFunc(provider.GetProviderName())
	}
	return provider.GetCurrentIP(ctx)
}

// fetchText GETs url and returns the body as trimmed text, without checking it is an address.
func fetchText(ctx context.Context, client *http.Client, name, url string) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &LookupError{Provider: name, Err: err}
	}
	req.Header.Set("Cache-Control", "no-cache")

	response, err := client.Do(req)
	if err != nil {
		return "", &LookupError{Provider: name, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", &LookupError{Provider: name, StatusCode: response.StatusCode}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", &LookupError{Provider: name, Err: err}
	}

	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "", &LookupError{Provider: name, Err: ErrEmptyResponse}
	}
	return ip, nil
}
