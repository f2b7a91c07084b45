// Package source fetches raw bank text from a local file or an http(s) URL.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrEmptyLocation is returned when no bank location was configured.
var ErrEmptyLocation = errors.New("empty bank location")

// ErrTooLarge is returned when a bank exceeds maxBankSize.
var ErrTooLarge = errors.New("bank exceeds size limit")

// maxBankSize caps how much text is read from a single location.
const maxBankSize = 16 << 20

// Fetcher loads bank text. The zero value uses a client with a 15s timeout.
type Fetcher struct {
	Client *http.Client
}

var defaultClient = &http.Client{Timeout: 15 * time.Second}

// Fetch loads bank text with the default Fetcher.
func Fetch(ctx context.Context, location string) (string, error) {
	return Fetcher{}.Fetch(ctx, location)
}

// Fetch returns the text at location: an http(s) URL or a file path.
func (f Fetcher) Fetch(ctx context.Context, location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", ErrEmptyLocation
	}
	if IsURL(location) {
		return f.fetchURL(ctx, location)
	}
	return readFile(location)
}

// IsURL reports whether location names an http(s) resource.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func (f Fetcher) fetchURL(ctx context.Context, url string) (string, error) {
	client := f.Client
	if client == nil {
		client = defaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	data, err := readLimited(resp.Body, maxBankSize)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

func readFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open bank: %w", err)
	}
	defer file.Close()
	data, err := readLimited(file, maxBankSize)
	if err != nil {
		return "", fmt.Errorf("read bank: %w", err)
	}
	return data, nil
}

// readLimited reads all of r, failing rather than truncating past limit.
func readLimited(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return string(data), nil
}
