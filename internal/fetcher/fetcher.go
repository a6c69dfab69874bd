// Package fetcher downloads external roster feeds over HTTP or FTP.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
