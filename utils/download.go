package utils

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// ReadSource returns the content of a local file or, when src is a well formed
// http(s) URL, of the remote resource. Cascade and model files are commonly
// fetched straight from their upstream repositories.
func ReadSource(src string) ([]byte, error) {
	if !IsValidUrl(src) {
		return os.ReadFile(src)
	}
	return Download(src)
}

// Download retrieves the resource behind uri and returns the response body.
func Download(uri string) ([]byte, error) {
	res, err := httpClient.Get(uri)
	if err != nil {
		return nil, fmt.Errorf("unable to download file from URI: %s: %w", uri, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to download file from URI: %s, status %v", uri, res.Status)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read response body: %w", err)
	}
	return data, nil
}

// IsValidUrl tests a string to determine if it is a well-structured url or not.
func IsValidUrl(uri string) bool {
	_, err := url.ParseRequestURI(uri)
	if err != nil {
		return false
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}

	return u.Scheme == "http" || u.Scheme == "https"
}

// DetectContentType sniffs the MIME type of the first 512 bytes of data.
// It always returns a valid content-type and "application/octet-stream" if no others seemed to match.
func DetectContentType(data []byte) string {
	if len(data) > 512 {
		data = data[:512]
	}
	return http.DetectContentType(data)
}

// IsImage reports whether data looks like an encoded image.
func IsImage(data []byte) bool {
	return strings.HasPrefix(DetectContentType(data), "image/")
}
