package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/nijaru/mediatext/errors"
)

// ValidateURL checks that rawURL is an absolute http(s) URL the fetcher can
// hand to yt-dlp. It does not touch the network.
func ValidateURL(rawURL string) error {
	const op = "validation.ValidateURL"

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return apperrors.Validation(op, nil, "URL is required")
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return apperrors.Validation(op, err, "invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return apperrors.Validation(op, nil, "URL must start with http or https")
	}

	if parsedURL.Host == "" {
		return apperrors.Validation(op, nil, "URL must have a host")
	}

	// youtube.com/watch links carry the video in the v parameter
	host := strings.ToLower(parsedURL.Hostname())
	if strings.HasSuffix(host, "youtube.com") && parsedURL.Path == "/watch" {
		if parsedURL.Query().Get("v") == "" {
			return apperrors.Validation(op, nil, "YouTube URL must contain a valid video ID")
		}
	}

	return nil
}

// ValidateSource rejects empty source identifiers.
func ValidateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return apperrors.Validation("validation.ValidateSource", nil, "source is required")
	}
	return nil
}
