package validation

import (
	"errors"
	"net/url"
	"strings"
)

// ValidateName validates the display name shown on the map
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return errors.New("name is required")
	}

	if len(trimmed) > 100 {
		return errors.New("name is too long (max 100 characters)")
	}

	return nil
}

// ValidateWebsite accepts an empty value or an absolute http(s) URL.
func ValidateWebsite(website string) error {
	if website == "" {
		return nil
	}

	if len(website) > 200 {
		return errors.New("website is too long (max 200 characters)")
	}

	u, err := url.Parse(website)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("enter a valid URL starting with http:// or https://")
	}

	return nil
}
