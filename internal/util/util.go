package util

import (
	"encoding/base64"
	"errors"
	"math"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
)

// ErrMalformedURL is returned by ParseURL for anything that is not an absolute http(s) URL.
var ErrMalformedURL = errors.New("malformed url")

// ParseURL validates raw and returns its normalized form.
func ParseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() {
		return "", ErrMalformedURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrMalformedURL
	}
	if u.Host == "" {
		return "", ErrMalformedURL
	}
	return u.String(), nil
}

// GenerateID returns a random candidate identifier that is safe in a path segment.
// A number below 65535 is rendered in decimal and the digits are base64url encoded
// without padding. Candidates collide often; the store decides uniqueness.
func GenerateID() string {
	n := rand.IntN(math.MaxUint16)
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(n)))
}
