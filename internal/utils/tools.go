package utils

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// candidateNamespace scopes content IDs so they never collide with other v5 UUIDs.
var candidateNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("cfsub.candidates"))

// ContentID returns a stable identifier derived only from s.
func ContentID(s string) string {
	return uuid.NewSHA1(candidateNamespace, []byte(s)).String()
}

var errEmptyBase64 = errors.New("empty base64 payload")

// DecodeBase64 accepts std, url-safe, padded and unpadded payloads. Whitespace is ignored.
func DecodeBase64(s string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if compact == "" {
		return nil, errEmptyBase64
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(compact)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
