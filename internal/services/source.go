package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"cfsub/internal/utils"
)

// SourceLoader turns a subscription URL or literal subscription text into plain link text.
type SourceLoader struct {
	Client    *http.Client
	UserAgent string
	Log       logrus.FieldLogger
}

// Load never fails. A URL that cannot be fetched is treated as literal content, and
// base64-wrapped documents are unwrapped when the decoded text holds links.
func (l *SourceLoader) Load(ctx context.Context, input string) string {
	text := input
	if isHTTPURL(input) {
		body, err := fetchText(ctx, l.Client, strings.TrimSpace(input), l.UserAgent)
		if err != nil {
			componentLog(l.Log, "source").WithError(err).Warn("subscription fetch failed, using input as content")
		} else {
			text = body
		}
	}
	if decoded, err := utils.DecodeBase64(text); err == nil && strings.Contains(string(decoded), "://") {
		return string(decoded)
	}
	return text
}

func isHTTPURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
