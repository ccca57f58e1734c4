package services

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"cfsub/internal/models"
)

// CandidateSource contributes candidates to a ranking cycle. Sources never fail;
// they log and return what they could collect.
type CandidateSource interface {
	Scrape(ctx context.Context) []models.Candidate
}

type sectionMarker struct {
	needle   string
	category models.Category
}

// Ordered: the first marker found in a line wins.
var sectionMarkers = []sectionMarker{
	{"官方优选", models.CategoryOfficial},
	{"CM优选", models.CategoryMobile},
	{"移动", models.CategoryMobile},
	{"第三方", models.CategoryThirdParty},
	{"更多优选", models.CategoryThirdParty},
}

var (
	tokenRe   = regexp.MustCompile(`([a-zA-Z0-9.-]+\.[a-zA-Z]{2,}|(?:\d{1,3}\.){3}\d{1,3})(?:#([\p{L}\p{N}_-]+))?`)
	fileExtRe = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|gif|css|js|html|htm|zip|rar|ico|svg|xml|json|txt|md)$`)

	ignoredTokens = map[string]bool{
		"tcping": true, "http": true, "https": true, "com": true, "cn": true, "xyz": true,
	}
)

const (
	descOfficial  = "官方优选"
	descCommunity = "社区优选"
)

// Scraper collects candidates from the seed list, the public listing page and any extra sources.
type Scraper struct {
	Seeds  []Seed
	URL    string
	Client *http.Client
	Extras []CandidateSource
	Log    logrus.FieldLogger
	Now    func() time.Time
}

func (s *Scraper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Scrape returns seeds first, then listing entries, then extras, deduplicated by domain.
func (s *Scraper) Scrape(ctx context.Context) []models.Candidate {
	now := s.now()
	out := make([]models.Candidate, 0, len(s.Seeds)+64)
	for _, seed := range s.Seeds {
		out = append(out, models.NewCandidate(seed.Domain, seed.Category, seed.Description, now))
	}

	if s.URL != "" {
		body, err := fetchText(ctx, s.Client, s.URL, "")
		if err != nil {
			componentLog(s.Log, "scraper").WithError(err).Warn("listing fetch failed, using seeds only")
		} else {
			listed := ParseListing(listingText(body), now)
			componentLog(s.Log, "scraper").WithField("parsed", len(listed)).Debug("listing parsed")
			out = append(out, listed...)
		}
	}

	for _, src := range s.Extras {
		out = append(out, src.Scrape(ctx)...)
	}
	return Dedupe(out)
}

// ParseListing extracts candidates from listing text, tracking the current section
// from marker lines. Duplicates are not removed.
func ParseListing(text string, now time.Time) []models.Candidate {
	var out []models.Candidate
	section := models.CategoryOfficial

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		for _, m := range sectionMarkers {
			if strings.Contains(line, m.needle) {
				section = m.category
				break
			}
		}

		if utf8.RuneCountInString(line) < 4 || strings.HasPrefix(line, "#") {
			continue
		}

		for _, match := range tokenRe.FindAllStringSubmatch(line, -1) {
			domain := strings.TrimLeft(match[1], ".")
			if domain == "" || ignoredTokens[domain] || fileExtRe.MatchString(domain) {
				continue
			}
			desc := match[2]
			if desc == "" {
				desc = descCommunity
				if section == models.CategoryOfficial {
					desc = descOfficial
				}
			}
			out = append(out, models.NewCandidate(domain, section, desc, now))
		}
	}
	return out
}

// listingText reduces an HTML page to its visible text, one block per line.
// Plain-text bodies are returned unchanged.
func listingText(body string) string {
	head := strings.ToLower(strings.TrimSpace(body[:min(len(body), 512)]))
	if !strings.HasPrefix(head, "<!doctype html") && !strings.Contains(head, "<html") {
		return body
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, pre, section, article, table").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	return doc.Text()
}
