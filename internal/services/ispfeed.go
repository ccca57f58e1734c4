package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"cfsub/internal/models"
	"cfsub/internal/utils"
)

const (
	DefaultISPFeedURL = "https://stock.hostmonit.com/CloudFlareYes"
	defaultISPCount   = 6
	feedCacheKey      = "feed"
)

// ISPs the optimized-IP feed reports on, keyed by their query name.
var feedISPs = map[string]string{"ct": "CT", "cm": "CM", "cu": "CU"}

type feedEntry struct {
	IP      string `json:"ip"`
	Address string `json:"address"`
}

func (e feedEntry) addr() string {
	if e.IP != "" {
		return e.IP
	}
	return e.Address
}

type feedDoc struct {
	Info map[string][]feedEntry `json:"info"`
}

// ISPFeed reads per-carrier optimized edge addresses from a public feed and caches them.
type ISPFeed struct {
	URL    string
	Client *http.Client
	Log    logrus.FieldLogger
	Now    func() time.Time

	cache *utils.TTLCache[string, feedDoc]
}

func NewISPFeed(url string, client *http.Client, ttl time.Duration, log logrus.FieldLogger) *ISPFeed {
	if url == "" {
		url = DefaultISPFeedURL
	}
	if ttl <= 0 {
		ttl = 20 * time.Minute
	}
	f := &ISPFeed{URL: url, Client: client, Log: log}
	f.cache = utils.NewTTLCache[string, feedDoc](ttl, f.now)
	return f
}

func (f *ISPFeed) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// ValidISP reports whether isp is one of ct, cm or cu.
func ValidISP(isp string) bool {
	_, ok := feedISPs[strings.ToLower(isp)]
	return ok
}

// OptimizedIPs returns up to count addresses for isp. Feed errors yield an empty list.
func (f *ISPFeed) OptimizedIPs(ctx context.Context, isp string, count int) []string {
	key, ok := feedISPs[strings.ToLower(isp)]
	if !ok {
		return []string{}
	}
	if count <= 0 {
		count = defaultISPCount
	}
	doc, err := f.load(ctx)
	if err != nil {
		componentLog(f.Log, "ispfeed").WithError(err).WithField("isp", isp).Warn("optimized IP feed unavailable")
		return []string{}
	}
	ips := lo.FilterMap(doc.Info[key], func(e feedEntry, _ int) (string, bool) {
		return e.addr(), e.addr() != ""
	})
	if len(ips) > count {
		ips = ips[:count]
	}
	return ips
}

// Scrape exposes every feed address as a candidate so it can join a ranking cycle.
func (f *ISPFeed) Scrape(ctx context.Context) []models.Candidate {
	doc, err := f.load(ctx)
	if err != nil {
		componentLog(f.Log, "ispfeed").WithError(err).Warn("optimized IP feed unavailable, skipping")
		return nil
	}
	now := f.now().UTC()
	var out []models.Candidate
	for _, key := range []string{"CM", "CT", "CU"} {
		category := models.CategoryThirdParty
		if key == "CM" {
			category = models.CategoryMobile
		}
		for _, e := range doc.Info[key] {
			if a := e.addr(); a != "" {
				out = append(out, models.NewCandidate(a, category, "CloudFlareYes-"+key, now))
			}
		}
	}
	return out
}

func (f *ISPFeed) load(ctx context.Context) (feedDoc, error) {
	if doc, ok := f.cache.Get(feedCacheKey); ok {
		return doc, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	body, err := fetchText(ctx, f.Client, f.URL, "Mozilla/5.0")
	if err != nil {
		return feedDoc{}, err
	}
	var doc feedDoc
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return feedDoc{}, fmt.Errorf("decode feed: %w", err)
	}
	if doc.Info == nil {
		return feedDoc{}, fmt.Errorf("decode feed: missing info")
	}
	f.cache.Set(feedCacheKey, doc)
	return doc, nil
}
