package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"cfsub/internal/models"
	"cfsub/internal/utils"
)

// Generator builds optimized subscriptions from the stored ranking.
type Generator struct {
	Repo      CandidateRepository
	Refresher Refresher
	Loader    *SourceLoader
	Shuffler  Shuffler
	Log       logrus.FieldLogger
}

// Generate loads source, selects the candidate pool and returns the rewritten,
// base64-encoded document. Only an *InputError is ever returned.
func (g *Generator) Generate(ctx context.Context, source string, opts SelectOptions) (string, error) {
	log := componentLog(g.Log, "subscription")

	ranked, err := g.Repo.All(ctx)
	if err != nil {
		log.WithError(err).Warn("reading ranking failed")
	}
	if len(ranked) == 0 && g.Refresher != nil {
		// first request before any ranking cycle completed
		if ranked, err = g.Refresher.Refresh(ctx); err != nil {
			log.WithError(err).Warn("on-demand refresh failed")
		}
	}

	pool, err := SelectPool(ranked, opts, g.Shuffler)
	if err != nil {
		return "", err
	}

	text := g.Loader.Load(ctx, source)
	doc := Rewrite(text, pool)
	log.WithField("pool", len(pool)).Debug("subscription generated")
	return doc, nil
}

// Rewrite expands every vmess/vless/trojan link once per pool candidate, passes other
// links through once, and returns the newline-joined result base64-encoded.
func Rewrite(raw string, pool []models.Candidate) string {
	var out []string
	for _, token := range strings.Fields(raw) {
		if !strings.Contains(token, "://") {
			continue
		}
		node, err := ParseV2Link(token)
		if err != nil || !node.Rewritable() {
			nodesTotal.WithLabelValues(string(node.Scheme), "passthrough").Inc()
			out = append(out, token)
			continue
		}
		for _, c := range pool {
			out = append(out, node.Rewrite(c))
		}
		nodesTotal.WithLabelValues(string(node.Scheme), "rewritten").Add(float64(len(pool)))
	}
	return utils.EncodeBase64([]byte(strings.Join(out, "\n")))
}
