package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cfsub/internal/models"
)

// Seed is a well-known candidate that is always included ahead of scraped ones.
type Seed struct {
	Domain      string          `yaml:"domain"`
	Description string          `yaml:"description"`
	Category    models.Category `yaml:"type"`
}

// DefaultSeeds are community-maintained hostnames that resolve to fast edge addresses.
var DefaultSeeds = []Seed{
	{Domain: "cf.877774.xyz", Description: "秋名山优选", Category: models.CategoryThirdParty},
	{Domain: "bestcf.030101.xyz", Description: "Mingyu优选", Category: models.CategoryThirdParty},
	{Domain: "saas.sin.fan", Description: "MIYU优选", Category: models.CategoryThirdParty},
	{Domain: "cf.tencentapp.cn", Description: "隐藏大佬维护", Category: models.CategoryThirdParty},
	{Domain: "cloudflare.182682.xyz", Description: "WeTest.Vip", Category: models.CategoryThirdParty},
	{Domain: "cloudflare-dl.byoip.top", Description: "NB优选", Category: models.CategoryThirdParty},
	{Domain: "cfip.cfcdn.vip", Description: "CFCDNVIP", Category: models.CategoryThirdParty},
}

type seedFile struct {
	Seeds []Seed `yaml:"seeds"`
}

// LoadSeeds reads a YAML seed list. An empty path returns DefaultSeeds.
func LoadSeeds(path string) ([]Seed, error) {
	if path == "" {
		return DefaultSeeds, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	out := make([]Seed, 0, len(f.Seeds))
	for i, s := range f.Seeds {
		s.Domain = strings.TrimSpace(s.Domain)
		if s.Domain == "" {
			return nil, fmt.Errorf("seed %d: empty domain", i)
		}
		switch s.Category {
		case "":
			s.Category = models.CategoryThirdParty
		case models.CategoryOfficial, models.CategoryThirdParty, models.CategoryMobile:
		default:
			return nil, fmt.Errorf("seed %s: unknown type %q", s.Domain, s.Category)
		}
		out = append(out, s)
	}
	return out, nil
}
