package models

import (
	"time"

	"cfsub/internal/utils"
)

// Category is the provenance tag a candidate was scraped under.
type Category string

const (
	CategoryOfficial   Category = "official"
	CategoryThirdParty Category = "third-party"
	CategoryMobile     Category = "mobile-optimized"
)

// UnreachableLatency is stored for hosts whose probe failed so they still sort, but last.
const UnreachableLatency = 9999

// Candidate is a ranked edge hostname. The whole table is replaced on every ranking cycle.
type Candidate struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Domain      string    `gorm:"uniqueIndex;size:255;not null" json:"domain"`
	Category    Category  `gorm:"column:type;size:32" json:"type"`
	Description string    `gorm:"size:255" json:"description"`
	LatencyMs   *int      `gorm:"column:speed" json:"speed,omitempty"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false;not null" json:"updatedAt"`
}

func (Candidate) TableName() string { return "domains" }

func NewCandidate(domain string, category Category, description string, now time.Time) Candidate {
	return Candidate{
		ID:          utils.ContentID(domain),
		Domain:      domain,
		Category:    category,
		Description: description,
		UpdatedAt:   now,
	}
}

// Latency returns the measured latency, treating a missing measurement as unreachable.
func (c Candidate) Latency() int {
	if c.LatencyMs == nil {
		return UnreachableLatency
	}
	return *c.LatencyMs
}

func (c Candidate) Reachable() bool {
	return c.Latency() < UnreachableLatency
}

// Tag is the provenance label appended to rewritten node names.
func (c Candidate) Tag() string {
	if c.Description != "" {
		return c.Description
	}
	return string(c.Category)
}
