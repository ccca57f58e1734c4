package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"cfsub/internal/models"
)

// CandidateStore persists the ranked candidate set.
type CandidateStore struct {
	db *gorm.DB
}

func NewCandidateStore(db *gorm.DB) *CandidateStore {
	return &CandidateStore{db: db}
}

// All returns every candidate, fastest first, most recently measured first on ties.
func (s *CandidateStore) All(ctx context.Context) ([]models.Candidate, error) {
	var out []models.Candidate
	err := s.db.WithContext(ctx).Order("speed ASC").Order("updated_at DESC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return out, nil
}

// ReplaceAll deletes every stored candidate and inserts list in a single transaction.
func (s *CandidateStore) ReplaceAll(ctx context.Context, list []models.Candidate) error {
	rows := make([]models.Candidate, len(list))
	for i, c := range list {
		if c.LatencyMs == nil {
			v := models.UnreachableLatency
			c.LatencyMs = &v
		}
		rows[i] = c
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Candidate{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return fmt.Errorf("replace candidates: %w", err)
	}
	return nil
}
