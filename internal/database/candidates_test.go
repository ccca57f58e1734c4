package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"cfsub/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Connect("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func candidate(domain string, latency int, at time.Time) models.Candidate {
	c := models.NewCandidate(domain, models.CategoryThirdParty, "d-"+domain, at)
	c.LatencyMs = &latency
	return c
}

func domains(list []models.Candidate) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Domain)
	}
	return out
}

func TestCandidateStore_ReplaceAllAndOrder(t *testing.T) {
	store := NewCandidateStore(openTestDB(t))
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := []models.Candidate{
		candidate("old.example", 10, t0),
	}
	if err := store.ReplaceAll(ctx, first); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	second := []models.Candidate{
		candidate("c.example", 50, t0),
		candidate("a.example", 20, t0),
		candidate("b.example", 20, t0.Add(time.Minute)),
		models.NewCandidate("dead.example", models.CategoryOfficial, "", t0),
	}
	if err := store.ReplaceAll(ctx, second); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	got, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []string{"b.example", "a.example", "c.example", "dead.example"}
	if strings.Join(domains(got), ",") != strings.Join(want, ",") {
		t.Fatalf("order=%v, want=%v", domains(got), want)
	}
	if got[3].Latency() != models.UnreachableLatency {
		t.Fatalf("missing latency stored as %d, want sentinel", got[3].Latency())
	}
	if !got[0].UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("updatedAt=%s, want measurement time %s", got[0].UpdatedAt, t0.Add(time.Minute))
	}
}

func TestCandidateStore_ReplaceAllRollsBackOnFailure(t *testing.T) {
	db := openTestDB(t)
	store := NewCandidateStore(db)
	ctx := context.Background()
	t0 := time.Now().UTC()

	before := []models.Candidate{candidate("keep1.example", 5, t0), candidate("keep2.example", 7, t0)}
	if err := store.ReplaceAll(ctx, before); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("disk full")
	if err := db.Callback().Create().Before("gorm:create").Register("test:fail_insert", func(tx *gorm.DB) {
		_ = tx.AddError(boom)
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	err := store.ReplaceAll(ctx, []models.Candidate{candidate("new.example", 1, t0)})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want wrapping %v", err, boom)
	}

	got, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if strings.Join(domains(got), ",") != "keep1.example,keep2.example" {
		t.Fatalf("after failed replace=%v, want the previous set", domains(got))
	}
}

func TestCandidateStore_DuplicateDomainRollsBack(t *testing.T) {
	store := NewCandidateStore(openTestDB(t))
	ctx := context.Background()
	t0 := time.Now().UTC()

	if err := store.ReplaceAll(ctx, []models.Candidate{candidate("keep.example", 5, t0)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	dup := []models.Candidate{candidate("x.example", 1, t0), candidate("x.example", 2, t0)}
	if err := store.ReplaceAll(ctx, dup); err == nil {
		t.Fatalf("expected unique violation")
	}

	got, _ := store.All(ctx)
	if len(got) != 1 || got[0].Domain != "keep.example" {
		t.Fatalf("after failed replace=%v, want [keep.example]", domains(got))
	}
}
