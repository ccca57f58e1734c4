package services

import (
	"fmt"
	"math/rand/v2"
	"regexp"

	"github.com/samber/lo"

	"cfsub/internal/models"
)

const (
	DefaultSelectCount = 10
	selectionWindow    = 50
)

// SelectOptions are the caller filters, applied in order: latency, include, exclude,
// fastest-50 window, random sample of Count.
type SelectOptions struct {
	Count      int
	MaxLatency *int
	Include    string
	Exclude    string
}

// Shuffler is satisfied by *rand.Rand from math/rand and math/rand/v2.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultShuffler draws from the process-wide math/rand/v2 source.
var DefaultShuffler Shuffler = globalShuffler{}

// InputError is a caller mistake, reported as a client error.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string { return fmt.Sprintf("invalid %s: %v", e.Field, e.Err) }

func (e *InputError) Unwrap() error { return e.Err }

// SelectPool picks the candidates every optimizable link is expanded against.
// ranked must already be ordered fastest first.
func SelectPool(ranked []models.Candidate, opts SelectOptions, sh Shuffler) ([]models.Candidate, error) {
	include, err := compileFilter("include", opts.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileFilter("exclude", opts.Exclude)
	if err != nil {
		return nil, err
	}

	pool := lo.Filter(ranked, func(c models.Candidate, _ int) bool {
		if opts.MaxLatency != nil && c.Latency() > *opts.MaxLatency {
			return false
		}
		if include != nil && !matchesCandidate(include, c) {
			return false
		}
		if exclude != nil && matchesCandidate(exclude, c) {
			return false
		}
		return true
	})
	if len(pool) > selectionWindow {
		pool = pool[:selectionWindow]
	}

	count := opts.Count
	if count <= 0 {
		count = DefaultSelectCount
	}
	if sh == nil {
		sh = DefaultShuffler
	}
	sh.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > count {
		pool = pool[:count]
	}
	return pool, nil
}

func compileFilter(field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, &InputError{Field: field, Err: err}
	}
	return re, nil
}

func matchesCandidate(re *regexp.Regexp, c models.Candidate) bool {
	return re.MatchString(c.Domain) || re.MatchString(c.Description) || re.MatchString(string(c.Category))
}
