package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/hasher"
	"github.com/timmy/imageguard/internal/logger"
	"github.com/timmy/imageguard/internal/metrics"
)

// RuleStore is the part of the rule repository the services depend on.
type RuleStore interface {
	AddReference(ctx context.Context, contentID, fingerprint string) (*domain.ReferenceImage, bool, error)
	GetReference(ctx context.Context, contentID string) (*domain.ReferenceImage, error)
	LookupBySequence(ctx context.Context, seq uint) (*domain.ReferenceImage, error)
	RegisterInScope(ctx context.Context, scopeID, contentID string) error
	UnregisterInScope(ctx context.Context, scopeID, contentID string) (bool, error)
	DeleteReferenceIfUnregistered(ctx context.Context, contentID string) (bool, error)
	IsRegistered(ctx context.Context, scopeID, contentID string) (bool, error)
	ListByScope(ctx context.Context, scopeID string, page, pageSize int) ([]domain.ReferenceImage, error)
	CountByScope(ctx context.Context, scopeID string) (int64, error)
	ScopeContentIDs(ctx context.Context, scopeID string) (map[string]uint, error)
	FingerprintsForScope(ctx context.Context, scopeID string) ([]domain.ScopedFingerprint, error)
}

// MatchEngine evaluates candidate images against a scope's rule set.
type MatchEngine struct {
	store          RuleStore
	fingerprints   *FingerprintService
	threshold      int
	maxConcurrency int
}

// MatchConfig holds configuration for the matching engine
type MatchConfig struct {
	Similarity           int
	MaxConcurrentFetches int
}

// NewMatchEngine creates a new matching engine
func NewMatchEngine(store RuleStore, fingerprints *FingerprintService, cfg *MatchConfig) *MatchEngine {
	maxConcurrency := cfg.MaxConcurrentFetches
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &MatchEngine{
		store:          store,
		fingerprints:   fingerprints,
		threshold:      cfg.Similarity,
		maxConcurrency: maxConcurrency,
	}
}

// scored is the per-candidate outcome of the fingerprinting phase.
type scored struct {
	contentID   string
	fingerprint string
	exactSeq    uint
	exact       bool
	failure     *domain.CandidateFailure
}

// Evaluate decides whether any candidate matches the scope's rule set.
// Registered content ids are checked before any fetching or hashing. Each
// candidate that cannot be fetched or decoded is reported in Unscorable and
// skipped; only when every candidate is unscorable is the verdict
// indeterminate.
//
// Returns:
//   - *domain.MatchResult: the verdict.
//   - error: rule store failures (wrapping domain.ErrStoreUnavailable) and
//     context cancellation. Per-candidate failures are never returned here.
func (e *MatchEngine) Evaluate(ctx context.Context, scopeID string, candidates []domain.Candidate) (*domain.MatchResult, error) {
	start := time.Now()
	result, err := e.evaluate(ctx, scopeID, candidates)
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	metrics.MessageEvaluations.WithLabelValues(string(result.Verdict)).Inc()
	return result, nil
}

func (e *MatchEngine) evaluate(ctx context.Context, scopeID string, candidates []domain.Candidate) (*domain.MatchResult, error) {
	if len(candidates) == 0 {
		return &domain.MatchResult{Verdict: domain.VerdictNoMatch}, nil
	}

	registered, err := e.store.ScopeContentIDs(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	if len(registered) == 0 {
		return &domain.MatchResult{Verdict: domain.VerdictNoMatch}, nil
	}

	for _, c := range candidates {
		if c.ContentID == "" {
			continue
		}
		if seq, ok := registered[c.ContentID]; ok {
			return exactResult(seq, c.ContentID), nil
		}
	}

	results := make([]scored, len(candidates))
	var g errgroup.Group
	g.SetLimit(e.maxConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = scored{failure: &domain.CandidateFailure{Index: i, ContentID: c.ContentID, Reason: "canceled"}}
				return nil
			}
			results[i] = e.score(ctx, i, c, registered)
			return nil // never fail the group - failures are reported per candidate
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var unscorable []domain.CandidateFailure
	scorable := 0
	for _, r := range results {
		if r.exact {
			return exactResult(r.exactSeq, r.contentID), nil
		}
		if r.failure != nil {
			unscorable = append(unscorable, *r.failure)
			metrics.UnscorableCandidates.WithLabelValues(r.failure.Reason).Inc()
			continue
		}
		scorable++
	}

	if scorable == 0 {
		return &domain.MatchResult{Verdict: domain.VerdictIndeterminate, Unscorable: unscorable}, nil
	}

	references, err := e.store.FingerprintsForScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}

	for _, ref := range references {
		for _, r := range results {
			if r.failure != nil {
				continue
			}
			if d := hasher.Distance(ref.Fingerprint, r.fingerprint); d <= e.threshold {
				return &domain.MatchResult{
					Verdict:            domain.VerdictSimilarMatch,
					Seq:                ref.Seq,
					ContentID:          ref.ContentID,
					CandidateContentID: r.contentID,
					Distance:           d,
					Unscorable:         unscorable,
				}, nil
			}
		}
	}

	return &domain.MatchResult{Verdict: domain.VerdictNoMatch, Unscorable: unscorable}, nil
}

// score fingerprints one candidate. A content id derived from the bytes is
// checked against the registered set before the bytes are hashed.
func (e *MatchEngine) score(ctx context.Context, index int, c domain.Candidate, registered map[string]uint) scored {
	fail := func(contentID string, err error) scored {
		logger.FromContext(ctx).WithError(err).
			WithFields(logger.Fields{"candidate": index, logger.FieldContentID: contentID}).
			Warn("Candidate image is unscorable")
		return scored{failure: &domain.CandidateFailure{Index: index, ContentID: contentID, Reason: failureReason(err)}}
	}

	if c.Fingerprint != "" {
		return scored{contentID: c.ContentID, fingerprint: c.Fingerprint}
	}
	if fp, ok := e.fingerprints.Cached(ctx, c.ContentID); ok {
		return scored{contentID: c.ContentID, fingerprint: fp}
	}

	data, err := e.fingerprints.Load(ctx, c)
	if err != nil {
		return fail(c.ContentID, err)
	}

	contentID := c.ContentID
	if contentID == "" {
		contentID = domain.ContentIDFromBytes(data)
		if seq, ok := registered[contentID]; ok {
			return scored{contentID: contentID, exact: true, exactSeq: seq}
		}
		if fp, ok := e.fingerprints.Cached(ctx, contentID); ok {
			return scored{contentID: contentID, fingerprint: fp}
		}
	}

	fp, err := e.fingerprints.Compute(ctx, contentID, data)
	if err != nil {
		return fail(contentID, err)
	}
	return scored{contentID: contentID, fingerprint: fp}
}

func exactResult(seq uint, contentID string) *domain.MatchResult {
	return &domain.MatchResult{
		Verdict:            domain.VerdictExactMatch,
		Seq:                seq,
		ContentID:          contentID,
		CandidateContentID: contentID,
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrDecode):
		return "decode"
	case errors.Is(err, domain.ErrFetch):
		return "fetch"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
