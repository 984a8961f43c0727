package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/yungbote/diagnosis-backend/internal/data/repos"
	domainagg "github.com/yungbote/diagnosis-backend/internal/domain/aggregates"
	"github.com/yungbote/diagnosis-backend/internal/domain/kb"
	"github.com/yungbote/diagnosis-backend/internal/engine"
	"github.com/yungbote/diagnosis-backend/internal/observability"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

// KnowledgeBaseService hands out immutable engine snapshots of the stored
// knowledge base. Snapshots are cached for the configured TTL.
type KnowledgeBaseService interface {
	Snapshot(ctx context.Context) (*engine.Snapshot, error)
	// Reload bypasses the cache.
	Reload(ctx context.Context) (*engine.Snapshot, error)
	Invalidate()
}

type knowledgeBaseService struct {
	db       *gorm.DB
	log      *logger.Logger
	symptoms repos.SymptomRepo
	rules    repos.RuleRepo
	advice   repos.AdviceRepo
	metrics  *observability.Metrics
	ttl      time.Duration
	now      func() time.Time

	group    singleflight.Group
	mu       sync.RWMutex
	cached   *engine.Snapshot
	loadedAt time.Time
}

const kbLoadTimeout = 15 * time.Second

func NewKnowledgeBaseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	symptoms repos.SymptomRepo,
	rules repos.RuleRepo,
	advice repos.AdviceRepo,
	metrics *observability.Metrics,
	ttl time.Duration,
) KnowledgeBaseService {
	return &knowledgeBaseService{
		db:       db,
		log:      baseLog.With("service", "KnowledgeBaseService"),
		symptoms: symptoms,
		rules:    rules,
		advice:   advice,
		metrics:  metrics,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *knowledgeBaseService) Snapshot(ctx context.Context) (*engine.Snapshot, error) {
	s.mu.RLock()
	snap, at := s.cached, s.loadedAt
	s.mu.RUnlock()
	if snap != nil && s.ttl > 0 && s.now().Sub(at) < s.ttl {
		return snap, nil
	}
	return s.Reload(ctx)
}

func (s *knowledgeBaseService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.loadedAt = time.Time{}
	s.mu.Unlock()
}

// Reload collapses concurrent reloads into one database round. The shared
// load is detached from any single caller; each caller only stops waiting
// when its own context ends.
func (s *knowledgeBaseService) Reload(ctx context.Context) (*engine.Snapshot, error) {
	const op = "KnowledgeBase.Reload"
	ch := s.group.DoChan("kb", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), kbLoadTimeout)
		defer cancel()
		return s.load(loadCtx)
	})
	select {
	case <-ctx.Done():
		return nil, domainagg.NewError(domainagg.CodeRetryable, op, "knowledge base reload abandoned", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*engine.Snapshot), nil
	}
}

func (s *knowledgeBaseService) load(ctx context.Context) (*engine.Snapshot, error) {
	const op = "KnowledgeBase.Load"
	start := time.Now()

	var (
		symptomRows []*kb.Symptom
		ruleRows    []*kb.Rule
		adviceRows  []*kb.Advice
	)
	g, gctx := errgroup.WithContext(ctx)
	dbc := dbctx.Context{Ctx: gctx}
	g.Go(func() error {
		var err error
		symptomRows, err = s.symptoms.List(dbc)
		return err
	})
	g.Go(func() error {
		var err error
		ruleRows, err = s.rules.List(dbc, true)
		return err
	})
	g.Go(func() error {
		var err error
		adviceRows, err = s.advice.List(dbc)
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.ObserveKBLoad("error", time.Since(start), 0)
		s.log.Error("knowledge base load failed", "error", err)
		return nil, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}

	snap, err := engine.FromKB(derefAll(ruleRows), derefAll(symptomRows), derefAll(adviceRows))
	if err != nil {
		s.metrics.ObserveKBLoad("invalid", time.Since(start), 0)
		s.log.Error("knowledge base is invalid", "error", err)
		return nil, knowledgeBaseError(op, err)
	}
	for _, a := range snap.Anomalies() {
		s.log.Warn("knowledge base anomaly",
			"kind", a.Kind,
			"diagnosis_code", a.DiagnosisCode,
			"risk_level", a.RiskLevel,
			"candidates", a.Candidates,
			"chosen", a.Chosen,
		)
	}
	s.metrics.ObserveKBLoad("success", time.Since(start), len(snap.Anomalies()))

	s.mu.Lock()
	s.cached = snap
	s.loadedAt = s.now()
	s.mu.Unlock()
	s.log.Debug("knowledge base snapshot loaded",
		"symptoms", len(symptomRows),
		"rules", len(snap.Rules()),
		"advice", len(adviceRows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

func knowledgeBaseError(op string, err error) error {
	if errors.Is(err, engine.ErrInvalidKnowledgeBase) {
		return domainagg.Wrap(domainagg.CodeInvariantViolation, op, err)
	}
	return err
}

func derefAll[T any](rows []*T) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
