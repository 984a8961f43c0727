package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/diagnosis-backend/internal/data/repos"
	domainagg "github.com/yungbote/diagnosis-backend/internal/domain/aggregates"
	"github.com/yungbote/diagnosis-backend/internal/engine"
	"github.com/yungbote/diagnosis-backend/internal/kbseed"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type ImportSummary struct {
	Symptoms  int
	Rules     int
	Advice    int
	Anomalies []engine.Anomaly
}

// KnowledgeBaseImportService loads YAML knowledge bases into the database.
type KnowledgeBaseImportService interface {
	Validate(f *kbseed.File) ([]engine.Anomaly, error)
	// Import upserts the file by symptom code, rule name and advice key. The
	// stored knowledge base must still be valid afterwards or nothing is written.
	Import(ctx context.Context, f *kbseed.File) (ImportSummary, error)
}

type knowledgeBaseImportService struct {
	db       *gorm.DB
	log      *logger.Logger
	symptoms repos.SymptomRepo
	rules    repos.RuleRepo
	advice   repos.AdviceRepo
	kb       KnowledgeBaseService
}

func NewKnowledgeBaseImportService(
	db *gorm.DB,
	baseLog *logger.Logger,
	symptoms repos.SymptomRepo,
	rules repos.RuleRepo,
	advice repos.AdviceRepo,
	kb KnowledgeBaseService,
) KnowledgeBaseImportService {
	return &knowledgeBaseImportService{
		db:       db,
		log:      baseLog.With("service", "KnowledgeBaseImportService"),
		symptoms: symptoms,
		rules:    rules,
		advice:   advice,
		kb:       kb,
	}
}

func (s *knowledgeBaseImportService) Validate(f *kbseed.File) ([]engine.Anomaly, error) {
	const op = "KnowledgeBase.Validate"
	snap, err := f.Snapshot()
	if err != nil {
		return nil, knowledgeBaseError(op, err)
	}
	return snap.Anomalies(), nil
}

func (s *knowledgeBaseImportService) Import(ctx context.Context, f *kbseed.File) (ImportSummary, error) {
	const op = "KnowledgeBase.Import"
	var out ImportSummary
	if _, err := s.Validate(f); err != nil {
		return out, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		ids := make(map[string]uint, len(f.Symptoms))
		for _, item := range f.Symptoms {
			row := item.Model()
			if err := s.symptoms.Upsert(dbc, &row); err != nil {
				return fmt.Errorf("upsert symptom %q: %w", row.Code, err)
			}
			ids[row.Code] = row.ID
			out.Symptoms++
		}
		for _, item := range f.Rules {
			row := item.Model(ids)
			if err := s.rules.Upsert(dbc, &row); err != nil {
				return fmt.Errorf("upsert rule %q: %w", row.Name, err)
			}
			out.Rules++
		}
		for _, item := range f.Advice {
			row := item.Model()
			if err := s.advice.Upsert(dbc, &row); err != nil {
				return fmt.Errorf("upsert advice %q: %w", row.Title, err)
			}
			out.Advice++
		}

		// Rows outside the file take part too, so check the merged result.
		symptomRows, err := s.symptoms.List(dbc)
		if err != nil {
			return err
		}
		ruleRows, err := s.rules.List(dbc, false)
		if err != nil {
			return err
		}
		adviceRows, err := s.advice.List(dbc)
		if err != nil {
			return err
		}
		snap, err := engine.FromKB(derefAll(ruleRows), derefAll(symptomRows), derefAll(adviceRows))
		if err != nil {
			return err
		}
		out.Anomalies = snap.Anomalies()
		return nil
	})
	if err != nil {
		s.log.Error("knowledge base import failed", "error", err)
		if errors.Is(err, engine.ErrInvalidKnowledgeBase) {
			return ImportSummary{}, knowledgeBaseError(op, err)
		}
		if code := domainagg.CodeOf(err); code != "" {
			return ImportSummary{}, err
		}
		return ImportSummary{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if s.kb != nil {
		s.kb.Invalidate()
	}
	for _, a := range out.Anomalies {
		s.log.Warn("knowledge base anomaly after import", "anomaly", a.String())
	}
	s.log.Info("knowledge base imported",
		"symptoms", out.Symptoms,
		"rules", out.Rules,
		"advice", out.Advice,
		"anomalies", len(out.Anomalies),
		"names", strings.Join(ruleNames(f), ","),
	)
	return out, nil
}

func ruleNames(f *kbseed.File) []string {
	out := make([]string, 0, len(f.Rules))
	for _, r := range f.Rules {
		out = append(out, r.Name)
	}
	return out
}
