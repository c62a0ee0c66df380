package app

import (
	"context"
	"fmt"

	"quizflow-client/internal/domain"
)

// AnalysisRepository resolves an analysis by id, typically through a cache.
type AnalysisRepository interface {
	GetAnalysis(ctx context.Context, analysisID string) (domain.Analysis, error)
}

// ResultsView loads the analysis a finished submission navigated to. The id
// travels with the navigation; nothing is read from shared storage.
type ResultsView struct {
	analyses AnalysisRepository
}

func NewResultsView(analyses AnalysisRepository) *ResultsView {
	return &ResultsView{analyses: analyses}
}

func (v *ResultsView) Load(ctx context.Context, result domain.SubmissionResult) (domain.Analysis, error) {
	if result.AnalysisID == "" {
		return domain.Analysis{}, domain.ErrAnalysisNotFound
	}
	analysis, err := v.analyses.GetAnalysis(ctx, result.AnalysisID)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("load analysis %s: %w", result.AnalysisID, err)
	}
	if analysis.QuizID == "" {
		analysis.QuizID = result.QuizID
	}
	return analysis, nil
}
