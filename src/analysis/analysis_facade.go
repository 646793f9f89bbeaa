package analysis

import (
	"time"

	"market-pulse/src/logger"
	"market-pulse/src/models"
)

type AnalysisFacade struct {
	Config   *models.MConfig
	Fallback *FallbackGenerator
	Logger   *logger.Logger
	now      func() time.Time
}

// -----------------------------------------------------------------------------

func NewAnalysisFacade(cfg *models.MConfig, gen *FallbackGenerator, log *logger.Logger) *AnalysisFacade {
	if gen == nil {
		gen = NewFallbackGenerator()
	}
	if log == nil {
		log = logger.NewLogger(cfg, "AnalysisFacade")
	}
	return &AnalysisFacade{
		Config:   cfg,
		Fallback: gen,
		Logger:   log,
		now:      time.Now,
	}
}

// -----------------------------------------------------------------------------

// DeriveViews projects one feed read into stats, chart and table views. All
// three come from the same snapshot generation.
func (a *AnalysisFacade) DeriveViews(state models.MFeedState) models.MViewSet {
	now := a.now()

	points := 10
	if a.Config != nil && a.Config.Feed.MaxChartPoints > 0 {
		points = a.Config.Feed.MaxChartPoints
	}

	views := models.MViewSet{
		Stats: DeriveStats(state.Snapshot, a.Fallback),
		Chart: DeriveChartSeries(state.History, a.Fallback, now, points),
		Table: DeriveTableRows(state.Snapshot, a.Fallback, now),
	}

	if state.Snapshot != nil {
		views.Generation = state.Snapshot.Generation
		views.Fallback = state.Snapshot.Fallback
	} else {
		views.Fallback = true
	}

	if views.Fallback {
		a.Logger.Debug("Deriving views from placeholder data")
	}
	return views
}
