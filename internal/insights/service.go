package insights

import (
	"context"
	"log/slog"

	"bizpulse/internal/analytics"
	"bizpulse/internal/types"
)

// Summary sources reported to clients and metrics.
const (
	SourceAI    = "ai"
	SourceRules = "rules"
)

// InsightRecorder counts generated insight responses by summary source.
type InsightRecorder interface {
	RecordInsight(source string)
}

// FailureRecorder counts failed narrator calls.
type FailureRecorder interface {
	RecordExternalFailure(provider string)
}

// Result is the insights payload for one report.
type Result struct {
	Insights      []Insight          `json:"insights"`
	HealthScore   int                `json:"healthScore"`
	Summary       string             `json:"summary"`
	SummarySource string             `json:"summarySource"`
	Message       string             `json:"message,omitempty"`
	Overview      analytics.Overview `json:"overview"`
	Range         analytics.Range    `json:"range"`
	GeneratedAt   string             `json:"generatedAt"`
}

// Service combines the rule engine with an optional narrator.
type Service struct {
	engine   *RuleEngine
	narrator Narrator
	clock    types.Clock
	logger   *slog.Logger
	insights InsightRecorder
	failures FailureRecorder
}

// Option configures a Service.
type Option func(*Service)

// WithNarrator enables generative summaries.
func WithNarrator(n Narrator) Option {
	return func(s *Service) { s.narrator = n }
}

// WithRecorders reports generated insights and narrator failures.
func WithRecorders(ins InsightRecorder, fail FailureRecorder) Option {
	return func(s *Service) {
		s.insights = ins
		s.failures = fail
	}
}

// NewService creates a Service. Without WithNarrator every summary comes
// from the rule engine.
func NewService(engine *RuleEngine, clock types.Clock, logger *slog.Logger, opts ...Option) *Service {
	if engine == nil {
		engine = NewRuleEngine(DefaultThresholds())
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{engine: engine, clock: clock, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate builds the insights for a report. It never fails: narrator
// errors are logged and the rule-based summary is returned instead.
func (s *Service) Generate(ctx context.Context, r *analytics.Report) *Result {
	findings := s.engine.Evaluate(r)
	res := &Result{
		Insights:      findings,
		HealthScore:   s.engine.HealthScore(r),
		Summary:       s.engine.Summary(r),
		SummarySource: SourceRules,
		Overview:      r.Overview,
		Range:         r.Range,
		GeneratedAt:   types.FormatTimestamp(s.clock.Now()),
	}
	if res.Insights == nil {
		res.Insights = []Insight{}
	}

	switch {
	case s.narrator == nil:
		res.Message = "AI summary is not configured; showing rule-based summary."
	case r.Overview.TotalSales == 0:
		// nothing to narrate
	default:
		text, err := s.narrator.Narrate(ctx, r, findings)
		if err != nil {
			s.logger.WarnContext(ctx, "insight narration failed, using rule-based summary", "error", err)
			if s.failures != nil {
				s.failures.RecordExternalFailure(GeminiProvider)
			}
			res.Message = "AI summary is temporarily unavailable; showing rule-based summary."
			break
		}
		res.Summary = text
		res.SummarySource = SourceAI
	}

	if s.insights != nil {
		s.insights.RecordInsight(res.SummarySource)
	}
	return res
}
