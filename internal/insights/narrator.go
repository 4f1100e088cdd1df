package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/option"

	"bizpulse/internal/analytics"
	"bizpulse/internal/external"
	"bizpulse/internal/types"
)

// GeminiProvider is the provider label of the Gemini narrator in metrics
// and breaker names.
const GeminiProvider = "gemini"

// Narrator writes a one-paragraph executive summary of a report.
type Narrator interface {
	Narrate(ctx context.Context, r *analytics.Report, findings []Insight) (string, error)
}

// contentGenerator is the part of *genai.GenerativeModel the narrator uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiNarrator implements Narrator with Google Generative AI. Calls go
// through a circuit breaker and are bounded by a timeout.
type GeminiNarrator struct {
	model   contentGenerator
	client  *genai.Client
	breaker *gobreaker.CircuitBreaker[string]
	timeout time.Duration
}

// GeminiConfig configures NewGeminiNarrator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewGeminiNarrator dials the Gemini API. Close releases the client.
func NewGeminiNarrator(ctx context.Context, cfg GeminiConfig) (*GeminiNarrator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(300)

	n := newGeminiNarrator(model, cfg.Timeout)
	n.client = client
	return n, nil
}

func newGeminiNarrator(model contentGenerator, timeout time.Duration) *GeminiNarrator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GeminiNarrator{
		model:   model,
		breaker: gobreaker.NewCircuitBreaker[string](external.NewBreakerSettings(GeminiProvider)),
		timeout: timeout,
	}
}

// Close releases the underlying client.
func (n *GeminiNarrator) Close() error {
	if n.client == nil {
		return nil
	}
	return n.client.Close()
}

// Narrate asks the model for a summary. An empty answer is an error so the
// caller falls back to the rule-based summary.
func (n *GeminiNarrator) Narrate(ctx context.Context, r *analytics.Report, findings []Insight) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	text, err := n.breaker.Execute(func() (string, error) {
		resp, err := n.model.GenerateContent(ctx, genai.Text(BuildPrompt(r, findings)))
		if err != nil {
			return "", err
		}
		text := responseText(resp)
		if text == "" {
			return "", errors.New("empty completion")
		}
		return text, nil
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamInsights, "AI summary is unavailable", err)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// BuildPrompt renders the report figures the model may use. Only
// aggregates are sent; no customer names leave the service.
func BuildPrompt(r *analytics.Report, findings []Insight) string {
	var b strings.Builder
	b.WriteString("You are a business analyst. Write one short paragraph (at most 120 words) ")
	b.WriteString("summarizing the performance of a small business for its owner. ")
	b.WriteString("Use only the figures below, in US dollars, and end with one concrete recommendation.\n\n")

	g := r.GrowthComparison
	fmt.Fprintf(&b, "Period: %s to %s (%d days)\n", r.Range.StartDate, r.Range.EndDate, r.Range.Days)
	fmt.Fprintf(&b, "Revenue: %.2f (previous period %.2f, growth %.1f%%)\n", g.Current.Revenue, g.Previous.Revenue, g.RevenueGrowth)
	fmt.Fprintf(&b, "Sales: %d (previous period %d, growth %.1f%%)\n", g.Current.Sales, g.Previous.Sales, g.SalesGrowth)
	fmt.Fprintf(&b, "Average order value: %.2f\n", r.RevenueSummary.AverageOrderValue)
	if best := r.RevenueSummary.BestDay; best != nil {
		fmt.Fprintf(&b, "Best day: %s (%.2f)\n", best.Date, best.Revenue)
	}

	for i, p := range r.TopProducts {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "Top product %d: %s, revenue %.2f (%.1f%% share)\n", i+1, p.Name, p.Revenue, p.RevenueSharePercent)
	}
	for _, c := range r.CategoryBreakdown {
		fmt.Fprintf(&b, "Category %s: revenue %.2f\n", c.Category, c.Revenue)
	}
	for _, f := range findings {
		fmt.Fprintf(&b, "Finding (%s): %s\n", f.Kind, f.Message)
	}
	return b.String()
}
