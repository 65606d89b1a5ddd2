package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"financify/internal/cache"
	"financify/internal/oracle"

	"golang.org/x/sync/singleflight"
)

// InsightsPrompt asks for beginner tips. It is fixed, so its reply is memoized.
const InsightsPrompt = `As a conversational AI financial advisor for young professionals in India, generate 3 short, friendly, and actionable tips for a beginner on the following topics:
1. Tax-saving instruments (e.g., ELSS, PPF, NPS).
2. Different types of insurance (e.g., life, health, vehicle).
3. The importance of investing in mutual funds, stocks, and gold.
4. The concept of compounding, as explained in the provided text.

Base your tips on the following knowledge:
` + KnowledgeBase + `

Keep the language simple and encouraging.`

// InsightsService generates the AI tips shown on the insights page. A
// successful reply is cached; errors are not.
type InsightsService struct {
	text    oracle.TextGenerator
	cache   *cache.LRUCache[string]
	group   singleflight.Group
	timeout time.Duration
}

// NewInsightsService builds the service. ttl <= 0 keeps the tips for the
// lifetime of the process.
func NewInsightsService(text oracle.TextGenerator, ttl, timeout time.Duration) *InsightsService {
	return &InsightsService{
		text:    text,
		cache:   cache.NewLRUCache[string](1, ttl),
		timeout: timeout,
	}
}

// Cache exposes the memo so it can be registered for cleanup.
func (s *InsightsService) Cache() *cache.LRUCache[string] { return s.cache }

// Tips returns the formatted tips, calling the oracle at most once for
// concurrent first requests. The shared call outlives any single caller; each
// caller stops waiting when its own ctx is done.
func (s *InsightsService) Tips(ctx context.Context) (string, error) {
	if tips, ok := s.cache.Get(InsightsPrompt); ok {
		return tips, nil
	}

	ch := s.group.DoChan(InsightsPrompt, func() (any, error) {
		if tips, ok := s.cache.Get(InsightsPrompt); ok {
			return tips, nil
		}
		callCtx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, s.timeout)
			defer cancel()
		}
		raw, err := s.text.GenerateText(callCtx, InsightsPrompt)
		if err != nil {
			return "", err
		}
		tips := FormatTips(raw)
		s.cache.Set(InsightsPrompt, tips)
		return tips, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("generate insights: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			slog.WarnContext(ctx, "Insights generation failed", "error", res.Err, "shared", res.Shared)
			return "", fmt.Errorf("generate insights: %w", res.Err)
		}
		return res.Val.(string), nil
	}
}

// FormatTips shrinks headings and drops bold markers so the tips fit the card.
func FormatTips(s string) string {
	s = strings.ReplaceAll(s, "###", "#####")
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}
