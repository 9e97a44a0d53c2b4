package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"trendsensei/internal/domain"
)

type AIQuery struct {
	Question string `json:"question"`
	Source   string `json:"source"`
	Limit    int    `json:"limit"`
}

type AIAnswer struct {
	Answer  string `json:"answer"`
	Source  Source `json:"source"`
	Records int    `json:"records"`
}

// AssistantService answers free-form questions about a capped sample of one
// source. Answers are cached by prompt.
type AssistantService struct {
	reports *ReportService
	gen     domain.Generator
	cache   domain.Cache
	ttl     time.Duration
}

// NewAssistantService accepts a nil generator (Ask then fails with
// domain.ErrNoGenerator) and a nil cache.
func NewAssistantService(r *ReportService, g domain.Generator, c domain.Cache, ttl time.Duration) *AssistantService {
	return &AssistantService{reports: r, gen: g, cache: c, ttl: ttl}
}

func (a *AssistantService) Ask(ctx context.Context, q AIQuery) (AIAnswer, error) {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return AIAnswer{}, domain.ErrEmptyQuestion
	}
	if q.Source == "" {
		q.Source = string(SourceReviews)
	}
	src, err := ParseSource(q.Source)
	if err != nil {
		return AIAnswer{}, err
	}
	if a.gen == nil {
		return AIAnswer{}, domain.ErrNoGenerator
	}

	rows, n, err := a.reports.Rows(ctx, src, q.Limit)
	if err != nil {
		return AIAnswer{}, err
	}
	prompt, err := BuildPrompt(q.Question, src, rows)
	if err != nil {
		return AIAnswer{}, err
	}

	key := "ai:" + promptKey(prompt)
	if a.cache != nil {
		var cached AIAnswer
		if ok, _ := a.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}

	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return AIAnswer{}, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	ans := AIAnswer{Answer: strings.TrimSpace(text), Source: src, Records: n}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, ans, int(a.ttl.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return ans, nil
}

func promptKey(prompt string) string {
	sum := sha1.Sum([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// BuildPrompt lays out the question and the sampled rows for the model.
func BuildPrompt(question string, src Source, rows any) (string, error) {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a data analyst for an e-commerce reviews dashboard.\n")
	b.WriteString("Answer the question using only the records below. ")
	b.WriteString("If the records do not contain the answer, say so. Keep the answer under 150 words.\n\n")

	switch src {
	case SourceReviews:
		b.WriteString("RECORDS: customer reviews. star_rating is 1-5; sentiment is the label assigned at import; ")
		b.WriteString("helpful_votes counts readers who marked the review helpful.\n")
	case SourceProducts:
		b.WriteString("RECORDS: catalog products. price is in the listed currency; rating is the average star rating; ")
		b.WriteString("review_count is the number of ratings on the listing.\n")
	}
	fmt.Fprintf(&b, "%s\n\n", data)
	fmt.Fprintf(&b, "QUESTION: %s\n", question)
	return b.String(), nil
}
