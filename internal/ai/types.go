package ai

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Analysis is the structured result the AI capability must return.
type Analysis struct {
	Category    string   `json:"category"`
	Priority    int      `json:"priority"` // 1-10
	Summary     string   `json:"summary"`
	ActionItems []string `json:"action_items"`
	Confidence  float64  `json:"confidence"` // 0-1
}

// Validate bounds the fields the vendor is supposed to respect.
func (a *Analysis) Validate() error {
	if a.Priority < 1 || a.Priority > 10 {
		return fmt.Errorf("analysis priority out of range: %d", a.Priority)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("analysis confidence out of range: %v", a.Confidence)
	}
	return nil
}

// Usage is the token accounting for one invocation.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Capability is the external AI vendor contract: given a prompt and a token
// budget, return a structured analysis or fail.
type Capability interface {
	Invoke(ctx context.Context, prompt, model string, maxTokens int) (Analysis, Usage, error)
}

// Result is a successful analysis with its cost accounting.
type Result struct {
	Analysis  Analysis
	Usage     Usage
	Model     string
	CostCents int
	Latency   time.Duration
}

// ModelRate prices a model in cents per 1000 tokens.
type ModelRate struct {
	InputCentsPer1K  float64 `yaml:"input_cents_per_1k"`
	OutputCentsPer1K float64 `yaml:"output_cents_per_1k"`
}

// Config tunes the invoker: models, retry policy and pricing.
type Config struct {
	PrimaryModel  string
	FallbackModel string
	MaxTokens     int
	CallTimeout   time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
	Rates         map[string]ModelRate
}

func DefaultInvokerConfig() Config {
	return Config{
		MaxTokens:   1024,
		CallTimeout: 20 * time.Second,
		MaxAttempts: 3,
		BackoffBase: 500 * time.Millisecond,
	}
}

// CostCents prices a usage at the model's rate, rounding up so the ledger
// never under-counts.
func (c Config) CostCents(mdl string, u Usage) int {
	rate, ok := c.Rates[mdl]
	if !ok {
		return 0
	}
	cost := float64(u.InputTokens)/1000*rate.InputCentsPer1K +
		float64(u.OutputTokens)/1000*rate.OutputCentsPer1K
	return int(math.Ceil(cost))
}

// EstimateCents is the pre-invocation budget estimate for a prompt: input
// tokens approximated at four characters per token, output at the full
// token budget.
func (c Config) EstimateCents(promptLen int) int {
	est := Usage{
		InputTokens:  int64(promptLen/4 + 1),
		OutputTokens: int64(c.MaxTokens),
	}
	cents := c.CostCents(c.PrimaryModel, est)
	if cents < 1 {
		cents = 1
	}
	return cents
}
