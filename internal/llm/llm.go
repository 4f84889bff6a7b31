// Package llm fills gaps the regex parser leaves by asking Gemini to read
// the same message.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finchat/internal/config"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/parser"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// DefaultModelName is used when the configuration leaves the model empty.
const DefaultModelName = "gemini-2.5-flash"

// Assistant completes a parsed transaction.
type Assistant interface {
	Complete(ctx context.Context, text string, parsed parser.ParsedTransaction, c parser.Context) (parser.ParsedTransaction, error)
}

// Generator sends a prompt to a model and returns the raw text answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiAssistant is an Assistant backed by a Generator, normally Gemini.
type GeminiAssistant struct {
	gen     Generator
	timeout time.Duration
}

var _ Assistant = (*GeminiAssistant)(nil)

// NewGeminiAssistant creates a Gemini client from cfg. An empty API key
// lets the SDK read GOOGLE_API_KEY from the environment.
func NewGeminiAssistant(ctx context.Context, cfg config.LLMConfig) (*GeminiAssistant, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiAssistant: create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModelName
	}
	return NewAssistant(&geminiGenerator{client: client, model: model}, cfg.Timeout), nil
}

// NewAssistant wraps any Generator. A zero timeout means no extra deadline.
func NewAssistant(gen Generator, timeout time.Duration) *GeminiAssistant {
	return &GeminiAssistant{gen: gen, timeout: timeout}
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// modelAnswer is the JSON object the prompt asks for. Null fields stay nil.
type modelAnswer struct {
	Type        *string          `json:"type"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
	Account     *string          `json:"account"`
	Description *string          `json:"description"`
}

// Complete asks the model about text and merges its answer into the
// fields of parsed that are still unresolved. Fields the regex parser
// already found are never overwritten.
func (a *GeminiAssistant) Complete(ctx context.Context, text string, parsed parser.ParsedTransaction, c parser.Context) (parser.ParsedTransaction, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.gen.Generate(ctx, buildPrompt(text, c))
	if err != nil {
		return parsed, fmt.Errorf("Complete: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return parsed, fmt.Errorf("Complete: empty response from model")
	}

	var ans modelAnswer
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &ans); err != nil {
		return parsed, fmt.Errorf("Complete: unmarshal JSON: %w", err)
	}

	return merge(text, parsed, ans, c), nil
}

// merge fills the unresolved fields of p from ans. A type supplied by the
// model unlocks the keyword category scan the parser skipped, and that scan
// is preferred over the model's category.
func merge(text string, p parser.ParsedTransaction, ans modelAnswer, c parser.Context) parser.ParsedTransaction {
	if p.Type == "" && ans.Type != nil {
		if t := domain.TransactionType(strings.ToLower(strings.TrimSpace(*ans.Type))); t.Valid() {
			p.Type = t
			if p.Category == "" {
				p.Category = parser.DetectCategory(text)
			}
		}
	}

	if !p.Amount.Valid && ans.Amount != nil && ans.Amount.IsPositive() {
		p.Amount = decimal.NewNullDecimal(*ans.Amount)
	}

	if p.Category == "" && p.Type != "" && ans.Category != nil {
		if m := parser.ResolveCategory(*ans.Category, p.Type, c.Categories); m.Confident() {
			p.Category = strings.ToLower(m.Category.Name)
		}
	}

	if p.Account == "" && ans.Account != nil {
		name := strings.TrimSpace(*ans.Account)
		for _, acc := range c.Accounts {
			if name != "" && strings.EqualFold(acc.Name, name) {
				p.Account = acc.Name
				p.AccountID = acc.ID
				break
			}
		}
	}

	if (p.Description == "" || p.Description == parser.FallbackDescription) && ans.Description != nil {
		if d := strings.TrimSpace(*ans.Description); d != "" {
			p.Description = d
		}
	}

	p.Confidence, p.MissingFields = parser.Score(p, len(c.Accounts))
	return p
}

func buildPrompt(text string, c parser.Context) string {
	var b strings.Builder
	b.WriteString("You extract a single personal-finance transaction from a Brazilian Portuguese chat message.\n\n")
	b.WriteString("Output STRICT JSON only: one object with these fields:\n")
	b.WriteString("- \"type\": \"income\", \"expense\" or null\n")
	b.WriteString("- \"amount\": positive number or null\n")
	b.WriteString("- \"category\": one of the categories below or null\n")
	b.WriteString("- \"account\": one of the accounts below or null\n")
	b.WriteString("- \"description\": short description or null\n\n")

	b.WriteString("Categories:\n")
	for _, cat := range c.Categories {
		fmt.Fprintf(&b, "- %s (%s)\n", cat.Name, cat.Type)
	}
	b.WriteString("\nAccounts:\n")
	for _, acc := range c.Accounts {
		fmt.Fprintf(&b, "- %s\n", acc.Name)
	}

	b.WriteString("\nUse null when the message does not say. Do NOT wrap the response in code fences.\n\n")
	fmt.Fprintf(&b, "Message: %q\n", text)
	return b.String()
}

// cleanModelJSON strips Markdown fences and surrounding text from a model
// answer, keeping the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
