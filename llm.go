package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	gocache "github.com/patrickmn/go-cache"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

type LLMUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u LLMUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *LLMUsage) Add(other LLMUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// DraftProducer turns article text into raw candidate coding rows via an LLM.
// Its output is untrusted: rows may be incomplete or carry invented enum
// labels, and callers are expected to run NormalizeRecord + ApplyQC on every
// row. Calls are rate limited and results cached per article so re-coding the
// same text within a session does not burn tokens.
type DraftProducer struct {
	cfg      Config
	codebook *Codebook
	limiter  *rate.Limiter
	cache    *gocache.Cache
}

func NewDraftProducer(cfg Config, codebook *Codebook) *DraftProducer {
	return &DraftProducer{
		cfg:      cfg,
		codebook: codebook,
		limiter:  rate.NewLimiter(rate.Limit(cfg.LLMRateRPS), cfg.LLMRateBurst),
		cache:    gocache.New(time.Duration(cfg.DraftCacheTTLMinutes)*time.Minute, 10*time.Minute),
	}
}

// Model returns the configured model name, or the provider default.
func (p *DraftProducer) Model() string {
	if p.cfg.LLMModel != "" {
		return p.cfg.LLMModel
	}
	if p.cfg.LLMProvider == "openai" {
		return defaultOpenAIModel
	}
	return defaultAnthropicModel
}

// GenerateCodingDraft sends the article plus codebook to the configured
// provider and returns zero or more raw candidate rows. A cache hit returns
// the previously drafted rows with zero usage.
func (p *DraftProducer) GenerateCodingDraft(ctx context.Context, articleText string) ([]map[string]string, LLMUsage, error) {
	model := p.Model()
	key := draftCacheKey(p.cfg.LLMProvider, model, articleText)
	if cached, ok := p.cache.Get(key); ok {
		rows := cached.([]map[string]string)
		log.Printf("llm draft cache hit provider=%s model=%s rows=%d", p.cfg.LLMProvider, model, len(rows))
		return cloneRows(rows), LLMUsage{}, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, LLMUsage{}, err
	}

	systemPrompt, userPrompt := buildCodingPrompts(p.codebook.Text, articleText)

	var responseText string
	var usage LLMUsage
	var callErr error
	switch p.cfg.LLMProvider {
	case "openai":
		log.Printf("llm draft provider=openai model=%s article_chars=%d", model, len(articleText))
		responseText, usage, callErr = callOpenAI(ctx, p.cfg.OpenAIAPIKey, model, systemPrompt, userPrompt)
	default:
		log.Printf("llm draft provider=anthropic model=%s article_chars=%d", model, len(articleText))
		responseText, usage, callErr = callAnthropic(ctx, p.cfg.AnthropicAPIKey, model, systemPrompt, userPrompt)
	}
	if callErr != nil {
		return nil, usage, callErr
	}

	rows, err := parseDraftRows(responseText)
	if err != nil {
		return nil, usage, err
	}

	p.cache.Set(key, cloneRows(rows), gocache.DefaultExpiration)
	return rows, usage, nil
}

func draftCacheKey(provider, model, articleText string) string {
	sum := sha256.Sum256([]byte(provider + "|" + model + "|" + articleText))
	return hex.EncodeToString(sum[:])
}

// ArticleSHA identifies an article in the draft audit trail.
func ArticleSHA(articleText string) string {
	sum := sha256.Sum256([]byte(articleText))
	return hex.EncodeToString(sum[:])[:16]
}

func cloneRows(rows []map[string]string) []map[string]string {
	out := make([]map[string]string, len(rows))
	for i, row := range rows {
		cp := make(map[string]string, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

func buildCodingPrompts(codebookText, articleText string) (string, string) {
	var fieldLines strings.Builder
	for _, def := range fieldRegistry {
		// original_text is attached by the app, never requested from the model.
		if def.Name == "original_text" {
			continue
		}
		if def.Allowed != nil {
			fieldLines.WriteString(fmt.Sprintf("- %s: exactly one of [%s]\n", def.Name, strings.Join(def.Allowed, " | ")))
		} else {
			fieldLines.WriteString(fmt.Sprintf("- %s: free text\n", def.Name))
		}
	}

	systemPrompt := fmt.Sprintf(`You are an exacting academic coding assistant. Follow the CODEBOOK and fill the fields strictly, using ONLY evidence from the article.

Fields per row:
%s
Rules:
- Verbatim fields must copy exactly and include page/section anchors when present (e.g. "..." p. 12; Fig. 2).
- Use pipe '|' for multi-value tokens (purpose_tokens, equity_tags, engagement_tags).
- If evidence is insufficient after two careful passes, choose NA and explain briefly in notes.
- If you infer from strong contextual cues, set inferred=Yes and justify in the relevant *_evidence field.

CODEBOOK:
---
%s
---

Respond with JSON only (no markdown):
{"rows": [{"scope_decision": "Include", ...}, ...]}
"rows" is ALWAYS a list, even for a single row. If the document contains distinct split-cases with separate definitions/typologies/outcomes, return one row per case and set split_case=Yes on those rows.`, fieldLines.String(), codebookText)

	userPrompt := "ARTICLE:\n---\n" + articleText + "\n---"
	return systemPrompt, userPrompt
}

type draftEnvelope struct {
	Rows []map[string]json.RawMessage `json:"rows"`
}

// parseDraftRows extracts candidate rows from the model response. Values of
// any JSON type are coerced to strings; string arrays are pipe-joined to match
// the multi-value token convention. Shape violations (no rows object) are an
// error; per-field garbage is not — the normalizer handles that downstream.
func parseDraftRows(responseText string) ([]map[string]string, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var envelope draftEnvelope
	if err := json.Unmarshal([]byte(responseText), &envelope); err != nil {
		truncated := responseText
		if len(truncated) > 512 {
			truncated = truncated[:512] + fmt.Sprintf("... [truncated, total_length=%d]", len(responseText))
		}
		return nil, fmt.Errorf("parsing draft response: %w (truncated response: %s)", err, truncated)
	}

	rows := make([]map[string]string, 0, len(envelope.Rows))
	for _, raw := range envelope.Rows {
		row := make(map[string]string, len(raw))
		for field, val := range raw {
			row[field] = coerceDraftValue(val)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func coerceDraftValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}

	// Models occasionally return arrays for multi-value token fields.
	var asStringSlice []string
	if err := json.Unmarshal(raw, &asStringSlice); err == nil {
		var parts []string
		for _, s := range asStringSlice {
			s = strings.TrimSpace(s)
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "|")
	}

	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String()
	}

	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		if asBool {
			return "Yes"
		}
		return "No"
	}

	return ""
}

// --- Anthropic ---

func callAnthropic(ctx context.Context, apiKey, model, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 8192,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", LLMUsage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := LLMUsage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d cache_create=%d cache_read=%d", len(block.Text), usage.InputTokens, usage.OutputTokens, usage.CacheCreationInputTokens, usage.CacheReadInputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}

// --- OpenAI ---

func callOpenAI(ctx context.Context, apiKey, model, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	client := openai.NewClient(apiKey)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		log.Printf("llm openai error: %v", err)
		return "", LLMUsage{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", LLMUsage{}, fmt.Errorf("no choices in OpenAI response")
	}
	usage := LLMUsage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}
	log.Printf("llm openai response size=%d tokens_in=%d tokens_out=%d", len(resp.Choices[0].Message.Content), usage.InputTokens, usage.OutputTokens)
	return resp.Choices[0].Message.Content, usage, nil
}
