// Package analyze provides the optional LLM-assisted request analysis.
// The original TaskMind bot asked a model to understand the user's problem
// and recommend agents, falling back to keyword routing when the call
// failed. The same split holds here: the deterministic classifier is
// authoritative for pipeline construction; the analyzer only enriches the
// clarification and confirmation text shown to the user.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/taskmind/taskmind/internal/registry"
)

// Analysis is the model's view of a request.
type Analysis struct {
	// Summary is a conversational response to show the user.
	Summary string `json:"response_message"`
	// Recommended lists capability ids the model suggests, most likely first.
	Recommended []string `json:"recommended_agents"`
	// Questions are clarifying questions when the request is ambiguous.
	Questions []string `json:"clarifying_questions"`
	// NeedsMoreInfo indicates the model wants answers before recommending.
	NeedsMoreInfo bool `json:"needs_more_info"`
	// Confidence is the model's own high/medium/low estimate.
	Confidence string `json:"confidence"`
}

// Config configures the Analyzer.
type Config struct {
	// APIKey is the Anthropic API key. Ignored when UseBedrock is set.
	APIKey string
	// Model is the Claude model, empty for the default.
	Model string
	// UseBedrock routes calls through AWS Bedrock.
	UseBedrock bool
	// AWSRegion is the Bedrock region.
	AWSRegion string
	// AWSProfile is an optional AWS profile name.
	AWSProfile string
}

// Analyzer wraps the Anthropic client for request analysis.
type Analyzer struct {
	client anthropic.Client
	model  anthropic.Model
}

// New creates an Analyzer. Either an API key or Bedrock must be configured.
func New(cfg Config) (*Analyzer, error) {
	var opts []option.RequestOption

	if cfg.UseBedrock {
		ctx := context.Background()
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("analyze: no API key configured")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaude3_5Haiku20241022
	}

	return &Analyzer{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Analyze asks the model to interpret the request against the available
// capabilities. Errors should be treated as "no analysis available", not as
// request failures.
func (a *Analyzer) Analyze(ctx context.Context, text string, profiles []registry.CapabilityProfile) (*Analysis, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 800,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(profiles)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	var raw string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			raw += variant.Text
		}
	}

	return ParseAnalysis(raw)
}

// systemPrompt builds the instruction listing the available capabilities.
func systemPrompt(profiles []registry.CapabilityProfile) string {
	var b strings.Builder
	b.WriteString("You route user requests to specialized capabilities.\n")
	b.WriteString("Available capabilities:\n")
	for _, p := range profiles {
		fmt.Fprintf(&b, "- %s (id: %s)\n", p.DisplayName, p.ID)
	}
	b.WriteString(`
Respond with ONLY valid JSON, no markdown:
{
  "needs_more_info": boolean,
  "clarifying_questions": ["..."],
  "response_message": "conversational response to the user",
  "recommended_agents": ["capability_id"],
  "confidence": "high/medium/low"
}`)
	return b.String()
}

// ParseAnalysis decodes the model's JSON reply, tolerating a fenced code
// block around it.
func ParseAnalysis(raw string) (*Analysis, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var out Analysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("analyze: parse model reply: %w", err)
	}
	return &out, nil
}
