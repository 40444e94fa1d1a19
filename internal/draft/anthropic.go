package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"replydesk/internal/model"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 1024
)

const systemPrompt = `You write replies to customer support emails on behalf of a support team.
Reply with the email body only: no subject line, no preamble, no commentary.`

// AnthropicDrafter rewrites drafts with the Anthropic Messages API.
type AnthropicDrafter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicDrafter builds a drafter. Extra options (base URL, retries,
// HTTP client) are passed through to the SDK.
func NewAnthropicDrafter(apiKey, model string, opts ...option.RequestOption) *AnthropicDrafter {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicDrafter{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: defaultMaxTokens,
	}
}

func (a *AnthropicDrafter) Regenerate(ctx context.Context, req model.RegenerateRequest) (string, error) {
	id := req.Message.ID
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt, Type: "text"}},
		Messages: []anthropic.MessageParam{{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt(req))},
		}},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", &model.DraftError{ID: id, Err: fmt.Errorf("anthropic: %w", err)}
	}
	var b strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	reply := strings.TrimSpace(b.String())
	if reply == "" {
		return "", &model.DraftError{ID: id, Err: errors.New("empty completion")}
	}
	return reply, nil
}

func prompt(req model.RegenerateRequest) string {
	m := req.Message
	var b strings.Builder
	fmt.Fprintf(&b, "Customer: %s <%s>\n", m.SenderName, m.Sender)
	fmt.Fprintf(&b, "Subject: %s\n\n", m.Subject)
	fmt.Fprintf(&b, "Customer email:\n%s\n\n", m.Body)
	if m.Summary != "" {
		fmt.Fprintf(&b, "Summary:\n%s\n\n", m.Summary)
	}
	if m.Reply != "" {
		fmt.Fprintf(&b, "Current draft reply:\n%s\n\n", m.Reply)
		b.WriteString("Rewrite the draft reply.")
	} else {
		b.WriteString("Write a reply.")
	}
	if req.Tone != "" {
		fmt.Fprintf(&b, " Tone and length: %s.", req.Tone)
	}
	if strings.TrimSpace(req.Customization) != "" {
		fmt.Fprintf(&b, "\nAdditional instructions from the operator: %s", req.Customization)
	}
	return b.String()
}
