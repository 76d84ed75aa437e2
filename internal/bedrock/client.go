// Package bedrock wraps the Bedrock runtime InvokeModel API for Anthropic
// Claude models: it builds the messages envelope, decodes the reply and
// classifies provider failures into a small set of kinds.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/Uuq114/JanusBedrock/internal/models"
)

const (
	DefaultAnthropicVersion = "bedrock-2023-05-31"
	DefaultSystemPrompt     = "You are a helpful AI assistant. Provide clear, concise, and accurate responses."

	contentTypeJSON = "application/json"
)

// InvokeModelAPI is the subset of *bedrockruntime.Client the gateway needs.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type Options struct {
	ModelID          string
	SystemPrompt     string
	AnthropicVersion string
}

type Client struct {
	api     InvokeModelAPI
	modelID string
	system  string
	version string
}

// Completion is the decoded result of one InvokeModel call.
type Completion struct {
	ID           string
	Text         string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

func NewClient(api InvokeModelAPI, opts Options) *Client {
	if opts.AnthropicVersion == "" {
		opts.AnthropicVersion = DefaultAnthropicVersion
	}
	return &Client{
		api:     api,
		modelID: opts.ModelID,
		system:  opts.SystemPrompt,
		version: opts.AnthropicVersion,
	}
}

// NewFromEndpoint builds a runtime client for one endpoint using the default
// AWS credential chain. The SDK retryer is disabled: failures surface on the
// first attempt.
func NewFromEndpoint(ctx context.Context, endpoint *models.Endpoint, opts Options) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(endpoint.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config for %s: %w", endpoint.Name, err)
	}
	api := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.Retryer = aws.NopRetryer{}
		if endpoint.BaseURL != "" {
			o.BaseEndpoint = aws.String(endpoint.BaseURL)
		}
	})
	return NewClient(api, opts), nil
}

func (c *Client) ModelID() string {
	return c.modelID
}

// Chat sends a single user message and waits for the model's reply.
func (c *Client) Chat(ctx context.Context, prompt string, maxTokens int) (*Completion, error) {
	body, err := json.Marshal(c.envelope(prompt, maxTokens))
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
		Body:        body,
	})
	if err != nil {
		return nil, classify(err)
	}

	return decodeCompletion(out.Body)
}

func (c *Client) envelope(prompt string, maxTokens int) envelope {
	return envelope{
		AnthropicVersion: c.version,
		MaxTokens:        maxTokens,
		System:           c.system,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	}
}

func decodeCompletion(body []byte) (*Completion, error) {
	var resp invokeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		err = fmt.Errorf("decode model response: %w", err)
		return nil, &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
	}
	if len(resp.Content) == 0 {
		return nil, &Error{Kind: KindUnknown, Message: ErrEmptyContent.Error(), Err: ErrEmptyContent}
	}

	return &Completion{
		ID:           resp.ID,
		Text:         resp.Content[0].Text,
		StopReason:   resp.StopReason,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
