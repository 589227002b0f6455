// Package gemini is a vision client for the Gemini API.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured
const DefaultModel = "gemini-1.5-flash"

var (
	ErrMissingAPIKey = errors.New("gemini API key is required")
	ErrEmptyResponse = errors.New("no response from Gemini API")
)

type Client struct {
	modelName string
	client    *genai.Client
}

// NewClient creates a Gemini client. Extra options are passed to genai, e.g.
// a custom endpoint.
func NewClient(ctx context.Context, apiKey, modelName string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{modelName: modelName, client: client}, nil
}

// Query sends a prompt and a JPEG image and returns the reply text
func (c *Client) Query(ctx context.Context, prompt string, image []byte) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"

	parts := []genai.Part{genai.Text(prompt)}
	if len(image) > 0 {
		parts = append(parts, genai.ImageData("jpeg", image))
	}
	res, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	return responseText(res)
}

// responseText joins the text parts of the first candidate
func responseText(res *genai.GenerateContentResponse) (string, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("unexpected response format from Gemini API")
	}
	return sb.String(), nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
