// Package replicate speaks Replicate's asynchronous prediction API.
package replicate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	r8 "github.com/replicate/replicate-go"

	"github.com/menta2k/autorig/pkg/client"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrMissingToken   = errors.New("replicate API token is required")
	ErrMissingVersion = errors.New("replicate model version is required")
	ErrNoPredictionID = errors.New("replicate returned no prediction id")
)

// Client submits predictions against one model version
type Client struct {
	api     *r8.Client
	version string
	prompt  string
	opts    []r8.ClientOption
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API root
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.opts = append(c.opts, r8.WithBaseURL(strings.TrimSuffix(u, "/")))
		}
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.opts = append(c.opts, r8.WithHTTPClient(h))
		}
	}
}

// WithPrompt sets the prompt input sent with every image
func WithPrompt(p string) Option {
	return func(c *Client) {
		c.prompt = p
	}
}

// NewClient creates a prediction client for a model version
func NewClient(token, version string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if version == "" {
		return nil, ErrMissingVersion
	}
	c := &Client{version: version, opts: []r8.ClientOption{r8.WithToken(token)}}
	for _, opt := range opts {
		opt(c)
	}
	api, err := r8.NewClient(c.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create replicate client: %w", err)
	}
	c.api = api
	return c, nil
}

// Submit creates a prediction and returns its id
func (c *Client) Submit(ctx context.Context, image []byte) (string, error) {
	input := r8.PredictionInput{
		"image": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
	}
	if c.prompt != "" {
		input["prompt"] = c.prompt
	}
	p, err := c.api.CreatePrediction(ctx, c.version, input, nil, false)
	if err != nil {
		return "", fmt.Errorf("failed to create prediction: %w", err)
	}
	if p.ID == "" {
		return "", ErrNoPredictionID
	}
	return p.ID, nil
}

// Poll fetches the current state of a prediction
func (c *Client) Poll(ctx context.Context, jobID string) (client.PollResult, error) {
	p, err := c.api.GetPrediction(ctx, jobID)
	if err != nil {
		return client.PollResult{}, fmt.Errorf("failed to get prediction %s: %w", jobID, err)
	}

	switch p.Status {
	case r8.Succeeded:
		return client.PollResult{Status: client.StatusSucceeded, Output: flattenOutput(p.Output)}, nil
	case r8.Failed, r8.Canceled:
		cause := errorText(p.Error)
		if cause == "" {
			cause = "prediction " + string(p.Status)
		}
		return client.PollResult{Status: client.StatusFailed, Cause: cause}, nil
	case r8.Starting, r8.Processing, "":
		return client.PollResult{Status: client.StatusPending}, nil
	}
	return client.PollResult{}, fmt.Errorf("unknown prediction status %q", p.Status)
}

// flattenOutput turns the model output into one payload. Language models
// stream their answer as an array of string tokens.
func flattenOutput(out r8.PredictionOutput) []byte {
	switch v := out.(type) {
	case nil:
		return nil
	case string:
		return []byte(v)
	case []interface{}:
		var sb strings.Builder
		for _, tok := range v {
			s, ok := tok.(string)
			if !ok {
				return marshal(v)
			}
			sb.WriteString(s)
		}
		return []byte(sb.String())
	}
	return marshal(out)
}

func marshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func errorText(e interface{}) string {
	switch v := e.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	return string(marshal(e))
}
