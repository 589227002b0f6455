package client

import (
	"context"
)

// JobStatus is the state of a submitted detection job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// PollResult is what a single poll of a job returns
type PollResult struct {
	Status JobStatus
	Output []byte // raw provider payload, set when Status is StatusSucceeded
	Cause  string // provider failure reason, set when Status is StatusFailed
}

// Detector is the asynchronous detection capability every provider exposes
type Detector interface {
	Submit(ctx context.Context, image []byte) (string, error)
	Poll(ctx context.Context, jobID string) (PollResult, error)
}

// VisionClient is a synchronous vision-language model backend
type VisionClient interface {
	Query(ctx context.Context, prompt string, image []byte) (string, error)
}
