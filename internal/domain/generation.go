package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// OperationState enumerates the lifecycle states of a remote generation operation.
type OperationState string

const (
	StatePending   OperationState = "pending"
	StateRunning   OperationState = "running"
	StateSucceeded OperationState = "succeeded"
	StateFailed    OperationState = "failed"
	StateTimedOut  OperationState = "timed_out"
	StateCancelled OperationState = "cancelled"
)

// IsTerminal reports whether the state will never change again.
func (s OperationState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// AspectRatio enumerates the aspect ratios the provider accepts.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
	AspectSquare    AspectRatio = "1:1"
)

// Valid reports whether the ratio is one the provider accepts.
func (a AspectRatio) Valid() bool {
	switch a {
	case AspectLandscape, AspectPortrait, AspectSquare:
		return true
	}
	return false
}

// PersonGeneration enumerates the provider's people-rendering policies.
type PersonGeneration string

const (
	PersonAllowAdult PersonGeneration = "allow_adult"
	PersonDontAllow  PersonGeneration = "dont_allow"
)

// Valid reports whether the policy is one the provider accepts.
func (p PersonGeneration) Valid() bool {
	return p == PersonAllowAdult || p == PersonDontAllow
}

// Prompt length bounds enforced before a request reaches the provider.
const (
	MinPromptLength = 10
	MaxPromptLength = 10000
)

// ValidatePromptLength checks a prompt against the provider's bounds.
// Lengths count runes, not bytes.
func ValidatePromptLength(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return ErrEmptyPrompt
	}
	if n := utf8.RuneCountInString(trimmed); n < MinPromptLength {
		return ErrPromptTooShort
	} else if n > MaxPromptLength {
		return ErrPromptTooLong
	}
	return nil
}

// ImageInput carries an input image that seeds the generation.
type ImageInput struct {
	Data []byte
	MIME string
}

// GenerationRequest describes one prompt submitted to the video provider.
type GenerationRequest struct {
	Prompt           string
	NegativePrompt   string
	AspectRatio      AspectRatio
	DurationSeconds  int
	Count            int
	PersonGeneration PersonGeneration
	EnhancePrompt    bool
	GenerateAudio    bool
	Image            *ImageInput
}

// Artifact is one downloaded video written to the output directory.
type Artifact struct {
	Path  string
	Bytes int64
	MIME  string
	Index int
}

// GenerationResult reports the terminal outcome of a single request.
type GenerationResult struct {
	Prompt        string
	OperationName string
	State         OperationState
	Artifacts     []Artifact
	Err           error
	Elapsed       time.Duration
}

// Failed reports whether the result ended without any usable artifact.
func (r *GenerationResult) Failed() bool {
	return r.State != StateSucceeded
}

// BatchReport aggregates the results of a batch run. Items are ordered
// exactly like the submitted prompts regardless of completion order.
type BatchReport struct {
	Items     []GenerationResult
	Succeeded int
	Failed    int
	Cancelled int
	Elapsed   time.Duration
}
