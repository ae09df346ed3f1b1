// Package generator drives prompts through the video provider: validation,
// submission with retry, operation await, artifact download and storage.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
	"github.com/kauntdewn1/neo-prompts/internal/infra"
	"github.com/kauntdewn1/neo-prompts/internal/providers/veo"
	"github.com/kauntdewn1/neo-prompts/internal/retry"
	"github.com/kauntdewn1/neo-prompts/internal/storage"
)

// VideoClient is the provider surface the pipeline needs. The veo client
// satisfies it; tests substitute stubs.
type VideoClient interface {
	Submit(ctx context.Context, req domain.GenerationRequest) (string, error)
	Await(ctx context.Context, name string) (*veo.Operation, error)
	Download(ctx context.Context, pred veo.Prediction) ([]byte, string, error)
}

// Options wires the pipeline's collaborators.
type Options struct {
	Client      VideoClient
	Store       *storage.FileStore
	RetryPolicy retry.Policy
	Logger      *infra.Logger
}

// Generator runs single prompts and batches to completion.
type Generator struct {
	client VideoClient
	store  *storage.FileStore
	policy retry.Policy
	logger *infra.Logger
}

// New constructs a Generator and validates its collaborators.
func New(opts Options) (*Generator, error) {
	if opts.Client == nil {
		return nil, errors.New("generator: video client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("generator: artifact store is required")
	}
	policy := opts.RetryPolicy
	if policy.MaxAttempts < 1 {
		policy = retry.NewPolicy(3, 30*time.Second)
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Generator{
		client: opts.Client,
		store:  opts.Store,
		policy: policy,
		logger: logger,
	}, nil
}

// Generate runs one request to its terminal state. The result always
// carries a terminal state and the elapsed time; failures are recorded on
// the result instead of aborting the caller.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) *domain.GenerationResult {
	start := time.Now()
	result := &domain.GenerationResult{Prompt: req.Prompt}

	if err := validateRequest(req); err != nil {
		return g.finish(result, start, domain.StateFailed, err)
	}

	var operationName string
	err := g.policy.Do(ctx, func() error {
		name, submitErr := g.client.Submit(ctx, req)
		if submitErr != nil {
			return submitErr
		}
		operationName = name
		return nil
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("generator: submit failed")
		return g.finish(result, start, stateForError(err), fmt.Errorf("generator: submit: %w", err))
	}
	result.OperationName = operationName

	op, err := g.client.Await(ctx, operationName)
	if err != nil {
		g.logger.Warn().Err(err).Str("operation", operationName).Msg("generator: await failed")
		return g.finish(result, start, stateForError(err), err)
	}
	if op.State != domain.StateSucceeded {
		perr := domain.NewProviderError(0, op.Message)
		return g.finish(result, start, op.State, fmt.Errorf("generator: operation failed: %w", perr))
	}
	if len(op.Predictions) == 0 {
		return g.finish(result, start, domain.StateFailed, fmt.Errorf("generator: %w", domain.ErrNoPredictions))
	}

	stamp := time.Now()
	var downloadErrs []error
	for i, pred := range op.Predictions {
		index := i + 1
		data, mime, err := g.client.Download(ctx, pred)
		if err != nil {
			downloadErrs = append(downloadErrs, &domain.DownloadError{Index: index, Cause: err})
			continue
		}
		path, err := g.store.WriteUnique(ctx, storage.VideoKey(stamp, index), data)
		if err != nil {
			downloadErrs = append(downloadErrs, &domain.DownloadError{Index: index, Cause: err})
			continue
		}
		result.Artifacts = append(result.Artifacts, domain.Artifact{
			Path:  path,
			Bytes: int64(len(data)),
			MIME:  mime,
			Index: index,
		})
		g.logger.Info().Str("path", path).Int("index", index).Msg("generator: artifact written")
	}

	// Partial download success still counts as success; losing every
	// artifact does not.
	if len(result.Artifacts) == 0 {
		return g.finish(result, start, domain.StateFailed, errors.Join(downloadErrs...))
	}
	return g.finish(result, start, domain.StateSucceeded, errors.Join(downloadErrs...))
}

func (g *Generator) finish(result *domain.GenerationResult, start time.Time, state domain.OperationState, err error) *domain.GenerationResult {
	result.State = state
	result.Err = err
	result.Elapsed = time.Since(start)
	return result
}

func validateRequest(req domain.GenerationRequest) error {
	if err := domain.ValidatePromptLength(req.Prompt); err != nil {
		return err
	}
	if !req.AspectRatio.Valid() {
		return domain.NewConfigError("aspect", "%q is not one of 16:9, 9:16, 1:1", string(req.AspectRatio))
	}
	if req.DurationSeconds < 5 || req.DurationSeconds > 8 {
		return domain.NewConfigError("duration", "%d is outside 5..8", req.DurationSeconds)
	}
	if req.Count < 1 || req.Count > 4 {
		return domain.NewConfigError("count", "%d is outside 1..4", req.Count)
	}
	if !req.PersonGeneration.Valid() {
		return domain.NewConfigError("person", "%q is not one of allow_adult, dont_allow", string(req.PersonGeneration))
	}
	return nil
}

func stateForError(err error) domain.OperationState {
	switch domain.ReasonOf(err) {
	case domain.ReasonCancelled:
		return domain.StateCancelled
	case domain.ReasonTimeout:
		return domain.StateTimedOut
	}
	return domain.StateFailed
}
