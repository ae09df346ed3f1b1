// Package veo talks to the Veo video-generation API exposed through the
// Gemini API surface: one long-running operation per request, polled until
// a terminal state, artifacts fetched afterwards.
package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
	"github.com/kauntdewn1/neo-prompts/internal/infra"
)

// Options controls how the Veo client is configured.
type Options struct {
	APIKey           string
	BaseURL          string
	Model            string
	HTTPClient       *http.Client
	Logger           *infra.Logger
	PollInterval     time.Duration
	OperationTimeout time.Duration
}

// Client performs HTTP calls against the Veo generateVideos endpoint and
// its operation resources.
type Client struct {
	apiKey           string
	baseURL          string
	model            string
	httpClient       *http.Client
	logger           *infra.Logger
	pollInterval     time.Duration
	operationTimeout time.Duration
}

// Operation is the observed state of one remote generation operation.
type Operation struct {
	Name        string
	State       domain.OperationState
	Message     string
	Predictions []Prediction
}

// Prediction is one produced video, delivered either as a download URI or
// inline base64 bytes.
type Prediction struct {
	URI      string
	Inline   string
	MimeType string
}

type generateVideosRequest struct {
	Instances  []videoInstance `json:"instances"`
	Parameters videoParameters `json:"parameters"`
}

type videoInstance struct {
	Prompt string       `json:"prompt"`
	Image  *inlineImage `json:"image,omitempty"`
}

type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

type videoParameters struct {
	AspectRatio      string `json:"aspectRatio,omitempty"`
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
	DurationSeconds  int    `json:"durationSeconds,omitempty"`
	NumberOfVideos   int    `json:"numberOfVideos,omitempty"`
	EnhancePrompt    bool   `json:"enhancePrompt,omitempty"`
	GenerateAudio    bool   `json:"generateAudio,omitempty"`
}

type operationEnvelope struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *operationError    `json:"error,omitempty"`
	Response *operationResponse `json:"response,omitempty"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type operationResponse struct {
	Predictions []videoPrediction `json:"predictions"`
}

type videoPrediction struct {
	Video videoFile `json:"video"`
}

type videoFile struct {
	URI                string `json:"uri,omitempty"`
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 300 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "veo-3.0-generate-preview"
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	operationTimeout := opts.OperationTimeout
	if operationTimeout <= 0 {
		operationTimeout = 10 * time.Minute
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:           strings.TrimSpace(opts.APIKey),
		baseURL:          baseURL,
		model:            model,
		httpClient:       httpClient,
		logger:           logger,
		pollInterval:     pollInterval,
		operationTimeout: operationTimeout,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit starts one generation operation and returns its name. HTTP-level
// rejections are classified transient or permanent by status code.
func (c *Client) Submit(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if !c.HasCredentials() {
		return "", fmt.Errorf("veo: %w", domain.ErrMissingAPIKey)
	}
	instance := videoInstance{Prompt: req.Prompt}
	if req.Image != nil {
		instance.Image = &inlineImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.Image.Data),
			MimeType:           req.Image.MIME,
		}
	}
	payload := generateVideosRequest{
		Instances: []videoInstance{instance},
		Parameters: videoParameters{
			AspectRatio:      string(req.AspectRatio),
			NegativePrompt:   req.NegativePrompt,
			PersonGeneration: string(req.PersonGeneration),
			DurationSeconds:  req.DurationSeconds,
			NumberOfVideos:   req.Count,
			EnhancePrompt:    req.EnhancePrompt,
			GenerateAudio:    req.GenerateAudio,
		},
	}

	var decoded operationEnvelope
	path := fmt.Sprintf("/v1beta/models/%s:generateVideos", c.model)
	if err := c.invoke(ctx, path, payload, &decoded); err != nil {
		return "", fmt.Errorf("veo: submit: %w", err)
	}
	if decoded.Name == "" {
		return "", fmt.Errorf("veo: submit: %w", domain.NewProviderError(0, "operation name missing from response"))
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("operation", decoded.Name).
		Msg("veo: submitted generation operation")
	return decoded.Name, nil
}

// Poll fetches the current state of one operation.
func (c *Client) Poll(ctx context.Context, name string) (*Operation, error) {
	endpoint := c.baseURL + "/v1beta/" + strings.TrimLeft(name, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("veo: create poll request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("veo: poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("veo: poll: %w", c.decodeAPIError(resp))
	}
	var decoded operationEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("veo: decode poll response: %w", err)
	}
	return toOperation(name, decoded), nil
}

// Await polls the operation until it reaches a terminal state, the
// configured poll window elapses, or ctx is cancelled. Transient poll
// failures keep the wait alive.
func (c *Client) Await(ctx context.Context, name string) (*Operation, error) {
	deadline := time.Now().Add(c.operationTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("veo: await %s: %w", name, ctx.Err())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("veo: await %s: %w", name, domain.ErrOperationTimeout)
			}
			op, err := c.Poll(ctx, name)
			if err != nil {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("veo: await %s: %w", name, ctx.Err())
				}
				var pe *domain.ProviderError
				if errors.As(err, &pe) && !pe.Retryable {
					return nil, err
				}
				c.logger.Debug().Err(err).Str("operation", name).Msg("veo: poll attempt failed, continuing")
				continue
			}
			if op.State.IsTerminal() {
				return op, nil
			}
			c.logger.Debug().Str("operation", name).Str("state", string(op.State)).Msg("veo: operation still running")
		}
	}
}

// Download fetches one prediction's bytes, following the URI form or
// decoding the inline form.
func (c *Client) Download(ctx context.Context, pred Prediction) ([]byte, string, error) {
	mime := pred.MimeType
	if mime == "" {
		mime = "video/mp4"
	}
	if pred.Inline != "" {
		data, err := base64.StdEncoding.DecodeString(pred.Inline)
		if err != nil {
			return nil, "", fmt.Errorf("veo: decode inline video: %w", err)
		}
		return data, mime, nil
	}
	if pred.URI == "" {
		return nil, "", errors.New("veo: prediction carries neither uri nor inline bytes")
	}

	target := pred.URI
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(target, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("veo: create download request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("veo: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("veo: download status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("veo: read download: %w", err)
	}
	if len(blob) == 0 {
		return nil, "", errors.New("veo: download returned an empty body")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mime = ct
	}
	return blob, mime, nil
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
}

func (c *Client) decodeAPIError(resp *http.Response) error {
	var apiErr apiErrorResponse
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		return domain.NewProviderError(resp.StatusCode, apiErr.Error.Message)
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return domain.NewProviderError(resp.StatusCode, msg)
}

func toOperation(name string, env operationEnvelope) *Operation {
	op := &Operation{Name: name, State: domain.StateRunning}
	if env.Name != "" {
		op.Name = env.Name
	}
	if !env.Done {
		return op
	}
	if env.Error != nil {
		op.State = domain.StateFailed
		op.Message = env.Error.Message
		return op
	}
	op.State = domain.StateSucceeded
	if env.Response != nil {
		for _, pred := range env.Response.Predictions {
			op.Predictions = append(op.Predictions, Prediction{
				URI:      pred.Video.URI,
				Inline:   pred.Video.BytesBase64Encoded,
				MimeType: pred.Video.MimeType,
			})
		}
	}
	return op
}

