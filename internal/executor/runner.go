package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"api-path-tester/internal/logger"
	"api-path-tester/internal/scenario"
	"api-path-tester/internal/testdata"
	"api-path-tester/internal/types"
)

// TestConfig holds configuration for test execution
type TestConfig struct {
	BaseURL    string
	Concurrent bool
	MaxWorkers int
	Timeout    int     // per-request timeout in seconds
	RateLimit  float64 // requests per second across all runs, 0 disables pacing
	Auth       AuthConfig
}

// AuthConfig holds credentials attached to every request
type AuthConfig struct {
	Type  string
	Token string
}

// FixtureSource supplies request payload templates
type FixtureSource interface {
	Load(dataKey string, useInvalidData bool) (map[string]interface{}, error)
}

// Recorder receives execution measurements
type Recorder interface {
	ObserveStep(endpoint string, statusCode int, duration time.Duration)
	ObserveTransportError(endpoint string)
	ObserveScenario(verdict, expected string)
}

// Option customizes a TestExecutor
type Option func(*TestExecutor)

// WithLogger sets the logger used for step and verdict output
func WithLogger(l *logger.Logger) Option {
	return func(e *TestExecutor) { e.logger = l }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(e *TestExecutor) { e.recorder = r }
}

// WithTransport sets the round tripper shared by the per-run HTTP clients
func WithTransport(t http.RoundTripper) Option {
	return func(e *TestExecutor) { e.transport = t }
}

// TestExecutor runs endpoint paths against the API under test.
// Specs and configuration are read-only after construction; every RunPath call
// gets its own variable context and HTTP client.
type TestExecutor struct {
	config    TestConfig
	specs     map[string]types.EndpointSpec
	fixtures  FixtureSource
	transport http.RoundTripper
	limiter   *rate.Limiter
	logger    *logger.Logger
	recorder  Recorder
}

// NewTestExecutor creates a new test executor
func NewTestExecutor(config TestConfig, specs map[string]types.EndpointSpec, fixtures FixtureSource, opts ...Option) *TestExecutor {
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 1
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	e := &TestExecutor{
		config:    config,
		specs:     specs,
		fixtures:  fixtures,
		transport: http.DefaultTransport,
		logger:    logger.NewNop(),
	}
	if config.RateLimit > 0 {
		burst := int(config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the mutable state of a single path execution
type run struct {
	vars    map[string]interface{}
	verdict types.Verdict
	client  *http.Client
}

func (e *TestExecutor) newRun() *run {
	// cookiejar.New only fails on a bad PublicSuffixList, and none is given
	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Transport: e.transport,
		Jar:       jar,
	}
	if e.config.Timeout > 0 {
		client.Timeout = time.Duration(e.config.Timeout) * time.Second
	}
	return &run{
		vars:    make(map[string]interface{}),
		verdict: types.Verdict{Details: []types.StepResult{}},
		client:  client,
	}
}

func (r *run) finish(status types.Status, reason string) types.Verdict {
	r.verdict.Status = status
	r.verdict.Reason = reason
	r.verdict.Context = r.vars
	return r.verdict
}

// RunPath executes each step of the path in order, injecting values produced by earlier
// steps into later payloads. It stops at the first missing dependency, transport error or
// status >= 400. Failures are reported in the verdict, never as an error.
func (e *TestExecutor) RunPath(ctx context.Context, path types.Path, useInvalidData bool) types.Verdict {
	r := e.newRun()
	e.logger.Debug("executing path", zap.String("path", path.String()), zap.Bool("invalid_data", useInvalidData))

	for _, step := range path {
		spec, ok := e.specs[step]
		if !ok {
			return r.finish(types.StatusFailed, fmt.Sprintf("unknown endpoint %q", step))
		}

		payload, err := e.fixtures.Load(spec.DataKey, useInvalidData)
		if err != nil {
			if !errors.Is(err, testdata.ErrFixtureNotFound) {
				return r.finish(types.StatusFailed, fmt.Sprintf("invalid fixture for step %q: %v", step, err))
			}
			warning := fmt.Sprintf("no fixture for step %q: %v", step, err)
			e.logger.Warn("using empty payload", zap.String("step", step), zap.Error(err))
			r.verdict.Warnings = append(r.verdict.Warnings, warning)
			payload = make(map[string]interface{})
		}

		// Inject required variables from context
		for _, variable := range spec.Requires {
			value, ok := r.vars[variable]
			if !ok || value == nil {
				e.logger.Warn("missing dependency", zap.String("step", step), zap.String("variable", variable))
				return r.finish(types.StatusFailed, fmt.Sprintf("missing dependency %q for step %q", variable, step))
			}
			payload[variable] = value
		}

		result, err := e.executeStep(ctx, r.client, spec, payload)
		if err != nil {
			if e.recorder != nil {
				e.recorder.ObserveTransportError(step)
			}
			e.logger.Warn("request failed", zap.String("step", step), zap.Error(err))
			return r.finish(types.StatusFailed, err.Error())
		}
		r.verdict.Details = append(r.verdict.Details, result)
		e.logger.LogStep(result)
		if e.recorder != nil {
			e.recorder.ObserveStep(step, result.StatusCode, result.Duration)
		}

		if result.StatusCode >= 400 {
			return r.finish(types.StatusFailed, fmt.Sprintf("API call to %s failed with status %d", step, result.StatusCode))
		}

		// Capture provided variable for the next steps
		if spec.Provides != "" {
			r.vars[spec.Provides] = field(result.Response, spec.Provides)
		}
	}

	return r.finish(types.StatusPassed, "")
}

// RunScenarios executes every scenario, concurrently when configured, and returns
// the outcomes in scenario order
func (e *TestExecutor) RunScenarios(ctx context.Context, scenarios []scenario.Scenario) []scenario.Outcome {
	outcomes := make([]scenario.Outcome, len(scenarios))

	if !e.config.Concurrent {
		for i, sc := range scenarios {
			outcomes[i] = e.runScenario(ctx, sc)
		}
		return outcomes
	}

	// Create a channel to limit concurrent executions
	sem := make(chan struct{}, e.config.MaxWorkers)
	var wg sync.WaitGroup

	for i, sc := range scenarios {
		wg.Add(1)
		go func(i int, sc scenario.Scenario) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[i] = e.runScenario(ctx, sc)
		}(i, sc)
	}

	wg.Wait()
	return outcomes
}

func (e *TestExecutor) runScenario(ctx context.Context, sc scenario.Scenario) scenario.Outcome {
	runID := uuid.NewString()
	start := time.Now()
	verdict := e.RunPath(ctx, sc.Path, sc.UseInvalidData)

	outcome := scenario.Outcome{
		Scenario: sc,
		RunID:    runID,
		Verdict:  verdict,
		Duration: time.Since(start),
	}

	e.logger.LogVerdict(sc.Path, sc.UseInvalidData, verdict)
	if !outcome.Matched() {
		e.logger.Warn("unexpected verdict",
			zap.String("run_id", runID),
			zap.String("scenario", sc.Description),
			zap.String("expected", string(sc.Expected)),
			zap.String("actual", string(verdict.Status)),
		)
	}
	if e.recorder != nil {
		e.recorder.ObserveScenario(string(verdict.Status), string(sc.Expected))
	}
	return outcome
}

// executeStep sends one request and records its result. An error means no response was received.
func (e *TestExecutor) executeStep(ctx context.Context, client *http.Client, spec types.EndpointSpec, payload map[string]interface{}) (types.StepResult, error) {
	result := types.StepResult{
		Step:    spec.Name,
		Payload: payload,
	}

	req, err := e.buildRequest(ctx, spec, payload)
	if err != nil {
		return result, err
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("rate limiter: %w", err)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	// Read response body
	body, err := io.ReadAll(resp.Body)
	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("failed to read response body: %w", err)
	}

	result.StatusCode = resp.StatusCode
	result.Response = decodeBody(body)
	return result, nil
}

// buildRequest creates an HTTP request for the given endpoint and payload
func (e *TestExecutor) buildRequest(ctx context.Context, spec types.EndpointSpec, payload map[string]interface{}) (*http.Request, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, e.config.BaseURL+spec.Path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := e.config.Auth.Token; token != "" {
		switch strings.ToLower(e.config.Auth.Type) {
		case "api_key", "apikey":
			req.Header.Set("X-API-Key", token)
		default:
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return req, nil
}

// decodeBody returns the JSON value of body, an empty object for an empty body,
// or the raw text when the body is not JSON
func decodeBody(body []byte) interface{} {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}
	}
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}
	return decoded
}

// field reads a top-level field of a JSON object response, nil when absent
func field(response interface{}, name string) interface{} {
	obj, ok := response.(map[string]interface{})
	if !ok {
		return nil
	}
	return obj[name]
}
