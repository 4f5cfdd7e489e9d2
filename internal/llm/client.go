package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"api-path-tester/internal/logger"
	"api-path-tester/internal/testdata"
	"api-path-tester/internal/types"
)

const systemPrompt = "You are an intelligent test data generator for REST APIs. Always respond with a single JSON object and nothing else."

// FixtureAuthor asks a language model to write fixture payloads for endpoints
type FixtureAuthor struct {
	completer Completer
	logger    *logger.Logger
}

// NewFixtureAuthor creates a new fixture author
func NewFixtureAuthor(completer Completer, log *logger.Logger) *FixtureAuthor {
	if log == nil {
		log = logger.NewNop()
	}
	return &FixtureAuthor{
		completer: completer,
		logger:    log,
	}
}

// Author returns a payload for the endpoint in the given dataset. The template, when
// present, is an existing payload whose shape the model should follow. Fields listed in
// spec.Requires are removed from the result since they are injected at run time.
func (a *FixtureAuthor) Author(ctx context.Context, spec types.EndpointSpec, dataset string, template map[string]interface{}) (map[string]interface{}, error) {
	prompt, err := buildPrompt(spec, dataset, template)
	if err != nil {
		return nil, err
	}

	response, err := a.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		a.logger.Error("LLM call failed", zap.String("endpoint", spec.Name), zap.String("dataset", dataset), zap.Error(err))
		return nil, fmt.Errorf("failed to author %s fixture for %s: %w", dataset, spec.Name, err)
	}

	payload, err := parseObject(response)
	if err != nil {
		a.logger.Error("unusable LLM response",
			zap.String("endpoint", spec.Name),
			zap.String("dataset", dataset),
			zap.String("response", response),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to parse LLM response for %s: %w", spec.Name, err)
	}

	for _, variable := range spec.Requires {
		delete(payload, variable)
	}

	a.logger.Debug("authored fixture",
		zap.String("endpoint", spec.Name),
		zap.String("dataset", dataset),
		zap.Any("payload", payload),
	)
	return payload, nil
}

// WriteFixtures authors valid and invalid fixtures for every endpoint and saves them
// through the loader. Endpoints sharing a data key are authored once. Existing valid
// fixtures are used as templates.
func (a *FixtureAuthor) WriteFixtures(ctx context.Context, specs map[string]types.EndpointSpec, loader *testdata.Loader) ([]string, error) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	var written []string
	seen := make(map[string]bool)
	for _, name := range names {
		spec := specs[name]
		if seen[spec.DataKey] {
			continue
		}
		seen[spec.DataKey] = true

		template, err := loader.LoadDataset(spec.DataKey, types.DatasetValid)
		if err != nil && !errors.Is(err, testdata.ErrFixtureNotFound) {
			return written, err
		}

		for _, dataset := range []string{types.DatasetValid, types.DatasetInvalid} {
			payload, err := a.Author(ctx, spec, dataset, template)
			if err != nil {
				return written, err
			}
			if err := loader.Save(spec.DataKey, dataset, payload); err != nil {
				return written, err
			}
			written = append(written, loader.FixturePath(spec.DataKey, dataset))
			if dataset == types.DatasetValid && template == nil {
				template = payload
			}
		}
	}
	return written, nil
}

func buildPrompt(spec types.EndpointSpec, dataset string, template map[string]interface{}) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a request body for the %s endpoint.\n\n", spec.Name)
	fmt.Fprintf(&b, "**Endpoint**: %s %s\n", spec.Method, spec.Path)
	if spec.Provides != "" {
		fmt.Fprintf(&b, "The response returns the field %q.\n", spec.Provides)
	}
	if len(spec.Requires) > 0 {
		fmt.Fprintf(&b, "Do not include these fields, they are filled in at run time: %s.\n", strings.Join(spec.Requires, ", "))
	}

	if len(template) > 0 {
		templateJSON, err := json.MarshalIndent(template, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal template: %w", err)
		}
		fmt.Fprintf(&b, "\n### Example request body:\n%s\n", templateJSON)
	}

	b.WriteString("\n### Your Task:\n")
	switch dataset {
	case types.DatasetInvalid:
		b.WriteString("Produce a body that the API must reject: keep the structure but break exactly one validation rule ")
		b.WriteString("(for example a malformed email, a negative amount, or a value of the wrong type).\n")
	default:
		b.WriteString("Produce a realistic body that satisfies every validation rule the field names imply ")
		b.WriteString("(valid email, positive amounts, ISO currency codes, and so on).\n")
	}
	b.WriteString("\nRespond with a single JSON object.")
	return b.String(), nil
}

// parseObject extracts a JSON object from a model reply, tolerating markdown code fences
func parseObject(response string) (map[string]interface{}, error) {
	text := strings.TrimSpace(response)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	return payload, nil
}
