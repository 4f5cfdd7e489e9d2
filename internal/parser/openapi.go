// Package parser derives endpoint configuration from OpenAPI documents.
package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"

	"api-path-tester/internal/config"
	"api-path-tester/internal/logger"
	"api-path-tester/internal/types"
)

// Operation extensions that carry dependency information
const (
	ExtProvides = "x-provides"
	ExtRequires = "x-requires"
	ExtDataKey  = "x-data-key"
)

// wellKnownPaths are tried, in order, below a base URL that is not itself a document
var wellKnownPaths = []string{
	"/openapi.json",
	"/swagger/v1/swagger.json",
	"/swagger.json",
	"/v1/swagger.json",
	"/api/swagger.json",
	"/api/v1/swagger.json",
	"/swagger/v1/swagger",
	"/swagger",
}

// Endpoint is an endpoint spec together with its JSON request body schema, if any
type Endpoint struct {
	Spec types.EndpointSpec
	Body *openapi3.SchemaRef
}

// OpenAPIParser loads OpenAPI documents from files or a running service
type OpenAPIParser struct {
	client *http.Client
	logger *logger.Logger
}

// NewOpenAPIParser creates a new parser
func NewOpenAPIParser(log *logger.Logger) *OpenAPIParser {
	if log == nil {
		log = logger.NewNop()
	}
	return &OpenAPIParser{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: log,
	}
}

// LoadFile reads an OpenAPI document in JSON or YAML
func (p *OpenAPIParser) LoadFile(path string) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI doc %s: %w", path, err)
	}
	return doc, nil
}

// FetchFromURL fetches the document at url, falling back to the well-known
// documentation paths below it
func (p *OpenAPIParser) FetchFromURL(ctx context.Context, url string) (*openapi3.T, error) {
	base := strings.TrimRight(url, "/")
	candidates := make([]string, 0, len(wellKnownPaths)+1)
	candidates = append(candidates, base)
	for _, path := range wellKnownPaths {
		candidates = append(candidates, base+path)
	}

	var lastErr error
	for _, candidate := range candidates {
		p.logger.Debug("trying to fetch OpenAPI documentation", zap.String("url", candidate))
		doc, err := p.fetch(ctx, candidate)
		if err == nil {
			p.logger.Info("fetched OpenAPI documentation", zap.String("url", candidate))
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed to fetch OpenAPI documentation from any known URL: %w", lastErr)
}

func (p *OpenAPIParser) fetch(ctx context.Context, url string) (*openapi3.T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from %s: %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return LoadFromData(body)
}

// LoadFromData parses an OpenAPI document from JSON or YAML bytes
func LoadFromData(data []byte) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, fmt.Errorf("OpenAPI doc has no paths")
	}
	return doc, nil
}

// ExtractEndpoints turns every operation of the document into an endpoint, sorted by name.
// Each resulting spec is validated like hand-written endpoint configuration.
func ExtractEndpoints(doc *openapi3.T) ([]Endpoint, error) {
	var endpoints []Endpoint
	seen := make(map[string]string)

	for path, pathItem := range doc.Paths.Map() {
		for method, operation := range pathItem.Operations() {
			spec := types.EndpointSpec{
				Name:   operation.OperationID,
				Method: strings.ToUpper(method),
				Path:   path,
			}
			if spec.Name == "" {
				spec.Name = defaultName(spec.Method, path)
			}
			if other, ok := seen[spec.Name]; ok {
				return nil, fmt.Errorf("%w: %s is used by %s and %s %s", config.ErrInvalidEndpoint, spec.Name, other, spec.Method, path)
			}
			seen[spec.Name] = spec.Method + " " + path

			var err error
			if spec.Provides, err = stringExtension(operation, ExtProvides); err != nil {
				return nil, fmt.Errorf("%s: %w", spec.Name, err)
			}
			if spec.Requires, err = listExtension(operation, ExtRequires); err != nil {
				return nil, fmt.Errorf("%s: %w", spec.Name, err)
			}
			if spec.DataKey, err = stringExtension(operation, ExtDataKey); err != nil {
				return nil, fmt.Errorf("%s: %w", spec.Name, err)
			}
			if spec.DataKey == "" {
				spec.DataKey = snakeCase(spec.Name)
			}

			if err := config.ValidateEndpoint(spec); err != nil {
				return nil, err
			}
			endpoints = append(endpoints, Endpoint{Spec: spec, Body: requestSchema(operation)})
		}
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].Spec.Name < endpoints[j].Spec.Name
	})
	return endpoints, nil
}

// SpecMap indexes endpoint specs by name
func SpecMap(endpoints []Endpoint) map[string]types.EndpointSpec {
	specs := make(map[string]types.EndpointSpec, len(endpoints))
	for _, e := range endpoints {
		specs[e.Spec.Name] = e.Spec
	}
	return specs
}

// requestSchema returns the JSON request body schema, or the first one of any content type
func requestSchema(operation *openapi3.Operation) *openapi3.SchemaRef {
	if operation.RequestBody == nil || operation.RequestBody.Value == nil {
		return nil
	}
	content := operation.RequestBody.Value.Content
	if media := content.Get("application/json"); media != nil && media.Schema != nil {
		return media.Schema
	}

	contentTypes := make([]string, 0, len(content))
	for contentType := range content {
		contentTypes = append(contentTypes, contentType)
	}
	sort.Strings(contentTypes)
	for _, contentType := range contentTypes {
		if media := content[contentType]; media != nil && media.Schema != nil {
			return media.Schema
		}
	}
	return nil
}

func stringExtension(operation *openapi3.Operation, name string) (string, error) {
	raw, ok := operation.Extensions[name]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", name, raw)
	}
	return strings.TrimSpace(s), nil
}

// listExtension accepts either a single string or a list of strings
func listExtension(operation *openapi3.Operation, name string) ([]string, error) {
	raw, ok := operation.Extensions[name]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		return []string{strings.TrimSpace(v)}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s entries must be strings, got %T", name, item)
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a string or list of strings, got %T", name, raw)
	}
}

// defaultName builds a name such as POST_users_id for operations without an operationId
func defaultName(method, path string) string {
	segments := strings.FieldsFunc(path, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(append([]string{method}, segments...), "_")
}

// snakeCase converts CreateUser or POST_users to create_user or post_users
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		case unicode.IsUpper(r):
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1])
			if (prevLower || nextLower) && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}
