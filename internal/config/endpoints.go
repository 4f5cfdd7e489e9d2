package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"api-path-tester/internal/types"
)

// ErrInvalidEndpoint is returned when an endpoint entry is incomplete or malformed
var ErrInvalidEndpoint = errors.New("invalid endpoint configuration")

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadEndpoints reads the endpoint configuration (name -> spec) from a YAML file.
// Every entry is validated before anything is returned.
func LoadEndpoints(path string) (map[string]types.EndpointSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoint config: %w", err)
	}
	return ParseEndpoints(data)
}

// ParseEndpoints decodes and validates endpoint configuration from YAML bytes
func ParseEndpoints(data []byte) (map[string]types.EndpointSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var specs map[string]types.EndpointSpec
	if err := dec.Decode(&specs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no endpoints defined", ErrInvalidEndpoint)
		}
		return nil, fmt.Errorf("failed to parse endpoint config: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no endpoints defined", ErrInvalidEndpoint)
	}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := specs[name]
		spec.Name = name
		spec.Method = strings.ToUpper(strings.TrimSpace(spec.Method))
		if err := ValidateEndpoint(spec); err != nil {
			return nil, err
		}
		specs[name] = spec
	}

	return specs, nil
}

// ValidateEndpoint checks a single endpoint spec against its struct constraints
func ValidateEndpoint(spec types.EndpointSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("%w: endpoint name is required", ErrInvalidEndpoint)
	}
	err := validate.Struct(spec)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEndpoint, spec.Name, err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s: %s", ErrInvalidEndpoint, spec.Name, strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	if field == "datakey" {
		field = "data_key"
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, fe.Param())
	case "unique":
		return field + " must not contain duplicates"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// SaveEndpoints writes endpoint configuration in the format LoadEndpoints reads
func SaveEndpoints(path string, specs map[string]types.EndpointSpec) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(specs); err != nil {
		return fmt.Errorf("failed to marshal endpoint config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal endpoint config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write endpoint config: %w", err)
	}
	return nil
}
