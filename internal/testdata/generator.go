package testdata

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/getkin/kin-openapi/openapi3"

	"api-path-tester/internal/types"
)

// Generator writes valid and invalid fixture payloads derived from request body schemas
type Generator struct {
	loader *Loader
	faker  *gofakeit.Faker
}

// NewGenerator creates a fixture generator. A zero seed picks a random one.
func NewGenerator(loader *Loader, seed uint64) *Generator {
	return &Generator{
		loader: loader,
		faker:  gofakeit.New(seed),
	}
}

// GenerateFixtures writes both datasets for an endpoint. Existing files are kept unless
// overwrite is set. It returns the datasets that were written.
func (g *Generator) GenerateFixtures(spec types.EndpointSpec, body *openapi3.SchemaRef, overwrite bool) ([]string, error) {
	var written []string

	valid := g.ValidPayload(spec, body)
	ok, err := g.write(spec.DataKey, types.DatasetValid, valid, overwrite)
	if err != nil {
		return written, err
	}
	if ok {
		written = append(written, types.DatasetValid)
	}

	invalid, breakable := g.InvalidPayload(spec, body, valid)
	if !breakable {
		return written, nil
	}
	ok, err = g.write(spec.DataKey, types.DatasetInvalid, invalid, overwrite)
	if err != nil {
		return written, err
	}
	if ok {
		written = append(written, types.DatasetInvalid)
	}
	return written, nil
}

func (g *Generator) write(dataKey, dataset string, payload map[string]interface{}, overwrite bool) (bool, error) {
	if !overwrite {
		if _, err := os.Stat(g.loader.FixturePath(dataKey, dataset)); err == nil {
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("failed to check fixture: %w", err)
		}
	}
	if err := g.loader.Save(dataKey, dataset, payload); err != nil {
		return false, err
	}
	return true, nil
}

// ValidPayload builds a payload satisfying the body schema. Fields the endpoint requires
// from earlier steps are left out since the executor injects them.
func (g *Generator) ValidPayload(spec types.EndpointSpec, body *openapi3.SchemaRef) map[string]interface{} {
	payload := make(map[string]interface{})
	for _, name := range g.fields(spec, body) {
		payload[name] = g.sampleValue(name, body.Value.Properties[name])
	}
	return payload
}

// InvalidPayload copies valid and breaks one field: an email without "@", a number under
// its minimum, or otherwise the first field set to the wrong type. The second result is
// false when the schema has no field that can be broken.
func (g *Generator) InvalidPayload(spec types.EndpointSpec, body *openapi3.SchemaRef, valid map[string]interface{}) (map[string]interface{}, bool) {
	fields := g.fields(spec, body)
	if len(fields) == 0 {
		return nil, false
	}

	invalid := make(map[string]interface{}, len(valid))
	for k, v := range valid {
		invalid[k] = v
	}

	for _, name := range fields {
		schema := body.Value.Properties[name].Value
		if schema != nil && isType(schema, "string") && schema.Format == "email" {
			invalid[name] = "invalid-email"
			return invalid, true
		}
	}
	for _, name := range fields {
		schema := body.Value.Properties[name].Value
		if schema != nil && (isType(schema, "integer") || isType(schema, "number")) && schema.Min != nil {
			invalid[name] = *schema.Min - 1
			return invalid, true
		}
	}

	name := fields[0]
	invalid[name] = wrongType(body.Value.Properties[name].Value)
	return invalid, true
}

// fields returns the sorted writable properties of the body schema minus injected variables
func (g *Generator) fields(spec types.EndpointSpec, body *openapi3.SchemaRef) []string {
	if body == nil || body.Value == nil {
		return nil
	}
	injected := make(map[string]bool, len(spec.Requires))
	for _, req := range spec.Requires {
		injected[req] = true
	}

	var names []string
	for name, prop := range body.Value.Properties {
		if injected[name] || prop == nil {
			continue
		}
		if prop.Value != nil && prop.Value.ReadOnly {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sampleValue generates a sample value based on the property schema and name
func (g *Generator) sampleValue(name string, ref *openapi3.SchemaRef) interface{} {
	if ref == nil || ref.Value == nil {
		return nil
	}
	schema := ref.Value

	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}

	switch {
	case isType(schema, "string"):
		return g.sampleString(name, schema)
	case isType(schema, "integer"):
		lo, hi := bounds(schema, 1, 1000)
		return g.faker.Number(int(math.Ceil(lo)), int(math.Floor(hi)))
	case isType(schema, "number"):
		lo, hi := bounds(schema, 1, 1000)
		return math.Round(g.faker.Float64Range(lo, hi)*100) / 100
	case isType(schema, "boolean"):
		return g.faker.Bool()
	case isType(schema, "array"):
		return []interface{}{g.sampleValue(name, schema.Items)}
	case isType(schema, "object"):
		obj := make(map[string]interface{})
		for prop, propRef := range schema.Properties {
			obj[prop] = g.sampleValue(prop, propRef)
		}
		return obj
	}
	return nil
}

func (g *Generator) sampleString(name string, schema *openapi3.Schema) string {
	switch schema.Format {
	case "email":
		return g.faker.Email()
	case "date":
		return g.faker.Date().Format("2006-01-02")
	case "date-time":
		return g.faker.Date().UTC().Format("2006-01-02T15:04:05Z")
	case "uuid":
		return g.faker.UUID()
	case "uri", "url":
		return g.faker.URL()
	case "ipv4":
		return g.faker.IPv4Address()
	case "ipv6":
		return g.faker.IPv6Address()
	}

	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "email"):
		return g.faker.Email()
	case strings.Contains(lower, "currency"):
		return g.faker.CurrencyShort()
	case strings.Contains(lower, "phone"):
		return g.faker.Phone()
	case strings.Contains(lower, "city"):
		return g.faker.City()
	case strings.Contains(lower, "country"):
		return g.faker.Country()
	case strings.Contains(lower, "username"):
		return g.faker.Username()
	case strings.Contains(lower, "name"):
		return g.faker.Name()
	}
	return g.faker.Word()
}

func bounds(schema *openapi3.Schema, lo, hi float64) (float64, float64) {
	if schema.Min != nil {
		lo = *schema.Min
		if hi <= lo {
			hi = lo + 1000
		}
	}
	if schema.Max != nil {
		hi = *schema.Max
		if lo > hi {
			lo = hi
		}
	}
	return lo, hi
}

func wrongType(schema *openapi3.Schema) interface{} {
	switch {
	case schema == nil:
		return nil
	case isType(schema, "string"):
		return 12345
	case isType(schema, "integer"), isType(schema, "number"):
		return "not-a-number"
	case isType(schema, "boolean"):
		return "not-a-boolean"
	case isType(schema, "array"):
		return "not-an-array"
	default:
		return "not-an-object"
	}
}

func isType(schema *openapi3.Schema, name string) bool {
	return schema.Type != nil && schema.Type.Is(name)
}
