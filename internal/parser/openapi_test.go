package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-path-tester/internal/config"
	"api-path-tester/internal/types"
)

const bankingDoc = `
openapi: 3.0.3
info:
  title: Banking
  version: "1.0"
paths:
  /users:
    post:
      operationId: CreateUser
      x-provides: user_id
      x-data-key: user
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/NewUser'
      responses:
        "201":
          description: created
  /accounts:
    post:
      operationId: CreateAccount
      x-provides: account_id
      x-requires: [user_id]
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                user_id:
                  type: integer
                currency:
                  type: string
                  enum: [USD, EUR]
      responses:
        "201":
          description: created
  /analytics:
    post:
      x-requires: user_id
      responses:
        "200":
          description: ok
components:
  schemas:
    NewUser:
      type: object
      required: [name, email]
      properties:
        name:
          type: string
        email:
          type: string
          format: email
`

func TestExtractEndpoints(t *testing.T) {
	doc, err := LoadFromData([]byte(bankingDoc))
	require.NoError(t, err)

	endpoints, err := ExtractEndpoints(doc)
	require.NoError(t, err)
	require.Len(t, endpoints, 3)

	assert.Equal(t, types.EndpointSpec{
		Name:     "CreateAccount",
		Method:   http.MethodPost,
		Path:     "/accounts",
		Provides: "account_id",
		Requires: []string{"user_id"},
		DataKey:  "create_account",
	}, endpoints[0].Spec)
	require.NotNil(t, endpoints[0].Body)
	assert.Contains(t, endpoints[0].Body.Value.Properties, "currency")

	assert.Equal(t, "CreateUser", endpoints[1].Spec.Name)
	assert.Equal(t, "user", endpoints[1].Spec.DataKey)
	require.NotNil(t, endpoints[1].Body)
	require.NotNil(t, endpoints[1].Body.Value, "component references are resolved")
	assert.Equal(t, []string{"name", "email"}, endpoints[1].Body.Value.Required)

	analytics := endpoints[2].Spec
	assert.Equal(t, "POST_analytics", analytics.Name)
	assert.Equal(t, "post_analytics", analytics.DataKey)
	assert.Equal(t, []string{"user_id"}, analytics.Requires)
	assert.Nil(t, endpoints[2].Body)

	specs := SpecMap(endpoints)
	assert.Len(t, specs, 3)
	assert.Equal(t, "/users", specs["CreateUser"].Path)
}

func TestExtractEndpointsRejectsBadExtensions(t *testing.T) {
	doc, err := LoadFromData([]byte(`
openapi: 3.0.3
info: {title: Bad, version: "1"}
paths:
  /users:
    post:
      operationId: CreateUser
      x-provides: [user_id, other]
      responses:
        "201": {description: created}
`))
	require.NoError(t, err)

	_, err = ExtractEndpoints(doc)
	assert.ErrorContains(t, err, ExtProvides)
}

func TestExtractEndpointsRejectsDuplicateRequires(t *testing.T) {
	doc, err := LoadFromData([]byte(`
openapi: 3.0.3
info: {title: Bad, version: "1"}
paths:
  /accounts:
    post:
      operationId: CreateAccount
      x-requires: [user_id, user_id]
      responses:
        "201": {description: created}
`))
	require.NoError(t, err)

	_, err = ExtractEndpoints(doc)
	assert.ErrorIs(t, err, config.ErrInvalidEndpoint)
}

func TestLoadFromDataErrors(t *testing.T) {
	_, err := LoadFromData([]byte("not: [valid"))
	assert.Error(t, err)

	_, err = LoadFromData([]byte(`{"openapi": "3.0.3", "info": {"title": "Empty", "version": "1"}, "paths": {}}`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bankingDoc), 0644))

	doc, err := NewOpenAPIParser(nil).LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Banking", doc.Info.Title)

	_, err = NewOpenAPIParser(nil).LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFetchFromURLProbesWellKnownPaths(t *testing.T) {
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		if r.URL.Path != "/swagger.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(bankingDoc))
	}))
	defer server.Close()

	doc, err := NewOpenAPIParser(nil).FetchFromURL(context.Background(), server.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "Banking", doc.Info.Title)
	assert.Equal(t, []string{"/", "/openapi.json", "/swagger/v1/swagger.json", "/swagger.json"}, requested)
}

func TestFetchFromURLFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewOpenAPIParser(nil).FetchFromURL(context.Background(), server.URL)
	assert.ErrorContains(t, err, "any known URL")
}

func TestNaming(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"CreateUser", "create_user"},
		{"POST_users", "post_users"},
		{"getUserByID", "get_user_by_id"},
		{"HTTPServer", "http_server"},
		{"already_snake", "already_snake"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, snakeCase(tt.in))
		})
	}

	assert.Equal(t, "GET_users_id_accounts", defaultName("GET", "/users/{id}/accounts"))
}
