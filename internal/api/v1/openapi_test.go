package apiv1

import (
	"net/http"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The served contract must stay a valid OpenAPI document; a broken file would
// otherwise only surface in the swagger UI.
func TestOpenAPIDocumentIsValid(t *testing.T) {
	t.Parallel()

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../public/docs/v1/openapi.yml")
	require.NoError(t, err)
	require.NoError(t, doc.Validate(loader.Context))

	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.NotEmpty(t, doc.Info.Title)
}

func TestOpenAPIDocumentCoversRoutes(t *testing.T) {
	t.Parallel()

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../public/docs/v1/openapi.yml")
	require.NoError(t, err)

	wantOps := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/ping"},
		{http.MethodGet, "/stats"},
		{http.MethodPost, "/auth/register"},
		{http.MethodPost, "/auth/login"},
		{http.MethodPost, "/issues"},
		{http.MethodGet, "/issues"},
		{http.MethodGet, "/issues/{public_id}"},
		{http.MethodPatch, "/issues/{public_id}/status"},
		{http.MethodPost, "/issues/{public_id}/assign"},
		{http.MethodGet, "/issues/{public_id}/suggest-officers"},
		{http.MethodPost, "/issues/{public_id}/analyze"},
		{http.MethodGet, "/issues/{public_id}/duplicates"},
		{http.MethodPost, "/issues/{public_id}/resolution"},
		{http.MethodPost, "/issues/{public_id}/review"},
		{http.MethodPost, "/issues/{public_id}/acknowledge"},
		{http.MethodPost, "/issues/{public_id}/feedback"},
		{http.MethodGet, "/public/acknowledge"},
		{http.MethodGet, "/notifications"},
	}

	for _, op := range wantOps {
		item := doc.Paths.Find(op.path)
		require.NotNilf(t, item, "path %s missing from the document", op.path)
		assert.NotNilf(t, item.GetOperation(op.method), "%s %s missing from the document", op.method, op.path)
	}

	require.NotNil(t, doc.Components)
	assert.Contains(t, doc.Components.SecuritySchemes, "sessionCookie")
	assert.Contains(t, doc.Components.SecuritySchemes, "apiKey")
}
