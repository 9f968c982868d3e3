package search

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sundarv/curryleaf/internal/models"
)

// stubTransport answers every request with a canned Elasticsearch response.
type stubTransport struct {
	status int
	body   string
}

func (s stubTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.status,
		Header: http.Header{
			"X-Elastic-Product": []string{"Elasticsearch"},
			"Content-Type":      []string{"application/json"},
		},
		Body: io.NopCloser(strings.NewReader(s.body)),
	}, nil
}

func stubClient(t *testing.T, status int, body string) *elasticsearch.Client {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Transport: stubTransport{status: status, body: body},
	})
	require.NoError(t, err)
	return client
}

func TestSearch_DecodesHits(t *testing.T) {
	body := `{
		"hits": {
			"total": {"value": 2},
			"hits": [
				{"_source": {"id": 1, "title": "Masala Dosa", "price": 80, "available": true}},
				{"_source": {"id": 4, "title": "Rava Dosa", "price": 90, "available": true}}
			]
		}
	}`
	client := stubClient(t, http.StatusOK, body)

	total, items, err := Search(context.Background(), client, "menu_items", "dosa", 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Masala Dosa", items[0].Title)
	assert.Equal(t, 80.0, items[0].Price)
	assert.Equal(t, "Rava Dosa", items[1].Title)
}

func TestSearch_ServerError(t *testing.T) {
	client := stubClient(t, http.StatusInternalServerError, `{"error": {"reason": "boom"}}`)

	_, _, err := Search(context.Background(), client, "menu_items", "dosa", 0, 20)
	assert.Error(t, err)
}

func TestIndexMenuItem_NilClientIsNoOp(t *testing.T) {
	err := IndexMenuItem(context.Background(), nil, "menu_items", models.MenuItem{ID: 1, Title: "Idli"})
	assert.NoError(t, err)
}

func TestDeleteMenuItem_MissingDocumentIgnored(t *testing.T) {
	client := stubClient(t, http.StatusNotFound, `{"result": "not_found"}`)

	assert.NoError(t, DeleteMenuItem(context.Background(), client, "menu_items", 9))
}
