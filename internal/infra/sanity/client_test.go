package sanity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	c, err := NewClient(Config{
		Dataset: "production",
		Token:   "sk_test",
		Timeout: 5 * time.Second,
		BaseURL: srv.URL,
	}, &logger)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiredFields(t *testing.T) {
	logger := zerolog.Nop()

	_, err := NewClient(Config{Dataset: "production", Token: "tok"}, &logger)
	assert.ErrorContains(t, err, "project id is required")

	_, err = NewClient(Config{ProjectID: "abc123", Token: "tok"}, &logger)
	assert.ErrorContains(t, err, "dataset is required")

	_, err = NewClient(Config{ProjectID: "abc123", Dataset: "production"}, &logger)
	assert.ErrorContains(t, err, "api token is required")
}

func TestQuery_EncodesParamsAndDecodesResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/data/query/production", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, `*[_type == "order" && orderNumber == $orderNumber][0]`, r.URL.Query().Get("query"))
		// パラメータはJSONエンコード（文字列は引用符付き）
		assert.Equal(t, `"ORD-1"`, r.URL.Query().Get("$orderNumber"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"result":{"_id":"order-ORD-1","orderNumber":"ORD-1"}}`)
	})

	var doc struct {
		ID          string `json:"_id"`
		OrderNumber string `json:"orderNumber"`
	}
	err := c.Query(context.Background(),
		`*[_type == "order" && orderNumber == $orderNumber][0]`,
		map[string]any{"orderNumber": "ORD-1"}, &doc)

	require.NoError(t, err)
	assert.Equal(t, "order-ORD-1", doc.ID)
	assert.Equal(t, "ORD-1", doc.OrderNumber)
}

func TestQuery_NullResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"result":null}`)
	})

	var doc struct {
		ID string `json:"_id"`
	}
	err := c.Query(context.Background(), `*[_type == "order"][0]`, nil, &doc)

	require.NoError(t, err)
	assert.Empty(t, doc.ID)
}

func TestMutate_SendsMutations(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/data/mutate/production", r.URL.Path)
		assert.Equal(t, "sync", r.URL.Query().Get("visibility"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		io.WriteString(w, `{"transactionId":"tx1","results":[]}`)
	})

	err := c.Mutate(context.Background(),
		CreateIfNotExists(map[string]any{"_id": "order-ORD-1", "_type": "order"}),
		PatchSet("order-ORD-1", "rev-1", map[string]any{"status": "paid"}),
	)
	require.NoError(t, err)

	muts, ok := body["mutations"].([]any)
	require.True(t, ok)
	require.Len(t, muts, 2)

	create := muts[0].(map[string]any)["createIfNotExists"].(map[string]any)
	assert.Equal(t, "order-ORD-1", create["_id"])

	patch := muts[1].(map[string]any)["patch"].(map[string]any)
	assert.Equal(t, "order-ORD-1", patch["id"])
	assert.Equal(t, "rev-1", patch["ifRevisionID"])
	assert.Equal(t, "paid", patch["set"].(map[string]any)["status"])
}

func TestMutate_ConflictSurfacesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":{"description":"revision mismatch"}}`)
	})

	err := c.Mutate(context.Background(),
		PatchSet("order-ORD-1", "stale-rev", map[string]any{"status": "paid"}))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"result":true}`)
	})
	assert.NoError(t, c.Ping(context.Background()))
}
