package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAppwrite(t *testing.T, handler http.HandlerFunc) *AppwriteClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAppwriteClient(srv.URL, "proj", "key", "kantin-db", zap.NewNop())
}

func TestAppwriteList_EncodesQueries(t *testing.T) {
	var gotPath string
	var gotQueries []string
	client := newTestAppwrite(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQueries = r.URL.Query()["queries[]"]
		assert.Equal(t, "proj", r.Header.Get("X-Appwrite-Project"))
		assert.Equal(t, "key", r.Header.Get("X-Appwrite-Key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total": 1,
			"documents": []map[string]any{{
				"$id":           "u1",
				"$createdAt":    "2026-01-02T03:04:05.000+00:00",
				"$updatedAt":    "2026-01-02T03:04:05.000+00:00",
				"$collectionId": "users",
				"role":          "tenant",
				"is_active":     true,
			}},
		})
	})

	docs, err := client.List(context.Background(), "users", []Filter{
		Equal("role", "tenant"),
		NotEqual("$id", "root"),
		Or(IsNull("sub_role"), Equal("sub_role", "")),
		Limit(100),
	})
	require.NoError(t, err)
	assert.Equal(t, "/databases/kantin-db/collections/users/documents", gotPath)
	require.Len(t, gotQueries, 4)
	assert.JSONEq(t, `{"method":"equal","attribute":"role","values":["tenant"]}`, gotQueries[0])
	assert.JSONEq(t, `{"method":"notEqual","attribute":"$id","values":["root"]}`, gotQueries[1])
	assert.JSONEq(t, `{"method":"or","values":[{"method":"isNull","attribute":"sub_role"},{"method":"equal","attribute":"sub_role","values":[""]}]}`, gotQueries[2])
	assert.JSONEq(t, `{"method":"limit","values":[100]}`, gotQueries[3])

	require.Len(t, docs, 1)
	assert.Equal(t, "u1", docs[0].ID)
	assert.Equal(t, "tenant", docs[0].String("role"))
	assert.True(t, docs[0].Bool("is_active"))
	// meta attributes stay out of the payload fields
	_, hasCollection := docs[0].Fields["$collectionId"]
	assert.False(t, hasCollection)
}

func TestAppwriteDelete_NotFound(t *testing.T) {
	client := newTestAppwrite(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Document with the requested ID could not be found.",
			"code":    404,
		})
	})

	err := client.Delete(context.Background(), "users", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = client.DeletePrincipal(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppwriteUpdate_SendsData(t *testing.T) {
	var gotBody map[string]any
	client := newTestAppwrite(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"$id": "p1"})
	})

	err := client.Update(context.Background(), "products", "p1", map[string]any{"is_available": false})
	require.NoError(t, err)
	data, ok := gotBody["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, data["is_available"])
}

func TestAppwriteCreatePrincipal(t *testing.T) {
	client := newTestAppwrite(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "unique()", body["userId"])
		assert.Equal(t, "owner@example.com", body["email"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"$id": "principal-1"})
	})

	id, err := client.CreatePrincipal(context.Background(), "owner@example.com", "secret", "Owner")
	require.NoError(t, err)
	assert.Equal(t, "principal-1", id)
}

func TestAppwriteList_ServerError(t *testing.T) {
	client := newTestAppwrite(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "server error", "code": 500})
	})

	_, err := client.List(context.Background(), "users", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}
