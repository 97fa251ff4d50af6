package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestInspectHandler(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	defer func() { _ = db.Close() }()

	req.NoError(db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte("user:email:ada@example.com"), []byte("secret-hash")); err != nil {
			return err
		}
		return txn.Set([]byte("session:current"), []byte("token"))
	}))

	handler := InspectHandler(db, nil, func() map[string]any { return map[string]any{"users": 1} })

	t.Run("should list the default prefix", func(t *testing.T) {
		req := require.New(t)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/inspect", nil))

		req.Equal(http.StatusOK, rec.Code)
		var page PageData
		req.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
		req.Equal("user:", page.Prefix)
		req.Equal([]InspectRow{{Key: "user:email:ada@example.com", Namespace: "user", EntityID: "ada@example.com", Detail: "Size: 11 bytes"}}, page.Items)
		req.EqualValues(1, page.Stats["users"])
		req.NotContains(rec.Body.String(), "secret-hash")
	})

	t.Run("should honor the prefix parameter", func(t *testing.T) {
		req := require.New(t)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/inspect?prefix=session:", nil))

		var page PageData
		req.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
		req.Len(page.Items, 1)
		req.Equal("session", page.Items[0].Namespace)
	})
}
