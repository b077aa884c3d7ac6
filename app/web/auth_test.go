package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/umputun/randlist/app/bridge"
)

func TestServer_Authentication(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("testpass"), bcrypt.MinCost)
	require.NoError(t, err)

	server := New(Config{AuthHash: string(hash)})
	_, err = server.Init(bridge.Flags{Node: "root"})
	require.NoError(t, err)
	handler := server.routes()

	t.Run("without auth returns 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/flags", http.NoBody)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, `Basic realm="randlist"`, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("with wrong password returns 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/flags", http.NoBody)
		req.SetBasicAuth("randlist", "wrongpass")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("with wrong user returns 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/flags", http.NoBody)
		req.SetBasicAuth("admin", "testpass")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("with correct auth returns 200", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/flags", http.NoBody)
		req.SetBasicAuth("randlist", "testpass")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bundle is not protected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", http.NoBody)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
