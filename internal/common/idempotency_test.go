package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newIdem(t *testing.T) (Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Idem{R: client, TTL: time.Hour}, mr
}

func TestIdemReplaysStoredResponse(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		Data(w, http.StatusCreated, map[string]int{"call": calls})
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", nil)
		req.Header.Set(IdempotencyHeader, "abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}
	first := send()
	second := send()

	require.Equal(t, 1, calls)
	require.Equal(t, http.StatusCreated, second.Code)
	require.JSONEq(t, first.Body.String(), second.Body.String())
	require.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestIdemPendingAndServerErrors(t *testing.T) {
	idem, mr := newIdem(t)
	failing := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, http.StatusServiceUnavailable, CodeStoreDown, "down", nil)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/visits", nil)
	req.Header.Set(IdempotencyHeader, "k1")
	failing.ServeHTTP(httptest.NewRecorder(), req)
	require.Empty(t, mr.Keys(), "server errors release the key")

	require.NoError(t, mr.Set(idemKey(req, "k1"), idemPending))
	rr := httptest.NewRecorder()
	idem.Middleware(http.NotFoundHandler()).ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), CodeIdempotentCall)
}

func TestIdemScopesKeyByRoute(t *testing.T) {
	a := httptest.NewRequest(http.MethodPost, "/api/v1/visits", nil)
	b := httptest.NewRequest(http.MethodPost, "/api/v1/demos", nil)
	require.NotEqual(t, idemKey(a, "same"), idemKey(b, "same"))
}

func TestIdemWithoutHeaderPassesThrough(t *testing.T) {
	idem, mr := newIdem(t)
	rr := httptest.NewRecorder()
	idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/x", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Empty(t, mr.Keys())
}
