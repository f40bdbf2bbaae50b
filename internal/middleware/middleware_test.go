package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"travel/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubParser struct{}

func (stubParser) Parse(token string) (domain.Caller, error) {
	if token != "good" {
		return domain.Caller{}, errors.New("bad token")
	}
	return domain.Caller{UserID: "u1", Role: domain.RoleGuest}, nil
}

func newTestRouter(t *testing.T, status int) (*gin.Engine, redismock.ClientMock, *int32) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	var calls int32

	r := gin.New()
	r.Use(AuthMiddleware(stubParser{}), IdempotencyMiddleware(db, zap.NewNop()))
	handle := func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.JSON(status, gin.H{"id": "1"})
	}
	r.POST("/v1/things", handle)
	r.GET("/v1/things", handle)
	return r, mock, &calls
}

func doRequest(r http.Handler, method, token, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/v1/things", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func storedResponse(t *testing.T, status int) string {
	t.Helper()
	data, err := json.Marshal(&cachedResponse{
		StatusCode: status,
		Body:       json.RawMessage(`{"id":"1"}`),
		Headers:    http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
	})
	require.NoError(t, err)
	return string(data)
}

const (
	thingsKey     = "idempotency:u1:POST:/v1/things:k1"
	thingsLockKey = thingsKey + ":inflight"
)

func TestAuthMiddleware_RejectsMissingAndBadTokens(t *testing.T) {
	r, _, calls := newTestRouter(t, http.StatusOK)

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, "forged", "").Code)
	assert.Zero(t, atomic.LoadInt32(calls))

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "good", "").Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestIdempotency_StoresFirstResponse(t *testing.T) {
	r, mock, calls := newTestRouter(t, http.StatusCreated)
	mock.ExpectGet(thingsKey).RedisNil()
	mock.ExpectSetNX(thingsLockKey, "1", inFlightTTL).SetVal(true)
	mock.ExpectSet(thingsKey, storedResponse(t, http.StatusCreated), idempotencyTTL).SetVal("OK")
	mock.ExpectDel(thingsLockKey).SetVal(1)

	w := doRequest(r, http.MethodPost, "good", "k1")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	r, mock, calls := newTestRouter(t, http.StatusCreated)
	mock.ExpectGet(thingsKey).SetVal(storedResponse(t, http.StatusCreated))

	w := doRequest(r, http.MethodPost, "good", "k1")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"1"}`, w.Body.String())
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	assert.Zero(t, atomic.LoadInt32(calls))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	r, mock, calls := newTestRouter(t, http.StatusBadGateway)
	mock.ExpectGet(thingsKey).RedisNil()
	mock.ExpectSetNX(thingsLockKey, "1", inFlightTTL).SetVal(true)
	mock.ExpectDel(thingsLockKey).SetVal(1)

	w := doRequest(r, http.MethodPost, "good", "k1")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_RejectsConcurrentDuplicate(t *testing.T) {
	r, mock, calls := newTestRouter(t, http.StatusCreated)
	mock.ExpectGet(thingsKey).RedisNil()
	mock.ExpectSetNX(thingsLockKey, "1", inFlightTTL).SetVal(false)

	w := doRequest(r, http.MethodPost, "good", "k1")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, atomic.LoadInt32(calls))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_SkipsReadsAndKeylessRequests(t *testing.T) {
	r, mock, calls := newTestRouter(t, http.StatusOK)

	doRequest(r, http.MethodGet, "good", "k1")
	doRequest(r, http.MethodPost, "good", "")

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_RedisErrorFallsThrough(t *testing.T) {
	r, mock, calls := newTestRouter(t, http.StatusCreated)
	mock.ExpectGet(thingsKey).SetErr(errors.New("connection refused"))

	w := doRequest(r, http.MethodPost, "good", "k1")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/v1/things", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/v1/things", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
