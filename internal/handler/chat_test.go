package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/lh-counsel/server/internal/agent/model"
	"github.com/lh-counsel/server/internal/agent/repo"
	errx "github.com/lh-counsel/server/internal/core/error"
)

type fakeRunner struct {
	calls []model.TurnRequest
	reply func(model.TurnRequest) (*model.TurnResponse, error)
}

func (f *fakeRunner) Invoke(_ context.Context, in model.TurnRequest) (*model.TurnResponse, error) {
	f.calls = append(f.calls, in)
	return f.reply(in)
}

func echoIntent(in model.TurnRequest) (*model.TurnResponse, error) {
	s := in.State.Clone()
	s.Intent = model.IntentHousing
	s.Result = "reply:" + in.Query
	return &model.TurnResponse{Result: s.Result, State: s}, nil
}

func setup(t *testing.T, runner *fakeRunner) (*gin.Engine, *repo.RedisStateRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	states := repo.NewRedisStateRepository(rdb, time.Minute)
	h := NewChatHandler(runner, states)

	r := gin.New()
	r.POST("/api/v1/chat", h.Turn)
	r.DELETE("/api/v1/chat/:id", h.Reset)
	return r, states
}

func postChat(t *testing.T, r http.Handler, body any) (*httptest.ResponseRecorder, ChatResponse) {
	t.Helper()
	b, err := sonic.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp ChatResponse
	if w.Code == http.StatusOK {
		require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestTurn_NewConversationGetsIDAndPersists(t *testing.T) {
	runner := &fakeRunner{reply: echoIntent}
	r, states := setup(t, runner)

	w, resp := postChat(t, r, map[string]any{"query": "임대주택 알려줘"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "reply:임대주택 알려줘", resp.Result)
	assert.Equal(t, model.IntentHousing, resp.State.Intent)

	stored, err := states.Load(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, model.IntentHousing, stored.Intent)
	assert.Empty(t, stored.Query)
}

func TestTurn_LoadsStoredStateWhenOmitted(t *testing.T) {
	runner := &fakeRunner{reply: echoIntent}
	r, states := setup(t, runner)
	require.NoError(t, states.Save(context.Background(), "c1", model.ConversationState{Intent: model.IntentLoan}))

	w, _ := postChat(t, r, map[string]any{"conversation_id": "c1", "query": "3000"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "c1", runner.calls[0].ConversationID)
	assert.Equal(t, model.IntentLoan, runner.calls[0].State.Intent)
}

func TestTurn_ExplicitStateWins(t *testing.T) {
	runner := &fakeRunner{reply: echoIntent}
	r, states := setup(t, runner)
	require.NoError(t, states.Save(context.Background(), "c1", model.ConversationState{Intent: model.IntentLoan}))

	w, _ := postChat(t, r, map[string]any{
		"conversation_id": "c1",
		"query":           "hi",
		"state":           map[string]any{"intent": "other"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, model.Intent("other"), runner.calls[0].State.Intent)
}

func TestTurn_PageCommandSkipsGraph(t *testing.T) {
	runner := &fakeRunner{reply: echoIntent}
	r, states := setup(t, runner)
	require.NoError(t, states.Save(context.Background(), "c1", model.ConversationState{Intent: model.IntentHousing}))

	w, resp := postChat(t, r, map[string]any{"conversation_id": "c1", "query": "페이지 12"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, runner.calls)
	assert.Equal(t, "(페이지 12)", resp.Result)
	assert.Equal(t, 12, resp.State.CurrentPage)
	assert.Equal(t, model.IntentHousing, resp.State.Intent)

	stored, err := states.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 12, stored.CurrentPage)
}

func TestTurn_MissingQueryIsBadRequest(t *testing.T) {
	runner := &fakeRunner{reply: echoIntent}
	r, _ := setup(t, runner)

	w, _ := postChat(t, r, map[string]any{"conversation_id": "c1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), errx.BadRequestMessage)

	w, _ = postChat(t, r, map[string]any{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, runner.calls)
}

func TestTurn_RunnerErrorMapsStatus(t *testing.T) {
	runner := &fakeRunner{reply: func(model.TurnRequest) (*model.TurnResponse, error) {
		return nil, errx.WrapUpstream(errors.New("boom"))
	}}
	r, _ := setup(t, runner)

	w, _ := postChat(t, r, map[string]any{"query": "hi"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), errx.UpstreamErrorMessage)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestTurn_UnclassifiedErrorIs500(t *testing.T) {
	runner := &fakeRunner{reply: func(model.TurnRequest) (*model.TurnResponse, error) {
		return nil, errors.New("boom")
	}}
	r, _ := setup(t, runner)

	w, _ := postChat(t, r, map[string]any{"query": "hi"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), errx.SystemErrorMessage)
}

func TestReset_ClearsState(t *testing.T) {
	runner := &fakeRunner{reply: echoIntent}
	r, states := setup(t, runner)
	require.NoError(t, states.Save(context.Background(), "c1", model.ConversationState{Intent: model.IntentLoan}))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/chat/c1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := states.Load(context.Background(), "c1")
	assert.ErrorIs(t, err, model.ErrConversationNotFound)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(rate.NewLimiter(rate.Every(time.Hour), 1)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
