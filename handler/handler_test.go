package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lostandfound-exchange/claim"
	"lostandfound-exchange/dao"
	"lostandfound-exchange/match"
	"lostandfound-exchange/notify"
)

type testEnv struct {
	store  *dao.Store
	router *gin.Engine
	finder *dao.User
	owner  *dao.User
	other  *dao.User
}

type fixedTagger struct{}

func (fixedTagger) Tags(string) []string { return []string{"tag"} }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := dao.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{store: store}
	ctx := context.Background()
	env.finder = &dao.User{Username: "finder", Email: "finder@example.com"}
	env.owner = &dao.User{Username: "owner", Email: "owner@example.com"}
	env.other = &dao.User{Username: "other", Email: "other@example.com"}
	for _, u := range []*dao.User{env.finder, env.owner, env.other} {
		require.NoError(t, store.CreateUser(ctx, u))
	}

	sink := notify.NewSink(store, nil)
	h := NewHandlers(store,
		match.NewEngine(store, match.DefaultThreshold),
		claim.NewWorkflow(store, sink),
		sink,
		fixedTagger{})

	router := gin.New()
	// 测试里直接从请求头取用户 id
	api := router.Group("/api", func(c *gin.Context) {
		id, _ := strconv.ParseUint(c.GetHeader("X-User"), 10, 64)
		c.Set(UserKey, uint(id))
	})
	api.POST("/lost", h.CreateLost)
	api.GET("/lost/:id", h.GetLost)
	api.PUT("/lost/:id/status/:status", h.UpdateLostStatus)
	api.POST("/found", h.CreateFound)
	api.GET("/found/:id", h.GetFound)
	api.PUT("/found/:id/status/:status", h.UpdateFoundStatus)
	api.POST("/found/:id/claims", h.SubmitClaim)
	api.GET("/recommendations", h.Recommendations)
	api.GET("/tags", h.Tags)
	api.GET("/claims", h.MyClaims)
	api.POST("/claims/:id/review/:action", h.ReviewClaim)
	api.GET("/messages", h.Messages)
	api.GET("/messages/unread", h.UnreadMessages)
	api.GET("/messages/:id", h.ReadMessage)
	api.POST("/messages/send/:user_id", h.SendMessage)
	router.GET("/health", h.HealthCheck)
	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, user uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", strconv.FormatUint(uint64(user), 10))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func (e *testEnv) createFound(t *testing.T) dao.FoundItem {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/found", e.finder.UserId, ItemRequest{
		Title:       "black leather wallet",
		Description: "black leather wallet, cards inside",
		Category:    "accessories",
		Location:    "main library entrance",
		Date:        "2024-05-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item dao.FoundItem
	decode(t, w, &item)
	return item
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestCreateItemValidation(t *testing.T) {
	env := newTestEnv(t)
	testCases := []struct {
		name string
		req  ItemRequest
	}{
		{"missing title", ItemRequest{Description: "d", Category: "keys", Location: "l", Date: "2024-05-01"}},
		{"unknown category", ItemRequest{Title: "t", Description: "d", Category: "cars", Location: "l", Date: "2024-05-01"}},
		{"bad date", ItemRequest{Title: "t", Description: "d", Category: "keys", Location: "l", Date: "05/01/2024"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/lost", env.owner.UserId, tc.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateAndGetItems(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/lost", env.owner.UserId, ItemRequest{
		Title:       "black wallet",
		Description: "a black wallet with id cards",
		Category:    "accessories",
		Location:    "library",
		Date:        "2024-04-30",
		Reward:      "100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var lost dao.LostItem
	decode(t, w, &lost)
	assert.Equal(t, dao.LostOpen, lost.Status)
	assert.Equal(t, env.owner.UserId, lost.UserId)
	assert.Equal(t, "tag", lost.Tags)

	w = env.do(t, http.MethodGet, "/api/tags", env.other.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tags":["tag"]}`, w.Body.String())

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/lost/%d", lost.ItemId), env.other.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Item       dao.LostItem `json:"item"`
		StatusText string       `json:"status_text"`
	}
	decode(t, w, &got)
	assert.Equal(t, "black wallet", got.Item.Title)
	assert.Equal(t, "寻找中", got.StatusText)

	found := env.createFound(t)
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/found/%d", found.ItemId), env.other.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "待认领")

	w = env.do(t, http.MethodGet, "/api/found/999", env.other.UserId, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodGet, "/api/found/abc", env.other.UserId, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	found := env.createFound(t)

	w := env.do(t, http.MethodPut, fmt.Sprintf("/api/found/%d/status/%s", found.ItemId, dao.FoundClaimed), env.other.UserId, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/found/%d/status/lost", found.ItemId), env.finder.UserId, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/found/%d/status/%s", found.ItemId, dao.FoundClaimed), env.finder.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var item dao.FoundItem
	decode(t, w, &item)
	assert.Equal(t, dao.FoundClaimed, item.Status)
}

func TestRecommendations(t *testing.T) {
	env := newTestEnv(t)
	found := env.createFound(t)
	w := env.do(t, http.MethodPost, "/api/lost", env.owner.UserId, ItemRequest{
		Title:       "black wallet",
		Description: "a black wallet with id cards",
		Category:    "accessories",
		Location:    "library",
		Date:        "2024-04-30",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/recommendations", env.owner.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count           int `json:"count"`
		Recommendations []struct {
			Found      dao.FoundItem `json:"found_item"`
			Similarity float64       `json:"similarity"`
		} `json:"recommendations"`
	}
	decode(t, w, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, found.ItemId, resp.Recommendations[0].Found.ItemId)
	assert.Equal(t, 84.1, resp.Recommendations[0].Similarity)

	w = env.do(t, http.MethodGet, "/api/recommendations?format=markdown", env.owner.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "相似度 84.1%")

	// 没有失物记录时返回空列表
	w = env.do(t, http.MethodGet, "/api/recommendations", env.other.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"recommendations":[]}`, w.Body.String())
}

func TestClaimFlow(t *testing.T) {
	env := newTestEnv(t)
	found := env.createFound(t)
	claimPath := fmt.Sprintf("/api/found/%d/claims", found.ItemId)

	w := env.do(t, http.MethodPost, claimPath, env.owner.UserId, SubmitClaimRequest{ProofDescription: "my id card is inside"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cr dao.ClaimRequest
	decode(t, w, &cr)
	assert.Equal(t, dao.ClaimPending, cr.Status)

	w = env.do(t, http.MethodPost, claimPath, env.owner.UserId, SubmitClaimRequest{ProofDescription: "again"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(t, http.MethodPost, claimPath, env.other.UserId, SubmitClaimRequest{ProofDescription: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, claimPath, env.other.UserId, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 拾取者收到一条通知
	w = env.do(t, http.MethodGet, "/api/messages/unread", env.finder.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())

	reviewPath := fmt.Sprintf("/api/claims/%d/review/", cr.ClaimId)
	w = env.do(t, http.MethodPost, reviewPath+"archive", env.finder.UserId, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, reviewPath+"approve", env.other.UserId, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodPost, reviewPath+"approve", env.finder.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &cr)
	assert.Equal(t, dao.ClaimApproved, cr.Status)
	assert.NotNil(t, cr.ReviewedAt)

	w = env.do(t, http.MethodPost, reviewPath+"reject", env.finder.UserId, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(t, http.MethodPost, claimPath, env.other.UserId, SubmitClaimRequest{ProofDescription: "mine"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(t, http.MethodPost, "/api/claims/999/review/approve", env.finder.UserId, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/claims", env.finder.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Mine     []dao.ClaimRequest `json:"my_claim_requests"`
		Received []dao.ClaimRequest `json:"my_items_claims"`
	}
	decode(t, w, &listing)
	assert.Empty(t, listing.Mine)
	require.Len(t, listing.Received, 1)
	assert.Equal(t, cr.ClaimId, listing.Received[0].ClaimId)
}

func TestMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	msg := &dao.Message{Subject: "您的认领申请已通过", Content: "请联系发布者领取。", SenderId: env.finder.UserId, ReceiverId: env.owner.UserId, CreatedAt: time.Now()}
	require.NoError(t, env.store.CreateMessage(ctx, msg))

	w := env.do(t, http.MethodGet, "/api/messages", env.owner.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox struct {
		Messages []dao.Message `json:"messages"`
	}
	decode(t, w, &inbox)
	require.Len(t, inbox.Messages, 1)
	assert.False(t, inbox.Messages[0].IsRead)

	path := fmt.Sprintf("/api/messages/%d", msg.MessageId)
	w = env.do(t, http.MethodGet, path, env.other.UserId, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodGet, path, env.owner.UserId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var read dao.Message
	decode(t, w, &read)
	assert.True(t, read.IsRead)

	w = env.do(t, http.MethodGet, "/api/messages/unread", env.owner.UserId, nil)
	assert.JSONEq(t, `{"count":0}`, w.Body.String())
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/api/messages/send/%d", env.finder.UserId)

	w := env.do(t, http.MethodPost, path, env.owner.UserId, MessageRequest{Subject: "关于钱包", Content: "钱包里有我的身份证"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var msg dao.Message
	decode(t, w, &msg)
	assert.Equal(t, env.owner.UserId, msg.SenderId)
	assert.Equal(t, env.finder.UserId, msg.ReceiverId)
	assert.False(t, msg.IsRead)

	w = env.do(t, http.MethodGet, "/api/messages/unread", env.finder.UserId, nil)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())

	w = env.do(t, http.MethodPost, path, env.owner.UserId, MessageRequest{Subject: "no content"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/api/messages/send/999", env.owner.UserId, MessageRequest{Subject: "s", Content: "c"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
