package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"lostandfound-exchange/claim"
	"lostandfound-exchange/dao"
	"lostandfound-exchange/match"
	"lostandfound-exchange/utils"
)

// UserKey 认证中间件写入的当前用户 id
const UserKey = "user_id"

type Recommender interface {
	Recommend(ctx context.Context, userId uint) ([]match.Recommendation, error)
}

type ClaimWorkflow interface {
	Submit(ctx context.Context, foundItemId, claimerId uint, proof, proofImage string) (*dao.ClaimRequest, error)
	Review(ctx context.Context, claimId, reviewerId uint, action claim.Action) (*dao.ClaimRequest, error)
}

// Messenger 站内消息发送
type Messenger interface {
	Send(ctx context.Context, senderId, receiverId uint, subject, body string) (*dao.Message, error)
}

// Tagger 从文本中提取标签
type Tagger interface {
	Tags(text string) []string
}

type Handlers struct {
	store  *dao.Store
	engine Recommender
	claims ClaimWorkflow
	sender Messenger
	tagger Tagger
}

// NewHandlers tagger 为 nil 时不生成标签
func NewHandlers(store *dao.Store, engine Recommender, claims ClaimWorkflow, sender Messenger, tagger Tagger) *Handlers {
	return &Handlers{store: store, engine: engine, claims: claims, sender: sender, tagger: tagger}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ItemRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"required"`
	Category    string `json:"category" binding:"required"`
	Location    string `json:"location" binding:"required,max=200"`
	Date        string `json:"date" binding:"required"` // 2006-01-02
	ContactInfo string `json:"contact_info" binding:"max=200"`
	Reward      string `json:"reward" binding:"max=100"`
}

type SubmitClaimRequest struct {
	ProofDescription string `json:"proof_description" binding:"required,max=500"`
	ProofImage       string `json:"proof_image" binding:"max=200"`
}

type MessageRequest struct {
	Subject string `json:"subject" binding:"required,max=200"`
	Content string `json:"content" binding:"required"`
}

func currentUser(c *gin.Context) uint {
	return c.GetUint(UserKey)
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, claim.ErrDuplicateClaim),
		errors.Is(err, claim.ErrInvalidTransition),
		errors.Is(err, claim.ErrItemUnavailable):
		status = http.StatusConflict
	case errors.Is(err, claim.ErrUnauthorized), errors.Is(err, dao.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, dao.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, claim.ErrInvalidAction),
		errors.Is(err, claim.ErrEmptyProof),
		errors.Is(err, dao.ErrStatus):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func (h *Handlers) parseItem(c *gin.Context) (*ItemRequest, time.Time, []string, bool) {
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return nil, time.Time{}, nil, false
	}
	if !utils.IfWordInSlice(req.Category, dao.Categories) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown category " + req.Category})
		return nil, time.Time{}, nil, false
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "date must be YYYY-MM-DD"})
		return nil, time.Time{}, nil, false
	}
	var tags []string
	if h.tagger != nil {
		tags = h.tagger.Tags(req.Location + " " + req.Title + " " + req.Description)
	}
	return &req, date, tags, true
}

// CreateLost 发布失物
func (h *Handlers) CreateLost(c *gin.Context) {
	req, date, tags, ok := h.parseItem(c)
	if !ok {
		return
	}
	item := &dao.LostItem{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		LostDate:    date,
		ContactInfo: req.ContactInfo,
		Reward:      req.Reward,
		UserId:      currentUser(c),
	}
	if err := h.store.AddLostItem(c.Request.Context(), item, tags); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// CreateFound 发布拾物
func (h *Handlers) CreateFound(c *gin.Context) {
	req, date, tags, ok := h.parseItem(c)
	if !ok {
		return
	}
	item := &dao.FoundItem{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		FoundDate:   date,
		ContactInfo: req.ContactInfo,
		UserId:      currentUser(c),
	}
	if err := h.store.AddFoundItem(c.Request.Context(), item, tags); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handlers) GetLost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	item, err := h.store.GetLostItem(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "status_text": lostStatusText[item.Status]})
}

func (h *Handlers) GetFound(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	item, err := h.store.GetFoundItem(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "status_text": foundStatusText[item.Status]})
}

func (h *Handlers) UpdateLostStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	item, err := h.store.UpdateLostStatus(c.Request.Context(), id, currentUser(c), c.Param("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handlers) UpdateFoundStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	item, err := h.store.UpdateFoundStatus(c.Request.Context(), id, currentUser(c), c.Param("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Recommendations ?format=markdown 时返回 markdown 列表
func (h *Handlers) Recommendations(c *gin.Context) {
	recs, err := h.engine.Recommend(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if strings.EqualFold(c.Query("format"), "markdown") {
		c.JSON(http.StatusOK, gin.H{"count": len(recs), "markdown": RecommendationMarkdown(recs)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "recommendations": recs})
}

func (h *Handlers) SubmitClaim(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	cr, err := h.claims.Submit(c.Request.Context(), id, currentUser(c), req.ProofDescription, req.ProofImage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cr)
}

func (h *Handlers) ReviewClaim(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	action, err := claim.ParseAction(c.Param("action"))
	if err != nil {
		writeError(c, err)
		return
	}
	cr, err := h.claims.Review(c.Request.Context(), id, currentUser(c), action)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cr)
}

// MyClaims 我提交的以及我收到的认领申请
func (h *Handlers) MyClaims(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)
	mine, err := h.store.ClaimsByClaimer(ctx, user)
	if err != nil {
		writeError(c, err)
		return
	}
	received, err := h.store.ClaimsByFoundOwner(ctx, user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"my_claim_requests": mine, "my_items_claims": received})
}

func (h *Handlers) Messages(c *gin.Context) {
	msgs, err := h.store.MessagesByReceiver(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage 给指定用户发送站内消息
func (h *Handlers) SendMessage(c *gin.Context) {
	receiverId, ok := idParam(c, "user_id")
	if !ok {
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetUser(ctx, receiverId); err != nil {
		writeError(c, err)
		return
	}
	msg, err := h.sender.Send(ctx, currentUser(c), receiverId, req.Subject, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handlers) ReadMessage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	msg, err := h.store.ReadMessage(c.Request.Context(), id, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handlers) UnreadMessages(c *gin.Context) {
	count, err := h.store.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handlers) Tags(c *gin.Context) {
	tags, err := h.store.AllTags(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
