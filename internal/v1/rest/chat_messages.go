package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamnest/chatd/internal/v1/status"
	"github.com/streamnest/chatd/internal/v1/store"
)

// Store is the persistence slice the REST surface consumes.
type Store interface {
	FilterChatMessages(ctx context.Context, streamID int64, q store.FilterQuery) ([]store.ChatMessage, error)
	CreateChatMessage(ctx context.Context, streamID, userID int64, msg string) (*store.ChatMessage, error)
	ModifyChatMessage(ctx context.Context, id, userID int64, msg string) (*store.ChatMessage, error)
	DeleteChatMessage(ctx context.Context, id, userID int64) (*store.ChatMessage, error)
	GetChatAccess(ctx context.Context, streamID int64, userID *int64) (*store.ChatAccess, error)
	GetBlockedUsers(ctx context.Context, userID int64) ([]store.BlockedUser, error)
	CreateBlockedUser(ctx context.Context, p store.BlockUserParams) (*store.BlockedUser, error)
	DeleteBlockedUser(ctx context.Context, p store.BlockUserParams) (*store.BlockedUser, error)
}

// Handler serves the REST slice on top of the message store.
type Handler struct {
	store Store
}

// NewHandler binds the REST handlers to the store.
func NewHandler(messageStore Store) *Handler {
	return &Handler{store: messageStore}
}

type createChatMessageRequest struct {
	StreamID int64  `json:"streamId"`
	Msg      string `json:"msg"`
}

type modifyChatMessageRequest struct {
	Msg string `json:"msg"`
}

// CreateChatMessage handles POST /api/chat_messages.
func (h *Handler) CreateChatMessage(c *gin.Context) {
	var req createChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationErrors(c, []*status.Error{fieldError("body", "malformed JSON")})
		return
	}

	var errs []*status.Error
	if req.StreamID <= 0 {
		errs = append(errs, fieldError("streamId", "must be a positive integer"))
	}
	if err := validateMsg(req.Msg); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		writeValidationErrors(c, errs)
		return
	}

	m, err := h.store.CreateChatMessage(c.Request.Context(), req.StreamID, callerID(c), req.Msg)
	if err != nil {
		abortWithStatus(c, err)
		return
	}
	if m == nil {
		abortWithStatus(c, status.New(http.StatusNotAcceptable, "parameter_unacceptable"))
		return
	}
	c.JSON(http.StatusCreated, m)
}

// ModifyChatMessage handles PUT /api/chat_messages/:id. Admins may act on
// behalf of the true author via ?userId=.
func (h *Handler) ModifyChatMessage(c *gin.Context) {
	id, userID, ok := h.messageTarget(c)
	if !ok {
		return
	}

	var req modifyChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationErrors(c, []*status.Error{fieldError("body", "malformed JSON")})
		return
	}
	if err := validateMsg(req.Msg); err != nil {
		writeValidationErrors(c, []*status.Error{err})
		return
	}

	m, err := h.store.ModifyChatMessage(c.Request.Context(), id, userID, req.Msg)
	if err != nil {
		abortWithStatus(c, err)
		return
	}
	if m == nil {
		abortWithStatus(c, status.New(http.StatusNotAcceptable, "parameter_unacceptable"))
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteChatMessage handles DELETE /api/chat_messages/:id; soft delete.
func (h *Handler) DeleteChatMessage(c *gin.Context) {
	id, userID, ok := h.messageTarget(c)
	if !ok {
		return
	}

	m, err := h.store.DeleteChatMessage(c.Request.Context(), id, userID)
	if err != nil {
		abortWithStatus(c, err)
		return
	}
	if m == nil {
		abortWithStatus(c, status.New(http.StatusNotAcceptable, "parameter_unacceptable"))
		return
	}
	c.JSON(http.StatusOK, m)
}

// ListChatMessages handles GET /api/chat_messages/:streamId with optional
// isDesc, minDate, maxDate (RFC3339, open interval) and limit parameters.
func (h *Handler) ListChatMessages(c *gin.Context) {
	streamID, err := strconv.ParseInt(c.Param("streamId"), 10, 64)
	if err != nil {
		abortWithStatus(c, status.New(http.StatusRequestedRangeNotSatisfiable, "parameter_not_integer; name: 'streamId'"))
		return
	}

	var q store.FilterQuery
	q.IsDesc = c.Query("isDesc") == "true"

	var errs []*status.Error
	if raw := c.Query("minDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, fieldError("minDate", "must be RFC 3339"))
		} else {
			q.MinDate = &t
		}
	}
	if raw := c.Query("maxDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, fieldError("maxDate", "must be RFC 3339"))
		} else {
			q.MaxDate = &t
		}
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fieldError("limit", "must be a non-negative integer"))
		} else {
			q.Limit = n
		}
	}
	if len(errs) > 0 {
		writeValidationErrors(c, errs)
		return
	}

	messages, err := h.store.FilterChatMessages(c.Request.Context(), streamID, q)
	if err != nil {
		abortWithStatus(c, err)
		return
	}
	if messages == nil {
		messages = []store.ChatMessage{}
	}
	c.JSON(http.StatusOK, messages)
}

// messageTarget parses the path id and resolves the effective author id,
// honoring the admin-only ?userId= override.
func (h *Handler) messageTarget(c *gin.Context) (id, userID int64, ok bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithStatus(c, status.New(http.StatusRequestedRangeNotSatisfiable, "parameter_not_integer; name: 'id'"))
		return 0, 0, false
	}

	userID = callerID(c)
	if raw := c.Query("userId"); raw != "" {
		if !callerIsAdmin(c) {
			abortWithStatus(c, status.New(http.StatusForbidden, "admin_rights_missing"))
			return 0, 0, false
		}
		userID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			abortWithStatus(c, status.New(http.StatusRequestedRangeNotSatisfiable, "parameter_not_integer; name: 'userId'"))
			return 0, 0, false
		}
	}
	return id, userID, true
}
