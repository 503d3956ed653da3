package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/streamnest/chatd/internal/v1/status"
	"github.com/streamnest/chatd/internal/v1/store"
)

type blockUserRequest struct {
	BlockedID       *int64 `json:"blockedId"`
	BlockedNickname string `json:"blockedNickname"`
}

// ListBlockedUsers handles GET /api/blocked_users/:streamId. Only the stream
// owner sees the list; everyone else gets an empty array.
func (h *Handler) ListBlockedUsers(c *gin.Context) {
	streamID, err := strconv.ParseInt(c.Param("streamId"), 10, 64)
	if err != nil {
		abortWithStatus(c, status.New(http.StatusRequestedRangeNotSatisfiable, "parameter_not_integer; name: 'streamId'"))
		return
	}

	caller := callerID(c)
	access, err := h.store.GetChatAccess(c.Request.Context(), streamID, &caller)
	if err != nil {
		abortWithStatus(c, err)
		return
	}
	if access == nil {
		abortWithStatus(c, status.New(http.StatusNotFound, "stream_not_found"))
		return
	}
	if access.StreamOwner != caller {
		c.JSON(http.StatusOK, []store.BlockedUser{})
		return
	}

	blocked, err := h.store.GetBlockedUsers(c.Request.Context(), caller)
	if err != nil {
		abortWithStatus(c, err)
		return
	}
	if blocked == nil {
		blocked = []store.BlockedUser{}
	}
	c.JSON(http.StatusOK, blocked)
}

// BlockUser handles POST /api/blocked_users. The target is named by exactly
// one of blockedId or blockedNickname.
func (h *Handler) BlockUser(c *gin.Context) {
	p, ok := h.blockParams(c)
	if !ok {
		return
	}

	b, err := h.store.CreateBlockedUser(c.Request.Context(), p)
	if err != nil {
		abortWithStatus(c, err)
		return
	}
	if b == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// UnblockUser handles DELETE /api/blocked_users with the same target rules.
// Returns the removed row, or 204 when there was nothing to remove.
func (h *Handler) UnblockUser(c *gin.Context) {
	p, ok := h.blockParams(c)
	if !ok {
		return
	}

	b, err := h.store.DeleteBlockedUser(c.Request.Context(), p)
	if err != nil {
		abortWithStatus(c, err)
		return
	}
	if b == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) blockParams(c *gin.Context) (store.BlockUserParams, bool) {
	var req blockUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationErrors(c, []*status.Error{fieldError("body", "malformed JSON")})
		return store.BlockUserParams{}, false
	}

	hasID := req.BlockedID != nil
	hasNick := req.BlockedNickname != ""

	var errs []*status.Error
	switch {
	case !hasID && !hasNick:
		errs = append(errs, fieldError("blockedId", "exactly one of blockedId or blockedNickname is required"))
	case hasID && hasNick:
		errs = append(errs, fieldError("blockedNickname", "exactly one of blockedId or blockedNickname is allowed"))
	case hasID && *req.BlockedID <= 0:
		errs = append(errs, fieldError("blockedId", "must be a positive integer"))
	case hasNick:
		if err := validateNickname(req.BlockedNickname); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		writeValidationErrors(c, errs)
		return store.BlockUserParams{}, false
	}

	return store.BlockUserParams{
		UserID:          callerID(c),
		BlockedID:       req.BlockedID,
		BlockedNickname: req.BlockedNickname,
	}, true
}
