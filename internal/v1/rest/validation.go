package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamnest/chatd/internal/v1/status"
)

// Message body and nickname bounds live here, at the validation layer; the
// store itself only enforces non-empty bodies.
const (
	msgMinLen      = 1
	msgMaxLen      = 255
	nicknameMinLen = 3
	nicknameMaxLen = 64
)

func fieldError(field, problem string) *status.Error {
	return status.Newf(http.StatusExpectationFailed, "%s: %s", field, problem)
}

// writeValidationErrors surfaces validation failures as an array of error
// objects, one per failing field.
func writeValidationErrors(c *gin.Context, errs []*status.Error) {
	c.AbortWithStatusJSON(http.StatusExpectationFailed, errs)
}

func validateMsg(msg string) *status.Error {
	if len(msg) < msgMinLen || len(msg) > msgMaxLen {
		return fieldError("msg", "length must be between 1 and 255")
	}
	return nil
}

func validateNickname(nickname string) *status.Error {
	if len(nickname) < nicknameMinLen || len(nickname) > nicknameMaxLen {
		return fieldError("blockedNickname", "length must be between 3 and 64")
	}
	return nil
}
