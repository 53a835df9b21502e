package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every API reply is wrapped in.
type Response struct {
	Code int    `json:"code"` // 0 success, -1 failure
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// Success writes data with HTTP 200.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// Fail writes msg with the given HTTP status and aborts the chain.
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{
		Code: -1,
		Msg:  msg,
	})
}
