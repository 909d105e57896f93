package utils

import (
	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func SuccessResponse(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   message,
	})
}

// CodedErrorResponse is ErrorResponse with a machine readable code.
func CodedErrorResponse(c *gin.Context, status int, code, message string, data interface{}) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   message,
		Code:    code,
		Data:    data,
	})
}
