// Package handler 提供 HTTP 处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/riskhub-protocol/riskhub/pkg/apperrors"
)

// Response 统一响应结构
type Response struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    "OK",
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    "OK",
		Message: "created",
		Data:    data,
	})
}

// Fail 错误响应, 按错误码映射 HTTP 状态
func Fail(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	c.JSON(apperrors.ToHTTPStatus(appErr), Response{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}
