package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "sudooom.im.chat/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    appErrors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Fail 错误响应，HTTP 状态码由错误类别决定
func Fail(c *gin.Context, err error) {
	c.JSON(appErrors.HTTPStatus(err), Response{
		Code:    appErrors.GetCode(err),
		Message: appErrors.GetMessage(err),
		Data:    nil,
	})
}

// AbortWithError 中间件中使用
func AbortWithError(c *gin.Context, err error) {
	Fail(c, err)
	c.Abort()
}
