package handler

import (
	"net/http"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
	"github.com/gin-gonic/gin"
)

// fail 统一错误出口：记录日志并渲染错误JSON
func fail(c *gin.Context, apiErr *model.APIError) {
	if apiErr.HTTPStatus() >= http.StatusInternalServerError {
		logger.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, apiErr)
	} else {
		logger.Debugf("%s %s rejected: %v", c.Request.Method, c.Request.URL.Path, apiErr)
	}
	c.JSON(apiErr.HTTPStatus(), model.NewErrorResponse(apiErr.Message))
}

// badRequest 请求体解析失败的错误出口
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, model.NewErrorResponse(message))
}

// boolParam 查询参数是否出现（值任意）
func boolParam(c *gin.Context, name string) bool {
	_, present := c.GetQuery(name)
	return present
}
