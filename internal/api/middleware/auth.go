package middleware

import (
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/gin-gonic/gin"
)

const userContextKey = "user"

// AuthMiddleware 令牌认证中间件。
// 令牌经 ?token= 查询参数传递；缺失、未知或无效令牌一律403。
// 授权判定先于任何处理器逻辑执行。
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, apiErr := authService.Authenticate(c.Query("token"))
		if apiErr != nil {
			c.JSON(apiErr.HTTPStatus(), model.NewErrorResponse(apiErr.Message))
			c.Abort()
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// CurrentUser 取出认证后的用户
func CurrentUser(c *gin.Context) *model.User {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil
	}
	user, ok := value.(*model.User)
	if !ok {
		return nil
	}
	return user
}

// AdminMiddleware 管理员权限中间件
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.Admin {
			c.JSON(403, model.NewErrorResponse("Not authorized"))
			c.Abort()
			return
		}
		c.Next()
	}
}
