package router

import (
	"net/http"
	"strings"

	"github.com/LincolnBryant/slate-client-server/internal/api/handler"
	"github.com/LincolnBryant/slate-client-server/internal/api/middleware"
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(
	userHandler *handler.UserHandler,
	groupHandler *handler.GroupHandler,
	clusterHandler *handler.ClusterHandler,
	appHandler *handler.AppHandler,
	instanceHandler *handler.InstanceHandler,
	secretHandler *handler.SecretHandler,
	miscHandler *handler.MiscHandler,
	authService *auth.AuthService,
	mode string,
) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()

	r.Use(middleware.RecoveryMiddleware())
	r.Use(gin.Logger())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware())

	// 公开端点（不需要认证）
	r.GET("/version", miscHandler.Version)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 版本化API，全部需要令牌认证
	api := r.Group("/" + model.APIVersion)
	api.Use(middleware.AuthMiddleware(authService))
	{
		// == 用户 ==
		api.GET("/users", userHandler.List)
		api.POST("/users", userHandler.Create)
		api.GET("/users/:id", userHandler.Get)
		api.PUT("/users/:id", userHandler.Update)
		api.DELETE("/users/:id", userHandler.Delete)
		api.GET("/users/:id/groups", userHandler.ListGroups)
		api.PUT("/users/:id/groups/:group", userHandler.AddToGroup)
		api.DELETE("/users/:id/groups/:group", userHandler.RemoveFromGroup)
		api.GET("/find_user", userHandler.Find)

		// == 组 ==
		api.GET("/groups", groupHandler.List)
		api.POST("/groups", groupHandler.Create)
		api.GET("/groups/:name", groupHandler.Get)
		api.PUT("/groups/:name", groupHandler.Update)
		api.DELETE("/groups/:name", groupHandler.Delete)
		api.GET("/groups/:name/members", groupHandler.ListMembers)

		// == 集群 ==
		api.GET("/clusters", clusterHandler.List)
		api.POST("/clusters", clusterHandler.Create)
		api.GET("/clusters/:id", clusterHandler.Get)
		api.PUT("/clusters/:id", clusterHandler.Update)
		api.DELETE("/clusters/:id", clusterHandler.Delete)
		api.GET("/clusters/:id/ping", clusterHandler.Ping)
		api.GET("/clusters/:id/verify", clusterHandler.Verify)
		api.POST("/clusters/:id/repair", clusterHandler.Repair)
		api.GET("/clusters/:id/allowed_groups", clusterHandler.ListAllowedGroups)
		api.PUT("/clusters/:id/allowed_groups/:group", clusterHandler.GrantAccess)
		api.DELETE("/clusters/:id/allowed_groups/:group", clusterHandler.RevokeAccess)
		api.GET("/clusters/:id/allowed_groups/:group/applications", clusterHandler.ListGroupApps)
		api.PUT("/clusters/:id/allowed_groups/:group/applications/:app", clusterHandler.AllowApp)
		api.DELETE("/clusters/:id/allowed_groups/:group/applications/:app", clusterHandler.DenyApp)

		// == 应用目录 ==
		// POST /apps/ad-hoc 复用 :name 路由，在处理器内分派
		api.GET("/apps", appHandler.List)
		api.GET("/apps/:name", appHandler.Get)
		api.POST("/apps/:name", appHandler.Install)

		// == 应用实例 ==
		api.GET("/instances", instanceHandler.List)
		api.GET("/instances/:id", instanceHandler.Get)
		api.DELETE("/instances/:id", instanceHandler.Delete)
		api.PUT("/instances/:id/restart", instanceHandler.Restart)
		api.GET("/instances/:id/logs", instanceHandler.Logs)

		// == Secret ==
		api.GET("/secrets", secretHandler.List)
		api.POST("/secrets", secretHandler.Create)
		api.GET("/secrets/:id", secretHandler.Get)
		api.DELETE("/secrets/:id", secretHandler.Delete)

		// == 其他 ==
		api.GET("/stats", miscHandler.Stats)
	}

	// 未匹配路径：版本段不符时返回结构化的版本错误，触发客户端协商
	r.NoRoute(func(c *gin.Context) {
		segments := strings.SplitN(strings.TrimPrefix(c.Request.URL.Path, "/"), "/", 2)
		if len(segments) > 0 && strings.HasPrefix(segments[0], "v") && segments[0] != model.APIVersion {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse("Unsupported API version"))
			return
		}
		c.JSON(http.StatusNotFound, model.NewErrorResponse("Not found"))
	})

	return r
}
