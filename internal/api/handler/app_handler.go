package handler

import (
	"encoding/base64"
	"net/http"
	"os"

	"github.com/LincolnBryant/slate-client-server/internal/api/middleware"
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/application"
	"github.com/LincolnBryant/slate-client-server/internal/service/instance"
	"github.com/gin-gonic/gin"
)

type AppHandler struct {
	appService      *application.ApplicationService
	instanceService *instance.InstanceService
}

func NewAppHandler(appService *application.ApplicationService, instanceService *instance.InstanceService) *AppHandler {
	return &AppHandler{appService: appService, instanceService: instanceService}
}

// repoTag ?dev / ?test 查询参数 → 仓库标签
func repoTag(c *gin.Context) string {
	if boolParam(c, "dev") {
		return model.RepoDev
	}
	if boolParam(c, "test") {
		return model.RepoTest
	}
	return model.RepoStable
}

// List 列出目录中的应用
func (h *AppHandler) List(c *gin.Context) {
	apps, apiErr := h.appService.List(c.Request.Context(), repoTag(c))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	items := make([]interface{}, 0, len(apps))
	for _, app := range apps {
		items = append(items, model.NewEnvelope("Application", gin.H{
			"name":          app.Name,
			"app_version":   app.AppVersion,
			"chart_version": app.ChartVersion,
			"description":   app.Description,
		}))
	}
	c.JSON(http.StatusOK, model.NewList(items))
}

// Get 获取应用的默认配置
func (h *AppHandler) Get(c *gin.Context) {
	app, apiErr := h.appService.Fetch(c.Request.Context(), repoTag(c), c.Param("name"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, model.NewEnvelope("Configuration", gin.H{
		"name": app.Name,
		"body": app.Body,
		"docs": app.Docs,
	}))
}

type installRequest struct {
	Group         string `json:"group"`
	Cluster       string `json:"cluster"`
	Tag           string `json:"tag"`
	Configuration string `json:"configuration"`
	// Chart base64编码的chart压缩包，仅 ad-hoc 安装使用
	Chart string `json:"chart"`
}

// Install 安装应用。路径段为 "ad-hoc" 时从请求体中的chart安装。
func (h *AppHandler) Install(c *gin.Context) {
	name := c.Param("name")

	var req installRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON in request body")
		return
	}
	if req.Group == "" {
		badRequest(c, "Missing group in request")
		return
	}
	if req.Cluster == "" {
		badRequest(c, "Missing cluster in request")
		return
	}

	install := instance.InstallRequest{
		Application: name,
		Repository:  repoTag(c),
		GroupRef:    req.Group,
		ClusterRef:  req.Cluster,
		Tag:         req.Tag,
		Config:      req.Configuration,
	}

	if name == "ad-hoc" {
		if req.Chart == "" {
			badRequest(c, "Missing chart in request")
			return
		}
		raw, err := base64.StdEncoding.DecodeString(req.Chart)
		if err != nil {
			badRequest(c, "Chart is not valid base64")
			return
		}
		chartFile, err := os.CreateTemp("", "chart-*.tgz")
		if err != nil {
			fail(c, model.ErrInternal(err, "unable to stage chart"))
			return
		}
		defer os.Remove(chartFile.Name())
		if _, err := chartFile.Write(raw); err != nil {
			chartFile.Close()
			fail(c, model.ErrInternal(err, "unable to stage chart"))
			return
		}
		chartFile.Close()
		install.ChartPath = chartFile.Name()
		if req.Tag == "" {
			badRequest(c, "Ad-hoc installs require a tag naming the instance")
			return
		}
		install.Application = req.Tag
		install.Tag = ""
	}

	inst, apiErr := h.instanceService.Install(c.Request.Context(), middleware.CurrentUser(c), install)
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, model.NewEnvelope("ApplicationInstance", instanceMetadata(inst)))
}
