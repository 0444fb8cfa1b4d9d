package handler

import (
	"net/http"
	"strconv"

	"github.com/LincolnBryant/slate-client-server/internal/api/middleware"
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/instance"
	"github.com/gin-gonic/gin"
)

type InstanceHandler struct {
	instanceService *instance.InstanceService
}

func NewInstanceHandler(instanceService *instance.InstanceService) *InstanceHandler {
	return &InstanceHandler{instanceService: instanceService}
}

func instanceMetadata(inst *model.ApplicationInstance) gin.H {
	return gin.H{
		"id":          inst.ID,
		"name":        inst.Name,
		"application": inst.Application,
		"group":       inst.OwningGroup,
		"cluster":     inst.ClusterID,
		"created":     inst.CreatedAt,
	}
}

// List 列出实例；?group= 和 ?cluster= 为过滤谓词
func (h *InstanceHandler) List(c *gin.Context) {
	instances, apiErr := h.instanceService.List(c.Query("group"), c.Query("cluster"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	items := make([]interface{}, 0, len(instances))
	for i := range instances {
		items = append(items, model.NewEnvelope("ApplicationInstance", instanceMetadata(&instances[i])))
	}
	c.JSON(http.StatusOK, model.NewList(items))
}

// Get 查询实例；?detailed 时附加配置与实时pod状态
func (h *InstanceHandler) Get(c *gin.Context) {
	detailed := boolParam(c, "detailed")
	inst, pods, apiErr := h.instanceService.Get(c.Request.Context(), c.Param("id"), detailed)
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	metadata := instanceMetadata(inst)
	if detailed {
		metadata["configuration"] = inst.Config
		if pods == nil {
			pods = []instance.PodStatus{}
		}
		metadata["details"] = gin.H{"pods": pods}
	}
	c.JSON(http.StatusOK, model.NewEnvelope("ApplicationInstance", metadata))
}

// Delete 删除实例；?force 时即便helm失败也删除记录
func (h *InstanceHandler) Delete(c *gin.Context) {
	apiErr := h.instanceService.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), boolParam(c, "force"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// Restart 重启实例
func (h *InstanceHandler) Restart(c *gin.Context) {
	inst, apiErr := h.instanceService.Restart(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, model.NewEnvelope("ApplicationInstance", instanceMetadata(inst)))
}

// Logs 获取实例日志；?max_lines= ?container= ?previous
func (h *InstanceHandler) Logs(c *gin.Context) {
	opts := instance.LogOptions{
		Container: c.Query("container"),
		Previous:  boolParam(c, "previous"),
	}
	if raw := c.Query("max_lines"); raw != "" {
		maxLines, err := strconv.Atoi(raw)
		if err != nil || maxLines < 0 {
			badRequest(c, "Invalid max_lines value")
			return
		}
		opts.MaxLines = maxLines
	}
	logs, apiErr := h.instanceService.Logs(c.Request.Context(), c.Param("id"), opts)
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"apiVersion": model.APIVersion,
		"kind":       "ApplicationInstanceLogs",
		"logs":       logs,
	})
}
