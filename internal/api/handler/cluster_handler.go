package handler

import (
	"net/http"

	"github.com/LincolnBryant/slate-client-server/internal/api/middleware"
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/repository"
	"github.com/LincolnBryant/slate-client-server/internal/service/access"
	"github.com/LincolnBryant/slate-client-server/internal/service/cluster"
	"github.com/gin-gonic/gin"
)

type ClusterHandler struct {
	clusterService *cluster.ClusterService
	accessService  *access.AccessService
	groups         *repository.GroupRepository
	clusters       *repository.ClusterRepository
}

func NewClusterHandler(
	clusterService *cluster.ClusterService,
	accessService *access.AccessService,
	groups *repository.GroupRepository,
	clusters *repository.ClusterRepository,
) *ClusterHandler {
	return &ClusterHandler{
		clusterService: clusterService,
		accessService:  accessService,
		groups:         groups,
		clusters:       clusters,
	}
}

// clusterMetadata 集群响应的metadata
func (h *ClusterHandler) clusterMetadata(c *model.Cluster) gin.H {
	groupName := c.OwningGroup
	if group, err := h.groups.FindByID(c.OwningGroup); err == nil && group != nil {
		groupName = group.Name
	}
	locations, _ := h.clusters.GetLocations(c.ID)
	if locations == nil {
		locations = []model.GeoLocation{}
	}
	return gin.H{
		"id":                 c.ID,
		"name":               c.Name,
		"owningGroup":        groupName,
		"owningOrganization": c.OwningOrganization,
		"systemNamespace":    c.SystemNamespace,
		"location":           locations,
	}
}

// List 列出集群；?group= 时仅列归属该组的
func (h *ClusterHandler) List(c *gin.Context) {
	clusters, apiErr := h.clusterService.List(c.Query("group"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	items := make([]interface{}, 0, len(clusters))
	for i := range clusters {
		items = append(items, model.NewEnvelope("Cluster", h.clusterMetadata(&clusters[i])))
	}
	c.JSON(http.StatusOK, model.NewList(items))
}

type clusterCreateRequest struct {
	Metadata struct {
		Name               string `json:"name"`
		Group              string `json:"group"`
		OwningOrganization string `json:"owningOrganization"`
		Kubeconfig         string `json:"kubeconfig"`
	} `json:"metadata"`
}

// Create 注册集群
func (h *ClusterHandler) Create(c *gin.Context) {
	var req clusterCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON in request body")
		return
	}
	record, apiErr := h.clusterService.Register(c.Request.Context(), middleware.CurrentUser(c), cluster.RegisterRequest{
		Name:               req.Metadata.Name,
		GroupRef:           req.Metadata.Group,
		OwningOrganization: req.Metadata.OwningOrganization,
		Kubeconfig:         req.Metadata.Kubeconfig,
	})
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, model.NewEnvelope("Cluster", gin.H{
		"id":   record.ID,
		"name": record.Name,
	}))
}

// Get 查询集群
func (h *ClusterHandler) Get(c *gin.Context) {
	record, apiErr := h.clusterService.Get(c.Param("id"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, model.NewEnvelope("Cluster", h.clusterMetadata(record)))
}

type clusterUpdateRequest struct {
	Metadata struct {
		OwningOrganization *string              `json:"owningOrganization"`
		Kubeconfig         *string              `json:"kubeconfig"`
		Location           *[]model.GeoLocation `json:"location"`
	} `json:"metadata"`
}

// Update 更新集群；缺省字段保持现值，无有效变化时为空操作
func (h *ClusterHandler) Update(c *gin.Context) {
	var req clusterUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON in request body")
		return
	}
	apiErr := h.clusterService.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), cluster.UpdateRequest{
		OwningOrganization: req.Metadata.OwningOrganization,
		Kubeconfig:         req.Metadata.Kubeconfig,
		Locations:          req.Metadata.Location,
	})
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// Delete 级联删除集群；?force 时容忍阶段内失败
func (h *ClusterHandler) Delete(c *gin.Context) {
	apiErr := h.clusterService.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), boolParam(c, "force"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// Ping 集群可达性；?cache=1 时消费TTL内的缓存结果
func (h *ClusterHandler) Ping(c *gin.Context) {
	reachable, apiErr := h.clusterService.Ping(c.Request.Context(), c.Param("id"), boolParam(c, "cache"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"apiVersion": model.APIVersion,
		"reachable":  reachable,
	})
}

// Verify 集群一致性检查
func (h *ClusterHandler) Verify(c *gin.Context) {
	result, apiErr := h.clusterService.Verify(c.Request.Context(), c.Param("id"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}

	missing := make([]interface{}, 0, len(result.MissingInstances))
	for _, inst := range result.MissingInstances {
		missing = append(missing, model.NewEnvelope("ApplicationInstance", gin.H{
			"id":          inst.ID,
			"name":        inst.Name,
			"application": inst.Application,
			"group":       inst.OwningGroup,
			"cluster":     inst.ClusterID,
			"created":     inst.CreatedAt,
		}))
	}
	unexpected := result.UnexpectedInstances
	if unexpected == nil {
		unexpected = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"apiVersion":          model.APIVersion,
		"status":              result.Status,
		"missingInstances":    missing,
		"unexpectedInstances": unexpected,
		"missingSecrets":      len(result.MissingSecrets),
		"unexpectedSecrets":   len(result.UnexpectedSecrets),
	})
}

// Repair 按策略对账集群（仅管理员）；?strategy=reinstall|wipe
func (h *ClusterHandler) Repair(c *gin.Context) {
	strategy := cluster.RepairStrategy(c.DefaultQuery("strategy", string(cluster.StrategyReinstall)))
	report, apiErr := h.clusterService.Repair(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), strategy)
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"apiVersion": model.APIVersion,
		"repair":     report,
	})
}

// ListAllowedGroups 列出可访问集群的组
func (h *ClusterHandler) ListAllowedGroups(c *gin.Context) {
	entries, apiErr := h.accessService.ListAllowed(c.Param("id"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	items := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		items = append(items, model.NewEnvelope("Group", gin.H{
			"id":   entry.ID,
			"name": entry.Name,
		}))
	}
	c.JSON(http.StatusOK, model.NewList(items))
}

// GrantAccess 授予组（或通配符）集群访问权
func (h *ClusterHandler) GrantAccess(c *gin.Context) {
	apiErr := h.accessService.Grant(middleware.CurrentUser(c), c.Param("id"), c.Param("group"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// RevokeAccess 撤销组（或通配符）集群访问权
func (h *ClusterHandler) RevokeAccess(c *gin.Context) {
	apiErr := h.accessService.Revoke(middleware.CurrentUser(c), c.Param("id"), c.Param("group"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// ListGroupApps 列出组在集群上获准使用的应用
func (h *ClusterHandler) ListGroupApps(c *gin.Context) {
	apps, apiErr := h.accessService.ListAllowedApps(middleware.CurrentUser(c), c.Param("id"), c.Param("group"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	items := make([]interface{}, 0, len(apps))
	for _, app := range apps {
		items = append(items, app)
	}
	c.JSON(http.StatusOK, model.NewList(items))
}

// AllowApp 允许组在集群上使用应用
func (h *ClusterHandler) AllowApp(c *gin.Context) {
	apiErr := h.accessService.AllowApp(middleware.CurrentUser(c), c.Param("id"), c.Param("group"), c.Param("app"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// DenyApp 撤销组在集群上使用应用的许可
func (h *ClusterHandler) DenyApp(c *gin.Context) {
	apiErr := h.accessService.DenyApp(middleware.CurrentUser(c), c.Param("id"), c.Param("group"), c.Param("app"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}
