package handler

import (
	"net/http"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/repository"
	"github.com/gin-gonic/gin"
)

type MiscHandler struct {
	users     *repository.UserRepository
	groups    *repository.GroupRepository
	clusters  *repository.ClusterRepository
	instances *repository.InstanceRepository
	secrets   *repository.SecretRepository
}

func NewMiscHandler(
	users *repository.UserRepository,
	groups *repository.GroupRepository,
	clusters *repository.ClusterRepository,
	instances *repository.InstanceRepository,
	secrets *repository.SecretRepository,
) *MiscHandler {
	return &MiscHandler{users: users, groups: groups, clusters: clusters, instances: instances, secrets: secrets}
}

// Version 服务端支持的API版本；客户端据此协商
func (h *MiscHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"apiVersion":           model.APIVersion,
		"supportedAPIVersions": []string{model.APIVersion},
	})
}

// Stats 存储统计信息
func (h *MiscHandler) Stats(c *gin.Context) {
	users, _ := h.users.Count()
	groups, _ := h.groups.Count()
	clusters, _ := h.clusters.Count()
	instances, _ := h.instances.Count()
	secrets, _ := h.secrets.Count()
	c.JSON(http.StatusOK, gin.H{
		"apiVersion": model.APIVersion,
		"users":      users,
		"groups":     groups,
		"clusters":   clusters,
		"instances":  instances,
		"secrets":    secrets,
	})
}
