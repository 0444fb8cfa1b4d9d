package handler

import (
	"net/http"

	"github.com/LincolnBryant/slate-client-server/internal/api/middleware"
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/secret"
	"github.com/gin-gonic/gin"
)

type SecretHandler struct {
	secretService *secret.SecretService
}

func NewSecretHandler(secretService *secret.SecretService) *SecretHandler {
	return &SecretHandler{secretService: secretService}
}

func secretMetadata(s *model.Secret) gin.H {
	return gin.H{
		"id":      s.ID,
		"name":    s.Name,
		"group":   s.OwningGroup,
		"cluster": s.ClusterID,
		"created": s.CreatedAt,
	}
}

// List 列出Secret；?group= 必填，?cluster= 可选
func (h *SecretHandler) List(c *gin.Context) {
	secrets, apiErr := h.secretService.List(middleware.CurrentUser(c), c.Query("group"), c.Query("cluster"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	items := make([]interface{}, 0, len(secrets))
	for i := range secrets {
		items = append(items, model.NewEnvelope("Secret", secretMetadata(&secrets[i])))
	}
	c.JSON(http.StatusOK, model.NewList(items))
}

type secretCreateRequest struct {
	Metadata struct {
		Name    string `json:"name"`
		Group   string `json:"group"`
		Cluster string `json:"cluster"`
	} `json:"metadata"`
	// Contents 键 → base64值；与 CopyFrom 二选一
	Contents map[string]string `json:"contents"`
	// CopyFrom 源Secret的ID；内容字节级复制
	CopyFrom string `json:"copyFrom"`
}

// Create 创建Secret；带 copyFrom 时从源Secret复制内容
func (h *SecretHandler) Create(c *gin.Context) {
	var req secretCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON in request body")
		return
	}
	if req.Metadata.Name == "" {
		badRequest(c, "Missing secret name in request")
		return
	}
	if req.Metadata.Group == "" {
		badRequest(c, "Missing group in request")
		return
	}
	if req.Metadata.Cluster == "" {
		badRequest(c, "Missing cluster in request")
		return
	}
	if req.CopyFrom == "" && len(req.Contents) == 0 {
		badRequest(c, "Missing secret contents in request")
		return
	}
	if req.CopyFrom != "" && len(req.Contents) > 0 {
		badRequest(c, "contents and copyFrom are mutually exclusive")
		return
	}

	createReq := secret.CreateRequest{
		Name:       req.Metadata.Name,
		GroupRef:   req.Metadata.Group,
		ClusterRef: req.Metadata.Cluster,
		Contents:   req.Contents,
	}

	var record *model.Secret
	var apiErr *model.APIError
	if req.CopyFrom != "" {
		record, apiErr = h.secretService.Copy(c.Request.Context(), middleware.CurrentUser(c), req.CopyFrom, createReq)
	} else {
		record, apiErr = h.secretService.Create(c.Request.Context(), middleware.CurrentUser(c), createReq)
	}
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, model.NewEnvelope("Secret", gin.H{
		"id":   record.ID,
		"name": record.Name,
	}))
}

// Get 查询Secret及其内容
func (h *SecretHandler) Get(c *gin.Context) {
	record, contents, apiErr := h.secretService.Get(middleware.CurrentUser(c), c.Param("id"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	metadata := secretMetadata(record)
	metadata["contents"] = contents
	c.JSON(http.StatusOK, model.NewEnvelope("Secret", metadata))
}

// Delete 删除Secret；?force 时无论集群侧结果如何都删除记录
func (h *SecretHandler) Delete(c *gin.Context) {
	apiErr := h.secretService.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), boolParam(c, "force"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}
