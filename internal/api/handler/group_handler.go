package handler

import (
	"net/http"

	"github.com/LincolnBryant/slate-client-server/internal/api/middleware"
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/group"
	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	groupService *group.GroupService
}

func NewGroupHandler(groupService *group.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

func groupMetadata(g *model.Group) gin.H {
	return gin.H{
		"id":            g.ID,
		"name":          g.Name,
		"email":         g.Email,
		"phone":         g.Phone,
		"science_field": g.ScienceField,
		"description":   g.Description,
	}
}

// List 列出全部组
func (h *GroupHandler) List(c *gin.Context) {
	groups, apiErr := h.groupService.List()
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	items := make([]interface{}, 0, len(groups))
	for i := range groups {
		items = append(items, model.NewEnvelope("Group", groupMetadata(&groups[i])))
	}
	c.JSON(http.StatusOK, model.NewList(items))
}

type groupCreateRequest struct {
	Metadata struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
		ScienceField string `json:"science_field"`
		Description  string `json:"description"`
	} `json:"metadata"`
}

// Create 创建组
func (h *GroupHandler) Create(c *gin.Context) {
	var req groupCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON in request body")
		return
	}
	record, apiErr := h.groupService.Create(middleware.CurrentUser(c), group.CreateRequest{
		Name:         req.Metadata.Name,
		Email:        req.Metadata.Email,
		Phone:        req.Metadata.Phone,
		ScienceField: req.Metadata.ScienceField,
		Description:  req.Metadata.Description,
	})
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, model.NewEnvelope("Group", groupMetadata(record)))
}

// Get 查询组（名称或ID）
func (h *GroupHandler) Get(c *gin.Context) {
	record, apiErr := h.groupService.Get(c.Param("name"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, model.NewEnvelope("Group", groupMetadata(record)))
}

type groupUpdateRequest struct {
	Metadata struct {
		Email        *string `json:"email"`
		Phone        *string `json:"phone"`
		ScienceField *string `json:"science_field"`
		Description  *string `json:"description"`
	} `json:"metadata"`
}

// Update 更新组
func (h *GroupHandler) Update(c *gin.Context) {
	var req groupUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON in request body")
		return
	}
	apiErr := h.groupService.Update(middleware.CurrentUser(c), c.Param("name"), group.UpdateRequest{
		Email:        req.Metadata.Email,
		Phone:        req.Metadata.Phone,
		ScienceField: req.Metadata.ScienceField,
		Description:  req.Metadata.Description,
	})
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// Delete 删除组
func (h *GroupHandler) Delete(c *gin.Context) {
	apiErr := h.groupService.Delete(middleware.CurrentUser(c), c.Param("name"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// ListMembers 列出组成员
func (h *GroupHandler) ListMembers(c *gin.Context) {
	members, apiErr := h.groupService.ListMembers(c.Param("name"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	items := make([]interface{}, 0, len(members))
	for i := range members {
		items = append(items, model.NewEnvelope("User", gin.H{
			"id":   members[i].ID,
			"name": members[i].Name,
		}))
	}
	c.JSON(http.StatusOK, model.NewList(items))
}
