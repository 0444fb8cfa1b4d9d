package handler

import (
	"net/http"

	"github.com/LincolnBryant/slate-client-server/internal/api/middleware"
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/user"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *user.UserService
}

func NewUserHandler(userService *user.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// userMetadata 用户响应的metadata；includeToken 仅对本人/管理员
func userMetadata(u *model.User, includeToken bool) gin.H {
	metadata := gin.H{
		"id":          u.ID,
		"name":        u.Name,
		"email":       u.Email,
		"phone":       u.Phone,
		"institution": u.Institution,
		"admin":       u.Admin,
	}
	if includeToken {
		metadata["access_token"] = u.Token
	}
	return metadata
}

// List 列出全部用户（仅管理员）
func (h *UserHandler) List(c *gin.Context) {
	users, apiErr := h.userService.List(middleware.CurrentUser(c))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	items := make([]interface{}, 0, len(users))
	for i := range users {
		items = append(items, model.NewEnvelope("User", userMetadata(&users[i], false)))
	}
	c.JSON(http.StatusOK, model.NewList(items))
}

type userCreateRequest struct {
	Metadata struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		Institution string `json:"institution"`
		GlobusID    string `json:"globusID"`
		Admin       bool   `json:"admin"`
	} `json:"metadata"`
}

// Create 创建用户（仅管理员），响应携带新令牌
func (h *UserHandler) Create(c *gin.Context) {
	var req userCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON in request body")
		return
	}
	record, apiErr := h.userService.Create(middleware.CurrentUser(c), user.CreateRequest{
		Name:        req.Metadata.Name,
		Email:       req.Metadata.Email,
		Phone:       req.Metadata.Phone,
		Institution: req.Metadata.Institution,
		GlobusID:    req.Metadata.GlobusID,
		Admin:       req.Metadata.Admin,
	})
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, model.NewEnvelope("User", userMetadata(record, true)))
}

// Get 查询用户；令牌仅对本人和管理员可见
func (h *UserHandler) Get(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	record, apiErr := h.userService.Get(c.Param("id"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	includeToken := actor.Admin || actor.ID == record.ID
	c.JSON(http.StatusOK, model.NewEnvelope("User", userMetadata(record, includeToken)))
}

type userUpdateRequest struct {
	Metadata struct {
		Email       *string `json:"email"`
		Phone       *string `json:"phone"`
		Institution *string `json:"institution"`
		Admin       *bool   `json:"admin"`
	} `json:"metadata"`
}

// Update 更新用户（本人或管理员）
func (h *UserHandler) Update(c *gin.Context) {
	var req userUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON in request body")
		return
	}
	apiErr := h.userService.Update(middleware.CurrentUser(c), c.Param("id"), user.UpdateRequest{
		Email:       req.Metadata.Email,
		Phone:       req.Metadata.Phone,
		Institution: req.Metadata.Institution,
		Admin:       req.Metadata.Admin,
	})
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// Delete 删除用户（本人或管理员）
func (h *UserHandler) Delete(c *gin.Context) {
	apiErr := h.userService.Delete(middleware.CurrentUser(c), c.Param("id"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// ListGroups 列出用户所属的组
func (h *UserHandler) ListGroups(c *gin.Context) {
	groups, apiErr := h.userService.ListGroups(c.Param("id"))
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

// AddToGroup 将用户加入组
func (h *UserHandler) AddToGroup(c *gin.Context) {
	apiErr := h.userService.AddToGroup(middleware.CurrentUser(c), c.Param("id"), c.Param("group"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// RemoveFromGroup 将用户移出组
func (h *UserHandler) RemoveFromGroup(c *gin.Context) {
	apiErr := h.userService.RemoveFromGroup(middleware.CurrentUser(c), c.Param("id"), c.Param("group"))
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.Status(http.StatusOK)
}

// Find 根据Globus ID查找用户并返回其令牌（仅管理员）
func (h *UserHandler) Find(c *gin.Context) {
	globusID := c.Query("globus_id")
	if globusID == "" {
		badRequest(c, "Missing globus_id in request")
		return
	}
	record, apiErr := h.userService.FindByGlobusID(middleware.CurrentUser(c), globusID)
	if apiErr != nil {
		fail(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, model.NewEnvelope("User", gin.H{
		"id":           record.ID,
		"access_token": record.Token,
	}))
}
