// Package user 平台用户管理。
package user

import (
	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/repository"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

type UserService struct {
	auth   *auth.AuthService
	users  *repository.UserRepository
	groups *repository.GroupRepository
}

func NewUserService(authService *auth.AuthService, users *repository.UserRepository, groups *repository.GroupRepository) *UserService {
	return &UserService{auth: authService, users: users, groups: groups}
}

// CreateRequest 创建用户请求
type CreateRequest struct {
	Name        string
	Email       string
	Phone       string
	Institution string
	GlobusID    string
	Admin       bool
}

// Create 创建用户（仅管理员），生成新的API令牌
func (s *UserService) Create(actor *model.User, req CreateRequest) (*model.User, *model.APIError) {
	if apiErr := s.auth.RequireAdmin(actor); apiErr != nil {
		return nil, apiErr
	}
	if req.Name == "" {
		return nil, model.ErrBadRequest("Missing user name in request")
	}
	existing, err := s.users.FindByName(req.Name)
	if err != nil {
		return nil, model.ErrStore(err, "user lookup failed")
	}
	if existing != nil {
		return nil, model.ErrConflict("User name is already in use")
	}

	record := &model.User{
		ID:          idgen.NewUserID(),
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Institution: req.Institution,
		GlobusID:    req.GlobusID,
		Admin:       req.Admin,
		Token:       idgen.NewUserToken(),
		Valid:       true,
	}
	if err := s.users.Create(record); err != nil {
		return nil, model.ErrStore(err, "user creation failed")
	}
	logger.Infof("%s created user %s (%s)", actor.ID, record.ID, record.Name)
	return record, nil
}

// Get 查询用户
func (s *UserService) Get(id string) (*model.User, *model.APIError) {
	record, err := s.users.FindByID(id)
	if err != nil {
		return nil, model.ErrStore(err, "user lookup failed")
	}
	if record == nil {
		return nil, model.ErrNotFound("User not found")
	}
	return record, nil
}

// List 列出全部用户（仅管理员）
func (s *UserService) List(actor *model.User) ([]model.User, *model.APIError) {
	if apiErr := s.auth.RequireAdmin(actor); apiErr != nil {
		return nil, apiErr
	}
	users, err := s.users.List()
	if err != nil {
		return nil, model.ErrStore(err, "user listing failed")
	}
	return users, nil
}

// UpdateRequest 更新用户请求；nil字段保持现值
type UpdateRequest struct {
	Email       *string
	Phone       *string
	Institution *string
	Admin       *bool
}

// Update 更新用户；仅本人或管理员，admin标志仅管理员可改
func (s *UserService) Update(actor *model.User, id string, req UpdateRequest) *model.APIError {
	record, apiErr := s.Get(id)
	if apiErr != nil {
		return apiErr
	}
	if actor.ID != record.ID && !actor.Admin {
		return model.ErrForbidden()
	}
	if req.Admin != nil && !actor.Admin {
		return model.ErrForbidden()
	}

	if req.Email != nil {
		record.Email = *req.Email
	}
	if req.Phone != nil {
		record.Phone = *req.Phone
	}
	if req.Institution != nil {
		record.Institution = *req.Institution
	}
	if req.Admin != nil {
		record.Admin = *req.Admin
	}
	if err := s.users.Update(record); err != nil {
		return model.ErrStore(err, "user update failed")
	}
	return nil
}

// Delete 删除用户；仅本人或管理员
func (s *UserService) Delete(actor *model.User, id string) *model.APIError {
	record, apiErr := s.Get(id)
	if apiErr != nil {
		return apiErr
	}
	if actor.ID != record.ID && !actor.Admin {
		return model.ErrForbidden()
	}
	logger.Infof("%s deleting user %s (%s)", actor.ID, record.ID, record.Name)
	if err := s.users.Delete(record.ID); err != nil {
		return model.ErrStore(err, "user deletion failed")
	}
	return nil
}

// ListGroups 列出用户所属的组
func (s *UserService) ListGroups(id string) ([]model.Group, *model.APIError) {
	if _, apiErr := s.Get(id); apiErr != nil {
		return nil, apiErr
	}
	groups, err := s.groups.ListGroupsForUser(id)
	if err != nil {
		return nil, model.ErrStore(err, "group listing failed")
	}
	return groups, nil
}

// AddToGroup 将用户加入组；仅管理员或该组成员可操作
func (s *UserService) AddToGroup(actor *model.User, userID, groupRef string) *model.APIError {
	record, apiErr := s.Get(userID)
	if apiErr != nil {
		return apiErr
	}
	group, err := s.groups.Resolve(groupRef)
	if err != nil {
		return model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return model.ErrNotFound("Group not found")
	}
	if apiErr := s.auth.RequireMembership(actor, group.ID); apiErr != nil {
		return apiErr
	}
	if err := s.groups.AddMember(record.ID, group.ID); err != nil {
		return model.ErrStore(err, "group membership creation failed")
	}
	return nil
}

// RemoveFromGroup 将用户移出组；仅管理员、本人或该组成员可操作
func (s *UserService) RemoveFromGroup(actor *model.User, userID, groupRef string) *model.APIError {
	record, apiErr := s.Get(userID)
	if apiErr != nil {
		return apiErr
	}
	group, err := s.groups.Resolve(groupRef)
	if err != nil {
		return model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return model.ErrNotFound("Group not found")
	}
	if actor.ID != record.ID {
		if apiErr := s.auth.RequireMembership(actor, group.ID); apiErr != nil {
			return apiErr
		}
	}
	if err := s.groups.RemoveMember(record.ID, group.ID); err != nil {
		return model.ErrStore(err, "group membership removal failed")
	}
	return nil
}

// FindByGlobusID 根据Globus ID查找用户并返回其令牌（仅管理员）
func (s *UserService) FindByGlobusID(actor *model.User, globusID string) (*model.User, *model.APIError) {
	if apiErr := s.auth.RequireAdmin(actor); apiErr != nil {
		return nil, apiErr
	}
	record, err := s.users.FindByGlobusID(globusID)
	if err != nil {
		return nil, model.ErrStore(err, "user lookup failed")
	}
	if record == nil {
		return nil, model.ErrNotFound("User not found")
	}
	return record, nil
}
