// Package group 租户组的创建、更新与删除。
package group

import (
	"regexp"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/repository"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

// 组名参与Kubernetes命名空间名，必须符合DNS label规则
var groupNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

type GroupService struct {
	auth      *auth.AuthService
	groups    *repository.GroupRepository
	clusters  *repository.ClusterRepository
	instances *repository.InstanceRepository
	secrets   *repository.SecretRepository
}

func NewGroupService(
	authService *auth.AuthService,
	groups *repository.GroupRepository,
	clusters *repository.ClusterRepository,
	instances *repository.InstanceRepository,
	secrets *repository.SecretRepository,
) *GroupService {
	return &GroupService{
		auth:      authService,
		groups:    groups,
		clusters:  clusters,
		instances: instances,
		secrets:   secrets,
	}
}

// CreateRequest 创建组请求
type CreateRequest struct {
	Name         string
	Email        string
	Phone        string
	ScienceField string
	Description  string
}

// Create 创建组；创建者自动成为成员
func (s *GroupService) Create(user *model.User, req CreateRequest) (*model.Group, *model.APIError) {
	if req.Name == "" {
		return nil, model.ErrBadRequest("Missing group name in request")
	}
	if !groupNamePattern.MatchString(req.Name) {
		return nil, model.ErrBadRequest("Group names must be valid DNS labels (lowercase alphanumerics and dashes)")
	}
	existing, err := s.groups.FindByName(req.Name)
	if err != nil {
		return nil, model.ErrStore(err, "group lookup failed")
	}
	if existing != nil {
		return nil, model.ErrConflict("Group name is already in use")
	}

	group := &model.Group{
		ID:           idgen.NewGroupID(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		ScienceField: req.ScienceField,
		Description:  req.Description,
	}
	if err := s.groups.Create(group); err != nil {
		return nil, model.ErrStore(err, "group creation failed")
	}
	if err := s.groups.AddMember(user.ID, group.ID); err != nil {
		return nil, model.ErrStore(err, "group membership creation failed")
	}
	logger.Infof("%s created group %s (%s)", user.ID, group.ID, group.Name)
	return group, nil
}

// Get 按名称或ID查询组
func (s *GroupService) Get(ref string) (*model.Group, *model.APIError) {
	group, err := s.groups.Resolve(ref)
	if err != nil {
		return nil, model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return nil, model.ErrNotFound("Group not found")
	}
	return group, nil
}

// List 列出全部组
func (s *GroupService) List() ([]model.Group, *model.APIError) {
	groups, err := s.groups.List()
	if err != nil {
		return nil, model.ErrStore(err, "group listing failed")
	}
	return groups, nil
}

// UpdateRequest 更新组请求；nil字段保持现值
type UpdateRequest struct {
	Email        *string
	Phone        *string
	ScienceField *string
	Description  *string
}

// Update 更新组信息；组名不可变（命名空间名由组名派生）
func (s *GroupService) Update(user *model.User, ref string, req UpdateRequest) *model.APIError {
	group, apiErr := s.Get(ref)
	if apiErr != nil {
		return apiErr
	}
	if apiErr := s.auth.RequireMembership(user, group.ID); apiErr != nil {
		return apiErr
	}

	changed := false
	if req.Email != nil {
		group.Email = *req.Email
		changed = true
	}
	if req.Phone != nil {
		group.Phone = *req.Phone
		changed = true
	}
	if req.ScienceField != nil {
		group.ScienceField = *req.ScienceField
		changed = true
	}
	if req.Description != nil {
		group.Description = *req.Description
		changed = true
	}
	if !changed {
		return nil
	}
	if err := s.groups.Update(group); err != nil {
		return model.ErrStore(err, "group update failed")
	}
	return nil
}

// Delete 删除组。先决条件：该组在所有集群上的实例和Secret已全部销毁，
// 且组不再拥有任何集群。
func (s *GroupService) Delete(user *model.User, ref string) *model.APIError {
	group, apiErr := s.Get(ref)
	if apiErr != nil {
		return apiErr
	}
	if apiErr := s.auth.RequireMembership(user, group.ID); apiErr != nil {
		return apiErr
	}

	instances, err := s.instances.List(group.ID, "")
	if err != nil {
		return model.ErrStore(err, "instance listing failed")
	}
	if len(instances) > 0 {
		return model.ErrBadRequest("Group still owns %d application instance(s); delete them first", len(instances))
	}
	secrets, err := s.secrets.List(group.ID, "")
	if err != nil {
		return model.ErrStore(err, "secret listing failed")
	}
	if len(secrets) > 0 {
		return model.ErrBadRequest("Group still owns %d secret(s); delete them first", len(secrets))
	}
	clusters, err := s.clusters.ListByGroup(group.ID)
	if err != nil {
		return model.ErrStore(err, "cluster listing failed")
	}
	if len(clusters) > 0 {
		return model.ErrBadRequest("Group still owns %d cluster(s); delete them first", len(clusters))
	}

	logger.Infof("%s deleting group %s (%s)", user.ID, group.ID, group.Name)
	if err := s.groups.Delete(group.ID); err != nil {
		return model.ErrStore(err, "group deletion failed")
	}
	return nil
}

// ListMembers 列出组成员
func (s *GroupService) ListMembers(ref string) ([]model.User, *model.APIError) {
	group, apiErr := s.Get(ref)
	if apiErr != nil {
		return nil, apiErr
	}
	members, err := s.groups.ListMembers(group.ID)
	if err != nil {
		return nil, model.ErrStore(err, "membership listing failed")
	}
	return members, nil
}
