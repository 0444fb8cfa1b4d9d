package repository

import (
	"errors"
	"strings"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/pkg/cache"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"gorm.io/gorm"
)

type GroupRepository struct {
	db    *gorm.DB
	cache cache.Cache
	ttls  CacheTTLs
}

func NewGroupRepository(db *gorm.DB, c cache.Cache, ttls CacheTTLs) *GroupRepository {
	return &GroupRepository{db: db, cache: c, ttls: ttls}
}

func groupIDKey(id string) string     { return "group:id:" + id }
func groupNameKey(name string) string { return "group:name:" + name }

func (r *GroupRepository) invalidate(group *model.Group) {
	r.cache.Delete(groupIDKey(group.ID), groupNameKey(group.Name))
}

// Create 创建组
func (r *GroupRepository) Create(group *model.Group) error {
	if err := r.db.Create(group).Error; err != nil {
		return err
	}
	r.invalidate(group)
	return nil
}

// Update 更新组（名称不可变，命名空间名由组名派生）
func (r *GroupRepository) Update(group *model.Group) error {
	if err := r.db.Model(&model.Group{}).
		Where("id = ?", group.ID).
		Omit("created_at", "name").
		Updates(map[string]interface{}{
			"email":         group.Email,
			"phone":         group.Phone,
			"science_field": group.ScienceField,
			"description":   group.Description,
		}).Error; err != nil {
		return err
	}
	r.invalidate(group)
	return nil
}

// Delete 删除组及其成员关系
func (r *GroupRepository) Delete(id string) error {
	group, err := r.findByIDUncached(id)
	if err != nil {
		return err
	}
	if err := r.db.Where("group_id = ?", id).Delete(&model.GroupMember{}).Error; err != nil {
		return err
	}
	if err := r.db.Delete(&model.Group{}, "id = ?", id).Error; err != nil {
		return err
	}
	if group != nil {
		r.invalidate(group)
	}
	return nil
}

func (r *GroupRepository) findByIDUncached(id string) (*model.Group, error) {
	var group model.Group
	err := r.db.Where("id = ?", id).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// FindByID 根据ID查找组
func (r *GroupRepository) FindByID(id string) (*model.Group, error) {
	var cached model.Group
	if cacheGet(r.cache, "group", groupIDKey(id), &cached) {
		return &cached, nil
	}
	group, err := r.findByIDUncached(id)
	if err != nil || group == nil {
		return group, err
	}
	cachePut(r.cache, groupIDKey(group.ID), group, r.ttls.Entity)
	return group, nil
}

// FindByName 根据名称查找组
func (r *GroupRepository) FindByName(name string) (*model.Group, error) {
	var cached model.Group
	if cacheGet(r.cache, "group", groupNameKey(name), &cached) {
		return &cached, nil
	}
	var group model.Group
	err := r.db.Where("name = ?", name).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cachePut(r.cache, groupNameKey(group.Name), &group, r.ttls.Entity)
	return &group, nil
}

// Resolve 按名称或ID解析组
func (r *GroupRepository) Resolve(nameOrID string) (*model.Group, error) {
	if strings.HasPrefix(nameOrID, idgen.GroupIDPrefix) {
		return r.FindByID(nameOrID)
	}
	return r.FindByName(nameOrID)
}

// List 列出全部组
func (r *GroupRepository) List() ([]model.Group, error) {
	var groups []model.Group
	if err := r.db.Order("name").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// AddMember 添加组成员（幂等）
func (r *GroupRepository) AddMember(userID, groupID string) error {
	var existing model.GroupMember
	err := r.db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.Create(&model.GroupMember{UserID: userID, GroupID: groupID}).Error
}

// RemoveMember 移除组成员（幂等）
func (r *GroupRepository) RemoveMember(userID, groupID string) error {
	return r.db.Where("user_id = ? AND group_id = ?", userID, groupID).
		Delete(&model.GroupMember{}).Error
}

// UserInGroup 用户是否为组成员
func (r *GroupRepository) UserInGroup(userID, groupID string) (bool, error) {
	var n int64
	err := r.db.Model(&model.GroupMember{}).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Count(&n).Error
	return n > 0, err
}

// ListMembers 列出组成员
func (r *GroupRepository) ListMembers(groupID string) ([]model.User, error) {
	var users []model.User
	err := r.db.
		Joins("JOIN group_members ON group_members.user_id = users.id").
		Where("group_members.group_id = ?", groupID).
		Order("users.name").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ListGroupsForUser 列出用户所属的组
func (r *GroupRepository) ListGroupsForUser(userID string) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Order("groups.name").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// Count 组总数
func (r *GroupRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.Group{}).Count(&n).Error
	return n, err
}
