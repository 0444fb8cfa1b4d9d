package repository

import (
	"errors"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/pkg/cache"
	"gorm.io/gorm"
)

type UserRepository struct {
	db    *gorm.DB
	cache cache.Cache
	ttls  CacheTTLs
}

func NewUserRepository(db *gorm.DB, c cache.Cache, ttls CacheTTLs) *UserRepository {
	return &UserRepository{db: db, cache: c, ttls: ttls}
}

func userIDKey(id string) string       { return "user:id:" + id }
func userNameKey(name string) string   { return "user:name:" + name }
func userTokenKey(token string) string { return "user:token:" + token }

// invalidate 失效用户的全部缓存键
func (r *UserRepository) invalidate(user *model.User) {
	r.cache.Delete(userIDKey(user.ID), userNameKey(user.Name), userTokenKey(user.Token))
}

// Create 创建用户
func (r *UserRepository) Create(user *model.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return err
	}
	r.invalidate(user)
	return nil
}

// Update 更新用户
func (r *UserRepository) Update(user *model.User) error {
	// 名称或令牌可能已变化，先取旧记录以便把旧缓存键一并失效
	old, err := r.findByIDUncached(user.ID)
	if err != nil {
		return err
	}
	if err := r.db.Model(&model.User{}).
		Where("id = ?", user.ID).
		Omit("created_at").
		Updates(map[string]interface{}{
			"name":        user.Name,
			"email":       user.Email,
			"phone":       user.Phone,
			"institution": user.Institution,
			"token":       user.Token,
			"globus_id":   user.GlobusID,
			"admin":       user.Admin,
			"valid":       user.Valid,
		}).Error; err != nil {
		return err
	}
	if old != nil {
		r.invalidate(old)
	}
	r.invalidate(user)
	return nil
}

// Delete 删除用户及其组成员关系
func (r *UserRepository) Delete(id string) error {
	user, err := r.findByIDUncached(id)
	if err != nil {
		return err
	}
	if err := r.db.Where("user_id = ?", id).Delete(&model.GroupMember{}).Error; err != nil {
		return err
	}
	if err := r.db.Delete(&model.User{}, "id = ?", id).Error; err != nil {
		return err
	}
	if user != nil {
		r.invalidate(user)
	}
	return nil
}

func (r *UserRepository) findByIDUncached(id string) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindByID 根据ID查找用户
func (r *UserRepository) FindByID(id string) (*model.User, error) {
	var cached model.User
	if cacheGet(r.cache, "user", userIDKey(id), &cached) {
		return &cached, nil
	}
	user, err := r.findByIDUncached(id)
	if err != nil || user == nil {
		return user, err
	}
	cachePut(r.cache, userIDKey(user.ID), user, r.ttls.Entity)
	return user, nil
}

// FindByName 根据名称查找用户
func (r *UserRepository) FindByName(name string) (*model.User, error) {
	var cached model.User
	if cacheGet(r.cache, "user", userNameKey(name), &cached) {
		return &cached, nil
	}
	var user model.User
	err := r.db.Where("name = ?", name).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cachePut(r.cache, userNameKey(user.Name), &user, r.ttls.Entity)
	return &user, nil
}

// FindByToken 根据API令牌查找用户（认证热路径）
func (r *UserRepository) FindByToken(token string) (*model.User, error) {
	var cached model.User
	if cacheGet(r.cache, "user", userTokenKey(token), &cached) {
		return &cached, nil
	}
	var user model.User
	err := r.db.Where("token = ?", token).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cachePut(r.cache, userTokenKey(user.Token), &user, r.ttls.Entity)
	return &user, nil
}

// FindByGlobusID 根据Globus ID查找用户
func (r *UserRepository) FindByGlobusID(globusID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("globus_id = ?", globusID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// List 列出全部用户
func (r *UserRepository) List() ([]model.User, error) {
	var users []model.User
	if err := r.db.Order("name").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Count 用户总数
func (r *UserRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.User{}).Count(&n).Error
	return n, err
}
