package repository

import (
	"errors"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/pkg/cache"
	"gorm.io/gorm"
)

type SecretRepository struct {
	db    *gorm.DB
	cache cache.Cache
	ttls  CacheTTLs
}

func NewSecretRepository(db *gorm.DB, c cache.Cache, ttls CacheTTLs) *SecretRepository {
	return &SecretRepository{db: db, cache: c, ttls: ttls}
}

func secretIDKey(id string) string { return "secret:id:" + id }

// Create 创建Secret记录
func (r *SecretRepository) Create(secret *model.Secret) error {
	if err := r.db.Create(secret).Error; err != nil {
		return err
	}
	r.cache.Delete(secretIDKey(secret.ID))
	return nil
}

// Delete 删除Secret记录
func (r *SecretRepository) Delete(id string) error {
	if err := r.db.Delete(&model.Secret{}, "id = ?", id).Error; err != nil {
		return err
	}
	r.cache.Delete(secretIDKey(id))
	return nil
}

// FindByID 根据ID查找Secret
func (r *SecretRepository) FindByID(id string) (*model.Secret, error) {
	var cached model.Secret
	if cacheGet(r.cache, "secret", secretIDKey(id), &cached) {
		return &cached, nil
	}
	var secret model.Secret
	err := r.db.Where("id = ?", id).First(&secret).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cachePut(r.cache, secretIDKey(secret.ID), &secret, r.ttls.Record)
	return &secret, nil
}

// FindByName 根据 {组, 集群, 名称} 查找Secret
func (r *SecretRepository) FindByName(groupID, clusterID, name string) (*model.Secret, error) {
	var secret model.Secret
	err := r.db.Where("owning_group = ? AND cluster_id = ? AND name = ?", groupID, clusterID, name).
		First(&secret).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &secret, nil
}

// List 按 (组|*, 集群|*) 谓词列出Secret；空串为通配
func (r *SecretRepository) List(groupID, clusterID string) ([]model.Secret, error) {
	query := r.db.Model(&model.Secret{})
	if groupID != "" {
		query = query.Where("owning_group = ?", groupID)
	}
	if clusterID != "" {
		query = query.Where("cluster_id = ?", clusterID)
	}
	var secrets []model.Secret
	if err := query.Order("name").Find(&secrets).Error; err != nil {
		return nil, err
	}
	return secrets, nil
}

// Count Secret总数
func (r *SecretRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.Secret{}).Count(&n).Error
	return n, err
}
