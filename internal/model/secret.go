package model

import (
	"time"

	"gorm.io/datatypes"
)

// Secret 不透明键值包，在 {Group, Cluster} 的租户命名空间内物化为
// Kubernetes Secret。Contents 的值为base64编码的字节。
type Secret struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(32)"`
	Name        string `json:"name" gorm:"type:varchar(200);not null;index;uniqueIndex:idx_secret_name"`
	OwningGroup string `json:"group" gorm:"type:varchar(32);not null;index;uniqueIndex:idx_secret_name"`
	ClusterID   string `json:"cluster" gorm:"column:cluster_id;type:varchar(32);not null;index;uniqueIndex:idx_secret_name"`
	// Contents 键 → base64值，不在列表JSON中暴露
	Contents datatypes.JSON `json:"-" gorm:"type:json"`

	CreatedAt time.Time `json:"created" gorm:"autoCreateTime"`
}

func (Secret) TableName() string {
	return "secrets"
}
