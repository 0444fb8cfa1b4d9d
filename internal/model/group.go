package model

import "time"

// NamespacePrefix 每个组在集群上的命名空间名称前缀。
// 组的命名空间名是组名的纯函数，在组的生命周期内不变。
const NamespacePrefix = "slate-group-"

// Group 租户组。组在其可访问的每个集群上对应一个由组名派生的命名空间（NamespacePrefix + 组名）。
type Group struct {
	ID           string `json:"id" gorm:"primaryKey;type:varchar(32)"`
	Name         string `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Email        string `json:"email" gorm:"type:varchar(100)"`
	Phone        string `json:"phone" gorm:"type:varchar(40)"`
	ScienceField string `json:"scienceField" gorm:"type:varchar(100)"`
	Description  string `json:"description" gorm:"type:text"`

	CreatedAt time.Time `json:"-" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"-" gorm:"autoUpdateTime"`
}

func (Group) TableName() string {
	return "groups"
}

// NamespaceName 组在集群上的命名空间名称
func (g *Group) NamespaceName() string {
	return NamespacePrefix + g.Name
}
