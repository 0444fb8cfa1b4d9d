package model

import "time"

// User 平台用户
type User struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(32)"`
	Name        string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Email       string    `json:"email" gorm:"type:varchar(100)"`
	Phone       string    `json:"phone" gorm:"type:varchar(40)"`
	Institution string    `json:"institution" gorm:"type:varchar(200)"`
	// Token API访问令牌（不透明字符串），不在JSON中暴露
	Token    string `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	GlobusID string `json:"globusID,omitempty" gorm:"type:varchar(100);index"`
	Admin    bool   `json:"admin" gorm:"type:boolean;default:false"`
	Valid    bool   `json:"-" gorm:"type:boolean;default:true"`

	CreatedAt time.Time `json:"-" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"-" gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// GroupMember 用户-组成员关系（多对多）
type GroupMember struct {
	ID      uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID  string `json:"userId" gorm:"type:varchar(32);not null;index;uniqueIndex:idx_member"`
	GroupID string `json:"groupId" gorm:"type:varchar(32);not null;index;uniqueIndex:idx_member"`

	CreatedAt time.Time `json:"-" gorm:"autoCreateTime"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
