package models

import "time"

// UserStatus 账号状态
type UserStatus int

const (
	UserStatusDisabled UserStatus = 0
	UserStatusEnabled  UserStatus = 1
)

// TimeLayout 对外展示的时间格式
const TimeLayout = "2006-01-02 15:04:05"

// User 用户，对应 users 表
type User struct {
	ID           string     `gorm:"type:varchar(32);primaryKey"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string     `gorm:"type:varchar(100);not null"`
	Nickname     string     `gorm:"type:varchar(50)"`
	AvatarURL    string     `gorm:"type:varchar(512)"`
	Status       UserStatus `gorm:"type:smallint;not null;default:1"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

// Enabled 账号是否可用
func (u *User) Enabled() bool {
	return u.Status == UserStatusEnabled
}

// UserDTO 返回给客户端的用户信息（不含敏感字段），也是会话中保存的快照
type UserDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ToDTO 转换为 UserDTO
func (u *User) ToDTO() *UserDTO {
	dto := &UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		Nickname:  u.Nickname,
		AvatarURL: u.AvatarURL,
	}
	if !u.CreatedAt.IsZero() {
		dto.CreatedAt = u.CreatedAt.Format(TimeLayout)
	}
	return dto
}
