package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// RoleAdmin may create, edit and delete posts.
const RoleAdmin = "Admin"

// User represents a blog account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"size:64;not null" json:"username"`
	Email        string         `gorm:"size:255;index" json:"-"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Provider     string         `gorm:"size:32" json:"-"`
	ProviderID   string         `gorm:"size:255" json:"-"`
	AvatarURL    string         `gorm:"size:512" json:"avatar_url,omitempty"`
	Roles        []Role         `gorm:"many2many:user_roles;" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Role is a named permission set granted through user_roles.
type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:64;uniqueIndex;not null" json:"name"`
}

// RoleNames lists the names of the loaded roles.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// BeforeCreate normalizes the email and ensures timestamps are set.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
