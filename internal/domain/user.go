package domain

import "time"

// User represents a platform account. Created on first login, looked up by
// id or email.
type User struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for User
func (User) TableName() string {
	return "users"
}

// CreateUserRequest represents the first-login upsert payload.
type CreateUserRequest struct {
	Email string `json:"email" validate:"required"`
	Name  string `json:"name,omitempty"`
}
