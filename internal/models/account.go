package models

import (
	"time"
)

// Account is the auth-provider side of a user: credentials plus the
// metadata the provider supplies at sign-in.
type Account struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255)"`
	Provider     string    `json:"provider" gorm:"type:varchar(20);default:'password'"` // password, federated, fallback
	Name         string    `json:"name" gorm:"type:varchar(255)"`
	AvatarURL    string    `json:"avatar_url" gorm:"type:varchar(500)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile carries the role and display fields the dashboard owns. Its ID
// is the account ID. A profile row is also the pre-approval record:
// federated sign-in only completes for emails that already have one.
type Profile struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Role      string    `json:"role" gorm:"type:varchar(50);default:'user'"` // admin, user
	AvatarURL string    `json:"avatar_url" gorm:"type:varchar(500)"`
	Disabled  bool      `json:"disabled" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is a persisted token bundle. A session row without a resolvable
// account authorizes nothing; lookups always join back to the account.
type Session struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	AccountID    string    `json:"account_id" gorm:"type:varchar(36);not null;index"`
	AccessToken  string    `json:"access_token" gorm:"type:varchar(500);uniqueIndex;not null"`
	RefreshToken string    `json:"refresh_token" gorm:"type:varchar(500)"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt    time.Time `json:"created_at"`
	Account      Account   `json:"account,omitempty" gorm:"foreignKey:AccountID"`
}

type AuditLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	AccountID  string    `json:"account_id" gorm:"type:varchar(36);index"`
	Action     string    `json:"action" gorm:"type:varchar(50);not null"` // login, logout, create, update, delete, move
	Resource   string    `json:"resource" gorm:"type:varchar(100)"`       // vm, service, group, profile
	ResourceID string    `json:"resource_id" gorm:"type:varchar(255)"`
	Details    string    `json:"details" gorm:"type:text"`
	IPAddress  string    `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent  string    `json:"user_agent" gorm:"type:varchar(500)"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}
