package gateway

import (
	"errors"
	"time"

	"kaienv/internal/models"

	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrNoSession          = errors.New("no active session")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrProfileNotFound    = errors.New("profile not found")
)

// Bundle is an access/refresh token pair with its expiry. A bundle by
// itself authorizes nothing; the holder must re-derive the account
// through the gateway before acting on it.
type Bundle struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Metadata is the auth-provider-side user metadata.
type Metadata struct {
	Name      string
	AvatarURL string
}

// ProfileFields are the updatable profile columns; nil means untouched.
type ProfileFields struct {
	Name      *string
	Role      *string
	AvatarURL *string
	Disabled  *bool
}

// Gateway is the backend the session resolver and the API surface talk
// to. It is constructed and injected, never a package-level singleton,
// so tests can substitute a double.
type Gateway interface {
	SignUp(email, password string, meta Metadata) (*models.Account, error)
	SignInWithPassword(email, password string) (*Bundle, *models.Account, error)
	BeginFederatedSignIn(provider, redirectURL string) (string, error)
	SignOut() error
	CurrentSession() (*Bundle, *models.Account, error)
	SetSession(accessToken, refreshToken string) (*Bundle, *models.Account, error)
	SessionByToken(token string) (*models.Session, error)
	RevokeToken(token string) error

	GetProfile(id string) (*models.Profile, error)
	GetProfileByEmail(email string) (*models.Profile, error)
	UpsertProfile(id, email string, fields ProfileFields) (*models.Profile, error)
	ListProfiles() ([]models.Profile, error)
	DeleteProfile(id string) error
	UpdateAccountMeta(id string, meta Metadata) error

	// DB exposes the data plane for the domain operations layer.
	DB() *gorm.DB
}
