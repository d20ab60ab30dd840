package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"kaienv/internal/config"
	"kaienv/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// GormGateway backs the Gateway contract with the relational store. It
// owns at most one in-memory "current" session, the one adopted by the
// embedded resolver; bearer-token lookups for the REST surface go
// through SessionByToken and do not touch it.
type GormGateway struct {
	db  *gorm.DB
	cfg *config.Config
	log *zap.Logger

	mu      sync.Mutex
	current *models.Session
}

func NewGormGateway(db *gorm.DB, cfg *config.Config, log *zap.Logger) *GormGateway {
	return &GormGateway{db: db, cfg: cfg, log: log}
}

func (g *GormGateway) DB() *gorm.DB { return g.db }

// HashPassword hashes a password using bcrypt
func (g *GormGateway) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), g.cfg.Security.BcryptCost)
	return string(bytes), err
}

// VerifyPassword verifies a password against a hash
func (g *GormGateway) VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// SignUp creates an account plus its profile row. Password signups are
// self-approved as plain users; role escalation is an admin operation.
func (g *GormGateway) SignUp(email, password string, meta Metadata) (*models.Account, error) {
	var existing models.Account
	if err := g.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrAccountExists
	}

	hashedPassword, err := g.HashPassword(password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hashedPassword,
		Provider:     "password",
		Name:         meta.Name,
		AvatarURL:    meta.AvatarURL,
	}

	// Account and profile land together or not at all. An account row
	// without a profile could never pass the approval gate and its email
	// would be burned for re-signup.
	err = g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		profile := &models.Profile{
			ID:        account.ID,
			Email:     account.Email,
			Name:      account.Name,
			Role:      "user",
			AvatarURL: account.AvatarURL,
		}
		return tx.Create(profile).Error
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// SignInWithPassword verifies credentials, issues a token bundle and
// adopts it as the current session.
func (g *GormGateway) SignInWithPassword(email, password string) (*Bundle, *models.Account, error) {
	var account models.Account
	if err := g.db.Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !g.VerifyPassword(account.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	bundle, session, err := g.issueBundle(&account)
	if err != nil {
		return nil, nil, err
	}

	g.mu.Lock()
	g.current = session
	g.mu.Unlock()

	return bundle, &account, nil
}

// BeginFederatedSignIn only builds the provider authorize URL. No state
// changes until the redirect comes back through SetSession.
func (g *GormGateway) BeginFederatedSignIn(provider, redirectURL string) (string, error) {
	if provider == "" {
		return "", fmt.Errorf("provider is required")
	}
	return fmt.Sprintf("%s/auth/v1/authorize?provider=%s&redirect_to=%s",
		g.cfg.Gateway.URL, url.QueryEscape(provider), url.QueryEscape(redirectURL)), nil
}

// SignOut invalidates the current session. Idempotent.
func (g *GormGateway) SignOut() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == nil {
		return nil
	}

	if err := g.db.Delete(&models.Session{}, g.current.ID).Error; err != nil {
		g.log.Warn("failed to delete session row on sign-out", zap.Error(err))
	}
	g.current = nil
	return nil
}

// CurrentSession returns the adopted session with a freshly loaded
// account, or ErrNoSession if none is held or it expired.
func (g *GormGateway) CurrentSession() (*Bundle, *models.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == nil {
		return nil, nil, ErrNoSession
	}

	if time.Now().After(g.current.ExpiresAt) {
		g.db.Delete(&models.Session{}, g.current.ID)
		g.current = nil
		return nil, nil, ErrNoSession
	}

	var account models.Account
	if err := g.db.First(&account, "id = ?", g.current.AccountID).Error; err != nil {
		g.current = nil
		return nil, nil, ErrNoSession
	}

	return &Bundle{
		AccessToken:  g.current.AccessToken,
		RefreshToken: g.current.RefreshToken,
		ExpiresAt:    g.current.ExpiresAt,
	}, &account, nil
}

// SetSession adopts an externally delivered token pair. The account is
// always re-derived from the verified token, never taken on trust from
// the caller.
func (g *GormGateway) SetSession(accessToken, refreshToken string) (*Bundle, *models.Account, error) {
	claims, err := g.parseToken(accessToken)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" || email == "" {
		return nil, nil, ErrInvalidToken
	}

	expiresAt := time.Now().Add(time.Hour)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	account, err := g.adoptAccount(sub, email, claims)
	if err != nil {
		return nil, nil, err
	}

	session := &models.Session{
		AccountID:    account.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	if err := g.db.Where("access_token = ?", accessToken).FirstOrCreate(session).Error; err != nil {
		return nil, nil, err
	}

	g.mu.Lock()
	g.current = session
	g.mu.Unlock()

	return &Bundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, account, nil
}

// adoptAccount resolves the token subject to an account, creating a
// federated account record on first sight.
func (g *GormGateway) adoptAccount(sub, email string, claims jwt.MapClaims) (*models.Account, error) {
	var account models.Account
	if err := g.db.First(&account, "id = ?", sub).Error; err == nil {
		return &account, nil
	}
	if err := g.db.Where("email = ?", email).First(&account).Error; err == nil {
		return &account, nil
	}

	name, _ := claims["name"].(string)
	avatar, _ := claims["avatar_url"].(string)
	account = models.Account{
		ID:        sub,
		Email:     email,
		Provider:  "federated",
		Name:      name,
		AvatarURL: avatar,
	}
	if err := g.db.Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// SessionByToken retrieves a live session by access token.
func (g *GormGateway) SessionByToken(token string) (*models.Session, error) {
	var session models.Session
	if err := g.db.Where("access_token = ? AND expires_at > ?", token, time.Now()).
		Preload("Account").First(&session).Error; err != nil {
		return nil, ErrInvalidToken
	}
	return &session, nil
}

// RevokeToken deletes the session holding the given token. Idempotent.
func (g *GormGateway) RevokeToken(token string) error {
	if err := g.db.Where("access_token = ?", token).Delete(&models.Session{}).Error; err != nil {
		return err
	}

	g.mu.Lock()
	if g.current != nil && g.current.AccessToken == token {
		g.current = nil
	}
	g.mu.Unlock()
	return nil
}

func (g *GormGateway) GetProfile(id string) (*models.Profile, error) {
	var profile models.Profile
	if err := g.db.First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (g *GormGateway) GetProfileByEmail(email string) (*models.Profile, error) {
	var profile models.Profile
	if err := g.db.Where("email = ?", email).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// UpsertProfile creates or updates the profile row for an account id.
func (g *GormGateway) UpsertProfile(id, email string, fields ProfileFields) (*models.Profile, error) {
	var profile models.Profile
	if err := g.db.First(&profile, "id = ?", id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		profile = models.Profile{ID: id, Email: email, Role: "user"}
	}

	if fields.Name != nil {
		profile.Name = *fields.Name
	}
	if fields.Role != nil {
		profile.Role = *fields.Role
	}
	if fields.AvatarURL != nil {
		profile.AvatarURL = *fields.AvatarURL
	}
	if fields.Disabled != nil {
		profile.Disabled = *fields.Disabled
	}

	if err := g.db.Save(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (g *GormGateway) ListProfiles() ([]models.Profile, error) {
	var profiles []models.Profile
	if err := g.db.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// DeleteProfile removes a profile row. When the hard delete is rejected
// the row is disabled instead so the account loses its approval.
func (g *GormGateway) DeleteProfile(id string) error {
	res := g.db.Delete(&models.Profile{}, "id = ?", id)
	if res.Error != nil {
		g.log.Warn("hard profile delete rejected, disabling instead",
			zap.String("id", id), zap.Error(res.Error))
		disabled := true
		_, err := g.UpsertProfile(id, "", ProfileFields{Disabled: &disabled})
		return err
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (g *GormGateway) UpdateAccountMeta(id string, meta Metadata) error {
	var account models.Account
	if err := g.db.First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoSession
		}
		return err
	}

	if meta.Name != "" {
		account.Name = meta.Name
	}
	if meta.AvatarURL != "" {
		account.AvatarURL = meta.AvatarURL
	}
	return g.db.Save(&account).Error
}

// CreateDefaultAdmin seeds the configured admin account when the
// database holds no accounts yet.
func (g *GormGateway) CreateDefaultAdmin() error {
	var count int64
	g.db.Model(&models.Account{}).Count(&count)
	if count > 0 {
		return nil
	}

	admin := g.cfg.Auth.DefaultAdmin
	if admin.Email == "" || admin.Password == "" {
		return nil
	}

	account, err := g.SignUp(admin.Email, admin.Password, Metadata{Name: admin.Name})
	if err != nil {
		return err
	}

	role := "admin"
	_, err = g.UpsertProfile(account.ID, account.Email, ProfileFields{Role: &role})
	return err
}

// PurgeExpiredSessions removes expired session rows.
func (g *GormGateway) PurgeExpiredSessions() error {
	return g.db.Where("expires_at < ?", time.Now()).Delete(&models.Session{}).Error
}

// issueBundle signs a fresh token pair for the account and persists the
// session row.
func (g *GormGateway) issueBundle(account *models.Account) (*Bundle, *models.Session, error) {
	expiresIn, err := time.ParseDuration(g.cfg.JWT.ExpiresIn)
	if err != nil {
		expiresIn = 24 * time.Hour
	}
	expiresAt := time.Now().Add(expiresIn)

	claims := jwt.MapClaims{
		"sub":      account.ID,
		"email":    account.Email,
		"provider": account.Provider,
		"exp":      expiresAt.Unix(),
		"iat":      time.Now().Unix(),
		"iss":      g.cfg.JWT.Issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(g.secret()))
	if err != nil {
		return nil, nil, err
	}

	session := &models.Session{
		AccountID:    account.ID,
		AccessToken:  accessToken,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    expiresAt,
	}
	if err := g.db.Create(session).Error; err != nil {
		return nil, nil, err
	}

	return &Bundle{
		AccessToken:  accessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    expiresAt,
	}, session, nil
}

func (g *GormGateway) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(g.secret()), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (g *GormGateway) secret() string {
	if g.cfg.JWT.Secret != "" {
		return g.cfg.JWT.Secret
	}
	return "kaienv-default-secret-change-in-production"
}
