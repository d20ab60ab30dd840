package session

import (
	"context"
	"encoding/json"

	"kaienv/internal/config"
	"kaienv/internal/credstore"
	"kaienv/internal/gateway"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity is the resolved user as the dashboard sees them. Origin
// records which sign-in path produced it (password, federated,
// fallback, cache).
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Origin    string `json:"origin"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Valid reports whether the identity carries the fields required to act
// on it.
func (i Identity) Valid() bool {
	return i.ID != "" && i.Email != "" && i.Role != ""
}

// Context wraps the resolver with the sign-in, sign-out and profile
// mutators. All methods return normally on failure; errors are recorded
// as the reason, never propagated as panics.
type Context struct {
	resolver *Resolver
	gw       gateway.Gateway
	store    credstore.Store
	cfg      *config.Config
	log      *zap.Logger
}

func NewContext(resolver *Resolver, gw gateway.Gateway, store credstore.Store, cfg *config.Config, log *zap.Logger) *Context {
	return &Context{resolver: resolver, gw: gw, store: store, cfg: cfg, log: log}
}

func (c *Context) Current() *Identity     { return c.resolver.Current() }
func (c *Context) State() (State, string) { return c.resolver.State() }

// IsAdmin reports whether the resolved identity holds the admin role.
func (c *Context) IsAdmin() bool {
	id := c.resolver.Current()
	return id != nil && id.Role == "admin"
}

// Login signs in through the named origin: "password" authenticates
// against the gateway, "federated" only initiates the provider redirect
// (the callback completes it), "fallback" checks the config-defined
// credential pairs when that path is enabled. Returns true only when an
// identity was resolved.
func (c *Context) Login(ctx context.Context, email, password, origin string) bool {
	switch origin {
	case "federated":
		return c.loginFederated(email)
	case "fallback":
		return c.loginFallback(email, password)
	default:
		return c.loginPassword(ctx, email, password)
	}
}

func (c *Context) loginPassword(ctx context.Context, email, password string) bool {
	bundle, account, err := c.gw.SignInWithPassword(email, password)
	if err != nil {
		c.log.Info("password sign-in rejected", zap.String("email", email), zap.Error(err))
		c.resolver.mu.Lock()
		c.resolver.becomeAnonymous("invalid_credentials")
		c.resolver.mu.Unlock()
		return false
	}

	if data, err := json.Marshal(bundle); err == nil {
		c.store.Put(tokenKey, string(data))
	}

	c.resolver.mu.Lock()
	c.resolver.adoptIdentity(account)
	c.resolver.mu.Unlock()
	return true
}

func (c *Context) loginFederated(provider string) bool {
	redirect, err := c.gw.BeginFederatedSignIn(provider, c.cfg.Gateway.URL+"/auth/callback")
	if err != nil {
		c.log.Warn("federated sign-in could not start", zap.Error(err))
		c.resolver.mu.Lock()
		c.resolver.reason = "unavailable"
		c.resolver.mu.Unlock()
		return false
	}

	c.store.Put("session.redirect", redirect)
	c.resolver.mu.Lock()
	c.resolver.reason = "redirect"
	c.resolver.mu.Unlock()
	return false
}

func (c *Context) loginFallback(email, password string) bool {
	if !c.cfg.Auth.FallbackEnabled {
		c.resolver.mu.Lock()
		c.resolver.becomeAnonymous("invalid_credentials")
		c.resolver.mu.Unlock()
		return false
	}

	role := ""
	name := ""
	switch {
	case matches(c.cfg.Auth.FallbackAdmin, email, password):
		role, name = "admin", c.cfg.Auth.FallbackAdmin.Name
	case matches(c.cfg.Auth.FallbackUser, email, password):
		role, name = "user", c.cfg.Auth.FallbackUser.Name
	default:
		c.resolver.mu.Lock()
		c.resolver.becomeAnonymous("invalid_credentials")
		c.resolver.mu.Unlock()
		return false
	}

	id := Identity{
		ID:     "fallback-" + uuid.NewString(),
		Email:  email,
		Name:   name,
		Role:   role,
		Origin: "fallback",
	}

	c.resolver.mu.Lock()
	c.resolver.identity = &id
	c.resolver.state = StateResolved
	c.resolver.reason = ""
	c.resolver.mu.Unlock()

	if data, err := json.Marshal(id); err == nil {
		c.store.Put(identityKey, string(data))
	}
	c.log.Info("fallback sign-in accepted", zap.String("email", email), zap.String("role", role))
	return true
}

func matches(cred config.CredentialConfig, email, password string) bool {
	return cred.Email != "" && cred.Email == email && cred.Password == password
}

// HandleCallback forwards a provider redirect fragment to the resolver.
func (c *Context) HandleCallback(ctx context.Context, fragment string) {
	c.resolver.HandleCallback(ctx, fragment)
}

// RedirectURL returns and consumes the pending federated redirect.
func (c *Context) RedirectURL() string {
	redirect, ok := c.store.Get("session.redirect")
	if !ok {
		return ""
	}
	c.store.Remove("session.redirect")
	return redirect
}

// Logout ends the session everywhere: gateway, cache, memory.
// Idempotent; a second call is a no-op that still succeeds.
func (c *Context) Logout(ctx context.Context) {
	if err := c.gw.SignOut(); err != nil {
		c.log.Warn("gateway sign-out failed", zap.Error(err))
	}

	c.resolver.mu.Lock()
	c.resolver.becomeAnonymous("")
	c.resolver.mu.Unlock()
}

// UpdateProfile renames the signed-in user and optionally changes their
// role. Both the profile row and the account metadata are written; the
// in-memory identity only changes after both succeed.
func (c *Context) UpdateProfile(ctx context.Context, name, role string) error {
	id := c.resolver.Current()
	if id == nil {
		return gateway.ErrNoSession
	}

	fields := gateway.ProfileFields{}
	if name != "" {
		fields.Name = &name
	}
	if role != "" {
		fields.Role = &role
	}

	if _, err := c.gw.UpsertProfile(id.ID, id.Email, fields); err != nil {
		return err
	}
	if err := c.gw.UpdateAccountMeta(id.ID, gateway.Metadata{Name: name}); err != nil {
		return err
	}

	c.resolver.mu.Lock()
	if c.resolver.identity != nil && c.resolver.identity.ID == id.ID {
		if name != "" {
			c.resolver.identity.Name = name
		}
		if role != "" {
			c.resolver.identity.Role = role
		}
		if data, err := json.Marshal(*c.resolver.identity); err == nil {
			c.store.Put(identityKey, string(data))
		}
	}
	c.resolver.mu.Unlock()
	return nil
}
