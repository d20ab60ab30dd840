package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"kaienv/internal/config"
	"kaienv/internal/credstore"
	"kaienv/internal/gateway"
	"kaienv/internal/models"

	"go.uber.org/zap"
)

var errNoAccessToken = errors.New("fragment carries no access token")

// State is the resolver's lifecycle position. Resolving is re-entered
// on every tick; Resolved and Anonymous are the only rest states.
type State string

const (
	StateUnresolved State = "unresolved"
	StateResolving  State = "resolving"
	StateResolved   State = "resolved"
	StateAnonymous  State = "anonymous"
)

// Credential cache keys. The token key holds the persisted bundle, the
// identity key the last derived identity.
const (
	tokenKey    = "session.token"
	identityKey = "identity"
)

// Resolver drives the session state machine for the embedded
// single-operator runtime. It answers "who is signed in right now" by
// consulting, in order, a pending callback fragment, the gateway's
// current session, and the cached identity.
type Resolver struct {
	gw    gateway.Gateway
	store credstore.Store
	cfg   *config.Config
	log   *zap.Logger

	mu              sync.Mutex
	state           State
	identity        *Identity
	reason          string
	pendingFragment string
	adoptedCache    bool
}

func NewResolver(gw gateway.Gateway, store credstore.Store, cfg *config.Config, log *zap.Logger) *Resolver {
	return &Resolver{
		gw:    gw,
		store: store,
		cfg:   cfg,
		log:   log,
		state: StateUnresolved,
	}
}

// State returns the current state and, for Anonymous, the reason.
func (r *Resolver) State() (State, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.reason
}

// Current returns the resolved identity, or nil.
func (r *Resolver) Current() *Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.identity == nil {
		return nil
	}
	id := *r.identity
	return &id
}

// HandleCallback queues a provider redirect fragment for the next
// resolution pass and runs that pass immediately.
func (r *Resolver) HandleCallback(ctx context.Context, fragment string) {
	r.mu.Lock()
	r.pendingFragment = fragment
	r.mu.Unlock()
	r.Resolve(ctx)
}

// Resolve runs one pass of the resolution algorithm. It is safe to call
// concurrently; passes serialize on the resolver lock.
func (r *Resolver) Resolve(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = StateResolving

	// A queued callback fragment is consumed exactly once, valid or not.
	if frag := r.pendingFragment; frag != "" {
		r.pendingFragment = ""
		if r.resolveFragment(frag) {
			return
		}
	}

	if r.resolveBackendSession() {
		return
	}

	// A fallback identity has no backend session by construction, so
	// the absence of one never invalidates it.
	if r.identity != nil && r.identity.Origin == "fallback" {
		r.state = StateResolved
		return
	}

	// Cached identity is adopted once, optimistically. The follow-up
	// pass lands here again; with no backend session to confirm it, the
	// cache is cleared and the state settles on Anonymous.
	if !r.adoptedCache {
		if id := r.cachedIdentity(); id != nil {
			r.adoptedCache = true
			r.identity = id
			r.state = StateResolved
			r.reason = ""
			r.log.Debug("adopted cached identity pending confirmation",
				zap.String("email", id.Email))
			return
		}
	}

	r.becomeAnonymous("")
}

// Run re-resolves on the configured interval until the context ends.
func (r *Resolver) Run(ctx context.Context) {
	interval, err := time.ParseDuration(r.cfg.Session.RefreshInterval)
	if err != nil || interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.Resolve(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Resolve(ctx)
		}
	}
}

// resolveFragment adopts the tokens carried in a callback fragment.
// Callers hold the lock.
func (r *Resolver) resolveFragment(fragment string) bool {
	bundle, err := ParseFragment(fragment)
	if err != nil {
		r.log.Warn("discarding malformed callback fragment", zap.Error(err))
		return false
	}

	if data, err := json.Marshal(bundle); err == nil {
		r.store.Put(tokenKey, string(data))
	}

	_, account, err := r.gw.SetSession(bundle.AccessToken, bundle.RefreshToken)
	if err != nil {
		r.log.Warn("callback tokens rejected", zap.Error(err))
		return false
	}

	// Pre-approval gate: a federated sign-in only completes when a
	// profile row already exists for the email. A disabled profile is
	// a revoked approval and counts as absent.
	if profile, err := r.gw.GetProfileByEmail(account.Email); err != nil || profile.Disabled {
		r.log.Info("federated sign-in without prior approval",
			zap.String("email", account.Email))
		if err := r.gw.SignOut(); err != nil {
			r.log.Warn("sign-out after rejected callback failed", zap.Error(err))
		}
		r.becomeAnonymous("unauthorized")
		return true
	}

	r.adoptIdentity(account)
	return true
}

// resolveBackendSession adopts the gateway's current session if one is
// live. Callers hold the lock.
func (r *Resolver) resolveBackendSession() bool {
	_, account, err := r.gw.CurrentSession()
	if err != nil {
		return false
	}
	r.adoptIdentity(account)
	return true
}

// adoptIdentity derives and installs the identity for an account.
// Profile fields win for name and role; id and email always come from
// the auth source. Callers hold the lock.
func (r *Resolver) adoptIdentity(account *models.Account) {
	id := Identity{
		ID:        account.ID,
		Email:     account.Email,
		Name:      account.Name,
		Role:      "user",
		Origin:    account.Provider,
		AvatarURL: account.AvatarURL,
	}

	profile, err := r.gw.GetProfile(account.ID)
	if err != nil {
		r.log.Warn("profile lookup failed, degrading to user role",
			zap.String("id", account.ID), zap.Error(err))
	} else if profile.Disabled {
		r.log.Warn("profile disabled, not adopting its fields",
			zap.String("id", account.ID))
	} else {
		if profile.Name != "" {
			id.Name = profile.Name
		}
		if profile.Role != "" {
			id.Role = profile.Role
		}
		if profile.AvatarURL != "" {
			id.AvatarURL = profile.AvatarURL
		}
	}

	r.identity = &id
	r.state = StateResolved
	r.reason = ""
	r.adoptedCache = false

	if data, err := json.Marshal(id); err == nil {
		r.store.Put(identityKey, string(data))
	}
}

// cachedIdentity loads a structurally valid identity from the cache.
// Callers hold the lock.
func (r *Resolver) cachedIdentity() *Identity {
	raw, ok := r.store.Get(identityKey)
	if !ok {
		return nil
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil || !id.Valid() {
		r.store.Remove(identityKey)
		return nil
	}
	return &id
}

// becomeAnonymous clears the identity and the cache. Callers hold the
// lock.
func (r *Resolver) becomeAnonymous(reason string) {
	r.identity = nil
	r.state = StateAnonymous
	r.reason = reason
	r.adoptedCache = false
	r.store.Remove(identityKey)
	r.store.Remove(tokenKey)
}

// ParseFragment extracts a token bundle from a callback URL fragment of
// the form "#access_token=...&refresh_token=...&expires_at=...". The
// leading '#' is optional. expires_at is unix seconds; when absent the
// bundle gets a one-hour expiry.
func ParseFragment(fragment string) (*gateway.Bundle, error) {
	fragment = strings.TrimPrefix(fragment, "#")
	values, err := url.ParseQuery(fragment)
	if err != nil {
		return nil, err
	}

	access := values.Get("access_token")
	if access == "" {
		return nil, errNoAccessToken
	}

	expiresAt := time.Now().Add(time.Hour)
	if raw := values.Get("expires_at"); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			expiresAt = time.Unix(secs, 0)
		}
	}

	return &gateway.Bundle{
		AccessToken:  access,
		RefreshToken: values.Get("refresh_token"),
		ExpiresAt:    expiresAt,
	}, nil
}

// StripFragment removes the fragment from a URL, for the post-callback
// address rewrite.
func StripFragment(rawURL string) string {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
