package githubauth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/durolink/durolink/internal/cache"
	"github.com/durolink/durolink/internal/github"
	"github.com/durolink/durolink/pkg/logger"
	"github.com/durolink/durolink/pkg/metrics"
)

// GitHub app JWTs are valid for ten minutes. Both caches use a nine
// minute TTL: the JWT cache so a near-expiry token is never served, the
// installation token cache as a conservative re-mint cadence well under
// the roughly one hour upstream validity.
const (
	appJWTValidity = 10 * time.Minute
	cacheTTL       = 9 * time.Minute
)

const (
	appJWTKeyPrefix            = "github:appjwt:"
	installationTokenKeyPrefix = "github:insttoken:"
)

// AppConfig identifies the GitHub App. Immutable process-wide settings.
type AppConfig struct {
	AppID          int64
	PrivateKeyPath string
}

// Authority signs and caches the app-level JWT and mints per-tenant
// installation tokens through the REST gateway.
type Authority struct {
	cfg     AppConfig
	cache   cache.Store
	gateway *github.Gateway
	log     *zap.Logger
	now     func() time.Time
}

// NewAuthority constructs an Authority. The private key file is not
// touched here; it is read lazily when the first JWT is signed.
func NewAuthority(cfg AppConfig, store cache.Store, gateway *github.Gateway) (*Authority, error) {
	if cfg.AppID <= 0 {
		return nil, errors.New("githubauth: app id is required")
	}
	if cfg.PrivateKeyPath == "" {
		return nil, errors.New("githubauth: private key path is required")
	}
	if store == nil {
		return nil, errors.New("githubauth: cache store is required")
	}
	if gateway == nil {
		return nil, errors.New("githubauth: gateway is required")
	}

	return &Authority{
		cfg:     cfg,
		cache:   store,
		gateway: gateway,
		log:     logger.WithModule("githubauth"),
		now:     time.Now,
	}, nil
}

// WithClock overrides the time source; used by tests.
func (a *Authority) WithClock(clock func() time.Time) *Authority {
	if clock != nil {
		a.now = clock
	}
	return a
}

// AppJWT returns the cached app token when present, otherwise reads the
// private key, signs a fresh RS256 JWT and caches it. Expiry is decided
// by the cache TTL alone, never by inspecting the token's exp claim.
func (a *Authority) AppJWT(ctx context.Context) (github.AppJWT, error) {
	key := appJWTKeyPrefix + strconv.FormatInt(a.cfg.AppID, 10)

	if cached, found, err := a.cache.Get(ctx, key); err == nil && found {
		return github.AppJWT(cached), nil
	}

	signed, err := a.signAppJWT()
	if err != nil {
		return "", err
	}

	if err := a.cache.Set(ctx, key, []byte(signed), cacheTTL); err != nil {
		return "", fmt.Errorf("githubauth: cache app jwt: %w", err)
	}

	return github.AppJWT(signed), nil
}

func (a *Authority) signAppJWT() (string, error) {
	pem, err := os.ReadFile(a.cfg.PrivateKeyPath)
	if err != nil {
		return "", fmt.Errorf("githubauth: read private key: %w", err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return "", fmt.Errorf("githubauth: parse private key: %w", err)
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(a.cfg.AppID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTValidity)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if err != nil {
		return "", fmt.Errorf("githubauth: sign app jwt: %w", err)
	}

	return signed, nil
}

// InstallationToken returns a tenant-scoped token. forceNew mints
// unconditionally and overwrites any cached value; a forced refresh is
// required before permission-sensitive calls because a cached token can
// reflect a since-revoked access grant. Otherwise the cached token is
// returned when present and minted lazily on a miss.
//
// Concurrent callers racing on a miss may both mint; upstream tolerates
// redundant minting, so this is deliberately not deduplicated.
func (a *Authority) InstallationToken(ctx context.Context, installationID int64, forceNew bool) (github.InstallationToken, error) {
	key := installationTokenKeyPrefix + strconv.FormatInt(installationID, 10)

	if !forceNew {
		if cached, found, err := a.cache.Get(ctx, key); err == nil && found {
			return github.InstallationToken(cached), nil
		}
	}

	appJWT, err := a.AppJWT(ctx)
	if err != nil {
		return "", err
	}

	minted, err := a.gateway.MintInstallationToken(ctx, appJWT, installationID)
	if err != nil {
		return "", err
	}

	trigger := "miss"
	if forceNew {
		trigger = "forced"
	}
	metrics.TokenMints.WithLabelValues(trigger).Inc()
	a.log.Debug("minted installation token",
		zap.Int64("installation_id", installationID),
		zap.Bool("forced", forceNew),
	)

	if err := a.cache.Set(ctx, key, []byte(minted), cacheTTL); err != nil {
		return "", fmt.Errorf("githubauth: cache installation token: %w", err)
	}

	return minted, nil
}
