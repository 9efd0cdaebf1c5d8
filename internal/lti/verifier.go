// Package lti implements the tool side of the LTI 1.3 launch handshake:
// resolving trusted platforms and validating the signed launch token a
// platform posts back after the OIDC login initiation.
package lti

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/classpod/classpod/internal/config"
)

// ErrUnknownIssuer is returned when a launch names an issuer with no
// configured trust entry.
var ErrUnknownIssuer = errors.New("unknown platform issuer")

// ErrInvalidToken is returned when the launch token fails signature,
// audience, expiry or claim validation.
var ErrInvalidToken = errors.New("launch token validation failed")

// ErrNonceMismatch is returned when the token nonce does not match the one
// issued at login initiation.
var ErrNonceMismatch = errors.New("launch nonce does not match login nonce")

// ErrNonceReplayed is returned when a launch token's nonce has been
// accepted before.
var ErrNonceReplayed = errors.New("launch nonce already used")

// LTI 1.3 claim URIs.
const (
	claimMessageType   = "https://purl.imsglobal.org/spec/lti/claim/message_type"
	claimVersion       = "https://purl.imsglobal.org/spec/lti/claim/version"
	claimDeploymentID  = "https://purl.imsglobal.org/spec/lti/claim/deployment_id"
	claimTargetLinkURI = "https://purl.imsglobal.org/spec/lti/claim/target_link_uri"

	messageTypeResourceLink = "LtiResourceLinkRequest"
	ltiVersion              = "1.3.0"
)

// Launch holds the claims extracted from a verified launch token. It is
// request-scoped; the only durable effect of a launch is the user upsert.
type Launch struct {
	Issuer        string
	Subject       string
	Name          string
	DeploymentID  string
	TargetLinkURI string
}

// Verifier validates a raw launch token against the configured platform
// trust entries.
type Verifier interface {
	Verify(ctx context.Context, rawToken, expectedNonce string) (*Launch, error)
}

// JWKSVerifier validates launch tokens against each platform's published
// key set, fetched and cached via jwk.Cache.
type JWKSVerifier struct {
	platforms *config.File
	cache     *jwk.Cache
	nonces    *NonceStore
}

// NewJWKSVerifier creates a verifier for the configured platforms. The
// context bounds the lifetime of the key set cache's background refresh.
func NewJWKSVerifier(ctx context.Context, platforms *config.File) (*JWKSVerifier, error) {
	cache := jwk.NewCache(ctx)
	for _, p := range platforms.Platforms {
		if err := cache.Register(p.KeySetURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
			return nil, fmt.Errorf("registering key set %s: %w", p.KeySetURL, err)
		}
	}

	return &JWKSVerifier{
		platforms: platforms,
		cache:     cache,
		nonces:    NewNonceStore(time.Hour),
	}, nil
}

// Verify validates rawToken and returns its launch claims. The token's
// issuer selects the trust entry; signature, audience, expiry, message
// type, version, deployment id and nonce are all checked. No state other
// than the nonce store is touched.
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken, expectedNonce string) (*Launch, error) {
	// First pass without verification, only to learn which platform's key
	// set applies. Nothing from this parse is trusted.
	unverified, err := jwt.ParseString(rawToken, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable token: %s", ErrInvalidToken, err)
	}

	platform, ok := v.platforms.PlatformByIssuer(unverified.Issuer())
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIssuer, unverified.Issuer())
	}

	keySet, err := v.cache.Get(ctx, platform.KeySetURL)
	if err != nil {
		return nil, fmt.Errorf("fetching key set for %q: %w", platform.Issuer, err)
	}

	token, err := jwt.ParseString(rawToken,
		jwt.WithKeySet(keySet),
		jwt.WithIssuer(platform.Issuer),
		jwt.WithAudience(platform.ClientID),
		jwt.WithValidate(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	launch, err := extractClaims(token, platform)
	if err != nil {
		return nil, err
	}

	nonce, _ := stringClaim(token, "nonce")
	if nonce == "" || nonce != expectedNonce {
		return nil, ErrNonceMismatch
	}
	if !v.nonces.Use(nonce) {
		return nil, ErrNonceReplayed
	}

	return launch, nil
}

func extractClaims(token jwt.Token, platform config.Platform) (*Launch, error) {
	if mt, _ := stringClaim(token, claimMessageType); mt != messageTypeResourceLink {
		return nil, fmt.Errorf("%w: unsupported message type %q", ErrInvalidToken, mt)
	}
	if version, _ := stringClaim(token, claimVersion); version != ltiVersion {
		return nil, fmt.Errorf("%w: unsupported LTI version %q", ErrInvalidToken, version)
	}

	deploymentID, ok := stringClaim(token, claimDeploymentID)
	if !ok || deploymentID == "" {
		return nil, fmt.Errorf("%w: missing deployment id", ErrInvalidToken)
	}
	if len(platform.DeploymentIDs) > 0 && !contains(platform.DeploymentIDs, deploymentID) {
		return nil, fmt.Errorf("%w: deployment id %q not accepted for issuer %q",
			ErrInvalidToken, deploymentID, platform.Issuer)
	}

	if token.Subject() == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	name, _ := stringClaim(token, "name")
	targetLinkURI, _ := stringClaim(token, claimTargetLinkURI)

	return &Launch{
		Issuer:        token.Issuer(),
		Subject:       token.Subject(),
		Name:          name,
		DeploymentID:  deploymentID,
		TargetLinkURI: targetLinkURI,
	}, nil
}

func stringClaim(token jwt.Token, name string) (string, bool) {
	raw, ok := token.Get(name)
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
