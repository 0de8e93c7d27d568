package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// refreshTokenEntropy is the raw byte length of refresh tokens before
// base64 encoding.
const refreshTokenEntropy = 64

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	store      CredentialStore
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(store CredentialStore, opts Config) *TokenServiceImpl {
	return &TokenServiceImpl{
		store:      store,
		signingKey: []byte(opts.GetSigningKey()),
		accessTTL:  opts.GetAccessTokenTTL(),
		refreshTTL: opts.GetRefreshTokenTTL(),
		issuer:     opts.GetIssuer(),
		audience:   jwt.ClaimStrings(opts.GetAudience()),
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (ts *TokenServiceImpl) WithLogger(logger Logger) *TokenServiceImpl {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithClock injects a custom clock (useful for tests).
func (ts *TokenServiceImpl) WithClock(clock func() time.Time) *TokenServiceImpl {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// Issue builds a signed access token for the account plus a fresh refresh
// token, overwriting the account's refresh slot. Any previously issued
// refresh token stops being valid at this point.
func (ts *TokenServiceImpl) Issue(ctx context.Context, account *Account) (*TokenPair, error) {
	return ts.issue(ctx, account, nil)
}

// issue mints both tokens. A nil rotateFrom overwrites the refresh slot
// unconditionally; otherwise the write is a compare-and-swap against the
// hash read during validation, so a concurrent rotation loses exactly once.
func (ts *TokenServiceImpl) issue(ctx context.Context, account *Account, rotateFrom *string) (*TokenPair, error) {
	if account == nil {
		return nil, errors.New("account must not be nil", errors.CategoryInternal)
	}

	roles, err := ts.store.GetRoles(ctx, account.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account roles")
	}

	now := ts.now()
	claims := ts.newAccessClaims(account, roles, now)

	accessToken, err := ts.SignClaims(claims)
	if err != nil {
		return nil, err
	}

	refreshToken, err := GenerateRefreshToken()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate refresh token")
	}

	next := RefreshCredential{
		Hash:      HashOpaqueToken(refreshToken),
		ExpiresAt: now.Add(ts.refreshTTL),
	}

	if rotateFrom == nil {
		err = ts.store.SetRefreshToken(ctx, account.ID, next)
	} else {
		err = ts.store.SwapRefreshToken(ctx, account.ID, *rotateFrom, next)
	}

	if err != nil {
		if errors.Is(err, ErrRefreshTokenInvalid) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist refresh token")
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  claims.Expires(),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

// Renew exchanges a still-matching refresh token for a fresh pair. The
// access token only needs a valid signature, issuer, and audience: an
// expired access token is the expected renewal input.
func (ts *TokenServiceImpl) Renew(ctx context.Context, pair TokenPair) (*TokenPair, error) {
	claims, err := ts.decodeForRenewal(pair.AccessToken)
	if err != nil {
		return nil, err
	}

	account, err := ts.store.FindByUsername(ctx, claims.AccountUsername())
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account for renewal")
	}

	storedHash, storedExpiry := account.RefreshTokenHash, account.RefreshTokenExpiresAt
	if storedHash == nil || storedExpiry == nil {
		return nil, ErrRefreshTokenInvalid
	}

	supplied := HashOpaqueToken(pair.RefreshToken)
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(*storedHash)) != 1 {
		return nil, ErrRefreshTokenInvalid
	}

	if !ts.now().Before(*storedExpiry) {
		return nil, ErrRefreshTokenInvalid
	}

	return ts.issue(ctx, account, storedHash)
}

// SignClaims signs access claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *AccessClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign access token")
	}

	return signedString, nil
}

// Validate parses and fully validates an access token, expiry included.
func (ts *TokenServiceImpl) Validate(tokenString string) (*AccessClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, ts.keyFunc, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*AccessClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

// decodeForRenewal verifies signature, issuer, and audience but skips the
// expiry check.
func (ts *TokenServiceImpl) decodeForRenewal(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&AccessClaims{},
		ts.keyFunc,
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	if ts.issuer != "" && claims.Issuer != ts.issuer {
		return nil, ErrTokenMalformed
	}

	if len(ts.audience) > 0 && !audienceMatches(claims.Audience, ts.audience) {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func (ts *TokenServiceImpl) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		ts.logger.Error("TokenService encountered unexpected signing method: %v", t.Header["alg"])
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return ts.signingKey, nil
}

func (ts *TokenServiceImpl) newAccessClaims(account *Account, roles []string, now time.Time) *AccessClaims {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   account.Username,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
		Username: account.Username,
		Roles:    append([]string(nil), roles...),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

func audienceMatches(got jwt.ClaimStrings, want jwt.ClaimStrings) bool {
	for _, w := range want {
		for _, g := range got {
			if g == w {
				return true
			}
		}
	}
	return false
}

// GenerateRefreshToken produces an opaque refresh token with 64 bytes of
// entropy, base64 encoded.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// HashOpaqueToken is the storage form of refresh and confirmation tokens.
// Only hashes are persisted; the raw value stays with the client.
func HashOpaqueToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
