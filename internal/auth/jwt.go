package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrMissingToken = errors.New("missing token")

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret: secret,
		Expiry: 7 * 24 * time.Hour,
		Issuer: "chatrelay",
	}
}

func CreateToken(username string, cfg TokenConfig) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("missing secret")
	}
	if username == "" {
		return "", errors.New("missing username")
	}
	if cfg.Expiry <= 0 {
		return "", errors.New("invalid expiry")
	}

	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
			ID:        uuid.NewString(),
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

func VerifyToken(tokenString string, cfg TokenConfig) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("missing secret")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Username == "" {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}

// RequestResolver reads the token from the "token" query parameter or, failing
// that, the "token" cookie.
type RequestResolver struct {
	cfg TokenConfig
}

func NewRequestResolver(cfg TokenConfig) *RequestResolver {
	return &RequestResolver{cfg: cfg}
}

func (rr *RequestResolver) Resolve(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if c, err := r.Cookie("token"); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return "", ErrMissingToken
	}

	claims, err := VerifyToken(token, rr.cfg)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}
