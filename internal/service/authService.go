package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid token")

const adminRole = "admin"

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret" json:"-"`
	TokenExpiry time.Duration `mapstructure:"token_expiry" json:"token_expiry"`
	Issuer      string        `mapstructure:"issuer" json:"issuer"`
}

// AdminClaims are carried by admin API bearer tokens.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService mints and validates HS256 admin tokens. There is no user
// store; whoever holds the secret can mint tokens.
type AuthService struct {
	jwtSecret []byte
	jwtExpiry time.Duration
	issuer    string
	now       func() time.Time
}

func NewAuthService(cfg AuthConfig) (*AuthService, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = 24 * time.Hour
	}

	return &AuthService{
		jwtSecret: []byte(cfg.JWTSecret),
		jwtExpiry: cfg.TokenExpiry,
		issuer:    cfg.Issuer,
		now:       time.Now,
	}, nil
}

// Issues a signed admin token for subject
func (s *AuthService) IssueToken(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}

	now := s.now()
	expiresAt := now.Add(s.jwtExpiry)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, errors.WithMessage(err, "sign token")
	}

	return signed, expiresAt, nil
}

// Validates a token and returns its claims
func (s *AuthService) ValidateToken(tokenString string) (*AdminClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, errors.WithMessage(ErrInvalidToken, err.Error())
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != adminRole {
		return nil, errors.WithMessage(ErrInvalidToken, "not an admin token")
	}

	return claims, nil
}
