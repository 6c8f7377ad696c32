package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/encorelab/encore-api/shared"
)

// AdminAuthService issues and validates the signed, time-limited admin token.
// The token is a stateless HS256 JWT carried in an httpOnly cookie; there is
// no server-side session store.
type AdminAuthService struct {
	context.DefaultService

	TokenDuration time.Duration

	jwtSecret     string
	password      string
	passwordHash  string
	secureCookies bool
}

const ADMIN_AUTH_SVC = "admin_auth_svc"

func (svc AdminAuthService) Id() string {
	return ADMIN_AUTH_SVC
}

func (svc *AdminAuthService) Configure(ctx *context.Context) error {
	svc.TokenDuration = 24 * time.Hour
	svc.jwtSecret = os.Getenv("ADMIN_JWT_SECRET")
	svc.password = os.Getenv("ADMIN_PASSWORD")
	svc.passwordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	svc.secureCookies = os.Getenv("APP_ENV") == "production"

	if svc.jwtSecret == "" {
		return errors.New("ADMIN_JWT_SECRET is not set")
	}
	if svc.password == "" && svc.passwordHash == "" {
		return errors.New("neither ADMIN_PASSWORD nor ADMIN_PASSWORD_HASH is set")
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *AdminAuthService) Start() error {
	return nil
}

// Login verifies the password and returns a fresh token. Prefers the bcrypt
// hash when configured; the plaintext comparison is constant-time.
func (svc *AdminAuthService) Login(password string) (string, error) {
	if password == "" {
		return "", shared.NewUnauthorizedError(nil, "Incorrect password")
	}

	if svc.passwordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(svc.passwordHash), []byte(password)); err != nil {
			return "", shared.NewUnauthorizedError(nil, "Incorrect password")
		}
	} else if subtle.ConstantTimeCompare([]byte(password), []byte(svc.password)) != 1 {
		return "", shared.NewUnauthorizedError(nil, "Incorrect password")
	}

	token, err := svc.IssueToken()
	if err != nil {
		return "", shared.NewInternalError(err, "Failed to issue admin token")
	}

	return token, nil
}

func (svc *AdminAuthService) IssueToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(svc.TokenDuration)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    "encore-api",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(svc.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}

	return tokenString, nil
}

// VerifyToken reports whether the token is well-formed, carries a valid
// signature and has not expired. Signature comparison inside the library is
// constant-time.
func (svc *AdminAuthService) VerifyToken(tokenString string) bool {
	if tokenString == "" {
		return false
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, svc.getJWTKey,
		jwt.WithExpirationRequired())
	if err != nil {
		return false
	}

	return token.Valid
}

func (svc *AdminAuthService) getJWTKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	return []byte(svc.jwtSecret), nil
}

// IsAdminRequest checks the admin cookie on the request.
func (svc *AdminAuthService) IsAdminRequest(c *fiber.Ctx) bool {
	return svc.VerifyToken(c.Cookies(shared.AdminCookieName))
}

// AdminCookie wraps a token for transport.
func (svc *AdminAuthService) AdminCookie(token string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     shared.AdminCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(svc.TokenDuration.Seconds()),
		HTTPOnly: true,
		Secure:   svc.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

func (svc *AdminAuthService) ClearAdminCookie() *fiber.Cookie {
	return &fiber.Cookie{
		Name:     shared.AdminCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   svc.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

// RequireAdmin gates privileged routes.
func (svc *AdminAuthService) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !svc.IsAdminRequest(c) {
			return shared.NewUnauthorizedError(nil, "Unauthorized")
		}
		return c.Next()
	}
}
