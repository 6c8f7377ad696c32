package services

import (
	"net"
	"os"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/encorelab/encore-api/shared"
)

// ClientIdentityService is the single source of "who is this client" for the
// rate limiters. It prefers a long-lived opaque cookie, minted on first
// contact, and falls back to the forwarded network address for clients that
// don't carry cookies.
type ClientIdentityService struct {
	context.DefaultService

	secureCookies bool
}

const CLIENT_IDENTITY_SVC = "client_identity_svc"

const clientIDMaxAge = 365 * 24 * time.Hour

func (svc ClientIdentityService) Id() string {
	return CLIENT_IDENTITY_SVC
}

func (svc *ClientIdentityService) Configure(ctx *context.Context) error {
	svc.secureCookies = os.Getenv("APP_ENV") == "production"
	return svc.DefaultService.Configure(ctx)
}

func (svc *ClientIdentityService) Start() error {
	return nil
}

// ClientKey returns a stable rate-limit key for the request, minting the
// identifier cookie when the client doesn't have one yet. The prefix keeps
// cookie-derived and address-derived keys from colliding.
func (svc *ClientIdentityService) ClientKey(c *fiber.Ctx) string {
	if cid := c.Cookies(shared.ClientIDCookieName); cid != "" {
		return "cid:" + cid
	}

	cid := uuid.New().String()
	c.Cookie(&fiber.Cookie{
		Name:     shared.ClientIDCookieName,
		Value:    cid,
		Path:     "/",
		MaxAge:   int(clientIDMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   svc.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	// The freshly minted cookie hasn't round-tripped yet, so this request is
	// still keyed by address.
	return "ip:" + svc.ClientIP(c)
}

// ClientIP resolves the originating address behind proxies.
func (svc *ClientIdentityService) ClientIP(c *fiber.Ctx) string {
	forwarded := c.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if ip != "" {
				return ip
			}
		}
	}

	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	addr := c.Context().RemoteAddr().String()
	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}
