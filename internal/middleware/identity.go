package middleware

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"closetvote/internal/services"
)

const (
	AnonymousCookie   = "anonymousId"
	SessionCookie     = "sessionId"
	FingerprintHeader = "X-Fingerprint"

	identityKey        = "identity"
	anonymousMaxAge    = 60 * 60 * 24 * 365
	maxFingerprintSize = 512
)

// IdentityResolver builds a services.IdentityKey for every request. The IP
// address and fingerprint are stored as keyed BLAKE2b digests so equal inputs
// still compare equal while raw values never reach the database.
type IdentityResolver struct {
	key    [32]byte
	secure bool
}

func NewIdentityResolver(secret string, secureCookies bool) *IdentityResolver {
	// blake2b keys are capped at 64 bytes; derive a fixed-size one.
	return &IdentityResolver{key: blake2b.Sum256([]byte(secret)), secure: secureCookies}
}

func (r *IdentityResolver) digest(v string) string {
	h, err := blake2b.New256(r.key[:])
	if err != nil {
		// only possible with an oversized key
		panic(err)
	}
	h.Write([]byte(v))
	return hex.EncodeToString(h.Sum(nil))
}

// ensureCookie returns the cookie's UUID, issuing a fresh one when missing or malformed.
func (r *IdentityResolver) ensureCookie(c *gin.Context, name string, maxAge int) string {
	if v, err := c.Cookie(name); err == nil {
		if _, err := uuid.Parse(v); err == nil {
			return v
		}
	}
	v := uuid.NewString()
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, v, maxAge, "/", "", r.secure, true)
	return v
}

func (r *IdentityResolver) Resolve(c *gin.Context) services.IdentityKey {
	id := services.IdentityKey{
		AnonymousID: r.ensureCookie(c, AnonymousCookie, anonymousMaxAge),
		SessionID:   r.ensureCookie(c, SessionCookie, 0),
	}
	if user, ok := CurrentUser(c); ok {
		uid := user.ID
		id.UserID = &uid
	}
	if ip := c.ClientIP(); ip != "" {
		id.IPAddress = r.digest("ip:" + ip)
	}
	if fp := strings.TrimSpace(c.GetHeader(FingerprintHeader)); fp != "" {
		if len(fp) > maxFingerprintSize {
			fp = fp[:maxFingerprintSize]
		}
		id.Fingerprint = r.digest("fp:" + fp)
	}
	return id
}

// Handler resolves the identity and stores it on the context.
func (r *IdentityResolver) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(identityKey, r.Resolve(c))
		c.Next()
	}
}

func Identity(c *gin.Context) (services.IdentityKey, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return services.IdentityKey{}, false
	}
	id, ok := v.(services.IdentityKey)
	return id, ok
}
