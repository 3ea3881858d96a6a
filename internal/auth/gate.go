package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const subjectKey = "auth.subject"

// Verifier turns a bearer token into a subject.
type Verifier interface {
	Verify(token string) (string, error)
}

// OwnerPolicy decides which subjects hold owner privileges.
type OwnerPolicy interface {
	IsOwner(subject string) bool
}

// StaticOwner grants owner privileges to exactly one configured identity.
type StaticOwner string

func (o StaticOwner) IsOwner(subject string) bool {
	return o != "" && subject == string(o)
}

// Gate is the route authorization middleware.
type Gate struct {
	verifier Verifier
	owner    OwnerPolicy
	log      *zap.Logger
}

func NewGate(v Verifier, owner OwnerPolicy, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{verifier: v, owner: owner, log: log}
}

// Authenticated requires a valid bearer token and stores its subject on
// the request.
func (g *Gate) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := bearer(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_credentials", "message": "UnAuthorized Access"})
			return
		}

		subject, err := g.verifier.Verify(raw)
		if err != nil {
			g.log.Debug("token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid_or_expired_token", "message": "Forbidden access"})
			return
		}

		c.Set(subjectKey, subject)
		c.Next()
	}
}

// Owner requires the subject set by Authenticated to be the owner. It
// rejects requests that were not authenticated first.
func (g *Gate) Owner() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := Subject(c)
		if !ok || !g.owner.IsOwner(subject) {
			g.forbid(c, subject)
			return
		}
		c.Next()
	}
}

// Self requires the subject to equal the path parameter param.
func (g *Gate) Self(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := Subject(c)
		if !ok || subject != c.Param(param) {
			g.forbid(c, subject)
			return
		}
		c.Next()
	}
}

func (g *Gate) forbid(c *gin.Context, subject string) {
	g.log.Info("access denied", zap.String("path", c.FullPath()), zap.String("subject", subject))
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Forbidden access"})
}

// Subject returns the verified subject of the request.
func Subject(c *gin.Context) (string, bool) {
	v, ok := c.Get(subjectKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}
