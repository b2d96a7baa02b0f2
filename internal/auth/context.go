package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/metadata"
)

const (
	RoleOwner   = "OWNER"
	RoleAdmin   = "ADMIN"
	RoleCashier = "CASHIER"
	RoleSystem  = "SYSTEM"
)

// Actor is who issues a command, and for which tenant and location.
// Authentication happens upstream; the agent only carries the resolved identity.
type Actor struct {
	TenantID   string
	UserID     string
	Role       string
	LocationID string
}

func (a Actor) Privileged() bool {
	role := strings.ToUpper(a.Role)
	return role == RoleOwner || role == RoleAdmin
}

// System is the actor used for automated flows such as payment notifications.
func System(tenantID, locationID string) Actor {
	return Actor{TenantID: tenantID, LocationID: locationID, Role: RoleSystem}
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// GetActor reads the actor set by the HTTP middleware, falling back to gRPC metadata.
func GetActor(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}

	var a Actor
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		a.TenantID = first(md.Get("x-tenant-id"))
		a.UserID = first(md.Get("x-user-id"))
		a.Role = first(md.Get("x-user-role"))
		a.LocationID = first(md.Get("x-location-id"))
	}
	return a
}

func first(vals []string) string {
	if len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Middleware resolves the actor from request headers. Tenant and location
// default to the terminal's configured identity.
func Middleware(defaultTenant, defaultLocation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := Actor{
			TenantID:   c.GetHeader("X-Tenant-ID"),
			UserID:     c.GetHeader("X-User-ID"),
			Role:       c.GetHeader("X-User-Role"),
			LocationID: c.GetHeader("X-Location-ID"),
		}
		if a.TenantID == "" {
			a.TenantID = defaultTenant
		}
		if a.LocationID == "" {
			a.LocationID = defaultLocation
		}
		c.Request = c.Request.WithContext(WithActor(c.Request.Context(), a))
		c.Next()
	}
}
