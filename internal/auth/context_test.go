package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/metadata"
)

func TestGetActorFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		"x-tenant-id", "t1",
		"x-user-id", "u1",
		"x-user-role", "ADMIN",
		"x-location-id", "l1",
	))
	a := GetActor(ctx)
	assert.Equal(t, Actor{TenantID: "t1", UserID: "u1", Role: "ADMIN", LocationID: "l1"}, a)
	assert.True(t, a.Privileged())
}

func TestContextActorWins(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-tenant-id", "from-md"))
	ctx = WithActor(ctx, Actor{TenantID: "from-ctx"})
	assert.Equal(t, "from-ctx", GetActor(ctx).TenantID)
}

func TestPrivileged(t *testing.T) {
	assert.True(t, Actor{Role: "owner"}.Privileged())
	assert.False(t, Actor{Role: RoleCashier}.Privileged())
	assert.False(t, System("t", "l").Privileged())
}

func TestMiddlewareDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware("tenant-default", "loc-default"))

	var got Actor
	r.GET("/", func(c *gin.Context) {
		got = GetActor(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "u9")
	req.Header.Set("X-Location-ID", "loc-2")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, Actor{TenantID: "tenant-default", UserID: "u9", LocationID: "loc-2"}, got)
}
