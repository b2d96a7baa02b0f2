package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := &Config{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "core", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=core sslmode=disable", cfg.DSN())
}

func TestBounded(t *testing.T) {
	ctx, cancel := Bounded(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	ctx2, cancel2 := Bounded(context.Background(), 0)
	defer cancel2()
	_, ok = ctx2.Deadline()
	assert.False(t, ok)
}
