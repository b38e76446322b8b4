//go:build integration

package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/xenking/checkout-bridge/internal/domain/cart"
	"github.com/xenking/checkout-bridge/internal/session"
)

var redisClient *redis.Client

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		log.Fatalf("start redis: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate redis: %v", err)
		}
	}()

	url, err := container.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("parse redis url: %v", err)
	}
	redisClient = redis.NewClient(opts)
	defer redisClient.Close()

	return m.Run()
}

func sampleCart() cart.Cart {
	return cart.Cart{
		Total: decimal.RequireFromString("300"),
		Items: []cart.Item{
			{ID: "p1", Name: "Widget", UnitPrice: decimal.RequireFromString("100"), Quantity: 2},
			{ID: "p2", Name: "Gadget", UnitPrice: decimal.RequireFromString("100"), Quantity: 1},
		},
	}
}

func TestRedisStore_CreateConsumeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := session.NewRedisStore(redisClient, time.Minute)

	token, err := store.Create(ctx, sampleCart())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Consume(ctx, token)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got.Items))
	}
	if !got.Total.Equal(decimal.RequireFromString("300")) {
		t.Fatalf("expected total 300, got %s", got.Total)
	}
	if got.Items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", got.Items[0].Quantity)
	}
}

func TestRedisStore_ConsumeIsOneShot(t *testing.T) {
	ctx := context.Background()
	store := session.NewRedisStore(redisClient, time.Minute)

	token, err := store.Create(ctx, sampleCart())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.Consume(ctx, token); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := store.Consume(ctx, token); err != session.ErrNotFound {
		t.Fatalf("expected ErrNotFound on second consume, got %v", err)
	}
}

func TestRedisStore_UnknownToken(t *testing.T) {
	store := session.NewRedisStore(redisClient, time.Minute)

	if _, err := store.Consume(context.Background(), "no-such-token"); err != session.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStore_ExpiredSessionIsGone(t *testing.T) {
	ctx := context.Background()
	store := session.NewRedisStore(redisClient, time.Second)

	token, err := store.Create(ctx, sampleCart())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := store.Consume(ctx, token); err != session.ErrNotFound {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestRedisStore_Ping(t *testing.T) {
	store := session.NewRedisStore(redisClient, time.Minute)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
