package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// seeder fills a shopper's cart with demo items and, with -order, stores a PENDING order for
// the cart so the callback can be exercised without going through the gateway.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	userID := flag.String("user", "demo-user", "shopper id")
	email := flag.String("email", "demo@toko.local", "shopper email")
	withOrder := flag.Bool("order", false, "also create a PENDING order for the cart")
	flag.Parse()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Fatal("REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := cart.Store{R: rdb, TTL: 7 * 24 * time.Hour}
	c, err := store.Update(ctx, *userID, func(c cart.Cart) error {
		for _, p := range demoProducts {
			c.Add(p.key, p.qty, decimal.RequireFromString(p.price), p.name, p.size, p.variant)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to seed cart: %v", err)
	}
	log.Printf("Seeded cart for %s: %d lines, subtotal Rs %s", *userID, len(c), c.SubTotal().String())

	if !*withOrder {
		return
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	if err := order.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	o := order.Order{
		ID:     order.NewID(),
		UserID: *userID,
		Email:  *email,
		Amount: c.SubTotal(),
		Status: order.StatusPending,
	}
	for _, key := range c.Keys() {
		it := c[key]
		o.Items = append(o.Items, order.Item{Key: key, Name: it.Name, Price: it.Price, Qty: it.Qty, Size: it.Size, Variant: it.Variant})
	}
	if err := (order.PGStore{DB: pool}).Create(ctx, o); err != nil {
		log.Fatalf("Failed to create order: %v", err)
	}
	log.Printf("Created PENDING order %s for Rs %s", o.ID, pricing.GatewayAmount(o.Amount))
}

type demoProduct struct {
	key, name, size, variant, price string
	qty                             int
}

var demoProducts = []demoProduct{
	{key: "tee-basic-m-black", name: "Basic Tee", size: "M", variant: "Black", price: "499", qty: 2},
	{key: "cap-logo", name: "Logo Cap", price: "299", qty: 1},
}
