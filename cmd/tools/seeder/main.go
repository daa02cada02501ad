// Command seeder loads coupons from a JSON file into the database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/db"
	"github.com/noah-isme/toko-cart/internal/repo"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

type seedCoupon struct {
	coupon.Coupon
	Allowed []reservation.Redeemer `json:"allowed,omitempty"`
}

func main() {
	file := flag.String("file", "coupons.json", "JSON array of coupons to upsert")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read %s: %v", *file, err)
	}
	var seeds []seedCoupon
	if err := json.Unmarshal(raw, &seeds); err != nil {
		log.Fatalf("decode %s: %v", *file, err)
	}

	ctx := context.Background()
	if err := db.Migrate(ctx, dbURL); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	coupons := repo.NewCouponsRepo(pool)
	for _, s := range seeds {
		if err := coupons.Save(ctx, s.Coupon, s.Allowed...); err != nil {
			log.Fatalf("seed %s: %v", s.Code, err)
		}
		log.Printf("seeded coupon %s", s.Code)
	}
	log.Printf("seeded %d coupons", len(seeds))
}
