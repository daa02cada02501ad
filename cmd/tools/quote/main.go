// Command quote prices a cart described as JSON and prints the totals.
// Precision and tax rate default to PRICING_DECIMALS and
// PRICING_DEFAULT_TAX_RATE unless the document sets them.
//
//	quote -file cart.json
//	echo '{"items":[...]}' | quote
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

type request struct {
	Items    []cart.LineInput `json:"items"`
	Coupons  []coupon.Coupon  `json:"coupons"`
	Shipping decimal.Decimal  `json:"shipping"`
	TaxRate  *decimal.Decimal `json:"taxRate"`
	Decimals *int32           `json:"decimals"`
}

func main() {
	file := flag.String("file", "-", "cart JSON, - for stdin")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if err := run(*file, *logLevel, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "quote:", err)
		os.Exit(1)
	}
}

func run(file, logLevel string, out io.Writer) error {
	var in io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	var req request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	defaults, err := config.LoadPricing()
	if err != nil {
		return err
	}
	cfg := cart.ConfigFrom(defaults)
	if req.Decimals != nil {
		cfg.Decimals = req.Decimals
	}
	if req.TaxRate != nil {
		cfg.TaxRate = *req.TaxRate
	}

	logger := obs.NewLoggerTo(os.Stderr, "console", logLevel)
	c := cart.New(cfg, cart.Deps{Logger: logger})
	for _, item := range req.Items {
		if _, err := c.Add(item); err != nil {
			return fmt.Errorf("item %s: %w", item.ID, err)
		}
	}

	inputs := make([]pricing.CouponInput, 0, len(req.Coupons))
	for _, cp := range req.Coupons {
		inputs = append(inputs, cp.Input())
	}
	res := pricing.Calculator{Decimals: cfg.Decimals}.Calculate(c.Content(), inputs, req.Shipping)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Totals)
}
