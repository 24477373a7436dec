// Package config holds the engine tunables spec §6/§4.G leave as
// implementation-defined constants, parsed from command-line flags the
// way cmd/main.go already wires the listen address and port.
package config

import (
	"flag"
	"time"

	"beacon/internal/common"
)

// Config is the full set of flag-settable engine settings. The payment
// token and revenue account are not part of it: they live on the Engine,
// set once through SetPaymentToken/SetRevenueAccount, and the engine
// refuses trades and listings until the payment token is set (the revenue
// account is not checked).
type Config struct {
	ListenAddress string
	ListenPort    int

	FeeBps              uint32
	ListingPricePayment common.Amount
	OrderTTL            time.Duration
	ArchiveTTL          time.Duration
	DelistTTL           time.Duration
	JanitorInterval     time.Duration
	LogRingSize         int
}

// Default matches the worked figures in spec.md's end-to-end scenarios
// (FEE_BPS = 20) and §4.G's example TTLs.
func Default() Config {
	return Config{
		ListenAddress:       "0.0.0.0",
		ListenPort:          9001,
		FeeBps:              20,
		ListingPricePayment: common.AmountFromUint64(100_000_000),
		OrderTTL:            90 * 24 * time.Hour,
		ArchiveTTL:          180 * 24 * time.Hour,
		DelistTTL:           180 * 24 * time.Hour,
		JanitorInterval:     time.Minute,
		LogRingSize:         10_000,
	}
}

// ParseFlags overlays command-line flags onto Default(), matching the
// teacher's habit of wiring address/port directly in cmd/main.go rather
// than reaching for a config file format.
func ParseFlags(args []string) Config {
	cfg := Default()

	fs := flag.NewFlagSet("beacond", flag.ExitOnError)
	fs.StringVar(&cfg.ListenAddress, "address", cfg.ListenAddress, "listen address")
	fs.IntVar(&cfg.ListenPort, "port", cfg.ListenPort, "listen port")
	feeBps := fs.Uint("fee-bps", uint(cfg.FeeBps), "trading fee, in basis points, charged to each side of a fill")
	listingPrice := fs.Uint64("listing-price", cfg.ListingPricePayment.Uint64(), "payment-token cost of listing a new token")
	orderTTL := fs.Duration("order-ttl", cfg.OrderTTL, "age at which a resting order is swept by the janitor")
	archiveTTL := fs.Duration("archive-ttl", cfg.ArchiveTTL, "age at which an archived trade is swept by the janitor")
	delistTTL := fs.Duration("delist-ttl", cfg.DelistTTL, "inactivity period after which an empty token is delisted")
	janitorInterval := fs.Duration("janitor-interval", cfg.JanitorInterval, "how often the janitor sweeps")
	logRing := fs.Int("log-ring", cfg.LogRingSize, "size of the in-memory executed-order ring buffer per token")

	_ = fs.Parse(args)

	cfg.FeeBps = uint32(*feeBps)
	cfg.ListingPricePayment = common.AmountFromUint64(*listingPrice)
	cfg.OrderTTL = *orderTTL
	cfg.ArchiveTTL = *archiveTTL
	cfg.DelistTTL = *delistTTL
	cfg.JanitorInterval = *janitorInterval
	cfg.LogRingSize = *logRing
	return cfg
}
