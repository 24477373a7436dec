// Command beacond runs the BEACON exchange: the engine's command loop,
// its janitor sweep, and the wire server, all supervised by one tomb —
// the same shape the teacher's cmd/main.go wires up for its own server
// and engine, generalized to three supervised goroutines instead of one.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"beacon/internal/config"
	"beacon/internal/engine"
	"beacon/internal/janitor"
	"beacon/internal/ledger"
	beaconNet "beacon/internal/net"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.ParseFlags(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	client := ledger.NewMemoryLedger()
	eng := engine.New(cfg, client)

	t, ctx := tomb.WithContext(ctx)

	t.Go(func() error { return eng.Run(t) })

	j := janitor.New(janitor.Config{
		Interval:   cfg.JanitorInterval,
		OrderTTL:   cfg.OrderTTL,
		ArchiveTTL: cfg.ArchiveTTL,
		DelistTTL:  cfg.DelistTTL,
		BatchSize:  500,
	}, eng)
	t.Go(func() error { return j.Run(t) })

	srv := beaconNet.New(cfg.ListenAddress, cfg.ListenPort, eng)
	t.Go(func() error {
		srv.Run(ctx)
		return nil
	})

	log.Info().
		Str("address", cfg.ListenAddress).
		Int("port", cfg.ListenPort).
		Uint32("feeBps", cfg.FeeBps).
		Msg("beacond starting")

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("beacond exited with error")
	}
}
