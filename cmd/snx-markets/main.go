// Package main prints the perps market summaries of a Synthetix deployment,
// resolving stale oracle prices on the way.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/archon-research/snx-sdk/internal/adapters/outbound/telemetry"
	"github.com/archon-research/snx-sdk/internal/pkg/env"
	"github.com/archon-research/snx-sdk/internal/services/perps"
	"github.com/archon-research/snx-sdk/pkg/synthetix"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

type cliConfig struct {
	rpcURL         string
	networkID      int64
	deploymentsDir string
	address        common.Address
	markets        []string
	redisAddr      string
	priceURL       string
	otlpEndpoint   string
	prefetch       bool
	timeout        time.Duration
}

func parseConfig(args []string) (cliConfig, error) {
	fs := flag.NewFlagSet("snx-markets", flag.ContinueOnError)
	rpcURL := fs.String("rpc", "", "JSON-RPC endpoint URL")
	networkID := fs.Int64("network", 0, "expected chain id (0 accepts the node's)")
	deploymentsDir := fs.String("deployments", "", "directory of <network>/<Contract>.json deployment files")
	address := fs.String("address", "", "account owner address")
	markets := fs.String("markets", "", "comma-separated market names (default: all)")
	prefetch := fs.Bool("prefetch", false, "fulfill every market's price up front")
	timeout := fs.Duration("timeout", 0, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	cfg := cliConfig{
		rpcURL:         *rpcURL,
		networkID:      *networkID,
		deploymentsDir: *deploymentsDir,
		prefetch:       *prefetch,
		timeout:        *timeout,
	}

	if cfg.rpcURL == "" {
		cfg.rpcURL = env.Get("RPC_URL", "")
	}
	if cfg.rpcURL == "" {
		return cliConfig{}, fmt.Errorf("rpc URL not provided (use -rpc flag or RPC_URL env var)")
	}
	if cfg.networkID == 0 {
		cfg.networkID = env.GetInt64("NETWORK_ID", 0)
	}
	if cfg.deploymentsDir == "" {
		cfg.deploymentsDir = env.Get("DEPLOYMENTS_DIR", "")
	}
	if cfg.timeout == 0 {
		cfg.timeout = env.GetDuration("TIMEOUT", 60*time.Second)
	}

	addr := *address
	if addr == "" {
		addr = env.Get("ADDRESS", "")
	}
	if addr != "" {
		if !common.IsHexAddress(addr) {
			return cliConfig{}, fmt.Errorf("invalid address %q", addr)
		}
		cfg.address = common.HexToAddress(addr)
	}

	for _, m := range strings.Split(*markets, ",") {
		if m = strings.TrimSpace(m); m != "" {
			cfg.markets = append(cfg.markets, strings.ToUpper(m))
		}
	}

	cfg.redisAddr = env.Get("REDIS_ADDR", "")
	cfg.priceURL = env.Get("PYTH_PRICE_SERVICE_URL", "")
	cfg.otlpEndpoint = env.Get("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	return cfg, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	if cfg.otlpEndpoint != "" {
		shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
			ServiceName:  "snx-markets",
			Environment:  env.Get("ENVIRONMENT", "development"),
			OTLPEndpoint: cfg.otlpEndpoint,
		})
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer shutdown(logger, "tracer", shutdownTracer)

		shutdownMetrics, err := telemetry.InitMetrics(ctx, telemetry.MetricConfig{
			ServiceName:  "snx-markets",
			Environment:  env.Get("ENVIRONMENT", "development"),
			OTLPEndpoint: cfg.otlpEndpoint,
		})
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}
		defer shutdown(logger, "metrics", shutdownMetrics)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	client, err := synthetix.New(ctx, synthetix.Config{
		RPCURL:          cfg.rpcURL,
		NetworkID:       cfg.networkID,
		Address:         cfg.address,
		DeploymentsDir:  cfg.deploymentsDir,
		PriceServiceURL: cfg.priceURL,
		RedisAddr:       cfg.redisAddr,
		PrefetchPrices:  cfg.prefetch,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("creating synthetix client: %w", err)
	}
	defer client.Close()

	if client.Perps == nil {
		return fmt.Errorf("perps is not deployed on network %d", client.NetworkID)
	}

	ids, err := marketIDs(ctx, client.Perps, cfg.markets)
	if err != nil {
		return err
	}

	start := time.Now()
	summaries, err := client.Perps.GetMarketSummaries(ctx, ids)
	if err != nil {
		return fmt.Errorf("reading market summaries: %w", err)
	}
	logger.Info("read market summaries", "markets", len(summaries), "duration", time.Since(start))

	return printSummaries(out, summaries)
}

func marketIDs(ctx context.Context, svc *perps.Service, names []string) ([]uint64, error) {
	if len(names) == 0 {
		ids, err := svc.GetMarketIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing markets: %w", err)
		}
		return ids, nil
	}

	ids := make([]uint64, 0, len(names))
	for _, name := range names {
		id, _, err := svc.ResolveMarket(nil, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printSummaries(out io.Writer, summaries []perps.MarketSummary) error {
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].MarketID < summaries[j].MarketID })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ID\tMARKET\tINDEX PRICE\tSKEW\tSIZE\tMAX OI\tFUNDING RATE\t")
	for _, s := range summaries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.MarketID,
			s.MarketName,
			s.IndexPrice.StringFixed(2),
			s.Skew.StringFixed(4),
			s.Size.StringFixed(4),
			s.MaxOpenInterest.StringFixed(2),
			s.CurrentFundingRate.StringFixed(6))
	}
	return w.Flush()
}

func shutdown(logger *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error("shutdown failed", "provider", name, "error", err)
	}
}
