package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/meridian-labs/hyperliquid-go/pkg/config"
	"github.com/meridian-labs/hyperliquid-go/pkg/exchange"
	"github.com/meridian-labs/hyperliquid-go/pkg/info"
	"github.com/meridian-labs/hyperliquid-go/pkg/logger"
	"github.com/meridian-labs/hyperliquid-go/pkg/store"
	badgerstore "github.com/meridian-labs/hyperliquid-go/pkg/store/badger"
	memorystore "github.com/meridian-labs/hyperliquid-go/pkg/store/memory"
	redisstore "github.com/meridian-labs/hyperliquid-go/pkg/store/redis"
	"github.com/meridian-labs/hyperliquid-go/pkg/stream"
	"github.com/meridian-labs/hyperliquid-go/pkg/transport"
	"github.com/meridian-labs/hyperliquid-go/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "hl-cli",
		Usage: "Hyperliquid exchange client",
		Description: `A command line client for the Hyperliquid exchange.

Supports market data queries, signed order submission, and watching
stream channels with an optional durable fill journal.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "network",
				Aliases: []string{"n"},
				Usage:   "Exchange network: mainnet or testnet",
				Value:   string(config.NetworkTestnet),
				EnvVars: []string{config.EnvNetwork},
			},
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Hex private key for signed operations",
				EnvVars: []string{config.EnvPrivateKey},
			},
			&cli.StringFlag{
				Name:    "vault-address",
				Usage:   "Optional vault address to act on behalf of",
				EnvVars: []string{config.EnvVaultAddress},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mids",
				Usage:  "Print the current mid price for every coin",
				Action: runMids,
			},
			{
				Name:      "book",
				Usage:     "Print the order book snapshot for a coin",
				ArgsUsage: "<coin>",
				Action:    runBook,
			},
			{
				Name:      "orders",
				Usage:     "List open orders for an address",
				ArgsUsage: "<address>",
				Action:    runOrders,
			},
			{
				Name:      "place",
				Usage:     "Place a limit order",
				ArgsUsage: "<coin>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "buy", Usage: "Buy side (sell when absent)"},
					&cli.StringFlag{Name: "px", Usage: "Limit price", Required: true},
					&cli.StringFlag{Name: "sz", Usage: "Order size", Required: true},
					&cli.BoolFlag{Name: "reduce-only", Usage: "Reduce-only order"},
				},
				Action: runPlace,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a resting order",
				ArgsUsage: "<coin> <oid>",
				Action:    runCancel,
			},
			{
				Name:      "watch",
				Usage:     "Stream one or more channels, optionally journaling fills",
				ArgsUsage: "<channel>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "store",
						Usage:   "Fill journal backend: memory, badger, or redis",
						EnvVars: []string{config.EnvStoreType},
					},
					&cli.StringFlag{
						Name:    "store-path",
						Usage:   "Data directory for the badger backend",
						EnvVars: []string{config.EnvStorePath},
					},
					&cli.StringFlag{
						Name:    "redis-address",
						Usage:   "Redis address for the redis backend (host:port)",
						EnvVars: []string{config.EnvRedisAddress},
					},
				},
				Action: runWatch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

func newInfoClient(c *cli.Context, l *zap.Logger) (*info.Client, *transport.Client, error) {
	network := config.Network(c.String("network"))
	apiURL, err := network.APIURL()
	if err != nil {
		return nil, nil, err
	}

	tc, err := transport.NewClient(transport.Config{
		BaseURL: apiURL,
		Timeout: config.DefaultRequestTimeout,
		Logger:  l,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create transport client: %w", err)
	}
	ic, err := info.NewClient(tc, l)
	if err != nil {
		return nil, nil, err
	}
	return ic, tc, nil
}

func newExchangeClient(c *cli.Context, l *zap.Logger) (*exchange.Client, error) {
	ic, tc, err := newInfoClient(c, l)
	if err != nil {
		return nil, err
	}
	if c.String("private-key") == "" {
		return nil, fmt.Errorf("private key is required for signed operations (set %s)", config.EnvPrivateKey)
	}
	return exchange.NewClient(exchange.Config{
		Transport:    tc,
		Info:         ic,
		Logger:       l,
		PrivateKey:   c.String("private-key"),
		Network:      config.Network(c.String("network")),
		VaultAddress: c.String("vault-address"),
	})
}

func runMids(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	ic, _, err := newInfoClient(c, l)
	if err != nil {
		return err
	}
	mids, err := ic.AllMids(c.Context)
	if err != nil {
		return err
	}
	for coin, mid := range mids {
		fmt.Printf("%-10s %s\n", coin, mid)
	}
	return nil
}

func runBook(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: book <coin>")
	}
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	ic, _, err := newInfoClient(c, l)
	if err != nil {
		return err
	}
	book, err := ic.L2Book(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	fmt.Printf("%s  (time %d)\n", book.Coin, book.Time)
	for side, name := range []string{"bids", "asks"} {
		if side >= len(book.Levels) {
			continue
		}
		fmt.Println(name)
		for _, level := range book.Levels[side] {
			fmt.Printf("  %s x %s\n", level.Px.String(), level.Sz.String())
		}
	}
	return nil
}

func runOrders(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: orders <address>")
	}
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	ic, _, err := newInfoClient(c, l)
	if err != nil {
		return err
	}
	orders, err := ic.OpenOrders(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	for _, order := range orders {
		fmt.Printf("%d  %s %s  %s @ %s\n", order.Oid, order.Coin, order.Side, order.Sz.String(), order.LimitPx.String())
	}
	return nil
}

func runPlace(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: place <coin> --px <price> --sz <size>")
	}
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	ec, err := newExchangeClient(c, l)
	if err != nil {
		return err
	}

	resp, err := ec.PlaceOrder(c.Context, types.OrderRequest{
		Coin:       c.Args().First(),
		IsBuy:      c.Bool("buy"),
		LimitPx:    types.FlexFromString(c.String("px")),
		Sz:         types.FlexFromString(c.String("sz")),
		ReduceOnly: c.Bool("reduce-only"),
		OrderType:  types.OrderTypeWire{Limit: &types.LimitOrderType{Tif: types.TifGtc}},
		Cloid:      exchange.NewCloid(),
	})
	if err != nil {
		return err
	}
	fmt.Printf("status: %s\n%s\n", resp.Status, string(resp.Response))
	return nil
}

func runCancel(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: cancel <coin> <oid>")
	}
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	ec, err := newExchangeClient(c, l)
	if err != nil {
		return err
	}

	var oid int64
	if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &oid); err != nil {
		return fmt.Errorf("invalid oid %q: %w", c.Args().Get(1), err)
	}
	resp, err := ec.Cancel(c.Context, c.Args().First(), oid)
	if err != nil {
		return err
	}
	fmt.Printf("status: %s\n", resp.Status)
	return nil
}

// newEventStore builds the journal backend selected by --store; nil when
// journaling is disabled.
func newEventStore(c *cli.Context, l *zap.Logger) (store.IEventStore, error) {
	storeCfg := config.StoreConfig{
		Type:         config.StoreType(c.String("store")),
		DataPath:     c.String("store-path"),
		RedisAddress: c.String("redis-address"),
	}
	if storeCfg.Type == "" {
		return nil, nil
	}
	if err := storeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	switch storeCfg.Type {
	case config.StoreTypeMemory:
		return memorystore.NewMemoryStore(), nil
	case config.StoreTypeBadger:
		return badgerstore.NewBadgerStore(storeCfg.DataPath, l)
	case config.StoreTypeRedis:
		return redisstore.NewRedisStore(&redisstore.Config{
			Address:   storeCfg.RedisAddress,
			Password:  storeCfg.RedisPassword,
			DB:        storeCfg.RedisDB,
			KeyPrefix: storeCfg.KeyPrefix,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

func runWatch(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("usage: watch <channel>...")
	}
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	network := config.Network(c.String("network"))
	wsURL, err := network.WsURL()
	if err != nil {
		return err
	}

	journal, err := newEventStore(c, l)
	if err != nil {
		return err
	}
	if journal != nil {
		defer func() { _ = journal.Close() }()
		if err := journal.HealthCheck(); err != nil {
			return fmt.Errorf("store health check failed: %w", err)
		}
	}

	lost := make(chan error, 1)
	session, err := stream.NewSession(stream.Config{
		URL:    wsURL,
		Logger: l,
		OnConnectionLost: func(err error) {
			lost <- err
		},
	})
	if err != nil {
		return err
	}

	handler := func(channel string, data any) {
		fmt.Printf("[%s] %v\n", channel, data)
		if journal == nil {
			return
		}
		switch payload := data.(type) {
		case types.UserEvents:
			for i := range payload.Fills {
				if err := journal.AppendFill(&payload.Fills[i]); err != nil {
					l.Sugar().Warnw("Failed to journal fill", "error", err)
				}
			}
		case []types.Fill:
			for i := range payload {
				if err := journal.AppendFill(&payload[i]); err != nil {
					l.Sugar().Warnw("Failed to journal fill", "error", err)
				}
			}
		}
	}

	for _, channel := range c.Args().Slice() {
		if err := session.Subscribe(channel, handler); err != nil {
			return err
		}
	}
	if err := session.Connect(c.Context); err != nil {
		return err
	}
	defer func() { _ = session.Disconnect() }()

	l.Sugar().Infow("Watching channels", "channels", c.Args().Slice())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		l.Sugar().Infow("Shutting down", "signal", sig.String())
		return nil
	case err := <-lost:
		return err
	case <-c.Context.Done():
		return context.Cause(c.Context)
	}
}
