// Command stockx-demo loads a stockx config, logs into an account's
// inventory, and holds the connection open until SIGINT/SIGTERM. It exists
// to exercise the SDK end to end; real integrations embed the stockx package
// directly rather than shelling out to this binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cyberoby/stockx"
	"github.com/cyberoby/stockx/internal/config"
)

func main() {
	cfgPath := "config.yaml"
	if p := os.Getenv("STOCKX_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger()

	client, err := stockx.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout*4)
	defer cancel()

	if err := client.Login(ctx, cfg.Inventory.MockListingProductID); err != nil {
		logger.Error("login failed", "error", err)
		os.Exit(1)
	}
	logger.Info("inventory loaded", "items", len(client.Inventory.Items()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())
}
