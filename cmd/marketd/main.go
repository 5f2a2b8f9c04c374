package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"nftmarket/cmd/internal/passphrase"
	"nftmarket/config"
	"nftmarket/core"
	"nftmarket/crypto"
	"nftmarket/observability/logging"
	"nftmarket/rpc"
	"nftmarket/storage"
)

const keystorePassEnv = "MARKET_KEYSTORE_PASS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("marketd", cfg.NetworkName)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	passSource := passphrase.NewSource(keystorePassEnv)
	pass, err := passSource.Get()
	if err != nil {
		logger.Error("Failed to resolve keystore passphrase", slog.Any("error", err))
		os.Exit(1)
	}
	custodianKey, err := crypto.LoadFromKeystore(cfg.CustodianKeystorePath, pass)
	if err != nil {
		logger.Error("Failed to load custodian key", slog.Any("error", err))
		os.Exit(1)
	}

	custodianAddr := custodianKey.PubKey().Address()
	var custodian [20]byte
	copy(custodian[:], custodianAddr.Bytes())

	node := core.NewNode(db, custodian)
	logger.Info("Node ready",
		slog.String("custodian", custodianAddr.String()),
		slog.String("dataDir", cfg.DataDir),
	)

	server := rpc.NewServer(node)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
