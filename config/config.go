package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries every startup input. Load fails fast on anything required
// but missing, so a misconfigured instance never starts half-enabled.
type Config struct {
	Host string
	Port string

	// Lightning address served at /.well-known/lnurlp/{Username}.
	Domain   string
	Username string

	// Zap receipts (kind 9735). Empty key disables the feature.
	ZapperPrivateKey string
	MetadataFile     string

	// Wallet connect. Empty key disables the feature.
	WalletConnectPrivateKey string
	WalletConnectPublicKey  string
	WalletConnectRelay      *url.URL
	BudgetZap               int64
	BudgetHour              int64
	BudgetDay               int64
	RelayInformationFile    string
	ZapsFile                string

	// lnd backend.
	LndAddress     string
	LndGrpcPort    string
	LndMacaroonHex string
	LndTLSPath     string
	LndNetwork     string
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Host:                    getEnvDefault("HOST", "127.0.0.1"),
		Port:                    getEnvDefault("PORT", "3000"),
		Domain:                  os.Getenv("LIGESS_DOMAIN"),
		Username:                os.Getenv("LIGESS_USERNAME"),
		ZapperPrivateKey:        os.Getenv("LIGESS_NOSTR_ZAPPER_PRIVATE_KEY"),
		MetadataFile:            os.Getenv("LIGESS_NOSTR_METADATA_FILE"),
		WalletConnectPrivateKey: os.Getenv("LIGESS_NOSTR_WALLET_CONNECT_PRIVATE_KEY"),
		WalletConnectPublicKey:  os.Getenv("LIGESS_NOSTR_WALLET_CONNECT_PUBLIC_KEY"),
		RelayInformationFile:    os.Getenv("LIGESS_NOSTR_RELAY_INFORMATION"),
		ZapsFile:                getEnvDefault("LIGESS_NOSTR_WALLET_CONNECT_ZAPS_FILE", "zaps.json"),
		LndAddress:              os.Getenv("LND_ADDR"),
		LndGrpcPort:             getEnvDefault("LND_GRPC_PORT", "10009"),
		LndMacaroonHex:          os.Getenv("LND_MAC_HEX"),
		LndTLSPath:              os.Getenv("LND_TLS_PATH"),
		LndNetwork:              getEnvDefault("LND_NETWORK", "mainnet"),
	}

	if cfg.Domain == "" {
		return nil, fmt.Errorf("LIGESS_DOMAIN is required")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("LIGESS_USERNAME is required")
	}
	if cfg.LndAddress == "" {
		return nil, fmt.Errorf("LND_ADDR is required")
	}
	if cfg.LndMacaroonHex == "" {
		return nil, fmt.Errorf("LND_MAC_HEX is required")
	}

	if cfg.WalletConnectPrivateKey != "" {
		relay := os.Getenv("LIGESS_NOSTR_WALLET_CONNECT_RELAY")
		if relay == "" {
			return nil, fmt.Errorf("LIGESS_NOSTR_WALLET_CONNECT_RELAY is required when wallet connect is enabled")
		}
		u, err := url.Parse(relay)
		if err != nil {
			return nil, fmt.Errorf("LIGESS_NOSTR_WALLET_CONNECT_RELAY: %w", err)
		}
		cfg.WalletConnectRelay = u

		var budgetErr error
		cfg.BudgetZap, budgetErr = requireInt("LIGESS_NOSTR_WALLET_CONNECT_BUDGET_ZAP")
		if budgetErr != nil {
			return nil, budgetErr
		}
		cfg.BudgetHour, budgetErr = requireInt("LIGESS_NOSTR_WALLET_CONNECT_BUDGET_HOUR")
		if budgetErr != nil {
			return nil, budgetErr
		}
		cfg.BudgetDay, budgetErr = requireInt("LIGESS_NOSTR_WALLET_CONNECT_BUDGET_DAY")
		if budgetErr != nil {
			return nil, budgetErr
		}
	}

	return cfg, nil
}

// ListensOnAllInterfaces reports whether the server binds every interface,
// which relaxes the wallet-connect relay host check.
func (c *Config) ListensOnAllInterfaces() bool {
	return c.Host == "0.0.0.0"
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func requireInt(key string) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required when wallet connect is enabled", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
