package params

import (
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Node struct {
	DataDir  string
	LogFile  string
	InMemory bool // skip pebble, keep state in memory
	Verbose  bool
}

type Gateway struct {
	Address  common.Address
	Admin    common.Address
	Treasury common.Address
	FeeBps   uint64
	ChainID  int64
	Genesis  string // optional YAML genesis file
}

type API struct {
	Addr string
	// RateLimit caps signed call submissions per second across all clients.
	// Zero disables throttling.
	RateLimit float64
	Burst     int
}

type Config struct {
	Node    Node
	Gateway Gateway
	API     API
}

func Default() Config {
	return Config{
		Node: Node{
			DataDir: "data",
			LogFile: "data/gatewayd.log",
		},
		Gateway: Gateway{
			Address:  common.HexToAddress("0x6A00000000000000000000000000000000000001"),
			Admin:    common.HexToAddress("0xAD00000000000000000000000000000000000001"),
			Treasury: common.HexToAddress("0x7E00000000000000000000000000000000000001"),
			FeeBps:   30,
			ChainID:  1337,
		},
		API: API{
			Addr:      ":8080",
			RateLimit: 50,
			Burst:     10,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.InMemory = getEnv("IN_MEMORY", "false") == "true"
	cfg.Node.Verbose = getEnv("VERBOSE", "false") == "true"

	cfg.Gateway.Address = getAddress("GATEWAY_ADDRESS", cfg.Gateway.Address)
	cfg.Gateway.Admin = getAddress("ADMIN_ADDRESS", cfg.Gateway.Admin)
	cfg.Gateway.Treasury = getAddress("TREASURY_ADDRESS", cfg.Gateway.Treasury)
	if v, err := strconv.ParseUint(os.Getenv("FEE_BPS"), 10, 64); err == nil {
		cfg.Gateway.FeeBps = v
	}
	if v, err := strconv.ParseInt(os.Getenv("CHAIN_ID"), 10, 64); err == nil {
		cfg.Gateway.ChainID = v
	}
	cfg.Gateway.Genesis = getEnv("GENESIS_FILE", cfg.Gateway.Genesis)

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	if v, err := strconv.ParseFloat(os.Getenv("API_RATE_LIMIT"), 64); err == nil && v >= 0 {
		cfg.API.RateLimit = v
	}
	if v, err := strconv.Atoi(os.Getenv("API_RATE_BURST")); err == nil && v > 0 {
		cfg.API.Burst = v
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getAddress ignores values that are not 20-byte hex addresses.
func getAddress(key string, defaultValue common.Address) common.Address {
	if value := os.Getenv(key); common.IsHexAddress(value) {
		return common.HexToAddress(value)
	}
	return defaultValue
}
