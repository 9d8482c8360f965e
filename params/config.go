package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Boards holds the immutable fee configuration, in basis points.
type Boards struct {
	AskFeeBps     int64
	BiddingFeeBps int64
}

// Node holds process-level settings.
type Node struct {
	DataDir string // pebble database directory
	APIAddr string // REST/WebSocket listen address
	LogFile string // "" disables file logging

	// DevSupply is minted to the treasury account at startup so a fresh
	// devnet has funds to trade with. Ignored when zero.
	DevSupply int64
}

type Config struct {
	Boards Boards
	Node   Node
}

func Default() Config {
	return Config{
		Boards: Boards{
			AskFeeBps:     250, // 2.5%
			BiddingFeeBps: 250,
		},
		Node: Node{
			DataDir:   "./data/boards.db",
			APIAddr:   ":8080",
			LogFile:   "data/boardd.log",
			DevSupply: 1_000_000_000_000_000,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // .env in current directory, optional
	}

	if v := os.Getenv("ASK_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Boards.AskFeeBps = bps
		}
	}
	if v := os.Getenv("BIDDING_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Boards.BiddingFeeBps = bps
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("DEV_SUPPLY"); v != "" {
		if supply, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Node.DevSupply = supply
		}
	}

	return cfg
}
