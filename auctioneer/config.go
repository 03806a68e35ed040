package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"

	"github.com/cloudx-io/vcgauction/core"
)

// Transports the auctioneer can listen on
const (
	TransportVsock = "vsock"
	TransportTCP   = "tcp"
)

// Config holds the auctioneer settings, read from AUCTIONEER_* environment
// variables and optionally a YAML file named by AUCTIONEER_CONFIG_FILE.
type Config struct {
	MaxWorkers    int
	Transport     string
	Port          uint32
	TCPAddr       string
	MaxBids       int
	SolverWorkers int
	ReadTimeout   time.Duration
	SolveTimeout  time.Duration
	TieBreak      core.TieBreakPolicy
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("AUCTIONEER")
	v.AutomaticEnv()

	v.SetDefault("transport", TransportVsock)
	v.SetDefault("port", 5000)
	v.SetDefault("tcp_addr", "127.0.0.1:5000")
	v.SetDefault("max_bids", 20)
	v.SetDefault("solver_workers", 1)
	v.SetDefault("read_timeout", 30*time.Second)
	v.SetDefault("solve_timeout", 60*time.Second)
	v.SetDefault("tie_break", core.TieBreakLatest.String())

	// Required keys have no default; bind them so IsSet sees the environment
	_ = v.BindEnv("max_workers")
	_ = v.BindEnv("config_file")
	return v
}

// LoadConfig reads the auctioneer configuration
func LoadConfig() (Config, error) {
	return loadConfig(newViper())
}

func loadConfig(v *viper.Viper) (Config, error) {
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		log.Printf("INFO: Loaded config file %s", path)
	}

	if !v.IsSet("max_workers") {
		return Config{}, fmt.Errorf("required setting AUCTIONEER_MAX_WORKERS is not set")
	}
	maxWorkers := v.GetInt("max_workers")
	if maxWorkers <= 0 {
		return Config{}, fmt.Errorf("invalid value for AUCTIONEER_MAX_WORKERS: %q (must be a positive integer)", v.GetString("max_workers"))
	}

	transport := v.GetString("transport")
	if transport != TransportVsock && transport != TransportTCP {
		return Config{}, fmt.Errorf("invalid value for AUCTIONEER_TRANSPORT: %q (must be %s or %s)", transport, TransportVsock, TransportTCP)
	}

	tieBreak, err := core.ParseTieBreakPolicy(v.GetString("tie_break"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid value for AUCTIONEER_TIE_BREAK: %w", err)
	}

	cfg := Config{
		MaxWorkers:    maxWorkers,
		Transport:     transport,
		Port:          v.GetUint32("port"),
		TCPAddr:       v.GetString("tcp_addr"),
		MaxBids:       v.GetInt("max_bids"),
		SolverWorkers: v.GetInt("solver_workers"),
		ReadTimeout:   v.GetDuration("read_timeout"),
		SolveTimeout:  v.GetDuration("solve_timeout"),
		TieBreak:      tieBreak,
	}
	if cfg.MaxBids <= 0 {
		return Config{}, fmt.Errorf("invalid value for AUCTIONEER_MAX_BIDS: %d (must be positive)", cfg.MaxBids)
	}
	if cfg.ReadTimeout <= 0 || cfg.SolveTimeout <= 0 {
		return Config{}, fmt.Errorf("read and solve timeouts must be positive")
	}

	log.Printf("INFO: Config: transport=%s workers=%d max_bids=%d solver_workers=%d tie_break=%s",
		cfg.Transport, cfg.MaxWorkers, cfg.MaxBids, cfg.SolverWorkers, cfg.TieBreak)
	return cfg, nil
}

// ProcessSettings derives the mechanism settings from the configuration
func (c Config) ProcessSettings() ProcessSettings {
	return ProcessSettings{
		TieBreak:      c.TieBreak,
		MaxBids:       c.MaxBids,
		SolverWorkers: c.SolverWorkers,
	}
}
