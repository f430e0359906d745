// Package trade parses trade command flags and launches the trade runtime.
package trade

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/roperia/roperia/internal/platform/cmd"
	tradeserver "github.com/roperia/roperia/internal/services/trade/app"
)

// Config holds trade command configuration.
type Config struct {
	Port                 int           `env:"ROPERIA_TRADE_PORT" envDefault:"8090"`
	HTTPPort             int           `env:"ROPERIA_TRADE_HTTP_PORT" envDefault:"8091"`
	DBPath               string        `env:"ROPERIA_TRADE_DB_PATH" envDefault:"data/trade.db"`
	SweepInterval        time.Duration `env:"ROPERIA_TRADE_SWEEP_INTERVAL" envDefault:"1m"`
	AdmissionCap         int           `env:"ROPERIA_TRADE_ADMISSION_CAP" envDefault:"3"`
	ProposalTTL          time.Duration `env:"ROPERIA_TRADE_PROPOSAL_TTL" envDefault:"168h"`
	ReminderWindow       time.Duration `env:"ROPERIA_TRADE_REMINDER_WINDOW" envDefault:"48h"`
	MaxProposalNoteRunes int           `env:"ROPERIA_TRADE_MAX_NOTE_RUNES" envDefault:"500"`
	MaxMessageRunes      int           `env:"ROPERIA_TRADE_MAX_MESSAGE_RUNES" envDefault:"1000"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The trade health gRPC server port")
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The trade HTTP and websocket server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The trade SQLite database path")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Expiration sweep interval")
	fs.IntVar(&cfg.AdmissionCap, "admission-cap", cfg.AdmissionCap, "Maximum active proposals per garment")
	fs.DurationVar(&cfg.ProposalTTL, "proposal-ttl", cfg.ProposalTTL, "Pending proposal lifetime")
	fs.DurationVar(&cfg.ReminderWindow, "reminder-window", cfg.ReminderWindow, "Deadline reminder window")
	fs.IntVar(&cfg.MaxProposalNoteRunes, "max-note-runes", cfg.MaxProposalNoteRunes, "Maximum proposal note length in runes")
	fs.IntVar(&cfg.MaxMessageRunes, "max-message-runes", cfg.MaxMessageRunes, "Maximum negotiation message length in runes")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the trade runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTrade, func(context.Context) error {
		return tradeserver.Run(ctx, tradeserver.RuntimeConfig{
			Port:                 cfg.Port,
			HTTPPort:             cfg.HTTPPort,
			DBPath:               cfg.DBPath,
			SweepInterval:        cfg.SweepInterval,
			AdmissionCap:         cfg.AdmissionCap,
			ProposalTTL:          cfg.ProposalTTL,
			ReminderWindow:       cfg.ReminderWindow,
			MaxProposalNoteRunes: cfg.MaxProposalNoteRunes,
			MaxMessageRunes:      cfg.MaxMessageRunes,
		})
	})
}
