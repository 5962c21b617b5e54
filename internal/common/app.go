// Package common holds the setup shared by every command: flags, logging,
// configuration and the wired services.
package common

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/ai"
	"github.com/dtnitsch/second-look/pkg/bank"
	"github.com/dtnitsch/second-look/pkg/caching"
	"github.com/dtnitsch/second-look/pkg/db"
	"github.com/dtnitsch/second-look/pkg/detector"
	"github.com/dtnitsch/second-look/pkg/extractor"
	"github.com/dtnitsch/second-look/pkg/pipeline"
	"github.com/urfave/cli/v2"
)

// Global flag names.
const (
	FlagConfig        = "config"
	FlagDB            = "db"
	FlagQuiet         = "quiet"
	FlagVerbose       = "verbose"
	FlagNessieKey     = "nessie-key"
	FlagNessieAccount = "nessie-account"
	FlagGeminiKey     = "gemini-key"
	FlagNoCache       = "no-cache"
)

// GlobalFlags are accepted before any command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: FlagConfig, Aliases: []string{"c"}, Usage: "YAML config file", Value: models.DefaultConfigPath},
		&cli.StringFlag{Name: FlagDB, Usage: "SQLite database path", EnvVars: []string{"SECONDLOOK_DB"}},
		&cli.BoolFlag{Name: FlagQuiet, Aliases: []string{"q"}, Usage: "only log errors"},
		&cli.BoolFlag{Name: FlagVerbose, Aliases: []string{"v"}, Usage: "debug logging"},
		&cli.StringFlag{Name: FlagNessieKey, Usage: "Nessie API key", EnvVars: []string{"NESSIE_API_KEY"}},
		&cli.StringFlag{Name: FlagNessieAccount, Usage: "Nessie account id", EnvVars: []string{"NESSIE_ACCOUNT_ID"}},
		&cli.StringFlag{Name: FlagGeminiKey, Usage: "Gemini API key", EnvVars: []string{"GEMINI_API_KEY"}},
		&cli.BoolFlag{Name: FlagNoCache, Usage: "bypass the response cache"},
	}
}

// NewLogger builds the JSON stderr logger for c and installs it as the
// default.
func NewLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool(FlagQuiet) {
		logLevel = slog.LevelError
	} else if c.Bool(FlagVerbose) {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

// Overrides are the command-line values that win over the config file.
type Overrides struct {
	DBPath        string
	NessieKey     string
	NessieAccount string
	GeminiKey     string
	NoCache       bool
}

// OverridesFromContext collects the global flags.
func OverridesFromContext(c *cli.Context) Overrides {
	return Overrides{
		DBPath:        c.String(FlagDB),
		NessieKey:     c.String(FlagNessieKey),
		NessieAccount: c.String(FlagNessieAccount),
		GeminiKey:     c.String(FlagGeminiKey),
		NoCache:       c.Bool(FlagNoCache),
	}
}

// Apply copies every set override into cfg.
func (o Overrides) Apply(cfg *models.Config) {
	if o.DBPath != "" {
		cfg.Database.Path = o.DBPath
	}
	if o.NessieKey != "" {
		cfg.Bank.APIKey = o.NessieKey
	}
	if o.NessieAccount != "" {
		cfg.Bank.AccountID = o.NessieAccount
	}
	if o.GeminiKey != "" {
		cfg.AI.APIKey = o.GeminiKey
	}
	if o.NoCache {
		cfg.Cache.Disabled = true
	}
}

// LoadConfig reads the config file named by --config and applies the
// flag overrides.
func LoadConfig(c *cli.Context) (*models.Config, error) {
	path := c.String(FlagConfig)
	if !c.IsSet(FlagConfig) {
		path = ""
	}
	cfg, err := models.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	OverridesFromContext(c).Apply(cfg)
	return cfg, nil
}

// Services are the collaborators a command needs. Bank and AI are nil when
// their credentials are missing.
type Services struct {
	Config    *models.Config
	Logger    *slog.Logger
	DB        *db.DB
	Bank      *bank.Client
	AI        *ai.Client
	Detector  *detector.Detector
	Extractor *extractor.Extractor
}

// Setup loads configuration and opens the database and clients.
func Setup(c *cli.Context) (*Services, error) {
	logger := NewLogger(c)
	cfg, err := LoadConfig(c)
	if err != nil {
		return nil, err
	}
	return NewServices(cfg, logger)
}

// NewServices wires everything from cfg.
func NewServices(cfg *models.Config, logger *slog.Logger) (*Services, error) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Services{
		Config:    cfg,
		Logger:    logger,
		DB:        database,
		Detector:  detector.New(detector.DefaultRules().WithOverrides(cfg.Detection), logger),
		Extractor: extractor.New(cfg.Detection, logger),
	}

	bankCache, err := newCache(cfg.Cache, "bank", cfg.Cache.BankTTL)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	aiCache, err := newCache(cfg.Cache, "ai", cfg.Cache.AITTL)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	s.Bank, err = bank.New(cfg.Bank, bankCache, logger)
	switch {
	case errors.Is(err, bank.ErrNotConfigured):
		logger.Warn("bank not configured, budget checks and purchase sync are off", "hint", "set NESSIE_API_KEY and NESSIE_ACCOUNT_ID")
	case err != nil:
		_ = database.Close()
		return nil, fmt.Errorf("failed to create bank client: %w", err)
	}

	s.AI, err = ai.New(cfg.AI, aiCache, logger)
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		logger.Warn("ai not configured, duplicate detection is off", "hint", "set GEMINI_API_KEY")
	case err != nil:
		_ = database.Close()
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}

	return s, nil
}

func newCache(cfg models.CacheConfig, name string, ttl time.Duration) (*caching.Cache, error) {
	if cfg.Disabled {
		return nil, nil
	}
	cache, err := caching.NewCache(filepath.Join(cfg.Dir, name), ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", name, err)
	}
	return cache, nil
}

// Pipeline builds a pipeline over the services. A nil presenter shows
// nothing.
func (s *Services) Pipeline(presenter pipeline.Presenter, sessionID int64) *pipeline.Pipeline {
	deps := pipeline.Deps{
		Detector:  s.Detector,
		Extractor: s.Extractor,
		Store:     s.DB,
		Presenter: presenter,
		Logger:    s.Logger,
		SessionID: sessionID,
	}
	// Typed nils must not reach the interfaces.
	if s.Bank != nil {
		deps.Bank = s.Bank
	}
	if s.AI != nil {
		deps.Analyzer = s.AI
	}
	return pipeline.New(deps)
}

func (s *Services) Close() {
	if s.DB != nil {
		_ = s.DB.Close()
	}
}
