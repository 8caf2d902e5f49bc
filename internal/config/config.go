// Package config loads service configuration from a TOML file with
// defaults and environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Server contains HTTP listener settings.
type Server struct {
	Bind          string `toml:"bind"`
	MaxUploadSize int64  `toml:"max_upload_size"`
}

// Storage contains filesystem layout settings.
type Storage struct {
	UploadDir string `toml:"upload_dir"`
	DBPath    string `toml:"db_path"`
}

// OCR contains settings for the external OCR collaborator.
type OCR struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CardRef contains settings for the external card reference collaborator.
type CardRef struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxCandidates  int    `toml:"max_candidates"`
}

// Matcher contains the weighted scorer settings. Weights apply to the five
// component scores and should sum to 1.0.
type Matcher struct {
	YearWeight         float64 `toml:"year_weight"`
	PokemonWeight      float64 `toml:"pokemon_weight"`
	CardNumberWeight   float64 `toml:"card_number_weight"`
	ModifierWeight     float64 `toml:"modifier_weight"`
	SetWeight          float64 `toml:"set_weight"`
	MinConfidence      float64 `toml:"min_confidence"`
	ReportedCandidates int     `toml:"reported_candidates"`
}

// Pipeline contains batch processing settings.
type Pipeline struct {
	MaxConcurrency int     `toml:"max_concurrency"`
	LabelCropRatio float64 `toml:"label_crop_ratio"`
	LabelWidth     int     `toml:"label_width"`
}

// Config is the root configuration document.
type Config struct {
	Server   Server   `toml:"server"`
	Storage  Storage  `toml:"storage"`
	OCR      OCR      `toml:"ocr"`
	CardRef  CardRef  `toml:"cardref"`
	Matcher  Matcher  `toml:"matcher"`
	Pipeline Pipeline `toml:"pipeline"`
	LogLevel string   `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Bind:          ":8080",
			MaxUploadSize: 32 << 20,
		},
		Storage: Storage{
			UploadDir: "./data/images",
			DBPath:    "./data/cardvault.db",
		},
		OCR: OCR{
			Endpoint:       "https://vision.googleapis.com/v1/images:annotate",
			TimeoutSeconds: 30,
		},
		CardRef: CardRef{
			Endpoint:       "https://api.pokemontcg.io/v2/cards",
			TimeoutSeconds: 15,
			MaxCandidates:  50,
		},
		Matcher: Matcher{
			YearWeight:         0.15,
			PokemonWeight:      0.30,
			CardNumberWeight:   0.30,
			ModifierWeight:     0.10,
			SetWeight:          0.15,
			MinConfidence:      0.40,
			ReportedCandidates: 3,
		},
		Pipeline: Pipeline{
			MaxConcurrency: 4,
			LabelCropRatio: 0.22,
			LabelWidth:     600,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from path, merging over defaults. A missing file
// is not an error: defaults plus environment overrides apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// fall through to defaults
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CARDVAULT_OCR_API_KEY"); v != "" {
		cfg.OCR.APIKey = v
	}
	if v := os.Getenv("CARDVAULT_CARDREF_API_KEY"); v != "" {
		cfg.CardRef.APIKey = v
	}
	if v := os.Getenv("CARDVAULT_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("CARDVAULT_BIND"); v != "" {
		cfg.Server.Bind = v
	}
}

// Validate checks internal consistency.
func (c Config) Validate() error {
	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("config: max_upload_size must be positive")
	}
	if c.Pipeline.MaxConcurrency <= 0 {
		return fmt.Errorf("config: max_concurrency must be positive")
	}
	if c.Pipeline.LabelCropRatio <= 0 || c.Pipeline.LabelCropRatio > 1 {
		return fmt.Errorf("config: label_crop_ratio must be in (0,1]")
	}
	sum := c.Matcher.YearWeight + c.Matcher.PokemonWeight + c.Matcher.CardNumberWeight +
		c.Matcher.ModifierWeight + c.Matcher.SetWeight
	if sum <= 0 {
		return fmt.Errorf("config: matcher weights must sum to a positive value")
	}
	if math.Abs(sum-1.0) > 0.05 {
		return fmt.Errorf("config: matcher weights sum to %.2f, expected ~1.0", sum)
	}
	if c.Matcher.MinConfidence < 0 || c.Matcher.MinConfidence > 1 {
		return fmt.Errorf("config: min_confidence must be in [0,1]")
	}
	return nil
}
