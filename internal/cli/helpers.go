package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jaa/soundgrab/internal/adapters/spotdl"
	"github.com/jaa/soundgrab/internal/adapters/ytdlp"
	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/engine"
)

func loadConfig(app *AppContext) (config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg, err := config.Load(config.LoadOptions{
		ExplicitPath: strings.TrimSpace(app.Opts.ConfigPath),
		WorkingDir:   wd,
	})
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func selectorFor(cfg config.Config) engine.Selector {
	return engine.Selector{
		Spotify: spotdl.New(cfg.Tools),
		Generic: ytdlp.New(cfg.Tools),
	}
}

func isTTY(file *os.File) bool {
	stat, err := file.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
