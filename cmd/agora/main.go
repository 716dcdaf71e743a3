package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"agora/internal/config"
	"agora/internal/db"
	"agora/internal/logging"
	"agora/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config at %s: %v\n", config.ConfigPath(), err)
		os.Exit(1)
	}

	logger := zerolog.Nop()
	if dir, err := db.DataDir(); err == nil {
		if l, closeLog, err := logging.Open(dir, cfg.Log.Level); err == nil {
			logger = l
			defer closeLog()
		}
	}

	store, err := db.Open()
	if err != nil {
		// The client works without the archive; history and replay are
		// just unavailable.
		logger.Warn().Err(err).Msg("local archive unavailable")
		store = nil
	} else {
		defer store.Close()
	}

	p := tea.NewProgram(ui.New(cfg, store, logger), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
