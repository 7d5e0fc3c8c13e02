package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/nhle/subnotify/internal/app"
	"github.com/nhle/subnotify/internal/credential"
	"github.com/nhle/subnotify/internal/journal"
	"github.com/nhle/subnotify/internal/logging"
	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/service"
	"github.com/nhle/subnotify/internal/transport"
	"github.com/nhle/subnotify/internal/workflow"
)

// configPathEnv overrides the config file location.
const configPathEnv = "SUBNOTIFY_CONFIG"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "subnotify:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	if !stdoutIsTerminal() {
		return errors.New("stdout is not a terminal")
	}

	configPath := os.Getenv(configPathEnv)
	if configPath == "" {
		configPath = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closeLog()

	tc, err := initialTransport(cfg.Transport, logger)
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	client := service.NewClient(cfg.API.BaseURL)
	machine := workflow.New(workflow.Deps{
		Analyzer:   client,
		Dispatcher: client,
		Journal:    j,
		Logger:     logger,
		Transport:  tc,
	})

	logger.Info("starting", "api", client.BaseURL(), "mode", tc.Mode, "journal", cfg.Journal.Path)

	m := app.New(app.Options{
		Machine:    machine,
		History:    j,
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger,
		Remember: func(user, password string) error {
			return credential.Set(credential.SMTPKey(user), password)
		},
	})

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// initialTransport builds the startup transport settings from the config
// file and the keyring. A keyring failure only costs the stored password.
func initialTransport(d model.TransportDefaults, logger *slog.Logger) (transport.Config, error) {
	tc := transport.Default(d.SenderDisplayName)

	mode, err := transport.ParseMode(d.Mode)
	if err != nil {
		return tc, err
	}
	if err := tc.SetMode(mode); err != nil {
		return tc, err
	}
	if !tc.HostLocked() {
		tc.Host = d.Host
		if d.Port > 0 {
			tc.Port = d.Port
		}
	}
	tc.SenderUser = d.SenderUser

	pw, err := credential.SenderPassword(d.SenderUser)
	if err != nil {
		logger.Warn("reading stored password", "user", d.SenderUser, "error", err)
	}
	tc.SenderPassword = pw

	return tc, nil
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
