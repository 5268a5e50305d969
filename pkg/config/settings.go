package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Settings are the runtime options resolved from the environment at startup.
// A missing optional variable falls back to its default; the required trio
// (bot token, credentials file, spreadsheet id) aborts startup when absent.
type Settings struct {
	BotToken        string
	CredentialsFile string
	SpreadsheetID   string

	DeckDBPath string

	// AnswerRetryBudget overrides the lesson config's retry budget when
	// set; 0 means the YAML value stands.
	AnswerRetryBudget int

	FlushInterval      time.Duration
	IdleSessionTimeout time.Duration
	DeckSyncInterval   time.Duration
	// AutoPracticeInterval is the sweep cadence for the auto-practice
	// timer; each user's own period decides whether the sweep nudges them.
	AutoPracticeInterval time.Duration
	SheetsMinInterval    time.Duration
}

const (
	defaultDeckDBPath           = "english_learning.db"
	defaultFlushInterval        = 30 * time.Second
	defaultIdleSessionTimeout   = 30 * time.Minute
	defaultDeckSyncInterval     = 6 * time.Hour
	defaultAutoPracticeInterval = 15 * time.Minute
	defaultSheetsMinInterval    = 1100 * time.Millisecond
)

// LoadSettings reads all runtime options from the environment.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		BotToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		CredentialsFile: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_FILE"),
		SpreadsheetID:   os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"),
		DeckDBPath:      envString("DECK_DB_PATH", defaultDeckDBPath),
	}

	if s.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if s.CredentialsFile == "" {
		return nil, fmt.Errorf("GOOGLE_SHEETS_CREDENTIALS_FILE environment variable not set")
	}
	if s.SpreadsheetID == "" {
		return nil, fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID environment variable not set")
	}

	var err error
	if s.AnswerRetryBudget, err = envInt("ANSWER_RETRY_BUDGET", 0); err != nil {
		return nil, err
	}
	if s.FlushInterval, err = envDuration("FLUSH_INTERVAL", defaultFlushInterval); err != nil {
		return nil, err
	}
	if s.IdleSessionTimeout, err = envDuration("IDLE_SESSION_TIMEOUT", defaultIdleSessionTimeout); err != nil {
		return nil, err
	}
	if s.DeckSyncInterval, err = envDuration("DECK_SYNC_INTERVAL", defaultDeckSyncInterval); err != nil {
		return nil, err
	}
	if s.AutoPracticeInterval, err = envDuration("AUTO_PRACTICE_INTERVAL", defaultAutoPracticeInterval); err != nil {
		return nil, err
	}
	if s.SheetsMinInterval, err = envDuration("SHEETS_MIN_INTERVAL", defaultSheetsMinInterval); err != nil {
		return nil, err
	}

	return s, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	// Accept either a Go duration ("90s", "2h") or a bare number of seconds.
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("invalid %s: %q must be positive", key, raw)
		}
		return d, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return time.Duration(secs) * time.Second, nil
}
