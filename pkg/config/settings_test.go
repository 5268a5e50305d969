package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS_FILE", "creds.json")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "sheet-id")
}

func TestLoadSettingsDefaults(t *testing.T) {
	setRequiredEnv(t)

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.DeckDBPath != defaultDeckDBPath {
		t.Fatalf("unexpected db path: %q", s.DeckDBPath)
	}
	if s.FlushInterval != defaultFlushInterval || s.IdleSessionTimeout != defaultIdleSessionTimeout {
		t.Fatalf("unexpected intervals: %+v", s)
	}
	if s.SheetsMinInterval != defaultSheetsMinInterval {
		t.Fatalf("unexpected sheets interval: %v", s.SheetsMinInterval)
	}
}

func TestLoadSettingsRequiresToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	if _, err := LoadSettings(); err == nil {
		t.Fatalf("expected error for missing bot token")
	}
}

func TestEnvDurationFormats(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("FLUSH_INTERVAL", "90s")
	t.Setenv("IDLE_SESSION_TIMEOUT", "1200")
	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.FlushInterval != 90*time.Second {
		t.Fatalf("expected 90s, got %v", s.FlushInterval)
	}
	if s.IdleSessionTimeout != 1200*time.Second {
		t.Fatalf("expected bare seconds accepted, got %v", s.IdleSessionTimeout)
	}
}

func TestAnswerRetryBudgetOverride(t *testing.T) {
	setRequiredEnv(t)

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.AnswerRetryBudget != 0 {
		t.Fatalf("expected no override by default, got %d", s.AnswerRetryBudget)
	}

	t.Setenv("ANSWER_RETRY_BUDGET", "5")
	s, err = LoadSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.AnswerRetryBudget != 5 {
		t.Fatalf("expected override 5, got %d", s.AnswerRetryBudget)
	}

	t.Setenv("ANSWER_RETRY_BUDGET", "-1")
	if _, err := LoadSettings(); err == nil {
		t.Fatalf("expected error for negative budget")
	}
}

func TestEnvDurationRejectsGarbage(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FLUSH_INTERVAL", "soon")
	if _, err := LoadSettings(); err == nil {
		t.Fatalf("expected error for unparseable duration")
	}
}
