package botport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Package botport is the outbound boundary between the dialogue engine and
// chat adapters. Adapters normalize transport failures into BotError codes so
// the dispatcher can decide whether a delivery is worth retrying.

// BotMessage captures adapter-agnostic identifiers for a sent message.
type BotMessage struct {
	ChatID    int64
	MessageID int
	Transport string
	Payload   string
	Meta      map[string]string
}

// BotError wraps adapter failures with retry hints and normalized codes.
type BotError struct {
	Op         string
	Code       string
	RetryAfter time.Duration
	Wrapped    error
}

func (e *BotError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// Unwrap exposes the underlying adapter error for errors.Is/As.
func (e *BotError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Wrapped
}

// NewBotError builds a BotError with the provided operation/code, preserving the wrapped error.
func NewBotError(op, code string, err error) *BotError {
	return &BotError{
		Op:      op,
		Code:    code,
		Wrapped: err,
	}
}

// IsCode determines whether err represents a BotError with the provided code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var be *BotError
	if errors.As(err, &be) {
		return be != nil && be.Code == code
	}
	return false
}

// Retryable reports whether a delivery failure may succeed on a later attempt.
// Permanent rejections (blocked bot, malformed payload) and cancelled contexts
// are not retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var be *BotError
	if !errors.As(err, &be) || be == nil {
		return true
	}
	switch be.Code {
	case "forbidden", "bad_request", "context_canceled", "context_deadline":
		return false
	default:
		return true
	}
}

// RetryAfter extracts the transport's requested backoff, zero when absent.
func RetryAfter(err error) time.Duration {
	var be *BotError
	if errors.As(err, &be) && be != nil {
		return be.RetryAfter
	}
	return 0
}

// BotPort abstracts outbound message operations for adapters (Telegram, fake, etc.).
type BotPort interface {
	SendMessage(ctx context.Context, chatID int64, text string) (BotMessage, error)
	SendTyping(ctx context.Context, chatID int64) error
}
