package fakeadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"englishtutorbot/pkg/ports/botport"
)

func TestSendMessageRecordsCall(t *testing.T) {
	f := &FakeAdapter{}
	msg, err := f.SendMessage(context.Background(), 1, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.MessageID == 0 || msg.ChatID != 1 || msg.Transport != "telegram" || msg.Payload != "hello" {
		t.Fatalf("unexpected bot message: %+v", msg)
	}
	call := f.LastCall("send_message")
	if call == nil || call.Text != "hello" || call.ChatID != 1 {
		t.Fatalf("recorded call mismatch: %+v", call)
	}
}

func TestFailWrapsError(t *testing.T) {
	f := &FakeAdapter{}
	f.Fail("send_message", errors.New("boom"))
	_, err := f.SendMessage(context.Background(), 1, "x")
	if err == nil {
		t.Fatalf("expected error")
	}
	var be *botport.BotError
	if !errors.As(err, &be) {
		t.Fatalf("expected BotError, got %T", err)
	}
	if be.Code != "fake_error" {
		t.Fatalf("expected fake_error, got %s", be.Code)
	}
}

func TestFailQueueStacks(t *testing.T) {
	f := &FakeAdapter{}
	f.Fail("send_message", RateLimited("send_message", time.Second))
	f.Fail("send_message", RateLimited("send_message", time.Second))

	for i := 0; i < 2; i++ {
		if _, err := f.SendMessage(context.Background(), 1, "x"); !botport.IsCode(err, "rate_limited") {
			t.Fatalf("attempt %d: expected rate_limited, got %v", i+1, err)
		}
	}
	if _, err := f.SendMessage(context.Background(), 1, "x"); err != nil {
		t.Fatalf("expected success after queue drained, got %v", err)
	}
}

func TestFailChatScopesToChat(t *testing.T) {
	f := &FakeAdapter{}
	f.FailChat(1, Forbidden("send_message"))

	if _, err := f.SendMessage(context.Background(), 2, "other"); err != nil {
		t.Fatalf("other chat must not fail, got %v", err)
	}
	if _, err := f.SendMessage(context.Background(), 1, "x"); !botport.IsCode(err, "forbidden") {
		t.Fatalf("expected forbidden for chat 1, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	f := &FakeAdapter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.SendMessage(ctx, 1, "x"); !botport.IsCode(err, "context_canceled") {
		t.Fatalf("expected context_canceled, got %v", err)
	}
}

func TestTextsFiltersByChat(t *testing.T) {
	f := &FakeAdapter{}
	_, _ = f.SendMessage(context.Background(), 1, "a")
	_, _ = f.SendMessage(context.Background(), 2, "b")
	_, _ = f.SendMessage(context.Background(), 1, "c")

	texts := f.Texts(1)
	if len(texts) != 2 || texts[0] != "a" || texts[1] != "c" {
		t.Fatalf("unexpected texts: %v", texts)
	}
}
