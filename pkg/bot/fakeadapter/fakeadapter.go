package fakeadapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"englishtutorbot/pkg/ports/botport"
)

// FakeAdapter implements botport.BotPort for headless tests.
type FakeAdapter struct {
	mu            sync.Mutex
	Calls         []Call
	NextMessageID int
	failQueue     map[string][]error
	failByChat    map[int64][]error
}

// Call captures a bot operation invocation.
type Call struct {
	Op        string
	ChatID    int64
	MessageID int
	Text      string
}

var _ botport.BotPort = (*FakeAdapter)(nil)

// SendMessage records a send operation and returns a synthetic BotMessage.
func (f *FakeAdapter) SendMessage(ctx context.Context, chatID int64, text string) (botport.BotMessage, error) {
	if err := ctx.Err(); err != nil {
		return botport.BotMessage{}, wrapContextError("send_message", err)
	}
	if err := f.maybeFail("send_message", chatID); err != nil {
		return botport.BotMessage{}, err
	}
	msgID := f.nextMessageID()
	f.record(Call{Op: "send_message", ChatID: chatID, MessageID: msgID, Text: text})
	return f.botMessage(chatID, msgID, text), nil
}

// SendTyping records a typing indicator call.
func (f *FakeAdapter) SendTyping(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return wrapContextError("send_typing", err)
	}
	if err := f.maybeFail("send_typing", chatID); err != nil {
		return err
	}
	f.record(Call{Op: "send_typing", ChatID: chatID})
	return nil
}

// Fail queues err to be returned by the next call for op. Multiple Fail
// calls stack, so a test can script N failures followed by success.
func (f *FakeAdapter) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failQueue == nil {
		f.failQueue = make(map[string][]error)
	}
	f.failQueue[op] = append(f.failQueue[op], err)
}

// FailChat queues err for the next call touching chatID, regardless of op.
func (f *FakeAdapter) FailChat(chatID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failByChat == nil {
		f.failByChat = make(map[int64][]error)
	}
	f.failByChat[chatID] = append(f.failByChat[chatID], err)
}

// LastCall returns the most recent call for the given op.
func (f *FakeAdapter) LastCall(op string) *Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Calls) - 1; i >= 0; i-- {
		if f.Calls[i].Op == op {
			c := f.Calls[i]
			return &c
		}
	}
	return nil
}

// CallsFor returns all recorded calls for the given op, in order.
func (f *FakeAdapter) CallsFor(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Texts returns the texts of all sent messages for a chat, in order.
func (f *FakeAdapter) Texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Calls {
		if c.Op == "send_message" && c.ChatID == chatID {
			out = append(out, c.Text)
		}
	}
	return out
}

func (f *FakeAdapter) botMessage(chatID int64, messageID int, text string) botport.BotMessage {
	return botport.BotMessage{
		ChatID:    chatID,
		MessageID: messageID,
		Transport: "telegram",
		Payload:   text,
		Meta:      map[string]string{"fake": "true"},
	}
}

func (f *FakeAdapter) nextMessageID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NextMessageID == 0 {
		f.NextMessageID = 1
	}
	id := f.NextMessageID
	f.NextMessageID++
	return id
}

func (f *FakeAdapter) record(call Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

func (f *FakeAdapter) maybeFail(op string, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if chatQueue := f.failByChat[chatID]; len(chatQueue) > 0 {
		err = chatQueue[0]
		f.failByChat[chatID] = chatQueue[1:]
	} else if queue := f.failQueue[op]; len(queue) > 0 {
		err = queue[0]
		f.failQueue[op] = queue[1:]
	}
	if err == nil {
		return nil
	}
	if _, ok := err.(*botport.BotError); ok {
		return err
	}
	return &botport.BotError{Op: op, Code: "fake_error", Wrapped: err}
}

func wrapContextError(op string, err error) error {
	switch err {
	case context.Canceled:
		return &botport.BotError{Op: op, Code: "context_canceled", Wrapped: err}
	case context.DeadlineExceeded:
		return &botport.BotError{Op: op, Code: "context_deadline", Wrapped: err}
	default:
		return &botport.BotError{Op: op, Code: "context_error", Wrapped: err}
	}
}

// Helpers to script common BotError cases in tests.
func RateLimited(op string, retry time.Duration) *botport.BotError {
	return &botport.BotError{Op: op, Code: "rate_limited", RetryAfter: retry, Wrapped: fmt.Errorf("rate limited")}
}

func Forbidden(op string) *botport.BotError {
	return &botport.BotError{Op: op, Code: "forbidden", Wrapped: fmt.Errorf("forbidden: bot was blocked by the user")}
}
