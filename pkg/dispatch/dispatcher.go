package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"englishtutorbot/pkg/ports/botport"
)

// Outbound is one logical reply to a user. Parts are delivered in order;
// the bundle is dropped as a whole if delivery keeps failing.
type Outbound struct {
	UserID int64
	Parts  []string
}

const (
	defaultQueueDepth = 32
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Dispatcher serializes outgoing messages per user. Each user gets a lazy
// worker goroutine draining a FIFO queue, so one slow chat never blocks
// another.
type Dispatcher struct {
	port       botport.BotPort
	maxRetries int
	retryDelay time.Duration

	mu      sync.Mutex
	queues  map[int64]chan Outbound
	wg      sync.WaitGroup
	closed  bool
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewDispatcher(port botport.BotPort) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		port:       port,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		queues:     make(map[int64]chan Outbound),
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// Enqueue queues a bundle for delivery. It returns false when the
// dispatcher is shut down or the user's queue is full; the caller's state
// must not depend on delivery either way.
func (d *Dispatcher) Enqueue(msg Outbound) bool {
	if len(msg.Parts) == 0 {
		return true
	}

	// The send stays under the lock: Shutdown closes queues while holding
	// it, so a send can never race the close. The queue is buffered and the
	// default arm keeps the send from ever blocking here.
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		log.Printf("[Enqueue] Dispatcher closed, dropping %d part(s) for user %d", len(msg.Parts), msg.UserID)
		return false
	}
	queue, ok := d.queues[msg.UserID]
	if !ok {
		queue = make(chan Outbound, defaultQueueDepth)
		d.queues[msg.UserID] = queue
		d.wg.Add(1)
		go d.drain(msg.UserID, queue)
	}

	select {
	case queue <- msg:
		return true
	default:
		log.Printf("[Enqueue] Queue full for user %d, dropping %d part(s)", msg.UserID, len(msg.Parts))
		return false
	}
}

func (d *Dispatcher) drain(userID int64, queue chan Outbound) {
	defer d.wg.Done()
	for {
		select {
		case msg, ok := <-queue:
			if !ok {
				return
			}
			d.deliver(msg)
		case <-d.baseCtx.Done():
			// Flush what is already queued before exiting.
			for {
				select {
				case msg := <-queue:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

// deliver sends every part of the bundle in order. A part that fails after
// the retry budget drops the whole remaining bundle so later parts never
// arrive without their predecessors.
func (d *Dispatcher) deliver(msg Outbound) {
	for i, part := range msg.Parts {
		if err := d.sendWithRetry(msg.UserID, part); err != nil {
			log.Printf("[deliver] Dropping bundle for user %d at part %d/%d: %v",
				msg.UserID, i+1, len(msg.Parts), err)
			return
		}
	}
}

func (d *Dispatcher) sendWithRetry(userID int64, text string) error {
	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		_, err := d.port.SendMessage(d.baseCtx, userID, text)
		if err == nil {
			return nil
		}
		lastErr = err

		if !botport.Retryable(err) {
			return err
		}

		delay := d.retryDelay * time.Duration(attempt)
		if ra := botport.RetryAfter(err); ra > delay {
			delay = ra
		}
		log.Printf("[sendWithRetry] Attempt %d/%d for user %d failed: %v, retrying in %v",
			attempt, d.maxRetries, userID, err, delay)

		select {
		case <-time.After(delay):
		case <-d.baseCtx.Done():
			return d.baseCtx.Err()
		}
	}
	return lastErr
}

// Typing shows the typing indicator, best effort. Failures are routine
// while grading proceeds, so they are only logged.
func (d *Dispatcher) Typing(userID int64) {
	ctx, cancel := context.WithTimeout(d.baseCtx, 3*time.Second)
	defer cancel()
	if err := d.port.SendTyping(ctx, userID); err != nil {
		log.Printf("[Typing] Failed for user %d: %v", userID, err)
	}
}

// Shutdown stops accepting new messages and waits for queued ones to flush,
// up to timeout.
func (d *Dispatcher) Shutdown(timeout time.Duration) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, queue := range d.queues {
		close(queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("[Shutdown] Timed out after %v waiting for delivery workers", timeout)
	}
	d.cancel()
}
