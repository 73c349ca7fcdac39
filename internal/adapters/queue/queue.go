// Package queue is a Redis-backed deferred task executor. Tasks are
// independent, retryable units: a failing task is requeued with a fixed
// delay until its retry budget runs out, then parked on a dead list for
// operator attention.
package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trustpilot_fetcher/internal/adapters/observability"
)

const (
	readyKey   = "tasks:ready"
	delayedKey = "tasks:delayed"
	deadKey    = "tasks:dead"
)

type task struct {
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	DelaySec   int             `json:"delay_sec"`
}

type Queue struct {
	c   *redis.Client
	log zerolog.Logger
}

func New(addr, pass string, db int, log zerolog.Logger) *Queue {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), log)
}

func NewWithClient(c *redis.Client, log zerolog.Logger) *Queue {
	return &Queue{c: c, log: log}
}

func (q *Queue) Enqueue(ctx context.Context, name string, args any, retryCount int, retryDelay time.Duration) error {
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(task{
		Name:       name,
		Args:       b,
		MaxRetries: retryCount,
		DelaySec:   int(retryDelay.Seconds()),
	})
	if err != nil {
		return err
	}
	if err := q.c.LPush(ctx, readyKey, payload).Err(); err != nil {
		return err
	}
	observability.ObserveQueue(name, "enqueued")
	return nil
}

// Handler executes one task's payload. A nil return acknowledges the task.
type Handler func(ctx context.Context, args json.RawMessage) error

type Worker struct {
	q        *Queue
	handlers map[string]Handler
	log      zerolog.Logger
}

func NewWorker(q *Queue, log zerolog.Logger) *Worker {
	return &Worker{q: q, handlers: map[string]Handler{}, log: log}
}

func (w *Worker) Handle(name string, h Handler) { w.handlers[name] = h }

// Run consumes tasks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := w.PromoteDue(ctx); err != nil {
			w.log.Error().Err(err).Msg("promote delayed tasks failed")
		}
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("queue poll failed")
		}
		if !processed {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOne pops and executes a single ready task. It reports whether a
// task was available; handler failures are retry-scheduled, not returned.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	raw, err := w.q.c.RPop(ctx, readyKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var t task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		w.log.Error().Err(err).Msg("malformed task payload dropped")
		return true, nil
	}

	h, ok := w.handlers[t.Name]
	if !ok {
		w.log.Error().Str("task", t.Name).Msg("no handler registered, parking task")
		return true, w.park(ctx, raw, t.Name)
	}

	if err := h(ctx, t.Args); err != nil {
		t.Attempts++
		if t.Attempts >= t.MaxRetries {
			w.log.Error().Err(err).Str("task", t.Name).Int("attempts", t.Attempts).
				Msg("task permanently failed")
			observability.ObserveQueue(t.Name, "dead")
			b, _ := json.Marshal(t)
			return true, w.q.c.LPush(ctx, deadKey, b).Err()
		}
		w.log.Warn().Err(err).Str("task", t.Name).Int("attempts", t.Attempts).
			Msg("task failed, scheduling retry")
		observability.ObserveQueue(t.Name, "retried")
		return true, w.delay(ctx, t)
	}

	observability.ObserveQueue(t.Name, "done")
	return true, nil
}

func (w *Worker) delay(ctx context.Context, t task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	notBefore := time.Now().Add(time.Duration(t.DelaySec) * time.Second).Unix()
	return w.q.c.ZAdd(ctx, delayedKey, redis.Z{Score: float64(notBefore), Member: string(b)}).Err()
}

func (w *Worker) park(ctx context.Context, raw, name string) error {
	observability.ObserveQueue(name, "dead")
	return w.q.c.LPush(ctx, deadKey, raw).Err()
}

// PromoteDue moves delayed tasks whose backoff has elapsed back onto the
// ready list.
func (w *Worker) PromoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := w.q.c.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil || len(due) == 0 {
		return err
	}
	pipe := w.q.c.TxPipeline()
	for _, m := range due {
		pipe.ZRem(ctx, delayedKey, m)
		pipe.LPush(ctx, readyKey, m)
	}
	_, err = pipe.Exec(ctx)
	return err
}
