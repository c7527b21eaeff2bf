// Package dispatch runs rate resolution jobs through the job queue
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sig-0/cbrates/calendar"
	"github.com/sig-0/cbrates/metrics"
	"github.com/sig-0/cbrates/queue"
	"github.com/sig-0/cbrates/rates"
	"github.com/sig-0/cbrates/storage/types"
)

const (
	// DefaultQueueName is the queue jobs are published to and consumed from
	DefaultQueueName = "exchange_rates_queue"

	defaultPollWait = 30 * time.Second
	defaultMaxWait  = 5 * time.Minute
)

// DeliverFn receives the result of a consumed job
type DeliverFn func(types.RateResult)

// Orchestrator publishes rate jobs, consumes them back
// and delivers their results
type Orchestrator struct {
	provider rates.Provider
	queue    queue.Queue
	logger   *slog.Logger
	metrics  *metrics.Metrics

	queueName string
	pollWait  time.Duration
	maxWait   time.Duration

	// mux serializes jobs, one in flight per orchestrator
	mux sync.Mutex
}

// New creates a new Orchestrator instance
func New(provider rates.Provider, q queue.Queue, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:  provider,
		queue:     q,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		queueName: DefaultQueueName,
		pollWait:  defaultPollWait,
		maxWait:   defaultMaxWait,
	}

	// Apply the options
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// FetchExchangeRate resolves the rate directly, bypassing the queue
func (o *Orchestrator) FetchExchangeRate(
	ctx context.Context,
	date time.Time,
	currency,
	base types.Currency,
) (float64, error) {
	return o.provider.GetRate(ctx, date, currency, base)
}

// FetchRates publishes the query, consumes its job back from the queue,
// resolves it and hands the result to deliver, exactly once.
// Consumed jobs asking for a different query are stale leftovers
// of earlier calls, and are dropped.
// Failures before a job is consumed (broker, timeout, cancellation)
// are returned, and deliver is not called [BLOCKING]
func (o *Orchestrator) FetchRates(ctx context.Context, query types.RateQuery, deliver DeliverFn) error {
	o.mux.Lock()
	defer o.mux.Unlock()

	started := time.Now()

	if err := o.publish(ctx, query); err != nil {
		o.metrics.Job(types.KindOf(err).String(), started)

		return err
	}

	deadline := started.Add(o.maxWait)

	for {
		msg, err := o.await(ctx, deadline)
		if err != nil {
			o.logger.Error(
				"no job consumed",
				"queue", o.queueName,
				"err", err,
			)

			o.metrics.Job(types.KindOf(err).String(), started)

			return err
		}

		job, err := types.DecodeQuery(msg.Body)
		if err == nil && !job.Equal(query) {
			o.logger.Warn(
				"dropping stale rate job",
				"id", msg.ID.String(),
				"body", string(msg.Body),
			)

			continue
		}

		result := o.process(ctx, msg, job, err)

		outcome := "ok"
		if !result.IsOK() {
			outcome = result.Err.Kind.String()
		}

		o.metrics.Job(outcome, started)

		deliver(result)

		return nil
	}
}

// FetchRatesAsync runs FetchRates in the background.
// The returned channel receives exactly one result, and is then closed
func (o *Orchestrator) FetchRatesAsync(ctx context.Context, query types.RateQuery) <-chan types.RateResult {
	resCh := make(chan types.RateResult, 1)

	go func() {
		defer close(resCh)

		err := o.FetchRates(ctx, query, func(result types.RateResult) {
			resCh <- result
		})
		if err != nil {
			resCh <- types.Failed(err)
		}
	}()

	return resCh
}

// publish declares the job queue and publishes the encoded query
func (o *Orchestrator) publish(ctx context.Context, query types.RateQuery) error {
	body, err := types.EncodeQuery(query)
	if err != nil {
		return fmt.Errorf("unable to encode query: %w", err)
	}

	if err := o.queue.Declare(ctx, o.queueName); err != nil {
		return brokerError("unable to declare queue", err)
	}

	if err := o.queue.Publish(ctx, o.queueName, body); err != nil {
		return brokerError("unable to publish job", err)
	}

	o.logger.Info(
		"published rate job",
		"queue", o.queueName,
		"body", string(body),
	)

	return nil
}

// await polls the job queue in pollWait increments,
// until a job is consumed or the deadline passes
func (o *Orchestrator) await(ctx context.Context, deadline time.Time) (*queue.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, types.AsError(err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, types.NewError(
				types.KindTimedOut,
				fmt.Sprintf("no job consumed within %s", o.maxWait),
				nil,
			)
		}

		wait := o.pollWait
		if remaining < wait {
			wait = remaining
		}

		msg, err := o.queue.Consume(ctx, o.queueName, wait)

		switch {
		case err == nil:
			return msg, nil
		case errors.Is(err, queue.ErrEmpty):
			continue
		case ctx.Err() != nil:
			return nil, types.AsError(ctx.Err())
		default:
			return nil, brokerError("unable to consume job", err)
		}
	}
}

// process resolves a consumed job, given its decoded query or decode error.
// Every failure is contained in the returned result
func (o *Orchestrator) process(
	ctx context.Context,
	msg *queue.Message,
	query types.RateQuery,
	decodeErr error,
) types.RateResult {
	logger := o.logger.With("id", msg.ID.String())

	if decodeErr != nil {
		logger.Error(
			"unable to decode job",
			"body", string(msg.Body),
			"err", decodeErr,
		)

		return types.Failed(decodeErr)
	}

	logger.Info(
		"consumed rate job",
		"date", query.Date.Format(types.DateLayout),
		"currency", query.Currency,
		"base", query.Base,
	)

	var (
		previousDate = calendar.PreviousBusinessDay(query.Date)

		rate, previousRate float64
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := o.provider.GetRate(gCtx, query.Date, query.Currency, query.Base)
		if err != nil {
			return err
		}

		rate = r

		return nil
	})

	g.Go(func() error {
		r, err := o.provider.GetRate(gCtx, previousDate, query.Currency, query.Base)
		if err != nil {
			return err
		}

		previousRate = r

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(
			"unable to resolve job",
			"err", err,
		)

		return types.Failed(err)
	}

	logger.Info(
		"resolved rate job",
		"rate", rate,
		"previous_rate", previousRate,
	)

	return types.OK(rate, previousRate)
}

// brokerError classifies untyped queue failures as broker errors
func brokerError(detail string, err error) error {
	if types.KindOf(err) != types.KindUnknown {
		return err
	}

	return types.NewError(types.KindBroker, detail, err)
}
