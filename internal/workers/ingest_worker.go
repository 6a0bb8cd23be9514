package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mohammadjaf013/findlanqbot/internal/services"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

const (
	DefaultIngestStream  = "ingest:stream"
	DefaultIngestGroup   = "ingest-workers"
	IngestStatusChannel  = "ingest:status"
	ingestStreamMaxLen   = 10000
	ingestReadBlock      = 5 * time.Second
	ingestReadErrBackoff = 500 * time.Millisecond
	ingestAckTimeout     = 5 * time.Second
	defaultClaimMinIdle  = time.Minute
	defaultMaxDeliveries = 5
)

var _ services.IngestQueue = (*RedisIngestQueue)(nil)

// RedisIngestQueue appends ingest jobs to a Redis stream.
type RedisIngestQueue struct {
	rdb    *redis.Client
	stream string
}

func NewRedisIngestQueue(rdb *redis.Client, stream string) *RedisIngestQueue {
	if stream == "" {
		stream = DefaultIngestStream
	}
	return &RedisIngestQueue{rdb: rdb, stream: stream}
}

func (q *RedisIngestQueue) Enqueue(ctx context.Context, job services.IngestJob) (string, error) {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: ingestStreamMaxLen,
		Approx: true,
		Values: map[string]any{
			"file_name":   job.FileName,
			"text":        job.Text,
			"enqueued_at": strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Result()
}

// IngestWorkerPool consumes the ingest stream through a consumer group.
// Messages are acked once handled for good; transient failures stay pending
// and are reclaimed after ClaimMinIdle, up to MaxDeliveries attempts.
type IngestWorkerPool struct {
	Redis      *redis.Client
	Ingest     services.IngestService
	NumWorkers int
	Logger     *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
	ClaimMinIdle   time.Duration
	MaxDeliveries  int64

	wg sync.WaitGroup
}

func (p *IngestWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Ingest == nil {
		return errors.New("IngestWorkerPool missing dependency: Redis/Ingest must be set")
	}
	if p.Stream == "" {
		p.Stream = DefaultIngestStream
	}
	if p.Group == "" {
		p.Group = DefaultIngestGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.ClaimMinIdle <= 0 {
		p.ClaimMinIdle = defaultClaimMinIdle
	}
	if p.MaxDeliveries <= 0 {
		p.MaxDeliveries = defaultMaxDeliveries
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runConsumer(ctx, consumer)
		}()
	}
	return nil
}

// Wait blocks until every consumer has returned after ctx was cancelled.
func (p *IngestWorkerPool) Wait() { p.wg.Wait() }

func (p *IngestWorkerPool) runConsumer(ctx context.Context, consumer string) {
	var lastClaim time.Time
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if time.Since(lastClaim) >= p.ClaimMinIdle {
			p.reclaim(ctx, consumer)
			lastClaim = time.Now()
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    4,
			Block:    ingestReadBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("ingest stream read failed")
			time.Sleep(ingestReadErrBackoff)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
			}
		}
	}
}

// reclaim takes over messages left pending by a failed attempt or a consumer
// that went away, and retries them.
func (p *IngestWorkerPool) reclaim(ctx context.Context, consumer string) {
	start := "0-0"
	for ctx.Err() == nil {
		msgs, next, err := p.Redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   p.Stream,
			Group:    p.Group,
			Consumer: consumer,
			MinIdle:  p.ClaimMinIdle,
			Start:    start,
			Count:    16,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				p.Logger.WithError(err).WithField("consumer", consumer).Warn("reclaiming pending ingest jobs failed")
			}
			return
		}

		for _, msg := range msgs {
			if p.exhausted(ctx, msg.ID) {
				p.giveUp(ctx, msg)
				continue
			}
			p.handleMsg(ctx, msg)
		}
		if next == "0-0" || next == "" {
			return
		}
		start = next
	}
}

func (p *IngestWorkerPool) exhausted(ctx context.Context, id string) bool {
	pending, err := p.Redis.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: p.Stream,
		Group:  p.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return false
	}
	return pending[0].RetryCount > p.MaxDeliveries
}

func (p *IngestWorkerPool) giveUp(ctx context.Context, msg redis.XMessage) {
	fileName, _ := msg.Values["file_name"].(string)
	st := IngestStatus{JobID: msg.ID, FileName: fileName, Status: "failed", Error: "too many delivery attempts"}
	p.Logger.WithFields(logrus.Fields{
		"redis_id":  msg.ID,
		"file_name": fileName,
	}).Error("dropping ingest job after repeated failures")
	p.finish(ctx, msg, st)
}

// IngestStatus is published on IngestStatusChannel after every attempt.
type IngestStatus struct {
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
	Status   string `json:"status"`
	Chunks   int    `json:"chunks,omitempty"`
	Error    string `json:"error,omitempty"`
	// Retry is set when the job stays pending for another attempt.
	Retry    bool   `json:"retry,omitempty"`
}

func (p *IngestWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	status := processIngestMessage(ctx, p.Ingest, msg)

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":  msg.ID,
		"file_name": status.FileName,
		"status":    status.Status,
		"retry":     status.Retry,
	})
	switch {
	case status.Retry:
		log.WithField("error", status.Error).Warn("queued ingestion failed, will retry")
	case status.Error != "":
		log.WithField("error", status.Error).Error("queued ingestion failed")
	default:
		log.WithField("chunks", status.Chunks).Info("queued ingestion done")
	}

	p.finish(ctx, msg, status)
}

// finish acks settled jobs and publishes the status. It runs on a detached
// context so a shutdown in progress does not lose the ack.
func (p *IngestWorkerPool) finish(ctx context.Context, msg redis.XMessage, status IngestStatus) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ingestAckTimeout)
	defer cancel()

	if !status.Retry {
		if err := p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err(); err != nil {
			p.Logger.WithError(err).WithField("redis_id", msg.ID).Warn("ingest ack failed")
		}
	}

	payload, _ := json.Marshal(status)
	if err := p.Redis.Publish(ctx, IngestStatusChannel, string(payload)).Err(); err != nil {
		p.Logger.WithError(err).WithField("redis_id", msg.ID).Debug("ingest status publish failed")
	}
}

func processIngestMessage(ctx context.Context, ingest services.IngestService, msg redis.XMessage) IngestStatus {
	getStr := func(k string) string {
		s, _ := msg.Values[k].(string)
		return s
	}

	st := IngestStatus{JobID: msg.ID, FileName: getStr("file_name")}
	if st.FileName == "" {
		st.Status = "failed"
		st.Error = "message without file_name"
		return st
	}

	res, err := ingest.IngestText(ctx, st.FileName, getStr("text"))
	if err != nil {
		st.Status = "failed"
		st.Error = err.Error()
		st.Retry = retryable(ctx, err)
		return st
	}
	st.Status = res.Status
	st.Chunks = res.Chunks
	return st
}

// retryable reports whether another attempt could succeed. Rejected input
// never will.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	switch utils.CodeOf(err) {
	case utils.CodeInvalidArgument, utils.CodeTooLarge:
		return false
	default:
		return true
	}
}
