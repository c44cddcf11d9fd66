// Package ledger talks to the append-only consensus log: synchronous
// submission on the write path and mirror reconciliation on the read path.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"docanchor/internal/platform/metrics"
	"docanchor/pkg/platform/sentinel"
)

// Receipt is the consensus acknowledgment for a submitted payload. The ack
// does not carry the stored payload bytes; recovering those is the mirror
// reconciler's job.
type Receipt struct {
	TransactionID      string
	ConsensusTimestamp time.Time
}

// Submitter sends a payload to a log topic and awaits finality.
type Submitter interface {
	Submit(ctx context.Context, topic string, payload []byte) (Receipt, error)
}

// LogSubmitter produces to the consensus log through a client constructed once
// at process start and passed in by reference.
type LogSubmitter struct {
	client  *kgo.Client
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// SubmitterOption configures the LogSubmitter.
type SubmitterOption func(*LogSubmitter)

func WithSubmitterLogger(logger *slog.Logger) SubmitterOption {
	return func(s *LogSubmitter) {
		s.logger = logger
	}
}

func WithSubmitterMetrics(m *metrics.Metrics) SubmitterOption {
	return func(s *LogSubmitter) {
		s.metrics = m
	}
}

// NewLogSubmitter wraps an existing log client.
func NewLogSubmitter(client *kgo.Client, timeout time.Duration, opts ...SubmitterOption) *LogSubmitter {
	s := &LogSubmitter{client: client, timeout: timeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient builds the shared consensus log client.
func NewClient(brokers []string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create log client: %w", err)
	}
	return client, nil
}

// Submit produces payload to topic and blocks until the log acknowledges
// finality. A timeout here is ambiguous: the record may have landed without
// the ack being observed, so retrying callers must re-check the proof index
// before resubmitting.
func (s *LogSubmitter) Submit(ctx context.Context, topic string, payload []byte) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	record := &kgo.Record{Topic: topic, Value: payload}
	results := s.client.ProduceSync(ctx, record)
	if s.metrics != nil {
		s.metrics.SubmitDuration.Observe(time.Since(start).Seconds())
	}

	if err := results.FirstErr(); err != nil {
		var kafkaErr *kerr.Error
		if errors.As(err, &kafkaErr) {
			// The log answered with a non-success finality status.
			return Receipt{}, fmt.Errorf("consensus submit to %s: %w: %v", topic, sentinel.ErrRejected, err)
		}
		return Receipt{}, fmt.Errorf("consensus submit to %s: %w: %v", topic, sentinel.ErrUnavailable, err)
	}

	produced := results[0].Record
	receipt := Receipt{
		TransactionID:      fmt.Sprintf("%s/%d/%d", topic, produced.Partition, produced.Offset),
		ConsensusTimestamp: produced.Timestamp,
	}
	s.logger.InfoContext(ctx, "consensus submission acknowledged",
		"topic", topic,
		"transaction_id", receipt.TransactionID,
	)
	return receipt, nil
}
