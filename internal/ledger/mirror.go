package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"docanchor/internal/anchor/models"
	"docanchor/internal/platform/metrics"
	"docanchor/pkg/hashing"
	"docanchor/pkg/platform/sentinel"
)

// Reconciler recovers original payload bytes from the log's replicated read
// index. The submission ack never returns the stored message, so anything that
// re-derives trust from the signed payload goes through here.
type Reconciler interface {
	FindPayloadByHash(ctx context.Context, topic, contentHash string) (models.ProofMessage, error)
}

// MirrorClient queries the paginated REST replica of the log.
//
// The scan is a bounded window over the most recent messages, walked in
// descending recency. Proofs older than ScanLimit*MaxPages messages are not
// recoverable through this path even though they remain on the log; widening
// the window or indexing payloads by hash at submission time is the known
// hardening for high-volume topics.
type MirrorClient struct {
	baseURL   string
	client    *http.Client
	scanLimit int
	maxPages  int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// MirrorOption configures the MirrorClient.
type MirrorOption func(*MirrorClient)

func WithMirrorLogger(logger *slog.Logger) MirrorOption {
	return func(c *MirrorClient) {
		c.logger = logger
	}
}

func WithMirrorMetrics(m *metrics.Metrics) MirrorOption {
	return func(c *MirrorClient) {
		c.metrics = m
	}
}

// NewMirrorClient constructs a mirror read client.
func NewMirrorClient(baseURL string, scanLimit, maxPages int, timeout time.Duration, opts ...MirrorOption) *MirrorClient {
	c := &MirrorClient{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		scanLimit: scanLimit,
		maxPages:  maxPages,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// mirrorPage mirrors the read index response shape. Message payloads arrive
// base64-wrapped by the replication layer.
type mirrorPage struct {
	Messages []struct {
		ConsensusTimestamp string `json:"consensus_timestamp"`
		Message            string `json:"message"`
		SequenceNumber     int64  `json:"sequence_number"`
	} `json:"messages"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// FindPayloadByHash scans recent mirror pages for the proof message matching
// contentHash. Returns sentinel.ErrNotFound when the bounded window is
// exhausted without a match.
func (c *MirrorClient) FindPayloadByHash(ctx context.Context, topic, contentHash string) (models.ProofMessage, error) {
	next := fmt.Sprintf("/api/v1/topics/%s/messages?order=desc&limit=%d", url.PathEscape(topic), c.scanLimit)
	scanned := 0

	for page := 0; page < c.maxPages && next != ""; page++ {
		p, err := c.fetchPage(ctx, next)
		if err != nil {
			return models.ProofMessage{}, err
		}
		if len(p.Messages) == 0 {
			break
		}

		for _, m := range p.Messages {
			scanned++
			raw, err := base64.StdEncoding.DecodeString(m.Message)
			if err != nil {
				// Foreign or corrupt entry on the topic; skip.
				continue
			}
			msg, err := models.ParseProofMessage(raw)
			if err != nil {
				continue
			}
			if msg.Hash == contentHash {
				c.observeScan(scanned)
				return msg, nil
			}
		}
		next = p.Links.Next
	}

	c.observeScan(scanned)
	c.logger.DebugContext(ctx, "mirror window exhausted without match",
		"topic", topic,
		"hash_prefix", hashing.Prefix(contentHash),
		"scanned", scanned,
	)
	return models.ProofMessage{}, fmt.Errorf("mirror lookup %s: %w", hashing.Prefix(contentHash), sentinel.ErrNotFound)
}

func (c *MirrorClient) fetchPage(ctx context.Context, path string) (mirrorPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return mirrorPage{}, fmt.Errorf("build mirror request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return mirrorPage{}, fmt.Errorf("mirror query: %w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mirrorPage{}, fmt.Errorf("mirror query: %w: status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return mirrorPage{}, fmt.Errorf("read mirror body: %w", err)
	}
	var p mirrorPage
	if err := json.Unmarshal(body, &p); err != nil {
		return mirrorPage{}, fmt.Errorf("parse mirror page: %w", err)
	}
	return p, nil
}

func (c *MirrorClient) observeScan(scanned int) {
	if c.metrics != nil {
		c.metrics.MirrorScanDepth.Observe(float64(scanned))
	}
}
