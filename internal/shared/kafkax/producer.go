package kafkax

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer writes to a single topic.
type Producer struct {
	mu        sync.Mutex
	w         *kafka.Writer
	cfg       ProducerConfig
	lastReset time.Time
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	WriteTimeout time.Duration
}

func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	p := &Producer{cfg: cfg}
	p.w = newWriter(cfg)
	return p
}

func newWriter(cfg ProducerConfig) *kafka.Writer {
	// kafka-go caches broker metadata; a short TTL lets the writer recover
	// from broker address changes without a restart.
	tr := &kafka.Transport{
		ClientID:    cfg.ClientID,
		MetadataTTL: 10 * time.Second,
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Transport:              tr,
	}
}

func (p *Producer) Topic() string { return p.cfg.Topic }

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return nil
	}
	err := p.w.Close()
	p.w = nil
	return err
}

// Produce writes one record and waits for the broker ack, bounded by the
// configured write timeout.
func (p *Producer) Produce(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	write := func() error {
		p.mu.Lock()
		w := p.w
		p.mu.Unlock()
		if w == nil {
			return ErrClosed
		}
		cctx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
		defer cancel()
		return w.WriteMessages(cctx, kafka.Message{Key: key, Value: value, Headers: headers})
	}

	if err := write(); err != nil {
		// Stale metadata usually shows up as one of these; recreate the writer and retry once.
		if shouldReset(err) && p.resetOnce() {
			return write()
		}
		return err
	}
	return nil
}

var resetSuspects = []string{
	"dial tcp",
	"connection refused",
	"i/o timeout",
	"eof",
	"broken pipe",
	"transport is closing",
	"not leader",
	"unknown broker",
	"failed to dial",
}

func shouldReset(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, sub := range resetSuspects {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// resetOnce recreates the writer at most every two seconds and reports whether it did.
func (p *Producer) resetOnce() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil || time.Since(p.lastReset) < 2*time.Second {
		return false
	}
	_ = p.w.Close()
	p.w = newWriter(p.cfg)
	p.lastReset = time.Now()
	return true
}
