package kafkax

import (
	"context"
	"errors"
	"testing"
)

func TestShouldReset(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp 10.0.0.1:9092: connection refused"), true},
		{errors.New("[6] Not Leader For Partition"), true},
		{errors.New("message too large"), false},
	}
	for _, c := range cases {
		if got := shouldReset(c.err); got != c.want {
			t.Fatalf("shouldReset(%v): expected %v, got %v", c.err, c.want, got)
		}
	}
}

func TestClosedClientsReturnErrClosed(t *testing.T) {
	p := NewProducer(ProducerConfig{Brokers: []string{"localhost:1"}, Topic: "t"})
	if err := p.Close(); err != nil {
		t.Fatalf("close producer: %v", err)
	}
	if err := p.Produce(context.Background(), nil, []byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	c := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:1"}, Topic: "t", GroupID: "g"})
	if err := c.Close(); err != nil {
		t.Fatalf("close consumer: %v", err)
	}
	if _, err := c.FetchMessage(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := c.CommitMessages(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
