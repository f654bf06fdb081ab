package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestEncode(t *testing.T) {
	msg, err := Encode(Event{
		Key:   "build-1",
		Value: map[string]int{"documents": 3},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(msg.Key) != "build-1" {
		t.Errorf("key = %q", msg.Key)
	}
	var decoded map[string]int
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if decoded["documents"] != 3 {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	if _, err := Encode(Event{Key: "k", Value: make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}
}

type memWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, "index.complete")
	if err := p.Publish(context.Background(), Event{Key: "b1", Value: map[string]string{"build_id": "b1"}}); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "b1" {
		t.Fatalf("messages = %+v", w.msgs)
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Fatal("writer not closed")
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := NewProducerWithWriter(&memWriter{err: boom}, "index.complete")
	err := p.Publish(context.Background(), Event{Key: "b1", Value: 1})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "index.complete") {
		t.Fatalf("Publish = %v", err)
	}
}
