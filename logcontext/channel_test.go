package logcontext

import (
	"errors"
	"sync"
	"testing"
)

type recordedLog struct {
	channel  *Channel
	msg      []byte
	metadata Metadata
}

type recordingSink struct {
	mu       sync.Mutex
	recorded []recordedLog
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (s *recordingSink) Log(channel *Channel, data []byte, metadata Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.recorded = append(s.recorded, recordedLog{channel: channel, msg: cp, metadata: metadata})
	return nil
}

func (s *recordingSink) snapshot() []recordedLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedLog, len(s.recorded))
	copy(out, s.recorded)
	return out
}

type errorSink struct{}

func (errorSink) Log(channel *Channel, data []byte, metadata Metadata) error {
	return errors.New("errorSink always fails")
}

func newTestChannel() *Channel {
	return NewChannel("topic", "message_encoding", &Schema{
		Name:     "name",
		Encoding: "encoding",
		Data:     []byte(`{"type":"object"}`),
	}, map[string]string{"key": "value"})
}

func TestChannelNextSequenceStartsAtOne(t *testing.T) {
	ch := newTestChannel()
	if got := ch.nextSequence(); got != 1 {
		t.Fatalf("first sequence = %d, want 1", got)
	}
	if got := ch.nextSequence(); got != 2 {
		t.Fatalf("second sequence = %d, want 2", got)
	}
}

func TestChannelLogNoSinksIsNoop(t *testing.T) {
	ch := newTestChannel()
	// Should not panic or block; there's nothing attached to receive it.
	ch.Log([]byte("hello"), PartialMetadata{})
}

func TestChannelLogFillsDefaultMetadata(t *testing.T) {
	ch := newTestChannel()
	sink := newRecordingSink()
	ch.sinks.add(sink)

	before := nowNanos()
	ch.Log([]byte("hello"), PartialMetadata{})
	after := nowNanos()

	rec := sink.snapshot()
	if len(rec) != 1 {
		t.Fatalf("expected 1 recorded message, got %d", len(rec))
	}
	md := rec[0].metadata
	if md.LogTime < before || md.LogTime > after {
		t.Fatalf("log_time %d not within [%d, %d]", md.LogTime, before, after)
	}
	if md.PublishTime != md.LogTime {
		t.Fatalf("publish_time %d != log_time %d", md.PublishTime, md.LogTime)
	}
	if md.Sequence == 0 {
		t.Fatalf("expected nonzero sequence")
	}
}

func TestChannelLogHonorsPartialMetadata(t *testing.T) {
	ch := newTestChannel()
	sink := newRecordingSink()
	ch.sinks.add(sink)

	seq := uint32(42)
	logTime := uint64(1000)
	pubTime := uint64(500)
	ch.Log([]byte("hello"), PartialMetadata{Sequence: &seq, LogTime: &logTime, PublishTime: &pubTime})

	rec := sink.snapshot()
	md := rec[0].metadata
	if md.Sequence != 42 || md.LogTime != 1000 || md.PublishTime != 500 {
		t.Fatalf("unexpected metadata: %+v", md)
	}
}

func TestChannelLogContinuesAfterSinkError(t *testing.T) {
	ch := newTestChannel()
	ch.sinks.add(errorSink{})
	recorder := newRecordingSink()
	ch.sinks.add(recorder)

	ch.Log([]byte("hello"), PartialMetadata{})

	if len(recorder.snapshot()) != 1 {
		t.Fatalf("expected the second sink to still receive the message")
	}
}

func TestChannelCloseIsIdempotent(t *testing.T) {
	ch := newTestChannel()
	ch.Close()
	ch.Close()
}
