package mcapsink

import (
	"errors"
	"testing"

	"github.com/foxglove/mcap/go/mcap"
	"github.com/rs/zerolog"

	"github.com/odin-telemetry/telemetry-sdk/logcontext"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type fakeWriter struct {
	schemas  []*mcap.Schema
	channels []*mcap.Channel
	messages []*mcap.Message
	closed   bool
}

func (f *fakeWriter) WriteSchema(s *mcap.Schema) error {
	f.schemas = append(f.schemas, s)
	return nil
}

func (f *fakeWriter) WriteChannel(c *mcap.Channel) error {
	f.channels = append(f.channels, c)
	return nil
}

func (f *fakeWriter) WriteMessage(m *mcap.Message) error {
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestSink() (*Sink, *fakeWriter) {
	fw := &fakeWriter{}
	return newSink(fw, nopCloser{}, zerolog.Nop()), fw
}

func schemaChannel(topic string) *logcontext.Channel {
	return logcontext.NewChannel(topic, "json", &logcontext.Schema{
		Name:     "demo",
		Encoding: "jsonschema",
		Data:     []byte(`{}`),
	}, nil)
}

func TestSinkRegistersSchemaAndChannelOnce(t *testing.T) {
	sink, fw := newTestSink()
	ch := schemaChannel("topic")

	if err := sink.Log(ch, []byte("a"), logcontext.Metadata{Sequence: 1, LogTime: 1, PublishTime: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Log(ch, []byte("b"), logcontext.Metadata{Sequence: 2, LogTime: 2, PublishTime: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fw.schemas) != 1 {
		t.Fatalf("expected exactly one schema record, got %d", len(fw.schemas))
	}
	if len(fw.channels) != 1 {
		t.Fatalf("expected exactly one channel record, got %d", len(fw.channels))
	}
	if len(fw.messages) != 2 {
		t.Fatalf("expected two message records, got %d", len(fw.messages))
	}
	if fw.messages[0].ChannelID != fw.channels[0].ID {
		t.Fatalf("message channel id %d doesn't match registered channel id %d", fw.messages[0].ChannelID, fw.channels[0].ID)
	}
}

func TestSinkAcceptsSchemalessChannel(t *testing.T) {
	sink, fw := newTestSink()
	ch := logcontext.NewChannel("no-schema", "json", nil, nil)

	if err := sink.Log(ch, []byte("a"), logcontext.Metadata{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fw.schemas) != 0 {
		t.Fatalf("expected no schema record for a schemaless channel, got %d", len(fw.schemas))
	}
	if len(fw.channels) != 1 {
		t.Fatalf("expected exactly one channel record, got %d", len(fw.channels))
	}
	if fw.channels[0].SchemaID != 0 {
		t.Fatalf("expected schema id 0 sentinel for a schemaless channel, got %d", fw.channels[0].SchemaID)
	}
}

func TestSinkLogAfterCloseFails(t *testing.T) {
	sink, _ := newTestSink()
	ch := schemaChannel("topic")
	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected error closing: %v", err)
	}
	err := sink.Log(ch, []byte("a"), logcontext.Metadata{})
	if !errors.Is(err, logcontext.ErrSinkClosed) {
		t.Fatalf("expected ErrSinkClosed, got %v", err)
	}
}

func TestSinkCloseIsIdempotent(t *testing.T) {
	sink, fw := newTestSink()
	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
	if !fw.closed {
		t.Fatalf("expected underlying writer to be closed")
	}
}

func TestSinkDistinctChannelsGetDistinctIDs(t *testing.T) {
	sink, fw := newTestSink()
	a := schemaChannel("a")
	b := schemaChannel("b")

	sink.Log(a, []byte("x"), logcontext.Metadata{})
	sink.Log(b, []byte("y"), logcontext.Metadata{})

	if len(fw.channels) != 2 {
		t.Fatalf("expected two distinct channel records, got %d", len(fw.channels))
	}
	if fw.channels[0].ID == fw.channels[1].ID {
		t.Fatalf("expected distinct channel ids")
	}
}
