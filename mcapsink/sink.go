// Package mcapsink implements a logcontext.Sink that writes messages to an
// MCAP container file, deduplicating schema and channel records the way
// the in-memory publish side does.
package mcapsink

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/foxglove/mcap/go/mcap"
	"github.com/rs/zerolog"

	"github.com/odin-telemetry/telemetry-sdk/logcontext"
)

// containerWriter is the narrow slice of the mcap.Writer API this sink
// actually depends on. Isolating it behind an interface keeps the sink's
// dedup/ordering logic testable without needing a real file on disk, and
// keeps the blast radius of an mcap-go API change to this one file.
type containerWriter interface {
	WriteSchema(*mcap.Schema) error
	WriteChannel(*mcap.Channel) error
	WriteMessage(*mcap.Message) error
	Close() error
}

// Sink writes every logged message to a single MCAP file. It implements
// logcontext.Sink.
type Sink struct {
	mu     sync.Mutex
	writer containerWriter
	file   io.Closer
	logger zerolog.Logger

	closed bool

	// channelMap maps a logcontext.Channel's process-wide id to the 16-bit
	// channel id assigned in the MCAP file.
	channelMap map[uint64]uint16

	nextSchemaID  uint16
	nextChannelID uint16
}

// Create opens a new MCAP file at path for writing. The file must not
// already exist: like the reference sink, this type never truncates or
// appends to an existing container file.
func Create(path string, logger zerolog.Logger) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("mcapsink: %w: %s", logcontext.ErrPathExists, path)
		}
		return nil, fmt.Errorf("mcapsink: open %s: %w", path, err)
	}

	w, err := mcap.NewWriter(f, &mcap.WriterOptions{
		Chunked:     true,
		Compression: mcap.CompressionZSTD,
		IncludeCRC:  true,
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mcapsink: new writer: %w", err)
	}

	return newSink(w, f, logger), nil
}

func newSink(w containerWriter, f io.Closer, logger zerolog.Logger) *Sink {
	return &Sink{
		writer:        w,
		file:          f,
		logger:        logger,
		channelMap:    make(map[uint64]uint16),
		nextSchemaID:  1,
		nextChannelID: 0,
	}
}

// Log implements logcontext.Sink.
func (s *Sink) Log(channel *logcontext.Channel, data []byte, metadata logcontext.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return logcontext.ErrSinkClosed
	}

	fileChannelID, ok := s.channelMap[channel.ID()]
	if !ok {
		id, err := s.registerChannelLocked(channel)
		if err != nil {
			return err
		}
		fileChannelID = id
	}

	return s.writer.WriteMessage(&mcap.Message{
		ChannelID:   fileChannelID,
		Sequence:    metadata.Sequence,
		LogTime:     metadata.LogTime,
		PublishTime: metadata.PublishTime,
		Data:        data,
	})
}

// registerChannelLocked writes the schema (if any) and channel records for
// a channel seen for the first time, caching the assigned file channel id.
// A channel without a schema is accepted and registered with schema id 0,
// the container format's sentinel for "no schema" rather than an error.
// Callers must hold s.mu.
func (s *Sink) registerChannelLocked(channel *logcontext.Channel) (uint16, error) {
	schema := channel.Schema()
	var schemaID uint16
	if schema != nil {
		schemaID = s.nextSchemaID
		s.nextSchemaID++
		if err := s.writer.WriteSchema(&mcap.Schema{
			ID:       schemaID,
			Name:     schema.Name,
			Encoding: schema.Encoding,
			Data:     schema.Data,
		}); err != nil {
			return 0, fmt.Errorf("mcapsink: write schema: %w", err)
		}
	}

	fileChannelID := s.nextChannelID
	s.nextChannelID++
	if err := s.writer.WriteChannel(&mcap.Channel{
		ID:              fileChannelID,
		SchemaID:        schemaID,
		Topic:           channel.Topic(),
		MessageEncoding: channel.MessageEncoding(),
		Metadata:        channel.MetadataMap(),
	}); err != nil {
		return 0, fmt.Errorf("mcapsink: write channel: %w", err)
	}

	s.channelMap[channel.ID()] = fileChannelID
	s.logger.Debug().
		Str("topic", channel.Topic()).
		Uint16("mcap_channel_id", fileChannelID).
		Msg("registered channel in container file")
	return fileChannelID, nil
}

// Close finalizes the MCAP file and closes the underlying file handle. It's
// safe to call more than once; only the first call does any work.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	werr := s.writer.Close()
	ferr := s.file.Close()
	if werr != nil {
		return fmt.Errorf("mcapsink: close writer: %w", werr)
	}
	if ferr != nil {
		return fmt.Errorf("mcapsink: close file: %w", ferr)
	}
	return nil
}
