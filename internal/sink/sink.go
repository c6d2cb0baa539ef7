package sink

import (
	"encoding/json"
	"io"
	"sync"

	"cryptocrawl/logger"
	"cryptocrawl/models"
)

// Sink receives every crawled message envelope. Implementations must be safe
// for concurrent writers.
type Sink interface {
	Write(msg *models.Message)
}

// WriterSink streams envelopes as JSON lines to an io.Writer.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
	log *logger.Entry
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{
		enc: json.NewEncoder(w),
		log: logger.GetLogger().WithComponent("writer_sink"),
	}
}

func (s *WriterSink) Write(msg *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(msg); err != nil {
		s.log.WithError(err).Warn("failed to encode message")
	}
}

// ChannelSink hands envelopes to a bounded channel for in-process consumers.
// A full channel drops the message rather than stalling the read loop.
type ChannelSink struct {
	ch  chan *models.Message
	log *logger.Entry
}

func NewChannelSink(capacity int) *ChannelSink {
	if capacity <= 0 {
		capacity = 1024
	}
	return &ChannelSink{
		ch:  make(chan *models.Message, capacity),
		log: logger.GetLogger().WithComponent("channel_sink"),
	}
}

func (s *ChannelSink) Write(msg *models.Message) {
	select {
	case s.ch <- msg:
	default:
		s.log.WithFields(logger.Fields{
			"exchange": msg.Exchange,
			"type":     msg.MsgType,
		}).Warn("channel full, dropping message")
	}
}

// Messages returns the consumer side of the sink.
func (s *ChannelSink) Messages() <-chan *models.Message {
	return s.ch
}
