package logcontext

// Metadata accompanies every message delivered to a Sink.
type Metadata struct {
	// Sequence is a per-channel, monotonically increasing counter starting
	// at 1. It's assigned by the channel unless the caller overrides it via
	// PartialMetadata.
	Sequence uint32

	// LogTime is the nanosecond timestamp at which the message was logged.
	LogTime uint64

	// PublishTime is the nanosecond timestamp at which the message was
	// produced upstream of the SDK. Defaults to LogTime when not supplied.
	PublishTime uint64
}

// PartialMetadata lets a caller override any subset of the fields Channel.Log
// would otherwise fill in automatically.
type PartialMetadata struct {
	Sequence    *uint32
	LogTime     *uint64
	PublishTime *uint64
}

// resolve fills in a complete Metadata value, calling nextSeq to obtain a
// sequence number when one wasn't supplied.
func (p PartialMetadata) resolve(nextSeq func() uint32) Metadata {
	var m Metadata
	if p.Sequence != nil {
		m.Sequence = *p.Sequence
	} else {
		m.Sequence = nextSeq()
	}
	if p.LogTime != nil {
		m.LogTime = *p.LogTime
	} else {
		m.LogTime = nowNanos()
	}
	if p.PublishTime != nil {
		m.PublishTime = *p.PublishTime
	} else {
		// If the caller didn't supply a publish time, it defaults to the
		// resolved log time, not a fresh timestamp.
		m.PublishTime = m.LogTime
	}
	return m
}
