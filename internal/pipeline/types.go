package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Stage names of the demo pipeline. Each message type routes to the stage
// of the same name.
const (
	RawStage      = "demo.raw"
	ParsedStage   = "demo.parsed"
	EnrichedStage = "demo.enriched"
)

// RawRecord is an unparsed "key=value" payload entering the pipeline.
type RawRecord struct {
	ID         uuid.UUID
	Seq        int64
	Payload    []byte
	ReceivedAt time.Time
}

// MessageType routes RawRecords to RawStage.
func (*RawRecord) MessageType() string { return RawStage }

// Parsed is a RawRecord split into key and value.
type Parsed struct {
	ID         uuid.UUID
	Seq        int64
	Key        string
	Value      string
	ReceivedAt time.Time
}

// MessageType routes Parsed records to ParsedStage.
func (*Parsed) MessageType() string { return ParsedStage }

// Enriched is a Parsed record after the simulated enrichment work.
type Enriched struct {
	*Parsed
	Shard      int
	EnrichedAt time.Time
}

// MessageType routes Enriched records to EnrichedStage.
func (*Enriched) MessageType() string { return EnrichedStage }

// Latency is the time from ingestion to enrichment.
func (e *Enriched) Latency() time.Duration {
	return e.EnrichedAt.Sub(e.ReceivedAt)
}

// Summary is a point-in-time account of every message the pipeline has seen.
type Summary struct {
	Submitted int64 // accepted by the raw stage
	Delivered int64 // reached the sink
	// Rejected counts reject messages by reject type name.
	Rejected map[string]int64
	// AvgLatency is the mean ingestion-to-enrichment latency of delivered messages.
	AvgLatency time.Duration
}

// RejectedTotal sums Rejected over all reject types.
func (s Summary) RejectedTotal() int64 {
	var n int64
	for _, v := range s.Rejected {
		n += v
	}
	return n
}

// Settled reports whether every submitted message has been delivered or
// rejected.
func (s Summary) Settled() bool {
	return s.Delivered+s.RejectedTotal() >= s.Submitted
}
