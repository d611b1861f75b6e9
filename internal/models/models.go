package models

import "time"

// Channel names used in results and history.
const (
	ChannelControl = "control"
	ChannelVoice   = "voice"
)

// UnknownReplyType is reported when a reply carries no usable type field.
const UnknownReplyType = "Unknown"

// Outcome classifies how a probe ended.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeTimeout Outcome = "timeout"
	OutcomeRefused Outcome = "refused"
	OutcomeFailed  Outcome = "failed"
)

// ProbeMessage is the liveness message sent on the control channel.
type ProbeMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// NewPing builds a ping message stamped with now in milliseconds.
func NewPing(now time.Time) ProbeMessage {
	return ProbeMessage{Type: "ping", Timestamp: now.UnixMilli()}
}

// ProbeResult captures the outcome of a single channel probe.
type ProbeResult struct {
	Channel   string    `json:"channel"`
	Target    string    `json:"target"`
	OK        bool      `json:"ok"`
	Outcome   Outcome   `json:"outcome"`
	ReplyType string    `json:"reply_type,omitempty"`
	BytesSent int       `json:"bytes_sent,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// RunReport stores the results of one smoke-test run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Results    []ProbeResult `json:"results"`
	ExitCode   int           `json:"exit_code"`
}

// Passed reports whether every probe in the run succeeded.
func (r RunReport) Passed() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if !res.OK {
			return false
		}
	}
	return true
}
