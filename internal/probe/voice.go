package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"voipcheck/internal/config"
	"voipcheck/internal/logger"
	"voipcheck/internal/models"
)

// VoicePayload is the datagram sent to the voice port.
var VoicePayload = []byte("PING")

// VoiceProbe sends a single datagram to the voice port. Success only means
// the local send completed; no reply is read.
type VoiceProbe struct {
	Address string
	Payload []byte

	now func() time.Time
	log zerolog.Logger
}

// NewVoiceProbe configures a voice probe from cfg.
func NewVoiceProbe(cfg config.Config) *VoiceProbe {
	return &VoiceProbe{
		Address: cfg.VoiceAddress,
		Payload: VoicePayload,
		now:     time.Now,
		log:     logger.WithComponent("voice-probe"),
	}
}

// Run executes the probe. The socket is closed before Run returns.
func (p *VoiceProbe) Run(ctx context.Context, rep Reporter) models.ProbeResult {
	rep = reporterOrNop(rep)
	res := models.ProbeResult{
		Channel: models.ChannelVoice,
		Target:  p.Address,
	}

	rep.Step(MarkStart, "Testing UDP voice socket...")
	rep.Step(MarkDetail, "Target: %s", p.Address)

	started := p.now()
	n, err := p.send(ctx, rep)
	res.CheckedAt = p.now().UTC()
	if err != nil {
		res.Outcome = classify(err)
		res.Error = err.Error()
		p.log.Warn().Err(err).Str("target", p.Address).Msg("voice probe failed")
		rep.Step(MarkFail, "UDP test failed: %v", err)
		return res
	}

	res.OK = true
	res.Outcome = models.OutcomePassed
	res.BytesSent = n
	res.LatencyMs = p.now().Sub(started).Milliseconds()
	rep.Step(MarkOK, "UDP test PASSED (send only)")
	return res
}

func (p *VoiceProbe) send(ctx context.Context, rep Reporter) (int, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", p.Address)
	if err != nil {
		return 0, fmt.Errorf("open udp socket: %w", err)
	}
	defer conn.Close()
	rep.Step(MarkOK, "UDP socket created successfully!")

	n, err := conn.Write(p.Payload)
	if err != nil {
		return n, fmt.Errorf("send datagram: %w", err)
	}
	if n != len(p.Payload) {
		return n, fmt.Errorf("send datagram: short write %d of %d bytes", n, len(p.Payload))
	}
	p.log.Debug().Str("local_addr", conn.LocalAddr().String()).Int("bytes", n).Msg("voice datagram sent")
	rep.Step(MarkSent, "Sent test UDP packet")
	return n, nil
}
