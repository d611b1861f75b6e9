package probe

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voipcheck/internal/config"
	"voipcheck/internal/logger"
	"voipcheck/internal/models"
)

// ControlProbe sends one ping over the secure WebSocket control channel and
// waits a bounded time for a single reply.
type ControlProbe struct {
	URL          string
	ReplyTimeout time.Duration
	DialTimeout  time.Duration
	// InsecureSkipVerify accepts any server certificate, including
	// self-signed ones. Only meant for local diagnostics.
	InsecureSkipVerify bool
	Header             http.Header

	now func() time.Time
	log zerolog.Logger
}

// NewControlProbe configures a control probe from cfg.
func NewControlProbe(cfg config.Config, userAgent string) *ControlProbe {
	header := http.Header{}
	if userAgent != "" {
		header.Set("User-Agent", userAgent)
	}
	return &ControlProbe{
		URL:                cfg.ControlURL,
		ReplyTimeout:       cfg.ReplyTimeout(),
		DialTimeout:        cfg.DialTimeout(),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Header:             header,
		now:                time.Now,
		log:                logger.WithComponent("control-probe"),
	}
}

// Run executes the probe. The connection is closed before Run returns.
func (p *ControlProbe) Run(ctx context.Context, rep Reporter) models.ProbeResult {
	rep = reporterOrNop(rep)
	res := models.ProbeResult{
		Channel: models.ChannelControl,
		Target:  p.URL,
	}

	rep.Step(MarkStart, "Testing WebSocket connection...")
	rep.Step(MarkDetail, "Connecting to: %s", p.URL)

	conn, err := p.dial(ctx)
	if err != nil {
		p.fail(&res, err)
		if res.Outcome == models.OutcomeRefused {
			rep.Step(MarkFail, "Connection refused - is the server running?")
		} else {
			rep.Step(MarkFail, "WebSocket test failed: %v", err)
		}
		return res
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	rep.Step(MarkOK, "WebSocket connected successfully!")

	started := p.now()
	if err := p.sendPing(conn, started); err != nil {
		p.fail(&res, ctxErr(ctx, err))
		rep.Step(MarkFail, "WebSocket test failed: %v", res.Error)
		return res
	}
	rep.Step(MarkSent, "Sent ping message")

	replyType, err := p.awaitReply(conn)
	if err != nil {
		if isTimeout(err) && ctx.Err() == nil {
			res.Outcome = models.OutcomeTimeout
			res.Error = fmt.Sprintf("no reply within %s", p.ReplyTimeout)
			res.CheckedAt = p.now().UTC()
			p.log.Warn().Str("target", p.URL).Dur("timeout", p.ReplyTimeout).Msg("control reply timed out")
			rep.Step(MarkWarn, "No response received (timeout)")
			rep.Step(MarkDetail, "Server is accepting connections but not responding")
			return res
		}
		p.fail(&res, ctxErr(ctx, err))
		rep.Step(MarkFail, "WebSocket test failed: %v", res.Error)
		return res
	}

	res.OK = true
	res.Outcome = models.OutcomePassed
	res.ReplyType = replyType
	res.LatencyMs = p.now().Sub(started).Milliseconds()
	res.CheckedAt = p.now().UTC()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	rep.Step(MarkReceived, "Received response: %s", replyType)
	rep.Step(MarkOK, "WebSocket test PASSED")
	return res
}

func (p *ControlProbe) dial(ctx context.Context) (*websocket.Conn, error) {
	netDialer := &net.Dialer{Timeout: p.DialTimeout}
	dialer := websocket.Dialer{
		NetDialContext:   netDialer.DialContext,
		HandshakeTimeout: p.DialTimeout,
	}
	if p.InsecureSkipVerify {
		p.log.Warn().Str("target", p.URL).Msg("TLS certificate verification disabled")
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in
	}

	conn, _, err := dialer.DialContext(ctx, p.URL, p.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", p.URL, err)
	}
	p.log.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("control channel connected")
	return conn, nil
}

func (p *ControlProbe) sendPing(conn *websocket.Conn, now time.Time) error {
	payload, err := json.Marshal(models.NewPing(now))
	if err != nil {
		return fmt.Errorf("encode ping: %w", err)
	}
	if p.DialTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(p.DialTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send ping: %w", err)
	}
	return nil
}

// awaitReply reads exactly one message and returns its type field.
func (p *ControlProbe) awaitReply(conn *websocket.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(p.ReplyTimeout)); err != nil {
		return "", fmt.Errorf("set read deadline: %w", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	p.log.Debug().Int("bytes", len(data)).Msg("control reply received")
	return ReplyType(data)
}

func (p *ControlProbe) fail(res *models.ProbeResult, err error) {
	res.OK = false
	res.Outcome = classify(err)
	res.Error = err.Error()
	res.CheckedAt = p.now().UTC()
	p.log.Warn().Err(err).Str("target", p.URL).Str("outcome", string(res.Outcome)).Msg("control probe failed")
}

// ReplyType decodes a JSON object and returns its "type" field, or
// models.UnknownReplyType when the field is absent or null.
func ReplyType(data []byte) (string, error) {
	var reply map[string]any
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if reply == nil {
		return "", errors.New("decode reply: not a JSON object")
	}
	switch v := reply["type"].(type) {
	case nil:
		return models.UnknownReplyType, nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ctxErr prefers the cancellation cause over the closed-connection error it
// produces.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w (%v)", ctx.Err(), err)
	}
	return err
}
