package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voipcheck/internal/config"
	"voipcheck/internal/models"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type recordingReporter struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingReporter) Step(marker, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf("[%s] ", marker)+fmt.Sprintf(format, args...))
}

func (r *recordingReporter) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// newControlServer starts a TLS WebSocket server with a self-signed
// certificate. reply is called with the first inbound message; a nil return
// keeps the connection silent until the client goes away.
func newControlServer(t *testing.T, reply func(msg []byte) []byte) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/control" {
			http.NotFound(w, r)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if out := reply(msg); out != nil {
			_ = conn.WriteMessage(websocket.TextMessage, out)
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, "wss" + strings.TrimPrefix(srv.URL, "https") + "/control"
}

func newTestControlProbe(url string) *ControlProbe {
	cfg := config.DefaultConfig()
	cfg.ControlURL = url
	cfg.InsecureSkipVerify = true
	p := NewControlProbe(cfg, "voipcheck/test")
	p.ReplyTimeout = 2 * time.Second
	p.DialTimeout = 2 * time.Second
	return p
}

func TestControlProbeEchoReply(t *testing.T) {
	received := make(chan models.ProbeMessage, 1)
	_, url := newControlServer(t, func(msg []byte) []byte {
		var ping models.ProbeMessage
		if err := json.Unmarshal(msg, &ping); err == nil {
			received <- ping
		}
		return []byte(`{"type":"pong","timestamp":1}`)
	})

	rep := &recordingReporter{}
	before := time.Now().UnixMilli()
	res := newTestControlProbe(url).Run(context.Background(), rep)
	after := time.Now().UnixMilli()

	if !res.OK || res.Outcome != models.OutcomePassed {
		t.Fatalf("expected pass, got %+v", res)
	}
	if res.ReplyType != "pong" {
		t.Fatalf("expected reply type pong, got %q", res.ReplyType)
	}
	if !rep.contains("Received response: pong") {
		t.Fatalf("expected reply type in progress output, got %v", rep.lines)
	}

	select {
	case ping := <-received:
		if ping.Type != "ping" {
			t.Fatalf("expected ping type, got %q", ping.Type)
		}
		if ping.Timestamp < before || ping.Timestamp > after {
			t.Fatalf("timestamp %d outside [%d, %d]", ping.Timestamp, before, after)
		}
	case <-time.After(time.Second):
		t.Fatal("server never decoded the ping")
	}
}

func TestControlProbeSendsCompactJSON(t *testing.T) {
	raw := make(chan []byte, 1)
	_, url := newControlServer(t, func(msg []byte) []byte {
		raw <- append([]byte(nil), msg...)
		return []byte(`{"type":"pong"}`)
	})

	newTestControlProbe(url).Run(context.Background(), nil)

	msg := <-raw
	if strings.ContainsAny(string(msg), " \n") {
		t.Fatalf("expected compact JSON, got %q", msg)
	}
	if !strings.HasPrefix(string(msg), `{"type":"ping","timestamp":`) {
		t.Fatalf("unexpected ping encoding %q", msg)
	}
}

func TestControlProbeReplyWithoutType(t *testing.T) {
	_, url := newControlServer(t, func([]byte) []byte {
		return []byte(`{"status":"ok"}`)
	})

	rep := &recordingReporter{}
	res := newTestControlProbe(url).Run(context.Background(), rep)
	if !res.OK {
		t.Fatalf("expected pass, got %+v", res)
	}
	if res.ReplyType != models.UnknownReplyType {
		t.Fatalf("expected %q, got %q", models.UnknownReplyType, res.ReplyType)
	}
	if !rep.contains("Received response: Unknown") {
		t.Fatalf("expected Unknown in progress output, got %v", rep.lines)
	}
}

func TestControlProbeTimeout(t *testing.T) {
	_, url := newControlServer(t, func([]byte) []byte { return nil })

	p := newTestControlProbe(url)
	p.ReplyTimeout = 300 * time.Millisecond

	rep := &recordingReporter{}
	start := time.Now()
	res := p.Run(context.Background(), rep)
	elapsed := time.Since(start)

	if res.OK {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Outcome != models.OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %q (%s)", res.Outcome, res.Error)
	}
	if elapsed < p.ReplyTimeout || elapsed > p.ReplyTimeout+2*time.Second {
		t.Fatalf("waited %v, expected about %v", elapsed, p.ReplyTimeout)
	}
	if !rep.contains("No response received (timeout)") {
		t.Fatalf("expected timeout line, got %v", rep.lines)
	}
}

func TestControlProbeConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	rep := &recordingReporter{}
	start := time.Now()
	res := newTestControlProbe("wss://"+addr+"/control").Run(context.Background(), rep)

	if res.OK || res.Outcome != models.OutcomeRefused {
		t.Fatalf("expected refused, got %+v", res)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("refused probe should return promptly, took %v", time.Since(start))
	}
	if !rep.contains("Connection refused") {
		t.Fatalf("expected refused line, got %v", rep.lines)
	}
}

func TestControlProbeRejectsSelfSignedWithoutOptIn(t *testing.T) {
	_, url := newControlServer(t, func([]byte) []byte { return []byte(`{"type":"pong"}`) })

	p := newTestControlProbe(url)
	p.InsecureSkipVerify = false

	res := p.Run(context.Background(), nil)
	if res.OK || res.Outcome != models.OutcomeFailed {
		t.Fatalf("expected certificate failure, got %+v", res)
	}
	if res.Error == "" {
		t.Fatal("expected error text")
	}
}

func TestControlProbeInvalidReply(t *testing.T) {
	_, url := newControlServer(t, func([]byte) []byte { return []byte("not json") })

	res := newTestControlProbe(url).Run(context.Background(), nil)
	if res.OK || res.Outcome != models.OutcomeFailed {
		t.Fatalf("expected protocol failure, got %+v", res)
	}
	if !strings.Contains(res.Error, "decode reply") {
		t.Fatalf("unexpected error %q", res.Error)
	}
}

func TestControlProbeCancelled(t *testing.T) {
	_, url := newControlServer(t, func([]byte) []byte { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	p := newTestControlProbe(url)
	p.ReplyTimeout = 5 * time.Second
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	res := p.Run(ctx, nil)
	if res.OK || res.Outcome != models.OutcomeFailed {
		t.Fatalf("expected cancelled failure, got %+v", res)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("cancellation not honoured, took %v", time.Since(start))
	}
}

func TestReplyType(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `{"type":"pong"}`, want: "pong"},
		{in: `{"type":null}`, want: models.UnknownReplyType},
		{in: `{}`, want: models.UnknownReplyType},
		{in: `{"type":7}`, want: "7"},
		{in: `null`, wantErr: true},
		{in: `[1]`, wantErr: true},
		{in: `pong`, wantErr: true},
	}
	for _, tc := range cases {
		got, err := ReplyType([]byte(tc.in))
		if tc.wantErr {
			if err == nil {
				t.Errorf("ReplyType(%s): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ReplyType(%s) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}
