package main

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func newPongServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return "wss" + strings.TrimPrefix(srv.URL, "https") + "/control"
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	exitCode = 0
	controlURL, voiceAddr, historyPath, configPath, logLevel = "", "", "", "", ""
	replyTimeout, historyLast = 0, 0
	insecure = false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v\n%s", args, err, buf.String())
	}
	return buf.String()
}

func TestRunCommandRecordsAndSummarisesHistory(t *testing.T) {
	url := newPongServer(t)
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer pc.Close()
	history := filepath.Join(t.TempDir(), "history.json")

	out := execute(t, "run",
		"--control-url", url,
		"--voice-addr", pc.LocalAddr().String(),
		"--insecure",
		"--history", history,
		"--log-level", "error",
	)
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\n%s", exitCode, out)
	}
	for _, want := range []string{"Received response: pong", "WebSocket (Control): [PASS]", "UDP (Voice):         [PASS]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	out = execute(t, "history", "--history", history, "--log-level", "error")
	if !strings.Contains(out, "Runs: 1") {
		t.Fatalf("expected one recorded run:\n%s", out)
	}
}

func TestRunCommandFailsWithoutInsecureOptIn(t *testing.T) {
	url := newPongServer(t)
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer pc.Close()

	out := execute(t,
		"--control-url", url,
		"--voice-addr", pc.LocalAddr().String(),
		"--log-level", "error",
	)
	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d\n%s", exitCode, out)
	}
	control := strings.Index(out, "WebSocket (Control): [FAIL]")
	voice := strings.Index(out, "UDP (Voice):         [PASS]")
	if control < 0 || voice < control {
		t.Fatalf("expected control [FAIL] then voice [PASS]:\n%s", out)
	}
}

func TestHistoryCommandRequiresFile(t *testing.T) {
	exitCode = 0
	historyPath = ""
	rootCmd.SetArgs([]string{"history", "--log-level", "error"})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected an error without a history file")
	}
}
