package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/zhubert/agent-assistant/bridge"
	"github.com/zhubert/agent-assistant/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*bridge.Bridge, *httptest.Server) {
	t.Helper()
	b := bridge.New(bridge.WithLogger(discardLogger()))
	srv := NewServer(b, WithLogger(discardLogger()))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return b, ts
}

func dialWS(t *testing.T, baseURL, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + path
	conn, err := websocket.Dial(wsURL, "", "http://localhost/")
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}

func TestServer_ConnectAndDisconnect(t *testing.T) {
	b, ts := newTestServer(t)

	conn := dialWS(t, ts.URL, DefaultPath)
	if !eventually(func() bool { return b.Sessions() == 1 }) {
		t.Fatalf("Sessions() = %d after connect, want 1", b.Sessions())
	}

	_ = conn.Close()
	if !eventually(func() bool { return b.Sessions() == 0 }) {
		t.Fatalf("Sessions() = %d after close, want 0", b.Sessions())
	}
}

func TestServer_AskQuestionRoundTrip(t *testing.T) {
	b, ts := newTestServer(t)
	conn := dialWS(t, ts.URL, DefaultPath)
	if !eventually(func() bool { return b.Sessions() == 1 }) {
		t.Fatal("client never registered")
	}

	// Front-end: read one request, answer it.
	clientErr := make(chan error, 1)
	go func() {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			clientErr <- err
			return
		}
		req, err := wire.Unmarshal(data)
		if err != nil {
			clientErr <- err
			return
		}
		id, _ := req.RequestID()
		reply, err := wire.Marshal(&wire.Message{
			Cmd: wire.CmdAskQuestionReply,
			AskQuestionResponse: &wire.AskQuestionResponse{
				ID:       id,
				Contents: []wire.ResultContent{wire.Text("answer to " + req.AskQuestionRequest.Request.Question)},
			},
		})
		if err != nil {
			clientErr <- err
			return
		}
		clientErr <- websocket.Message.Send(conn, reply)
	}()

	reply, err := b.SendAndAwait(context.Background(), wire.NewAskQuestion("rt-1", "Proceed?"), "rt-1", 2*time.Second)
	if err != nil {
		t.Fatalf("SendAndAwait() error = %v", err)
	}
	if err := <-clientErr; err != nil {
		t.Fatalf("client error: %v", err)
	}

	contents, _ := reply.Contents()
	if len(contents) != 1 || contents[0].Text.Text != "answer to Proceed?" {
		t.Errorf("contents = %+v", contents)
	}
}

func TestServer_BroadcastReachesClient(t *testing.T) {
	b, ts := newTestServer(t)
	conn := dialWS(t, ts.URL, DefaultPath)
	if !eventually(func() bool { return b.Sessions() == 1 }) {
		t.Fatal("client never registered")
	}

	if err := b.Broadcast(wire.NewTaskFinish("f-1", "all done")); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	msg, err := wire.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Cmd != wire.CmdTaskFinish || msg.TaskFinishRequest == nil || msg.TaskFinishRequest.Request.Summary != "all done" {
		t.Errorf("received %+v", msg)
	}
}

func TestServer_UndecodableFrameKeepsConnection(t *testing.T) {
	b, ts := newTestServer(t)
	conn := dialWS(t, ts.URL, DefaultPath)
	if !eventually(func() bool { return b.Sessions() == 1 }) {
		t.Fatal("client never registered")
	}

	if err := websocket.Message.Send(conn, []byte{0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if b.Sessions() != 1 {
		t.Errorf("Sessions() = %d, a bad frame must not drop the session", b.Sessions())
	}
}

func TestServer_Healthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("GET /healthz = %d %q", resp.StatusCode, body)
	}
}

func TestServer_RejectsNonGET(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+DefaultPath, "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestServer_CustomPath(t *testing.T) {
	b := bridge.New(bridge.WithLogger(discardLogger()))
	ts := httptest.NewServer(NewServer(b, WithPath("/agent"), WithLogger(discardLogger())).Handler())
	t.Cleanup(ts.Close)

	dialWS(t, ts.URL, "/agent")
	if !eventually(func() bool { return b.Sessions() == 1 }) {
		t.Fatal("client on custom path never registered")
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	b := bridge.New(bridge.WithLogger(discardLogger()))
	srv := NewServer(b, WithLogger(discardLogger()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	dialWS(t, "http://"+ln.Addr().String(), DefaultPath)
	if !eventually(func() bool { return b.Sessions() == 1 }) {
		t.Fatal("client never registered")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if !eventually(func() bool { return b.Sessions() == 0 }) {
		t.Errorf("Sessions() = %d after shutdown, want 0", b.Sessions())
	}
}
