package telegram

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

const sampleUpdate = `{"update_id":7,"message":{"message_id":1,"text":"ser","chat":{"id":100,"type":"private"}}}`

func newWireTestServer(t *testing.T, path string, sink func(tele.Update)) *httptest.Server {
	t.Helper()
	srv := NewWireServer(WireServerOptions{Path: path, Sink: sink})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestWireServerAcceptsUpdate(t *testing.T) {
	var got []tele.Update
	ts := newWireTestServer(t, "/", func(u tele.Update) { got = append(got, u) })

	resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(sampleUpdate))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, expected 200", resp.StatusCode)
	}
	if len(got) != 1 {
		t.Fatalf("sink received %d updates, expected 1", len(got))
	}
	if got[0].ID != 7 {
		t.Fatalf("update id = %d, expected 7", got[0].ID)
	}
	if got[0].Message == nil || got[0].Message.Text != "ser" {
		t.Fatalf("unexpected message payload: %+v", got[0].Message)
	}
}

func TestWireServerAcceptsJSONWithCharset(t *testing.T) {
	var calls int
	ts := newWireTestServer(t, "/", func(tele.Update) { calls++ })

	resp, err := http.Post(ts.URL+"/", "application/json; charset=utf-8", strings.NewReader(sampleUpdate))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, expected 200", resp.StatusCode)
	}
	if calls != 1 {
		t.Fatalf("sink calls = %d, expected 1", calls)
	}
}

func TestWireServerRejectsWrongContentType(t *testing.T) {
	var calls int
	ts := newWireTestServer(t, "/", func(tele.Update) { calls++ })

	resp, err := http.Post(ts.URL+"/", "text/plain", strings.NewReader(sampleUpdate))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, expected 415", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "Unsupported media type" {
		t.Fatalf("body = %q", body)
	}
	if calls != 0 {
		t.Fatalf("sink must not run on rejected update, got %d calls", calls)
	}
}

func TestWireServerRejectsBadJSON(t *testing.T) {
	var calls int
	ts := newWireTestServer(t, "/", func(tele.Update) { calls++ })

	resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(`{"update_id": blob`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, expected 400", resp.StatusCode)
	}
	if calls != 0 {
		t.Fatalf("sink calls = %d, expected 0", calls)
	}
}

func TestWireServerLiveness(t *testing.T) {
	ts := newWireTestServer(t, "/", nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, expected 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Busly Bot Service is Running" {
		t.Fatalf("liveness body = %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
}

func TestWireServerUnknownPath(t *testing.T) {
	ts := newWireTestServer(t, "/", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, expected 404", resp.StatusCode)
	}
}

func TestWireServerMethodNotAllowed(t *testing.T) {
	ts := newWireTestServer(t, "/", nil)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, expected 405", resp.StatusCode)
	}
}

func TestWireServerCustomPath(t *testing.T) {
	var calls int
	ts := newWireTestServer(t, "/hook", func(tele.Update) { calls++ })

	// Updates land on the dedicated path.
	resp, err := http.Post(ts.URL+"/hook", "application/json", strings.NewReader(sampleUpdate))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("hook status = %d, expected 200", resp.StatusCode)
	}
	if calls != 1 {
		t.Fatalf("sink calls = %d, expected 1", calls)
	}

	// The root stays a liveness endpoint and refuses POST.
	resp, err = http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "Busly Bot Service is Running" {
		t.Fatalf("liveness body = %q", body)
	}

	resp, err = http.Post(ts.URL+"/", "application/json", strings.NewReader(sampleUpdate))
	if err != nil {
		t.Fatalf("post root: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("root post status = %d, expected 405", resp.StatusCode)
	}
	if calls != 1 {
		t.Fatalf("sink calls after root post = %d, expected 1", calls)
	}
}

func TestWireServerGetOnHookPath(t *testing.T) {
	ts := newWireTestServer(t, "/hook", nil)

	resp, err := http.Get(ts.URL + "/hook")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, expected 405", resp.StatusCode)
	}
}
