package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxhire/interview-agent/internal/speech"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

var upgrader = websocket.Upgrader{}

// newTestBridge runs a fake media bridge. The handler receives the
// server side of the websocket once the client connects.
func newTestBridge(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Errorf("server read failed: %v", err)
	}
	return f
}

func TestClient_Synthesize_PlaybackDone(t *testing.T) {
	url := newTestBridge(t, func(conn *websocket.Conn) {
		f := readFrame(t, conn)
		if f.Type != frameSpeak || f.Text != "hello candidate" {
			t.Errorf("unexpected frame: %+v", f)
		}
		_ = conn.WriteJSON(frame{Type: framePlaybackDone})
		time.Sleep(50 * time.Millisecond)
	})

	client, err := Dial(context.Background(), url, testLogger())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	playback, err := client.Synthesize(context.Background(), "hello candidate", speech.VoiceConfig{})
	if err != nil {
		t.Fatalf("Synthesize() failed: %v", err)
	}

	select {
	case err := <-playback.Done():
		if err != nil {
			t.Errorf("Expected clean playback, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for playback completion")
	}
}

func TestClient_Listen_TranscriptWithActivity(t *testing.T) {
	url := newTestBridge(t, func(conn *websocket.Conn) {
		f := readFrame(t, conn)
		if f.Type != frameListen {
			t.Errorf("expected listen frame, got %+v", f)
		}
		if f.MaxDurationMs != (3 * time.Minute).Milliseconds() {
			t.Errorf("unexpected max duration: %d", f.MaxDurationMs)
		}
		_ = conn.WriteJSON(frame{Type: frameVAD})
		_ = conn.WriteJSON(frame{Type: frameTranscript, Text: "my answer", Confidence: 0.92, Quality: 0.8})
		time.Sleep(50 * time.Millisecond)
	})

	client, err := Dial(context.Background(), url, testLogger())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	capture, err := client.Listen(context.Background(), 3*time.Minute)
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}

	select {
	case <-capture.Activity():
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for voice activity")
	}

	select {
	case result := <-capture.Result():
		if result.Outcome != speech.OutcomeSpeech {
			t.Errorf("Expected speech outcome, got %s", result.Outcome)
		}
		if result.Text != "my answer" || result.Confidence != 0.92 {
			t.Errorf("Unexpected result: %+v", result)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for transcript")
	}
}

func TestClient_Listen_Silence(t *testing.T) {
	url := newTestBridge(t, func(conn *websocket.Conn) {
		readFrame(t, conn)
		_ = conn.WriteJSON(frame{Type: frameSilence, Quality: 0.7})
		time.Sleep(50 * time.Millisecond)
	})

	client, err := Dial(context.Background(), url, testLogger())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	capture, err := client.Listen(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}

	select {
	case result := <-capture.Result():
		if result.Outcome != speech.OutcomeSilence {
			t.Errorf("Expected silence outcome, got %s", result.Outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for silence result")
	}
}

func TestClient_Listen_RecognitionFailure(t *testing.T) {
	url := newTestBridge(t, func(conn *websocket.Conn) {
		readFrame(t, conn)
		_ = conn.WriteJSON(frame{Type: frameRecognitionFailed, Error: "stream reset"})
		time.Sleep(50 * time.Millisecond)
	})

	client, err := Dial(context.Background(), url, testLogger())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	capture, err := client.Listen(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}

	result := <-capture.Result()
	if result.Outcome != speech.OutcomeFailure {
		t.Fatalf("Expected failure outcome, got %s", result.Outcome)
	}
	if result.Err == nil || !strings.Contains(result.Err.Error(), "stream reset") {
		t.Errorf("Expected bridge error detail, got %v", result.Err)
	}
}

func TestClient_PresenceEvents(t *testing.T) {
	url := newTestBridge(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(frame{Type: framePresence, Connected: false})
		_ = conn.WriteJSON(frame{Type: framePresence, Connected: true})
		time.Sleep(50 * time.Millisecond)
	})

	client, err := Dial(context.Background(), url, testLogger())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	for _, wantConnected := range []bool{false, true} {
		select {
		case event := <-client.Events():
			if event.Connected != wantConnected {
				t.Errorf("Expected connected=%v, got %v", wantConnected, event.Connected)
			}
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for presence event")
		}
	}
}

func TestClient_ConnectionLossFailsPendingCapture(t *testing.T) {
	url := newTestBridge(t, func(conn *websocket.Conn) {
		readFrame(t, conn)
		// Drop the connection with a capture in flight.
		conn.Close()
	})

	client, err := Dial(context.Background(), url, testLogger())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	capture, err := client.Listen(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}

	select {
	case result := <-capture.Result():
		if result.Outcome != speech.OutcomeFailure {
			t.Errorf("Expected failure outcome on connection loss, got %s", result.Outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for failure result")
	}
}

func TestClient_CaptureStopSendsStopListen(t *testing.T) {
	frames := make(chan frame, 4)
	url := newTestBridge(t, func(conn *websocket.Conn) {
		for range 2 {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
		}
	})

	client, err := Dial(context.Background(), url, testLogger())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	capture, err := client.Listen(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}
	capture.Stop()

	<-frames // listen
	select {
	case f := <-frames:
		if f.Type != frameStopListen {
			t.Errorf("Expected stop_listen frame, got %s", f.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for stop_listen frame")
	}

	// Local Stop resolves the capture as silence without waiting for
	// the bridge.
	result := <-capture.Result()
	if result.Outcome != speech.OutcomeSilence {
		t.Errorf("Expected silence outcome after Stop, got %s", result.Outcome)
	}
}
