package lalal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"stemgen/internal/engine"
	"stemgen/internal/logging"
	"stemgen/internal/testsupport"
)

// fakeService mimics the upload/split/check/download API surface.
type fakeService struct {
	server      *httptest.Server
	checks      atomic.Int64
	settleAfter int64
	taskState   string
}

func newFakeService(t *testing.T, settleAfter int64, finalState string) *fakeService {
	t.Helper()
	svc := &fakeService{settleAfter: settleAfter, taskState: finalState}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/upload/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "id": "file-1"})
	})
	mux.HandleFunc("/api/split/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	})
	mux.HandleFunc("/api/check/", func(w http.ResponseWriter, r *http.Request) {
		n := svc.checks.Add(1)
		state := "progress"
		tracks := map[string]string{}
		if n >= svc.settleAfter {
			state = svc.taskState
			for _, name := range engine.StemNames {
				tracks[name] = svc.server.URL + "/download/" + name
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"task": map[string]any{
				"state":       state,
				"stem_tracks": tracks,
			},
		})
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "stem-bytes-%s", filepath.Base(r.URL.Path))
	})

	svc.server = httptest.NewServer(mux)
	t.Cleanup(svc.server.Close)
	return svc
}

func newTestEngine(t *testing.T, svc *fakeService, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithBaseURL(svc.server.URL),
		WithPollInterval(5 * time.Millisecond),
		WithPollTimeout(time.Second),
	}
	return New("test-key", logging.NewNop(), append(base, opts...)...)
}

func sourceWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.wav")
	testsupport.WriteWAV(t, path, testsupport.SineWave(440, 8000, 80), 8000)
	return path
}

func TestSeparateDownloadsAllStems(t *testing.T) {
	svc := newFakeService(t, 2, "success")
	eng := newTestEngine(t, svc)
	outputDir := t.TempDir()

	result, err := eng.Separate(context.Background(), sourceWAV(t), outputDir)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if !result.Success {
		t.Fatalf("result failed: %s", result.ErrMessage)
	}
	if len(result.StemPaths) != engine.StemCount {
		t.Fatalf("got %d stems, want %d", len(result.StemPaths), engine.StemCount)
	}
	for _, name := range engine.StemNames {
		data, err := os.ReadFile(filepath.Join(outputDir, name+".wav"))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != "stem-bytes-"+name {
			t.Fatalf("%s content = %q", name, data)
		}
	}
	if svc.checks.Load() < 2 {
		t.Fatalf("settled after %d checks, want at least 2", svc.checks.Load())
	}
}

func TestSeparatePollTimeout(t *testing.T) {
	svc := newFakeService(t, 1<<30, "success") // never settles
	eng := newTestEngine(t, svc, WithPollTimeout(30*time.Millisecond))

	_, err := eng.Separate(context.Background(), sourceWAV(t), t.TempDir())
	if !errors.Is(err, engine.ErrRemoteTimeout) {
		t.Fatalf("err = %v, want ErrRemoteTimeout", err)
	}
}

func TestSeparateTaskError(t *testing.T) {
	svc := newFakeService(t, 1, "error")
	eng := newTestEngine(t, svc)

	result, err := eng.Separate(context.Background(), sourceWAV(t), t.TempDir())
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if result.Success {
		t.Fatal("result successful for a failed task")
	}
}

func TestSeparateRejectsOversizeSource(t *testing.T) {
	svc := newFakeService(t, 1, "success")
	eng := newTestEngine(t, svc)

	path := filepath.Join(t.TempDir(), "big.wav")
	testsupport.WriteFile(t, path, MaxUploadBytes+1)

	result, err := eng.Separate(context.Background(), path, t.TempDir())
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if result.Success {
		t.Fatal("oversize upload accepted")
	}
	if svc.checks.Load() != 0 {
		t.Fatal("oversize source still reached the service")
	}
}

func TestSeparateRejectsUnsupportedFormat(t *testing.T) {
	svc := newFakeService(t, 1, "success")
	eng := newTestEngine(t, svc)

	path := filepath.Join(t.TempDir(), "video.mkv")
	testsupport.WriteFile(t, path, 128)

	result, err := eng.Separate(context.Background(), path, t.TempDir())
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if result.Success {
		t.Fatal("unsupported format accepted")
	}
}

func TestAvailableRequiresAPIKey(t *testing.T) {
	ctx := context.Background()
	if New("", logging.NewNop()).Available(ctx) {
		t.Fatal("engine available without an API key")
	}
	if !New("key", logging.NewNop()).Available(ctx) {
		t.Fatal("engine unavailable with an API key")
	}
}

func TestUploadRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "quota exceeded"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	eng := New("key", logging.NewNop(), WithBaseURL(server.URL))
	result, err := eng.Separate(context.Background(), sourceWAV(t), t.TempDir())
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if result.Success {
		t.Fatal("rejected upload reported as success")
	}
}
