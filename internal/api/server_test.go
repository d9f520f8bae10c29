package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fabworks/cell-core/internal/camera"
	"github.com/fabworks/cell-core/internal/factory"
	"github.com/fabworks/cell-core/internal/infrastructure/config"
	"github.com/fabworks/cell-core/internal/infrastructure/logging"
	"github.com/fabworks/cell-core/internal/job"
	"github.com/fabworks/cell-core/internal/machine/actuator"
	"github.com/fabworks/cell-core/internal/machine/gantry"
)

// ─── Test Helpers ──────────────────────────────────────────────────

// okSender answers every gantry script with a canned reply.
type okSender struct{}

func (okSender) Send(_ context.Context, script string) (string, error) {
	if script == "M114" {
		return "X:1.00 Y:2.00 Z:3.00 A:4.00 Count X:80", nil
	}
	return "ok", nil
}

// testServer builds a fully simulated cell behind an httptest server.
func testServer(t *testing.T) (*httptest.Server, *factory.Factory) {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	cameras := camera.NewManager(camera.NewSimBackend(0, 1), camera.Config{
		ProbeRange:   4,
		Options:      camera.Options{Width: 64, Height: 48},
		StopTimeout:  time.Second,
		RetryBackoff: time.Millisecond,
	})
	t.Cleanup(cameras.CloseAll)

	fact, err := factory.New(factory.Deps{
		Gantry:   gantry.New(okSender{}),
		Actuator: actuator.New(actuator.NewSimOutputs()),
		Cameras:  cameras,
		Jobs:     job.NewStore(job.DefaultTemplates()),
		Logger:   log,
	})
	if err != nil {
		t.Fatalf("factory.New: %v", err)
	}

	dir := t.TempDir()
	fact.Load(context.Background(),
		filepath.Join(dir, "factory.json"),
		filepath.Join(dir, "jobs.json"),
		filepath.Join(dir, "parts.json"),
	)

	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 0, Idle: 5},
		},
		Cameras: config.CameraConfig{
			ReadTimeout:  2,
			FrameDivider: 10,
		},
		Logger:      log,
		Factory:     fact,
		ExternalHub: hub,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)
	return ts, fact
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	return resp, data
}

// ─── Tests ─────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	ts, _ := testServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var health map[string]any
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if health["status"] != "ok" || health["version"] != "test" {
		t.Errorf("health = %v", health)
	}
}

func TestListMachines(t *testing.T) {
	ts, _ := testServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/machines", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		Machines []struct {
			Name      string   `json:"name"`
			Connected bool     `json:"connected"`
			Actions   []string `json:"actions"`
		} `json:"machines"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if len(out.Machines) != 2 {
		t.Fatalf("machines = %+v, want 2", out.Machines)
	}
	for _, m := range out.Machines {
		if m.Connected {
			t.Errorf("machine %s connected before any connect", m.Name)
		}
		if len(m.Actions) == 0 {
			t.Errorf("machine %s lists no actions", m.Name)
		}
	}
}

func TestCameraDetect(t *testing.T) {
	ts, _ := testServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/cameras/detect", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		Cameras []int `json:"cameras"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if len(out.Cameras) != 2 || out.Cameras[0] != 0 || out.Cameras[1] != 1 {
		t.Errorf("cameras = %v, want [0 1]", out.Cameras)
	}
}

func TestCameraSnapshot(t *testing.T) {
	ts, fact := testServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/cameras/0/snapshot", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.HasPrefix(body, []byte{0xFF, 0xD8}) {
		t.Error("snapshot is not a JPEG")
	}

	// The snapshot released its reference; the session is gone.
	if refs := fact.Cameras().RefCount("0"); refs != 0 {
		t.Errorf("RefCount after snapshot = %d, want 0", refs)
	}
}

func TestCameraSnapshotUnavailable(t *testing.T) {
	ts, _ := testServer(t)

	// Index 3 is probeable range but not a configured sim device.
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/cameras/3/snapshot", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestCameraSnapshotInvalidKey(t *testing.T) {
	ts, _ := testServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/cameras/front/snapshot", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCameraStreamDeliversParts(t *testing.T) {
	ts, fact := testServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/cameras/0/stream", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") || !strings.Contains(ct, "boundary=frame") {
		t.Fatalf("content type = %q", ct)
	}

	// Read until two part boundaries arrive, then disconnect.
	reader := bufio.NewReader(resp.Body)
	boundaries := 0
	for boundaries < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if strings.HasPrefix(line, "--frame") {
			boundaries++
		}
	}
	cancel()

	// The viewer's reference is released once the handler unwinds.
	deadline := time.After(2 * time.Second)
	for fact.Cameras().RefCount("0") != 0 {
		select {
		case <-deadline:
			t.Fatalf("RefCount = %d after disconnect, want 0", fact.Cameras().RefCount("0"))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestGantryCommandFlow(t *testing.T) {
	ts, fact := testServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/gantry/connect", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect status = %d", resp.StatusCode)
	}
	if !fact.Gantry().Connected() {
		t.Fatal("gantry not connected after endpoint")
	}

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/gantry/goto", map[string]any{
		"x": 10.0, "y": 5.0, "speed": 1200.0,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("goto status = %d, body = %s", resp.StatusCode, body)
	}

	var result struct {
		Async bool `json:"async"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if !result.Async {
		t.Error("goto result should be async")
	}

	// Pose endpoint parses the controller's report.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/gantry/pose", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pose status = %d", resp.StatusCode)
	}
	var pose gantry.Pose
	if err := json.Unmarshal(body, &pose); err != nil {
		t.Fatalf("parsing pose: %v", err)
	}
	if pose.X != 1 || pose.Y != 2 {
		t.Errorf("pose = %+v", pose)
	}
}

func TestActuatorCommandFlow(t *testing.T) {
	ts, _ := testServer(t)

	// Commands before connect are rejected.
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/actuator/screw_cw", map[string]any{"speed": 50.0})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("screw before connect status = %d, want 409", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/actuator/connect", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/actuator/screw_cw", map[string]any{"speed": 50.0})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("screw status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/actuator/screw_stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/actuator/unlock", map[string]any{"time_s": 0.01})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unlock status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/actuator/cleanup", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cleanup status = %d", resp.StatusCode)
	}
}

func TestJobCRUDAndRun(t *testing.T) {
	ts, _ := testServer(t)
	base := ts.URL + "/api/v1/jobs"

	// Create
	resp, body := doJSON(t, http.MethodPost, base, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created job.Job
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("parsing job: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created job has no id")
	}

	// Update: retarget to an actuator stop (succeeds once connected)
	created.Machine = "actuator"
	created.Action = "screw"
	created.Params = map[string]any{"direction": "stop"}
	resp, _ = doJSON(t, http.MethodPut, base+"/"+created.ID, created)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}

	// Run before connect fails with conflict
	resp, _ = doJSON(t, http.MethodPost, base+"/"+created.ID+"/run", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("run before connect status = %d, want 409", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/actuator/connect", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, base+"/"+created.ID+"/run", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("run status = %d", resp.StatusCode)
	}

	// List contains the job
	resp, body = doJSON(t, http.MethodGet, base, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("parsing list: %v", err)
	}
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}

	// Delete, then 404 on re-delete
	resp, _ = doJSON(t, http.MethodDelete, base+"/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, base+"/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("re-delete status = %d, want 404", resp.StatusCode)
	}
}

func TestRunUnknownJob(t *testing.T) {
	ts, _ := testServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/99/run", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestToolEndpoints(t *testing.T) {
	ts, _ := testServer(t)
	base := ts.URL + "/api/v1/tools"

	resp, _ := doJSON(t, http.MethodPut, base+"/driver", factory.Tool{
		Holder: "h1",
		Offset: gantry.Pose{Z: -12},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, base, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var out struct {
		Tools map[string]factory.Tool `json:"tools"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("parsing tools: %v", err)
	}
	if tool, ok := out.Tools["driver"]; !ok || tool.Offset.Z != -12 {
		t.Errorf("tools = %+v", out.Tools)
	}

	resp, _ = doJSON(t, http.MethodDelete, base+"/driver", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, base+"/driver", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("re-delete status = %d, want 404", resp.StatusCode)
	}
}

func TestEventsWithoutAuditStore(t *testing.T) {
	ts, _ := testServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/events", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts, _ := testServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/health", nil)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}
