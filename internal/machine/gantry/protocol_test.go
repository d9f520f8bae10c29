package gantry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSenderRoundTrip(t *testing.T) {
	var gotScript string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q, want application/json", ct)
		}

		var req struct {
			Script string `json:"script"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		gotScript = req.Script

		//nolint:errcheck
		json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, time.Second)
	result, err := sender.Send(context.Background(), "G28")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want ok", result)
	}
	if gotScript != "G28" {
		t.Errorf("script = %q, want G28", gotScript)
	}
}

func TestHTTPSenderRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, time.Second)
	if _, err := sender.Send(context.Background(), "G28"); err == nil {
		t.Fatal("Send should fail on non-2xx status")
	}
}

func TestHTTPSenderUnreachable(t *testing.T) {
	sender := NewHTTPSender("http://127.0.0.1:1/printer/gcode/script", 100*time.Millisecond)
	if _, err := sender.Send(context.Background(), "M115"); err == nil {
		t.Fatal("Send should fail when controller is unreachable")
	}
}

func TestParsePose(t *testing.T) {
	tests := []struct {
		name    string
		report  string
		want    Pose
		wantErr bool
	}{
		{
			name:   "standard report",
			report: "X:10.00 Y:-5.50 Z:2.25 A:90.00 E:0.00 Count X:800 Y:-440 Z:180",
			want:   Pose{X: 10, Y: -5.5, Z: 2.25, A: 90},
		},
		{
			name:   "first occurrence wins over count section",
			report: "X:1.00 Y:2.00 Z:3.00 A:4.00 Count X:80 Y:160 Z:240 A:320",
			want:   Pose{X: 1, Y: 2, Z: 3, A: 4},
		},
		{
			name:   "partial axes",
			report: "X:7.5 Y:0.0",
			want:   Pose{X: 7.5},
		},
		{
			name:   "whitespace after colon",
			report: "X: 1.0 Y: 2.0 Z: 3.0 A: 4.0",
			want:   Pose{X: 1, Y: 2, Z: 3, A: 4},
		},
		{
			name:    "empty report",
			report:  "",
			wantErr: true,
		},
		{
			name:    "no axes",
			report:  "ok",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePose(tt.report)
			if tt.wantErr {
				if !errors.Is(err, ErrPoseUnavailable) {
					t.Fatalf("parsePose(%q) err = %v, want ErrPoseUnavailable", tt.report, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePose(%q): %v", tt.report, err)
			}
			if got != tt.want {
				t.Errorf("parsePose(%q) = %+v, want %+v", tt.report, got, tt.want)
			}
		})
	}
}
