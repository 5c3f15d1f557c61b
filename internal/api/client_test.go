package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const mockDevicesResponse = `[{"index":0,"name":"Built-in Microphone","max_input_channels":2,"max_output_channels":0},{"index":1,"name":"Built-in Output","max_input_channels":0,"max_output_channels":2}]`

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8000/")

	if client.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %s, want http://localhost:8000", client.BaseURL)
	}

	if client.HTTPClient == nil {
		t.Fatal("HTTPClient should not be nil")
	}

	if client.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", client.HTTPClient.Timeout, DefaultTimeout)
	}
}

func TestSetTimeout(t *testing.T) {
	client := NewClient(DefaultBaseURL)
	client.SetTimeout(2 * time.Second)

	if client.HTTPClient.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", client.HTTPClient.Timeout)
	}
}

func TestPing_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Errorf("Path = %s, want /", r.URL.Path)
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("request is missing X-Request-ID")
		}
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	if err := NewClient(server.URL).Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v, want nil", err)
	}
}

func TestPing_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewClient(url).Ping(context.Background())
	if err == nil {
		t.Fatal("Ping() should return error for closed server")
	}

	if !IsTransportError(err) {
		t.Errorf("Ping() error should be transport error, got %T: %v", err, err)
	}
}

func TestPing_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetTimeout(50 * time.Millisecond)

	err := client.Ping(context.Background())
	if !IsTransportError(err) {
		t.Fatalf("Ping() error should be transport error, got %v", err)
	}

	var apiErr *Error
	if e, ok := err.(*Error); ok {
		apiErr = e
	}
	if apiErr == nil || apiErr.Subtype != TransportTimeout {
		t.Errorf("Subtype should be TransportTimeout, got %+v", apiErr)
	}
}

func TestPing_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewClient(server.URL).Ping(ctx)
	if !IsTransportError(err) {
		t.Errorf("Ping() with canceled context should be transport error, got %v", err)
	}
}

func TestListDevices_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/devices" {
			t.Errorf("Request = %s %s, want GET /devices", r.Method, r.URL.Path)
		}
		w.Write([]byte(mockDevicesResponse))
	}))
	defer server.Close()

	devices, err := NewClient(server.URL).ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}

	if !devices[0].IsInput() || devices[0].IsOutput() {
		t.Errorf("device 0 should be input only: %+v", devices[0])
	}

	if devices[1].Name != "Built-in Output" {
		t.Errorf("devices[1].Name = %s, want Built-in Output", devices[1].Name)
	}
}

func TestListDevices_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not valid JSON at all"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).ListDevices(context.Background())
	if !IsParseError(err) {
		t.Errorf("ListDevices() error should be parse error, got %T: %v", err, err)
	}
}

func TestListProfiles(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"ordered", `{"profiles":["Default","DefaultMale","DefaultFemale","Studio"]}`, []string{"Default", "DefaultMale", "DefaultFemale", "Studio"}},
		{"empty", `{"profiles":[]}`, []string{}},
		{"missing field", `{}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got, err := NewClient(server.URL).ListProfiles(context.Background())
			if err != nil {
				t.Fatalf("ListProfiles() error = %v", err)
			}
			if got == nil {
				t.Fatal("ListProfiles() returned nil slice")
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ListProfiles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetProfile_EscapesName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/profiles/My%20Voice" {
			t.Errorf("EscapedPath = %s, want /profiles/My%%20Voice", r.URL.EscapedPath())
		}
		w.Write([]byte(`{"name":"My Voice","pitch_shift":4,"formant_shift":1.1,"resonance":10,"brightness":2,"timbre_shift":1,"gender_strength":60,"breath_noise":5}`))
	}))
	defer server.Close()

	p, err := NewClient(server.URL).GetProfile(context.Background(), "My Voice")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}

	if p.Name != "My Voice" || p.PitchShift != 4 || p.GenderStrength != 60 {
		t.Errorf("GetProfile() = %+v", p)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Profile not found"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetProfile(context.Background(), "Ghost")
	if !IsNotFoundError(err) {
		t.Fatalf("GetProfile() error should be not found, got %v", err)
	}

	if !strings.Contains(err.Error(), "Profile not found") {
		t.Errorf("error should carry backend detail, got %v", err)
	}
}

func TestSaveProfile_WrapsAndClamps(t *testing.T) {
	var received saveProfileRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/profiles" {
			t.Errorf("Request = %s %s, want POST /profiles", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("body is not a profile wrapper: %v", err)
		}
		w.Write([]byte(`{"message":"saved"}`))
	}))
	defer server.Close()

	p := DefaultProfile()
	p.Name = "Loud"
	p.PitchShift = 50
	p.Resonance = -3

	if err := NewClient(server.URL).SaveProfile(context.Background(), p); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	if received.Profile.Name != "Loud" {
		t.Errorf("Name = %s, want Loud", received.Profile.Name)
	}
	if received.Profile.PitchShift != 12 {
		t.Errorf("PitchShift = %v, want 12", received.Profile.PitchShift)
	}
	if received.Profile.Resonance != 0 {
		t.Errorf("Resonance = %v, want 0", received.Profile.Resonance)
	}
}

func TestDeleteProfile(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       bool
		wantProtected bool
		wantNotFound  bool
	}{
		{"deleted", http.StatusOK, `{"message":"deleted"}`, false, false, false},
		{"forbidden", http.StatusForbidden, `{"detail":"nope"}`, true, true, false},
		{"conflict", http.StatusConflict, ``, true, true, false},
		{"locked", http.StatusLocked, ``, true, true, false},
		{"explicit flag", http.StatusBadRequest, `{"detail":"cannot delete","protected":true}`, true, true, false},
		{"404 protected detail", http.StatusNotFound, `{"detail":"Profile not found or is a protected default profile"}`, true, true, false},
		{"404 missing", http.StatusNotFound, `{"detail":"Profile not found"}`, true, false, true},
		{"server error", http.StatusInternalServerError, `boom`, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete {
					t.Errorf("Method = %s, want DELETE", r.Method)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewClient(server.URL).DeleteProfile(context.Background(), "DefaultFemale")
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeleteProfile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if IsProtectedError(err) != tt.wantProtected {
				t.Errorf("IsProtectedError = %v, want %v (%v)", IsProtectedError(err), tt.wantProtected, err)
			}
			if IsNotFoundError(err) != tt.wantNotFound {
				t.Errorf("IsNotFoundError = %v, want %v (%v)", IsNotFoundError(err), tt.wantNotFound, err)
			}
		})
	}
}

func TestUpdateConfig_SendsNullDevices(t *testing.T) {
	var raw map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &raw)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.InputDevice = IntPtr(3)

	if err := NewClient(server.URL).UpdateConfig(context.Background(), cfg); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}

	if v, ok := raw["output_device"]; !ok || v != nil {
		t.Errorf("output_device should be present and null, got %v (present=%v)", v, ok)
	}
	if raw["input_device"] != float64(3) {
		t.Errorf("input_device = %v, want 3", raw["input_device"])
	}
	if raw["buffer_size"] != float64(DefaultBufferSize) {
		t.Errorf("buffer_size = %v, want %d", raw["buffer_size"], DefaultBufferSize)
	}
}

func TestApplyProfile_Path(t *testing.T) {
	var hits int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile/apply" {
			t.Errorf("Path = %s, want /profile/apply", r.URL.Path)
		}
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if err := NewClient(server.URL).ApplyProfile(context.Background(), DefaultProfile()); err != nil {
		t.Fatalf("ApplyProfile() error = %v", err)
	}

	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("hits = %d, want exactly 1", hits)
	}
}

func TestGetStatus_HTTPError(t *testing.T) {
	var hits int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetStatus(context.Background())
	if !IsHTTPError(err) {
		t.Fatalf("GetStatus() error should be HTTP error, got %v", err)
	}

	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("hits = %d, want 1 (no retries)", hits)
	}

	if ShortMessage(err) != "Backend error (HTTP 503)" {
		t.Errorf("ShortMessage = %q", ShortMessage(err))
	}
}

func TestGetStatus_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"latency_ms":12.5,"input_device":"Mic","output_device":null,"enabled":true,"cpu_usage":7.25}`))
	}))
	defer server.Close()

	s, err := NewClient(server.URL).GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}

	if s.LatencyMs != 12.5 || !s.Enabled || s.CPUUsage != 7.25 {
		t.Errorf("GetStatus() = %+v", s)
	}
	if s.InputDevice == nil || *s.InputDevice != "Mic" {
		t.Errorf("InputDevice = %v, want Mic", s.InputDevice)
	}
	if s.OutputDevice != nil {
		t.Errorf("OutputDevice = %v, want nil", *s.OutputDevice)
	}
}
