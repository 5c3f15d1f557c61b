package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/protocol"
)

// recordingPusher captures pushes and can be told to fail
type recordingPusher struct {
	mu       sync.Mutex
	configs  []api.Config
	profiles []api.Profile
	err      error
}

func (p *recordingPusher) UpdateConfig(_ context.Context, cfg api.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.configs = append(p.configs, cfg)
	return nil
}

func (p *recordingPusher) ApplyProfile(_ context.Context, pr api.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.profiles = append(p.profiles, pr)
	return nil
}

func (p *recordingPusher) configCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.configs)
}

func (p *recordingPusher) profileCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.profiles)
}

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (ft *fakeTimer) Stop() bool {
	was := !ft.stopped
	ft.stopped = true
	return was
}

type fakeScheduler struct {
	timers []*fakeTimer
}

func (fs *fakeScheduler) after(_ time.Duration, f func()) timer {
	ft := &fakeTimer{fn: f}
	fs.timers = append(fs.timers, ft)
	return ft
}

func (fs *fakeScheduler) active() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range fs.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }

func TestConfigEdit_NotPushedWithoutBothDevices(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(pusher, Options{})
	ctx := context.Background()

	cfg, err := s.ApplyLocalConfigEdit(ctx, api.ConfigEdit{InputDevice: api.IntPtr(0)})
	if err != nil {
		t.Fatalf("ApplyLocalConfigEdit() error = %v", err)
	}
	if cfg.InputDevice == nil || *cfg.InputDevice != 0 {
		t.Errorf("InputDevice = %v, want 0", cfg.InputDevice)
	}
	if pusher.configCount() != 0 {
		t.Fatalf("config pushed with output device unset")
	}
	if s.Stats().StagedConfigs != 1 {
		t.Errorf("StagedConfigs = %d, want 1", s.Stats().StagedConfigs)
	}

	if _, err := s.ApplyLocalConfigEdit(ctx, api.ConfigEdit{OutputDevice: api.IntPtr(1)}); err != nil {
		t.Fatalf("ApplyLocalConfigEdit() error = %v", err)
	}
	if pusher.configCount() != 1 {
		t.Fatalf("config pushes = %d, want 1", pusher.configCount())
	}

	pushed := pusher.configs[0]
	if *pushed.InputDevice != 0 || *pushed.OutputDevice != 1 {
		t.Errorf("pushed config = %s", pushed.Summary())
	}
}

func TestToggleEnabled_RequiresDevices(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(pusher, Options{})
	ctx := context.Background()

	enabled, err := s.ToggleEnabled(ctx)
	if !api.IsValidationError(err) {
		t.Fatalf("ToggleEnabled() error = %v, want validation error", err)
	}
	if enabled || s.Snapshot().Config.Enabled {
		t.Error("Enabled must stay false")
	}
	if pusher.configCount() != 0 {
		t.Error("rejected toggle must not push")
	}

	// The same rule applies to an edit that sets Enabled directly
	_, err = s.ApplyLocalConfigEdit(ctx, api.ConfigEdit{InputDevice: api.IntPtr(2), Enabled: boolPtr(true)})
	if !api.IsValidationError(err) {
		t.Fatalf("enable edit error = %v, want validation error", err)
	}
	if s.Snapshot().Config.InputDevice != nil {
		t.Error("rejected edit must not change state")
	}
}

func TestToggleEnabled_Pushes(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(pusher, Options{})
	ctx := context.Background()

	_, _ = s.ApplyLocalConfigEdit(ctx, api.ConfigEdit{InputDevice: api.IntPtr(0), OutputDevice: api.IntPtr(1)})

	enabled, err := s.ToggleEnabled(ctx)
	if err != nil || !enabled {
		t.Fatalf("ToggleEnabled() = %v, %v", enabled, err)
	}

	if pusher.configCount() != 2 {
		t.Fatalf("config pushes = %d, want 2", pusher.configCount())
	}
	if !pusher.configs[1].Enabled {
		t.Error("second push should carry enabled=true")
	}
}

func TestConfigEdit_ClearingDeviceDisables(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(pusher, Options{})
	ctx := context.Background()

	_, _ = s.ApplyLocalConfigEdit(ctx, api.ConfigEdit{InputDevice: api.IntPtr(0), OutputDevice: api.IntPtr(1), Enabled: boolPtr(true)})
	before := pusher.configCount()

	cfg, err := s.ApplyLocalConfigEdit(ctx, api.ConfigEdit{ClearOutput: true})
	if err != nil {
		t.Fatalf("ApplyLocalConfigEdit() error = %v", err)
	}
	if cfg.Enabled {
		t.Error("clearing a device should force processing off")
	}
	if pusher.configCount() != before {
		t.Error("config with an unset device must not be pushed")
	}
}

func TestConfigEdit_InvalidBufferRejected(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(pusher, Options{})

	_, err := s.ApplyLocalConfigEdit(context.Background(), api.ConfigEdit{BufferSize: api.IntPtr(300)})
	if !api.IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if s.Snapshot().Config.BufferSize != api.DefaultBufferSize {
		t.Error("rejected edit changed the buffer size")
	}
}

func TestProfileEdit_ClampedAndPushed(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(pusher, Options{})

	p, err := s.ApplyLocalProfileEdit(context.Background(), api.ProfileEdit{PitchShift: floatPtr(50)})
	if err != nil {
		t.Fatalf("ApplyLocalProfileEdit() error = %v", err)
	}
	if p.PitchShift != 12 {
		t.Errorf("PitchShift = %v, want 12", p.PitchShift)
	}
	if s.Snapshot().Profile.PitchShift != 12 {
		t.Error("canonical profile should hold the clamped value")
	}
	if pusher.profileCount() != 1 || pusher.profiles[0].PitchShift != 12 {
		t.Fatalf("pushed profiles = %+v", pusher.profiles)
	}
}

func TestPushFailure_KeepsLocalEdit(t *testing.T) {
	pusher := &recordingPusher{err: errors.New("backend down")}
	s := New(pusher, Options{})

	_, err := s.ApplyLocalProfileEdit(context.Background(), api.ProfileEdit{Brightness: floatPtr(3)})
	if err == nil {
		t.Fatal("push failure should be returned")
	}
	if s.Snapshot().Profile.Brightness != 3 {
		t.Error("failed push must not roll back the edit")
	}
	if s.Stats().PushFailures != 1 {
		t.Errorf("PushFailures = %d, want 1", s.Stats().PushFailures)
	}
}

func TestRemoteStatus_OnlyUpdatesStatus(t *testing.T) {
	s := New(&recordingPusher{}, Options{})
	ctx := context.Background()

	_, _ = s.ApplyLocalConfigEdit(ctx, api.ConfigEdit{InputDevice: api.IntPtr(4)})
	_, _ = s.ApplyLocalProfileEdit(ctx, api.ProfileEdit{Resonance: floatPtr(30)})
	before := s.Snapshot()

	s.HandleInbound(protocol.StatusMessage{Status: api.StatusSnapshot{LatencyMs: 12.5, Enabled: true}})

	after := s.Snapshot()
	if !after.HasStatus || after.Status.LatencyMs != 12.5 {
		t.Errorf("status = %+v", after.Status)
	}
	if !after.Config.Equal(before.Config) {
		t.Errorf("config changed: %s -> %s", before.Config.Summary(), after.Config.Summary())
	}
	if after.Profile != before.Profile {
		t.Errorf("profile changed: %+v -> %+v", before.Profile, after.Profile)
	}
}

func TestRemoteUpdates_ReplaceWholesale(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(pusher, Options{})
	ctx := context.Background()

	_, _ = s.ApplyLocalProfileEdit(ctx, api.ProfileEdit{PitchShift: floatPtr(4), BreathNoise: floatPtr(20)})

	remote := api.Profile{Name: "Remote", PitchShift: -2, FormantShift: 1, TimbreShift: 1}
	s.HandleInbound(protocol.ProfileUpdateMessage{Profile: remote})
	if got := s.Snapshot().Profile; got != remote {
		t.Errorf("profile = %+v, want %+v", got, remote)
	}

	cfg := api.Config{InputDevice: api.IntPtr(5), OutputDevice: api.IntPtr(6), BufferSize: 1024, SampleRate: 44100, Enabled: true}
	s.HandleInbound(protocol.ConfigUpdateMessage{Config: cfg})
	if got := s.Snapshot().Config; !got.Equal(cfg) {
		t.Errorf("config = %s, want %s", got.Summary(), cfg.Summary())
	}

	s.HandleInbound(protocol.UnknownMessage{Type: "waveform"})

	if pusher.configCount() != 0 || pusher.profileCount() != 1 {
		t.Error("remote updates must not trigger pushes")
	}
}

func TestCoalescing_PushesLastEdit(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(pusher, Options{CoalesceWindow: 100 * time.Millisecond})
	fs := &fakeScheduler{}
	s.after = fs.after
	ctx := context.Background()

	for _, v := range []float64{1, 2, 3} {
		if _, err := s.ApplyLocalProfileEdit(ctx, api.ProfileEdit{PitchShift: floatPtr(v)}); err != nil {
			t.Fatalf("ApplyLocalProfileEdit() error = %v", err)
		}
	}

	if pusher.profileCount() != 0 {
		t.Fatal("coalesced edits should not push immediately")
	}
	active := fs.active()
	if len(active) != 1 {
		t.Fatalf("active timers = %d, want 1", len(active))
	}
	if !s.HasPending() {
		t.Error("HasPending() should be true")
	}

	// A remote profile does not cancel the pending push
	s.OnRemoteProfile(api.Profile{Name: "Remote", FormantShift: 1, TimbreShift: 1})

	active[0].fn()

	if pusher.profileCount() != 1 {
		t.Fatalf("profile pushes = %d, want 1", pusher.profileCount())
	}
	if pusher.profiles[0].PitchShift != 3 {
		t.Errorf("pushed PitchShift = %v, want 3 (last edit)", pusher.profiles[0].PitchShift)
	}
	if s.Stats().CoalescedEdits != 2 {
		t.Errorf("CoalescedEdits = %d, want 2", s.Stats().CoalescedEdits)
	}

	// Stale timers do nothing
	fs.timers[0].fn()
	if pusher.profileCount() != 1 {
		t.Error("stale timer pushed again")
	}
}

func TestCoalescing_FailureRaisesNotice(t *testing.T) {
	pusher := &recordingPusher{err: errors.New("timeout")}
	s := New(pusher, Options{CoalesceWindow: time.Second})
	fs := &fakeScheduler{}
	s.after = fs.after

	var notices []error
	s.OnNotice(func(err error) { notices = append(notices, err) })

	_, _ = s.ApplyLocalProfileEdit(context.Background(), api.ProfileEdit{Resonance: floatPtr(40)})
	fs.active()[0].fn()

	if len(notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(notices))
	}
	if s.Snapshot().Profile.Resonance != 40 {
		t.Error("failed coalesced push must not roll back the edit")
	}
}

func TestFlush(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(pusher, Options{CoalesceWindow: time.Second})
	fs := &fakeScheduler{}
	s.after = fs.after
	ctx := context.Background()

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() with nothing pending error = %v", err)
	}

	_, _ = s.ApplyLocalProfileEdit(ctx, api.ProfileEdit{TimbreShift: floatPtr(1.5)})
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if pusher.profileCount() != 1 || pusher.profiles[0].TimbreShift != 1.5 {
		t.Fatalf("pushed profiles = %+v", pusher.profiles)
	}
	if len(fs.active()) != 0 {
		t.Error("Flush should stop the timer")
	}
	if s.HasPending() {
		t.Error("nothing should be pending after Flush")
	}
}

func TestReplaceProfile_DiscardsPending(t *testing.T) {
	pusher := &recordingPusher{}
	s := New(pusher, Options{CoalesceWindow: time.Second})
	fs := &fakeScheduler{}
	s.after = fs.after
	ctx := context.Background()

	_, _ = s.ApplyLocalProfileEdit(ctx, api.ProfileEdit{PitchShift: floatPtr(7)})

	loaded := api.DefaultProfile()
	loaded.Name = "Studio"
	loaded.GenderStrength = 80
	if err := s.ReplaceProfile(ctx, loaded); err != nil {
		t.Fatalf("ReplaceProfile() error = %v", err)
	}

	if s.HasPending() {
		t.Error("ReplaceProfile should discard the pending edit")
	}
	if pusher.profileCount() != 1 || pusher.profiles[0].Name != "Studio" {
		t.Fatalf("pushed profiles = %+v", pusher.profiles)
	}
	if s.Snapshot().Profile != loaded {
		t.Errorf("profile = %+v, want %+v", s.Snapshot().Profile, loaded)
	}
}

func TestSubscribe(t *testing.T) {
	s := New(&recordingPusher{}, Options{})

	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	s.OnRemoteStatus(api.StatusSnapshot{CPUUsage: 4})
	unsubscribe()
	s.OnRemoteStatus(api.StatusSnapshot{CPUUsage: 8})

	if len(got) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(got))
	}
	if got[0].Status.CPUUsage != 4 {
		t.Errorf("CPUUsage = %v, want 4", got[0].Status.CPUUsage)
	}
}
