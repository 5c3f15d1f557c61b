package state

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/logging"
	"github.com/muurk/voxsync/internal/protocol"
)

// DefaultPushTimeout bounds a coalesced push that runs off the caller's goroutine
const DefaultPushTimeout = 5 * time.Second

// Pusher sends local changes to the backend. *api.Client satisfies it.
type Pusher interface {
	UpdateConfig(ctx context.Context, cfg api.Config) error
	ApplyProfile(ctx context.Context, p api.Profile) error
}

// Snapshot is a copy of the canonical client state
type Snapshot struct {
	Config    api.Config
	Profile   api.Profile
	Status    api.StatusSnapshot
	HasStatus bool // false until the first status arrives
}

// Stats counts pushes since the synchronizer was created
type Stats struct {
	ConfigPushes   int
	ProfilePushes  int
	PushFailures   int
	StagedConfigs  int // config edits held back because a device was unset
	CoalescedEdits int // profile edits folded into a later push
}

// Options configures a Synchronizer
type Options struct {
	// CoalesceWindow delays profile pushes so a burst of edits produces a
	// single push of the last edit. Zero pushes every edit immediately.
	CoalesceWindow time.Duration

	// PushTimeout bounds coalesced pushes. Defaults to DefaultPushTimeout.
	PushTimeout time.Duration

	// Logger replaces the component logger
	Logger *zap.Logger
}

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

type snapshotSub struct {
	id int
	fn func(Snapshot)
}

type noticeSub struct {
	id int
	fn func(error)
}

// Synchronizer owns the canonical configuration, profile and status.
//
// Local edits update the canonical copy first and are then pushed to the
// backend. Remote messages replace their entity wholesale. A failed push
// never rolls back the local edit.
type Synchronizer struct {
	pusher      Pusher
	window      time.Duration
	pushTimeout time.Duration
	log         *zap.Logger
	after       afterFunc

	mu           sync.Mutex
	config       api.Config
	profile      api.Profile
	status       api.StatusSnapshot
	hasStatus    bool
	pending      *api.Profile
	pendingTimer timer
	pendingGen   uint64
	stats        Stats
	closed       bool

	// Pushes of one entity are serialized so they reach the backend in order
	configPushMu  sync.Mutex
	profilePushMu sync.Mutex

	subMu     sync.Mutex
	nextSubID int
	subs      []snapshotSub
	notices   []noticeSub
}

// New creates a synchronizer starting from the default configuration and profile
func New(pusher Pusher, opts Options) *Synchronizer {
	s := &Synchronizer{
		pusher:      pusher,
		window:      opts.CoalesceWindow,
		pushTimeout: opts.PushTimeout,
		log:         opts.Logger,
		after:       realAfterFunc,
		config:      api.DefaultConfig(),
		profile:     api.DefaultProfile(),
	}
	if s.pushTimeout <= 0 {
		s.pushTimeout = DefaultPushTimeout
	}
	if s.log == nil {
		s.log = logging.Named("state")
	}
	return s
}

// Snapshot returns a copy of the current state
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	return Snapshot{
		Config:    s.config.Clone(),
		Profile:   s.profile,
		Status:    s.status.Clone(),
		HasStatus: s.hasStatus,
	}
}

// Stats returns the push counters
func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ApplyLocalConfigEdit merges a user edit into the configuration.
//
// The edit is validated first; a rejected edit changes nothing. The merged
// configuration is pushed only when both devices are set. While a device is
// unset the edit is staged locally and processing is forced off.
func (s *Synchronizer) ApplyLocalConfigEdit(ctx context.Context, edit api.ConfigEdit) (api.Config, error) {
	if err := api.ValidateConfigEdit(edit); err != nil {
		return s.Snapshot().Config, err
	}

	s.mu.Lock()
	next := edit.Apply(s.config)
	if edit.Enabled != nil && *edit.Enabled && !next.DevicesSelected() {
		current := s.config.Clone()
		s.mu.Unlock()
		return current, api.ErrDevicesRequired
	}
	s.config = next
	staged := !next.DevicesSelected()
	if staged {
		s.stats.StagedConfigs++
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)

	if staged {
		logging.LogPush("config", "staged, devices incomplete", zap.String("config", next.Summary()))
		return next.Clone(), nil
	}
	return next.Clone(), s.pushConfig(ctx)
}

// ToggleEnabled flips processing on or off. Enabling without both devices is
// rejected with a validation error and nothing changes.
func (s *Synchronizer) ToggleEnabled(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if !s.config.DevicesSelected() {
		enabled := s.config.Enabled
		s.mu.Unlock()
		return enabled, api.ErrDevicesRequired
	}
	s.config.Enabled = !s.config.Enabled
	enabled := s.config.Enabled
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return enabled, s.pushConfig(ctx)
}

// pushConfig sends the current canonical configuration
func (s *Synchronizer) pushConfig(ctx context.Context) error {
	s.configPushMu.Lock()
	defer s.configPushMu.Unlock()

	s.mu.Lock()
	cfg := s.config.Clone()
	s.mu.Unlock()

	if !cfg.DevicesSelected() {
		return nil
	}

	err := s.pusher.UpdateConfig(ctx, cfg)

	s.mu.Lock()
	if err != nil {
		s.stats.PushFailures++
	} else {
		s.stats.ConfigPushes++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Config push failed", zap.String("config", cfg.Summary()), zap.Error(err))
		return err
	}
	logging.LogPush("config", "local edit", zap.String("config", cfg.Summary()))
	return nil
}

// ApplyLocalProfileEdit merges a user edit into the active profile. Values are
// clamped to their ranges. Without a coalescing window the result is pushed
// before returning; otherwise the push is deferred until edits stop arriving
// for one window and carries the profile of the last edit.
func (s *Synchronizer) ApplyLocalProfileEdit(ctx context.Context, edit api.ProfileEdit) (api.Profile, error) {
	s.mu.Lock()
	next := edit.Apply(s.profile)
	s.profile = next

	if s.window <= 0 || s.closed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.publish(snap)
		return next, s.pushProfile(ctx, next, "local edit")
	}

	if s.pending != nil {
		s.stats.CoalescedEdits++
	}
	p := next
	s.pending = &p
	if s.pendingTimer != nil {
		s.pendingTimer.Stop()
	}
	s.pendingGen++
	gen := s.pendingGen
	s.pendingTimer = s.after(s.window, func() { s.flushPending(gen) })
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return next, nil
}

// takePendingLocked removes the pending coalesced profile. Caller holds mu.
func (s *Synchronizer) takePendingLocked() *api.Profile {
	if s.pendingTimer != nil {
		s.pendingTimer.Stop()
		s.pendingTimer = nil
	}
	p := s.pending
	s.pending = nil
	return p
}

// flushPending runs from the coalescing timer armed as generation gen
func (s *Synchronizer) flushPending(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.pendingGen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	p := *s.pending
	s.pending = nil
	s.pendingTimer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
	defer cancel()

	if err := s.pushProfile(ctx, p, "coalesced edit"); err != nil {
		s.notify(err)
	}
}

// Flush pushes a pending coalesced profile now. It is a no-op when nothing
// is pending.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	p := s.takePendingLocked()
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	return s.pushProfile(ctx, *p, "flush")
}

// HasPending reports whether a coalesced profile push is waiting
func (s *Synchronizer) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Synchronizer) pushProfile(ctx context.Context, p api.Profile, reason string) error {
	s.profilePushMu.Lock()
	defer s.profilePushMu.Unlock()

	err := s.pusher.ApplyProfile(ctx, p)

	s.mu.Lock()
	if err != nil {
		s.stats.PushFailures++
	} else {
		s.stats.ProfilePushes++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Profile push failed", zap.String("profile", p.Name), zap.String("reason", reason), zap.Error(err))
		return err
	}
	logging.LogPush("profile", reason, zap.String("profile", p.FormatCompact()))
	return nil
}

// ReplaceProfile makes p the active profile and applies it to the backend.
// It is the explicit user action behind loading a stored profile, so it
// discards any pending coalesced edit.
func (s *Synchronizer) ReplaceProfile(ctx context.Context, p api.Profile) error {
	p = p.Clamped()

	s.mu.Lock()
	if dropped := s.takePendingLocked(); dropped != nil {
		s.log.Debug("Discarding pending profile edit", zap.String("profile", dropped.Name))
	}
	s.profile = p
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return s.pushProfile(ctx, p, "load")
}

// OnRemoteStatus replaces the status snapshot
func (s *Synchronizer) OnRemoteStatus(status api.StatusSnapshot) {
	s.mu.Lock()
	s.status = status.Clone()
	s.hasStatus = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// OnRemoteConfig replaces the configuration. A config edit the backend
// sends while a local push is in flight wins until the next local edit.
func (s *Synchronizer) OnRemoteConfig(cfg api.Config) {
	s.mu.Lock()
	s.config = cfg.Clone()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// OnRemoteProfile replaces the active profile. A pending coalesced push is
// left in place, so the user's last edit still reaches the backend after it.
func (s *Synchronizer) OnRemoteProfile(p api.Profile) {
	s.mu.Lock()
	s.profile = p
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// HandleInbound routes a decoded channel message. Unknown messages are ignored.
func (s *Synchronizer) HandleInbound(msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.StatusMessage:
		s.OnRemoteStatus(m.Status)
	case protocol.ConfigUpdateMessage:
		s.OnRemoteConfig(m.Config)
	case protocol.ProfileUpdateMessage:
		s.OnRemoteProfile(m.Profile)
	}
}

// Subscribe registers a callback that receives a snapshot after every change
func (s *Synchronizer) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, snapshotSub{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// OnNotice registers a callback for failures that have no caller to return
// to, such as a coalesced push failing after the edit returned
func (s *Synchronizer) OnNotice(fn func(error)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.notices = append(s.notices, noticeSub{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.notices {
			if sub.id == id {
				s.notices = append(s.notices[:i], s.notices[i+1:]...)
				return
			}
		}
	}
}

// Close stops the coalescing timer. A pending edit is dropped; call Flush
// first to deliver it.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.takePendingLocked()
}

func (s *Synchronizer) publish(snap Snapshot) {
	s.subMu.Lock()
	subs := make([]snapshotSub, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

func (s *Synchronizer) notify(err error) {
	s.subMu.Lock()
	notices := make([]noticeSub, len(s.notices))
	copy(notices, s.notices)
	s.subMu.Unlock()

	for _, n := range notices {
		n.fn(err)
	}
}
