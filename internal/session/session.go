package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/channel"
	"github.com/muurk/voxsync/internal/config"
	"github.com/muurk/voxsync/internal/logging"
	"github.com/muurk/voxsync/internal/profiles"
	"github.com/muurk/voxsync/internal/protocol"
	"github.com/muurk/voxsync/internal/state"
)

// closeFlushTimeout bounds the final coalesced push made by Close
const closeFlushTimeout = 2 * time.Second

// Session owns one connection to a backend: the API client, the event
// channel, the state synchronizer and the profile registry. Sessions share
// nothing, so several may run side by side.
type Session struct {
	settings *config.Settings
	log      *zap.Logger

	client   *api.Client
	channel  *channel.Manager
	syncer   *state.Synchronizer
	profiles *profiles.Registry

	mu      sync.RWMutex
	devices []api.AudioDevice

	unsubs    []func()
	closeOnce sync.Once
}

// New wires a session from settings. Nothing touches the network until Start.
func New(settings *config.Settings) (*Session, error) {
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, api.NewValidationError(err.Error())
	}

	log := logging.Named("session")

	client := api.NewClient(settings.Backend.URL)
	client.SetTimeout(settings.Backend.Timeout)

	ch := channel.New(settings.WebSocketURL(), channel.WithPolicy(reconnectPolicy(settings.Channel)))

	syncer := state.New(client, state.Options{
		CoalesceWindow: settings.Sync.CoalesceWindow,
		PushTimeout:    settings.Backend.Timeout,
	})

	s := &Session{
		settings: settings,
		log:      log,
		client:   client,
		channel:  ch,
		syncer:   syncer,
		profiles: profiles.NewRegistry(client, syncer),
	}

	s.unsubs = append(s.unsubs,
		ch.OnMessage(s.route),
		ch.OnState(func(st channel.State) {
			s.log.Debug("Channel state changed", zap.String("state", st.String()))
		}),
	)
	return s, nil
}

func reconnectPolicy(c config.ChannelSettings) backoff.BackOff {
	if c.ReconnectPolicy == config.PolicyExponential {
		return channel.NewExponentialPolicy(c.ReconnectDelay, c.MaxReconnectDelay)
	}
	return channel.NewConstantPolicy(c.ReconnectDelay)
}

func (s *Session) route(msg protocol.Inbound) {
	s.syncer.HandleInbound(msg)
}

// Start opens the event channel and fetches status, devices and the
// profile list. A failed dial is not fatal: the channel keeps retrying.
// The first failed fetch is returned.
func (s *Session) Start(ctx context.Context) error {
	if err := s.channel.Connect(ctx); err != nil {
		if errors.Is(err, channel.ErrClosed) {
			return err
		}
		s.log.Warn("Event channel unavailable, retrying in background",
			zap.String("url", s.channel.URL()), zap.Error(err))
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	status, err := s.client.GetStatus(ctx)
	if err == nil {
		s.syncer.OnRemoteStatus(status)
	}
	keep(err)
	keep(s.RefreshDevices(ctx))
	keep(s.profiles.Refresh(ctx))

	return firstErr
}

// RestoreDevices stages the devices remembered in the settings file. It
// pushes only when both are remembered.
func (s *Session) RestoreDevices(ctx context.Context) error {
	d := s.settings.Devices
	if d.Input == nil && d.Output == nil {
		return nil
	}
	edit := api.ConfigEdit{InputDevice: d.Input, OutputDevice: d.Output}
	_, err := s.syncer.ApplyLocalConfigEdit(ctx, edit)
	return err
}

// Devices returns the device list fetched by Start or RefreshDevices
func (s *Session) Devices() []api.AudioDevice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.AudioDevice, len(s.devices))
	copy(out, s.devices)
	return out
}

// RefreshDevices fetches the device list. The cache is kept on failure.
func (s *Session) RefreshDevices(ctx context.Context) error {
	devices, err := s.client.ListDevices(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.devices = devices
	s.mu.Unlock()
	return nil
}

// Client returns the API client
func (s *Session) Client() *api.Client { return s.client }

// Channel returns the event channel manager
func (s *Session) Channel() *channel.Manager { return s.channel }

// State returns the synchronizer holding the canonical state
func (s *Session) State() *state.Synchronizer { return s.syncer }

// Profiles returns the profile registry
func (s *Session) Profiles() *profiles.Registry { return s.profiles }

// Settings returns the settings the session was built from
func (s *Session) Settings() *config.Settings { return s.settings }

// ConnectionState returns the event channel state
func (s *Session) ConnectionState() channel.State {
	return s.channel.State()
}

// Close delivers any coalesced profile edit, then stops the channel and all
// timers. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, unsub := range s.unsubs {
			unsub()
		}

		ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
		if ferr := s.syncer.Flush(ctx); ferr != nil {
			s.log.Warn("Final profile push failed", zap.Error(ferr))
		}
		cancel()

		s.syncer.Close()
		err = s.channel.Close()
	})
	return err
}
