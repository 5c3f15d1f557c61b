package mockbackend

import (
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/logging"
	"github.com/muurk/voxsync/internal/version"
)

// DefaultStatusInterval matches the stock backend's status broadcast period
const DefaultStatusInterval = time.Second

// Options configures the mock backend
type Options struct {
	// Devices served by GET /devices. Defaults to DefaultDevices.
	Devices []api.AudioDevice

	// StatusInterval is the period of the status broadcast. Zero uses
	// DefaultStatusInterval; a negative value disables it.
	StatusInterval time.Duration

	// StrictProtection answers a protected delete with 403 and an explicit
	// protected flag. Otherwise it answers 404 with a detail message, as the
	// stock backend does.
	StrictProtection bool

	// Logger replaces the component logger
	Logger *zap.Logger
}

// Server is an in-memory stand-in for the voice processing backend.
// It serves the REST configuration API and the /ws event channel.
type Server struct {
	opts     Options
	engine   *gin.Engine
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu        sync.Mutex
	config    api.Config
	active    api.Profile
	profiles  []api.Profile
	protected map[string]bool
	hits      map[string]int

	hub *hub

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a mock backend and starts its status broadcast
func New(opts Options) *Server {
	if len(opts.Devices) == 0 {
		opts.Devices = DefaultDevices
	}
	if opts.StatusInterval == 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.Named("mockbackend")
	}

	s := &Server{
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:       opts.Logger,
		config:    api.DefaultConfig(),
		active:    api.DefaultProfile(),
		protected: make(map[string]bool),
		hits:      make(map[string]int),
		stop:      make(chan struct{}),
	}
	s.hub = newHub(s.log)

	for _, p := range DefaultProfiles() {
		s.profiles = append(s.profiles, p)
		s.protected[p.Name] = true
	}

	s.engine = s.routes()

	if opts.StatusInterval > 0 {
		s.wg.Add(1)
		go s.statusLoop(opts.StatusInterval)
	}
	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	// Route registration stays quiet unless GIN_MODE asks otherwise
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.handleRoot)
	r.GET("/devices", s.handleDevices)
	r.GET("/profiles", s.handleListProfiles)
	r.GET("/profiles/:name", s.handleGetProfile)
	r.POST("/profiles", s.handleSaveProfile)
	r.DELETE("/profiles/:name", s.handleDeleteProfile)
	r.POST("/config", s.handleConfig)
	r.POST("/profile/apply", s.handleApplyProfile)
	r.GET("/status", s.handleStatus)
	r.GET("/ws", s.handleWS)
	return r
}

// requestLogger counts hits per route and logs each request
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(api.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(api.RequestIDHeader, requestID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		s.mu.Lock()
		s.hits[c.Request.Method+" "+route]++
		s.mu.Unlock()

		s.log.Debug("Request served",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Voice Modulator API",
		"version": version.Version,
		"status":  "running",
	})
}

func (s *Server) handleDevices(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Devices)
}

func (s *Server) handleListProfiles(c *gin.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		names = append(names, p.Name)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"profiles": names})
}

func (s *Server) handleGetProfile(c *gin.Context) {
	name := c.Param("name")

	s.mu.Lock()
	p, ok := s.findLocked(name)
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("Profile '%s' not found", name)})
		return
	}
	c.JSON(http.StatusOK, p)
}

type saveProfileRequest struct {
	Profile *api.Profile `json:"profile"`
}

func (s *Server) handleSaveProfile(c *gin.Context) {
	var req saveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Profile == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "request body must be {\"profile\": {...}}"})
		return
	}
	p := *req.Profile
	if err := checkProfile(p); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	if s.protected[p.Name] {
		s.mu.Unlock()
		c.JSON(http.StatusForbidden, gin.H{"detail": fmt.Sprintf("Profile '%s' is a protected default profile", p.Name), "protected": true})
		return
	}
	replaced := false
	for i := range s.profiles {
		if s.profiles[i].Name == p.Name {
			s.profiles[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		s.profiles = append(s.profiles, p)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": "Profile saved successfully", "profile_name": p.Name})
}

func (s *Server) handleDeleteProfile(c *gin.Context) {
	name := c.Param("name")

	s.mu.Lock()
	if s.protected[name] {
		s.mu.Unlock()
		if s.opts.StrictProtection {
			c.JSON(http.StatusForbidden, gin.H{"detail": fmt.Sprintf("Profile '%s' is protected", name), "protected": true})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{
			"detail": fmt.Sprintf("Profile '%s' not found or cannot be deleted (default profiles are protected)", name),
		})
		return
	}

	idx := -1
	for i, p := range s.profiles {
		if p.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("Profile '%s' not found", name)})
		return
	}
	s.profiles = append(s.profiles[:idx], s.profiles[idx+1:]...)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Profile '%s' deleted successfully", name)})
}

func (s *Server) handleConfig(c *gin.Context) {
	cfg := api.DefaultConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if err := s.checkConfig(cfg); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	s.applyConfig(cfg)
	s.hub.broadcastConfig(cfg)
	c.JSON(http.StatusOK, gin.H{"message": "Configuration updated successfully"})
}

func (s *Server) handleApplyProfile(c *gin.Context) {
	p := api.DefaultProfile()
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if err := checkProfile(p); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	s.applyProfile(p)
	s.hub.broadcastProfile(p)
	c.JSON(http.StatusOK, gin.H{"message": "Profile applied successfully"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Status())
}

func (s *Server) applyConfig(cfg api.Config) {
	s.mu.Lock()
	s.config = cfg.Clone()
	s.mu.Unlock()
	s.log.Info("Configuration applied", zap.String("config", cfg.Summary()))
}

func (s *Server) applyProfile(p api.Profile) {
	s.mu.Lock()
	s.active = p
	s.mu.Unlock()
	s.log.Info("Profile applied", zap.String("profile", p.FormatCompact()))
}

func (s *Server) findLocked(name string) (api.Profile, bool) {
	for _, p := range s.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return api.Profile{}, false
}

// checkConfig rejects what the stock backend's audio engine would refuse
func (s *Server) checkConfig(cfg api.Config) error {
	if err := api.FirstError(api.ValidateConfig(cfg)); err != nil {
		return err
	}
	for _, idx := range []*int{cfg.InputDevice, cfg.OutputDevice} {
		if idx != nil && *idx >= len(s.opts.Devices) {
			return fmt.Errorf("device %d does not exist", *idx)
		}
	}
	return nil
}

// checkProfile enforces the parameter ranges instead of clamping
func checkProfile(p api.Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name is required")
	}
	for _, r := range api.Params {
		v := r.Get(p)
		if math.IsNaN(v) || v < r.Min || v > r.Max {
			return fmt.Errorf("%s must be between %g and %g, got %g", r.Key, r.Min, r.Max, v)
		}
	}
	return nil
}

// Status computes the live status from the current configuration
func (s *Server) Status() api.StatusSnapshot {
	s.mu.Lock()
	cfg := s.config.Clone()
	s.mu.Unlock()

	status := api.StatusSnapshot{
		Enabled:      cfg.Enabled,
		InputDevice:  s.deviceName(cfg.InputDevice),
		OutputDevice: s.deviceName(cfg.OutputDevice),
	}
	if cfg.Enabled && cfg.SampleRate > 0 {
		status.LatencyMs = math.Round(float64(cfg.BufferSize)*2000/float64(cfg.SampleRate)*100) / 100
		status.CPUUsage = math.Round(float64(2048)/float64(cfg.BufferSize)*300) / 100
	}
	return status
}

func (s *Server) deviceName(idx *int) *string {
	if idx == nil {
		return nil
	}
	if name, ok := api.DeviceName(idx, s.opts.Devices); ok {
		return &name
	}
	return nil
}

func (s *Server) statusLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.hub.broadcastStatus(s.Status())
		}
	}
}

// Config returns the configuration last applied
func (s *Server) Config() api.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Clone()
}

// ActiveProfile returns the profile last applied
func (s *Server) ActiveProfile() api.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Hits returns how many requests matched route, e.g. "POST /config"
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// ClientCount returns the number of open event channel connections
func (s *Server) ClientCount() int {
	return s.hub.count()
}

// DropConnections abruptly closes every event channel connection so clients
// exercise their reconnect path. Returns how many were dropped.
func (s *Server) DropConnections() int {
	return s.hub.dropAll()
}

// Broadcast sends a raw frame to every connected client
func (s *Server) Broadcast(frame []byte) {
	s.hub.broadcast(frame)
}

// Close stops the status broadcast and disconnects every client
func (s *Server) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.hub.closeAll()
	})
	s.wg.Wait()
}
