package profiles

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/logging"
)

// ShippedNames are the profiles a stock backend installs. Only LikelyProtected
// uses them; the backend alone decides what may be deleted.
var ShippedNames = []string{
	"Default",
	"DefaultMale",
	"DefaultFemale",
	"Male to Female",
	"Female to Male",
	"Neutral Robot",
	"Deep Voice",
	"High Voice",
}

// Backend is the part of the API client the registry uses. *api.Client satisfies it.
type Backend interface {
	ListProfiles(ctx context.Context) ([]string, error)
	GetProfile(ctx context.Context, name string) (api.Profile, error)
	SaveProfile(ctx context.Context, p api.Profile) error
	DeleteProfile(ctx context.Context, name string) error
}

// Applier makes a loaded profile the active one. *state.Synchronizer satisfies it.
type Applier interface {
	ReplaceProfile(ctx context.Context, p api.Profile) error
}

// Registry is a cached view of the stored profile names with the
// save/load/delete operations.
type Registry struct {
	backend Backend
	applier Applier
	log     *zap.Logger

	mu          sync.RWMutex
	names       []string
	refreshedAt time.Time
}

// NewRegistry creates a registry. The name list is empty until Refresh.
func NewRegistry(backend Backend, applier Applier) *Registry {
	return &Registry{
		backend: backend,
		applier: applier,
		log:     logging.Named("profiles"),
	}
}

// List returns the cached profile names in backend order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Contains reports whether the cached list has name
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.names {
		if n == name {
			return true
		}
	}
	return false
}

// RefreshedAt returns when the list was last fetched
func (r *Registry) RefreshedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}

// Refresh fetches the name list from the backend. On failure the cached list
// is kept.
func (r *Registry) Refresh(ctx context.Context) error {
	names, err := r.backend.ListProfiles(ctx)
	if err != nil {
		r.log.Warn("Profile list refresh failed", zap.Error(err))
		return err
	}

	r.mu.Lock()
	r.names = names
	r.refreshedAt = time.Now()
	r.mu.Unlock()

	r.log.Debug("Profile list refreshed", zap.Int("count", len(names)))
	return nil
}

// Save stores p under name and refreshes the list. A blank name is rejected
// before any request is made. The stored profile carries the trimmed name.
func (r *Registry) Save(ctx context.Context, name string, p api.Profile) error {
	if err := api.ValidateProfileName(name); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(name)

	if err := r.backend.SaveProfile(ctx, p); err != nil {
		return err
	}
	r.log.Info("Profile saved", zap.String("profile", p.Name))
	return r.Refresh(ctx)
}

// Load fetches a stored profile and makes it the active one
func (r *Registry) Load(ctx context.Context, name string) (api.Profile, error) {
	if err := api.ValidateProfileName(name); err != nil {
		return api.Profile{}, err
	}

	p, err := r.backend.GetProfile(ctx, name)
	if err != nil {
		return api.Profile{}, err
	}
	if err := r.applier.ReplaceProfile(ctx, p); err != nil {
		return p, err
	}

	r.log.Info("Profile loaded", zap.String("profile", p.Name))
	return p, nil
}

// Delete removes a stored profile and refreshes the list. A protected
// profile comes back as an ordinary error and the cached list is untouched.
func (r *Registry) Delete(ctx context.Context, name string) error {
	if err := api.ValidateProfileName(name); err != nil {
		return err
	}

	if err := r.backend.DeleteProfile(ctx, name); err != nil {
		if api.IsProtectedError(err) {
			r.log.Info("Backend refused to delete protected profile", zap.String("profile", name))
		}
		return err
	}

	r.log.Info("Profile deleted", zap.String("profile", name))
	return r.Refresh(ctx)
}

// LikelyProtected guesses whether the backend will refuse to delete name.
// It is a display hint; Delete never consults it.
func LikelyProtected(name string) bool {
	if strings.Contains(strings.ToLower(name), "default") {
		return true
	}
	for _, n := range ShippedNames {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Sorted returns names sorted case-insensitively without touching the input
func Sorted(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}
