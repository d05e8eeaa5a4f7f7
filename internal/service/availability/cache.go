package availability

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
)

// Cache is a request-scoped read-through cache for the lookups repeated
// while checking one booking. Create one per request; never share it.
type Cache struct {
	db    *repo.Client
	store settings.Store

	mu        sync.Mutex
	settings  *settings.Settings
	services  map[int64]*domain.Service
	providers map[string][]*domain.Provider
}

func NewCache(db *repo.Client, store settings.Store) *Cache {
	return &Cache{
		db:        db,
		store:     store,
		services:  make(map[int64]*domain.Service),
		providers: make(map[string][]*domain.Provider),
	}
}

// Settings loads one snapshot per request.
func (c *Cache) Settings(ctx context.Context) (*settings.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings != nil {
		return c.settings, nil
	}
	s, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.settings = s
	return s, nil
}

func (c *Cache) Service(ctx context.Context, id int64) (*domain.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if svc, ok := c.services[id]; ok {
		return svc, nil
	}
	svc, err := c.db.Use(ctx).Service.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	c.services[id] = svc
	return svc, nil
}

// Providers returns the providers offering the service, narrowed by ids.
func (c *Cache) Providers(ctx context.Context, serviceID int64, providerIDs []int64) ([]*domain.Provider, error) {
	key := providersKey(serviceID, providerIDs)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ps, ok := c.providers[key]; ok {
		return ps, nil
	}
	ps, err := c.db.Use(ctx).Provider.ListForService(ctx, serviceID, providerIDs)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	c.providers[key] = ps
	return ps, nil
}

func providersKey(serviceID int64, providerIDs []int64) string {
	sorted := slices.Clone(providerIDs)
	slices.Sort(sorted)
	parts := make([]string, 0, len(sorted)+1)
	parts = append(parts, strconv.FormatInt(serviceID, 10))
	for _, id := range sorted {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ":")
}
