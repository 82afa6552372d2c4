// Package weather serves mock weather reports for diary locations.
package weather

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/traveldiary/server/internal/pkg/redis"
	"github.com/traveldiary/server/internal/pkg/response"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "td:weather:"

// Report is a point-in-time weather snapshot.
type Report struct {
	Icon        string    `json:"icon"`
	Temperature int       `json:"temperature"`
	Condition   string    `json:"condition"`
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
}

// Provider looks up the current weather at a location.
type Provider interface {
	Current(ctx context.Context, location string) (Report, error)
}

type condition struct {
	icon        string
	name        string
	temperature int
}

var conditions = []condition{
	{"☀️", "Sunny", 25},
	{"☁️", "Cloudy", 18},
	{"🌧️", "Rainy", 12},
	{"❄️", "Snowy", -2},
	{"⛈️", "Stormy", 15},
	{"🌫️", "Foggy", 8},
}

// MockProvider picks a random condition for every lookup.
type MockProvider struct {
	now  func() time.Time
	pick func(n int) int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{now: time.Now, pick: rand.IntN}
}

func (p *MockProvider) Current(_ context.Context, location string) (Report, error) {
	c := conditions[p.pick(len(conditions))]
	return Report{
		Icon:        c.icon,
		Temperature: c.temperature,
		Condition:   c.name,
		Location:    location,
		Timestamp:   p.now().UTC(),
	}, nil
}

// Service caches provider reports in Redis per location. A nil cache or a
// non-positive TTL disables caching.
type Service struct {
	provider Provider
	cache    *redis.Client
	ttl      time.Duration
	log      *zap.Logger
}

func NewService(provider Provider, cache *redis.Client, ttl time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{provider: provider, cache: cache, ttl: ttl, log: log}
}

func (s *Service) Current(ctx context.Context, location string) (Report, error) {
	location = strings.TrimSpace(location)
	if s.cache == nil || s.ttl <= 0 {
		return s.provider.Current(ctx, location)
	}

	key := cacheKeyPrefix + strings.ToLower(location)
	if raw, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("weather cache read failed", zap.String("location", location), zap.Error(err))
	} else if raw != "" {
		var r Report
		if err := json.Unmarshal([]byte(raw), &r); err == nil {
			return r, nil
		}
	}

	r, err := s.provider.Current(ctx, location)
	if err != nil {
		return Report{}, err
	}
	if encoded, err := json.Marshal(r); err == nil {
		if err := s.cache.Set(ctx, key, encoded, s.ttl); err != nil {
			s.log.Warn("weather cache write failed", zap.String("location", location), zap.Error(err))
		}
	}
	return r, nil
}

// Snapshot returns the report encoded for storage on a diary.
func (s *Service) Snapshot(ctx context.Context, location string) (json.RawMessage, error) {
	r, err := s.Current(ctx, location)
	if err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/weather", h.current)
}

func (h *Handler) current(c *gin.Context) {
	location := strings.TrimSpace(c.Query("location"))
	if location == "" {
		response.BadRequest(c, "Location parameter is required")
		return
	}
	if len(location) > 255 {
		response.BadRequest(c, "Location is too long")
		return
	}
	r, err := h.svc.Current(c.Request.Context(), location)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, r)
}
