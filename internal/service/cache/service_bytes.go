package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "TrendPulse/pkg/cache"
)

// ServiceBytes adapts a pkg/cache Service to the BytesCache API the HTTP
// handlers use. Values are stored as raw strings, so no JSON round-trip.
type ServiceBytes struct {
	svc pkgcache.Service
}

func NewServiceBytes(svc pkgcache.Service) *ServiceBytes {
	return &ServiceBytes{svc: svc}
}

func (s *ServiceBytes) GetBytes(key string) ([]byte, bool, error) {
	var raw string
	err := s.svc.Get(context.Background(), key, &raw)
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(raw), true, nil
}

func (s *ServiceBytes) SetBytes(key string, value []byte, ttl time.Duration) error {
	return s.svc.Set(context.Background(), key, string(value), ttl)
}
