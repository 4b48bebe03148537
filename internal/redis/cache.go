package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"carpool/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// CarpoolCacheTTL bounds staleness if an invalidation is lost.
const CarpoolCacheTTL = 30 * time.Second

const (
	carpoolCachePrefix = "cache:carpool:"
	invalidatedSuffix  = ":inv"
)

// setUnlessInvalidatedScript writes the carpool unless the tombstone left by
// InvalidateCarpool is at or after the read start (unix microseconds).
var setUnlessInvalidatedScript = redis.NewScript(`
local inv = redis.call("GET", KEYS[2])
if inv and tonumber(inv) >= tonumber(ARGV[2]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// CachedCarpool is the JSON form of a carpool in cache.
type CachedCarpool struct {
	ID                string    `json:"id"`
	DriverID          string    `json:"driver_id"`
	DepartureCity     string    `json:"departure_city"`
	ArrivalCity       string    `json:"arrival_city"`
	DepartureLocation string    `json:"departure_location,omitempty"`
	ArrivalLocation   string    `json:"arrival_location,omitempty"`
	DepartureDate     string    `json:"departure_date,omitempty"`
	DepartureTime     string    `json:"departure_time,omitempty"`
	ArrivalDate       string    `json:"arrival_date,omitempty"`
	ArrivalTime       string    `json:"arrival_time,omitempty"`
	EstimatedDuration *int      `json:"estimated_duration,omitempty"`
	TotalSeats        int       `json:"total_seats"`
	AvailableSeats    int       `json:"available_seats"`
	PricePerPerson    int       `json:"price_per_person"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func newCachedCarpool(c *domain.Carpool) *CachedCarpool {
	return &CachedCarpool{
		ID:                c.ID,
		DriverID:          c.DriverID,
		DepartureCity:     c.DepartureCity,
		ArrivalCity:       c.ArrivalCity,
		DepartureLocation: c.DepartureLocation,
		ArrivalLocation:   c.ArrivalLocation,
		DepartureDate:     c.DepartureDate,
		DepartureTime:     c.DepartureTime,
		ArrivalDate:       c.ArrivalDate,
		ArrivalTime:       c.ArrivalTime,
		EstimatedDuration: c.EstimatedDuration,
		TotalSeats:        c.TotalSeats,
		AvailableSeats:    c.AvailableSeats,
		PricePerPerson:    c.PricePerPerson,
		Status:            string(c.Status),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func (c *CachedCarpool) toDomain() *domain.Carpool {
	return &domain.Carpool{
		ID:                c.ID,
		DriverID:          c.DriverID,
		DepartureCity:     c.DepartureCity,
		ArrivalCity:       c.ArrivalCity,
		DepartureLocation: c.DepartureLocation,
		ArrivalLocation:   c.ArrivalLocation,
		DepartureDate:     c.DepartureDate,
		DepartureTime:     c.DepartureTime,
		ArrivalDate:       c.ArrivalDate,
		ArrivalTime:       c.ArrivalTime,
		EstimatedDuration: c.EstimatedDuration,
		TotalSeats:        c.TotalSeats,
		AvailableSeats:    c.AvailableSeats,
		PricePerPerson:    c.PricePerPerson,
		Status:            domain.CarpoolStatus(c.Status),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// GetCarpool retrieves a carpool from cache.
func (s *CacheStore) GetCarpool(ctx context.Context, carpoolID string) (*domain.Carpool, error) {
	data, err := s.client.Get(ctx, carpoolCachePrefix+carpoolID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached CachedCarpool
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return cached.toDomain(), nil
}

// SetCarpool stores a carpool read at readStart, unless it was invalidated
// since.
func (s *CacheStore) SetCarpool(ctx context.Context, carpool *domain.Carpool, readStart time.Time) error {
	data, err := json.Marshal(newCachedCarpool(carpool))
	if err != nil {
		return err
	}
	key := carpoolCachePrefix + carpool.ID
	return setUnlessInvalidatedScript.Run(ctx, s.client,
		[]string{key, key + invalidatedSuffix},
		data, readStart.UnixMicro(), CarpoolCacheTTL.Milliseconds(),
	).Err()
}

// InvalidateCarpool removes a carpool from cache and leaves a tombstone so
// reads that started earlier do not repopulate it.
func (s *CacheStore) InvalidateCarpool(ctx context.Context, carpoolID string) error {
	key := carpoolCachePrefix + carpoolID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key+invalidatedSuffix, time.Now().UnixMicro(), CarpoolCacheTTL)
		pipe.Del(ctx, key)
		return nil
	})
	return err
}
