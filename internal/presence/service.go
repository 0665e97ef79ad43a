package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hiveride/dispatch/pkg/common"
	"github.com/hiveride/dispatch/pkg/config"
	"github.com/hiveride/dispatch/pkg/logger"
	redisclient "github.com/hiveride/dispatch/pkg/redis"
)

const (
	onlineDriversKey = "drivers:online"
	memberPrefix     = "driver:"
)

func lastSeenKey(driverID uuid.UUID) string {
	return fmt.Sprintf("driver:last_seen:%s", driverID)
}

func driverMember(driverID uuid.UUID) string {
	return memberPrefix + driverID.String()
}

// Service maintains the driver presence index: a geo set of online drivers
// plus a per-driver last-seen timestamp whose TTL defines liveness. A geo set
// entry without a live last-seen key is stale and is swept out lazily during
// search.
type Service struct {
	redis redisclient.ClientInterface
	cfg   config.DispatchConfig
}

// NewService creates a presence service.
func NewService(redis redisclient.ClientInterface, cfg config.DispatchConfig) *Service {
	return &Service{redis: redis, cfg: cfg}
}

// Heartbeat records a driver's position and refreshes their liveness window.
func (s *Service) Heartbeat(ctx context.Context, driverID uuid.UUID, lat, lng float64) error {
	if err := s.redis.GeoAdd(ctx, onlineDriversKey, lng, lat, driverMember(driverID)); err != nil {
		return common.NewStoreUnavailableError("failed to update driver location", err)
	}

	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.redis.SetWithExpiration(ctx, lastSeenKey(driverID), now, s.cfg.LivenessTTL()); err != nil {
		return common.NewStoreUnavailableError("failed to refresh driver liveness", err)
	}

	return nil
}

// MarkOffline removes a driver from the presence index immediately.
func (s *Service) MarkOffline(ctx context.Context, driverID uuid.UUID) error {
	if err := s.redis.GeoRemove(ctx, onlineDriversKey, driverMember(driverID)); err != nil {
		return common.NewStoreUnavailableError("failed to remove driver from index", err)
	}
	if err := s.redis.Delete(ctx, lastSeenKey(driverID)); err != nil {
		return common.NewStoreUnavailableError("failed to clear driver liveness", err)
	}
	return nil
}

// IsFresh reports whether a driver's liveness window is still open.
func (s *Service) IsFresh(ctx context.Context, driverID uuid.UUID) (bool, error) {
	exists, err := s.redis.Exists(ctx, lastSeenKey(driverID))
	if err != nil {
		return false, common.NewStoreUnavailableError("failed to check driver liveness", err)
	}
	return exists, nil
}

// Nearest returns up to limit live drivers within radiusKm of the point,
// closest first, ties broken by driver ID for a deterministic order. Stale
// geo entries found during the scan are removed from the index.
func (s *Service) Nearest(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]NearbyDriver, error) {
	// Over-fetch so stale entries swept mid-scan do not shrink the result
	// below limit when enough live drivers exist.
	hits, err := s.redis.GeoSearchWithDist(ctx, onlineDriversKey, lng, lat, radiusKm, limit*3)
	if err != nil {
		return nil, common.NewStoreUnavailableError("failed to search driver index", err)
	}

	drivers := make([]NearbyDriver, 0, len(hits))
	for _, hit := range hits {
		raw := strings.TrimPrefix(hit.Name, memberPrefix)
		driverID, err := uuid.Parse(raw)
		if err != nil {
			logger.WarnContext(ctx, "removing malformed presence member",
				zap.String("member", hit.Name))
			s.sweepMember(ctx, hit.Name)
			continue
		}

		fresh, err := s.IsFresh(ctx, driverID)
		if err != nil {
			return nil, err
		}
		if !fresh {
			s.sweepMember(ctx, hit.Name)
			continue
		}

		drivers = append(drivers, NearbyDriver{DriverID: driverID, DistanceKm: hit.DistanceKm})
	}

	sort.Slice(drivers, func(i, j int) bool {
		if drivers[i].DistanceKm != drivers[j].DistanceKm {
			return drivers[i].DistanceKm < drivers[j].DistanceKm
		}
		return drivers[i].DriverID.String() < drivers[j].DriverID.String()
	})

	if len(drivers) > limit {
		drivers = drivers[:limit]
	}

	return drivers, nil
}

func (s *Service) sweepMember(ctx context.Context, member string) {
	if err := s.redis.GeoRemove(ctx, onlineDriversKey, member); err != nil {
		logger.WarnContext(ctx, "failed to sweep stale presence member",
			zap.String("member", member), zap.Error(err))
	}
}
