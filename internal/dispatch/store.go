package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hiveride/dispatch/pkg/common"
	"github.com/hiveride/dispatch/pkg/config"
	redisclient "github.com/hiveride/dispatch/pkg/redis"
)

const (
	// pendingSetKey indexes requests currently in dispatch so the fallback
	// sweeper can find stalled ones without scanning the keyspace.
	pendingSetKey = "ride:requests:pending"

	// currentOffereeTTL bounds how long an offer slot can stay claimed if the
	// owning worker dies. The sweeper uses its expiry as the stall signal.
	currentOffereeTTL = 120 * time.Second
)

func statusKey(id uuid.UUID) string {
	return fmt.Sprintf("ride:request:%s:status", id)
}

func queueKey(id uuid.UUID) string {
	return fmt.Sprintf("ride:request:%s:queue", id)
}

func currentDriverKey(id uuid.UUID) string {
	return fmt.Sprintf("ride:request:%s:current_driver", id)
}

func assignedDriverKey(id uuid.UUID) string {
	return fmt.Sprintf("ride:request:%s:driver", id)
}

func etaKey(id uuid.UUID) string {
	return fmt.Sprintf("ride:request:%s:eta", id)
}

func responsesKey(id uuid.UUID) string {
	return fmt.Sprintf("ride:request:%s:responses", id)
}

func offerKey(id uuid.UUID) string {
	return fmt.Sprintf("ride:request:%s:offer", id)
}

// Store holds the per-request ephemeral dispatch state in Redis. All writes
// are safe under multiple dispatch workers: the offer slot is compare-and-set
// guarded, everything else is idempotent last-writer-wins.
type Store struct {
	redis redisclient.ClientInterface
	cfg   config.DispatchConfig
}

// NewStore creates a dispatch state store.
func NewStore(redis redisclient.ClientInterface, cfg config.DispatchConfig) *Store {
	return &Store{redis: redis, cfg: cfg}
}

// InitDispatch marks a request as pending and registers it for sweeping.
func (s *Store) InitDispatch(ctx context.Context, requestID uuid.UUID) error {
	if err := s.redis.SetWithExpiration(ctx, statusKey(requestID), StatusPending, s.cfg.QueueTTL()); err != nil {
		return common.NewStoreUnavailableError("failed to init dispatch status", err)
	}
	if err := s.redis.SAdd(ctx, pendingSetKey, requestID.String()); err != nil {
		return common.NewStoreUnavailableError("failed to register pending request", err)
	}
	return nil
}

// SetStatus overwrites the ephemeral status and extends its TTL.
func (s *Store) SetStatus(ctx context.Context, requestID uuid.UUID, status string, ttl time.Duration) error {
	if err := s.redis.SetWithExpiration(ctx, statusKey(requestID), status, ttl); err != nil {
		return common.NewStoreUnavailableError("failed to set dispatch status", err)
	}
	return nil
}

// GetStatus returns the ephemeral status, or pending when absent.
func (s *Store) GetStatus(ctx context.Context, requestID uuid.UUID) (string, error) {
	status, err := s.redis.GetString(ctx, statusKey(requestID))
	if err != nil {
		return "", common.NewStoreUnavailableError("failed to read dispatch status", err)
	}
	if status == "" {
		return StatusPending, nil
	}
	return status, nil
}

// SetCurrentOfferee claims the offer slot for driverID, succeeding only when
// the slot currently holds expected ("" claims an empty slot). This CAS is the
// primary guard against two workers racing two drivers onto one request.
func (s *Store) SetCurrentOfferee(ctx context.Context, requestID, driverID uuid.UUID, expected string) (bool, error) {
	applied, err := s.redis.CompareAndSet(ctx, currentDriverKey(requestID), expected, driverID.String(), currentOffereeTTL)
	if err != nil {
		return false, common.NewStoreUnavailableError("failed to claim offer slot", err)
	}
	return applied, nil
}

// GetCurrentOfferee returns the current offeree driver id, "" when the slot
// is empty.
func (s *Store) GetCurrentOfferee(ctx context.Context, requestID uuid.UUID) (string, error) {
	current, err := s.redis.GetString(ctx, currentDriverKey(requestID))
	if err != nil {
		return "", common.NewStoreUnavailableError("failed to read offer slot", err)
	}
	return current, nil
}

// ClearCurrentOfferee releases the offer slot only when it is still held by
// driverID. Returns whether this caller performed the release.
func (s *Store) ClearCurrentOfferee(ctx context.Context, requestID, driverID uuid.UUID) (bool, error) {
	cleared, err := s.redis.DeleteIfEquals(ctx, currentDriverKey(requestID), driverID.String())
	if err != nil {
		return false, common.NewStoreUnavailableError("failed to release offer slot", err)
	}
	return cleared, nil
}

// SetAssignedDriver records the accepted driver.
func (s *Store) SetAssignedDriver(ctx context.Context, requestID, driverID uuid.UUID) error {
	if err := s.redis.SetWithExpiration(ctx, assignedDriverKey(requestID), driverID.String(), s.cfg.AcceptedTTL()); err != nil {
		return common.NewStoreUnavailableError("failed to set assigned driver", err)
	}
	return nil
}

// GetAssignedDriver returns the accepted driver id, "" when unset.
func (s *Store) GetAssignedDriver(ctx context.Context, requestID uuid.UUID) (string, error) {
	driver, err := s.redis.GetString(ctx, assignedDriverKey(requestID))
	if err != nil {
		return "", common.NewStoreUnavailableError("failed to read assigned driver", err)
	}
	return driver, nil
}

// SetEta records the accepted driver's estimated arrival in minutes.
func (s *Store) SetEta(ctx context.Context, requestID uuid.UUID, minutes int) error {
	if err := s.redis.SetWithExpiration(ctx, etaKey(requestID), strconv.Itoa(minutes), s.cfg.AcceptedTTL()); err != nil {
		return common.NewStoreUnavailableError("failed to set eta", err)
	}
	return nil
}

// GetEta returns the recorded ETA in minutes; ok is false when unset.
func (s *Store) GetEta(ctx context.Context, requestID uuid.UUID) (int, bool, error) {
	raw, err := s.redis.GetString(ctx, etaKey(requestID))
	if err != nil {
		return 0, false, common.NewStoreUnavailableError("failed to read eta", err)
	}
	if raw == "" {
		return 0, false, nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, nil
	}
	return minutes, true, nil
}

// AppendResponse appends one entry to the response log.
func (s *Store) AppendResponse(ctx context.Context, requestID uuid.UUID, entry ResponseEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return common.NewInternalError("failed to marshal response entry", err)
	}
	if err := s.redis.RPush(ctx, responsesKey(requestID), string(data)); err != nil {
		return common.NewStoreUnavailableError("failed to append response", err)
	}
	if err := s.redis.Expire(ctx, responsesKey(requestID), s.cfg.ResponseLogTTL()); err != nil {
		return common.NewStoreUnavailableError("failed to expire response log", err)
	}
	return nil
}

// Responses returns the full response log, oldest first.
func (s *Store) Responses(ctx context.Context, requestID uuid.UUID) ([]ResponseEntry, error) {
	raw, err := s.redis.LRange(ctx, responsesKey(requestID), 0, -1)
	if err != nil {
		return nil, common.NewStoreUnavailableError("failed to read response log", err)
	}

	entries := make([]ResponseEntry, 0, len(raw))
	for _, item := range raw {
		var entry ResponseEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// HasResponded reports whether driverID already appears in the response log.
func (s *Store) HasResponded(ctx context.Context, requestID, driverID uuid.UUID) (bool, error) {
	entries, err := s.Responses(ctx, requestID)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.DriverID == driverID {
			return true, nil
		}
	}
	return false, nil
}

// RecordOffer stores the armed offer for the sweeper.
func (s *Store) RecordOffer(ctx context.Context, requestID, driverID uuid.UUID) error {
	data, err := json.Marshal(OfferRecord{DriverID: driverID, OfferedAt: time.Now().UTC()})
	if err != nil {
		return common.NewInternalError("failed to marshal offer record", err)
	}
	if err := s.redis.SetWithExpiration(ctx, offerKey(requestID), string(data), s.cfg.QueueTTL()); err != nil {
		return common.NewStoreUnavailableError("failed to record offer", err)
	}
	return nil
}

// LastOffer returns the most recently armed offer, nil when none was recorded.
func (s *Store) LastOffer(ctx context.Context, requestID uuid.UUID) (*OfferRecord, error) {
	raw, err := s.redis.GetString(ctx, offerKey(requestID))
	if err != nil {
		return nil, common.NewStoreUnavailableError("failed to read offer record", err)
	}
	if raw == "" {
		return nil, nil
	}

	var record OfferRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, nil
	}
	return &record, nil
}

// DeleteDispatchEphemera removes the queue, offer slot and offer record on
// resolution, and unregisters the request from the sweeper.
func (s *Store) DeleteDispatchEphemera(ctx context.Context, requestID uuid.UUID) error {
	if err := s.redis.Delete(ctx, queueKey(requestID), currentDriverKey(requestID), offerKey(requestID)); err != nil {
		return common.NewStoreUnavailableError("failed to delete dispatch ephemera", err)
	}
	return s.RemovePending(ctx, requestID)
}

// RemovePending unregisters a request from the sweeper index.
func (s *Store) RemovePending(ctx context.Context, requestID uuid.UUID) error {
	if err := s.redis.SRem(ctx, pendingSetKey, requestID.String()); err != nil {
		return common.NewStoreUnavailableError("failed to unregister pending request", err)
	}
	return nil
}

// PendingRequests lists requests currently registered as in-dispatch.
func (s *Store) PendingRequests(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.redis.SMembers(ctx, pendingSetKey)
	if err != nil {
		return nil, common.NewStoreUnavailableError("failed to list pending requests", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
