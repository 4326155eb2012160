package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sessions:active:"

// deleteIfCurrent removes KEYS[1] only while its session_id field equals ARGV[1].
var deleteIfCurrent = redis.NewScript(`
if redis.call("HGET", KEYS[1], "session_id") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ActiveSession is the cached pointer to an owner's live session.
type ActiveSession struct {
	SessionID string
	Owner     string
	StationID string
	Status    string
	UpdatedAt time.Time
}

// Store keeps one hash per owner at sessions:active:<owner>.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Save replaces the owner's entry and refreshes its TTL.
func (s *Store) Save(ctx context.Context, session ActiveSession) error {
	key := keyPrefix + session.Owner
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"session_id", session.SessionID,
			"owner", session.Owner,
			"station_id", session.StationID,
			"status", session.Status,
			"updated_at", session.UpdatedAt.UTC().Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

// Get returns the cached session for owner. A miss returns redis.Nil.
func (s *Store) Get(ctx context.Context, owner string) (*ActiveSession, error) {
	fields, err := s.client.HGetAll(ctx, keyPrefix+owner).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, redis.Nil
	}
	out := &ActiveSession{
		SessionID: fields["session_id"],
		Owner:     fields["owner"],
		StationID: fields["station_id"],
		Status:    fields["status"],
	}
	if raw := fields["updated_at"]; raw != "" {
		if out.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delete removes the owner's entry if it still points at sessionID.
func (s *Store) Delete(ctx context.Context, owner, sessionID string) error {
	return deleteIfCurrent.Run(ctx, s.client, []string{keyPrefix + owner}, sessionID).Err()
}
