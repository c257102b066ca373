package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "lexguard/pkg/domain"
	"lexguard/pkg/sentinel"
)

const (
	sessionKeyPrefix = "session:"
	expiryIndexKey   = "sessions:by_expiry"
)

// revokeScript transitions Active -> Revoked atomically on the Redis side so
// revoke-then-verify ordering holds across instances sharing the store.
var revokeScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then return 'not_found' end
if status ~= 'active' then return 'invalid_state' end
redis.call('HSET', KEYS[1], 'status', 'revoked', 'revoked_at', ARGV[1])
return 'ok'
`)

// expireScript transitions Active -> Expired only; terminal states stay put.
var expireScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'active' then
	redis.call('HSET', KEYS[1], 'status', 'expired')
	return 1
end
return 0
`)

// RedisStore is the production session store for distributed deployments.
// Redis reads are strongly consistent against a single primary, which is
// what the revocation guarantee requires; no client-side caching happens
// anywhere in this package.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	key := sessionKey(sess.ID)

	fields := map[string]any{
		"attorney_id":  sess.AttorneyID.String(),
		"client_id":    sess.ClientID.String(),
		"scope":        string(sess.Scope),
		"token_digest": sess.TokenDigest,
		"status":       string(sess.Status),
		"issued_at":    sess.IssuedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":   sess.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.ZAdd(ctx, expiryIndexKey, redis.Z{
		Score:  float64(sess.ExpiresAt.Unix()),
		Member: sess.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return sessionFromFields(sessionID, fields)
}

func (s *RedisStore) RevokeIfActive(ctx context.Context, sessionID id.SessionID, now time.Time) error {
	res, err := revokeScript.Run(ctx, s.client,
		[]string{sessionKey(sessionID)},
		now.UTC().Format(time.RFC3339Nano),
	).Text()
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	switch res {
	case "ok":
		return nil
	case "not_found":
		return sentinel.ErrNotFound
	default:
		return sentinel.ErrInvalidState
	}
}

func (s *RedisStore) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.client.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list due sessions: %w", err)
	}

	swept := 0
	for _, member := range due {
		n, err := expireScript.Run(ctx, s.client, []string{sessionKeyPrefix + member}).Int()
		if err != nil {
			return swept, fmt.Errorf("expire session %s: %w", member, err)
		}
		swept += n
		// Terminal either way; drop it from the index.
		if err := s.client.ZRem(ctx, expiryIndexKey, member).Err(); err != nil {
			return swept, fmt.Errorf("trim expiry index: %w", err)
		}
	}
	return swept, nil
}

func sessionFromFields(sessionID id.SessionID, fields map[string]string) (*Session, error) {
	attorneyUUID, err := uuid.Parse(fields["attorney_id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt session attorney_id: %w", err)
	}
	clientUUID, err := uuid.Parse(fields["client_id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt session client_id: %w", err)
	}
	issuedAt, err := time.Parse(time.RFC3339Nano, fields["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt session issued_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt session expires_at: %w", err)
	}

	sess := &Session{
		ID:          sessionID,
		AttorneyID:  id.AttorneyID(attorneyUUID),
		ClientID:    id.ClientID(clientUUID),
		Scope:       Scope(fields["scope"]),
		TokenDigest: fields["token_digest"],
		Status:      Status(fields["status"]),
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}
	if raw := fields["revoked_at"]; raw != "" {
		revokedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt session revoked_at: %w", err)
		}
		sess.RevokedAt = &revokedAt
	}
	return sess, nil
}
