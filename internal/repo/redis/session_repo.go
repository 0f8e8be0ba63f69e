package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/anonrelay/internal/domain/enums"
	"github.com/ivankudzin/anonrelay/internal/domain/model"
)

const sessionPrefix = "session:"

// SessionRepo keeps conversation-flow state in redis hashes with a TTL, so
// abandoned flows evaporate on their own and a restart simply drops open
// flows (the sender restarts the flow).
type SessionRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewSessionRepo(client *goredis.Client, ttl time.Duration) *SessionRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionRepo{client: client, ttl: ttl}
}

func (r *SessionRepo) Get(ctx context.Context, senderID int64) (model.Session, bool, error) {
	if r.client == nil {
		return model.Session{}, false, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, sessionKey(senderID)).Result()
	if err != nil {
		return model.Session{}, false, fmt.Errorf("get session hash: %w", err)
	}
	if len(values) == 0 {
		return model.Session{}, false, nil
	}

	session := model.Session{
		SenderID: senderID,
		State:    enums.SessionState(values["state"]),
		Data:     map[string]string{},
	}
	if raw := values["data"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &session.Data); err != nil {
			return model.Session{}, false, fmt.Errorf("decode session data: %w", err)
		}
	}

	return session, true, nil
}

func (r *SessionRepo) Put(ctx context.Context, session model.Session) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if session.SenderID <= 0 {
		return fmt.Errorf("invalid sender id")
	}

	data, err := json.Marshal(session.Data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}

	key := sessionKey(session.SenderID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"state": string(session.State),
		"data":  string(data),
	})
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, senderID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, sessionKey(senderID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func sessionKey(senderID int64) string {
	return sessionPrefix + strconv.FormatInt(senderID, 10)
}
