package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/knowmetools/km-api-sub001/internal/services/auth"
)

// SessionRepo keeps one hash per session plus a refresh-token pointer, all
// keyed under the km: namespace and expiring with the session itself.
type SessionRepo struct {
	client *goredis.Client
}

func NewSessionRepo(client *goredis.Client) *SessionRepo {
	return &SessionRepo{client: client}
}

func (r *SessionRepo) Create(ctx context.Context, session authsvc.SessionRecord, refreshToken string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(session.SID) == "" || strings.TrimSpace(refreshToken) == "" || session.UserID <= 0 {
		return authsvc.ErrInvalidInput
	}

	pipe := r.client.TxPipeline()
	writeSession(ctx, pipe, session, refreshToken)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create redis session: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, sid string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, sessKey(sid)).Result()
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get session hash: %w", err)
	}
	if len(values) == 0 {
		return authsvc.SessionRecord{}, authsvc.ErrSessionNotFound
	}

	session, err := decodeSession(values)
	if err != nil {
		return authsvc.SessionRecord{}, err
	}
	session.SID = sid
	return session, nil
}

func (r *SessionRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, refreshKey(refreshToken)).Result()
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get refresh hash: %w", err)
	}
	sid := strings.TrimSpace(values["sid"])
	if len(values) == 0 || sid == "" {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}

	session, err := decodeSession(values)
	if err != nil {
		return authsvc.SessionRecord{}, err
	}
	session.SID = sid
	return session, nil
}

func (r *SessionRepo) RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	session, err := r.GetByRefreshToken(ctx, oldRefreshToken)
	if err != nil {
		return err
	}
	if sid != "" && sid != session.SID {
		return authsvc.ErrRefreshNotFound
	}
	session.ExpiresAt = expiresAt

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, refreshKey(oldRefreshToken))
	writeSession(ctx, pipe, session, newRefreshToken)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	return nil
}

func (r *SessionRepo) DeleteSession(ctx context.Context, sid string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return nil
	}

	values, err := r.client.HGetAll(ctx, sessKey(sid)).Result()
	if err != nil {
		return fmt.Errorf("load session for delete: %w", err)
	}

	refreshToken, err := r.client.Get(ctx, sessRefreshKey(sid)).Result()
	if err != nil && err != goredis.Nil {
		return fmt.Errorf("load session refresh pointer: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessKey(sid), sessRefreshKey(sid))
	if refreshToken != "" {
		pipe.Del(ctx, refreshKey(refreshToken))
	}
	if uid, parseErr := strconv.ParseInt(values["uid"], 10, 64); parseErr == nil && uid > 0 {
		pipe.SRem(ctx, userSessionsKey(uid), sid)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return authsvc.ErrInvalidInput
	}

	sids, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}

	for _, sid := range sids {
		if err := r.DeleteSession(ctx, sid); err != nil {
			return err
		}
	}

	if err := r.client.Del(ctx, userSessionsKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete user sessions key: %w", err)
	}
	return nil
}

// writeSession queues the full key set for a session: the session hash, the
// refresh hash, the sid→refresh pointer and the per-user sid set, all sharing
// the session TTL.
func writeSession(ctx context.Context, pipe goredis.Pipeliner, session authsvc.SessionRecord, refreshToken string) {
	ttl := ttlFor(session.ExpiresAt)
	exp := session.ExpiresAt.Unix()

	pipe.HSet(ctx, sessKey(session.SID), "uid", session.UserID, "exp", exp)
	pipe.Expire(ctx, sessKey(session.SID), ttl)
	pipe.HSet(ctx, refreshKey(refreshToken), "uid", session.UserID, "sid", session.SID, "exp", exp)
	pipe.Expire(ctx, refreshKey(refreshToken), ttl)
	pipe.Set(ctx, sessRefreshKey(session.SID), refreshToken, ttl)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), session.SID)
	pipe.Expire(ctx, userSessionsKey(session.UserID), ttl)
}

func decodeSession(values map[string]string) (authsvc.SessionRecord, error) {
	uid, err := strconv.ParseInt(values["uid"], 10, 64)
	if err != nil || uid <= 0 {
		return authsvc.SessionRecord{}, authsvc.ErrUnauthorized
	}
	exp, err := strconv.ParseInt(values["exp"], 10, 64)
	if err != nil {
		return authsvc.SessionRecord{}, authsvc.ErrUnauthorized
	}
	return authsvc.SessionRecord{
		UserID:    uid,
		ExpiresAt: time.Unix(exp, 0).UTC(),
	}, nil
}

func ttlFor(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

func sessKey(sid string) string {
	return "km:sess:" + sid
}

func sessRefreshKey(sid string) string {
	return "km:sess:" + sid + ":refresh"
}

func refreshKey(token string) string {
	return "km:refresh:" + token
}

func userSessionsKey(userID int64) string {
	return "km:user:" + strconv.FormatInt(userID, 10) + ":sessions"
}
