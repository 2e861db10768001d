package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
)

const (
	redisKeyPrefix   = "registration:"
	redisTokenPrefix = "registration:token:"

	fieldUserID    = "user_id"
	fieldChatID    = "chat_id"
	fieldToken     = "token"
	fieldUpdatedAt = "updated_at"

	maxPutAttempts = 3
)

// RedisStore keeps one hash per user and a set of user ids per token.
type RedisStore struct {
	client goredis.UniversalClient
	now    func() time.Time
}

var _ TokenStore = (*RedisStore)(nil)

// NewRedisStore returns a TokenStore backed by client.
func NewRedisStore(client goredis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func userKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

func tokenKey(token string) string {
	return redisTokenPrefix + token
}

// Get reads the registration hash of userID.
func (s *RedisStore) Get(ctx context.Context, userID int64) (*domain.Registration, error) {
	vals, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, apperrors.NewStorageError("get", err)
	}
	if len(vals) == 0 {
		return nil, errNotFound()
	}

	reg, err := decodeRegistration(vals)
	if err != nil {
		return nil, apperrors.NewStorageError("get", err)
	}

	return reg, nil
}

// Put writes the hash and the token index in one WATCH/MULTI transaction.
func (s *RedisStore) Put(ctx context.Context, reg *domain.Registration) error {
	if reg == nil {
		return nil
	}

	key := userKey(reg.UserID)
	updatedAt := s.now().UTC()

	txf := func(tx *goredis.Tx) error {
		prev, err := tx.HGet(ctx, key, fieldToken).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldUserID, reg.UserID,
				fieldChatID, reg.ChatID,
				fieldToken, reg.Token,
				fieldUpdatedAt, updatedAt.UnixMilli(),
			)
			if prev != "" && prev != reg.Token {
				pipe.SRem(ctx, tokenKey(prev), reg.UserID)
			}
			if reg.Token != "" {
				pipe.SAdd(ctx, tokenKey(reg.Token), reg.UserID)
			}
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return apperrors.NewStorageError("put", err)
	}

	return nil
}

// FindByToken resolves token through the index set. Members whose hash no
// longer carries the token are treated as stale and skipped.
func (s *RedisStore) FindByToken(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, errNotFound()
	}

	members, err := s.client.SMembers(ctx, tokenKey(token)).Result()
	if err != nil {
		return 0, apperrors.NewStorageError("find_by_token", err)
	}

	chatIDs := make([]int64, 0, len(members))
	for _, member := range members {
		vals, err := s.client.HMGet(ctx, redisKeyPrefix+member, fieldToken, fieldChatID).Result()
		if err != nil {
			return 0, apperrors.NewStorageError("find_by_token", err)
		}

		current, _ := vals[0].(string)
		if current != token {
			continue
		}

		raw, _ := vals[1].(string)
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, apperrors.NewStorageError("find_by_token", fmt.Errorf("parse chat_id of %s: %w", member, err))
		}
		chatIDs = append(chatIDs, chatID)
	}

	return exactlyOne(chatIDs)
}

func decodeRegistration(vals map[string]string) (*domain.Registration, error) {
	userID, err := strconv.ParseInt(vals[fieldUserID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w", err)
	}

	chatID, err := strconv.ParseInt(vals[fieldChatID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse chat_id: %w", err)
	}

	reg := &domain.Registration{
		UserID: userID,
		ChatID: chatID,
		Token:  vals[fieldToken],
	}

	if raw := vals[fieldUpdatedAt]; raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		reg.UpdatedAt = time.UnixMilli(ms).UTC()
	}

	return reg, nil
}
