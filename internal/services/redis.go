package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spinwheel-backend/internal/config"
	"spinwheel-backend/internal/models"

	"github.com/decred/slog"
	"github.com/redis/go-redis/v9"
)

type RedisService struct {
	client *redis.Client
	log    slog.Logger
}

func NewRedisService(cfg *config.Config, log slog.Logger) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{
		client: client,
		log:    log,
	}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// redisView reads keys inside a WATCH block. Every key is watched before it
// is read so EXEC fails if any of them changes before commit.
type redisView struct {
	ctx context.Context
	tx  *redis.Tx
}

func (v *redisView) get(key string) ([]byte, error) {
	if err := v.tx.Watch(v.ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("watch %s: %w", key, err)
	}
	data, err := v.tx.Get(v.ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// Execute runs fn under optimistic locking. A concurrent write to any key fn
// read aborts EXEC, and fn is run again on fresh state.
func (s *RedisService) Execute(ctx context.Context, requestID string, fn func(tx *Tx) error) error {
	var keys []string
	processedKey := ""
	if requestID != "" {
		processedKey = fmt.Sprintf(KeyProcessed, requestID)
		keys = append(keys, processedKey)
	}

	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			if processedKey != "" {
				n, err := rtx.Exists(ctx, processedKey).Result()
				if err != nil {
					return fmt.Errorf("check request id: %w", err)
				}
				if n > 0 {
					return fmt.Errorf("%w: %s", ErrAlreadyProcessed, requestID)
				}
			}

			tx := newTx(&redisView{ctx: ctx, tx: rtx})
			if err := fn(tx); err != nil {
				return err
			}
			return s.commit(ctx, rtx, tx, processedKey)
		}, keys...)

		if errors.Is(err, redis.TxFailedErr) {
			s.log.Debugf("transaction conflict, attempt %d/%d", attempt, maxTxAttempts)
			continue
		}
		return err
	}
	return ErrTxConflict
}

func (s *RedisService) commit(ctx context.Context, rtx *redis.Tx, tx *Tx, processedKey string) error {
	writes, err := tx.writes()
	if err != nil {
		return err
	}

	spins := make(map[string][]byte, len(tx.spins))
	for _, spin := range tx.spins {
		data, err := json.Marshal(spin)
		if err != nil {
			return fmt.Errorf("failed to marshal spin: %w", err)
		}
		spins[spin.ID] = data
	}
	txs := make(map[string][]byte, len(tx.transactions))
	for _, t := range tx.transactions {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction: %w", err)
		}
		txs[t.ID] = data
	}

	_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range writes {
			pipe.Set(ctx, key, value, 0)
		}

		for _, spin := range tx.spins {
			pipe.Set(ctx, fmt.Sprintf(KeySpin, spin.ID), spins[spin.ID], TTLSpin)

			historyKey := fmt.Sprintf(KeyPlayerSpins, spin.Player)
			pipe.ZAdd(ctx, historyKey, redis.Z{
				Score:  float64(spin.SpinIndex),
				Member: spin.ID,
			})
			pipe.ZRemRangeByRank(ctx, historyKey, 0, -(maxHistory + 1))
		}

		for _, t := range tx.transactions {
			pipe.Set(ctx, fmt.Sprintf(KeyTransaction, t.ID), txs[t.ID], TTLTransaction)
			pipe.ZAdd(ctx, KeyTransactions, redis.Z{
				Score:  float64(t.CreatedAt.UnixNano()),
				Member: t.ID,
			})
		}
		if len(tx.transactions) > 0 {
			pipe.ZRemRangeByRank(ctx, KeyTransactions, 0, -(10*maxHistory + 1))
		}

		if processedKey != "" {
			pipe.Set(ctx, processedKey, tx.now.Unix(), TTLProcessed)
		}
		return nil
	})
	return err
}

func (s *RedisService) SpinHistory(ctx context.Context, player string, limit int64) ([]*models.SpinResult, error) {
	if limit <= 0 || limit > maxHistory {
		limit = 50
	}

	ids, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyPlayerSpins, player), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get spin IDs: %w", err)
	}

	spins := make([]*models.SpinResult, 0, len(ids))
	for _, data := range s.bulkGet(ctx, KeySpin, ids) {
		var spin models.SpinResult
		if err := json.Unmarshal(data, &spin); err != nil {
			continue
		}
		spins = append(spins, &spin)
	}
	return spins, nil
}

func (s *RedisService) RecentTransactions(ctx context.Context, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > maxHistory {
		limit = 50
	}

	ids, err := s.client.ZRevRange(ctx, KeyTransactions, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %w", err)
	}

	transactions := make([]*models.Transaction, 0, len(ids))
	for _, data := range s.bulkGet(ctx, KeyTransaction, ids) {
		var t models.Transaction
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		transactions = append(transactions, &t)
	}
	return transactions, nil
}

// bulkGet fetches keyFmt-formatted ids in one pipeline, skipping expired ones.
func (s *RedisService) bulkGet(ctx context.Context, keyFmt string, ids []string) [][]byte {
	if len(ids) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(keyFmt, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		s.log.Warnf("pipeline execution failed: %v", err)
	}

	out := make([][]byte, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		out = append(out, data)
	}
	return out
}

func (s *RedisService) StoreChallenge(ctx context.Context, ch *models.Challenge, ttl time.Duration) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, fmt.Sprintf(KeyChallenge, ch.Address), data, ttl).Err()
}

func (s *RedisService) TakeChallenge(ctx context.Context, address string) (*models.Challenge, error) {
	data, err := s.client.GetDel(ctx, fmt.Sprintf(KeyChallenge, address)).Bytes()
	if err == redis.Nil {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	var ch models.Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	return &ch, nil
}

func (s *RedisService) StoreUserSession(ctx context.Context, session *models.UserSession, ttl time.Duration) error {
	key := fmt.Sprintf(KeyUserSession, session.Address, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *RedisService) GetUserSession(ctx context.Context, address, sessionID string) (*models.UserSession, error) {
	key := fmt.Sprintf(KeyUserSession, address, sessionID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var session models.UserSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}

	session.LastAccessed = time.Now()
	if updated, err := json.Marshal(session); err == nil {
		s.client.Set(ctx, key, updated, redis.KeepTTL)
	}

	return &session, nil
}

func (s *RedisService) DeleteUserSession(ctx context.Context, address, sessionID string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyUserSession, address, sessionID)).Err()
}

func (s *RedisService) CheckRateLimit(ctx context.Context, address, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, address, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// ClearRateLimit drops the counter for address and action.
func (s *RedisService) ClearRateLimit(ctx context.Context, address, action string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyRateLimit, address, action)).Err()
}

// DeleteKeys removes ledger keys. Only meant for test cleanup.
func (s *RedisService) DeleteKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
