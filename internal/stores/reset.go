package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersionV1 = 1

	maxConsumeRetries = 4
)

// Phase is the lifecycle stage of a reset record.
type Phase uint8

const (
	// PhaseOTP means the record is awaiting the emailed one-time code.
	PhaseOTP Phase = 1
	// PhaseToken means the code was verified and the record is awaiting the
	// reset token during password finalization.
	PhaseToken Phase = 2
)

var (
	ErrNotFound         = errors.New("reset record not found")
	ErrSecretMismatch   = errors.New("reset secret mismatch")
	ErrAttemptsExceeded = errors.New("reset attempts exceeded")
	ErrRedisUnavailable = errors.New("reset redis unavailable")
)

// ResetRecord is the persisted state of one in-flight password reset. Only
// hashes of the code and token are ever stored; CredentialHash holds the hash
// of whichever secret the current phase expects.
type ResetRecord struct {
	ID             string
	UserID         string
	Email          string
	OriginIP       string
	CredentialHash [32]byte
	Phase          Phase
	Attempts       uint16
	CreatedAt      int64
	ExpiresAt      int64
}

// ResetStore persists reset records in Redis, keyed by normalized email so a
// new request atomically replaces any prior record for the same account.
type ResetStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewResetStore creates a [ResetStore] on the given client. The now function
// supplies logical time and may be nil, in which case [time.Now] is used.
func NewResetStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *ResetStore {
	if prefix == "" {
		prefix = "gr"
	}
	if now == nil {
		now = time.Now
	}
	return &ResetStore{
		redis:  redisClient,
		prefix: prefix,
		now:    now,
	}
}

func (s *ResetStore) recordKey(email string) string {
	return s.prefix + ":rec:" + email
}

func (s *ResetStore) userKey(userID string) string {
	return s.prefix + ":usr:" + userID
}

// Replace stores the record under its email, overwriting any prior record for
// that email in the same SET, and indexes the email under the record's user so
// CloseAllForUser can find it later.
func (s *ResetStore) Replace(ctx context.Context, record *ResetRecord, ttl time.Duration) error {
	encoded, err := encodeResetRecord(record)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(record.Email), encoded, ttl)
		pipe.SAdd(ctx, s.userKey(record.UserID), record.Email)
		pipe.Expire(ctx, s.userKey(record.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ConsumeCode verifies the hashed one-time code against the record for email
// and, on a match, atomically rewrites the record into the token phase with
// nextHash as its credential and a fresh tokenTTL. On a mismatch the attempt
// counter is incremented and persisted. A record that has already burned
// maxAttempts is deleted and rejected regardless of whether providedHash
// matches.
//
// Returns the pre-transition record on success. Failure modes:
// [ErrNotFound] (missing, expired, or wrong phase), [ErrSecretMismatch] with
// remaining attempts, [ErrAttemptsExceeded], [ErrRedisUnavailable].
func (s *ResetStore) ConsumeCode(
	ctx context.Context,
	email string,
	providedHash [32]byte,
	maxAttempts int,
	nextHash [32]byte,
	tokenTTL time.Duration,
) (*ResetRecord, int, error) {
	key := s.recordKey(email)

	for i := 0; i < maxConsumeRetries; i++ {
		var (
			matched   *ResetRecord
			remaining int
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeResetRecord(data)
			if err != nil {
				return err
			}

			now := s.now()
			if now.Unix() > record.ExpiresAt {
				if err := s.deleteInTx(ctx, tx, key, record); err != nil {
					return err
				}
				return ErrNotFound
			}

			if record.Phase != PhaseOTP {
				return ErrNotFound
			}

			if int(record.Attempts) >= maxAttempts {
				if err := s.deleteInTx(ctx, tx, key, record); err != nil {
					return err
				}
				return ErrAttemptsExceeded
			}

			if subtle.ConstantTimeCompare(record.CredentialHash[:], providedHash[:]) != 1 {
				record.Attempts++

				updated, err := encodeResetRecord(record)
				if err != nil {
					return err
				}

				ttl := time.Unix(record.ExpiresAt, 0).Sub(now)
				if ttl <= 0 {
					if err := s.deleteInTx(ctx, tx, key, record); err != nil {
						return err
					}
					return ErrNotFound
				}

				// The record stays persisted even at the limit so later
				// calls, correct code or not, hit the attempts gate above.
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}

				if int(record.Attempts) >= maxAttempts {
					return ErrAttemptsExceeded
				}
				remaining = maxAttempts - int(record.Attempts)
				return ErrSecretMismatch
			}

			consumed := *record
			record.Phase = PhaseToken
			record.CredentialHash = nextHash
			record.Attempts = 0
			record.ExpiresAt = now.Add(tokenTTL).Unix()

			updated, err := encodeResetRecord(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, tokenTTL)
				return nil
			})
			if err != nil {
				return err
			}

			matched = &consumed
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, 0, ErrNotFound
			case errors.Is(err, ErrNotFound), errors.Is(err, ErrAttemptsExceeded):
				return nil, 0, err
			case errors.Is(err, ErrSecretMismatch):
				return nil, remaining, err
			default:
				return nil, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}

		return matched, 0, nil
	}

	return nil, 0, ErrNotFound
}

// ConsumeToken verifies the hashed reset token against the record for email
// and deletes the record on a match, so a token can be redeemed exactly once.
//
// Failure modes: [ErrNotFound] (missing, expired, or still in the code
// phase), [ErrSecretMismatch], [ErrRedisUnavailable].
func (s *ResetStore) ConsumeToken(ctx context.Context, email string, providedHash [32]byte) (*ResetRecord, error) {
	key := s.recordKey(email)

	for i := 0; i < maxConsumeRetries; i++ {
		var matched *ResetRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeResetRecord(data)
			if err != nil {
				return err
			}

			if s.now().Unix() > record.ExpiresAt {
				if err := s.deleteInTx(ctx, tx, key, record); err != nil {
					return err
				}
				return ErrNotFound
			}

			if record.Phase != PhaseToken {
				return ErrNotFound
			}

			if subtle.ConstantTimeCompare(record.CredentialHash[:], providedHash[:]) != 1 {
				return ErrSecretMismatch
			}

			if err := s.deleteInTx(ctx, tx, key, record); err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrNotFound
			case errors.Is(err, ErrNotFound), errors.Is(err, ErrSecretMismatch):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrNotFound
}

// CloseAllForUser deletes every reset record indexed under userID, plus the
// index itself. Used after a successful password change so no stale code or
// token for the account survives.
func (s *ResetStore) CloseAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	emails, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, email := range emails {
			pipe.Del(ctx, s.recordKey(email))
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get loads the record for email without mutating it. Expired records are
// reported as [ErrNotFound].
func (s *ResetStore) Get(ctx context.Context, email string) (*ResetRecord, error) {
	data, err := s.redis.Get(ctx, s.recordKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	record, err := decodeResetRecord(data)
	if err != nil {
		return nil, err
	}
	if s.now().Unix() > record.ExpiresAt {
		return nil, ErrNotFound
	}

	return record, nil
}

func (s *ResetStore) deleteInTx(ctx context.Context, tx *redis.Tx, key string, record *ResetRecord) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, s.userKey(record.UserID), record.Email)
		return nil
	})
	return err
}

func encodeResetRecord(record *ResetRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetRecordVersionV1)
	buf.WriteByte(byte(record.Phase))

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.ID, record.UserID, record.Email, record.OriginIP} {
		if len(field) > 65535 {
			return nil, errors.New("reset record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	buf.Write(record.CredentialHash[:])

	return buf.Bytes(), nil
}

func decodeResetRecord(data []byte) (*ResetRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetRecordVersionV1 {
		return nil, errors.New("invalid reset record version")
	}

	phase, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &ResetRecord{
		Phase: Phase(phase),
	}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	for _, field := range []*string{&record.ID, &record.UserID, &record.Email, &record.OriginIP} {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	if _, err := io.ReadFull(reader, record.CredentialHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
