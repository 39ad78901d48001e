package repository

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTP errors.
var (
	ErrOTPInvalid  = errors.New("invalid or expired code")
	ErrOTPTooMany  = errors.New("too many attempts")
	ErrOTPDisabled = errors.New("otp store unavailable")
)

// MaxOTPAttempts is the number of wrong guesses after which a code is
// burned.
const MaxOTPAttempts = 5

// OTPStore keeps one-time login codes in Redis under
// <prefix>:code:<phone> with a TTL.  A wrong guess increments
// <prefix>:tries:<phone>; the code is deleted on success or once the
// attempt budget is spent.
type OTPStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewOTPStore returns a store backed by rdb.  A nil client yields a
// store whose methods return ErrOTPDisabled.
func NewOTPStore(rdb *redis.Client, prefix string, ttl time.Duration) *OTPStore {
	if prefix == "" {
		prefix = "otp"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OTPStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *OTPStore) codeKey(phone string) string  { return s.prefix + ":code:" + phone }
func (s *OTPStore) triesKey(phone string) string { return s.prefix + ":tries:" + phone }

// TTL is how long an issued code stays valid.
func (s *OTPStore) TTL() time.Duration { return s.ttl }

// Put stores code for phone, replacing any previous code and resetting
// the attempt counter.
func (s *OTPStore) Put(ctx context.Context, phone, code string) error {
	if s.rdb == nil {
		return ErrOTPDisabled
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.codeKey(phone), code, s.ttl)
		p.Del(ctx, s.triesKey(phone))
		return nil
	})
	return err
}

// Verify consumes the code for phone.  Each code verifies at most once.
func (s *OTPStore) Verify(ctx context.Context, phone, code string) error {
	if s.rdb == nil {
		return ErrOTPDisabled
	}
	stored, err := s.rdb.Get(ctx, s.codeKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrOTPInvalid
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1 {
		// GETDEL makes the code single use even if two verifications race.
		got, err := s.rdb.GetDel(ctx, s.codeKey(phone)).Result()
		if errors.Is(err, redis.Nil) || got != stored {
			return ErrOTPInvalid
		}
		if err != nil {
			return err
		}
		s.rdb.Del(ctx, s.triesKey(phone))
		return nil
	}

	tries, err := s.rdb.Incr(ctx, s.triesKey(phone)).Result()
	if err != nil {
		return err
	}
	s.rdb.Expire(ctx, s.triesKey(phone), s.ttl)
	if tries >= MaxOTPAttempts {
		s.rdb.Del(ctx, s.codeKey(phone), s.triesKey(phone))
		return ErrOTPTooMany
	}
	return ErrOTPInvalid
}
