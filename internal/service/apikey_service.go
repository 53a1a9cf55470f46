package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"calagent/internal/models"
	"calagent/internal/repository"
)

// Agent keys look like cal_<64 hex chars>; only the sha256 hash and the
// first 12 characters are stored.
const (
	keyPrefixLabel  = "cal_"
	keyRandomBytes  = 32
	keyPrefixLength = 12
)

var ErrKeyRejected = errors.New("api key invalid or revoked")

type APIKeyService struct {
	keys repository.APIKeyRepo
}

func NewAPIKeyService(keys repository.APIKeyRepo) *APIKeyService {
	return &APIKeyService{keys: keys}
}

var _ APIKeys = (*APIKeyService)(nil)

// Issue mints a new key for the user. The raw key is returned once and
// never stored.
func (s *APIKeyService) Issue(ctx context.Context, userID int, name string) (IssuedKey, error) {
	if strings.TrimSpace(name) == "" {
		name = "default key"
	}

	raw, prefix, hash, err := generateKey()
	if err != nil {
		return IssuedKey{}, fmt.Errorf("generate api key: %w", err)
	}

	rec := models.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		KeyPrefix: prefix,
		KeyHash:   hash,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.keys.Insert(ctx, rec); err != nil {
		return IssuedKey{}, err
	}

	return IssuedKey{
		ID:        rec.ID,
		Name:      rec.Name,
		Key:       raw,
		KeyPrefix: rec.KeyPrefix,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *APIKeyService) List(ctx context.Context, userID int) ([]models.APIKey, error) {
	return s.keys.ListByUser(ctx, userID)
}

func (s *APIKeyService) Revoke(ctx context.Context, userID int, keyID string) error {
	err := s.keys.Revoke(ctx, userID, keyID, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Validate resolves a raw key to its owning user. Revoked and unknown keys
// are rejected with ErrKeyRejected; the last-used stamp is bumped in the
// background so validation never waits on the write.
func (s *APIKeyService) Validate(ctx context.Context, rawKey string) (int, error) {
	if !strings.HasPrefix(rawKey, keyPrefixLabel) {
		return 0, ErrKeyRejected
	}

	sum := sha256.Sum256([]byte(rawKey))
	rec, err := s.keys.GetByHash(ctx, hex.EncodeToString(sum[:]))
	if err != nil {
		return 0, err
	}
	if rec == nil || rec.RevokedAt != nil {
		return 0, ErrKeyRejected
	}

	go func(keyID string) {
		bg, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.keys.TouchLastUsed(bg, keyID, time.Now().UTC())
	}(rec.ID)

	return rec.UserID, nil
}

func generateKey() (raw, prefix, hash string, err error) {
	buf := make([]byte, keyRandomBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", err
	}
	raw = keyPrefixLabel + hex.EncodeToString(buf)
	prefix = raw[:keyPrefixLength]
	sum := sha256.Sum256([]byte(raw))
	return raw, prefix, hex.EncodeToString(sum[:]), nil
}
