// Package auth resolves bearer tokens to users. It stands in for the
// session/login layer: users are seeded from configuration and looked up by
// token on every request.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/config"
	"github.com/brettbedarf/filetree/internal/util"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	bolt "go.etcd.io/bbolt"
)

var usersBucket = []byte("users")

// userNamespace derives stable user IDs from emails so reseeding keeps them
var userNamespace = uuid.MustParse("6f1c1a52-58a8-4f44-9d0e-2b3f1f0f7a10")

const unauthorizedMsg = "You must be logged in to access this resource"

// BoltStore is a [filetree.Authenticator] persisting users in bbolt keyed by
// a SHA-256 digest of their token. Lookups are cached in memory.
type BoltStore struct {
	db    *bolt.DB
	cache *xsync.Map[string, *filetree.User] // token digest -> user
}

var _ filetree.Authenticator = (*BoltStore)(nil)

// OpenBoltStore opens (creating if needed) the store at path
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open user store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init user store: %w", err)
	}
	return &BoltStore{db: db, cache: xsync.NewMap[string, *filetree.User]()}, nil
}

// Close releases the underlying database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Put stores u under token, replacing any user previously holding it
func (s *BoltStore) Put(ctx context.Context, token string, u *filetree.User) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := tokenKey(token)
	bz, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b == nil {
			return fmt.Errorf("users bucket missing")
		}
		return b.Put([]byte(key), bz)
	}); err != nil {
		return err
	}
	s.cache.Store(key, u)
	return nil
}

// Authenticate implements [filetree.Authenticator]
func (s *BoltStore) Authenticate(ctx context.Context, token string) (*filetree.User, error) {
	if token == "" {
		return nil, filetree.NewError(filetree.KindUnauthorized, "Authenticate", "", unauthorizedMsg, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, filetree.NewError(filetree.KindInternal, "Authenticate", "", "Request cancelled", err)
	}
	key := tokenKey(token)
	if u, ok := s.cache.Load(key); ok {
		return u, nil
	}

	var u *filetree.User
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b == nil {
			return fmt.Errorf("users bucket missing")
		}
		bz := b.Get([]byte(key))
		if bz == nil {
			return nil
		}
		u = &filetree.User{}
		return json.Unmarshal(bz, u)
	})
	if err != nil {
		return nil, filetree.NewError(filetree.KindInternal, "Authenticate", "", "Failed to load user", err)
	}
	if u == nil {
		return nil, filetree.NewError(filetree.KindUnauthorized, "Authenticate", "", unauthorizedMsg, nil)
	}
	s.cache.Store(key, u)
	return u, nil
}

// Seed upserts the configured users. Existing users keep their CreatedAt.
// Returns the number of users written.
func (s *BoltStore) Seed(ctx context.Context, seeds []config.UserSeed) (int, error) {
	logger := util.GetLogger("BoltStore.Seed")
	n := 0
	for i, seed := range seeds {
		email := strings.ToLower(strings.TrimSpace(seed.Email))
		role := filetree.RoleUser
		if seed.Role != "" {
			role = filetree.Role(seed.Role)
		}
		if role != filetree.RoleUser && role != filetree.RoleAdmin {
			return n, fmt.Errorf("users[%d] (%s): unknown role %q", i, email, seed.Role)
		}

		now := time.Now().UTC()
		u := &filetree.User{
			ID:        uuid.NewSHA1(userNamespace, []byte(email)).String(),
			Name:      seed.Name,
			Email:     email,
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if existing, err := s.Authenticate(ctx, seed.Token); err == nil && existing.ID == u.ID {
			u.CreatedAt = existing.CreatedAt
		}
		if err := s.Put(ctx, seed.Token, u); err != nil {
			return n, fmt.Errorf("users[%d] (%s): %w", i, email, err)
		}
		logger.Debug().Str("email", email).Str("id", u.ID).Msg("Seeded user")
		n++
	}
	return n, nil
}
