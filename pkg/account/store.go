package account

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"menuprice/models"
	"menuprice/pkg/dberr"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if dberr.IsUniqueViolation(err) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (s *GormStore) UserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if dberr.IsNotFound(err) {
			return u, ErrNotFound
		}
		return u, err
	}
	return u, nil
}

func (s *GormStore) UserByID(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if dberr.IsNotFound(err) {
			return u, ErrNotFound
		}
		return u, err
	}
	return u, nil
}

func (s *GormStore) SaveRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	return s.db.WithContext(ctx).Create(rt).Error
}

func (s *GormStore) RefreshTokenByHash(ctx context.Context, hash string) (models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&rt).Error; err != nil {
		if dberr.IsNotFound(err) {
			return rt, ErrNotFound
		}
		return rt, err
	}
	return rt, nil
}

func (s *GormStore) RevokeRefreshToken(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).Where("id = ?", id).Update("revoked", true).Error
}

func (s *GormStore) SetPassword(ctx context.Context, id uint, hashed []byte) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("hashed_password", hashed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu     sync.Mutex
	users  []models.User
	tokens []models.RefreshToken
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return ErrUserExists
		}
	}
	u.ID = uint(len(s.users) + 1)
	s.users = append(s.users, *u)
	return nil
}

func (s *MemoryStore) UserByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *MemoryStore) UserByID(_ context.Context, id uint) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || int(id) > len(s.users) {
		return models.User{}, ErrNotFound
	}
	return s.users[id-1], nil
}

func (s *MemoryStore) SaveRefreshToken(_ context.Context, rt *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt.ID = uint(len(s.tokens) + 1)
	s.tokens = append(s.tokens, *rt)
	return nil
}

func (s *MemoryStore) RefreshTokenByHash(_ context.Context, hash string) (models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rt := range s.tokens {
		if rt.TokenHash == hash {
			return rt, nil
		}
	}
	return models.RefreshToken{}, ErrNotFound
}

func (s *MemoryStore) RevokeRefreshToken(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || int(id) > len(s.tokens) {
		return ErrNotFound
	}
	s.tokens[id-1].Revoked = true
	return nil
}

func (s *MemoryStore) SetPassword(_ context.Context, id uint, hashed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || int(id) > len(s.users) {
		return ErrNotFound
	}
	s.users[id-1].HashedPassword = hashed
	return nil
}
