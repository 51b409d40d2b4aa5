package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/curriculum-api/internal/models"
)

// UserRepository keeps accounts in the users collection. Lookups that miss return
// sql.ErrNoRows so callers treat every backend alike.
type UserRepository struct {
	store CollectionStore
	mu    sync.Mutex
	users []models.User
	ready bool
}

// NewUserRepository creates a repository over the users collection.
func NewUserRepository(store CollectionStore) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) ensureLoaded(ctx context.Context) error {
	if r.ready {
		return nil
	}
	raw, err := r.store.Load(ctx, CollectionUsers)
	if err != nil {
		return err
	}
	users := []models.User{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &users); err != nil {
			return fmt.Errorf("decode users: %w", err)
		}
	}
	r.users = users
	r.ready = true
	return nil
}

func (r *UserRepository) save(ctx context.Context, users []models.User) error {
	payload, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := r.store.ReplaceAll(ctx, CollectionUsers, payload); err != nil {
		return err
	}
	r.users = users
	return nil
}

// FindByEmail returns a user by email address, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	needle := strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if strings.ToLower(u.Email) == needle {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	for _, u := range r.users {
		if u.ID == id {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

// Count returns the number of stored accounts.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return len(r.users), nil
}

// Create stores a new account, rejecting a duplicate email.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("create user: email %s already registered", user.Email)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	next := append(append([]models.User(nil), r.users...), *user)
	if err := r.save(ctx, next); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateLastLogin records the login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	next := append([]models.User(nil), r.users...)
	for i := range next {
		if next[i].ID == id {
			stamp := ts
			next[i].LastLogin = &stamp
			if err := r.save(ctx, next); err != nil {
				return fmt.Errorf("update last login: %w", err)
			}
			return nil
		}
	}
	return sql.ErrNoRows
}
