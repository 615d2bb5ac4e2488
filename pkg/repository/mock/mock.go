// Package mock has in-memory repository fakes for handler tests.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

var _ repository.UserRepo = (*Users)(nil)

// Users is an in-memory repository.UserRepo. Set CreateErr or GetErr to make
// the matching calls fail.
type Users struct {
	mu        sync.Mutex
	byID      map[int64]*models.User
	nextID    int64
	CreateErr error
	GetErr    error
}

func NewUsers() *Users {
	return &Users{byID: map[int64]*models.User{}}
}

// Stored returns a copy of the user with the given email, or nil.
func (m *Users) Stored(email string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			c := *u
			return &c
		}
	}
	return nil
}

func (m *Users) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return 0, fmt.Errorf("UNIQUE constraint failed: users.email")
		}
	}

	m.nextID++
	c := *u
	c.ID = m.nextID
	if c.Role == "" {
		c.Role = models.RoleUser
	}
	m.byID[c.ID] = &c
	return c.ID, nil
}

func (m *Users) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (m *Users) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.Stored(email), nil
}

func (m *Users) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[u.ID]
	if !ok {
		return nil
	}
	cur.Name, cur.Email, cur.PasswordHash = u.Name, u.Email, u.PasswordHash
	return nil
}

func (m *Users) SetUserRole(ctx context.Context, id int64, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.Role = role
	}
	return nil
}

func (m *Users) AddUserXP(ctx context.Context, id int64, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("user %d not found", id)
	}
	u.XP += delta
	return nil
}

func (m *Users) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *Users) ListUsersByXP(ctx context.Context, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
