package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-ops/vantage-ops/internal/auth"
	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

type memoryUserRepo struct {
	users map[int64]*User
}

func newMemoryUserRepo(users ...*User) *memoryUserRepo {
	repo := &memoryUserRepo{users: map[int64]*User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *memoryUserRepo) ListUsers(context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memoryUserRepo) GetUser(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (m *memoryUserRepo) UpdateBillableRate(ctx context.Context, id int64, rate *float64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
	}
	u.BillableRate = rate
	return m.GetUser(ctx, id)
}

func TestSetBillableRate(t *testing.T) {
	rate := 95.0
	repo := newMemoryUserRepo(&User{ID: 7, Email: "alice@vantage.local", Role: auth.RoleEmployee})
	svc := NewService(repo)

	updated, err := svc.SetBillableRate(context.Background(), 7, &rate)
	require.NoError(t, err)
	require.NotNil(t, updated.BillableRate)
	require.InDelta(t, 95.0, *updated.BillableRate, 1e-9)

	// Nil clears the rate, marking the user unbillable.
	updated, err = svc.SetBillableRate(context.Background(), 7, nil)
	require.NoError(t, err)
	require.Nil(t, updated.BillableRate)
}

func TestSetBillableRateRejectsNegative(t *testing.T) {
	rate := -1.0
	repo := newMemoryUserRepo(&User{ID: 7})
	svc := NewService(repo)

	_, err := svc.SetBillableRate(context.Background(), 7, &rate)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestSetBillableRateUnknownUser(t *testing.T) {
	rate := 120.0
	svc := NewService(newMemoryUserRepo())

	_, err := svc.SetBillableRate(context.Background(), 99, &rate)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
