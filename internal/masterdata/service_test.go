package masterdata

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

type memoryMasterRepo struct {
	clients  map[int64]*Client
	projects map[int64]*Project
	nextID   int64
}

func newMemoryMasterRepo() *memoryMasterRepo {
	return &memoryMasterRepo{
		clients:  map[int64]*Client{},
		projects: map[int64]*Project{},
		nextID:   1,
	}
}

func (m *memoryMasterRepo) CreateClient(_ context.Context, input ClientInput) (*Client, error) {
	for _, c := range m.clients {
		if c.Name == input.Name {
			return nil, fmt.Errorf("%w: client name already exists", httpx.ErrDuplicate)
		}
	}
	c := &Client{ID: m.nextID, Name: input.Name, IsActive: input.IsActive}
	m.nextID++
	m.clients[c.ID] = c
	return c, nil
}

func (m *memoryMasterRepo) UpdateClient(_ context.Context, id int64, input ClientInput) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: client", httpx.ErrNotFound)
	}
	c.Name = input.Name
	c.IsActive = input.IsActive
	return c, nil
}

func (m *memoryMasterRepo) GetClient(_ context.Context, id int64) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: client", httpx.ErrNotFound)
	}
	return c, nil
}

func (m *memoryMasterRepo) ListClients(context.Context) ([]Client, error) {
	var out []Client
	for _, c := range m.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memoryMasterRepo) CreateProject(_ context.Context, input ProjectInput) (*Project, error) {
	if _, ok := m.clients[input.ClientID]; !ok {
		return nil, fmt.Errorf("%w: client does not exist", httpx.ErrValidation)
	}
	p := &Project{ID: m.nextID, ClientID: input.ClientID, Name: input.Name,
		BillingRate: input.BillingRate, IsActive: input.IsActive}
	m.nextID++
	m.projects[p.ID] = p
	return p, nil
}

func (m *memoryMasterRepo) UpdateProject(_ context.Context, id int64, input ProjectInput) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project", httpx.ErrNotFound)
	}
	p.ClientID = input.ClientID
	p.Name = input.Name
	p.BillingRate = input.BillingRate
	p.IsActive = input.IsActive
	return p, nil
}

func (m *memoryMasterRepo) GetProject(_ context.Context, id int64) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project", httpx.ErrNotFound)
	}
	return p, nil
}

func (m *memoryMasterRepo) ListProjects(_ context.Context, clientID int64) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		if clientID == 0 || p.ClientID == clientID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func TestClientValidation(t *testing.T) {
	svc := NewService(newMemoryMasterRepo())

	_, err := svc.CreateClient(context.Background(), ClientInput{Name: "   "})
	require.ErrorIs(t, err, httpx.ErrValidation)

	client, err := svc.CreateClient(context.Background(), ClientInput{Name: "Acme Corp", IsActive: true})
	require.NoError(t, err)
	require.True(t, client.IsActive)

	_, err = svc.CreateClient(context.Background(), ClientInput{Name: "Acme Corp", IsActive: true})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestProjectValidation(t *testing.T) {
	repo := newMemoryMasterRepo()
	svc := NewService(repo)

	client, err := svc.CreateClient(context.Background(), ClientInput{Name: "Acme Corp", IsActive: true})
	require.NoError(t, err)

	_, err = svc.CreateProject(context.Background(), ProjectInput{Name: "No Client"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	negative := -10.0
	_, err = svc.CreateProject(context.Background(), ProjectInput{
		ClientID: client.ID, Name: "Bad Rate", BillingRate: &negative,
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateProject(context.Background(), ProjectInput{ClientID: 999, Name: "Ghost"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	rate := 150.0
	project, err := svc.CreateProject(context.Background(), ProjectInput{
		ClientID: client.ID, Name: "Platform Rebuild", BillingRate: &rate, IsActive: true,
	})
	require.NoError(t, err)
	require.Equal(t, client.ID, project.ClientID)
	require.InDelta(t, 150.0, *project.BillingRate, 1e-9)

	// A project can be unbilled; rate is optional.
	internal, err := svc.CreateProject(context.Background(), ProjectInput{
		ClientID: client.ID, Name: "Internal Tools", IsActive: true,
	})
	require.NoError(t, err)
	require.Nil(t, internal.BillingRate)
}
