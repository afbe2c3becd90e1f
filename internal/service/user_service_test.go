package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/query"
	"github.com/spec-kit/helpdesk/internal/testutil"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

type userFixture struct {
	store *testutil.Store
	svc   *UserService
	admin domain.User
	agent domain.User
	alice domain.User
	bob   domain.User
}

func newUserFixture() *userFixture {
	store := testutil.NewStore()
	return &userFixture{
		store: store,
		svc:   NewUserService(UserDependencies{UserRepo: store.Users()}),
		admin: store.SeedUser(domain.User{Username: "root", Email: "root@example.com", Role: domain.RoleAdmin, IsActive: true, CreatedAt: fixedNow}),
		agent: store.SeedUser(domain.User{Username: "agent", Email: "agent@example.com", Role: domain.RoleSupportAgent, IsActive: true, CreatedAt: fixedNow.Add(time.Minute)}),
		alice: store.SeedUser(domain.User{Username: "alice", Email: "alice@example.com", Role: domain.RoleEndUser, IsActive: true, CreatedAt: fixedNow.Add(2 * time.Minute)}),
		bob:   store.SeedUser(domain.User{Username: "bob", Email: "bob@example.com", Role: domain.RoleEndUser, IsActive: false, CreatedAt: fixedNow.Add(3 * time.Minute)}),
	}
}

func TestUserService_List(t *testing.T) {
	f := newUserFixture()

	res, err := f.svc.List(context.Background(), UserListInput{})
	require.NoError(t, err)
	require.Len(t, res.Users, 4)
	assert.Equal(t, "bob", res.Users[0].Username, "newest first")
	assert.Equal(t, query.DefaultUserPerPage, res.Meta.PerPage)

	endUsers, err := f.svc.List(context.Background(), UserListInput{Role: "end_user"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), endUsers.Meta.Total)

	search, err := f.svc.List(context.Background(), UserListInput{Search: "ALI"})
	require.NoError(t, err)
	require.Len(t, search.Users, 1)
	assert.Equal(t, "alice", search.Users[0].Username)

	_, err = f.svc.List(context.Background(), UserListInput{Role: "owner"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidFilterValue))
}

func TestUserService_AgentsAndStats(t *testing.T) {
	f := newUserFixture()

	agents, err := f.svc.Agents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "agent", agents[0].Username)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.UserStats{
		TotalUsers: 4, ActiveUsers: 3, InactiveUsers: 1,
		EndUsers: 2, SupportAgents: 1, Admins: 1,
	}, stats)
}

func TestUserService_Get(t *testing.T) {
	f := newUserFixture()

	self, err := f.svc.Get(context.Background(), &f.alice, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", self.Username)

	_, err = f.svc.Get(context.Background(), &f.alice, f.bob.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	other, err := f.svc.Get(context.Background(), &f.agent, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", other.Username)

	_, err = f.svc.Get(context.Background(), &f.admin, 9999)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUserService_UpdateSelf(t *testing.T) {
	f := newUserFixture()

	updated, err := f.svc.Update(context.Background(), &f.alice, f.alice.ID, UserUpdateInput{
		Username: strPtr("alice2"),
		Email:    strPtr("Alice2@Example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, "alice2@example.com", updated.Email)

	_, err = f.svc.Update(context.Background(), &f.alice, f.alice.ID, UserUpdateInput{Role: strPtr("admin")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.Update(context.Background(), &f.alice, f.alice.ID, UserUpdateInput{Username: strPtr("bob")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.Update(context.Background(), &f.alice, f.alice.ID, UserUpdateInput{Email: strPtr("not-an-email")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.Update(context.Background(), &f.alice, f.bob.ID, UserUpdateInput{Username: strPtr("robert")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestUserService_UpdateByAdmin(t *testing.T) {
	f := newUserFixture()

	promoted, err := f.svc.Update(context.Background(), &f.admin, f.alice.ID, UserUpdateInput{
		Role:     strPtr("support_agent"),
		Username: strPtr("alice"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSupportAgent, promoted.Role)

	_, err = f.svc.Update(context.Background(), &f.admin, f.alice.ID, UserUpdateInput{Email: strPtr("new@example.com")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.Update(context.Background(), &f.admin, f.alice.ID, UserUpdateInput{Role: strPtr("owner")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.Update(context.Background(), &f.admin, f.admin.ID, UserUpdateInput{IsActive: boolPtr(false)})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestUserService_ActivateDeactivate(t *testing.T) {
	f := newUserFixture()

	activated, err := f.svc.Activate(context.Background(), &f.admin, f.bob.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	deactivated, err := f.svc.Deactivate(context.Background(), &f.admin, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	_, err = f.svc.Deactivate(context.Background(), &f.admin, f.admin.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.Activate(context.Background(), &f.admin, 9999)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
