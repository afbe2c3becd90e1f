package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestAuthorizer_Allowed(t *testing.T) {
	authorizer, err := NewAuthorizer()
	require.NoError(t, err)

	tests := []struct {
		role     domain.Role
		resource string
		action   string
		want     bool
	}{
		{domain.RoleEndUser, ResourceTickets, ActionRead, true},
		{domain.RoleEndUser, ResourceTickets, ActionVote, true},
		{domain.RoleEndUser, ResourceCategories, ActionRead, true},
		{domain.RoleEndUser, ResourceCategories, ActionManage, false},
		{domain.RoleEndUser, ResourceUsers, ActionList, false},
		{domain.RoleEndUser, ResourceProfile, ActionWrite, true},
		{domain.RoleSupportAgent, ResourceTickets, ActionWrite, true},
		{domain.RoleSupportAgent, ResourceUsers, ActionList, true},
		{domain.RoleSupportAgent, ResourceUsers, ActionManage, false},
		{domain.RoleSupportAgent, ResourceUsers, ActionStats, false},
		{domain.RoleSupportAgent, ResourceCategories, ActionManage, false},
		{domain.RoleAdmin, ResourceTickets, ActionRead, true},
		{domain.RoleAdmin, ResourceUsers, ActionList, true},
		{domain.RoleAdmin, ResourceUsers, ActionManage, true},
		{domain.RoleAdmin, ResourceUsers, ActionStats, true},
		{domain.RoleAdmin, ResourceCategories, ActionManage, true},
		{domain.Role("guest"), ResourceTickets, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+tt.resource+"/"+tt.action, func(t *testing.T) {
			got, err := authorizer.Allowed(tt.role, tt.resource, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
