package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoles(t *testing.T) {
	assert.True(t, IsElevated(RoleAdmin))
	assert.True(t, IsElevated(RoleOperations))
	assert.False(t, IsElevated(RoleSales))
	assert.False(t, IsElevated(RoleAutomation))
	assert.True(t, IsReadOnly(RoleAudit))
	assert.True(t, IsAutomation(RoleAutomation))
	assert.True(t, Known(RoleManagement))
	assert.False(t, Known(70))
}
