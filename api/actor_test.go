package api

import (
	"net/http/httptest"
	"testing"

	"careledger/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentActor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/expenses", nil)
	c.Set("userID", uint(7))
	c.Set("username", "supervisor01")
	c.Set("role", models.RoleSupervisor)
	c.Set("sessionID", "jti-1")
	c.Set("requestID", "req-1")

	actor := CurrentActor(c)
	require.NotNil(t, actor.UserID)
	assert.Equal(t, uint(7), *actor.UserID)
	assert.Equal(t, "supervisor01", actor.Username)
	assert.Equal(t, "jti-1", actor.SessionID)
	assert.Equal(t, "req-1", actor.RequestID)
	assert.True(t, actor.CanApprove)
}

func TestCurrentActorRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for role, canApprove := range map[string]bool{
		models.RoleCaregiver:  false,
		models.RoleSupervisor: true,
		models.RoleAdmin:      true,
	} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/", nil)
		c.Set("role", role)
		assert.Equal(t, canApprove, CurrentActor(c).CanApprove, role)
	}
}

func TestCurrentActorAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)

	// 未认证请求：无用户标识，不具备审批权限
	actor := CurrentActor(c)
	assert.Nil(t, actor.UserID)
	assert.False(t, actor.CanApprove)
}
