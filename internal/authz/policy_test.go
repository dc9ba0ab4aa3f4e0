package authz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/restausimplon/api/internal/models"
)

func TestAllowRoles(t *testing.T) {
	admin := &models.User{ID: 1, Role: models.RoleAdmin}
	employee := &models.User{ID: 2, Role: models.RoleEmployee}
	client := &models.User{ID: 3, Role: models.RoleClient}

	require.NoError(t, Allow(admin, UserList, Nobody))
	require.ErrorIs(t, Allow(employee, UserList, Nobody), ErrForbidden)
	require.ErrorIs(t, Allow(client, UserList, Nobody), ErrForbidden)

	require.NoError(t, Allow(employee, ProductWrite, Nobody))
	require.ErrorIs(t, Allow(client, ProductWrite, Nobody), ErrForbidden)

	require.NoError(t, Allow(client, OrderCreate, Nobody))
	require.NoError(t, Allow(client, DeliveryRead, Nobody))
	require.ErrorIs(t, Allow(client, DeliveryWrite, Nobody), ErrForbidden)
}

func TestAllowOwnership(t *testing.T) {
	client := &models.User{ID: 3, Role: models.RoleClient}

	// own resource
	require.NoError(t, Allow(client, OrderRead, 3))
	require.NoError(t, Allow(client, UserRead, 3))
	require.NoError(t, Allow(client, UserUpdate, 3))

	// someone else's
	require.ErrorIs(t, Allow(client, OrderRead, 4), ErrForbidden)
	require.ErrorIs(t, Allow(client, UserUpdate, 4), ErrForbidden)

	// ownership never applies where the rule does not grant it
	require.ErrorIs(t, Allow(client, OrderWrite, 3), ErrForbidden)
}

func TestAllowUnknownAction(t *testing.T) {
	admin := &models.User{ID: 1, Role: models.RoleAdmin}
	require.ErrorIs(t, Allow(admin, Action("bogus"), Nobody), ErrForbidden)
}
