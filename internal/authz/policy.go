package authz

import (
	"errors"

	"github.com/restausimplon/api/internal/models"
)

var ErrForbidden = errors.New("forbidden")

// Action names one guarded operation of the API.
type Action string

const (
	UserList   Action = "user.list"
	UserRead   Action = "user.read"
	UserCreate Action = "user.create"
	UserUpdate Action = "user.update"
	UserDelete Action = "user.delete"

	ProductRead  Action = "product.read"
	ProductWrite Action = "product.write"

	OrderCreate Action = "order.create"
	OrderRead   Action = "order.read"
	OrderWrite  Action = "order.write"

	OrderItemRead  Action = "orderitem.read"
	OrderItemWrite Action = "orderitem.write"

	DeliveryRead  Action = "delivery.read"
	DeliveryWrite Action = "delivery.write"
)

// rule is one row of the policy table: the roles allowed unconditionally,
// and whether owning the target resource also grants access.
type rule struct {
	roles []models.Role
	owner bool
}

var policy = map[Action]rule{
	UserList:   {roles: []models.Role{models.RoleAdmin}},
	UserRead:   {roles: []models.Role{models.RoleAdmin, models.RoleEmployee}, owner: true},
	UserCreate: {roles: []models.Role{models.RoleAdmin}},
	UserUpdate: {roles: []models.Role{models.RoleAdmin}, owner: true},
	UserDelete: {roles: []models.Role{models.RoleAdmin}, owner: true},

	ProductRead:  {roles: []models.Role{models.RoleAdmin, models.RoleEmployee}},
	ProductWrite: {roles: []models.Role{models.RoleAdmin, models.RoleEmployee}},

	OrderCreate: {roles: []models.Role{models.RoleAdmin, models.RoleEmployee, models.RoleClient}},
	OrderRead:   {roles: []models.Role{models.RoleAdmin, models.RoleEmployee}, owner: true},
	OrderWrite:  {roles: []models.Role{models.RoleAdmin, models.RoleEmployee}},

	OrderItemRead:  {roles: []models.Role{models.RoleAdmin, models.RoleEmployee}},
	OrderItemWrite: {roles: []models.Role{models.RoleAdmin, models.RoleEmployee}},

	DeliveryRead:  {roles: []models.Role{models.RoleAdmin, models.RoleEmployee, models.RoleClient}},
	DeliveryWrite: {roles: []models.Role{models.RoleAdmin, models.RoleEmployee}},
}

// Allow checks the policy table for the caller. ownerID is the id of the
// user owning the target resource; pass Nobody when ownership is not
// meaningful for the action.
func Allow(caller *models.User, action Action, ownerID uint) error {
	r, ok := policy[action]
	if !ok {
		return ErrForbidden
	}
	for _, role := range r.roles {
		if caller.Role == role {
			return nil
		}
	}
	if r.owner && ownerID != Nobody && caller.ID == ownerID {
		return nil
	}
	return ErrForbidden
}

// Nobody marks actions where no resource owner applies.
const Nobody uint = 0
