package models

// Role is the access level of a user.
type Role string

const (
	RoleClient   Role = "client"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may act on resources it does not own.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// OrderStatus is the kitchen-side state of an order. Any staff member may
// set any value; backward transitions are allowed.
type OrderStatus string

const (
	OrderEnPreparation OrderStatus = "En préparation"
	OrderPrete         OrderStatus = "Prete"
	OrderServie        OrderStatus = "Servie"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderEnPreparation, OrderPrete, OrderServie:
		return true
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryEnCours  DeliveryStatus = "En cours"
	DeliveryDelivree DeliveryStatus = "Délivrée"
)

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryEnCours, DeliveryDelivree:
		return true
	}
	return false
}

type Category string

const (
	CategoryEntree        Category = "Entrée"
	CategoryPlatPrincipal Category = "Plat principal"
	CategoryDessert       Category = "Dessert"
	CategoryBoisson       Category = "Boisson"
	CategorySnack         Category = "Snack"
	CategoryMenuEnfant    Category = "Menu enfant"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryEntree, CategoryPlatPrincipal, CategoryDessert, CategoryBoisson, CategorySnack, CategoryMenuEnfant:
		return true
	}
	return false
}
