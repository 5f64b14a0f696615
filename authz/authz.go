// Package authz holds the role capability table and checks callers against
// it with a casbin RBAC enforcer.
package authz

import (
	"fmt"

	"farmgate/errs"
	"farmgate/models"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Objects and actions of the capability table.
const (
	ObjOrder    = "order"
	ObjCart     = "cart"
	ObjPayment  = "payment"
	ObjProduct  = "product"
	ObjDelivery = "delivery"

	ActPlace        = "place"
	ActListOwn      = "list_own"
	ActListFarmer   = "list_farmer"
	ActUpdateStatus = "update_status"
	ActCancel       = "cancel"
	ActView         = "view"
	ActModify       = "modify"
	ActCheckout     = "checkout"
	ActCreate       = "create"
	ActUpdate       = "update"
	ActDelete       = "delete"
	ActAccept       = "accept"
	ActListAvail    = "list_available"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// DefaultPolicy maps each role to what it may do.
var DefaultPolicy = [][]string{
	{string(models.RoleBuyer), ObjOrder, ActPlace},
	{string(models.RoleBuyer), ObjOrder, ActListOwn},
	{string(models.RoleBuyer), ObjOrder, ActCancel},
	{string(models.RoleBuyer), ObjOrder, ActView},
	{string(models.RoleBuyer), ObjCart, ActModify},
	{string(models.RoleBuyer), ObjPayment, ActCheckout},

	{string(models.RoleFarmer), ObjOrder, ActListFarmer},
	{string(models.RoleFarmer), ObjOrder, ActUpdateStatus},
	{string(models.RoleFarmer), ObjOrder, ActView},
	{string(models.RoleFarmer), ObjProduct, ActCreate},
	{string(models.RoleFarmer), ObjProduct, ActUpdate},
	{string(models.RoleFarmer), ObjProduct, ActDelete},

	{string(models.RoleDeliveryAgent), ObjDelivery, ActAccept},
	{string(models.RoleDeliveryAgent), ObjDelivery, ActView},
	{string(models.RoleDeliveryAgent), ObjDelivery, ActUpdate},
	{string(models.RoleDeliveryAgent), ObjDelivery, ActCancel},
	{string(models.RoleDeliveryAgent), ObjDelivery, ActListAvail},
	{string(models.RoleDeliveryAgent), ObjOrder, ActView},
}

type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// New builds an authorizer over the given policy rows (sub, obj, act).
func New(policy [][]string) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("authz model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}
	if len(policy) > 0 {
		if _, err := enforcer.AddPolicies(policy); err != nil {
			return nil, fmt.Errorf("authz policy: %w", err)
		}
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// MustDefault returns the authorizer over DefaultPolicy.
func MustDefault() *Authorizer {
	a, err := New(DefaultPolicy)
	if err != nil {
		panic(err)
	}
	return a
}

// Check returns errs.ErrUnauthenticated for an anonymous actor and
// errs.ErrForbidden when the role lacks the capability.
func (a *Authorizer) Check(actor models.Actor, obj, act string) error {
	if actor.ID == "" {
		return errs.ErrUnauthenticated
	}
	ok, err := a.enforcer.Enforce(string(actor.Role), obj, act)
	if err != nil {
		return fmt.Errorf("authz enforce: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s cannot %s %s", errs.ErrForbidden, actor.Role, act, obj)
	}
	return nil
}
