package authorization

import (
	"context"
	"errors"
)

const (
	ObjectCredit  = "credit"
	ObjectAuditor = "auditor"
)

const (
	ActionVerify = "verify"
	ActionManage = "manage"
)

const (
	RoleAuditor = "role:auditor"
	RoleAdmin   = "role:admin"
)

var (
	ErrNotAuthorized    = errors.New("not_authorized")
	ErrInvalidPrincipal = errors.New("invalid_principal")
)

// Service answers "may this principal perform this action" and manages
// the auditor role grants behind it.
type Service interface {
	Authorize(ctx context.Context, principal, object, action string) error
	AddAuditor(ctx context.Context, actor, principal string) error
	RemoveAuditor(ctx context.Context, actor, principal string) error
	ListAuditors(ctx context.Context) ([]string, error)
}
