package authorization

import (
	"context"
	_ "embed"
	"sort"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/verdantgrid/h2ledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds the synced enforcer backed by the policy table and
// seeds the static role permissions.
func NewEnforcer(db *gorm.DB, cfg config.Config) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer, cfg.AdminPrincipal); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer, adminPrincipal string) error {
	policies := [][]string{
		{RoleAuditor, ObjectCredit, ActionVerify},
		{RoleAdmin, ObjectAuditor, ActionManage},
	}
	for _, p := range policies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return err
		}
	}
	if admin := strings.TrimSpace(adminPrincipal); admin != "" {
		if _, err := enforcer.AddGroupingPolicy(admin, RoleAdmin); err != nil {
			return err
		}
	}
	return nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, principal, object, action string) error {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return ErrInvalidPrincipal
	}

	allowed, err := s.enforcer.Enforce(principal, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("principal", principal),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrNotAuthorized
	}
	return nil
}

func (s *ServiceImpl) AddAuditor(ctx context.Context, actor, principal string) error {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return ErrInvalidPrincipal
	}
	if err := s.Authorize(ctx, actor, ObjectAuditor, ActionManage); err != nil {
		return err
	}

	if _, err := s.enforcer.AddGroupingPolicy(principal, RoleAuditor); err != nil {
		return err
	}
	s.log.Info("auditor added",
		zap.String("actor", strings.TrimSpace(actor)),
		zap.String("principal", principal),
	)
	return nil
}

func (s *ServiceImpl) RemoveAuditor(ctx context.Context, actor, principal string) error {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return ErrInvalidPrincipal
	}
	if err := s.Authorize(ctx, actor, ObjectAuditor, ActionManage); err != nil {
		return err
	}

	if _, err := s.enforcer.RemoveGroupingPolicy(principal, RoleAuditor); err != nil {
		return err
	}
	s.log.Info("auditor removed",
		zap.String("actor", strings.TrimSpace(actor)),
		zap.String("principal", principal),
	)
	return nil
}

func (s *ServiceImpl) ListAuditors(ctx context.Context) ([]string, error) {
	groupings, err := s.enforcer.GetFilteredGroupingPolicy(1, RoleAuditor)
	if err != nil {
		return nil, err
	}
	auditors := make([]string, 0, len(groupings))
	for _, g := range groupings {
		if len(g) > 0 {
			auditors = append(auditors, g[0])
		}
	}
	sort.Strings(auditors)
	return auditors, nil
}
