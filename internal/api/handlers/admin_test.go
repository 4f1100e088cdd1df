package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizpulse/internal/analytics"
	"bizpulse/internal/types"
)

type fakeStats struct{ input analytics.PlatformInput }

func (f *fakeStats) LoadPlatformInput(context.Context) (*analytics.PlatformInput, error) {
	in := f.input
	return &in, nil
}

type fakeDirectory struct {
	users     []*types.User
	perRole   map[types.Role]int
	gotFilter types.UserFilter
}

func (f *fakeDirectory) List(_ context.Context, filter types.UserFilter) ([]*types.User, int, error) {
	f.gotFilter = filter
	return f.users, len(f.users), nil
}

func (f *fakeDirectory) CountPerRole(context.Context) (map[types.Role]int, error) {
	return f.perRole, nil
}

type fakeRoles struct {
	gotActor  *types.Actor
	gotTarget string
	gotRole   types.Role
	err       error
}

func (f *fakeRoles) ChangeRole(_ context.Context, actor *types.Actor, targetID string, role types.Role) error {
	f.gotActor, f.gotTarget, f.gotRole = actor, targetID, role
	return f.err
}

type fakePlanAdmin struct {
	plans     map[string]*types.SubscriptionPlan
	gotID     string
	gotUpdate types.PlanUpdate
}

func (f *fakePlanAdmin) ListActive(context.Context) ([]*types.SubscriptionPlan, error) {
	return []*types.SubscriptionPlan{f.plans["plan_free"], f.plans["plan_pro"]}, nil
}

func (f *fakePlanAdmin) Resolve(_ context.Context, identifier string) (*types.SubscriptionPlan, error) {
	for _, p := range f.plans {
		if p.ID == identifier || p.Name == identifier {
			return p, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "Plan not found", nil)
}

func (f *fakePlanAdmin) UpdatePricing(_ context.Context, id string, u types.PlanUpdate) (*types.SubscriptionPlan, error) {
	f.gotID, f.gotUpdate = id, u
	p := *f.plans[id]
	p.PriceMonthly, p.PriceYearly = u.PriceMonthly, u.PriceYearly
	p.DiscountActive, p.DiscountPercent, p.DiscountCode, p.DiscountEndsAt = u.DiscountActive, u.DiscountPercent, u.DiscountCode, u.DiscountEndsAt
	return &p, nil
}

func adminActor() types.Actor {
	return types.Actor{ID: "usr_admin", Email: "admin@example.com", Role: types.RoleAdmin}
}

type adminFixture struct {
	handler   *AdminHandler
	directory *fakeDirectory
	roles     *fakeRoles
	plans     *fakePlanAdmin
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		directory: &fakeDirectory{
			users: []*types.User{
				{ID: "usr_2", Name: "Bea", Email: "bea@example.com", Role: types.RoleUser, CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
			},
			perRole: map[types.Role]int{types.RoleUser: 4, types.RoleAdmin: 1},
		},
		roles: &fakeRoles{},
		plans: &fakePlanAdmin{plans: map[string]*types.SubscriptionPlan{
			"plan_free": freePlan(),
			"plan_pro":  proPlan(),
		}},
	}
	stats := &fakeStats{input: analytics.PlatformInput{
		TotalUsers:              5,
		AdminUsers:              1,
		BusinessOwners:          4,
		ActiveSubscriptionCount: 2,
		TotalSalesRevenue:       100,
		ActiveSubscriptions: []analytics.ActiveSubscription{
			{StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), PlanName: "pro", PlanDisplayName: "Pro", PlanPriceMonthly: 19},
		},
	}}
	f.handler = NewAdminHandler(stats, f.directory, f.roles, f.plans, testValidator(), nil)
	return f
}

func TestAdminHandler_RequiresAdmin(t *testing.T) {
	f := newAdminFixture()
	routes := []struct{ method, path string }{
		{http.MethodGet, "/admin/stats"},
		{http.MethodPut, "/admin/users/usr_2/role"},
		{http.MethodGet, "/admin/pricing"},
		{http.MethodPut, "/admin/pricing/plan_pro"},
	}
	for _, rt := range routes {
		w := serve(f.handler.RegisterRoutes, newRequest(rt.method, rt.path, `{}`, testActor()))
		assert.Equal(t, http.StatusForbidden, w.Code, rt.path)

		w = serve(f.handler.RegisterRoutes, newRequest(rt.method, rt.path, `{}`, types.Actor{}))
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.path)
	}
}

func TestAdminHandler_Stats(t *testing.T) {
	f := newAdminFixture()
	w := serve(f.handler.RegisterRoutes, newRequest(http.MethodGet, "/admin/stats?search=bea&role=user&limit=1000", nil, adminActor()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, types.UserFilter{Search: "bea", Role: types.RoleUser, Limit: 500}, f.directory.gotFilter)

	var resp AdminStatsResponse
	decodeData(t, w, &resp)
	assert.Equal(t, 5, resp.Stats.TotalUsers)
	assert.Equal(t, 19.0, resp.Stats.MonthlyRecurringRevenue)
	assert.Equal(t, 119.0, resp.Stats.TotalRevenue)
	assert.Equal(t, 40.0, resp.SystemAnalytics.SubscriptionPenetration)
	require.Len(t, resp.RecentUsers, 1)
	assert.Equal(t, "2025-02-01T00:00:00.000Z", resp.RecentUsers[0].CreatedAt)
	assert.Equal(t, []analytics.RoleCount{{Role: types.RoleAdmin, Count: 1}, {Role: types.RoleUser, Count: 4}}, resp.UsersByRole)
	assert.Equal(t, userManagement{Search: "bea", RoleFilter: "user", FilteredUsers: 1, Limit: 500}, resp.UserManagement)
}

func TestAdminHandler_StatsDefaults(t *testing.T) {
	f := newAdminFixture()
	w := serve(f.handler.RegisterRoutes, newRequest(http.MethodGet, "/admin/stats?role=owner&limit=0", nil, adminActor()))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, defaultAdminUserLimit, f.directory.gotFilter.Limit)
	var resp AdminStatsResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "all", resp.UserManagement.RoleFilter)
}

func TestAdminHandler_ChangeRole(t *testing.T) {
	f := newAdminFixture()
	w := serve(f.handler.RegisterRoutes, newRequest(http.MethodPut, "/admin/users/usr_2/role", `{"role":"admin"}`, adminActor()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "usr_admin", f.roles.gotActor.ID)
	assert.Equal(t, "usr_2", f.roles.gotTarget)
	assert.Equal(t, types.RoleAdmin, f.roles.gotRole)

	w = serve(f.handler.RegisterRoutes, newRequest(http.MethodPut, "/admin/users/usr_2/role", `{"role":"owner"}`, adminActor()))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidRole), decodeError(t, w).Code)

	f.roles.err = types.NewAppError(types.ErrCodeConflictLastAdmin, "At least one admin is required", nil)
	w = serve(f.handler.RegisterRoutes, newRequest(http.MethodPut, "/admin/users/usr_admin/role", `{"role":"user"}`, adminActor()))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "At least one admin is required", decodeError(t, w).Message)
}

func TestAdminHandler_ChangeRoleLeavesLoggingToService(t *testing.T) {
	f := newAdminFixture()
	var logs bytes.Buffer
	f.handler.logger = slog.New(slog.NewJSONHandler(&logs, nil))

	w := serve(f.handler.RegisterRoutes, newRequest(http.MethodPut, "/admin/users/usr_2/role", `{"role":"admin"}`, adminActor()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, logs.String(), "user role changed")
}

func TestAdminHandler_ListPricing(t *testing.T) {
	f := newAdminFixture()
	w := serve(f.handler.RegisterRoutes, newRequest(http.MethodGet, "/admin/pricing", nil, adminActor()))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Plans []adminPlanView `json:"plans"`
	}
	decodeData(t, w, &resp)
	require.Len(t, resp.Plans, 2)
	pro := resp.Plans[1]
	assert.Equal(t, 19.0, pro.PriceMonthly)
	assert.Equal(t, 17.1, pro.EffectivePriceMonthly)
	assert.Equal(t, 171.0, pro.EffectivePriceYearly)
}

func TestAdminHandler_UpdatePricing(t *testing.T) {
	t.Run("active discount by plan name", func(t *testing.T) {
		f := newAdminFixture()
		body := `{"priceMonthly":20,"priceYearly":200,"discountActive":true,"discountPercent":25,"discountCode":" LAUNCH ","discountEndsAt":"2025-12-31"}`
		w := serve(f.handler.RegisterRoutes, newRequest(http.MethodPut, "/admin/pricing/pro", body, adminActor()))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		assert.Equal(t, "plan_pro", f.plans.gotID)
		u := f.plans.gotUpdate
		assert.True(t, u.DiscountActive)
		assert.Equal(t, 25.0, u.DiscountPercent)
		assert.Equal(t, "LAUNCH", u.DiscountCode)
		require.NotNil(t, u.DiscountEndsAt)
		assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), *u.DiscountEndsAt)

		var resp struct {
			Plan adminPlanView `json:"plan"`
		}
		decodeData(t, w, &resp)
		assert.Equal(t, 15.0, resp.Plan.EffectivePriceMonthly)
	})

	t.Run("inactive discount clears fields", func(t *testing.T) {
		f := newAdminFixture()
		body := `{"priceMonthly":20,"priceYearly":200,"discountActive":false,"discountPercent":25,"discountCode":"X","discountEndsAt":"2025-12-31"}`
		w := serve(f.handler.RegisterRoutes, newRequest(http.MethodPut, "/admin/pricing/plan_pro", body, adminActor()))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, types.PlanUpdate{PriceMonthly: 20, PriceYearly: 200}, f.plans.gotUpdate)
	})

	t.Run("zero percent stores inactive flag", func(t *testing.T) {
		f := newAdminFixture()
		body := `{"priceMonthly":20,"priceYearly":200,"discountActive":true}`
		w := serve(f.handler.RegisterRoutes, newRequest(http.MethodPut, "/admin/pricing/plan_pro", body, adminActor()))
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, f.plans.gotUpdate.DiscountActive)
	})
}

func TestAdminHandler_UpdatePricingValidation(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   types.ErrorCode
	}{
		{"missing yearly", "/admin/pricing/plan_pro", `{"priceMonthly":1}`, http.StatusBadRequest, types.ErrCodeValidationInvalidPrice},
		{"negative", "/admin/pricing/plan_pro", `{"priceMonthly":-1,"priceYearly":1}`, http.StatusBadRequest, types.ErrCodeValidationInvalidPrice},
		{"percent over 100", "/admin/pricing/plan_pro", `{"priceMonthly":1,"priceYearly":1,"discountActive":true,"discountPercent":101}`, http.StatusBadRequest, types.ErrCodeValidationInvalidDiscount},
		{"bad end date", "/admin/pricing/plan_pro", `{"priceMonthly":1,"priceYearly":1,"discountEndsAt":"soon"}`, http.StatusBadRequest, types.ErrCodeValidationInvalidDate},
		{"unknown plan", "/admin/pricing/gold", `{"priceMonthly":1,"priceYearly":1}`, http.StatusNotFound, types.ErrCodeNotFoundPlan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()
			w := serve(f.handler.RegisterRoutes, newRequest(http.MethodPut, tt.path, tt.body, adminActor()))
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, string(tt.code), decodeError(t, w).Code)
			assert.Empty(t, f.plans.gotID)
		})
	}
}
