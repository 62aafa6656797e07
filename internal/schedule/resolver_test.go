package schedule

import (
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestResolveChain_ManagerRunDepartments(t *testing.T) {
	// GIVEN: plain users in the maintenance departments
	// THEN: the single department manager is the whole chain

	for _, dept := range []string{model.DeptEngineering, model.DeptSignal, model.DeptTraction} {
		chain := ResolveChain(model.RoleUser, dept, model.CorridorRegular)
		assert.Equal(t, []string{model.RoleManager}, chain, dept)
	}
}

func TestResolveChain_OfficerLadder(t *testing.T) {
	cases := []struct {
		role  string
		chain []string
	}{
		{model.RoleUser, []string{model.RoleJuniorOfficer, model.RoleSeniorOfficer}},
		{model.RoleJuniorOfficer, []string{model.RoleSeniorOfficer, model.RoleBranchOfficer}},
		{model.RoleSeniorOfficer, []string{model.RoleBranchOfficer}},
		{model.RoleBranchOfficer, []string{model.RoleBranchOfficer}},
	}
	for _, tc := range cases {
		got := ResolveChain(tc.role, model.DeptOperating, model.CorridorRegular)
		assert.Equal(t, tc.chain, got, tc.role)
	}
}

func TestResolveChain_UrgentShortcut(t *testing.T) {
	// GIVEN: corridor types that demand immediate turnaround
	// THEN: only the first approver of the normal chain is consulted

	for _, corridor := range []string{model.CorridorUrgent, model.CorridorEmergency} {
		chain := ResolveChain(model.RoleJuniorOfficer, model.DeptOperating, corridor)
		assert.Equal(t, []string{model.RoleSeniorOfficer}, chain, corridor)

		chain = ResolveChain(model.RoleUser, model.DeptEngineering, corridor)
		assert.Equal(t, []string{model.RoleManager}, chain, corridor)
	}
}

func TestResolveChain_Deterministic(t *testing.T) {
	// Same inputs must always yield the same chain; allocation audits depend
	// on replaying it.
	first := ResolveChain(model.RoleUser, model.DeptOperating, model.CorridorMega)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, ResolveChain(model.RoleUser, model.DeptOperating, model.CorridorMega))
	}
}

func TestAuthorized_StageAndRole(t *testing.T) {
	chain := []string{model.RoleJuniorOfficer, model.RoleSeniorOfficer}

	assert.True(t, Authorized(chain, 0, model.RoleJuniorOfficer, model.DeptOperating, model.DeptOperating))
	assert.False(t, Authorized(chain, 0, model.RoleSeniorOfficer, model.DeptOperating, model.DeptOperating),
		"senior officer may not jump the junior stage")
	assert.True(t, Authorized(chain, 1, model.RoleSeniorOfficer, model.DeptOperating, model.DeptOperating))
	assert.False(t, Authorized(chain, 2, model.RoleSeniorOfficer, model.DeptOperating, model.DeptOperating),
		"stage past the end of the chain")
	assert.False(t, Authorized(chain, -1, model.RoleJuniorOfficer, model.DeptOperating, model.DeptOperating))
}

func TestAuthorized_ManagerDepartmentScoped(t *testing.T) {
	// GIVEN: an ENGG request routed to its manager
	// THEN: only the ENGG manager may decide it

	chain := ResolveChain(model.RoleUser, model.DeptEngineering, model.CorridorRegular)

	assert.True(t, Authorized(chain, 0, model.RoleManager, model.DeptEngineering, model.DeptEngineering))
	assert.False(t, Authorized(chain, 0, model.RoleManager, model.DeptTraction, model.DeptEngineering))
}
