package schedule

import (
	"backend/internal/model"
)

// ResolveChain returns the ordered list of approver roles that must accept a
// request before it becomes eligible for slot allocation. It is a pure
// function of the creator's role, the department and the corridor type, so
// repeated calls always yield the same chain.
//
// Non-officer requesters in the manager-run maintenance departments (ENGG,
// S&T, TRD) route through the department manager. Officer-track requests
// climb the supervisory ladder, truncated at the creator's own level: a
// junior officer's subordinate needs junior + senior but never branch.
//
// Urgent Block and Emergency corridor types shorten the chain to its first
// approver. That shortcut is deliberate and explicit here; it is never
// inferred from a missing tier.
func ResolveChain(creatorRole, department, corridorType string) []string {
	chain := baseChain(creatorRole, department)

	if corridorType == model.CorridorUrgent || corridorType == model.CorridorEmergency {
		return chain[:1]
	}
	return chain
}

func baseChain(creatorRole, department string) []string {
	if creatorRole == model.RoleUser && managerRun(department) {
		return []string{model.RoleManager}
	}

	switch creatorRole {
	case model.RoleJuniorOfficer:
		return []string{model.RoleSeniorOfficer, model.RoleBranchOfficer}
	case model.RoleSeniorOfficer:
		return []string{model.RoleBranchOfficer}
	case model.RoleBranchOfficer:
		// A branch officer's own request still needs a branch-level
		// counter-signature.
		return []string{model.RoleBranchOfficer}
	default:
		// Non-officer staff outside the manager-run departments go up the
		// officer ladder, stopping short of branch level.
		return []string{model.RoleJuniorOfficer, model.RoleSeniorOfficer}
	}
}

func managerRun(department string) bool {
	switch department {
	case model.DeptEngineering, model.DeptSignal, model.DeptTraction:
		return true
	}
	return false
}

// Authorized reports whether an approver with the given role and department
// may decide the request at its current stage of the chain. Managers are
// department-scoped: a TRD manager cannot decide an ENGG request.
func Authorized(chain []string, stage int, approverRole, approverDept, requestDept string) bool {
	if stage < 0 || stage >= len(chain) {
		return false
	}
	if chain[stage] != approverRole {
		return false
	}
	if approverRole == model.RoleManager && approverDept != requestDept {
		return false
	}
	return true
}
