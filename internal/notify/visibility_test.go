package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/payflow-app/payflow/internal/shared"
)

func TestRoleVisibilityBaselines(t *testing.T) {
	require.True(t, CanSee(shared.RoleMarketingStaff, "joko@payflow.app", EventRequestApproved))
	require.False(t, CanSee(shared.RoleMarketingStaff, "joko@payflow.app", EventNewSubmission))
	require.False(t, CanSee(shared.RoleMarketingStaff, "joko@payflow.app", EventTimingAlert))

	require.True(t, CanSee(shared.RoleDepartmentManager, "dewi@payflow.app", EventNewSubmission))
	require.True(t, CanSee(shared.RoleFinanceAdmin, "any@payflow.app", EventTimingAlert))
	require.False(t, CanSee(shared.RoleFinanceStaff, "agus@payflow.app", EventTimingAlert))

	require.True(t, CanSee(shared.RoleProjectStaff, "wati@payflow.app", EventRecurringDue))
}

func TestITStaffSeesDirectoryEvents(t *testing.T) {
	require.True(t, CanSee(shared.RoleITStaff, "budi@payflow.app", EventUserCreated))
	require.False(t, CanSee(shared.RoleMarketingStaff, "joko@payflow.app", EventUserCreated))
}

func TestNamedIdentityOverrideExtendsFinanceAdmin(t *testing.T) {
	// The override applies to one identity, not to the whole role.
	require.True(t, CanSee(shared.RoleFinanceAdmin, "sari.wulandari@payflow.app", EventNewSubmission))
	require.False(t, CanSee(shared.RoleFinanceAdmin, "other.admin@payflow.app", EventNewSubmission))

	// The override adds to, and never replaces, the role allow-list.
	require.True(t, CanSee(shared.RoleFinanceAdmin, "sari.wulandari@payflow.app", EventTimingAlert))
}

func TestOverrideDoesNotApplyAcrossRoles(t *testing.T) {
	// The same email on a different role gets that role's list plus the
	// override events, but no finance-only tags.
	require.False(t, CanSee(shared.RoleMarketingStaff, "sari.wulandari@payflow.app", EventTimingAlert))
}

func TestUnknownEventInvisibleToEveryone(t *testing.T) {
	for _, role := range shared.AllRoles {
		require.False(t, CanSee(role, "sari.wulandari@payflow.app", Event("mystery_event")),
			"role %s must not see unknown tags", role)
	}
}

func TestUnknownRoleSeesNothing(t *testing.T) {
	require.Empty(t, VisibleEvents(shared.Role("Intern"), "x@payflow.app"))
}
