package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/payflow-app/payflow/internal/shared"
)

type stubDirectory struct {
	users []Recipient
}

func (d *stubDirectory) ListByRoles(_ context.Context, roles ...shared.Role) ([]Recipient, error) {
	var out []Recipient
	for _, u := range d.users {
		for _, role := range roles {
			if u.Role == role {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (d *stubDirectory) ListManagersByDepartment(_ context.Context, department string) ([]Recipient, error) {
	var out []Recipient
	for _, u := range d.users {
		if u.Role == shared.RoleDepartmentManager && u.Department == department {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *stubDirectory) Get(_ context.Context, id int64) (Recipient, error) {
	for _, u := range d.users {
		if u.ID == id {
			return u, nil
		}
	}
	return Recipient{}, shared.ErrNotFound
}

func testDirectory() *stubDirectory {
	return &stubDirectory{users: []Recipient{
		{ID: 1, Name: "Budi", Role: shared.RoleITStaff, Department: "IT"},
		{ID: 2, Name: "Dewi", Role: shared.RoleDepartmentManager, Department: "IT"},
		{ID: 3, Name: "Rina", Role: shared.RoleDepartmentManager, Department: "Marketing"},
		{ID: 4, Name: "Sari", Role: shared.RoleFinanceAdmin, Department: "Finance"},
		{ID: 5, Name: "Agus", Role: shared.RoleFinanceStaff, Department: "Finance"},
		{ID: 6, Name: "Tono", Role: shared.RoleGM, Department: "Management"},
		{ID: 7, Name: "Eka", Role: shared.RoleOperationManager, Department: "Operation"},
		{ID: 8, Name: "Wati", Role: shared.RoleProjectStaff, Department: "Project"},
		{ID: 9, Name: "Joko", Role: shared.RoleMarketingStaff, Department: "Marketing"},
	}}
}

func ids(recs []Recipient) []int64 {
	out := make([]int64, len(recs))
	for i, rec := range recs {
		out[i] = rec.ID
	}
	return out
}

func rc(requestorID int64, role shared.Role, department string) *RequestContext {
	return &RequestContext{
		RequestID:     100,
		RequestorID:   requestorID,
		RequestorRole: role,
		Department:    department,
		Amount:        500,
		Currency:      "USD",
	}
}

func TestSubmissionByITStaffGoesToITManagersOnly(t *testing.T) {
	recs, err := ResolveRecipients(context.Background(), testDirectory(),
		EventNewSubmission, rc(1, shared.RoleITStaff, "IT"))
	require.NoError(t, err)
	require.Equal(t, []int64{2}, ids(recs))
}

func TestSubmissionByDepartmentManagerGoesToGM(t *testing.T) {
	recs, err := ResolveRecipients(context.Background(), testDirectory(),
		EventNewSubmission, rc(2, shared.RoleDepartmentManager, "IT"))
	require.NoError(t, err)
	require.Equal(t, []int64{6}, ids(recs))
}

func TestSubmissionByOperationStaffGoesToOperationManagers(t *testing.T) {
	recs, err := ResolveRecipients(context.Background(), testDirectory(),
		EventNewSubmission, rc(1, shared.RoleOperationStaff, "Operation"))
	require.NoError(t, err)
	require.Equal(t, []int64{7}, ids(recs))
}

func TestSubmissionByOtherStaffGoesToOwnDepartmentManagers(t *testing.T) {
	recs, err := ResolveRecipients(context.Background(), testDirectory(),
		EventNewSubmission, rc(9, shared.RoleMarketingStaff, "Marketing"))
	require.NoError(t, err)
	require.Equal(t, []int64{3}, ids(recs))
}

func TestReadyForFinanceReviewGoesToFinance(t *testing.T) {
	recs, err := ResolveRecipients(context.Background(), testDirectory(),
		EventReadyForFinanceReview, rc(1, shared.RoleITStaff, "IT"))
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{4, 5}, ids(recs))
}

func TestRejectionGoesToRequestorOnly(t *testing.T) {
	recs, err := ResolveRecipients(context.Background(), testDirectory(),
		EventRequestRejected, rc(1, shared.RoleITStaff, "IT"))
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids(recs))
}

func TestRecurringDueWritesToRoleUnionAndRequestor(t *testing.T) {
	recs, err := ResolveRecipients(context.Background(), testDirectory(),
		EventRecurringDue, rc(1, shared.RoleITStaff, "IT"))
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 4, 8}, ids(recs))
}

func TestTimingAlertGoesToFinanceAdmins(t *testing.T) {
	recs, err := ResolveRecipients(context.Background(), testDirectory(),
		EventTimingAlert, rc(1, shared.RoleITStaff, "IT"))
	require.NoError(t, err)
	require.Equal(t, []int64{4}, ids(recs))
}

func TestUnknownEventRoutesToNobody(t *testing.T) {
	recs, err := ResolveRecipients(context.Background(), testDirectory(),
		Event("mystery_event"), rc(1, shared.RoleITStaff, "IT"))
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestSubmissionWithoutContextRoutesToNobody(t *testing.T) {
	recs, err := ResolveRecipients(context.Background(), testDirectory(), EventNewSubmission, nil)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestRecipientsDeduplicated(t *testing.T) {
	// Requestor who is also a Finance Admin appears once for proof_uploaded.
	dir := &stubDirectory{users: []Recipient{
		{ID: 4, Name: "Sari", Role: shared.RoleFinanceAdmin, Department: "Finance"},
	}}
	recs, err := ResolveRecipients(context.Background(), dir,
		EventProofUploaded, rc(4, shared.RoleFinanceAdmin, "Finance"))
	require.NoError(t, err)
	require.Equal(t, []int64{4}, ids(recs))
}
