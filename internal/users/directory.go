package users

import (
	"context"

	"github.com/payflow-app/payflow/internal/notify"
	"github.com/payflow-app/payflow/internal/shared"
)

// Directory adapts the users repository to the notify.UserDirectory
// interface consumed by the notification router.
type Directory struct {
	repo Repository
}

// NewDirectory constructs the adapter.
func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

func toRecipient(u User) notify.Recipient {
	return notify.Recipient{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Department: u.Department,
	}
}

// ListByRoles returns active recipients holding any of the given roles.
func (d *Directory) ListByRoles(ctx context.Context, roles ...shared.Role) ([]notify.Recipient, error) {
	list, err := d.repo.ListByRoles(ctx, roles...)
	if err != nil {
		return nil, err
	}
	recs := make([]notify.Recipient, len(list))
	for i, u := range list {
		recs[i] = toRecipient(u)
	}
	return recs, nil
}

// ListManagersByDepartment returns the active Department Managers of one
// department.
func (d *Directory) ListManagersByDepartment(ctx context.Context, department string) ([]notify.Recipient, error) {
	list, err := d.repo.ListManagersByDepartment(ctx, department)
	if err != nil {
		return nil, err
	}
	recs := make([]notify.Recipient, len(list))
	for i, u := range list {
		recs[i] = toRecipient(u)
	}
	return recs, nil
}

// Get resolves one recipient by id.
func (d *Directory) Get(ctx context.Context, id int64) (notify.Recipient, error) {
	u, err := d.repo.Get(ctx, id)
	if err != nil {
		return notify.Recipient{}, err
	}
	return toRecipient(*u), nil
}
