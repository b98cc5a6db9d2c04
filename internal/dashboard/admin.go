package dashboard

import (
	"context"
	"time"

	"campus/portal/internal/model"
)

type AdminSnapshot struct {
	User        model.Identity          `json:"user"`
	Loading     bool                    `json:"loading"`
	NoticesOpen bool                    `json:"notices_open"`
	Analytics   *model.AnalyticsSummary `json:"analytics"`
	Users       []model.Identity        `json:"users"`
	Requests    []model.Request         `json:"requests"`
	Notices     []model.Notice          `json:"notices"`
	Complaints  []model.Complaint       `json:"complaints"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

type Admin struct {
	*base

	analytics  *model.AnalyticsSummary
	users      []model.Identity
	requests   []model.Request
	notices    []model.Notice
	complaints []model.Complaint
}

var _ Dashboard = (*Admin)(nil)

func NewAdmin(deps Deps) *Admin {
	return &Admin{base: newBase(model.RoleAdmin, deps)}
}

func (a *Admin) Mount(ctx context.Context) error {
	return a.mount(ctx, 0, a.load)
}

func (a *Admin) Refresh(ctx context.Context) error {
	return a.load(ctx)
}

func (a *Admin) load(ctx context.Context) error {
	gen, user, mounted := a.current()
	if !mounted {
		return nil
	}
	var (
		analytics  model.AnalyticsSummary
		users      []model.Identity
		requests   []model.Request
		list       []model.Notice
		complaints []model.Complaint
	)
	return a.batch(ctx, gen, user, &list, func() {
		a.analytics = &analytics
		a.users, a.requests, a.notices, a.complaints = users, requests, list, complaints
	},
		func(ctx context.Context) (err error) {
			analytics, err = a.deps.API.Analytics(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			users, err = a.deps.API.Users(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			requests, err = a.deps.API.Requests(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			list, err = a.deps.API.Notices(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			complaints, err = a.deps.API.Complaints(ctx)
			return err
		},
	)
}

func (a *Admin) Snapshot() interface{} {
	return a.AdminSnapshot()
}

func (a *Admin) AdminSnapshot() AdminSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AdminSnapshot{
		User:        a.identity,
		Loading:     a.loading,
		NoticesOpen: a.noticesOpen,
		Analytics:   a.analytics,
		Users:       a.users,
		Requests:    a.requests,
		Notices:     a.notices,
		Complaints:  a.complaints,
		UpdatedAt:   a.updatedAt,
	}
}

// PostNotice publishes a system-wide notice; by default students and faculty
// receive it.
func (a *Admin) PostNotice(ctx context.Context, n model.NewNotice) (model.Notice, error) {
	created, err := a.postNotice(ctx, n, []model.Role{model.RoleStudent, model.RoleFaculty}, "System-wide notice posted")
	if err == nil {
		_ = a.load(ctx)
	}
	return created, err
}

func (a *Admin) UpdateRequest(ctx context.Context, id string, status model.RequestStatus, comment string) (model.Request, error) {
	updated, err := a.updateRequest(ctx, id, status, comment)
	if err == nil {
		_ = a.load(ctx)
	}
	return updated, err
}
