// Package dashboard holds the state behind the three role dashboards: what
// each loads, how it refreshes, and the actions it offers.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"campus/portal/internal/api"
	"campus/portal/internal/logger"
	"campus/portal/internal/model"
	"campus/portal/internal/notices"
	"campus/portal/internal/notify"
	"campus/portal/internal/poller"
	"campus/portal/internal/session"
	"campus/portal/internal/storage"
	"campus/portal/internal/validate"
)

const (
	LoadFailedMessage = "Failed to load data"

	// StudentInterval is the student dashboard refresh period.
	StudentInterval = 30 * time.Second
)

var (
	ErrNoSession = errors.New("no active session")
	ErrWrongRole = errors.New("session role does not own this dashboard")

	// ErrIncompleteForm is returned when an action is missing required input.
	ErrIncompleteForm = errors.New("incomplete form")
)

// Backend is the slice of the REST client the dashboards call.
type Backend interface {
	Notices(ctx context.Context) ([]model.Notice, error)
	CreateNotice(ctx context.Context, n model.NewNotice) (model.Notice, error)
	Requests(ctx context.Context) ([]model.Request, error)
	CreateRequest(ctx context.Context, r model.NewRequest) (model.Request, error)
	UpdateRequest(ctx context.Context, id string, u model.RequestUpdate) (model.Request, error)
	Students(ctx context.Context, f model.StudentFilter) ([]model.Identity, error)
	StudentAttendance(ctx context.Context, studentID string) ([]model.AttendanceRecord, error)
	StudentMarks(ctx context.Context, studentID string) ([]model.MarksRecord, error)
	Attendance(ctx context.Context, f model.AttendanceFilter) ([]model.AttendanceRecord, error)
	BatchAttendance(ctx context.Context, b model.BatchAttendance) (api.Message, error)
	Marks(ctx context.Context, f model.MarksFilter) ([]model.MarksRecord, error)
	BatchMarks(ctx context.Context, b model.BatchMarks) (api.Message, error)
	Complaints(ctx context.Context) ([]model.Complaint, error)
	CreateComplaint(ctx context.Context, n model.NewComplaint) (model.Complaint, error)
	Analytics(ctx context.Context) (model.AnalyticsSummary, error)
	Users(ctx context.Context) ([]model.Identity, error)
	UpdateMe(ctx context.Context, u model.ProfileUpdate) (model.Identity, error)
	UpdateProfileImage(ctx context.Context, u model.ProfileImageUpdate) (model.Identity, error)
}

type Deps struct {
	API      Backend
	Sessions *session.Store
	Storage  storage.Storage
	// Notifier mirrors new notices to the system surface; nil disables it.
	Notifier notices.Notifier
	// Bridge, when set, is asked for notification permission on mount.
	Bridge *notify.Bridge
	UI     UI
	Log    logger.Logger
	// Interval is the student refresh period: zero means StudentInterval,
	// negative loads once.
	Interval time.Duration
	// Timeout bounds one refresh batch.
	Timeout time.Duration
	// SkipNotices leaves the notice cursor alone, for one-off reads that are
	// not a user looking at the page.
	SkipNotices bool
}

// Dashboard is one mounted role page.
type Dashboard interface {
	Role() model.Role
	// Mount starts loading for the signed-in identity. ctx bounds the
	// refresh loop, not a single request.
	Mount(ctx context.Context) error
	Unmount()
	// Wait blocks until loads already started have returned.
	Wait()
	Snapshot() interface{}
}

// New returns the dashboard for role.
func New(role model.Role, deps Deps) (Dashboard, error) {
	switch role {
	case model.RoleStudent:
		return NewStudent(deps), nil
	case model.RoleFaculty:
		return NewFaculty(deps), nil
	case model.RoleAdmin:
		return NewAdmin(deps), nil
	default:
		return nil, errors.Errorf("no dashboard for role %q", role)
	}
}

// base carries the mount lifecycle shared by every dashboard. A load only
// commits while the mount that started it is still current.
type base struct {
	role    model.Role
	deps    Deps
	poller  *poller.Poller
	tracker *notices.Tracker
	forms   *validate.Validator

	mu          sync.Mutex
	identity    model.Identity
	mounted     bool
	gen         int
	loading     bool
	noticesOpen bool
	updatedAt   time.Time
	handle      *poller.Handle
}

func newBase(role model.Role, deps Deps) *base {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.UI == nil {
		deps.UI = NewFeed(nil, 0)
	}
	if deps.Storage == nil {
		deps.Storage = storage.NewMemoryStore()
	}
	b := &base{
		role:   role,
		deps:   deps,
		poller: poller.New(string(role), deps.Log, deps.Timeout),
		forms:  validate.New(),
	}
	b.tracker = notices.NewTracker(deps.Storage, deps.Log, b, deps.Notifier)
	return b
}

func (b *base) Role() model.Role {
	return b.role
}

// start checks the session and opens a new mount generation. It reports
// false when the dashboard is already mounted.
func (b *base) start(ctx context.Context) (bool, error) {
	sess, ok := b.deps.Sessions.Current()
	if !ok {
		return false, ErrNoSession
	}
	if sess.Identity.Role != b.role {
		return false, ErrWrongRole
	}

	b.mu.Lock()
	if b.mounted {
		b.mu.Unlock()
		return false, nil
	}
	b.mounted = true
	b.gen++
	b.identity = sess.Identity
	b.loading = true
	b.mu.Unlock()

	b.deps.Bridge.RequestOnce(ctx)
	return true, nil
}

// mount starts a fresh mount and its load loop.
func (b *base) mount(ctx context.Context, interval time.Duration, load poller.Fetch) error {
	fresh, err := b.start(ctx)
	if err != nil || !fresh {
		return err
	}
	b.run(ctx, interval, load)
	return nil
}

func (b *base) run(ctx context.Context, interval time.Duration, load poller.Fetch) {
	handle := b.poller.Start(ctx, interval, load)
	b.mu.Lock()
	b.handle = handle
	b.mu.Unlock()
}

func (b *base) Unmount() {
	b.mu.Lock()
	handle := b.handle
	b.mounted = false
	b.gen++
	b.mu.Unlock()
	handle.Stop()
}

func (b *base) Wait() {
	b.mu.Lock()
	handle := b.handle
	b.mu.Unlock()
	handle.Wait()
}

// current is the generation and identity a load should work against.
func (b *base) current() (int, model.Identity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen, b.identity, b.mounted
}

// commit applies a finished batch when gen is still the live mount.
func (b *base) commit(gen int, apply func()) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted || gen != b.gen {
		return false
	}
	apply()
	b.loading = false
	b.updatedAt = time.Now().UTC()
	return true
}

// loadFailed keeps the previous state and surfaces one generic message.
func (b *base) loadFailed(gen int, err error) {
	b.mu.Lock()
	live := b.mounted && gen == b.gen
	if live {
		b.loading = false
	}
	b.mu.Unlock()
	if !live {
		return
	}
	b.deps.Log.Warn(string(b.role)+" dashboard load failed", err)
	b.deps.UI.Error(LoadFailedMessage)
}

// batch runs fetches all-or-nothing and commits apply into the mount of gen.
// The notices list is handed to the tracker after a successful commit.
func (b *base) batch(ctx context.Context, gen int, identity model.Identity, list *[]model.Notice, apply func(), fetches ...poller.Fetch) error {
	var committed bool
	err := poller.Batch(ctx, func() { committed = b.commit(gen, apply) }, fetches...)
	if err != nil {
		b.loadFailed(gen, err)
		return err
	}
	if committed && list != nil && !b.deps.SkipNotices {
		b.tracker.Observe(ctx, identity.ID, *list)
	}
	return nil
}

// NoticeAlert opens the notice panel and shows the in-app message.
func (b *base) NoticeAlert(_ model.Notice, message string) {
	b.mu.Lock()
	b.noticesOpen = true
	b.mu.Unlock()
	b.deps.UI.Info(message)
}

// CloseNotices dismisses the notice panel.
func (b *base) CloseNotices() {
	b.mu.Lock()
	b.noticesOpen = false
	b.mu.Unlock()
}

// check validates a form; the first failed field becomes the error toast.
func (b *base) check(form interface{}) error {
	err := b.forms.Struct(form)
	if err == nil {
		return nil
	}
	var verr *validate.ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		b.deps.UI.Error(verr.Fields[0].Error)
	} else {
		b.deps.UI.Error(err.Error())
	}
	return err
}

// failed reports a write error and hands it back so the caller keeps its form.
func (b *base) failed(err error, message string) error {
	b.deps.Log.Warn(message, err)
	b.deps.UI.Error(message)
	return err
}

func (b *base) postNotice(ctx context.Context, n model.NewNotice, defaults []model.Role, success string) (model.Notice, error) {
	if len(n.RoleTarget) == 0 {
		n.RoleTarget = append([]model.Role(nil), defaults...)
	}
	if err := b.check(n); err != nil {
		return model.Notice{}, err
	}
	created, err := b.deps.API.CreateNotice(ctx, n)
	if err != nil {
		return model.Notice{}, b.failed(err, "Failed to post notice")
	}
	b.deps.UI.Success(success)
	if _, identity, _ := b.current(); targets(created.RoleTarget, identity.Role) {
		b.tracker.MarkSeen(ctx, identity.ID, created)
	}
	return created, nil
}

func targets(roles []model.Role, role model.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (b *base) updateRequest(ctx context.Context, id string, status model.RequestStatus, comment string) (model.Request, error) {
	update := model.RequestUpdate{Status: status, AdminComment: comment}
	if err := b.check(update); err != nil {
		return model.Request{}, err
	}
	updated, err := b.deps.API.UpdateRequest(ctx, id, update)
	if err != nil {
		return model.Request{}, b.failed(err, "Failed to update request")
	}
	b.deps.UI.Success("Request " + string(status))
	return updated, nil
}

func (b *base) submitComplaint(ctx context.Context, content string) (model.Complaint, error) {
	form := model.NewComplaint{Content: content}
	if err := b.check(form); err != nil {
		return model.Complaint{}, err
	}
	created, err := b.deps.API.CreateComplaint(ctx, form)
	if err != nil {
		return model.Complaint{}, b.failed(err, "Failed to submit complaint.")
	}
	b.deps.UI.Success("Complaint submitted anonymously.")
	return created, nil
}
