package dashboard

import (
	"context"
	"strings"
	"time"

	"campus/portal/internal/model"
)

type StudentSnapshot struct {
	User                model.Identity           `json:"user"`
	Loading             bool                     `json:"loading"`
	NoticesOpen         bool                     `json:"notices_open"`
	Attendance          []model.AttendanceRecord `json:"attendance"`
	Marks               []model.MarksRecord      `json:"marks"`
	Notices             []model.Notice           `json:"notices"`
	Requests            []model.Request          `json:"requests"`
	AttendanceRate      float64                  `json:"attendance_rate"`
	AverageMarks        float64                  `json:"average_marks"`
	AttendanceBySubject []SubjectAttendance      `json:"attendance_by_subject"`
	MarksChart          []MarksRow               `json:"marks_chart"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

// Student polls the signed-in student's records and notices.
type Student struct {
	*base

	attendance []model.AttendanceRecord
	marks      []model.MarksRecord
	notices    []model.Notice
	requests   []model.Request
}

var _ Dashboard = (*Student)(nil)

func NewStudent(deps Deps) *Student {
	return &Student{base: newBase(model.RoleStudent, deps)}
}

func (s *Student) Mount(ctx context.Context) error {
	interval := s.deps.Interval
	if interval == 0 {
		interval = StudentInterval
	}
	return s.mount(ctx, interval, s.load)
}

// Refresh runs one load outside the interval.
func (s *Student) Refresh(ctx context.Context) error {
	return s.load(ctx)
}

func (s *Student) load(ctx context.Context) error {
	gen, user, mounted := s.current()
	if !mounted {
		return nil
	}
	var (
		attendance []model.AttendanceRecord
		marks      []model.MarksRecord
		list       []model.Notice
		requests   []model.Request
	)
	return s.batch(ctx, gen, user, &list, func() {
		s.attendance, s.marks, s.notices, s.requests = attendance, marks, list, requests
	},
		func(ctx context.Context) (err error) {
			attendance, err = s.deps.API.StudentAttendance(ctx, user.ID)
			return err
		},
		func(ctx context.Context) (err error) {
			marks, err = s.deps.API.StudentMarks(ctx, user.ID)
			return err
		},
		func(ctx context.Context) (err error) {
			list, err = s.deps.API.Notices(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			requests, err = s.deps.API.Requests(ctx)
			return err
		},
	)
}

func (s *Student) Snapshot() interface{} {
	return s.StudentSnapshot()
}

func (s *Student) StudentSnapshot() StudentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StudentSnapshot{
		User:                s.identity,
		Loading:             s.loading,
		NoticesOpen:         s.noticesOpen,
		Attendance:          s.attendance,
		Marks:               s.marks,
		Notices:             s.notices,
		Requests:            s.requests,
		AttendanceRate:      AttendanceRate(s.attendance),
		AverageMarks:        AverageMarks(s.marks),
		AttendanceBySubject: AttendanceBySubject(s.attendance),
		MarksChart:          MarksChart(s.marks),
		UpdatedAt:           s.updatedAt,
	}
}

// Records is the data the export writes.
func (s *Student) Records() ([]model.AttendanceRecord, []model.MarksRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attendance, s.marks
}

// SubmitRequest files a request; the roll number defaults to the student's.
func (s *Student) SubmitRequest(ctx context.Context, req model.NewRequest) (model.Request, error) {
	_, user, _ := s.current()
	if strings.TrimSpace(req.RollNumber) == "" {
		req.RollNumber = user.RollNumber
	}
	if err := s.check(req); err != nil {
		return model.Request{}, err
	}
	created, err := s.deps.API.CreateRequest(ctx, req)
	if err != nil {
		return model.Request{}, s.failed(err, "Failed to submit request")
	}
	s.deps.UI.Success("Request submitted successfully")
	_ = s.load(ctx)
	return created, nil
}

func (s *Student) SubmitComplaint(ctx context.Context, content string) (model.Complaint, error) {
	return s.submitComplaint(ctx, content)
}

func (s *Student) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (model.Identity, error) {
	update.RollNumber = strings.ToUpper(strings.TrimSpace(update.RollNumber))
	if err := s.check(update); err != nil {
		return model.Identity{}, err
	}
	user, err := s.deps.API.UpdateMe(ctx, update)
	if err != nil {
		return model.Identity{}, s.failed(err, "Failed to update profile details.")
	}
	s.adopt(ctx, user)
	s.deps.UI.Success("Profile details updated successfully.")
	return user, nil
}

func (s *Student) UpdateProfileImage(ctx context.Context, url string) (model.Identity, error) {
	update := model.ProfileImageUpdate{ProfileImageURL: strings.TrimSpace(url)}
	if err := s.check(update); err != nil {
		return model.Identity{}, err
	}
	user, err := s.deps.API.UpdateProfileImage(ctx, update)
	if err != nil {
		return model.Identity{}, s.failed(err, "Failed to update profile photo.")
	}
	s.adopt(ctx, user)
	s.deps.UI.Success("Profile photo updated successfully.")
	return user, nil
}

// adopt stores the identity returned by a profile update in the session and
// in the mounted dashboard.
func (s *Student) adopt(ctx context.Context, user model.Identity) {
	s.deps.Sessions.UpdateIdentity(ctx, user)
	s.mu.Lock()
	if s.mounted {
		s.identity = user
	}
	s.mu.Unlock()
}
