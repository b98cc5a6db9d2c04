package dashboard

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"campus/portal/internal/model"
	"campus/portal/internal/poller"
)

type FacultySnapshot struct {
	User        model.Identity    `json:"user"`
	Loading     bool              `json:"loading"`
	NoticesOpen bool              `json:"notices_open"`
	Students    []model.Identity  `json:"students"`
	Requests    []model.Request   `json:"requests"`
	Notices     []model.Notice    `json:"notices"`
	Complaints  []model.Complaint `json:"complaints"`

	Subjects      []string `json:"subjects"`
	MarksSubjects []string `json:"marks_subjects"`
	ExamTypes     []string `json:"exam_types"`

	AttendanceFilter   model.AttendanceFilter   `json:"attendance_filter"`
	FilteredAttendance []model.AttendanceRecord `json:"filtered_attendance"`
	MarksFilter        model.MarksFilter        `json:"marks_filter"`
	FilteredMarks      []model.MarksRecord      `json:"filtered_marks"`

	Profile   *StudentProfile `json:"profile,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StudentProfile is the detail view of one student.
type StudentProfile struct {
	Student    model.Identity           `json:"student"`
	Attendance []model.AttendanceRecord `json:"attendance"`
	Marks      []model.MarksRecord      `json:"marks"`
}

// Faculty loads once on mount. The filtered overviews are fetched on demand.
type Faculty struct {
	*base

	students   []model.Identity
	requests   []model.Request
	notices    []model.Notice
	complaints []model.Complaint
	attendance []model.AttendanceRecord
	marks      []model.MarksRecord

	subjects      []string
	marksSubjects []string
	examTypes     []string

	attendanceFilter   model.AttendanceFilter
	filteredAttendance []model.AttendanceRecord
	marksFilter        model.MarksFilter
	filteredMarks      []model.MarksRecord
	profile            *StudentProfile
}

var _ Dashboard = (*Faculty)(nil)

func NewFaculty(deps Deps) *Faculty {
	return &Faculty{base: newBase(model.RoleFaculty, deps)}
}

func (f *Faculty) Mount(ctx context.Context) error {
	return f.mount(ctx, 0, f.load)
}

func (f *Faculty) Refresh(ctx context.Context) error {
	return f.load(ctx)
}

func (f *Faculty) load(ctx context.Context) error {
	gen, user, mounted := f.current()
	if !mounted {
		return nil
	}
	var (
		students   []model.Identity
		requests   []model.Request
		list       []model.Notice
		attendance []model.AttendanceRecord
		complaints []model.Complaint
		marks      []model.MarksRecord
	)
	return f.batch(ctx, gen, user, &list, func() {
		f.students, f.requests, f.notices = students, requests, list
		f.attendance, f.complaints, f.marks = attendance, complaints, marks

		f.subjects = unique(attendance, func(a model.AttendanceRecord) string { return a.Subject })
		f.marksSubjects = unique(marks, func(m model.MarksRecord) string { return m.Subject })
		f.examTypes = unique(marks, func(m model.MarksRecord) string { return m.ExamType })
		if f.attendanceFilter.Subject == "" && len(f.subjects) > 0 {
			f.attendanceFilter.Subject = f.subjects[0]
		}
		if f.marksFilter.Subject == "" && len(f.marksSubjects) > 0 {
			f.marksFilter.Subject = f.marksSubjects[0]
		}
		if f.marksFilter.ExamType == "" && len(f.examTypes) > 0 {
			f.marksFilter.ExamType = f.examTypes[0]
		}
	},
		func(ctx context.Context) (err error) {
			students, err = f.deps.API.Students(ctx, model.StudentFilter{})
			return err
		},
		func(ctx context.Context) (err error) {
			requests, err = f.deps.API.Requests(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			list, err = f.deps.API.Notices(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			attendance, err = f.deps.API.Attendance(ctx, model.AttendanceFilter{})
			return err
		},
		func(ctx context.Context) (err error) {
			complaints, err = f.deps.API.Complaints(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			marks, err = f.deps.API.Marks(ctx, model.MarksFilter{})
			return err
		},
	)
}

func (f *Faculty) Snapshot() interface{} {
	return f.FacultySnapshot()
}

func (f *Faculty) FacultySnapshot() FacultySnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FacultySnapshot{
		User:               f.identity,
		Loading:            f.loading,
		NoticesOpen:        f.noticesOpen,
		Students:           f.students,
		Requests:           f.requests,
		Notices:            f.notices,
		Complaints:         f.complaints,
		Subjects:           f.subjects,
		MarksSubjects:      f.marksSubjects,
		ExamTypes:          f.examTypes,
		AttendanceFilter:   f.attendanceFilter,
		FilteredAttendance: f.filteredAttendance,
		MarksFilter:        f.marksFilter,
		FilteredMarks:      f.filteredMarks,
		Profile:            f.profile,
		UpdatedAt:          f.updatedAt,
	}
}

func (f *Faculty) Records() ([]model.AttendanceRecord, []model.MarksRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attendance, f.marks
}

// FilterAttendance fetches the attendance overview for one date and subject,
// optionally narrowed to a year and section. Without both a date and a
// subject nothing is fetched.
func (f *Faculty) FilterAttendance(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceRecord, error) {
	f.mu.Lock()
	f.attendanceFilter = filter
	f.mu.Unlock()
	if filter.Date == "" || filter.Subject == "" {
		return nil, nil
	}
	records, err := f.deps.API.Attendance(ctx, filter)
	if err != nil {
		f.deps.UI.Error("Failed to fetch attendance data for the selected criteria.")
		records = []model.AttendanceRecord{}
	}
	f.mu.Lock()
	f.filteredAttendance = records
	f.mu.Unlock()
	return records, err
}

func (f *Faculty) FilterMarks(ctx context.Context, filter model.MarksFilter) ([]model.MarksRecord, error) {
	f.mu.Lock()
	f.marksFilter = filter
	f.mu.Unlock()
	records, err := f.deps.API.Marks(ctx, filter)
	if err != nil {
		f.deps.UI.Error("Failed to fetch marks data.")
		records = []model.MarksRecord{}
	}
	f.mu.Lock()
	f.filteredMarks = records
	f.mu.Unlock()
	return records, err
}

// ViewStudent loads one student's attendance and marks together.
func (f *Faculty) ViewStudent(ctx context.Context, student model.Identity) (StudentProfile, error) {
	var (
		attendance []model.AttendanceRecord
		marks      []model.MarksRecord
	)
	err := poller.Batch(ctx, nil,
		func(ctx context.Context) (err error) {
			attendance, err = f.deps.API.StudentAttendance(ctx, student.ID)
			return err
		},
		func(ctx context.Context) (err error) {
			marks, err = f.deps.API.StudentMarks(ctx, student.ID)
			return err
		},
	)
	profile := StudentProfile{Student: student, Attendance: attendance, Marks: marks}
	if err != nil {
		f.deps.UI.Error("Failed to load student's detailed profile.")
		profile = StudentProfile{Student: student, Attendance: []model.AttendanceRecord{}, Marks: []model.MarksRecord{}}
	}
	f.mu.Lock()
	f.profile = &profile
	f.mu.Unlock()
	return profile, err
}

// Roster lists a class sorted by roll number, for the batch forms.
func (f *Faculty) Roster(ctx context.Context, year int, section string) ([]model.Identity, error) {
	if year == 0 || strings.TrimSpace(section) == "" {
		f.deps.UI.Error("Please select both year and section.")
		return nil, ErrIncompleteForm
	}
	students, err := f.deps.API.Students(ctx, model.StudentFilter{Year: year, Section: section})
	if err != nil {
		return nil, f.failed(err, "Failed to fetch students.")
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].RollNumber < students[j].RollNumber })
	return students, nil
}

// AttendanceSheet starts a batch with every student of roster present.
func AttendanceSheet(roster []model.Identity, subject, date string) model.BatchAttendance {
	sheet := model.BatchAttendance{Subject: subject, Date: date}
	for _, st := range roster {
		sheet.StudentsStatus = append(sheet.StudentsStatus, model.StudentStatus{
			StudentID:   st.ID,
			StudentName: st.Name,
			Status:      model.Present,
		})
	}
	return sheet
}

func (f *Faculty) SubmitAttendance(ctx context.Context, sheet model.BatchAttendance) error {
	if len(sheet.StudentsStatus) == 0 {
		f.deps.UI.Error("No students to mark attendance for.")
		return ErrIncompleteForm
	}
	if strings.TrimSpace(sheet.Subject) == "" {
		f.deps.UI.Error("Please enter a subject.")
		return ErrIncompleteForm
	}
	if err := f.check(sheet); err != nil {
		return err
	}
	if _, err := f.deps.API.BatchAttendance(ctx, sheet); err != nil {
		return f.failed(err, "Failed to submit attendance.")
	}
	f.deps.UI.Success("Attendance submitted for " + strconv.Itoa(len(sheet.StudentsStatus)) + " students.")
	return nil
}

func (f *Faculty) SubmitMarks(ctx context.Context, sheet model.BatchMarks) error {
	if strings.TrimSpace(sheet.Subject) == "" || strings.TrimSpace(sheet.ExamType) == "" || sheet.MaxMarks <= 0 {
		f.deps.UI.Error("Please fill in all exam details.")
		return ErrIncompleteForm
	}
	if len(sheet.StudentsMarks) == 0 {
		f.deps.UI.Error("Please enter marks for at least one student.")
		return ErrIncompleteForm
	}
	if err := f.check(sheet); err != nil {
		return err
	}
	if _, err := f.deps.API.BatchMarks(ctx, sheet); err != nil {
		return f.failed(err, "Failed to submit marks.")
	}
	f.deps.UI.Success("Marks added for " + strconv.Itoa(len(sheet.StudentsMarks)) + " students.")
	return nil
}

// PostNotice publishes a notice; it targets students unless told otherwise.
func (f *Faculty) PostNotice(ctx context.Context, n model.NewNotice) (model.Notice, error) {
	created, err := f.postNotice(ctx, n, []model.Role{model.RoleStudent}, "Notice posted successfully")
	if err == nil {
		_ = f.load(ctx)
	}
	return created, err
}

func (f *Faculty) UpdateRequest(ctx context.Context, id string, status model.RequestStatus, comment string) (model.Request, error) {
	updated, err := f.updateRequest(ctx, id, status, comment)
	if err == nil {
		_ = f.load(ctx)
	}
	return updated, err
}

func (f *Faculty) SubmitComplaint(ctx context.Context, content string) (model.Complaint, error) {
	return f.submitComplaint(ctx, content)
}
