package fakeapi

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"campus/portal/internal/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type userRecord struct {
	model.Identity
	PasswordHash string
}

// Store is the in-memory database behind the dev backend. Lists come back
// newest first where the backend sorts by creation time.
type Store struct {
	mu         sync.RWMutex
	now        func() time.Time
	users      []userRecord
	otps       map[string]string
	notices    []model.Notice
	requests   []model.Request
	attendance []model.AttendanceRecord
	marks      []model.MarksRecord
	complaints []model.Complaint
}

func NewStore() *Store {
	return &Store{now: time.Now, otps: map[string]string{}}
}

func (s *Store) timestamp() model.Timestamp {
	return model.NewTimestamp(s.now())
}

// SetClock replaces the creation-time source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) CreateUser(identity model.Identity, passwordHash string) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(identity.Email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			return model.Identity{}, errors.Wrap(ErrDuplicate, "email")
		}
	}
	identity.ID = uuid.NewString()
	identity.CreatedAt = s.timestamp()
	s.users = append(s.users, userRecord{Identity: identity, PasswordHash: passwordHash})
	return identity, nil
}

// FindLogin resolves the login field as an email first, then as a roll number.
func (s *Store) FindLogin(emailOrRoll string) (model.Identity, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, emailOrRoll) {
			return u.Identity, u.PasswordHash, nil
		}
	}
	for _, u := range s.users {
		if u.RollNumber != "" && strings.EqualFold(u.RollNumber, emailOrRoll) {
			return u.Identity, u.PasswordHash, nil
		}
	}
	return model.Identity{}, "", ErrNotFound
}

func (s *Store) User(id string) (model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u.Identity, nil
		}
	}
	return model.Identity{}, ErrNotFound
}

func (s *Store) UpdateUser(id string, fn func(*model.Identity)) (model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == id {
			fn(&s.users[i].Identity)
			return s.users[i].Identity, nil
		}
	}
	return model.Identity{}, ErrNotFound
}

func (s *Store) Users() []model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Identity, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Identity)
	}
	return out
}

// Students lists students by roll number, optionally narrowed to a year and
// section.
func (s *Store) Students(year int, section string) []model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Identity{}
	for _, u := range s.users {
		if u.Role != model.RoleStudent || !inClass(u.Identity, year, section) {
			continue
		}
		out = append(out, u.Identity)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RollNumber < out[j].RollNumber })
	return out
}

func inClass(u model.Identity, year int, section string) bool {
	if year > 0 && (u.Year == nil || *u.Year != year) {
		return false
	}
	if section != "" && u.Section != section {
		return false
	}
	return true
}

func (s *Store) PutOTP(email, otp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[strings.ToLower(email)] = otp
}

// ConsumeOTP checks and burns the code sent to email.
func (s *Store) ConsumeOTP(email, otp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	stored, ok := s.otps[key]
	if !ok || stored != otp {
		return false
	}
	delete(s.otps, key)
	return true
}

func (s *Store) AddNotice(n model.Notice) model.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uuid.NewString()
	n.CreatedAt = s.timestamp()
	s.notices = append(s.notices, n)
	return n
}

// Notices returns the notices targeted at role, newest first.
func (s *Store) Notices(role model.Role) []model.Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Notice{}
	for _, n := range s.notices {
		for _, target := range n.RoleTarget {
			if target == role {
				out = append(out, n)
				break
			}
		}
	}
	newestFirst(out, func(i int) time.Time { return out[i].CreatedAt.Time })
	return out
}

func (s *Store) AddRequest(r model.Request) model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	r.Status = model.StatusPending
	r.CreatedAt = s.timestamp()
	s.requests = append(s.requests, r)
	return r
}

// Requests lists every request, or only studentID's when it is set.
func (s *Store) Requests(studentID string) []model.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Request{}
	for _, r := range s.requests {
		if studentID == "" || r.StudentID == studentID {
			out = append(out, r)
		}
	}
	newestFirst(out, func(i int) time.Time { return out[i].CreatedAt.Time })
	return out
}

func (s *Store) UpdateRequest(id string, u model.RequestUpdate, by model.Identity) (model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.requests {
		if s.requests[i].ID != id {
			continue
		}
		s.requests[i].Status = u.Status
		s.requests[i].AdminComment = u.AdminComment
		s.requests[i].ApprovedBy = by.ID
		s.requests[i].ApprovedByName = by.Name
		return s.requests[i], nil
	}
	return model.Request{}, ErrNotFound
}

func (s *Store) AddAttendance(records ...model.AttendanceRecord) []model.AttendanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		records[i].ID = uuid.NewString()
		records[i].CreatedAt = s.timestamp()
	}
	s.attendance = append(s.attendance, records...)
	return records
}

func (s *Store) Attendance(f model.AttendanceFilter, studentID string) []model.AttendanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.AttendanceRecord{}
	for _, a := range s.attendance {
		if studentID != "" && a.StudentID != studentID {
			continue
		}
		if f.Date != "" && a.Date != f.Date {
			continue
		}
		if f.Subject != "" && a.Subject != f.Subject {
			continue
		}
		if (f.Year > 0 || f.Section != "") && !s.studentInClass(a.StudentID, f.Year, f.Section) {
			continue
		}
		out = append(out, a)
	}
	newestFirst(out, func(i int) time.Time { return out[i].CreatedAt.Time })
	return out
}

func (s *Store) AddMarks(records ...model.MarksRecord) []model.MarksRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		records[i].ID = uuid.NewString()
		records[i].CreatedAt = s.timestamp()
	}
	s.marks = append(s.marks, records...)
	return records
}

func (s *Store) Marks(f model.MarksFilter, studentID string) []model.MarksRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.MarksRecord{}
	for _, m := range s.marks {
		if studentID != "" && m.StudentID != studentID {
			continue
		}
		if f.Subject != "" && m.Subject != f.Subject {
			continue
		}
		if f.ExamType != "" && m.ExamType != f.ExamType {
			continue
		}
		if (f.Year > 0 || f.Section != "") && !s.studentInClass(m.StudentID, f.Year, f.Section) {
			continue
		}
		out = append(out, m)
	}
	newestFirst(out, func(i int) time.Time { return out[i].CreatedAt.Time })
	return out
}

// studentInClass needs the read lock held.
func (s *Store) studentInClass(studentID string, year int, section string) bool {
	for _, u := range s.users {
		if u.ID == studentID {
			return inClass(u.Identity, year, section)
		}
	}
	return false
}

func (s *Store) AddComplaint(c model.Complaint) model.Complaint {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = s.timestamp()
	s.complaints = append(s.complaints, c)
	return c
}

func (s *Store) Complaints() []model.Complaint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]model.Complaint{}, s.complaints...)
	newestFirst(out, func(i int) time.Time { return out[i].CreatedAt.Time })
	return out
}

// Analytics counts users, pending requests and notices, and averages the
// marks percentage per (year, section) of students that have both.
func (s *Store) Analytics() model.AnalyticsSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := model.AnalyticsSummary{SectionMarks: []model.SectionMarks{}}
	classOf := map[string]model.SectionMarks{}
	for _, u := range s.users {
		switch u.Role {
		case model.RoleStudent:
			summary.TotalStudents++
			if u.Year != nil && u.Section != "" {
				classOf[u.ID] = model.SectionMarks{Year: *u.Year, Section: u.Section}
			}
		case model.RoleFaculty:
			summary.TotalFaculty++
		}
	}
	for _, r := range s.requests {
		if r.Status == model.StatusPending {
			summary.PendingRequests++
		}
	}
	summary.TotalNotices = len(s.notices)

	type acc struct {
		total float64
		count int
	}
	sums := map[model.SectionMarks]*acc{}
	for _, m := range s.marks {
		class, ok := classOf[m.StudentID]
		if !ok {
			continue
		}
		a := sums[class]
		if a == nil {
			a = &acc{}
			sums[class] = a
		}
		a.total += m.Percentage()
		a.count++
	}
	for class, a := range sums {
		class.AveragePercentage = math.Round(a.total/float64(a.count)*100) / 100
		summary.SectionMarks = append(summary.SectionMarks, class)
	}
	sort.Slice(summary.SectionMarks, func(i, j int) bool {
		a, b := summary.SectionMarks[i], summary.SectionMarks[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Section < b.Section
	})
	return summary
}

// newestFirst orders by creation time, descending. Equal times keep the
// later insertion first.
func newestFirst[T any](items []T, createdAt func(int) time.Time) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	sort.SliceStable(items, func(i, j int) bool { return createdAt(i).After(createdAt(j)) })
}
