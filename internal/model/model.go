package model

import "strings"

type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

func ParseRole(value string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(value))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleFaculty:
		return RoleFaculty, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

func (r Role) Known() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Identity is the signed-in user as returned by the backend.
type Identity struct {
	ID                 string    `json:"id"`
	Role               Role      `json:"role"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Department         string    `json:"department,omitempty"`
	Year               *int      `json:"year,omitempty"`
	Section            string    `json:"section,omitempty"`
	RollNumber         string    `json:"roll_number,omitempty"`
	EmployeeID         string    `json:"employee_id,omitempty"`
	MobileNumber       string    `json:"mobile_number,omitempty"`
	ProfileImageURL    string    `json:"profile_image_url,omitempty"`
	BackgroundImageURL string    `json:"background_image_url,omitempty"`
	CreatedAt          Timestamp `json:"created_at"`
}

type Session struct {
	Token    string
	Identity Identity
}

type Notice struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	PostedBy     string    `json:"posted_by"`
	PostedByName string    `json:"posted_by_name"`
	RoleTarget   []Role    `json:"role_target"`
	CreatedAt    Timestamp `json:"created_at"`
}

type NewNotice struct {
	Title      string `json:"title" validate:"required,notblank"`
	Content    string `json:"content" validate:"required,notblank"`
	RoleTarget []Role `json:"role_target" validate:"required,min=1,dive,oneof=student faculty admin"`
}

type AttendanceStatus string

const (
	Present AttendanceStatus = "present"
	Absent  AttendanceStatus = "absent"
)

type AttendanceRecord struct {
	ID           string           `json:"id"`
	StudentID    string           `json:"student_id"`
	StudentName  string           `json:"student_name"`
	Subject      string           `json:"subject"`
	Date         string           `json:"date"`
	Status       AttendanceStatus `json:"status"`
	MarkedBy     string           `json:"marked_by"`
	MarkedByName string           `json:"marked_by_name"`
	CreatedAt    Timestamp        `json:"created_at"`
}

type NewAttendance struct {
	StudentID   string           `json:"student_id" validate:"required"`
	StudentName string           `json:"student_name" validate:"required"`
	Subject     string           `json:"subject" validate:"required,notblank"`
	Date        string           `json:"date" validate:"required,datetime=2006-01-02"`
	Status      AttendanceStatus `json:"status" validate:"required,oneof=present absent"`
}

type StudentStatus struct {
	StudentID   string           `json:"student_id" validate:"required"`
	StudentName string           `json:"student_name" validate:"required"`
	Status      AttendanceStatus `json:"status" validate:"required,oneof=present absent"`
}

type BatchAttendance struct {
	StudentsStatus []StudentStatus `json:"students_status" validate:"required,min=1,dive"`
	Subject        string          `json:"subject" validate:"required,notblank"`
	Date           string          `json:"date" validate:"required,datetime=2006-01-02"`
}

type MarksRecord struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	StudentName  string    `json:"student_name"`
	Subject      string    `json:"subject"`
	Marks        float64   `json:"marks"`
	MaxMarks     float64   `json:"max_marks"`
	ExamType     string    `json:"exam_type"`
	MarkedBy     string    `json:"marked_by"`
	MarkedByName string    `json:"marked_by_name"`
	CreatedAt    Timestamp `json:"created_at"`
}

// Percentage is marks over max marks in percent; zero when max marks is zero.
func (m MarksRecord) Percentage() float64 {
	if m.MaxMarks == 0 {
		return 0
	}
	return m.Marks / m.MaxMarks * 100
}

type NewMarks struct {
	StudentID   string  `json:"student_id" validate:"required"`
	StudentName string  `json:"student_name" validate:"required"`
	Subject     string  `json:"subject" validate:"required,notblank"`
	Marks       float64 `json:"marks" validate:"gte=0,ltefield=MaxMarks"`
	MaxMarks    float64 `json:"max_marks" validate:"gt=0"`
	ExamType    string  `json:"exam_type" validate:"required,notblank"`
}

type StudentMarks struct {
	StudentID   string  `json:"student_id" validate:"required"`
	StudentName string  `json:"student_name" validate:"required"`
	Marks       float64 `json:"marks" validate:"gte=0"`
}

type BatchMarks struct {
	StudentsMarks []StudentMarks `json:"students_marks" validate:"required,min=1,dive"`
	Subject       string         `json:"subject" validate:"required,notblank"`
	MaxMarks      float64        `json:"max_marks" validate:"gt=0"`
	ExamType      string         `json:"exam_type" validate:"required,notblank"`
}

type RequestType string

const (
	RequestLeave       RequestType = "leave"
	RequestOnDuty      RequestType = "od"
	RequestGrievance   RequestType = "grievance"
	RequestCertificate RequestType = "certificate"
)

// Dated reports whether the request type carries a start and end date.
func (t RequestType) Dated() bool {
	return t == RequestLeave || t == RequestOnDuty
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

type Request struct {
	ID             string        `json:"id"`
	StudentID      string        `json:"student_id"`
	StudentName    string        `json:"student_name"`
	RollNumber     string        `json:"roll_number,omitempty"`
	RequestType    RequestType   `json:"request_type"`
	Reason         string        `json:"reason"`
	StartDate      string        `json:"start_date,omitempty"`
	EndDate        string        `json:"end_date,omitempty"`
	Status         RequestStatus `json:"status"`
	ApprovedBy     string        `json:"approved_by,omitempty"`
	ApprovedByName string        `json:"approved_by_name,omitempty"`
	AdminComment   string        `json:"admin_comment,omitempty"`
	CreatedAt      Timestamp     `json:"created_at"`
}

type NewRequest struct {
	RequestType RequestType `json:"request_type" validate:"required,oneof=leave od grievance certificate"`
	Reason      string      `json:"reason" validate:"required,notblank"`
	RollNumber  string      `json:"roll_number,omitempty"`
	StartDate   string      `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string      `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type RequestUpdate struct {
	Status       RequestStatus `json:"status" validate:"required,oneof=approved rejected"`
	AdminComment string        `json:"admin_comment,omitempty"`
}

type Complaint struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	SubmittedByRole Role      `json:"submitted_by_role"`
	Year            *int      `json:"year,omitempty"`
	Section         string    `json:"section,omitempty"`
	Department      string    `json:"department,omitempty"`
	CreatedAt       Timestamp `json:"created_at"`
}

type NewComplaint struct {
	Content string `json:"content" validate:"required,notblank"`
}

type SectionMarks struct {
	Year              int     `json:"year"`
	Section           string  `json:"section"`
	AveragePercentage float64 `json:"average_percentage"`
}

type AnalyticsSummary struct {
	TotalStudents   int            `json:"total_students"`
	TotalFaculty    int            `json:"total_faculty"`
	PendingRequests int            `json:"pending_requests"`
	TotalNotices    int            `json:"total_notices"`
	SectionMarks    []SectionMarks `json:"section_marks"`
}

type Credentials struct {
	EmailOrRoll string `json:"email" validate:"required,notblank"`
	Password    string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

type Registration struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	Name         string `json:"name" validate:"required,notblank"`
	Role         Role   `json:"role" validate:"required,oneof=student faculty admin"`
	Department   string `json:"department,omitempty"`
	Year         *int   `json:"year,omitempty" validate:"required_if=Role student,omitempty,min=1,max=4"`
	Section      string `json:"section,omitempty"`
	RollNumber   string `json:"roll_number,omitempty" validate:"required_if=Role student,omitempty,roll_number"`
	EmployeeID   string `json:"employee_id,omitempty" validate:"required_unless=Role student"`
	MobileNumber string `json:"mobile_number,omitempty" validate:"omitempty,mobile"`
	OTP          string `json:"otp,omitempty" validate:"required_if=Role student,omitempty,len=6,numeric"`
}

// Normalize drops the fields the other roles do not carry, the way the
// register form trims its payload before posting.
func (r Registration) Normalize() Registration {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.RollNumber = strings.ToUpper(strings.TrimSpace(r.RollNumber))
	if r.Role == RoleStudent {
		r.EmployeeID = ""
		return r
	}
	r.Year = nil
	r.RollNumber = ""
	r.Section = ""
	r.OTP = ""
	return r
}

type ProfileUpdate struct {
	RollNumber   string `json:"roll_number,omitempty" validate:"omitempty,roll_number"`
	Year         *int   `json:"year" validate:"omitempty,min=1,max=4"`
	Section      string `json:"section,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty" validate:"omitempty,mobile"`
}

type ProfileImageUpdate struct {
	ProfileImageURL string `json:"profile_image_url" validate:"required,url"`
}

type StudentFilter struct {
	Year    int    `json:"year,omitempty"`
	Section string `json:"section,omitempty"`
}

type AttendanceFilter struct {
	Date    string `json:"date,omitempty"`
	Subject string `json:"subject,omitempty"`
	Year    int    `json:"year,omitempty"`
	Section string `json:"section,omitempty"`
}

type MarksFilter struct {
	Subject  string `json:"subject,omitempty"`
	ExamType string `json:"exam_type,omitempty"`
	Year     int    `json:"year,omitempty"`
	Section  string `json:"section,omitempty"`
}
