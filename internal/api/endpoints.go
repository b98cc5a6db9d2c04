package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"campus/portal/internal/model"
)

type Message struct {
	Message string `json:"message"`
}

func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.LoginResponse, error) {
	var out model.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, reg model.Registration) (model.Identity, error) {
	var out model.Identity
	err := c.do(ctx, http.MethodPost, "/auth/register", nil, reg, &out)
	return out, err
}

func (c *Client) SendOTP(ctx context.Context, email string) (Message, error) {
	var out Message
	err := c.do(ctx, http.MethodPost, "/auth/send-otp", nil, map[string]string{"email": email}, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (model.Identity, error) {
	var out model.Identity
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out)
	return out, err
}

// Notices returns the notices targeted at the caller's role, newest first.
func (c *Client) Notices(ctx context.Context) ([]model.Notice, error) {
	var out []model.Notice
	err := c.do(ctx, http.MethodGet, "/notices", nil, nil, &out)
	return out, err
}

func (c *Client) CreateNotice(ctx context.Context, n model.NewNotice) (model.Notice, error) {
	var out model.Notice
	err := c.do(ctx, http.MethodPost, "/notices", nil, n, &out)
	return out, err
}

func (c *Client) Requests(ctx context.Context) ([]model.Request, error) {
	var out []model.Request
	err := c.do(ctx, http.MethodGet, "/requests", nil, nil, &out)
	return out, err
}

func (c *Client) CreateRequest(ctx context.Context, r model.NewRequest) (model.Request, error) {
	var out model.Request
	err := c.do(ctx, http.MethodPost, "/requests", nil, r, &out)
	return out, err
}

func (c *Client) UpdateRequest(ctx context.Context, id string, u model.RequestUpdate) (model.Request, error) {
	var out model.Request
	err := c.do(ctx, http.MethodPut, "/requests/"+url.PathEscape(id), nil, u, &out)
	return out, err
}

func (c *Client) Students(ctx context.Context, f model.StudentFilter) ([]model.Identity, error) {
	q := url.Values{}
	setYear(q, f.Year)
	setString(q, "section", f.Section)
	var out []model.Identity
	err := c.do(ctx, http.MethodGet, "/students", q, nil, &out)
	return out, err
}

func (c *Client) StudentAttendance(ctx context.Context, studentID string) ([]model.AttendanceRecord, error) {
	var out []model.AttendanceRecord
	err := c.do(ctx, http.MethodGet, "/students/"+url.PathEscape(studentID)+"/attendance", nil, nil, &out)
	return out, err
}

func (c *Client) StudentMarks(ctx context.Context, studentID string) ([]model.MarksRecord, error) {
	var out []model.MarksRecord
	err := c.do(ctx, http.MethodGet, "/students/"+url.PathEscape(studentID)+"/marks", nil, nil, &out)
	return out, err
}

func (c *Client) Attendance(ctx context.Context, f model.AttendanceFilter) ([]model.AttendanceRecord, error) {
	q := url.Values{}
	setString(q, "date", f.Date)
	setString(q, "subject", f.Subject)
	setYear(q, f.Year)
	setString(q, "section", f.Section)
	var out []model.AttendanceRecord
	err := c.do(ctx, http.MethodGet, "/attendance", q, nil, &out)
	return out, err
}

func (c *Client) CreateAttendance(ctx context.Context, a model.NewAttendance) (model.AttendanceRecord, error) {
	var out model.AttendanceRecord
	err := c.do(ctx, http.MethodPost, "/attendance", nil, a, &out)
	return out, err
}

func (c *Client) BatchAttendance(ctx context.Context, b model.BatchAttendance) (Message, error) {
	var out Message
	err := c.do(ctx, http.MethodPost, "/attendance/batch", nil, b, &out)
	return out, err
}

func (c *Client) Marks(ctx context.Context, f model.MarksFilter) ([]model.MarksRecord, error) {
	q := url.Values{}
	setString(q, "subject", f.Subject)
	setString(q, "exam_type", f.ExamType)
	setYear(q, f.Year)
	setString(q, "section", f.Section)
	var out []model.MarksRecord
	err := c.do(ctx, http.MethodGet, "/marks", q, nil, &out)
	return out, err
}

func (c *Client) CreateMarks(ctx context.Context, m model.NewMarks) (model.MarksRecord, error) {
	var out model.MarksRecord
	err := c.do(ctx, http.MethodPost, "/marks", nil, m, &out)
	return out, err
}

func (c *Client) BatchMarks(ctx context.Context, b model.BatchMarks) (Message, error) {
	var out Message
	err := c.do(ctx, http.MethodPost, "/marks/batch", nil, b, &out)
	return out, err
}

func (c *Client) Complaints(ctx context.Context) ([]model.Complaint, error) {
	var out []model.Complaint
	err := c.do(ctx, http.MethodGet, "/complaints", nil, nil, &out)
	return out, err
}

func (c *Client) CreateComplaint(ctx context.Context, n model.NewComplaint) (model.Complaint, error) {
	var out model.Complaint
	err := c.do(ctx, http.MethodPost, "/complaints", nil, n, &out)
	return out, err
}

func (c *Client) Analytics(ctx context.Context) (model.AnalyticsSummary, error) {
	var out model.AnalyticsSummary
	err := c.do(ctx, http.MethodGet, "/admin/analytics", nil, nil, &out)
	return out, err
}

func (c *Client) Users(ctx context.Context) ([]model.Identity, error) {
	var out []model.Identity
	err := c.do(ctx, http.MethodGet, "/users", nil, nil, &out)
	return out, err
}

func (c *Client) UpdateMe(ctx context.Context, u model.ProfileUpdate) (model.Identity, error) {
	var out model.Identity
	err := c.do(ctx, http.MethodPut, "/users/me", nil, u, &out)
	return out, err
}

func (c *Client) UpdateProfileImage(ctx context.Context, u model.ProfileImageUpdate) (model.Identity, error) {
	var out model.Identity
	err := c.do(ctx, http.MethodPut, "/users/me/profile-image", nil, u, &out)
	return out, err
}

func setString(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setYear(q url.Values, year int) {
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
}
