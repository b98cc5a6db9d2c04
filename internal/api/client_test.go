package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/portal/internal/config"
	"campus/portal/internal/fakeapi"
	"campus/portal/internal/logger"
	"campus/portal/internal/model"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	store := fakeapi.NewStore()
	_, err := fakeapi.Seed(store)
	require.NoError(t, err)
	srv := httptest.NewServer(fakeapi.NewServer(config.Config{DevOTP: "424242"}, store, logger.Nop(), nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, srv *httptest.Server, id string) *Client {
	t.Helper()
	resp, err := New(srv.URL+"/api", nil, 0).Login(context.Background(), model.Credentials{EmailOrRoll: id, Password: fakeapi.DevPassword})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	return New(srv.URL+"/api", StaticToken(resp.Token), 0)
}

func TestLoginFailureIsAuth(t *testing.T) {
	srv := newBackend(t)
	_, err := New(srv.URL+"/api", nil, 0).Login(context.Background(), model.Credentials{EmailOrRoll: "student@campus.local", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Invalid credentials", Detail(err, "Login failed"))
}

func TestMissingTokenIsNotAuthenticated(t *testing.T) {
	srv := newBackend(t)
	_, err := New(srv.URL+"/api", nil, 0).Notices(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "Not authenticated", apiErr.Detail)
	assert.Equal(t, "/notices", apiErr.Path)
	assert.False(t, IsAuth(err))
}

func TestValidationDetailList(t *testing.T) {
	srv := newBackend(t)
	student := login(t, srv, "24AK1A3001")
	_, err := student.CreateComplaint(context.Background(), model.NewComplaint{Content: "  "})
	require.Error(t, err)
	assert.Equal(t, "content cannot be empty", Detail(err, "Failed"))
}

func TestRegisterStudentWithOTP(t *testing.T) {
	srv := newBackend(t)
	client := New(srv.URL+"/api", nil, 0)
	ctx := context.Background()

	msg, err := client.SendOTP(ctx, "kiran@campus.local")
	require.NoError(t, err)
	assert.Equal(t, "OTP sent successfully", msg.Message)

	year := 3
	user, err := client.Register(ctx, model.Registration{
		Email:      "kiran@campus.local",
		Password:   "longenough",
		Name:       "Kiran",
		Role:       model.RoleStudent,
		Year:       &year,
		Section:    "B",
		RollNumber: "24AK1A3010",
		OTP:        "424242",
	}.Normalize())
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)

	_, err = client.Register(ctx, model.Registration{
		Email: "prof@campus.local", Password: "longenough", Name: "Prof", Role: model.RoleFaculty, EmployeeID: "1",
	}.Normalize())
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.Equal(t, "Invalid employee ID", Detail(err, ""))
}

func TestStudentReads(t *testing.T) {
	srv := newBackend(t)
	student := login(t, srv, "student@campus.local")
	ctx := context.Background()

	me, err := student.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, me.Role)

	notices, err := student.Notices(ctx)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "Welcome", notices[0].Title)
	assert.False(t, notices[0].CreatedAt.IsZero())

	attendance, err := student.StudentAttendance(ctx, me.ID)
	require.NoError(t, err)
	assert.Empty(t, attendance)

	_, err = student.Students(ctx, model.StudentFilter{})
	assert.Error(t, err)
}

func TestFacultyFilters(t *testing.T) {
	srv := newBackend(t)
	faculty := login(t, srv, "faculty@campus.local")
	ctx := context.Background()

	students, err := faculty.Students(ctx, model.StudentFilter{Year: 2, Section: "A"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	st := students[0]

	_, err = faculty.BatchMarks(ctx, model.BatchMarks{
		StudentsMarks: []model.StudentMarks{{StudentID: st.ID, StudentName: st.Name, Marks: 18}},
		Subject:       "OS",
		MaxMarks:      20,
		ExamType:      "Quiz",
	})
	require.NoError(t, err)

	marks, err := faculty.Marks(ctx, model.MarksFilter{Subject: "OS", ExamType: "Quiz", Year: 2, Section: "A"})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.InDelta(t, 90.0, marks[0].Percentage(), 0.001)

	marks, err = faculty.Marks(ctx, model.MarksFilter{Subject: "DBMS"})
	require.NoError(t, err)
	assert.Empty(t, marks)
}

func TestParseDetail(t *testing.T) {
	assert.Equal(t, "boom", parseDetail([]byte(`"boom"`)))
	assert.Equal(t, "a; b", parseDetail([]byte(`[{"loc":["body","x"],"msg":"a"},{"loc":[],"msg":"b"}]`)))
	assert.Equal(t, "", parseDetail(nil))
	assert.Equal(t, "", parseDetail([]byte(`{"x":1}`)))
}

func TestBearerHeader(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, StaticToken("abc"), 0).Me(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Bearer abc", <-got)
	assert.Equal(t, "Internal Server Error", Detail(err, "fallback"))
	assert.Equal(t, "fallback", Detail(errors.New("plain"), "fallback"))
}
