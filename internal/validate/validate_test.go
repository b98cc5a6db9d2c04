package validate

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/portal/internal/model"
)

func intPtr(v int) *int { return &v }

func fieldErrors(t *testing.T, err error) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr
}

func TestRegistrationStudent(t *testing.T) {
	v := New()

	ok := model.Registration{
		Email:        "asha@example.edu",
		Password:     "longenough",
		Name:         "Asha",
		Role:         model.RoleStudent,
		Year:         intPtr(2),
		RollNumber:   "24AK1A3001",
		MobileNumber: "9876543210",
		OTP:          "123456",
	}
	assert.NoError(t, v.Struct(ok))

	bad := ok
	bad.RollNumber = "24-AK-1"
	bad.MobileNumber = "12345"
	bad.OTP = ""
	bad.Password = "short"
	verr := fieldErrors(t, v.Struct(bad))
	assert.Contains(t, verr.Field("roll_number"), "NNLLNLNNAA")
	assert.Equal(t, mobileText, verr.Field("mobile_number"))
	assert.Equal(t, "otp is required", verr.Field("otp"))
	assert.NotEmpty(t, verr.Field("password"))
	assert.Empty(t, verr.Field("email"))
}

func TestRegistrationFacultyNeedsEmployeeID(t *testing.T) {
	v := New()
	reg := model.Registration{
		Email:    "ravi@example.edu",
		Password: "longenough",
		Name:     "Ravi",
		Role:     model.RoleFaculty,
	}
	verr := fieldErrors(t, v.Struct(reg))
	assert.Equal(t, "employee_id is required", verr.Field("employee_id"))
	assert.Empty(t, verr.Field("otp"))
	assert.Empty(t, verr.Field("year"))

	reg.EmployeeID = "EMP-7"
	assert.NoError(t, v.Struct(reg))
}

func TestNotBlank(t *testing.T) {
	v := New()
	verr := fieldErrors(t, v.Struct(model.NewComplaint{Content: "   "}))
	assert.Equal(t, "content cannot be empty", verr.Field("content"))
}

func TestNewRequestDates(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(model.NewRequest{RequestType: model.RequestCertificate, Reason: "bonafide"}))

	verr := fieldErrors(t, v.Struct(model.NewRequest{RequestType: model.RequestLeave, Reason: "fever"}))
	assert.NotEmpty(t, verr.Field("start_date"))
	assert.NotEmpty(t, verr.Field("end_date"))

	verr = fieldErrors(t, v.Struct(model.NewRequest{
		RequestType: model.RequestOnDuty,
		Reason:      "hackathon",
		StartDate:   "2024-03-10",
		EndDate:     "2024-03-08",
	}))
	assert.Equal(t, dateOrderText, verr.Field("end_date"))

	assert.NoError(t, v.Struct(model.NewRequest{
		RequestType: model.RequestOnDuty,
		Reason:      "hackathon",
		StartDate:   "2024-03-08",
		EndDate:     "2024-03-08",
	}))
}

func TestFieldsSorted(t *testing.T) {
	v := New()
	verr := fieldErrors(t, v.Struct(model.NewNotice{}))
	require.Len(t, verr.Fields, 3)
	assert.Equal(t, "content", verr.Fields[0].Field)
	assert.Equal(t, "role_target", verr.Fields[1].Field)
	assert.Equal(t, "title", verr.Fields[2].Field)
	assert.Contains(t, verr.Error(), "title: ")
}
