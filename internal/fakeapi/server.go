// Package fakeapi is an in-memory rendition of the campus REST backend,
// served by cmd/devapi and used by the client tests.
package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campus/portal/internal/config"
	"campus/portal/internal/logger"
	"campus/portal/internal/model"
	"campus/portal/internal/validate"
)

var (
	defaultFacultyIDs = []string{"66", "107", "102", "132", "222", "319"}
	defaultAdminID    = "9"
)

// OTPSink receives every generated OTP. The dev backend has no mailer.
type OTPSink func(email, otp string)

type Server struct {
	cfg        config.Config
	store      *Store
	log        logger.Logger
	validator  *validate.Validator
	otpSink    OTPSink
	facultyIDs map[string]bool
	adminID    string
}

func NewServer(cfg config.Config, store *Store, log logger.Logger, sink OTPSink) *Server {
	faculty := map[string]bool{}
	for _, id := range defaultFacultyIDs {
		faculty[id] = true
	}
	if sink == nil {
		sink = func(email, otp string) { log.Info("otp issued", email, otp) }
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret"
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "campus-devapi"
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 24 * time.Hour
	}
	return &Server{
		cfg:        cfg,
		store:      store,
		log:        log,
		validator:  validate.New(),
		otpSink:    sink,
		facultyIDs: faculty,
		adminID:    defaultAdminID,
	}
}

func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/send-otp", s.handleSendOTP)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Put("/users/me", s.handleUpdateMe)
			r.Put("/users/me/profile-image", s.handleUpdateProfileImage)
			r.With(s.requireRole(model.RoleAdmin)).Get("/users", s.handleUsers)

			r.With(s.requireRole(model.RoleFaculty, model.RoleAdmin)).Get("/students", s.handleStudents)
			r.Get("/students/{studentID}/attendance", s.handleStudentAttendance)
			r.Get("/students/{studentID}/marks", s.handleStudentMarks)

			r.With(s.requireRole(model.RoleFaculty, model.RoleAdmin)).Get("/attendance", s.handleAttendance)
			r.With(s.requireRole(model.RoleFaculty)).Post("/attendance", s.handleCreateAttendance)
			r.With(s.requireRole(model.RoleFaculty)).Post("/attendance/batch", s.handleBatchAttendance)

			r.With(s.requireRole(model.RoleFaculty, model.RoleAdmin)).Get("/marks", s.handleMarks)
			r.With(s.requireRole(model.RoleFaculty)).Post("/marks", s.handleCreateMarks)
			r.With(s.requireRole(model.RoleFaculty)).Post("/marks/batch", s.handleBatchMarks)

			r.Get("/notices", s.handleNotices)
			r.With(s.requireRole(model.RoleFaculty, model.RoleAdmin)).Post("/notices", s.handleCreateNotice)

			r.Get("/requests", s.handleRequests)
			r.With(s.requireRole(model.RoleStudent)).Post("/requests", s.handleCreateRequest)
			r.With(s.requireRole(model.RoleFaculty, model.RoleAdmin)).Put("/requests/{requestID}", s.handleUpdateRequest)

			r.Get("/complaints", s.handleComplaints)
			r.Post("/complaints", s.handleCreateComplaint)

			r.With(s.requireRole(model.RoleAdmin)).Get("/admin/analytics", s.handleAnalytics)
		})
	})

	return r
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !s.decodeValid(w, r, &req) {
		return
	}
	otp := s.cfg.DevOTP
	if otp == "" {
		var err error
		if otp, err = NewOTP(); err != nil {
			s.serverError(w, errors.Wrap(err, "generating otp"))
			return
		}
	}
	s.store.PutOTP(req.Email, otp)
	s.otpSink(req.Email, otp)
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent successfully"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters long")
		return
	}
	if _, _, err := s.store.FindLogin(req.Email); err == nil {
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	switch req.Role {
	case model.RoleAdmin:
		if req.EmployeeID != s.adminID {
			writeError(w, http.StatusBadRequest, "Invalid employee ID")
			return
		}
	case model.RoleFaculty:
		if !s.facultyIDs[req.EmployeeID] {
			writeError(w, http.StatusBadRequest, "Invalid employee ID")
			return
		}
	case model.RoleStudent:
		if req.OTP == "" {
			writeError(w, http.StatusBadRequest, "OTP is required for student registration")
			return
		}
		if !s.store.ConsumeOTP(req.Email, req.OTP) {
			writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
			return
		}
	default:
		writeError(w, http.StatusUnprocessableEntity, "Invalid role")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		s.serverError(w, errors.Wrap(err, "hashing password"))
		return
	}
	user, err := s.store.CreateUser(model.Identity{
		Role:         req.Role,
		Name:         req.Name,
		Email:        req.Email,
		Department:   req.Department,
		Year:         req.Year,
		Section:      req.Section,
		RollNumber:   req.RollNumber,
		EmployeeID:   req.EmployeeID,
		MobileNumber: req.MobileNumber,
	}, hash)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.Credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	user, hash, err := s.store.FindLogin(strings.TrimSpace(req.EmailOrRoll))
	if err != nil || CheckPassword(hash, req.Password) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, err := NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, Claims{UserID: user.ID, Role: user.Role})
	if err != nil {
		s.serverError(w, errors.Wrap(err, "signing token"))
		return
	}
	writeJSON(w, http.StatusOK, model.LoginResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromContext(r.Context()))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req model.ProfileUpdate
	if !s.decodeValid(w, r, &req) {
		return
	}
	user, err := s.store.UpdateUser(userFromContext(r.Context()).ID, func(u *model.Identity) {
		if req.RollNumber != "" {
			u.RollNumber = strings.ToUpper(req.RollNumber)
		}
		u.Year = req.Year
		if req.Section != "" {
			u.Section = req.Section
		}
		if req.MobileNumber != "" {
			u.MobileNumber = req.MobileNumber
		}
	})
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found after update")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	var req model.ProfileImageUpdate
	if !s.decodeValid(w, r, &req) {
		return
	}
	user, err := s.store.UpdateUser(userFromContext(r.Context()).ID, func(u *model.Identity) {
		u.ProfileImageURL = req.ProfileImageURL
	})
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found after update")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Users())
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	year, ok := parseYear(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.Students(year, r.URL.Query().Get("section")))
}

func (s *Server) handleStudentAttendance(w http.ResponseWriter, r *http.Request) {
	studentID, ok := s.ownStudentRecords(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.Attendance(model.AttendanceFilter{}, studentID))
}

func (s *Server) handleStudentMarks(w http.ResponseWriter, r *http.Request) {
	studentID, ok := s.ownStudentRecords(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.Marks(model.MarksFilter{}, studentID))
}

// ownStudentRecords lets staff read any student and a student only
// themselves.
func (s *Server) ownStudentRecords(w http.ResponseWriter, r *http.Request) (string, bool) {
	studentID := chi.URLParam(r, "studentID")
	user := userFromContext(r.Context())
	if user.Role == model.RoleStudent && user.ID != studentID {
		writeError(w, http.StatusForbidden, "Not authorized")
		return "", false
	}
	return studentID, true
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	year, ok := parseYear(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, s.store.Attendance(model.AttendanceFilter{
		Date:    q.Get("date"),
		Subject: q.Get("subject"),
		Year:    year,
		Section: q.Get("section"),
	}, ""))
}

func (s *Server) handleCreateAttendance(w http.ResponseWriter, r *http.Request) {
	var req model.NewAttendance
	if !s.decodeValid(w, r, &req) {
		return
	}
	user := userFromContext(r.Context())
	records := s.store.AddAttendance(model.AttendanceRecord{
		StudentID:    req.StudentID,
		StudentName:  req.StudentName,
		Subject:      req.Subject,
		Date:         req.Date,
		Status:       req.Status,
		MarkedBy:     user.ID,
		MarkedByName: user.Name,
	})
	writeJSON(w, http.StatusOK, records[0])
}

func (s *Server) handleBatchAttendance(w http.ResponseWriter, r *http.Request) {
	var req model.BatchAttendance
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if len(req.StudentsStatus) == 0 {
		writeError(w, http.StatusBadRequest, "No attendance records provided")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}
	user := userFromContext(r.Context())
	records := make([]model.AttendanceRecord, 0, len(req.StudentsStatus))
	for _, st := range req.StudentsStatus {
		records = append(records, model.AttendanceRecord{
			StudentID:    st.StudentID,
			StudentName:  st.StudentName,
			Subject:      req.Subject,
			Date:         req.Date,
			Status:       st.Status,
			MarkedBy:     user.ID,
			MarkedByName: user.Name,
		})
	}
	s.store.AddAttendance(records...)
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Attendance marked for " + strconv.Itoa(len(records)) + " students.",
	})
}

func (s *Server) handleMarks(w http.ResponseWriter, r *http.Request) {
	year, ok := parseYear(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, s.store.Marks(model.MarksFilter{
		Subject:  q.Get("subject"),
		ExamType: q.Get("exam_type"),
		Year:     year,
		Section:  q.Get("section"),
	}, ""))
}

func (s *Server) handleCreateMarks(w http.ResponseWriter, r *http.Request) {
	var req model.NewMarks
	if !s.decodeValid(w, r, &req) {
		return
	}
	user := userFromContext(r.Context())
	records := s.store.AddMarks(model.MarksRecord{
		StudentID:    req.StudentID,
		StudentName:  req.StudentName,
		Subject:      req.Subject,
		Marks:        req.Marks,
		MaxMarks:     req.MaxMarks,
		ExamType:     req.ExamType,
		MarkedBy:     user.ID,
		MarkedByName: user.Name,
	})
	writeJSON(w, http.StatusOK, records[0])
}

func (s *Server) handleBatchMarks(w http.ResponseWriter, r *http.Request) {
	var req model.BatchMarks
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if len(req.StudentsMarks) == 0 {
		writeError(w, http.StatusBadRequest, "No marks records provided")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}
	user := userFromContext(r.Context())
	records := make([]model.MarksRecord, 0, len(req.StudentsMarks))
	for _, st := range req.StudentsMarks {
		records = append(records, model.MarksRecord{
			StudentID:    st.StudentID,
			StudentName:  st.StudentName,
			Subject:      req.Subject,
			Marks:        st.Marks,
			MaxMarks:     req.MaxMarks,
			ExamType:     req.ExamType,
			MarkedBy:     user.ID,
			MarkedByName: user.Name,
		})
	}
	s.store.AddMarks(records...)
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Marks added for " + strconv.Itoa(len(records)) + " students.",
	})
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Notices(userFromContext(r.Context()).Role))
}

func (s *Server) handleCreateNotice(w http.ResponseWriter, r *http.Request) {
	var req model.NewNotice
	if !s.decodeValid(w, r, &req) {
		return
	}
	user := userFromContext(r.Context())
	notice := s.store.AddNotice(model.Notice{
		Title:        req.Title,
		Content:      req.Content,
		RoleTarget:   req.RoleTarget,
		PostedBy:     user.ID,
		PostedByName: user.Name,
	})
	writeJSON(w, http.StatusOK, notice)
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	studentID := ""
	if user.Role == model.RoleStudent {
		studentID = user.ID
	}
	writeJSON(w, http.StatusOK, s.store.Requests(studentID))
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req model.NewRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	user := userFromContext(r.Context())
	roll := req.RollNumber
	if roll == "" {
		roll = user.RollNumber
	}
	created := s.store.AddRequest(model.Request{
		StudentID:   user.ID,
		StudentName: user.Name,
		RollNumber:  roll,
		RequestType: req.RequestType,
		Reason:      req.Reason,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleUpdateRequest(w http.ResponseWriter, r *http.Request) {
	var req model.RequestUpdate
	if !s.decodeValid(w, r, &req) {
		return
	}
	updated, err := s.store.UpdateRequest(chi.URLParam(r, "requestID"), req, userFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, "Request not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleComplaints(w http.ResponseWriter, r *http.Request) {
	if role := userFromContext(r.Context()).Role; role != model.RoleFaculty && role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "Not authorized to view complaints")
		return
	}
	writeJSON(w, http.StatusOK, s.store.Complaints())
}

func (s *Server) handleCreateComplaint(w http.ResponseWriter, r *http.Request) {
	var req model.NewComplaint
	if !s.decodeValid(w, r, &req) {
		return
	}
	user := userFromContext(r.Context())
	complaint := s.store.AddComplaint(model.Complaint{
		Content:         req.Content,
		SubmittedByRole: user.Role,
		Year:            user.Year,
		Section:         user.Section,
		Department:      user.Department,
	})
	writeJSON(w, http.StatusOK, complaint)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Analytics())
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusForbidden, "Not authenticated")
			return
		}
		claims, err := ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		user, err := s.store.User(claims.Subject)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := userFromContext(r.Context()).Role
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Not authorized")
		})
	}
}

func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := decodeJSON(r, out); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	if err := s.validator.Struct(out); err != nil {
		writeValidation(w, err)
		return false
	}
	return true
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.log.Error("devapi handler failed", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

type userKey struct{}

func userFromContext(ctx context.Context) model.Identity {
	user, _ := ctx.Value(userKey{}).(model.Identity)
	return user
}

func parseYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return 0, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "year must be an integer")
		return 0, false
	}
	return year, true
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, err error) {
	var verr *validate.ValidationError
	if !errors.As(err, &verr) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	entries := make([]map[string]interface{}, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		entries = append(entries, map[string]interface{}{
			"loc":  []string{"body", f.Field},
			"msg":  f.Error,
			"type": "value_error",
		})
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"detail": entries})
}
