package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"campus/portal/internal/config"
	"campus/portal/internal/fakeapi"
	"campus/portal/internal/logger"
	"campus/portal/internal/model"
	"campus/portal/internal/notices"
	"campus/portal/internal/storage"
)

type cliEnv struct {
	cfg     config.Config
	store   storage.Storage
	backend *fakeapi.Store
	out     *bytes.Buffer
}

func setup(t *testing.T) *cliEnv {
	t.Helper()
	backend := fakeapi.NewStore()
	_, err := fakeapi.Seed(backend)
	require.NoError(t, err)
	srv := httptest.NewServer(fakeapi.NewServer(config.Config{DevOTP: "123456"}, backend, logger.Nop(), nil).Router())
	t.Cleanup(srv.Close)

	password := fakeapi.DevPassword
	readPasswordFunc = func(int) ([]byte, error) { return []byte(password), nil }
	stdinFD = func() int { return 0 }

	return &cliEnv{
		cfg:     config.Config{APIBaseURL: srv.URL, Notifier: "none", PollInterval: -1},
		store:   storage.NewMemoryStore(),
		backend: backend,
		out:     &bytes.Buffer{},
	}
}

// cli builds a fresh command line over the same device storage, the way
// separate invocations would.
func (e *cliEnv) cli() *commandLine {
	e.out.Reset()
	return newCommandLine(context.Background(), e.cfg, logger.Nop(), e.store, &bytes.Buffer{}, e.out)
}

func (e *cliEnv) run(args ...string) error {
	return e.cli().run(context.Background(), append([]string{"portal"}, args...))
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_usage(t *testing.T) {
	env := setup(t)
	tests := []cliTest{
		{name: "no command", args: nil, wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "login: no id", args: []string{"login"}, wantErr: errHelp},
		{name: "send-otp: no email", args: []string{"send-otp"}, wantErr: errHelp},
		{name: "export: no file", args: []string{"export"}, wantErr: errHelp},
		{name: "register: no email", args: []string{"register", "-name", "X"}, wantErr: errHelp},
		{name: "whoami: signed out", args: []string{"whoami"}, wantErr: errNotSignedIn},
		{name: "watch: signed out", args: []string{"watch", "-once"}, wantErr: errNotSignedIn},
		{name: "login: bad password", args: []string{"login", "-id", "nobody@campus.local"}, wantErrStr: "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.run(tt.args...)
			switch {
			case tt.wantErr != nil:
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_session(t *testing.T) {
	env := setup(t)

	require.NoError(t, env.run("login", "-id", "24AK1A3001"))
	assert.Contains(t, env.out.String(), "Logged in as Asha Reddy (student). Dashboard: /student/dashboard")

	require.NoError(t, env.run("whoami"))
	assert.Contains(t, env.out.String(), "roll number: 24AK1A3001")

	require.NoError(t, env.run("watch", "-once"))
	assert.Contains(t, env.out.String(), notices.InAppMessage)
	assert.Contains(t, env.out.String(), "notices: 1")

	// The cursor survives across invocations: no second alert.
	require.NoError(t, env.run("watch", "-once"))
	assert.NotContains(t, env.out.String(), notices.InAppMessage)

	require.NoError(t, env.run("logout"))
	assert.ErrorIs(t, env.run("whoami"), errNotSignedIn)
}

func Test_commandLine_register(t *testing.T) {
	env := setup(t)

	require.NoError(t, env.run("send-otp", "-email", "meera@campus.local"))
	assert.Contains(t, env.out.String(), "OTP sent successfully")

	err := env.run("register", "-email", "meera@campus.local", "-name", "Meera", "-year", "1", "-section", "C", "-roll", "24ak1a3050")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "otp")

	require.NoError(t, env.run("register", "-email", "meera@campus.local", "-name", "Meera", "-year", "1", "-section", "C", "-roll", "24ak1a3050", "-otp", "123456"))
	assert.Contains(t, env.out.String(), "Registered Meera (student)")

	require.NoError(t, env.run("login", "-id", "24AK1A3050"))
}

func Test_commandLine_export(t *testing.T) {
	env := setup(t)
	st := env.backend.Students(2, "A")[0]
	env.backend.AddAttendance(model.AttendanceRecord{StudentID: st.ID, StudentName: st.Name, Subject: "DBMS", Date: "2024-03-01", Status: model.Present})

	require.NoError(t, env.run("login", "-id", "faculty@campus.local"))
	path := filepath.Join(t.TempDir(), "faculty.xlsx")
	require.NoError(t, env.run("export", "-out", path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Attendance")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, env.run("login", "-id", "admin@campus.local"))
	assert.Error(t, env.run("export", "-out", path))
}

func Test_commandLine_exportLeavesNoticesUnseen(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	require.NoError(t, env.run("login", "-id", "student@campus.local"))
	env.backend.AddNotice(model.Notice{Title: "Fee deadline", Content: "Pay by Friday", RoleTarget: []model.Role{model.RoleStudent}})

	path := filepath.Join(t.TempDir(), "student.xlsx")
	require.NoError(t, env.run("export", "-out", path))
	assert.NotContains(t, env.out.String(), notices.InAppMessage)
	assert.Contains(t, env.out.String(), "Exported to "+path)

	sess, ok := env.cli().sessions.Current()
	require.True(t, ok)
	_, found, err := env.store.Get(ctx, notices.CursorKey(sess.Identity.ID))
	require.NoError(t, err)
	assert.False(t, found, "export must not move the notice cursor")

	require.NoError(t, env.run("watch", "-once"))
	assert.Contains(t, env.out.String(), notices.InAppMessage)
}
