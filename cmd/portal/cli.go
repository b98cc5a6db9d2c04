package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"campus/portal/internal/api"
	"campus/portal/internal/config"
	"campus/portal/internal/dashboard"
	"campus/portal/internal/export"
	internalhttp "campus/portal/internal/http"
	"campus/portal/internal/logger"
	"campus/portal/internal/model"
	"campus/portal/internal/notify"
	"campus/portal/internal/router"
	"campus/portal/internal/session"
	"campus/portal/internal/storage"
	"campus/portal/internal/validate"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	stdinFD          = func() int { return int(os.Stdin.Fd()) }

	errHelp        = errors.New("help provided")
	errNotSignedIn = errors.New("not signed in")
)

type commandLine struct {
	cfg      config.Config
	log      logger.Logger
	storage  storage.Storage
	sessions *session.Store
	client   *api.Client
	forms    *validate.Validator
	in       io.Reader
	out      io.Writer
}

// newCommandLine restores the device session so every command starts from
// what the last one left behind.
func newCommandLine(ctx context.Context, cfg config.Config, log logger.Logger, store storage.Storage, in io.Reader, out io.Writer) *commandLine {
	sessions := session.New(store, log)
	sessions.Restore(ctx)
	return &commandLine{
		cfg:      cfg,
		log:      log,
		storage:  store,
		sessions: sessions,
		client:   api.New(cfg.APIURL(), sessions, cfg.RequestTimeout),
		forms:    validate.New(),
		in:       in,
		out:      out,
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -id EMAIL|ROLL            - sign in; the password is prompted next")
	fmt.Fprintln(cli.out, "  register -email EMAIL -name NAME -role ROLE [...] - create an account")
	fmt.Fprintln(cli.out, "  send-otp -email EMAIL           - send the student registration OTP")
	fmt.Fprintln(cli.out, "  logout                          - forget the session on this device")
	fmt.Fprintln(cli.out, "  whoami                          - show the signed-in user")
	fmt.Fprintln(cli.out, "  watch [-once]                   - run the dashboard headless with notifications")
	fmt.Fprintln(cli.out, "  serve [-addr ADDR]              - serve the local portal")
	fmt.Fprintln(cli.out, "  export -out FILE                - write attendance and marks to an xlsx file")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginID := loginCmd.String("id", "", "Email or roll number. The password will be prompted next.")

	registerCmd := flag.NewFlagSet("register", flag.ContinueOnError)
	reg := registrationFlags(registerCmd)

	otpCmd := flag.NewFlagSet("send-otp", flag.ContinueOnError)
	otpEmail := otpCmd.String("email", "", "Email the OTP is sent to.")

	watchCmd := flag.NewFlagSet("watch", flag.ContinueOnError)
	watchOnce := watchCmd.Bool("once", false, "Load once, print a summary and exit.")

	serveCmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	serveAddr := serveCmd.String("addr", cli.cfg.HTTPAddr, "Listen address.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportOut := exportCmd.String("out", "", "Destination .xlsx file.")

	for _, fs := range []*flag.FlagSet{loginCmd, registerCmd, otpCmd, watchCmd, serveCmd, exportCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginID == "" {
			loginCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginID, pwd)
	case "register":
		if err := registerCmd.Parse(args[2:]); err != nil {
			return err
		}
		if reg.form.Email == "" || reg.form.Name == "" {
			registerCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.register(ctx, reg.build(pwd))
	case "send-otp":
		if err := otpCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *otpEmail == "" {
			otpCmd.Usage()
			return errHelp
		}
		return cli.sendOTP(ctx, *otpEmail)
	case "logout":
		cli.sessions.Logout(ctx)
		fmt.Fprintln(cli.out, "Logged out.")
		return nil
	case "whoami":
		return cli.whoami()
	case "watch":
		if err := watchCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.watch(ctx, *watchOnce)
	case "serve":
		if err := serveCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.serve(ctx, *serveAddr)
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportOut == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(ctx, *exportOut)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(stdinFD())
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

func (cli *commandLine) login(ctx context.Context, id, password string) error {
	creds := model.Credentials{EmailOrRoll: strings.TrimSpace(id), Password: password}
	if err := cli.forms.Struct(creds); err != nil {
		return err
	}
	resp, err := cli.client.Login(ctx, creds)
	if err != nil {
		if api.IsAuth(err) {
			return errors.New(api.Detail(err, "Login failed"))
		}
		return errors.Wrap(err, "login")
	}
	if err := cli.sessions.Login(ctx, resp.Token, resp.User); err != nil {
		return errors.Wrap(err, "storing session")
	}
	fmt.Fprintf(cli.out, "Logged in as %s (%s). Dashboard: %s\n", resp.User.Name, resp.User.Role, router.LandingRoute(resp.User.Role))
	return nil
}

type registration struct {
	form model.Registration
	role string
	year int
}

func registrationFlags(fs *flag.FlagSet) *registration {
	r := &registration{}
	fs.StringVar(&r.form.Email, "email", "", "Account email.")
	fs.StringVar(&r.form.Name, "name", "", "Full name.")
	fs.StringVar(&r.role, "role", string(model.RoleStudent), "student, faculty or admin.")
	fs.StringVar(&r.form.Department, "department", "", "Department.")
	fs.IntVar(&r.year, "year", 0, "Student year (1-4).")
	fs.StringVar(&r.form.Section, "section", "", "Student section.")
	fs.StringVar(&r.form.RollNumber, "roll", "", "Student roll number.")
	fs.StringVar(&r.form.EmployeeID, "employee-id", "", "Faculty or admin employee ID.")
	fs.StringVar(&r.form.MobileNumber, "mobile", "", "10-digit mobile number.")
	fs.StringVar(&r.form.OTP, "otp", "", "OTP sent by send-otp (students).")
	return r
}

func (r *registration) build(password string) model.Registration {
	form := r.form
	form.Password = password
	form.Role, _ = model.ParseRole(r.role)
	if r.year != 0 {
		year := r.year
		form.Year = &year
	}
	return form.Normalize()
}

func (cli *commandLine) register(ctx context.Context, form model.Registration) error {
	if err := cli.forms.Struct(form); err != nil {
		return err
	}
	user, err := cli.client.Register(ctx, form)
	if err != nil {
		return errors.New(api.Detail(err, "Registration failed"))
	}
	fmt.Fprintf(cli.out, "Registered %s (%s). You can now log in.\n", user.Name, user.Role)
	return nil
}

func (cli *commandLine) sendOTP(ctx context.Context, email string) error {
	msg, err := cli.client.SendOTP(ctx, strings.TrimSpace(email))
	if err != nil {
		return errors.New(api.Detail(err, "Failed to send OTP"))
	}
	fmt.Fprintln(cli.out, msg.Message)
	return nil
}

func (cli *commandLine) whoami() error {
	sess, ok := cli.sessions.Current()
	if !ok {
		return errNotSignedIn
	}
	u := sess.Identity
	fmt.Fprintf(cli.out, "%s <%s>\nrole: %s\ndashboard: %s\n", u.Name, u.Email, u.Role, router.LandingRoute(u.Role))
	if u.RollNumber != "" {
		fmt.Fprintf(cli.out, "roll number: %s\n", u.RollNumber)
	}
	return nil
}

// newBridge picks the notification platform named in the config. Anything
// unusable leaves the bridge unsupported.
func (cli *commandLine) newBridge() *notify.Bridge {
	var platform notify.Platform
	switch cli.cfg.Notifier {
	case "console":
		platform = notify.NewConsole(cli.out)
	case "desktop":
		platform = notify.NewDesktop(cli.in, cli.out, "")
	case "email":
		if cli.cfg.SendgridAPIKey != "" && cli.cfg.NotifyEmail != "" {
			platform = notify.NewEmail(cli.cfg.SendgridAPIKey, cli.cfg.FromEmail, cli.cfg.NotifyEmail)
		} else {
			cli.log.Warn("email notifier needs SENDGRID_API_KEY and CAMPUS_NOTIFY_EMAIL")
		}
	case "none", "":
	default:
		cli.log.Warn("unknown notifier " + cli.cfg.Notifier)
	}
	return notify.NewBridge(platform, cli.storage, cli.log)
}

func (cli *commandLine) deps(bridge *notify.Bridge, ui dashboard.UI) dashboard.Deps {
	return dashboard.Deps{
		API:      cli.client,
		Sessions: cli.sessions,
		Storage:  cli.storage,
		Notifier: bridge,
		Bridge:   bridge,
		UI:       ui,
		Log:      cli.log,
		Interval: cli.cfg.PollInterval,
		Timeout:  cli.cfg.RequestTimeout,
	}
}

func (cli *commandLine) mounted(ctx context.Context, deps dashboard.Deps) (dashboard.Dashboard, error) {
	sess, ok := cli.sessions.Current()
	if !ok {
		return nil, errNotSignedIn
	}
	d, err := dashboard.New(sess.Identity.Role, deps)
	if err != nil {
		return nil, err
	}
	if err := d.Mount(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (cli *commandLine) watch(ctx context.Context, once bool) error {
	bridge := cli.newBridge()
	defer bridge.Close()
	deps := cli.deps(bridge, dashboard.NewFeed(cli.out, 0))
	if once {
		deps.Interval = -1
	}
	d, err := cli.mounted(ctx, deps)
	if err != nil {
		return err
	}
	defer d.Unmount()

	if once {
		d.Wait()
		cli.summary(d)
		return nil
	}
	fmt.Fprintf(cli.out, "Watching the %s dashboard. Press Ctrl+C to stop.\n", d.Role())
	<-ctx.Done()
	return nil
}

func (cli *commandLine) summary(d dashboard.Dashboard) {
	switch snap := d.Snapshot().(type) {
	case dashboard.StudentSnapshot:
		fmt.Fprintf(cli.out, "attendance: %.1f%%  average marks: %.1f%%  notices: %d  requests: %d\n",
			snap.AttendanceRate, snap.AverageMarks, len(snap.Notices), len(snap.Requests))
	case dashboard.FacultySnapshot:
		fmt.Fprintf(cli.out, "students: %d  requests: %d  notices: %d  complaints: %d\n",
			len(snap.Students), len(snap.Requests), len(snap.Notices), len(snap.Complaints))
	case dashboard.AdminSnapshot:
		fmt.Fprintf(cli.out, "users: %d  requests: %d  notices: %d  complaints: %d\n",
			len(snap.Users), len(snap.Requests), len(snap.Notices), len(snap.Complaints))
	}
}

func (cli *commandLine) serve(ctx context.Context, addr string) error {
	bridge := cli.newBridge()
	defer bridge.Close()
	portal := internalhttp.NewServer(ctx, cli.client, cli.sessions, cli.deps(bridge, nil), cli.log)
	defer portal.Close()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           portal.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		cli.log.Info("portal http listening on " + addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		cli.log.Warn("shutdown error", err)
	}
	return nil
}

func (cli *commandLine) export(ctx context.Context, path string) error {
	deps := cli.deps(nil, dashboard.NewFeed(cli.out, 0))
	deps.Notifier = nil
	deps.Interval = -1
	deps.SkipNotices = true
	d, err := cli.mounted(ctx, deps)
	if err != nil {
		return err
	}
	defer d.Unmount()
	d.Wait()

	src, ok := d.(export.Source)
	if !ok {
		return errors.Errorf("nothing to export for the %s dashboard", d.Role())
	}
	if err := export.WriteFile(path, src); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Exported to %s\n", path)
	return nil
}
