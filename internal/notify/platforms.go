package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Console prints notifications to a writer. It never needs to ask.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) RequestPermission(context.Context) (Permission, error) {
	return Granted, nil
}

func (c *Console) Show(_ context.Context, title, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "\a[%s] %s\n", title, body)
	return err
}

var desktopNotify = beeep.Notify

// Desktop raises an OS notification. Permission is asked on the terminal. At
// most one read of in is outstanding: an answer typed after the asker gave up
// is kept for the next RequestPermission.
type Desktop struct {
	in      *bufio.Reader
	out     io.Writer
	appIcon string

	mu      sync.Mutex
	pending chan string
}

func NewDesktop(in io.Reader, out io.Writer, appIcon string) *Desktop {
	return &Desktop{in: bufio.NewReader(in), out: out, appIcon: appIcon}
}

func (d *Desktop) RequestPermission(ctx context.Context) (Permission, error) {
	answer, err := d.ask()
	if err != nil {
		return Default, err
	}
	select {
	case <-ctx.Done():
		return Default, nil
	case line := <-answer:
		d.mu.Lock()
		d.pending = nil
		d.mu.Unlock()
		switch line {
		case "y", "yes":
			return Granted, nil
		case "n", "no":
			return Denied, nil
		default:
			return Default, nil
		}
	}
}

// ask prompts and starts a read, or hands back the read already under way.
func (d *Desktop) ask() (chan string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		return d.pending, nil
	}
	if _, err := fmt.Fprint(d.out, "Show desktop notifications for new notices? [y/n] "); err != nil {
		return nil, errors.Wrap(err, "prompting")
	}
	answer := make(chan string, 1)
	d.pending = answer
	go func() {
		line, _ := d.in.ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()
	return answer, nil
}

func (d *Desktop) Show(_ context.Context, title, body string) error {
	return desktopNotify(title, body, d.appIcon)
}

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Email mails each notification through SendGrid. Permission is implied by
// configuration: a key and a recipient grant it, anything less denies.
type Email struct {
	key  string
	from *sgmail.Email
	to   *sgmail.Email
}

func NewEmail(key, fromEmail, toEmail string) *Email {
	return &Email{
		key:  key,
		from: sgmail.NewEmail("Campus Portal", fromEmail),
		to:   sgmail.NewEmail("", toEmail),
	}
}

func (e *Email) RequestPermission(context.Context) (Permission, error) {
	if e.key == "" || e.to.Address == "" {
		return Denied, nil
	}
	return Granted, nil
}

func (e *Email) Show(ctx context.Context, title, body string) error {
	p := sgmail.NewPersonalization()
	p.Subject = title
	p.AddTos(e.to)

	m := sgmail.NewV3Mail()
	m.SetFrom(e.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", body))

	req := sendgrid.GetRequest(e.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "sendgrid request")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
