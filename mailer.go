package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Email is a single outbound message
type Email struct {
	To      string
	ToName  string
	Subject string
	Plain   string
	HTML    string
}

// Mailer delivers email. Implementations own the transport, SMTP, an API
// provider, or a test double.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, email Email) error

func (f MailerFunc) Send(ctx context.Context, email Email) error {
	if f == nil {
		return nil
	}
	return f(ctx, email)
}

// TaskReport is the outcome of a background delivery, observable through the
// optional Tasks channel.
type TaskReport struct {
	Name  string
	Error error
}

// Dispatcher sends workflow emails in the background. Deliveries never block
// the request that triggered them; failures are logged and, when a Tasks
// channel is configured, reported there as well.
type Dispatcher struct {
	mailer  Mailer
	baseURL string
	logger  Logger
	timeout time.Duration

	// Tasks receives one report per background delivery when non-nil.
	// Reports are dropped rather than blocking if nobody is receiving.
	Tasks chan TaskReport
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithDispatcherTasks(tasks chan TaskReport) DispatcherOption {
	return func(d *Dispatcher) {
		d.Tasks = tasks
	}
}

func WithDispatcherTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func NewDispatcher(mailer Mailer, baseURL string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  defLogger{},
		timeout: 30 * time.Second,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d
}

// NewDispatcherFromConfig builds a Dispatcher using the link base URL from
// application config.
func NewDispatcherFromConfig(mailer Mailer, cfg Config, opts ...DispatcherOption) *Dispatcher {
	baseURL := ""
	if cfg != nil {
		baseURL = cfg.GetBaseURL()
	}
	return NewDispatcher(mailer, baseURL, opts...)
}

// SendVerification delivers the account verification link
func (d *Dispatcher) SendVerification(user *User, token string) {
	link := d.baseURL + "/auth/confirm/" + token

	d.dispatch("verification_email", Email{
		To:      user.Email,
		ToName:  user.Name,
		Subject: "Please verify your account to proceed",
		Plain: fmt.Sprintf(
			"Hello %s,\n\nwelcome aboard! Please verify your account by visiting the link below:\n\n%s\n\nThe link is valid for 24 hours.\n",
			user.Name, link,
		),
		HTML: fmt.Sprintf(
			`<p>Hello %s,</p><p>welcome aboard! Please <a href="%s">verify your account</a> to proceed. The link is valid for 24 hours.</p>`,
			user.Name, link,
		),
	})
}

// SendPasswordReset delivers the password reset link
func (d *Dispatcher) SendPasswordReset(user *User, token string) {
	link := d.baseURL + "/auth/reset-password/" + token

	d.dispatch("password_reset_email", Email{
		To:      user.Email,
		ToName:  user.Name,
		Subject: "Password reset requested for your account",
		Plain: fmt.Sprintf(
			"Hello %s,\n\na password reset was requested for your account. You can choose a new password by visiting the link below:\n\n%s\n\nThe link is valid for 24 hours. If you did not request this, you can safely ignore this message.\n",
			user.Name, link,
		),
		HTML: fmt.Sprintf(
			`<p>Hello %s,</p><p>a password reset was requested for your account. You can <a href="%s">choose a new password here</a>. The link is valid for 24 hours.</p><p>If you did not request this, you can safely ignore this message.</p>`,
			user.Name, link,
		),
	})
}

// SendPasswordChanged delivers the post-reset notice
func (d *Dispatcher) SendPasswordChanged(user *User) {
	d.dispatch("password_changed_email", Email{
		To:      user.Email,
		ToName:  user.Name,
		Subject: "Your password was reset recently",
		Plain: fmt.Sprintf(
			"Hello %s,\n\nyour password was reset recently. All previous sessions have been signed out. If this was not you, please contact support immediately.\n",
			user.Name,
		),
		HTML: fmt.Sprintf(
			`<p>Hello %s,</p><p>your password was reset recently. All previous sessions have been signed out.</p><p>If this was not you, please contact support immediately.</p>`,
			user.Name,
		),
	})
}

func (d *Dispatcher) dispatch(name string, email Email) {
	if d.mailer == nil {
		d.report(name, nil)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := d.mailer.Send(ctx, email)
		if err != nil {
			d.logger.Error("%s delivery to %s failed: %v", name, email.To, err)
		} else {
			d.logger.Debug("%s delivered to %s", name, email.To)
		}

		d.report(name, err)
	}()
}

func (d *Dispatcher) report(name string, err error) {
	if d.Tasks == nil {
		return
	}

	select {
	case d.Tasks <- TaskReport{Name: name, Error: err}:
	default:
	}
}
