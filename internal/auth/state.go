package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kmrl/opsboard/internal/shared"
)

// State is the sign-in state of a browser session.
type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "logged_in"
	}
	return "logged_out"
}

// ErrInvalidTransition is returned for Login while logged in and Logout while
// logged out.
var ErrInvalidTransition = errors.New("auth: invalid state transition")

// CredentialChecker guards the Login transition.
type CredentialChecker interface {
	CheckCredentials(ctx context.Context, email, password string) (*User, error)
}

// Session keys holding the login context.
const (
	sessionUserID = "auth.user_id"
	sessionEmail  = "auth.email"
	sessionName   = "auth.name"
	sessionSince  = "auth.since"
)

// Context is the login state of one session.
type Context struct {
	state  State
	userID string
	email  string
	name   string
	since  time.Time
}

// State returns the current state.
func (c *Context) State() State { return c.state }

// LoggedIn reports whether the state is LoggedIn.
func (c *Context) LoggedIn() bool { return c != nil && c.state == LoggedIn }

// UserID returns the signed-in user, empty when logged out.
func (c *Context) UserID() string { return c.userID }

// Email returns the signed-in email.
func (c *Context) Email() string { return c.email }

// DisplayName returns the name shown in the header.
func (c *Context) DisplayName() string {
	if c.name != "" {
		return c.name
	}
	return c.email
}

// Since returns the login time.
func (c *Context) Since() time.Time { return c.since }

// Login moves LoggedOut to LoggedIn when checker accepts the credentials.
// The state is unchanged on any error.
func (c *Context) Login(ctx context.Context, checker CredentialChecker, email, password string, now time.Time) error {
	if c.state != LoggedOut {
		return fmt.Errorf("%w: already logged in", ErrInvalidTransition)
	}
	user, err := checker.CheckCredentials(ctx, email, password)
	if err != nil {
		return err
	}
	c.state = LoggedIn
	c.userID = user.ID
	c.email = user.Email
	c.name = user.Name
	c.since = now.UTC()
	return nil
}

// Logout moves LoggedIn to LoggedOut.
func (c *Context) Logout() error {
	if c.state != LoggedIn {
		return fmt.Errorf("%w: not logged in", ErrInvalidTransition)
	}
	*c = Context{}
	return nil
}

// FromSession restores the login context stored in sess.
func FromSession(sess *shared.Session) *Context {
	c := &Context{}
	if sess == nil {
		return c
	}
	id := sess.Get(sessionUserID)
	if id == "" {
		return c
	}
	c.state = LoggedIn
	c.userID = id
	c.email = sess.Get(sessionEmail)
	c.name = sess.Get(sessionName)
	if ts, err := time.Parse(time.RFC3339, sess.Get(sessionSince)); err == nil {
		c.since = ts
	}
	return c
}

// Save writes the context into sess.
func (c *Context) Save(sess *shared.Session) {
	if sess == nil {
		return
	}
	if c.state != LoggedIn {
		for _, k := range []string{sessionUserID, sessionEmail, sessionName, sessionSince} {
			sess.Delete(k)
		}
		return
	}
	sess.Set(sessionUserID, c.userID)
	sess.Set(sessionEmail, c.email)
	sess.Set(sessionName, c.name)
	sess.Set(sessionSince, c.since.Format(time.RFC3339))
}

type contextKey struct{}

// WithContext stores c in ctx.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the login context of the request, LoggedOut when none
// was attached.
func FromContext(ctx context.Context) *Context {
	if c, ok := ctx.Value(contextKey{}).(*Context); ok && c != nil {
		return c
	}
	return &Context{}
}
