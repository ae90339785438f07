package utsavAuth

import (
	"context"
	"encoding/json"
	"io"

	"github.com/sanghutsav/utsavAuth/session"
)

// Credentials are submitted to the sign-in endpoint. An empty Password is replaced by
// the Username, matching accounts registered with mobile-number-only sign-in.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginOutcome classifies a login attempt.
type LoginOutcome int

const (
	// LoginOK means the backend accepted the credentials and the session was stored.
	LoginOK LoginOutcome = iota
	// LoginRejected means a response arrived with a non-success status. Nothing was stored.
	LoginRejected
	// LoginTransportError means no usable response was obtained.
	LoginTransportError
	// LoginStorageError means the backend accepted the login but persisting it failed.
	LoginStorageError
)

func (o LoginOutcome) String() string {
	switch o {
	case LoginOK:
		return "ok"
	case LoginRejected:
		return "rejected"
	case LoginTransportError:
		return "transport_error"
	case LoginStorageError:
		return "storage_error"
	default:
		return "unknown"
	}
}

// LoginResult is the tagged result of [Service.Login].
type LoginResult struct {
	Outcome LoginOutcome

	// StatusCode is the backend's statusCode field, or the HTTP status when absent.
	StatusCode string
	// Message is the backend's human-readable message, if any.
	Message string
	// Raw is the decoded response body for callers that branch on extra fields.
	Raw map[string]json.RawMessage

	// Session and Permissions are set when Outcome is LoginOK.
	Session     *session.Record
	Permissions session.PermissionList
}

// OK reports whether the login succeeded and was stored.
func (r LoginResult) OK() bool {
	return r.Outcome == LoginOK
}

// LogoutResult reports whether logout fully cleared stored state. Navigation to the
// login route happens either way.
type LogoutResult struct {
	Cleared bool
	Err     error
}

// FileAttachment is one uploaded file in a registration form.
type FileAttachment struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

// RegistrationForm is the multipart payload for account creation. Fields are sent in
// order; the backend expects e.g. "users" as a JSON array and "idProofFiles[i]" files.
type RegistrationForm struct {
	Fields []FormField
	Files  []FileAttachment
}

// FormField is one plain value of a [RegistrationForm].
type FormField struct {
	Name  string
	Value string
}

// Add appends a plain field and returns the form for chaining.
func (f *RegistrationForm) Add(name, value string) *RegistrationForm {
	f.Fields = append(f.Fields, FormField{Name: name, Value: value})
	return f
}

// Attach appends a file and returns the form for chaining.
func (f *RegistrationForm) Attach(field, filename, contentType string, content io.Reader) *RegistrationForm {
	f.Files = append(f.Files, FileAttachment{Field: field, Filename: filename, ContentType: contentType, Content: content})
	return f
}

// PersonalInfo is the registration profile held by the backend.
type PersonalInfo struct {
	UserID         string         `json:"userid"`
	FirstName      string         `json:"firstName"`
	MiddleName     string         `json:"middleName"`
	LastName       string         `json:"lastName"`
	Gender         string         `json:"gender"`
	DateOfBirth    string         `json:"dateOfBirth,omitempty"`
	StrDateOfBirth string         `json:"strDateOfBirth,omitempty"`
	Address        string         `json:"address"`
	City           string         `json:"city"`
	State          string         `json:"state"`
	PinCode        string         `json:"pinCode"`
	MobileNumber   string         `json:"mobileNumber"`
	Email          string         `json:"email"`
	CorpoName      string         `json:"corpoName"`
	Branch         string         `json:"branch"`
	LandlineNumber string         `json:"landlineNumber"`
	UserType       int            `json:"userType"`
	Name           string         `json:"name"`
	Mobile         string         `json:"mobile"`
	TentNumber     string         `json:"tentNumber"`
	UserInfo       []PersonalInfo `json:"userInfo,omitempty"`
}

// Navigator moves the application to a route, e.g. "login".
type Navigator interface {
	Navigate(ctx context.Context, route string) error
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context, route string) error

func (f NavigatorFunc) Navigate(ctx context.Context, route string) error {
	return f(ctx, route)
}

type noopNavigator struct{}

func (noopNavigator) Navigate(context.Context, string) error { return nil }
