package session

import "encoding/json"

// UserType classifies the account behind a session. Values the backend sends that are
// not named here are preserved as-is.
type UserType int

const (
	// UserTypeUnknown is used when the backend omits the classification.
	UserTypeUnknown UserType = iota
	// UserTypeIndividual is a self-registered pilgrim account.
	UserTypeIndividual
	// UserTypeCorporate is an account created under a corporate sponsor.
	UserTypeCorporate
	// UserTypeAdmin is an organiser account.
	UserTypeAdmin
)

// String returns a stable label for logs and CLI output.
func (t UserType) String() string {
	switch t {
	case UserTypeUnknown:
		return "unknown"
	case UserTypeIndividual:
		return "individual"
	case UserTypeCorporate:
		return "corporate"
	case UserTypeAdmin:
		return "admin"
	default:
		return "custom"
	}
}

// Record is one authenticated user's credentials and identity claims, exactly as it is
// persisted under [KeyUserDetails].
type Record struct {
	RoleID   int      `json:"roleid"`
	Username string   `json:"username"`
	Token    string   `json:"jwtToken"`
	UserType UserType `json:"userType"`
}

// Authenticated reports whether the record carries a bearer token. Token presence, not
// record presence, is what makes a session authenticated.
func (r *Record) Authenticated() bool {
	return r != nil && r.Token != ""
}

// Clone returns a copy that callers may mutate freely.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

// PermissionList is the ordered list of resource permissions granted to the session's
// role. Entry shape is defined by the backend and kept opaque here.
type PermissionList []json.RawMessage

// Clone returns a deep copy of the list.
func (p PermissionList) Clone() PermissionList {
	if p == nil {
		return nil
	}
	out := make(PermissionList, len(p))
	for i, entry := range p {
		out[i] = append(json.RawMessage(nil), entry...)
	}
	return out
}
