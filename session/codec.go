package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Fields accepted when decoding a record. The backend has shipped several response
// shapes over time; the first key present wins.
var (
	roleIDKeys   = []string{"roleid", "roleId"}
	usernameKeys = []string{"username", "userName"}
	tokenKeys    = []string{"jwtToken", "token"}
	userTypeKeys = []string{"userType"}

	permissionKeys = []string{"resourcePermission", "resourcesAccess"}
)

const nestedDetailsKey = "userSessionDetails"

// EncodeRecord serializes r for storage under [KeyUserDetails].
func EncodeRecord(r *Record) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: nil record", ErrRecordCorrupt)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeRecord parses a stored record. Malformed input returns an error wrapping
// [ErrRecordCorrupt]; a JSON null decodes to an empty, unauthenticated record.
func DecodeRecord(value string) (*Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(value), &r); err != nil {
		if errors.Is(err, ErrRecordCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	return &r, nil
}

// EncodePermissions serializes p for storage under [KeyResourcesAccess].
func EncodePermissions(p PermissionList) (string, error) {
	if p == nil {
		p = PermissionList{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodePermissions parses a stored permission list. A JSON null decodes to an empty list.
func DecodePermissions(value string) (PermissionList, error) {
	var p PermissionList
	if err := json.Unmarshal([]byte(value), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if p == nil {
		p = PermissionList{}
	}
	return p, nil
}

// DecodeLoginRecord builds a [Record] from a sign-in response body. Top-level keys take
// precedence; missing ones fall back to the nested userSessionDetails object.
func DecodeLoginRecord(body []byte) (*Record, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}

	var nested map[string]json.RawMessage
	if raw, ok := top[nestedDetailsKey]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRecordCorrupt, nestedDetailsKey, err)
		}
	}

	return recordFromFields(top, nested)
}

// DecodeLoginPermissions extracts the optional permission list from a sign-in response
// body. ok is false when the response carries no list.
func DecodeLoginPermissions(body []byte) (PermissionList, bool, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	raw, ok := lookup(top, permissionKeys)
	if !ok {
		return nil, false, nil
	}
	var p PermissionList
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("%w: permissions: %v", ErrRecordCorrupt, err)
	}
	return p, true, nil
}

// UnmarshalJSON decodes a record tolerantly: numeric fields may arrive as numbers,
// numeric strings or null, and "token" is accepted for "jwtToken".
func (r *Record) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*r = Record{}
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	decoded, err := recordFromFields(fields, nil)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

func recordFromFields(primary, fallback map[string]json.RawMessage) (*Record, error) {
	r := &Record{}

	if raw, ok := lookupEither(primary, fallback, roleIDKeys); ok {
		v, err := flexInt(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: roleid: %v", ErrRecordCorrupt, err)
		}
		r.RoleID = v
	}
	if raw, ok := lookupEither(primary, fallback, usernameKeys); ok {
		v, err := flexString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: username: %v", ErrRecordCorrupt, err)
		}
		r.Username = v
	}
	// The token is never read from the nested object; the backend only issues it at the top level.
	if raw, ok := lookup(primary, tokenKeys); ok {
		v, err := flexString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: token: %v", ErrRecordCorrupt, err)
		}
		r.Token = v
	}
	if raw, ok := lookupEither(primary, fallback, userTypeKeys); ok {
		v, err := flexInt(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: userType: %v", ErrRecordCorrupt, err)
		}
		r.UserType = UserType(v)
	}

	return r, nil
}

func lookupEither(primary, fallback map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	if raw, ok := lookup(primary, keys); ok {
		return raw, true
	}
	return lookup(fallback, keys)
}

func lookup(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, key := range keys {
		raw, ok := fields[key]
		if ok && !isNull(raw) {
			return raw, true
		}
	}
	return nil, false
}

func isNull(raw []byte) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func flexInt(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

func flexString(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", err
	}

	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("unexpected %T", v)
	}
}
