// Package jwt inspects bearer tokens issued by the registration backend. The client
// treats tokens as opaque; this package only reads the registered claims so callers can
// drop sessions whose token has visibly expired.
//
// Signature verification is optional and requires the backend's verification key.
// Without one, claims are read unverified and must never be used for authorization.
package jwt
