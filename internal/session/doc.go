// Package session owns the per-system HTTP session used to talk to the
// backend systems: a cookie jar that remembers every cookie it is handed, a
// small authentication state machine, and JSON cookie persistence so a later
// run can skip the login when the backend still honors the cookies.
//
// Backend packages embed *Session and add Login and CheckValidity to satisfy
// Authenticator; EnsureLogin drives the restore, validity check, and login sequence.
package session
