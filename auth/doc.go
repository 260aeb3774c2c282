// Package auth holds the contract shared by the bearer authentication schemes
// in this module: the Scheme interface, the Result a scheme produces, the
// Identity and Ticket built on success, and the HTTP challenge helpers used by
// the middleware.
//
// A Scheme never raises an ordinary authentication failure as an error.
// Missing or malformed credentials and negative answers from the identity
// provider come back as a failed Result carrying a stable FailureCode and a
// short reason:
//
//	res, err := scheme.Authenticate(r)
//	if err != nil {
//	    // fault: protocol violation or hook error, respond 500
//	}
//	if !res.Succeeded() {
//	    ch := auth.ChallengeFor(realm, "", res.Failure())
//	    w.Header().Set("WWW-Authenticate", ch.WWWAuthenticate)
//	    w.WriteHeader(ch.Status)
//	    return
//	}
//	sub := res.Ticket().Identity.Subject()
//
// # Errors
//
// Every Failure unwraps to ErrUnauthorized. ErrProtocolViolation signals that
// the identity provider broke its contract; it is returned as the error of
// Authenticate and is deliberately loud.
package auth
