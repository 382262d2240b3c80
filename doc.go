// Package custody implements the identity and credential lifecycle of a
// custodial wallet backend (password hashing, purpose bound JWTs, request
// authentication, email and password workflows, permission gates) plus the
// wallet operations that depend on it.
//
// Tokens:
//   - TokenService signs one token per Purpose. Access, refresh, email
//     verification and password reset tokens each have their own key and TTL,
//     and a token minted for one purpose never parses as another. exp, iat and
//     mode are owned by the service and cannot be set by callers.
//
// Identity resolution:
//   - Auther resolves a bearer token into a *User by reading the users table on
//     every call. Expired tokens surface as ErrTokenExpired (403), every other
//     failure as ErrUnauthorized (401).
//
// Workflows:
//   - Command handlers follow the Execute(ctx, message) shape. Email flows only
//     publish a MailMessage through a MailDispatcher and never wait for the
//     mail to be delivered.
//
// Activity sinks:
//   - ActivitySink receives audit events from the guard, the workflows and the
//     wallet service. Sinks run best-effort, errors are logged.
package custody
