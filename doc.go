// Package auth implements token based authentication and account
// confirmation workflows on top of Bun repositories.
//
// Tokens:
//   - Sessions and confirmations share one token shape, a random identifier
//     and a random verifier joined by a dot. The identifier locates the
//     record, the verifier is never stored, only its SHA-256 digest. A
//     leaked database therefore cannot be replayed as live tokens.
//   - Sessions live for 30 days with sliding expiration. Confirmations are
//     single use, typed by action (account verification or password reset),
//     and expire after 24 hours. Spent or invalidated tokens are deleted.
//
// Workflows:
//   - Command handlers (RegisterUserHandler, ConfirmAccountHandler, the
//     password reset trio, VerificationRequestHandler) run inside a single
//     transaction each and report through OnResponse callbacks. Emails go
//     out after commit through the background Dispatcher.
//   - Auther owns login and logout. Guard resolves the requesting user from
//     the Authorization header or session cookie for fiber handlers.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     command handlers to describe login, registration, verification, and
//     password reset events. Sinks run best-effort (errors are logged) so
//     you can forward to a database or queue without blocking.
package auth
