// Package auth provides stateful JWT authentication: signed session tokens
// whose validity is also bound to a server side list of live sessions, plus
// single use tokens for account confirmation, password reset and
// invitations.
//
// Session tokens:
//   - Codec signs and verifies tokens with one configured key (HS*, RS*, ES*
//     or EdDSA). The identity payload lives under Config.Namespace and holds
//     the user id and a session token id.
//   - SessionStore keeps at most Config.SimultaneousSessions session ids per
//     user. Issuing past the limit evicts the oldest ids, so their JWTs stop
//     authenticating even though the signature is still valid.
//   - Gate turns a bearer token into a *User. Every kind of rejection is
//     reported as ErrUnauthorized.
//
// Lifecycle tokens:
//   - LifecycleEngine stores one pending token per kind on the user record
//     together with its send time, and consumes it at most once.
//
// Storage is pluggable through UserRepository and SessionTokenRepository.
// The memstore, repository (bun) and redisstore packages implement them;
// fiberauth exposes the service over HTTP.
package auth
