// Package auth implements the authentication and session-claim core for the
// Glyzier marketplace API: stateless JWT issuance and validation, bcrypt
// credential verification, identity loading with lifecycle gating, and the
// ordered route-authorization policy evaluated ahead of business handlers.
//
// Session tokens are self-contained (HMAC-SHA256 signed claims with subject
// and validity window) so request handling needs no shared session store.
// The request gate in middleware/jwtware resolves identity only; accept or
// deny is always the Policy's decision, which keeps both pieces testable in
// isolation.
//
// User lifecycle:
//   - Users carry a UserStatus persisted via Bun. A banned account never
//     authenticates, regardless of credential correctness, and the reason is
//     recorded internally without leaking to the caller.
//   - UserStateMachine centralizes the transition graph and timestamps.
//     Transitions require an ActorRef so admin actions stay attributable.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     state machine for login, impersonation, password reset, and lifecycle
//     events. Sinks run best-effort so auditing never blocks authentication.
package auth
