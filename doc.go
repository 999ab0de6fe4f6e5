// Package identity provides the identity and access verification core for a
// multi-tenant application: signed access/refresh token issuance and parsing,
// category-based authority grants, and single-use email verification
// handshakes gating registration, password changes, and admin onboarding.
//
// Token engine:
//   - TokenService mints access tokens (subject, authorities, tenancy, ACCESS
//     scope), refresh tokens (REFRESH_TOKEN scope, no authorities), and
//     short-lived temporary tokens used as the basis for verification hashes.
//     Parse surfaces typed errors (expired, malformed, bad signature,
//     unsupported, empty) while IsValid is a lenient boolean probe, so callers
//     can pick strict-fail or soft-check semantics per call site.
//
// Verification handshakes:
//   - VerificationService keeps at most one pending record per (email, type).
//     Send is get-or-create-then-renew, Retrieve double-checks that the hash
//     decodes to an email AND that the exact pending record exists, and Verify
//     consumes the record. Consuming an admin or organisation onboarding
//     verification chains into a CHANGE_PASSWORD handshake.
//
// Authority ledger:
//   - UserAuthorityService grants default authorities per category and applies
//     idempotent add/remove changes deduplicated by authority name and id.
//     Unknown names are dropped silently; the returned grant set is the
//     authoritative signal of what applied.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the authenticator,
//     the verification service, and the authority ledger. Sinks run
//     best-effort (errors are logged) so you can forward to a database or
//     queue without blocking authentication.
package identity
