// Package accounts implements the account lifecycle subsystem: reversible
// soft deletion, reactivation, and an append only audit trail, with read
// paths that consistently reflect lifecycle state.
//
// Lifecycle:
//   - Accounts carry an AccountStatus persisted via Bun. An account is never
//     physically deleted; deactivation mangles its identifiers so uniqueness
//     only ever binds active rows, and the Original* columns keep the true
//     values for restore and audit.
//   - LifecycleManager is the sole authority for status changes. Each
//     operation runs the compare-and-set state flip and its audit insert in
//     one transaction, so a transition that is not audited is never visible.
//     Invoke Deactivate/Reactivate with an explicit ActorRef; there is no
//     ambient request-scoped actor.
//
// Visibility:
//   - Visible/VisibleOnly centralize the read rule: default list and detail
//     paths never observe deactivated accounts. Admin surfaces opt in with
//     ListOptions.IncludeDeactivated.
//
// Audit:
//   - AuditEntries is append only. History returns per account entries in
//     timestamp order; ListRecent serves the admin trail. ActivitySink is a
//     best effort telemetry tap layered on top of the durable audit rows.
package accounts
