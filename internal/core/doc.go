// Package core provides the bulk import pipeline for tenant-scoped entities.
//
// This package contains all domain logic independent of any transport layer.
// It is used by the HTTP server, the importctl CLI and tests without modification.
//
// # Architecture
//
// An import runs in two phases with no session state between them:
//
//   - Preview: raw rows are validated against the kind's [Schema], checked for
//     keys repeated inside the file ([FindDuplicates]) and checked against the
//     store by the kind's business rules. [Assemble] folds the results into a
//     [PreviewResult] whose ValidData is the full committable set.
//   - Commit: the caller sends ValidData back and the [Executor] creates one
//     record per row. Each row is an independent unit of work; a failure never
//     rolls back rows created before it.
//
// # Entity Kinds
//
// Each kind (student, employee) is an [EntityImportProfile]: an immutable
// schema, the business key field, the store-backed rule check and a record
// builder. Profiles are collected in a [Registry] that is passed explicitly to
// [NewService].
//
//	registry := core.NewRegistry(profiles.NewStudent(), profiles.NewEmployee())
//	service, err := core.NewService(store, registry, core.Options{MaxRows: 5000})
//	preview, err := service.Preview(ctx, tenantID, "student", rows)
//	result, err := service.Commit(ctx, tenantID, "student", preview.ValidData, core.CommitOptions{})
//
// # Row Identity
//
// Every [ImportRow] receives a UUID when it is first parsed. Business rule
// errors and commit failures refer to rows by that ID, so filtering a slice
// between stages can never shift which row an error belongs to.
//
// # Error Handling
//
// Row problems found during preview are data, not Go errors: they are returned
// in [PreviewResult.Errors] with an [ErrorKind]. Go errors from Preview mean
// the store could not be queried. During commit, row failures are collected
// in [ImportResult.Errors]; with [CommitOptions.StopOnError] the first one is
// returned as a [*PersistenceError] together with the partial result.
//
// Technical errors are mapped to user-facing messages with [MapError]:
//
//   - IMP001-IMP099: Import errors (empty file, unknown kind, limits)
//   - DB001-DB099: Store errors (duplicates, connections, locks)
//   - FILE001-FILE099: File errors (size, format, encoding)
//   - REQ001-REQ099: Request errors (malformed body, cancelled, timeout)
package core
