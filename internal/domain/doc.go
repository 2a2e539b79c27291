// Package domain defines the core record types for the campaign insights
// analytics service.
//
// Types in this package are pure value objects with no behavior beyond
// derived-ratio helpers, no database dependencies, and no HTTP concerns.
// They are the shared language between ingestion, storage, analyzers, and
// handlers.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Ratio helpers must guard division by zero (rates on zero sends are 0)
package domain
