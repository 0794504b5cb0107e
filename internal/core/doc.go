// Package core provides the feed ingest pipeline.
//
// The package holds the domain logic independent of the store, the HTTP
// surface, or the CLI: the row parser, the validator, the pipeline driver
// and the interfaces its collaborators implement.
//
// # Pipeline
//
// A [Driver] processes one feed per [Driver.Run]:
//
//  1. The store is acquired through an [Acquirer] and released on every exit path
//  2. [Parser.Parse] reads the feed; a missing required column is a [FatalIngestError]
//  3. [Coerce] types each row and [Validator.Validate] classifies it
//  4. An optional [Enricher] rewrites title and description of accepted rows
//  5. Accepted and rejected records are written in input order
//
// Only a fatal ingest error or an unavailable store fails a run. Every other
// problem is captured as data: a [ValidationIssue] on a [RejectedRecord], a
// skipped enrichment, or an unpersisted count in the [Report].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError]:
//
//   - FEED001-FEED004: Feed structure (missing columns, empty, unreadable)
//   - FILE001-FILE002: File errors (size, missing upload)
//   - DB001-DB006: Store errors (duplicates, connections, not found)
//   - RUN001-RUN003: Run admission and request lifecycle
package core
