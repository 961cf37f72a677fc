// Package webhook turns Azure DevOps workitem.updated notifications into
// TransitionEvent values.
//
// Normalize is pure: it validates the payload structure against an embedded
// JSON Schema, extracts the state change, and canonicalizes every string
// (trimmed, Unicode NFC) so equivalent inputs share one dedup key downstream.
// Every rejection carries services.ErrValidation.
package webhook
