// Package api defines wire-format types, converters, and the WorkItemService
// that the HTTP layer and CLI share.
//
// # Key Types
//
// WorkItemService: ingest of workitem.updated notifications, work item
// detail, time-in-state, listing, and health.
//
// IngestResult, WorkItemSummary, WorkItemDetail, TimeInState: transport
// representations returned by the service.
//
// # Design Notes
//
// DTOs use snake_case JSON tags so responses match the field names existing
// consumers already read (devops_id, current_state, state_times_seconds).
// ExternalID renders canonical integers as JSON numbers and anything else as
// a string. Timestamps are RFC 3339 in UTC with full precision.
//
// Errors returned by the service carry the markers from internal/services so
// transports can map them without inspecting messages.
package api
