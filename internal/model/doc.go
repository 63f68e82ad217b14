// Package model defines the task/project document that todosync persists
// locally and synchronizes with the remote document store.
//
// The Document is the sole unit of persistence and synchronization. It is a
// plain value: callers that hand a Document to another component pass a Clone
// so that no mutable alias is shared.
//
// Wire format
//
// Field names follow the JSON layout used by the web client and the remote
// store:
//
//	{
//	  "tasks": [{"id": 1, "title": "A", "desc": "", "priority": "low", ...}],
//	  "projects": [{"id": 2, "title": "P", "status": "not_started", "sortOrder": 0, ...}]
//	}
//
// Decoding is tolerant: missing optional fields receive defaults, the first
// entry of a "categories" array supplies a missing taskType, and unparseable
// timestamps decode as null rather than failing the whole document. Members
// this package does not model are carried in Extra and written back, so a
// round trip never loses data another client stored.
package model
