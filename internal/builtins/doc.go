// Package builtins provides the Google Workspace tool packs advertised by the gateway.
//
// # Overview
//
// The gateway does not execute Workspace operations itself. Every tool here
// declares a realistic input schema so MCP clients can discover it, and every
// handler answers with a text result telling the caller to authorize first.
//
// # Packs
//
//	workspace:gmail    - gmail_search, gmail_read, gmail_send
//	workspace:calendar - calendar_list_events, calendar_create_event
//	workspace:drive    - drive_search, drive_read_file
//	workspace:docs     - docs_get, docs_create
//	workspace:sheets   - sheets_read_range, sheets_write_range
//	workspace:tasks    - tasks_list, tasks_create
package builtins
