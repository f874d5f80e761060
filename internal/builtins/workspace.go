// ABOUTME: Google Workspace tool packs with declared input schemas.
// ABOUTME: Handlers report that authorization is required, since execution happens upstream.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/workspace-gateway/internal/packs"
)

// AuthorizationRequiredText is the result text returned by every Workspace tool.
func AuthorizationRequiredText(toolName, authorizeURL string) string {
	return fmt.Sprintf("Authorization required: %s needs access to your Google Workspace account. Authorize this client at %s.",
		toolName, authorizeURL)
}

// requireAuthorization builds a handler that answers every call with the
// authorization notice. Arguments are ignored.
func requireAuthorization(toolName, authorizeURL string) packs.ToolHandler {
	text := AuthorizationRequiredText(toolName, authorizeURL)
	return func(_ context.Context, _ json.RawMessage) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(text)},
		}, nil
	}
}

func newTool(authorizeURL, name string, opts ...mcp.ToolOption) *packs.Tool {
	return &packs.Tool{
		Definition: mcp.NewTool(name, opts...),
		Handler:    requireAuthorization(name, authorizeURL),
	}
}

var stringItems = mcp.Items(map[string]any{"type": "string"})

// WorkspacePacks returns every Workspace pack in catalog order.
func WorkspacePacks(authorizeURL string) []*packs.Pack {
	return []*packs.Pack{
		GmailPack(authorizeURL),
		CalendarPack(authorizeURL),
		DrivePack(authorizeURL),
		DocsPack(authorizeURL),
		SheetsPack(authorizeURL),
		TasksPack(authorizeURL),
	}
}

// GmailPack creates the Gmail tools.
func GmailPack(authorizeURL string) *packs.Pack {
	return &packs.Pack{
		ID: "workspace:gmail",
		Tools: []*packs.Tool{
			newTool(authorizeURL, "gmail_search",
				mcp.WithDescription("Search Gmail messages using Gmail query syntax"),
				mcp.WithString("query", mcp.Required(), mcp.Description("Gmail search query, e.g. from:alice is:unread")),
				mcp.WithNumber("max_results", mcp.Description("Maximum messages to return"), mcp.Min(1), mcp.Max(100)),
			),
			newTool(authorizeURL, "gmail_read",
				mcp.WithDescription("Read a Gmail message by ID"),
				mcp.WithString("message_id", mcp.Required(), mcp.Description("Gmail message ID")),
			),
			newTool(authorizeURL, "gmail_send",
				mcp.WithDescription("Send an email from the authorized account"),
				mcp.WithArray("to", mcp.Required(), mcp.Description("Recipient addresses"), stringItems),
				mcp.WithString("subject", mcp.Required()),
				mcp.WithString("body", mcp.Required(), mcp.Description("Plain text body")),
			),
		},
	}
}

// CalendarPack creates the Calendar tools.
func CalendarPack(authorizeURL string) *packs.Pack {
	return &packs.Pack{
		ID: "workspace:calendar",
		Tools: []*packs.Tool{
			newTool(authorizeURL, "calendar_list_events",
				mcp.WithDescription("List calendar events in a time range"),
				mcp.WithString("calendar_id", mcp.Description("Calendar ID, defaults to primary")),
				mcp.WithString("time_min", mcp.Description("RFC 3339 lower bound")),
				mcp.WithString("time_max", mcp.Description("RFC 3339 upper bound")),
			),
			newTool(authorizeURL, "calendar_create_event",
				mcp.WithDescription("Create a calendar event"),
				mcp.WithString("summary", mcp.Required()),
				mcp.WithString("start", mcp.Required(), mcp.Description("RFC 3339 start time")),
				mcp.WithString("end", mcp.Required(), mcp.Description("RFC 3339 end time")),
				mcp.WithArray("attendees", mcp.Description("Attendee email addresses"), stringItems),
			),
		},
	}
}

// DrivePack creates the Drive tools.
func DrivePack(authorizeURL string) *packs.Pack {
	return &packs.Pack{
		ID: "workspace:drive",
		Tools: []*packs.Tool{
			newTool(authorizeURL, "drive_search",
				mcp.WithDescription("Search Drive files by name or content"),
				mcp.WithString("query", mcp.Required()),
				mcp.WithNumber("page_size", mcp.Min(1), mcp.Max(100)),
			),
			newTool(authorizeURL, "drive_read_file",
				mcp.WithDescription("Read the contents of a Drive file"),
				mcp.WithString("file_id", mcp.Required()),
			),
		},
	}
}

// DocsPack creates the Docs tools.
func DocsPack(authorizeURL string) *packs.Pack {
	return &packs.Pack{
		ID: "workspace:docs",
		Tools: []*packs.Tool{
			newTool(authorizeURL, "docs_get",
				mcp.WithDescription("Fetch a Google Doc as plain text"),
				mcp.WithString("document_id", mcp.Required()),
			),
			newTool(authorizeURL, "docs_create",
				mcp.WithDescription("Create a Google Doc"),
				mcp.WithString("title", mcp.Required()),
				mcp.WithString("content", mcp.Description("Initial body text")),
			),
		},
	}
}

// SheetsPack creates the Sheets tools.
func SheetsPack(authorizeURL string) *packs.Pack {
	return &packs.Pack{
		ID: "workspace:sheets",
		Tools: []*packs.Tool{
			newTool(authorizeURL, "sheets_read_range",
				mcp.WithDescription("Read a cell range from a spreadsheet"),
				mcp.WithString("spreadsheet_id", mcp.Required()),
				mcp.WithString("range", mcp.Required(), mcp.Description("A1 notation, e.g. Sheet1!A1:C10")),
			),
			newTool(authorizeURL, "sheets_write_range",
				mcp.WithDescription("Write rows into a cell range"),
				mcp.WithString("spreadsheet_id", mcp.Required()),
				mcp.WithString("range", mcp.Required()),
				mcp.WithArray("values", mcp.Required(), mcp.Description("Rows of cell values"),
					mcp.Items(map[string]any{"type": "array", "items": map[string]any{"type": "string"}})),
			),
		},
	}
}

// TasksPack creates the Tasks tools.
func TasksPack(authorizeURL string) *packs.Pack {
	return &packs.Pack{
		ID: "workspace:tasks",
		Tools: []*packs.Tool{
			newTool(authorizeURL, "tasks_list",
				mcp.WithDescription("List tasks in a task list"),
				mcp.WithString("tasklist_id", mcp.Description("Task list ID, defaults to the first list")),
				mcp.WithBoolean("show_completed"),
			),
			newTool(authorizeURL, "tasks_create",
				mcp.WithDescription("Create a task"),
				mcp.WithString("title", mcp.Required()),
				mcp.WithString("notes"),
				mcp.WithString("due", mcp.Description("RFC 3339 due date")),
			),
		},
	}
}
