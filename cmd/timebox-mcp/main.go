// timebox-mcp exposes the plan store and the parking queue as MCP
// tools so agent frontends can plan and park without going through the
// conversational router.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/timebox/internal/app"
	"github.com/vthunder/timebox/internal/config"
	"github.com/vthunder/timebox/internal/parking"
	"github.com/vthunder/timebox/internal/plan"
)

var core *app.App

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	core, err = app.Build(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		os.Exit(1)
	}
	core.Start()
	defer core.Stop()

	s := server.NewMCPServer(
		"timebox-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(upsertTool(), handleUpsert)
	s.AddTool(rescheduleTool(), handleReschedule)
	s.AddTool(listTool(), handleList)
	s.AddTool(contextTool(), handleContext)
	s.AddTool(parkTool(), handlePark)
	s.AddTool(summaryTool(), handleSummary)
	s.AddTool(pendingTool(), handlePending)
	s.AddTool(journalTool(), handleJournal)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func upsertTool() mcp.Tool {
	return mcp.NewTool("plan_upsert",
		mcp.WithDescription("Add or update tasks on a daily plan. Existing tasks are matched by id (or title) and merged; new tasks are appended. The whole day is sorted by start time and mirrored to the calendar when one is configured."),
		mcp.WithString("tasks",
			mcp.Required(),
			mcp.Description(`JSON array of tasks: [{"id":"...","title":"...","start":"2026-01-15 09:00","end":"2026-01-15 10:00","type":"work","status":"pending"}]. Only title, start and end are required. Bare "HH:MM" times are resolved against the plan date.`),
		),
		mcp.WithString("date",
			mcp.Description("Plan date: YYYY-MM-DD, today, tomorrow or yesterday. Default: inferred from the tasks, else today."),
		),
	)
}

func handleUpsert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	tasksJSON, _ := args["tasks"].(string)
	date, _ := args["date"].(string)

	if strings.TrimSpace(tasksJSON) == "" {
		return mcp.NewToolResultError("tasks is required"), nil
	}

	var batch []plan.Task
	if err := json.Unmarshal([]byte(tasksJSON), &batch); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("tasks is not a JSON array: %v", err)), nil
	}

	result := core.Store.Upsert(batch, date)
	if !result.OK {
		return mcp.NewToolResultError(result.Message), nil
	}
	return mcp.NewToolResultText(result.Message), nil
}

func rescheduleTool() mcp.Tool {
	return mcp.NewTool("plan_reschedule",
		mcp.WithDescription("Move a task (matched by id or title) to a new time window, or insert it if absent. Overlapping tasks block the move unless force is true, in which case they are removed."),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("Task id or exact title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description(`New start time: "HH:MM" or "YYYY-MM-DD HH:MM"`),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description(`New end time: "HH:MM" or "YYYY-MM-DD HH:MM"`),
		),
		mcp.WithBoolean("force",
			mcp.Description("Remove conflicting tasks instead of refusing. Default: false"),
		),
		mcp.WithString("date",
			mcp.Description("Plan date. Default: inferred from the times, else today."),
		),
	)
}

func handleReschedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	task, _ := args["task"].(string)
	start, _ := args["start"].(string)
	end, _ := args["end"].(string)
	date, _ := args["date"].(string)
	force := false
	if f, ok := args["force"].(bool); ok {
		force = f
	}

	if task == "" || start == "" || end == "" {
		return mcp.NewToolResultError("task, start and end are required"), nil
	}

	result := core.Store.Reschedule(task, start, end, force, date)
	if !result.OK {
		return mcp.NewToolResultError(result.Message), nil
	}
	return mcp.NewToolResultText(result.Message), nil
}

func listTool() mcp.Tool {
	return mcp.NewTool("plan_list",
		mcp.WithDescription("List the plan for a date, ordered by start time."),
		mcp.WithString("date",
			mcp.Description("Plan date: YYYY-MM-DD, today, tomorrow or yesterday. Default: today."),
		),
	)
}

func handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	date, _ := args["date"].(string)

	result := core.Store.List(date)
	if !result.OK {
		return mcp.NewToolResultError(result.Message), nil
	}
	return mcp.NewToolResultText(result.Message), nil
}

func contextTool() mcp.Tool {
	return mcp.NewTool("plan_context",
		mcp.WithDescription("Current time plus the day's schedule, formatted for prompt injection."),
		mcp.WithString("date",
			mcp.Description("Plan date. Default: today."),
		),
	)
}

func handleContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	date, _ := args["date"].(string)
	return mcp.NewToolResultText(core.Store.CurrentContext(date)), nil
}

func parkTool() mcp.Tool {
	return mcp.NewTool("park_thought",
		mcp.WithDescription("Park a stray thought for later. Type search queues a background research job; memo and todo are just recorded."),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The thought to park"),
		),
		mcp.WithString("type",
			mcp.Description("search, memo or todo. Default: search."),
		),
	)
}

func handlePark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	content, _ := args["content"].(string)
	itemType, _ := args["type"].(string)

	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("content is required"), nil
	}

	ack := core.Parking.Dispatch(content, parking.Type(itemType), "mcp", true)
	return mcp.NewToolResultText(ack), nil
}

func summaryTool() mcp.Tool {
	return mcp.NewTool("parking_summary",
		mcp.WithDescription("Report on parked thoughts: completed research results, still-running jobs, failures and plain notes."),
		mcp.WithString("session",
			mcp.Description("Focus session id. Default: every parked item."),
		),
	)
}

func handleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	session, _ := args["session"].(string)
	return mcp.NewToolResultText(core.Parking.SessionSummary(session)), nil
}

func pendingTool() mcp.Tool {
	return mcp.NewTool("parking_pending",
		mcp.WithDescription("List parked thoughts that are still waiting to be processed."),
	)
}

func handlePending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(core.Parking.ListPending()), nil
}

func journalTool() mcp.Tool {
	return mcp.NewTool("journal_recent",
		mcp.WithDescription("Show the most recent routing and handler journal entries."),
		mcp.WithNumber("count",
			mcp.Description("How many entries to return. Default: 20."),
		),
	)
}

func handleJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	count := 20
	if n, ok := args["count"].(float64); ok && n > 0 {
		count = int(n)
	}

	entries, err := core.Journal.Recent(count)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read journal: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("The journal is empty."), nil
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %-8s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type)
		if e.Target != "" {
			fmt.Fprintf(&b, " target=%s", e.Target)
		}
		if e.Status != "" {
			fmt.Fprintf(&b, " status=%s", e.Status)
		}
		if e.Input != "" {
			fmt.Fprintf(&b, " input=%q", e.Input)
		}
		if e.Reason != "" {
			fmt.Fprintf(&b, " reason=%q", e.Reason)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
