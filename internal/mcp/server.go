// Package mcp exposes the option pipeline and process runs as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"orchestrator-runner/internal/services"
	"orchestrator-runner/pkg/models"
)

// SessionFactory opens the services for one tool call.
type SessionFactory interface {
	Session(ctx context.Context) (*services.Session, error)
}

type Server struct {
	mcpServer *server.MCPServer
	sessions  SessionFactory
}

func NewServer(sessions SessionFactory, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Orchestrator Runner",
			version,
			server.WithToolCapabilities(true),
		),
		sessions: sessions,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	folderID := mcp.WithNumber("folder_id", mcp.Required(), mcp.Description("Folder id as returned by list_folders"))
	process := mcp.WithString("process", mcp.Required(), mcp.Description("Process value as returned by list_processes"))

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_folders",
			mcp.WithDescription("List the orchestrator folders"),
		),
		s.handleListFolders,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_processes",
			mcp.WithDescription("List the processes deployed in a folder"),
			folderID,
		),
		s.handleListProcesses,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_entry_points",
			mcp.WithDescription("List the entry points of a process"),
			folderID,
			process,
		),
		s.handleListEntryPoints,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"resolve_default_arguments",
			mcp.WithDescription("Build the default input arguments of an entry point"),
			folderID,
			process,
			mcp.WithString("entry_point", mcp.Required(), mcp.Description("Entry point value as returned by list_entry_points")),
		),
		s.handleResolveDefaultArguments,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_releases",
			mcp.WithDescription("List releases, optionally narrowed to a folder or process key"),
			mcp.WithNumber("folder_id", mcp.Description("Folder id")),
			mcp.WithString("process_key", mcp.Description("Process key")),
			mcp.WithNumber("top", mcp.Description("Maximum number of releases, 50 by default")),
		),
		s.handleListReleases,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"run_process",
			mcp.WithDescription("Start a job for a process and wait for its output arguments"),
			folderID,
			process,
			mcp.WithString("entry_point", mcp.Description("Entry point value; its defaults are used when no input arguments are given")),
			mcp.WithString("input_arguments", mcp.Description("Input arguments as a JSON object")),
		),
		s.handleRunProcess,
	)
}

func (s *Server) handleListFolders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := s.sessions.Session(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list folders: %v", err)), nil
	}
	folders, err := session.Options.ListFolders(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list folders: %v", err)), nil
	}

	options := make([]models.Option, 0, len(folders))
	for _, f := range folders {
		options = append(options, f.Option())
	}
	return jsonResult(options), nil
}

func (s *Server) handleListProcesses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}
	folderID, ok := intArg(args, "folder_id")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: folder_id"), nil
	}

	session, err := s.sessions.Session(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list processes: %v", err)), nil
	}
	processes, err := session.Options.ListProcesses(ctx, folderID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list processes: %v", err)), nil
	}

	options := make([]models.Option, 0, len(processes))
	for _, p := range processes {
		options = append(options, p.Option())
	}
	return jsonResult(options), nil
}

func (s *Server) handleListEntryPoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}
	folderID, ref, errResult := folderAndProcess(args)
	if errResult != nil {
		return errResult, nil
	}

	session, err := s.sessions.Session(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list entry points: %v", err)), nil
	}
	eps, err := session.Options.ListEntryPoints(ctx, ref, folderID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list entry points: %v", err)), nil
	}

	options := make([]models.Option, 0, len(eps))
	for _, ep := range eps {
		options = append(options, ep.Option())
	}
	return jsonResult(options), nil
}

func (s *Server) handleResolveDefaultArguments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}
	folderID, ref, errResult := folderAndProcess(args)
	if errResult != nil {
		return errResult, nil
	}
	token, ok := args["entry_point"].(string)
	if !ok || token == "" {
		return mcp.NewToolResultError("Missing required parameter: entry_point"), nil
	}
	ep, err := models.ParseEntryPointRef(token)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid entry_point: %v", err)), nil
	}

	session, err := s.sessions.Session(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve default arguments: %v", err)), nil
	}
	defaults, err := session.Options.ResolveDefaultArguments(ctx, ref, folderID, ep)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve default arguments: %v", err)), nil
	}
	return mcp.NewToolResultText(string(defaults)), nil
}

func (s *Server) handleListReleases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}
	var filter models.ReleaseFilter
	if id, ok := intArg(args, "folder_id"); ok {
		filter.FolderID = id
	}
	if top, ok := intArg(args, "top"); ok {
		filter.Top = int(top)
	}
	filter.ProcessKey, _ = args["process_key"].(string)

	session, err := s.sessions.Session(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list releases: %v", err)), nil
	}
	releases, err := session.Options.ListReleases(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list releases: %v", err)), nil
	}
	return jsonResult(releases), nil
}

func (s *Server) handleRunProcess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}
	folderID, ref, errResult := folderAndProcess(args)
	if errResult != nil {
		return errResult, nil
	}
	req := services.RunRequest{FolderID: folderID, Process: ref}
	if token, _ := args["entry_point"].(string); token != "" {
		ep, err := models.ParseEntryPointRef(token)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid entry_point: %v", err)), nil
		}
		req.EntryPoint = &ep
	}
	if raw, _ := args["input_arguments"].(string); raw != "" {
		req.InputArguments = json.RawMessage(raw)
	}

	session, err := s.sessions.Session(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to run process: %v", err)), nil
	}
	out, err := session.Runner.Run(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to run process: %v", err)), nil
	}
	if len(out) == 0 {
		return mcp.NewToolResultText("null"), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func folderAndProcess(args map[string]interface{}) (int64, models.ProcessRef, *mcp.CallToolResult) {
	folderID, ok := intArg(args, "folder_id")
	if !ok {
		return 0, models.ProcessRef{}, mcp.NewToolResultError("Missing required parameter: folder_id")
	}
	token, ok := args["process"].(string)
	if !ok || token == "" {
		return 0, models.ProcessRef{}, mcp.NewToolResultError("Missing required parameter: process")
	}
	ref, err := models.ParseProcessRef(token)
	if err != nil {
		return 0, models.ProcessRef{}, mcp.NewToolResultError(fmt.Sprintf("Invalid process: %v", err))
	}
	return folderID, ref, nil
}

// intArg reads a whole number that JSON decoding delivered as float64.
func intArg(args map[string]interface{}, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(jsonBytes))
}

// MountHTTPHandlers serves the SSE transport under /mcp.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}

// ServeStdio serves the tools over standard input and output.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
