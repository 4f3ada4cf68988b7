package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/afero"

	"github.com/DeusData/gradle-model-mcp/internal/buildmodel"
	"github.com/DeusData/gradle-model-mcp/internal/store"
)

// DefaultMaxContexts bounds the number of builds kept parsed in memory.
const DefaultMaxContexts = 8

// Options configures the tool server.
type Options struct {
	Version     string
	MaxContexts int
}

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp   *mcp.Server
	store *store.Store
	fs    afero.Fs

	// contexts caches one parsed build per project root; evicted contexts
	// are closed.
	contexts *lru.Cache[string, *buildmodel.Context]
	// indexMu serializes indexing between tool calls and the watcher.
	indexMu sync.Mutex
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(s *store.Store, fs afero.Fs, opts Options) (*Server, error) {
	if opts.MaxContexts <= 0 {
		opts.MaxContexts = DefaultMaxContexts
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	cache, err := lru.NewWithEvict[string, *buildmodel.Context](opts.MaxContexts, func(root string, c *buildmodel.Context) {
		slog.Debug("tools.context.evict", "root", root)
		c.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("context cache: %w", err)
	}
	srv := &Server{
		store:    s,
		fs:       fs,
		contexts: cache,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "gradle-model-mcp",
				Version: opts.Version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Close releases every cached build context.
func (s *Server) Close() {
	s.contexts.Purge()
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_project",
		Description: "Index the Gradle builds found under a directory. Parses settings, build scripts and gradle.properties, and stores every module with its plugins, repositories and dependencies. Unchanged builds are skipped via content hashing.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "Absolute path to a Gradle build root, or to a directory containing several builds"
				},
				"force": {
					"type": "boolean",
					"description": "Reindex even when no file changed (default false)"
				}
			},
			"required": ["path"]
		}`),
	}, s.handleIndexProject)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_projects",
		Description: "List all indexed Gradle builds with their root path, root project name, indexed_at timestamp and module count.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListProjects)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "delete_project",
		Description: "Remove an indexed build and all its module records from the index. Build files on disk are not touched.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Name of the indexed project"}
			},
			"required": ["project"]
		}`),
	}, s.handleDeleteProject)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_modules",
		Description: "List the modules of an indexed build with their directory, build file and script language.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Name of the indexed project"}
			},
			"required": ["project"]
		}`),
	}, s.handleListModules)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_dependents",
		Description: "Find the modules that depend on an artifact (group:name) or apply a plugin id, using the index.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Name of the indexed project"},
				"artifact": {"type": "string", "description": "Artifact as group:name, e.g. 'com.google.guava:guava'"},
				"plugin_id": {"type": "string", "description": "Plugin id, e.g. 'com.android.application'"}
			},
			"required": ["project"]
		}`),
	}, s.handleFindDependents)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_build_model",
		Description: "Parse a module's build file live and return its plugins, repositories, dependencies, ext properties and android settings, resolved across gradle.properties, parent modules and the version catalog.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Name of the indexed project"},
				"module": {"type": "string", "description": "Module path such as ':app' (default ':')"}
			},
			"required": ["project"]
		}`),
	}, s.handleGetBuildModel)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "resolve_property",
		Description: "Resolve a property the way a Gradle script sees it: local ext/extra blocks, then gradle.properties, then parent modules. Returns the value and whether it resolved fully.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Name of the indexed project"},
				"module": {"type": "string", "description": "Module path such as ':app' (default ':')"},
				"name": {"type": "string", "description": "Property name, e.g. 'kotlinVersion' or 'rootProject.ext.sdk'"}
			},
			"required": ["project", "name"]
		}`),
	}, s.handleResolveProperty)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "apply_plugin",
		Description: "Apply a plugin to a module's build file. Adds an entry to plugins{} (or an apply statement when the file only uses apply). A plugin that is already applied leaves the file unchanged.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Name of the indexed project"},
				"module": {"type": "string", "description": "Module path such as ':app' (default ':')"},
				"plugin_id": {"type": "string", "description": "Plugin id, e.g. 'org.jetbrains.kotlin.android'"},
				"dry_run": {"type": "boolean", "description": "Return the edited text without writing it (default false)"}
			},
			"required": ["project", "plugin_id"]
		}`),
	}, s.handleApplyPlugin)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "add_repository",
		Description: "Add a repository to a module's repositories{} block: a default shortcut (google, mavenCentral, mavenLocal, jcenter, gradlePluginPortal) or a maven{} repository by URL.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Name of the indexed project"},
				"module": {"type": "string", "description": "Module path such as ':app' (default ':')"},
				"method": {"type": "string", "description": "Shortcut method name, e.g. 'google'"},
				"url": {"type": "string", "description": "Maven repository URL (used when method is empty)"},
				"buildscript": {"type": "boolean", "description": "Edit buildscript{} repositories instead (default false)"},
				"dry_run": {"type": "boolean", "description": "Return the edited text without writing it (default false)"}
			},
			"required": ["project"]
		}`),
	}, s.handleAddRepository)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "add_dependency",
		Description: "Add a dependency to a module's dependencies{} block: an artifact in group:name:version notation or another module of the build.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {"type": "string", "description": "Name of the indexed project"},
				"module": {"type": "string", "description": "Module path such as ':app' (default ':')"},
				"configuration": {"type": "string", "description": "Configuration name, e.g. 'implementation'"},
				"artifact": {"type": "string", "description": "Artifact notation group:name[:version]"},
				"module_dependency": {"type": "string", "description": "Module path to depend on, e.g. ':lib' (used when artifact is empty)"},
				"buildscript": {"type": "boolean", "description": "Edit buildscript{} dependencies instead (default false)"},
				"dry_run": {"type": "boolean", "description": "Return the edited text without writing it (default false)"}
			},
			"required": ["project", "configuration"]
		}`),
	}, s.handleAddDependency)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// getBoolArg extracts a boolean argument from parsed args.
func getBoolArg(args map[string]any, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		return false
	}
	return b
}

// moduleArg returns the "module" argument normalized, ":" when absent.
func moduleArg(args map[string]any) string {
	m := getStringArg(args, "module")
	if m == "" {
		return ":"
	}
	return buildmodel.NormalizeModulePath(m)
}

// project looks up an indexed project by the "project" argument.
func (s *Server) project(args map[string]any) (*store.Project, *mcp.CallToolResult) {
	name := getStringArg(args, "project")
	if name == "" {
		return nil, errResult("project is required")
	}
	proj, err := s.store.GetProject(name)
	if err != nil {
		return nil, errResult(fmt.Sprintf("project not found: %s (run index_project first)", name))
	}
	return proj, nil
}

// buildContext returns the cached parsed build rooted at root.
func (s *Server) buildContext(root string) *buildmodel.Context {
	if c, ok := s.contexts.Get(root); ok {
		return c
	}
	c := buildmodel.NewContext(s.fs, root)
	if prev, ok, _ := s.contexts.PeekOrAdd(root, c); ok {
		c.Close()
		return prev
	}
	return c
}

// dropContext discards the parsed build so the next call rereads disk.
func (s *Server) dropContext(root string) {
	s.contexts.Remove(root)
}

// withBuild runs fn against the parsed build rooted at root. When a
// reindex or an eviction closed the context before fn got its lock, fn is
// run once more against a fresh context.
func (s *Server) withBuild(root string, fn func(bc *buildmodel.Context) error) error {
	bc := s.buildContext(root)
	err := fn(bc)
	if !errors.Is(err, buildmodel.ErrClosed) {
		return err
	}
	if c, ok := s.contexts.Peek(root); ok && c == bc {
		s.contexts.Remove(root)
	}
	slog.Debug("tools.context.retry", "root", root)
	return fn(s.buildContext(root))
}
