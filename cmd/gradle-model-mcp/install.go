package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const mcpServerKey = "gradle-model-mcp"

// editorConfig is an editor that lists MCP servers in a JSON file.
type editorConfig struct {
	name string
	path string // relative to the home directory
}

var editors = []editorConfig{
	{"Cursor", filepath.Join(".cursor", "mcp.json")},
	{"Windsurf", filepath.Join(".codeium", "windsurf", "mcp_config.json")},
}

func (a *app) installCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register the MCP server with Claude Code, Cursor and Windsurf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			binaryPath, err := detectBinaryPath()
			if err != nil {
				return err
			}
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("home dir: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gradle-model-mcp %s install\nBinary: %s\n\n", version, binaryPath)

			if claude, err := exec.LookPath("claude"); err == nil {
				fmt.Fprintf(out, "[Claude Code] detected (%s)\n", claude)
				runCLI(out, dryRun, claude, "mcp", "add", "--scope", "user", mcpServerKey, "--", binaryPath)
			} else {
				fmt.Fprintln(out, "[Claude Code] not found, skipping")
			}
			for _, e := range editors {
				p := filepath.Join(home, e.path)
				fmt.Fprintf(out, "[%s] MCP config: %s\n", e.name, p)
				if dryRun {
					fmt.Fprintf(out, "  [dry-run] would add %s\n", mcpServerKey)
					continue
				}
				if err := upsertEditorMCP(a.fs, p, binaryPath); err != nil {
					fmt.Fprintf(out, "  failed: %v\n", err)
					continue
				}
				fmt.Fprintln(out, "  registered")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without writing")
	return cmd
}

func (a *app) uninstallCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the MCP server registrations made by install",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("home dir: %w", err)
			}
			out := cmd.OutOrStdout()
			if claude, err := exec.LookPath("claude"); err == nil {
				runCLI(out, dryRun, claude, "mcp", "remove", "--scope", "user", mcpServerKey)
			}
			for _, e := range editors {
				p := filepath.Join(home, e.path)
				if dryRun {
					fmt.Fprintf(out, "[%s] [dry-run] would remove %s from %s\n", e.name, mcpServerKey, p)
					continue
				}
				removed, err := removeEditorMCP(a.fs, p)
				switch {
				case err != nil:
					fmt.Fprintf(out, "[%s] failed: %v\n", e.name, err)
				case removed:
					fmt.Fprintf(out, "[%s] removed %s from %s\n", e.name, mcpServerKey, p)
				}
			}
			fmt.Fprintln(out, "Index databases were not removed.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without writing")
	return cmd
}

// detectBinaryPath resolves the current binary's real path.
func detectBinaryPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("detect binary: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve symlink: %w", err)
	}
	return resolved, nil
}

func runCLI(out io.Writer, dryRun bool, path string, args ...string) {
	if dryRun {
		fmt.Fprintf(out, "  [dry-run] would run: %s %v\n", filepath.Base(path), args)
		return
	}
	if b, err := exec.Command(path, args...).CombinedOutput(); err != nil {
		fmt.Fprintf(out, "  failed: %v %s\n", err, b)
		return
	}
	fmt.Fprintln(out, "  done")
}

// readMCPConfig loads an editor config. A missing or invalid file yields
// an empty config.
func readMCPConfig(fs afero.Fs, path string) (root, servers map[string]any) {
	root = make(map[string]any)
	if data, err := afero.ReadFile(fs, path); err == nil {
		if json.Unmarshal(data, &root) != nil {
			root = make(map[string]any)
		}
	}
	servers, ok := root["mcpServers"].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	return root, servers
}

func writeMCPConfig(fs afero.Fs, path string, root map[string]any) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	out, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, append(out, '\n'), 0o600)
}

// upsertEditorMCP sets our server entry, keeping every other server.
func upsertEditorMCP(fs afero.Fs, path, binaryPath string) error {
	root, servers := readMCPConfig(fs, path)
	servers[mcpServerKey] = map[string]any{
		"command": binaryPath,
		"args":    []string{"serve"},
	}
	root["mcpServers"] = servers
	return writeMCPConfig(fs, path, root)
}

// removeEditorMCP deletes our server entry and reports whether it existed.
func removeEditorMCP(fs afero.Fs, path string) (bool, error) {
	if ok, _ := afero.Exists(fs, path); !ok {
		return false, nil
	}
	root, servers := readMCPConfig(fs, path)
	if _, ok := servers[mcpServerKey]; !ok {
		return false, nil
	}
	delete(servers, mcpServerKey)
	root["mcpServers"] = servers
	return true, writeMCPConfig(fs, path, root)
}
