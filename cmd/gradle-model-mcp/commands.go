package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/gradle-model-mcp/internal/buildmodel"
	"github.com/DeusData/gradle-model-mcp/internal/dsl"
	"github.com/DeusData/gradle-model-mcp/internal/lang"
	"github.com/DeusData/gradle-model-mcp/internal/parser"
	"github.com/DeusData/gradle-model-mcp/internal/pipeline"
)

func (a *app) indexCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Index every Gradle build under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return fmt.Errorf("store open: %w", err)
			}
			defer s.Close()

			results, err := pipeline.IndexAll(cmd.Context(), s, a.fs, dir, force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				status := "indexed"
				if r.Skipped {
					status = "unchanged"
				}
				fmt.Fprintf(out, "%s\t%s\t%d modules\t%s\n", r.Project, r.RootPath, r.Modules, status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reindex even when no file changed")
	return cmd
}

// withBuild opens the build rooted at dir and runs fn under its read lock.
func (a *app) withBuild(dir string, fn func(bc *buildmodel.Context) error) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	bc := buildmodel.NewContext(a.fs, abs)
	defer bc.Close()
	return bc.Read(func() error { return fn(bc) })
}

func (a *app) modulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules [dir]",
		Short: "List the modules of a build with their build files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBuild(dirArg(args), func(bc *buildmodel.Context) error {
				mods, rootName, err := pipeline.ExtractModules(bc)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "rootProject %s\n", rootName)
				for _, m := range mods {
					fmt.Fprintf(out, "%s\t%s\t%s\n", m.Path, m.BuildFile, m.Language)
				}
				return nil
			})
		},
	}
}

func (a *app) pluginsCmd() *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "plugins [dir]",
		Short: "List the plugins a module applies",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBuild(dirArg(args), func(bc *buildmodel.Context) error {
				m, err := bc.ModuleModel(buildmodel.NormalizeModulePath(module))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, p := range m.Plugins() {
					line := p.Name()
					if v := p.Version().Value; v != "" {
						line += " " + v
					}
					if !p.Apply() {
						line += " (apply false)"
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&module, "module", "m", ":", "module path")
	return cmd
}

func (a *app) applyPluginCmd() *cobra.Command {
	var (
		module string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "apply-plugin <id> [dir]",
		Short: "Apply a plugin to a module's build file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(dirArg(args[1:]))
			if err != nil {
				return err
			}
			bc := buildmodel.NewContext(a.fs, abs)
			defer bc.Close()
			return bc.Write(func() error {
				m, err := bc.ModuleModel(buildmodel.NormalizeModulePath(module))
				if err != nil {
					return err
				}
				m.ApplyPlugin(args[0])
				out := cmd.OutOrStdout()
				if !m.IsModified() {
					fmt.Fprintf(out, "%s already applies %s\n", m.Path(), args[0])
					return nil
				}
				if dryRun {
					_, err := io.WriteString(out, m.Text())
					return err
				}
				if err := m.ApplyChanges(); err != nil {
					return err
				}
				fmt.Fprintf(out, "applied %s to %s\n", args[0], m.Path())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&module, "module", "m", ":", "module path")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the edited file instead of writing it")
	return cmd
}

func (a *app) dumpCmd() *cobra.Command {
	var (
		asJSON bool
		syntax bool
	)
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print the parsed element tree of a Gradle file",
		Long: `dump prints the element tree the model reads from a settings, build or
properties file. With --syntax it prints the tree-sitter syntax tree instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := afero.ReadFile(a.fs, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if syntax {
				return dumpSyntax(out, args[0], data)
			}
			f, err := dsl.ParseString(args[0], string(data))
			if f == nil {
				return err
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(dsl.Dump(f.Root()))
			}
			return dsl.WriteTree(out, f.Root())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of an outline")
	cmd.Flags().BoolVar(&syntax, "syntax", false, "print the tree-sitter syntax tree")
	return cmd
}

// dumpSyntax prints the tree-sitter tree of a build or settings script.
func dumpSyntax(w io.Writer, path string, source []byte) error {
	l, _, ok := lang.Classify(path)
	if !ok || (l != lang.Groovy && l != lang.Kotlin) {
		return fmt.Errorf("%s: not a Groovy or Kotlin script", path)
	}
	tree, err := parser.Parse(l, source)
	if err != nil {
		return err
	}
	defer tree.Close()
	writeSyntaxNode(w, tree.RootNode(), source, 0)
	return nil
}

func writeSyntaxNode(w io.Writer, node *tree_sitter.Node, source []byte, depth int) {
	if node == nil {
		return
	}
	text := parser.NodeText(node, source)
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	fmt.Fprintf(w, "%s%s %q\n", strings.Repeat("  ", depth), node.Kind(), text)
	for i := uint(0); i < node.ChildCount(); i++ {
		writeSyntaxNode(w, node.Child(i), source, depth+1)
	}
}

func dirArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}
