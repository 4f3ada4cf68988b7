package discover

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/DeusData/gradle-model-mcp/internal/config"
	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

// IgnoreFileName lists extra glob patterns, one per line, skipped while
// walking a build.
const IgnoreFileName = ".gradlemodelignore"

// FileInfo represents a discovered Gradle file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to the build root, slash separated
	Language lang.Language // groovy, kotlin, properties or toml
	Kind     lang.FileKind // build, settings, properties or catalog
}

// Options configures file discovery.
type Options struct {
	Config     *config.ProjectConfig // ignore dirs; loaded from the root when nil
	IgnoreFile string                // path to an ignore file (optional)
}

// shouldSkipDir returns true if the directory should be skipped during discovery.
func shouldSkipDir(cfg *config.ProjectConfig, name, rel string, extraIgnore []string) bool {
	if cfg.IsIgnored(name) {
		return true
	}
	for _, pattern := range extraIgnore {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.ToSlash(rel)); matched {
			return true
		}
	}
	return false
}

// Discover walks a build root and returns every Gradle file below it.
func Discover(ctx context.Context, fs afero.Fs, root string, opts *Options) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, extraIgnore := options(fs, root, opts)

	var files []FileInfo
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		if info.IsDir() {
			if rel != "." && shouldSkipDir(cfg, info.Name(), rel, extraIgnore) {
				return filepath.SkipDir
			}
			return nil
		}

		l, kind, ok := lang.Classify(path)
		if !ok {
			return nil
		}
		files = append(files, FileInfo{
			Path:     path,
			RelPath:  filepath.ToSlash(rel),
			Language: l,
			Kind:     kind,
		})
		return nil
	})
	return files, err
}

func options(fs afero.Fs, root string, opts *Options) (*config.ProjectConfig, []string) {
	var cfg *config.ProjectConfig
	ignoreFile := filepath.Join(root, IgnoreFileName)
	if opts != nil {
		cfg = opts.Config
		if opts.IgnoreFile != "" {
			ignoreFile = opts.IgnoreFile
		}
	}
	if cfg == nil {
		cfg = config.LoadConfig(fs, root)
	}
	extra, _ := loadIgnoreFile(fs, ignoreFile)
	return cfg, extra
}

// FindBuildRoots returns the directories below dir that hold an
// independent Gradle build: every directory with a settings file, plus
// directories with a build file that no enclosing build root covers.
// Roots are returned in lexical order.
func FindBuildRoots(ctx context.Context, fs afero.Fs, dir string) ([]string, error) {
	files, err := Discover(ctx, fs, dir, nil)
	if err != nil {
		return nil, err
	}
	settings := make(map[string]bool)
	builds := make(map[string]bool)
	for _, f := range files {
		d := filepath.Dir(f.Path)
		switch f.Kind {
		case lang.KindSettings:
			settings[d] = true
		case lang.KindBuild:
			builds[d] = true
		}
	}

	var roots []string
	for d := range settings {
		roots = append(roots, d)
	}
	for d := range builds {
		if settings[d] || coveredBy(d, settings) {
			continue
		}
		roots = append(roots, d)
	}
	sort.Strings(roots)

	// a settings-less build nested in another settings-less build is one of
	// its modules
	plain := make(map[string]bool)
	out := roots[:0]
	for _, r := range roots {
		if !settings[r] {
			if coveredBy(r, plain) {
				continue
			}
			plain[r] = true
		}
		out = append(out, r)
	}
	return out, nil
}

func coveredBy(dir string, roots map[string]bool) bool {
	for r := range roots {
		if isBelow(dir, r) {
			return true
		}
	}
	return false
}

func isBelow(dir, root string) bool {
	return strings.HasPrefix(dir, root+string(filepath.Separator))
}

func loadIgnoreFile(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
