// Package prompts manages the on-disk prompt library: categorized .txt
// files with optional {placeholder} variables.
package prompts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
)

// Library categories. Every prompt file lives in exactly one of them.
const (
	CategoryTemplates = "templates"
	CategoryProjects  = "projects"
	CategoryExamples  = "examples"
)

const promptExt = ".txt"

var categories = []string{CategoryTemplates, CategoryProjects, CategoryExamples}

var (
	nameRe        = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
)

// Store is a prompt library rooted at one directory with fixed category
// subdirectories.
type Store struct {
	root string
}

// NewStore opens the library at root, creating the category directories
// when missing.
func NewStore(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("prompts: root is required")
	}
	for _, category := range categories {
		if err := os.MkdirAll(filepath.Join(root, category), 0o755); err != nil {
			return nil, fmt.Errorf("prompts: ensure category %s: %w", category, err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the library root directory.
func (s *Store) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

// Categories lists the fixed category names.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// ValidCategory reports whether category is one of the library's fixed set.
func ValidCategory(category string) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}

// Info describes one stored prompt file.
type Info struct {
	Name     string
	Category string
	Modified time.Time
}

// List returns the prompts of one category sorted by name. An empty
// category directory yields an empty slice.
func (s *Store) List(category string) ([]Info, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("prompts: %q: %w", category, domain.ErrUnknownCategory)
	}
	entries, err := os.ReadDir(filepath.Join(s.root, category))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("prompts: read category %s: %w", category, err)
	}
	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), promptExt) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:     strings.TrimSuffix(entry.Name(), promptExt),
			Category: category,
			Modified: fi.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// ListAll returns every category's prompts keyed by category name.
func (s *Store) ListAll() (map[string][]Info, error) {
	all := make(map[string][]Info, len(categories))
	for _, category := range categories {
		infos, err := s.List(category)
		if err != nil {
			return nil, err
		}
		all[category] = infos
	}
	return all, nil
}

// Create writes a new prompt file and returns its path. An existing file
// with the same name is never overwritten.
func (s *Store) Create(category, name, content string) (string, error) {
	if !ValidCategory(category) {
		return "", fmt.Errorf("prompts: %q: %w", category, domain.ErrUnknownCategory)
	}
	if err := validateName(name); err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if err := domain.ValidatePromptLength(PromptText(content)); err != nil {
		return "", fmt.Errorf("prompts: %s: %w", name, err)
	}
	path := filepath.Join(s.root, category, name+promptExt)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("prompts: %s/%s: %w", category, name, domain.ErrDuplicatePrompt)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("prompts: write %s: %w", name, err)
	}
	return path, nil
}

// Load returns the raw contents of one prompt file, trimmed.
func (s *Store) Load(category, name string) (string, error) {
	if !ValidCategory(category) {
		return "", fmt.Errorf("prompts: %q: %w", category, domain.ErrUnknownCategory)
	}
	if err := validateName(name); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(filepath.Join(s.root, category, name+promptExt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("prompts: %s/%s: %w", category, name, domain.ErrPromptNotFound)
		}
		return "", fmt.Errorf("prompts: read %s: %w", name, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// PromptText strips `#` comment lines from a prompt file and collapses the
// remainder into the text submitted to the provider.
func PromptText(content string) string {
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Placeholders extracts the distinct {placeholder} names of a template in
// document order.
func Placeholders(content string) []string {
	seen := map[string]bool{}
	var names []string
	for _, match := range placeholderRe.FindAllStringSubmatch(content, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// Render substitutes {placeholder} occurrences from vars. Unknown vars are
// ignored; placeholders no var fills make the render fail so an unfinished
// template never reaches the provider. Braces arriving through substituted
// values are kept as literal text, not treated as placeholders.
func Render(content string, vars map[string]string) (string, error) {
	var unresolved []string
	seen := map[string]bool{}
	rendered := placeholderRe.ReplaceAllStringFunc(content, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		if !seen[name] {
			seen[name] = true
			unresolved = append(unresolved, name)
		}
		return m
	})
	if len(unresolved) > 0 {
		return "", &domain.UnresolvedVarsError{Names: unresolved}
	}
	return rendered, nil
}

func validateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("prompts: invalid name %q", name)
	}
	return nil
}
