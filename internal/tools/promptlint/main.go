package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
	"github.com/kauntdewn1/neo-prompts/internal/prompts"
)

var (
	braceSpanPattern = regexp.MustCompile(`\{[^{}]*\}`)
	placeholderOK    = regexp.MustCompile(`^\{[A-Za-z0-9_]+\}$`)
	namePattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
)

type violation struct {
	file    string
	message string
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		root := os.Getenv("PROMPTS_DIR")
		if root == "" {
			root = "prompts"
		}
		targets = []string{root}
	}

	var violations []violation
	for _, target := range targets {
		vs, err := lintLibrary(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "promptlint: %v\n", err)
			os.Exit(1)
		}
		violations = append(violations, vs...)
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "promptlint: prompt library problems")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", v.file, v.message)
		}
		os.Exit(1)
	}
}

func lintLibrary(root string) ([]violation, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var violations []violation
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if !entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			violations = append(violations, violation{path, "file outside a category directory"})
			continue
		}
		if !prompts.ValidCategory(entry.Name()) {
			violations = append(violations, violation{path, fmt.Sprintf("unknown category %q (expected %s)", entry.Name(), strings.Join(prompts.Categories(), ", "))})
		}
		vs, err := lintCategory(path)
		if err != nil {
			return nil, err
		}
		violations = append(violations, vs...)
	}
	return violations, nil
}

func lintCategory(dir string) ([]violation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var violations []violation
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if filepath.Ext(entry.Name()) != ".txt" {
			violations = append(violations, violation{path, "prompt files must use the .txt extension"})
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".txt")
		if !namePattern.MatchString(stem) {
			violations = append(violations, violation{path, fmt.Sprintf("name %q must start alphanumeric and use only letters, digits, - and _", stem)})
		}
		vs, err := lintPromptFile(path)
		if err != nil {
			return nil, err
		}
		violations = append(violations, vs...)
	}
	return violations, nil
}

func lintPromptFile(path string) ([]violation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var violations []violation
	text := prompts.PromptText(string(raw))
	length := utf8.RuneCountInString(text)
	if length < domain.MinPromptLength {
		violations = append(violations, violation{path, fmt.Sprintf("prompt text is %d characters, minimum is %d", length, domain.MinPromptLength)})
	}
	if length > domain.MaxPromptLength {
		violations = append(violations, violation{path, fmt.Sprintf("prompt text is %d characters, maximum is %d", length, domain.MaxPromptLength)})
	}
	for _, span := range braceSpanPattern.FindAllString(text, -1) {
		if !placeholderOK.MatchString(span) {
			violations = append(violations, violation{path, fmt.Sprintf("malformed placeholder %s (use {snake_case_name})", span)})
		}
	}
	return violations, nil
}
