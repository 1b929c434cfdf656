// Package promptloader loads the Markdown prompt templates used by every
// LLM call site (classify, summarize, distill-chunked, distill-clustered,
// review), with the same filesystem fallback hierarchy and text/template
// rendering the teacher's prompt loader uses.
package promptloader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Loader loads prompts from baseDir with a fallback hierarchy.
type Loader struct {
	baseDir string
}

// New creates a Loader rooted at baseDir.
func New(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Load returns the rendered prompt for name, trying, in order:
//  1. {baseDir}/{name}/default.md
//  2. {baseDir}/{name}.md
//
// data is made available to the template under its field names.
func (l *Loader) Load(name string, data any) (string, error) {
	candidates := []string{
		filepath.Join(l.baseDir, name, "default.md"),
		filepath.Join(l.baseDir, name+".md"),
	}

	for _, path := range candidates {
		raw, err := os.ReadFile(path)
		if err == nil {
			return render(path, string(raw), data)
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt %s: %w", path, err)
		}
	}

	return "", fmt.Errorf("no prompt found for %q, tried: %v", name, candidates)
}

func render(path, tmplContent string, data any) (string, error) {
	tmpl, err := template.New(filepath.Base(path)).Parse(tmplContent)
	if err != nil {
		return "", fmt.Errorf("parse prompt template %s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt template %s: %w", path, err)
	}
	return buf.String(), nil
}
