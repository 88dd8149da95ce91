// Package prompt renders the text sent to the language model for each
// document kind.
package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.tmpl
var embedded embed.FS

var nameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// ErrUnknownTemplate is returned when no template exists under the given name.
var ErrUnknownTemplate = errors.New("unknown prompt template")

var funcs = template.FuncMap{
	"join": func(list []string, sep string) string { return strings.Join(list, sep) },
}

type Builder struct {
	// dir, when set, is searched for <name>.tmpl before the embedded set.
	dir string

	mu    sync.Mutex
	cache map[string]*template.Template
}

func New(dir string) *Builder {
	return &Builder{dir: strings.TrimSpace(dir), cache: map[string]*template.Template{}}
}

// Build renders template name with params. Every key the template uses must
// be present in params.
func (b *Builder) Build(name string, params map[string]any) (string, error) {
	tpl, err := b.lookup(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Names lists the embedded templates.
func (b *Builder) Names() []string {
	matches, _ := fs.Glob(embedded, "templates/*.tmpl")
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSuffix(filepath.Base(m), ".tmpl"))
	}
	return out
}

func (b *Builder) lookup(name string) (*template.Template, error) {
	if !nameRe.MatchString(name) {
		return nil, fmt.Errorf("prompt: invalid template name %q", name)
	}
	// Files under dir are re-read on every call so prompts can be edited live.
	if b.dir != "" {
		raw, err := os.ReadFile(filepath.Join(b.dir, name+".tmpl"))
		switch {
		case err == nil:
			return parse(name, string(raw))
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if tpl, ok := b.cache[name]; ok {
		return tpl, nil
	}
	raw, err := embedded.ReadFile("templates/" + name + ".tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	tpl, err := parse(name, string(raw))
	if err != nil {
		return nil, err
	}
	b.cache[name] = tpl
	return tpl, nil
}

func parse(name, text string) (*template.Template, error) {
	tpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("prompt %s: %w", name, err)
	}
	return tpl, nil
}

// ErrReadOnly is returned by Save when the builder has no override directory.
var ErrReadOnly = errors.New("prompt: no PROMPT_DIR configured")

// Save replaces the override of an existing template. The text must parse;
// the file is written to a temp file and renamed so readers never see half of it.
func (b *Builder) Save(name, text string) (string, error) {
	if b.dir == "" {
		return "", ErrReadOnly
	}
	if !nameRe.MatchString(name) {
		return "", fmt.Errorf("prompt: invalid template name %q", name)
	}
	if _, err := embedded.ReadFile("templates/" + name + ".tmpl"); err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("prompt: empty template")
	}
	if _, err := parse(name, text); err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("prompt: make dir: %w", err)
	}

	dst := filepath.Join(b.dir, name+".tmpl")
	tmp, err := os.CreateTemp(b.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("prompt: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("prompt: write temp: %w", err)
	}
	_ = tmp.Chmod(0o644)
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("prompt: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("prompt: rename: %w", err)
	}
	return dst, nil
}
