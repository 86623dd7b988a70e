// Package content renders the informational pages and chat messages from
// markdown to HTML that is safe to embed in a page.
package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed pages/*.md
var pages embed.FS

var ErrPageNotFound = errors.New("page not found")

type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: p,
	}
}

// Render converts markdown to sanitized HTML. Raw HTML in the source is
// dropped by goldmark and anything else unsafe by the policy.
func (r *Renderer) Render(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
}

// Page renders an embedded page by name, e.g. "about".
func (r *Renderer) Page(name string) (template.HTML, error) {
	if name == "" || strings.ContainsAny(name, "/.") {
		return "", ErrPageNotFound
	}
	src, err := pages.ReadFile(path.Join("pages", name+".md"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrPageNotFound
	} else if err != nil {
		return "", err
	}
	return r.Render(string(src))
}

// Pages lists the embedded page names.
func Pages() []string {
	entries, _ := pages.ReadDir("pages")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	return names
}
