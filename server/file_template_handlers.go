package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/tutorhub-web/routes"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"

	layoutTemplate = "layout.html"
	loadingView    = "loading"
	errorView      = "error"
)

//go:embed templates/*.html
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
}

// views holds one template set per view: the layout plus the view's content
type views struct {
	pages map[string]*template.Template
}

// parseViews parses the view of every route in table and the shell's own views
func parseViews(table *routes.Table) (*views, error) {
	names := []string{loadingView, errorView}
	for _, r := range table.All() {
		if r.View != "" {
			names = append(names, r.View)
		}
	}

	v := &views{pages: make(map[string]*template.Template, len(names))}
	fsys := TemplateFilesFS()
	for _, name := range names {
		if _, ok := v.pages[name]; ok {
			continue
		}
		tmpl, err := template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(fsys, layoutTemplate, name+".html")
		if err != nil {
			return nil, fmt.Errorf("[parseViews] %s: %w", name, err)
		}
		v.pages[name] = tmpl
	}
	return v, nil
}

func (s *Server) render(w http.ResponseWriter, status int, view string, page *Page) {
	tmpl, ok := s.views.pages[view]
	if !ok {
		logError(s.log, "", view, fmt.Errorf("unknown view"))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		logError(s.log, "", view, err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
