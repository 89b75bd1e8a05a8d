// Package view renders html/template pages with a shared layout, partials and
// a funcmap wired to preferences and the authorization gate.
package view

import (
	"bytes"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mlegall/assohub/internal/auth"
	"github.com/mlegall/assohub/internal/i18n"
	"github.com/mlegall/assohub/internal/middleware"
)

var (
	baseDir  string
	once     sync.Once
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	// isAdminResolver is set by the host app so templates can show/hide the
	// admin navigation without importing policy types here.
	isAdminResolver = func(_ *http.Request) bool { return false }
)

// SetIsAdminResolver sets the callback used by the isAdmin template func.
func SetIsAdminResolver(f func(*http.Request) bool) {
	if f != nil {
		isAdminResolver = f
	}
}

func detectBase() {
	candidates := []string{"templates", "../templates", "../../templates"}
	for _, c := range candidates {
		if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
			baseDir = filepath.Clean(c)
			return
		}
	}
	baseDir = "templates"
}

// SetBaseDir overrides the template base directory (useful for tests).
func SetBaseDir(path string) {
	if path == "" {
		return
	}
	baseDir = filepath.Clean(path)
	once = sync.Once{}
}

// ResetForTests clears caches and forces base dir detection to rerun.
func ResetForTests() {
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
	baseDir = ""
	once = sync.Once{}
}

// Funcs returns the standard func map including i18n and simple helpers.
func Funcs(r *http.Request) template.FuncMap {
	lang := middleware.LangFrom(r)
	theme := middleware.ThemeFrom(r)
	return template.FuncMap{
		"t":       func(code string) string { return i18n.T(lang, code) },
		"lang":    func() string { return lang },
		"theme":   func() string { return theme },
		"isAdmin": func() bool { return isAdminResolver(r) },
		"year":    func() int { return time.Now().Year() },
		// dict builds a map for passing several values to a partial.
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// Render parses and executes a template file with shared funcs and layout.
// name is relative to the templates dir (e.g. "dashboard/projects.html").
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	if baseDir == "" {
		once.Do(detectBase)
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	if _, exists := data["Flash"]; !exists {
		if cat, msg, ok := middleware.PopFlash(w, r); ok {
			data["Flash"] = map[string]string{"Category": cat, "Message": msg}
		}
	}

	devMode := os.Getenv("DEV") == "1"
	if !devMode {
		tplCache.RLock()
		t, ok := tplCache.m[name]
		tplCache.RUnlock()
		if ok && t != nil {
			return t.Execute(w, data)
		}
	}

	mainPath := filepath.Join(baseDir, name)
	if _, err := os.Stat(mainPath); err != nil {
		return err
	}

	funcMap := Funcs(r)
	var t *template.Template
	contentBytes, _ := os.ReadFile(mainPath)
	layoutPath := filepath.Join(baseDir, "layout.html")
	useLayout := !bytes.Contains(bytes.ToLower(contentBytes), []byte("<!doctype"))
	if useLayout {
		if fi, err := os.Stat(layoutPath); err != nil || fi.IsDir() {
			useLayout = false
		}
	}
	if useLayout {
		files := []string{layoutPath, mainPath}
		for _, p := range []string{
			filepath.Join(baseDir, "partials", "header.html"),
			filepath.Join(baseDir, "partials", "flash.html"),
			filepath.Join(baseDir, "partials", "field-errors.html"),
		} {
			if pf, err := os.Stat(p); err == nil && !pf.IsDir() {
				files = append(files, p)
			}
		}
		parsed, err := template.New("layout.html").Funcs(funcMap).ParseFiles(files...)
		if err != nil {
			return err
		}
		t = parsed
	} else {
		parsed, err := template.New(filepath.Base(name)).Funcs(funcMap).ParseFiles(mainPath)
		if err != nil {
			return err
		}
		t = parsed
	}

	if !devMode {
		tplCache.Lock()
		tplCache.m[name] = t
		tplCache.Unlock()
	}
	return t.Execute(w, data)
}
