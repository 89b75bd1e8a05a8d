// Package handlers contains the HTTP handlers. Each handler struct owns its
// dependencies and registers its routes on the mux; pages render through the
// shared view layer, JSON endpoints answer through httpx.
package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mlegall/assohub/internal/auth"
	"github.com/mlegall/assohub/internal/httpx"
	"github.com/mlegall/assohub/internal/i18n"
	"github.com/mlegall/assohub/internal/middleware"
	"github.com/mlegall/assohub/internal/models"
	"github.com/mlegall/assohub/internal/view"
	"gorm.io/gorm"
)

// Explicit constant for 303 See Other (Post/Redirect/Get)
const statusSeeOther = 303

// renderTemplate uses the shared view.Render to ensure layout, partials,
// funcs and caching.
func renderTemplate(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	if err := view.Render(w, r, name+".html", data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte("template error")); werr != nil {
			_ = werr
		}
	}
}

// renderError answers an error page or a JSON error body by Accept header.
func renderError(w http.ResponseWriter, r *http.Request, status int, code string) {
	if wantsJSON(r) {
		httpx.JSONError(w, status, i18n.T(middleware.LangFrom(r), code), nil)
		return
	}
	w.WriteHeader(status)
	_ = view.Render(w, r, "error.html", map[string]any{"Status": status, "Code": code})
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// currentUser loads the authenticated user with their rank. Nil when the
// request is anonymous or the account is gone.
func currentUser(db *gorm.DB, r *http.Request) *models.User {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || uid == 0 {
		return nil
	}
	var u models.User
	if err := db.Preload("Rank").First(&u, uid).Error; err != nil {
		return nil
	}
	return &u
}

// pathUint parses a {name} path segment as an id. Zero means absent/invalid.
func pathUint(r *http.Request, name string) uint {
	v := r.PathValue(name)
	if v == "" {
		return 0
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// clientIP prefers the first X-Forwarded-For hop, falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// safeNext keeps post-login redirects on-site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/projects"
	}
	return next
}

var allowedAvatarExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}

// saveAvatar stores an uploaded picture under dir as <userID>_<uuid>.<ext> and
// returns the public URL path. Only jpg/jpeg/png/gif pass the extension check.
func saveAvatar(dir string, userID uint, file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAvatarExt[ext] {
		return "", fmt.Errorf("file type %q not allowed", ext)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d_%s%s", userID, uuid.NewString(), ext)
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	return "/" + path.Join(filepath.ToSlash(dir), name), nil
}
