// 本文件用于前端静态资源服务：文件存在时直接返回，否则回退到 index.html
package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ai4free/internal/logger"
)

const indexFile = "index.html"

type staticHandler struct {
	root string
	fs   http.Handler
}

func newStaticHandler(root string) *staticHandler {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	if info, statErr := os.Stat(abs); statErr != nil || !info.IsDir() {
		logger.Warn("静态资源目录不可用: %s", abs)
	}
	return &staticHandler{root: abs, fs: http.FileServer(http.Dir(abs))}
}

func (s *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)
	if clean == "/api" || strings.HasPrefix(clean, "/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if s.isFile(clean) {
		s.fs.ServeHTTP(w, r)
		return
	}
	index := filepath.Join(s.root, indexFile)
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}

// isFile 请求路径在静态目录内且对应普通文件
func (s *staticHandler) isFile(urlPath string) bool {
	if urlPath == "/" {
		return false
	}
	full := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(urlPath, "/")))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}
