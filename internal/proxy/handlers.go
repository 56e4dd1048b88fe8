package proxy

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/xzsean666/marketfeed/internal/errors"
)

// fileInfo mirrors the shape the fetcher's HTTP source expects from
// /ls: a flat, sorted directory listing.
type fileInfo struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	absDir, err := validatePath(s.BaseDir, dir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, errors.NotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	infos := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{Name: e.Name(), IsDir: e.IsDir(), Size: info.Size()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	writeJSON(w, http.StatusOK, infos)
}

// handleDownload streams a local file's content, zstd-compressed at
// level 19, to the client; the fetcher's HTTP source sniffs the zstd
// magic header and decompresses unconditionally, so no extra signaling
// is needed here.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	absPath, err := validatePath(s.BaseDir, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, errors.NotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if info.IsDir() {
		writeError(w, http.StatusBadRequest, errors.WrongKind)
		return
	}

	f, err := os.Open(absPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "zstd")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zstd"`, filepath.Base(absPath)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(enc, f); err != nil {
		log.Warnf("download %s: stream error: %v", file, err)
	}
	enc.Close()
}

// handleGetS3URL brokers a presigned URL through the upload state
// machine. With no S3 backend configured, the proxy is download-only:
// clients fall back to /download automatically on the error this
// returns.
func (s *Server) handleGetS3URL(w http.ResponseWriter, r *http.Request) {
	if s.Repo == nil || s.Uploads == nil {
		writeError(w, http.StatusServiceUnavailable, errors.S3NotConfigured)
		return
	}

	file := r.URL.Query().Get("file")
	absPath, err := validatePath(s.BaseDir, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, errors.NotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if info.IsDir() {
		writeError(w, http.StatusBadRequest, errors.WrongKind)
		return
	}

	forceUpdate := r.URL.Query().Get("update") == "true"
	result, err := s.resolvePresign(r.Context(), absPath, forceUpdate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("%w: %v", errors.CatalogOpFailed, err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
