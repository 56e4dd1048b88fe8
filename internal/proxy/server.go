package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/xzsean666/marketfeed/internal/catalog"
	"github.com/xzsean666/marketfeed/internal/logging"
	"github.com/xzsean666/marketfeed/internal/repository/objectstore"
)

var log = logging.WithComponent("proxy")

// Server is the Transfer Proxy's HTTP surface: routes, a local base
// directory, and an optional S3 backend for the presign broker.
type Server struct {
	BaseDir string
	Repo    objectstore.ObjectRepository // nil if S3 is not configured
	Uploads *catalog.UploadCatalog       // nil if S3 is not configured

	mux *http.ServeMux
}

// NewServer wires up routes on a fresh ServeMux. No third-party router
// appears anywhere in the retrieved corpus, so stdlib's ServeMux -
// pattern-based multiplexing added in Go 1.22 - is the idiomatic choice
// here rather than reaching outside it for something like chi or gin.
func NewServer(baseDir string, repo objectstore.ObjectRepository, uploads *catalog.UploadCatalog) *Server {
	s := &Server{BaseDir: baseDir, Repo: repo, Uploads: uploads, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ls", s.handleList)
	s.mux.HandleFunc("GET /download", s.handleDownload)
	s.mux.HandleFunc("GET /get_s3_url", s.handleGetS3URL)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run starts blocking on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("transfer proxy listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "OK")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// errorResponse is the {error, status} JSON shape every non-2xx
// response carries.
type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Warnf("request failed with %d: %v", status, err)
	writeJSON(w, status, errorResponse{Error: err.Error(), Status: status})
}
