package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"keepsake/internal/blobstore"
	"keepsake/internal/store"
)

const (
	allowRemoteEnvKey      = "KEEPSAKE_ALLOW_REMOTE"
	readHeaderTimeout      = 5 * time.Second
	idleTimeout            = 60 * time.Second
	shutdownGrace          = 10 * time.Second
	uploadConcurrencyLimit = 4

	defaultMaxUploadBytes     = 512 << 20 // 512 MiB
	defaultMultipartMemory    = 8 << 20   // 8 MiB
	defaultCleanupConcurrency = 4
)

// Stores groups the record stores the HTTP surface depends on.
type Stores struct {
	Moments   store.MomentStore
	Poems     store.PoemStore
	Gallery   store.GalleryStore
	HomeCards store.HomeCardStore
}

// StoresFrom exposes one SQLite store through every record interface.
func StoresFrom(st *store.Store) Stores {
	return Stores{Moments: st, Poems: st, Gallery: st, HomeCards: st}
}

// Options tunes request limits and derived URLs.
type Options struct {
	// PublicBaseURL overrides the scheme and host used for absolute media URLs.
	PublicBaseURL      string
	CORSOrigins        []string
	MaxUploadBytes     int64
	MultipartMemory    int64
	CleanupConcurrency int
}

func (o Options) withDefaults() Options {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = defaultMaxUploadBytes
	}
	if o.MultipartMemory <= 0 {
		o.MultipartMemory = defaultMultipartMemory
	}
	if o.CleanupConcurrency <= 0 {
		o.CleanupConcurrency = defaultCleanupConcurrency
	}
	o.PublicBaseURL = strings.TrimRight(strings.TrimSpace(o.PublicBaseURL), "/")
	return o
}

// Server wraps HTTP handlers for the keepsake API.
type Server struct {
	addr          string
	stores        Stores
	blobs         blobstore.Provider
	moments       *MomentService
	videos        *VideoService
	logger        *slog.Logger
	opts          Options
	uploadLimiter chan struct{}
}

// New creates a new server instance.
func New(addr string, stores Stores, blobs blobstore.Provider, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	return &Server{
		addr:          addr,
		stores:        stores,
		blobs:         blobs,
		moments:       NewMomentService(stores.Moments, blobs, logger, opts.CleanupConcurrency),
		videos:        NewVideoService(blobs, logger, opts.CleanupConcurrency),
		logger:        logger,
		opts:          opts,
		uploadLimiter: make(chan struct{}, uploadConcurrencyLimit),
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withCORS(s.routes()))
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to shutdownGrace. Streams and uploads can run for minutes, so only header
// reads are bounded.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	s.log().Info("serving", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		s.log().Info("shutting down", "grace", shutdownGrace)
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}
