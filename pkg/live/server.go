package live

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/kindredhq/intake/pkg/core"
	"github.com/kindredhq/intake/pkg/limits"
	"github.com/kindredhq/intake/pkg/logging"
	"github.com/kindredhq/intake/pkg/media"
	"github.com/kindredhq/intake/pkg/protocol"
)

//go:embed layout.html
var layoutHTML string

var layout = template.Must(template.New("layout").Parse(layoutHTML))

// ServerConfig configures the HTTP surface of the live server.
type ServerConfig struct {
	// Title is the page title.
	Title string

	// MountPath is where the page is served; the websocket and upload
	// endpoints hang off it.
	MountPath string

	// AssetsPath is the URL prefix of the client script.
	AssetsPath string

	Origins OriginPolicy

	// MaxFileSize bounds the bytes read from one uploaded file.
	MaxFileSize int64

	// MaxUploadBytes bounds a whole multipart request.
	MaxUploadBytes int64

	ReadLimit    int64
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns the default configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Title:          "Profile",
		MountPath:      "/intake",
		AssetsPath:     "/assets/",
		MaxFileSize:    media.MaxFileSize,
		MaxUploadBytes: media.MaxFileSize + 1<<20,
		ReadLimit:      64 * 1024,
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Server serves the intake page, its live connection and file uploads.
type Server struct {
	config  *ServerConfig
	manager *Manager
	codecs  *protocol.CodecRegistry
	logger  logging.Logger

	previews http.Handler
	assets   http.Handler
	extra    map[string]http.Handler

	uploads limits.RateLimiter
	conns   *limits.ConnectionLimiter
}

// ServerOption configures a server.
type ServerOption func(*Server)

// WithCodecs sets the codecs clients may choose from.
func WithCodecs(r *protocol.CodecRegistry) ServerOption {
	return func(s *Server) {
		s.codecs = r
	}
}

// WithServerLogger sets the server logger.
func WithServerLogger(logger logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPreviews serves staged image previews under /preview/.
func WithPreviews(h http.Handler) ServerOption {
	return func(s *Server) {
		s.previews = h
	}
}

// WithAssets serves the client script under AssetsPath.
func WithAssets(h http.Handler) ServerOption {
	return func(s *Server) {
		s.assets = h
	}
}

// WithRoute mounts an additional handler, e.g. health checks.
func WithRoute(pattern string, h http.Handler) ServerOption {
	return func(s *Server) {
		s.extra[pattern] = h
	}
}

// WithUploadLimit rate limits uploads per session.
func WithUploadLimit(l limits.RateLimiter) ServerOption {
	return func(s *Server) {
		s.uploads = l
	}
}

// WithConnectionLimit caps concurrent live connections per client address.
func WithConnectionLimit(l *limits.ConnectionLimiter) ServerOption {
	return func(s *Server) {
		s.conns = l
	}
}

// NewServer creates a server on top of manager.
func NewServer(manager *Manager, config *ServerConfig, opts ...ServerOption) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	s := &Server{
		config:  config,
		manager: manager,
		codecs:  protocol.NewCodecRegistry(),
		logger:  logging.NopLogger{},
		extra:   make(map[string]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed, request-logged handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	base := s.config.MountPath
	mux.HandleFunc("GET "+base, s.handlePage)
	mux.HandleFunc("GET "+base+"/live", s.handleLive)
	mux.HandleFunc("POST "+base+"/upload", s.handleUpload)
	if s.previews != nil {
		mux.Handle("GET /preview/{id}", s.previews)
	}
	if s.assets != nil {
		mux.Handle("GET "+s.config.AssetsPath, http.StripPrefix(s.config.AssetsPath, s.assets))
	}
	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}
	return logging.RequestLogger(s.logger)(mux)
}

type pageData struct {
	Title     string
	SessionID string
	LivePath  string
	Upload    string
	Codec     string
	Script    string
	Content   template.HTML
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	params := queryParams(r)
	sess, err := s.manager.Open(r.Context(), r.URL.Query().Get("session"), params, core.Session{
		"remote_addr": r.RemoteAddr,
	})
	if err != nil {
		logging.L(r.Context()).Error("could not open session", logging.Err(err))
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}

	data := pageData{
		Title:     s.config.Title,
		SessionID: sess.ID(),
		LivePath:  s.config.MountPath + "/live",
		Upload:    s.config.MountPath + "/upload",
		Codec:     s.codecs.Default().Name(),
		Script:    s.config.AssetsPath + "intake.js",
		// Component output comes from html/template and is already escaped.
		Content: template.HTML(sess.HTML()),
	}
	var buf bytes.Buffer
	if err := layout.Execute(&buf, data); err != nil {
		logging.L(r.Context()).Error("layout render failed", logging.Err(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	logger := logging.L(r.Context())

	if !s.config.Origins.Allowed(r.Header.Get("Origin"), r.Host) {
		logger.Warn("websocket origin rejected", logging.String("origin", r.Header.Get("Origin")))
		http.Error(w, ErrOriginNotAllowed.Error(), http.StatusForbidden)
		return
	}

	sess, ok := s.manager.Get(r.URL.Query().Get("session"))
	if !ok {
		http.Error(w, ErrSessionNotFound.Error(), http.StatusNotFound)
		return
	}

	codec := s.codecs.Default()
	if name := r.URL.Query().Get("codec"); name != "" {
		c, err := s.codecs.Lookup(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		codec = c
	}

	if s.conns != nil {
		ip := limits.ClientIP(r)
		if !s.conns.Acquire(ip) {
			http.Error(w, "too many connections", http.StatusTooManyRequests)
			return
		}
		defer s.conns.Release(ip)
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin was checked above.
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.Warn("websocket accept failed", logging.Err(err))
		return
	}

	err = sess.Serve(r.Context(), conn, codec, ConnConfig{
		ReadLimit:    s.config.ReadLimit,
		PingInterval: s.config.PingInterval,
		WriteTimeout: s.config.WriteTimeout,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("live connection ended", logging.Err(err))
	}
}

// handleUpload accepts one image for a media slot and hands it to the
// session, which stages it in the background. The response only confirms
// receipt; the outcome arrives as a render.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sess, ok := s.manager.Get(q.Get("session"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": ErrSessionNotFound.Error()})
		return
	}
	slot, err := media.ParseSlot(q.Get("slot"), q.Get("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if s.uploads != nil && !s.uploads.Allow(sess.ID()) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many uploads"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	f, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			sess.Post(media.Result{Slot: slot, Err: media.ErrFileTooLarge})
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "rejected"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.config.MaxFileSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable upload"})
		return
	}

	upload := media.Upload{
		Slot: slot,
		File: media.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Content:     bytes.NewReader(data),
		},
	}
	if !sess.Post(upload) {
		writeJSON(w, http.StatusGone, map[string]string{"error": ErrSessionClosed.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "staging"})
}

func queryParams(r *http.Request) core.Params {
	params := make(core.Params)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
