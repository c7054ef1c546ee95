package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"image-compressor-go/internal/config"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/pipeline"
	"image-compressor-go/internal/report"
	"image-compressor-go/internal/statistics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	fs         afero.Fs
	metadata   pipeline.MetadataCopier
	formatter  report.Formatter
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	// Current operation state
	operationMutex sync.RWMutex
	isRunning      bool
	cancelRun      context.CancelFunc
	currentStats   *statistics.Statistics
	done           chan struct{}
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Title   string      `json:"title,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type CompressRequest struct {
	InputDirectory  string   `json:"input_directory"`
	OutputDirectory string   `json:"output_directory"`
	Quality         *float64 `json:"quality,omitempty"`
}

type DirectoryInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	IsDirectory  bool   `json:"is_directory"`
	Eligible     bool   `json:"eligible"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

type OutcomeMessage struct {
	Index          int     `json:"index"`
	Status         string  `json:"status"`
	OriginalName   string  `json:"original_name"`
	OriginalSize   int64   `json:"original_size,omitempty"`
	OutputName     string  `json:"output_name,omitempty"`
	CompressedSize int64   `json:"compressed_size,omitempty"`
	RatioPercent   float64 `json:"ratio_percent"`
	Error          string  `json:"error,omitempty"`
	Log            string  `json:"log"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServer returns a server that runs the pipeline against fs. copier may be nil.
func NewServer(cfg *config.Config, log *logrus.Logger, fs afero.Fs, copier pipeline.MetadataCopier) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		fs:        fs,
		metadata:  copier,
		formatter: report.Formatter{GroupThousands: cfg.Report.GroupThousands},
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/directories", s.handleListDirectories).Methods("GET")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")
	api.HandleFunc("/quality-options", s.handleQualityOptions).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop cancels a running compression, waits for it to wind down and shuts the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.operationMutex.RLock()
	cancel, done := s.cancelRun, s.done
	s.operationMutex.RUnlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	stats := s.currentStats
	s.operationMutex.RUnlock()

	var statsData interface{}
	if stats != nil {
		statsData = stats.GetSnapshot()
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":    running,
			"statistics": statsData,
		},
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quality := s.cfg.Quality
	if req.Quality != nil {
		if err := config.ValidateQuality(*req.Quality); err != nil {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		quality = *req.Quality
	}

	// Reserve the run slot; validation and discovery happen outside the lock.
	s.operationMutex.Lock()
	if s.isRunning {
		s.operationMutex.Unlock()
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}
	s.isRunning = true
	s.operationMutex.Unlock()

	stats := statistics.NewStatistics()
	p := pipeline.New(s.fs, s.log, stats, pipeline.Options{
		CaseInsensitive: s.cfg.Processing.CaseInsensitive,
		AutoOrient:      s.cfg.Processing.AutoOrient,
		Metadata:        s.metadata,
	})

	ctx, cancel := context.WithCancel(context.Background())
	outcomes, err := p.Stream(ctx, pipeline.Request{
		InputDirectory:  req.InputDirectory,
		OutputDirectory: req.OutputDirectory,
		Quality:         quality,
	})
	if err != nil {
		cancel()
		s.operationMutex.Lock()
		s.isRunning = false
		s.operationMutex.Unlock()

		alert := report.AlertFor(err)
		logger.WithOperation(s.log, "compress").WithError(err).Warn("Compression request rejected")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(APIResponse{
			Success: false,
			Title:   alert.Title,
			Error:   alert.Message,
		})
		return
	}

	done := make(chan struct{})
	s.operationMutex.Lock()
	s.cancelRun = cancel
	s.currentStats = stats
	s.done = done
	s.operationMutex.Unlock()

	s.broadcastWSMessage("compression_started", map[string]interface{}{
		"input_directory":  req.InputDirectory,
		"output_directory": req.OutputDirectory,
		"quality":          quality,
	})

	go s.consumeOutcomes(outcomes, stats, cancel, done)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
	})
}

// consumeOutcomes forwards every outcome to websocket clients as it arrives.
func (s *Server) consumeOutcomes(outcomes <-chan pipeline.Outcome, stats *statistics.Statistics, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	for o := range outcomes {
		s.broadcastWSMessage("file_outcome", OutcomeMessage{
			Index:          o.Index,
			Status:         o.Status.String(),
			OriginalName:   o.OriginalName,
			OriginalSize:   o.OriginalSize,
			OutputName:     o.OutputName,
			CompressedSize: o.CompressedSize,
			RatioPercent:   o.RatioPercent,
			Error:          o.Error,
			Log:            s.formatter.Outcome(o),
		})
	}

	s.operationMutex.Lock()
	s.isRunning = false
	s.cancelRun = nil
	s.operationMutex.Unlock()

	s.broadcastWSMessage("compression_finished", map[string]interface{}{
		"log":        s.formatter.Finished(),
		"summary":    stats.GetSummary(),
		"statistics": stats.GetSnapshot(),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	cancel := s.cancelRun
	s.operationMutex.RUnlock()

	if cancel == nil {
		s.writeJSON(w, APIResponse{
			Success: true,
			Message: "No operation in progress",
		})
		return
	}
	cancel()

	s.broadcastWSMessage("operation_stopped", map[string]interface{}{
		"message": "Operation stopped by user",
	})

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Operation stopped",
	})
}

func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "."
	}

	// Security check - prevent directory traversal
	if strings.Contains(path, "..") {
		s.writeError(w, "Invalid path", http.StatusBadRequest)
		return
	}
	path = filepath.Clean(path)

	entries, err := afero.ReadDir(s.fs, path)
	if err != nil {
		logger.WithFile(s.log, path).WithError(err).Warn("Failed to list directory")
		s.writeError(w, fmt.Sprintf("Failed to read directory: %v", err), http.StatusInternalServerError)
		return
	}

	directories := make([]DirectoryInfo, 0, len(entries))
	for _, entry := range entries {
		directories = append(directories, DirectoryInfo{
			Path:         filepath.Join(path, entry.Name()),
			Name:         entry.Name(),
			IsDirectory:  entry.IsDir(),
			Eligible:     !entry.IsDir() && pipeline.IsEligible(entry.Name(), s.cfg.Processing.CaseInsensitive),
			Size:         entry.Size(),
			ModifiedTime: entry.ModTime().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    directories,
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	stats := s.currentStats
	s.operationMutex.RUnlock()

	if stats == nil {
		s.writeJSON(w, APIResponse{
			Success: true,
			Data:    nil,
		})
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"summary": stats.GetSummary(),
			"errors":  stats.GetErrorSummary(),
			"types":   stats.GetFileTypeBreakdown(),
			"files":   stats.GetSnapshot(),
		},
	})
}

func (s *Server) handleQualityOptions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"default": s.cfg.Quality,
			"options": config.GetQualityOptions(),
		},
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	err = s.writeWSMessage(conn, "connected", nil)
	s.wsMutex.Unlock()
	if err != nil {
		s.log.Errorf("Failed to greet WebSocket client: %v", err)
	}

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// broadcastWSMessage sends to every client. Writes are serialised by wsMutex
// because a websocket connection allows one concurrent writer.
func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := s.writeWSMessage(conn, messageType, data); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeWSMessage(conn *websocket.Conn, messageType string, data interface{}) error {
	msgBytes, err := json.Marshal(WSMessage{Type: messageType, Data: data})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msgBytes)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
