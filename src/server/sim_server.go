package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"task-observer/src/interfaces"
	"task-observer/src/logger"
	"task-observer/src/models"
	"task-observer/src/storage"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// SimServer serves the task REST API and the push channel that the
// observer client consumes. Error bodies always carry a "detail" field so
// clients can surface the reason verbatim.
// -----------------------------------------------------------------------------

type SimServer struct {
	Config *models.MConfig
	Store  interfaces.ITaskStore
	Logger *logger.Logger
	engine *gin.Engine

	// WebSocket clients
	clients      map[*Client]struct{}
	clientsMutex sync.Mutex
	publish      chan models.MQuoteSample // Buffered Queue
	register     chan *Client
	unregister   chan *Client

	// Unix time of the last published quote, for /api/health
	lastTick int64
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewSimServer(cfg *models.MConfig, store interfaces.ITaskStore, logger *logger.Logger) *SimServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &SimServer{
		Config:  cfg,
		Store:   store,
		Logger:  logger,
		engine:  gin.Default(),
		clients: make(map[*Client]struct{}),
		// Queue size of 256 ensures we can handle bursts of ticks
		publish:    make(chan models.MQuoteSample, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *SimServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/tasks", s.listTasks)
	s.engine.POST("/tasks", s.createTask)
	s.engine.POST("/tasks/:id/start", s.startTask)
	s.engine.POST("/tasks/:id/stop", s.stopTask)
	s.engine.GET("/api/health", s.getHealth)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *SimServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Sim.Host, s.Config.Sim.Port)
	s.Logger.Info("Starting simulator on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

// Engine exposes the router for tests.
func (s *SimServer) Engine() http.Handler {
	return s.engine
}

// Run starts the hub loop without binding a listener. Tests mount Engine
// on an httptest server and call this instead of Start.
func (s *SimServer) Run() {
	go s.handleWebsockets()
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *SimServer) listTasks(c *gin.Context) {
	tasks, err := s.Store.ListTasks()
	if err != nil {
		s.Logger.Error("ListTasks failed: %v", err)
		c.JSON(500, gin.H{"detail": "storage error"})
		return
	}

	c.JSON(200, tasks)
}

// -----------------------------------------------------------------------------

func (s *SimServer) createTask(c *gin.Context) {
	var req models.MCreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(422, gin.H{"detail": "invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Symbol = strings.TrimSpace(req.Symbol)
	if req.Name == "" {
		c.JSON(422, gin.H{"detail": "name is required"})
		return
	}
	if req.Symbol == "" {
		c.JSON(422, gin.H{"detail": "symbol is required"})
		return
	}

	task, err := s.Store.CreateTask(req.Name, req.Symbol)
	if err != nil {
		s.Logger.Error("CreateTask failed: %v", err)
		c.JSON(500, gin.H{"detail": "storage error"})
		return
	}

	c.JSON(201, task)
}

// -----------------------------------------------------------------------------

func (s *SimServer) startTask(c *gin.Context) {
	task, ok := s.taskFromPath(c)
	if !ok {
		return
	}

	if task.Status == models.TaskRunning {
		c.JSON(409, gin.H{"detail": "task is already running"})
		return
	}

	updated, err := s.Store.UpdateStatus(task.ID, models.TaskRunning)
	if err != nil {
		s.Logger.Error("UpdateStatus failed: %v", err)
		c.JSON(500, gin.H{"detail": "storage error"})
		return
	}

	c.JSON(200, updated)
}

// -----------------------------------------------------------------------------

func (s *SimServer) stopTask(c *gin.Context) {
	task, ok := s.taskFromPath(c)
	if !ok {
		return
	}

	if task.Status != models.TaskRunning {
		c.JSON(409, gin.H{"detail": "task is not running"})
		return
	}

	updated, err := s.Store.UpdateStatus(task.ID, models.TaskStopped)
	if err != nil {
		s.Logger.Error("UpdateStatus failed: %v", err)
		c.JSON(500, gin.H{"detail": "storage error"})
		return
	}

	c.JSON(200, updated)
}

// -----------------------------------------------------------------------------

func (s *SimServer) getHealth(c *gin.Context) {
	s.clientsMutex.Lock()
	connections := len(s.clients)
	lastTick := s.lastTick
	s.clientsMutex.Unlock()

	tasks, err := s.Store.ListTasks()
	if err != nil {
		c.JSON(500, gin.H{"detail": "storage error"})
		return
	}

	c.JSON(200, gin.H{
		"status":        "ok",
		"connections":   connections,
		"tasks":         len(tasks),
		"latest_update": lastTick,
	})
}

// -----------------------------------------------------------------------------

// taskFromPath resolves the :id parameter. On failure the response has
// already been written.
func (s *SimServer) taskFromPath(c *gin.Context) (models.MTask, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(422, gin.H{"detail": "invalid task id"})
		return models.MTask{}, false
	}

	task, err := s.Store.GetTask(id)
	if errors.Is(err, storage.ErrTaskNotFound) {
		c.JSON(404, gin.H{"detail": "task not found"})
		return models.MTask{}, false
	}
	if err != nil {
		s.Logger.Error("GetTask failed: %v", err)
		c.JSON(500, gin.H{"detail": "storage error"})
		return models.MTask{}, false
	}

	return task, true
}
