package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PulseFM/cache"
	"PulseFM/config"
	"PulseFM/core/audio"
	"PulseFM/core/broadcast"
	"PulseFM/core/engine"
	"PulseFM/core/ipc"
	"PulseFM/core/player"
	"PulseFM/db"
	"PulseFM/logger"
	"PulseFM/repository"

	"github.com/gorilla/mux"
)

// Start 组装全部组件并启动HTTP服务
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	})

	// Redis和MySQL都是可降级依赖：连不上只丢掉缓存/历史，
	// 控制器和广播器照常工作
	var resolveCache player.ResolveCache
	var recent *cache.RecentPlays
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("redis unavailable, resolve cache and recent plays disabled", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
		resolveCache = cache.NewResolveCache(cache.RedisClient, cfg.ResolveCacheTTL)
		recent = cache.NewRecentPlays(cache.RedisClient)
	}

	var historyRepo repository.HistoryRepository
	if err := db.Connect(cfg); err != nil {
		logger.Warn("database unavailable, play history disabled", logger.ErrorField(err))
		if recent != nil {
			historyRepo = repository.NewGormHistoryRepository(nil, recent)
		}
	} else {
		defer db.Close()
		historyRepo = repository.NewGormHistoryRepository(db.DB, recent)
	}

	resolver := player.NewYTDLPResolver(cfg.YTDLPPath, cfg.ResolveTimeout, resolveCache)
	controller := player.NewController(resolver, historyRepo)

	supervisor := engine.NewSupervisor(cfg, func(s *ipc.Session) {
		controller.AttachSession(s)
		s.Subscribe(controller.HandleEvent)
	})
	if err := supervisor.Start(); err != nil {
		// 引擎拉不起来时队列和推流依旧可操作
		logger.Error("engine start failed, playback unavailable until respawn", logger.ErrorField(err))
	}
	defer supervisor.Stop()

	broadcaster := broadcast.NewBroadcaster()
	capture := audio.NewCapture(cfg.FFmpegPath, cfg.AudioFormat, cfg.AudioSource, cfg.AudioBitrate)
	if err := capture.Start(broadcaster); err != nil {
		logger.Warn("capture start failed, /stream will be silent", logger.ErrorField(err))
	}
	defer capture.Stop()
	defer broadcaster.Shutdown()

	apiHandler := NewAPIHandler(controller, broadcaster, historyRepo)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/api/status", apiHandler.StatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/play", apiHandler.PlayHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/pause", apiHandler.PauseHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/resume", apiHandler.ResumeHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/stop", apiHandler.StopHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/next", apiHandler.NextHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/prev", apiHandler.PrevHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/seek", apiHandler.SeekHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/volume", apiHandler.VolumeHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/loop", apiHandler.LoopHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/reset", apiHandler.ResetHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue", apiHandler.QueueHandler).
		Methods(http.MethodGet, http.MethodPost, http.MethodDelete)
	router.HandleFunc("/api/queue/next", apiHandler.QueueNextHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/reorder", apiHandler.ReorderHandler).Methods(http.MethodPut)
	router.HandleFunc("/api/history", apiHandler.HistoryHandler).Methods(http.MethodGet)

	router.HandleFunc("/stream", apiHandler.StreamHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws/stream", apiHandler.WebSocketStreamHandler).Methods(http.MethodGet)

	// 推流连接长开，写超时交给各handler自己管理
	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

// corsMiddleware 跨域头
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
