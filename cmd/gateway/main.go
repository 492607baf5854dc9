package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"BProject/global"
	"BProject/logger"
	midsec "BProject/middleware/security"
	chatmodel "BProject/module/chat/model"
	"BProject/module/msgapi"
	userhandler "BProject/module/user"
	usermodel "BProject/module/user/model"
	"BProject/service/chat"
	"BProject/service/natsx"
	"BProject/service/storage"
	"BProject/tools/ids"
	security "BProject/tools/security"
)

func main() {
	cfg := global.Load()
	ids.SetNodeID(int64(cfg.NodeID))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err == nil {
		err = client.Ping(ctx, nil)
	}
	cancel()
	if err != nil {
		logger.Errorf("[boot] mongo connect %s: %v", cfg.MongoURI, err)
		os.Exit(1)
	}
	db := client.Database(cfg.MongoDB)

	convs := chatmodel.NewStore(db)
	users := usermodel.NewStore(db)
	{
		ictx, icancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := convs.EnsureIndexes(ictx); err != nil {
			logger.Warnf("[boot] ensure indexes: %v", err)
		}
		icancel()
	}

	jwtOpts := security.DefaultOptions([]byte(cfg.JWTSecret))
	jwtOpts.TTL = cfg.JWTTTL
	verifier := security.NewTokenVerifier(jwtOpts, users)

	srv := chat.NewServer(chat.Config{
		GatewayID:    cfg.GatewayID,
		PingInterval: cfg.PingInterval,
		PongWait:     cfg.PongWait,
		WriteWait:    cfg.WriteWait,
		IdleAfter:    cfg.IdleAfter,
	}, convs, users, verifier)
	chat.InitBridge(srv)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		srv.SetMirror(storage.NewPresenceMirror(rdb, cfg.GatewayID, cfg.PresenceTTL))
		logger.Infof("[boot] presence mirror on %s", cfg.RedisAddr)
	}

	var relay *natsx.Relay
	if cfg.NatsURL != "" {
		relay, err = natsx.Dial(cfg.NatsURL)
		if err != nil {
			logger.Warnf("[boot] nats dial %s: %v", cfg.NatsURL, err)
		} else {
			srv.SetRelay(relay)
			logger.Infof("[boot] event relay on %s", cfg.NatsURL)
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go srv.Presence().RunSweeper(rootCtx, cfg.IdleSweepEvery)

	r := gin.Default()
	r.GET("/chat", srv.HandleWS)
	r.POST("/api/login", userhandler.HandlerLogin(jwtOpts))

	var evRelay chat.EventRelay
	if relay != nil {
		evRelay = relay
	}
	api := r.Group("/api", midsec.Middleware(verifier))
	api.POST("/conversations/messages", msgapi.HandlerSendMessage(convs, users, evRelay))
	api.GET("/presence/online", msgapi.HandlerOnlineUsers())
	api.POST("/presence/statuses", msgapi.HandlerStatuses())

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Infof("[boot] gateway %s listening on %s", cfg.GatewayID, cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[boot] listen: %v", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Infof("[boot] shutting down")

	shctx, shcancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = httpSrv.Shutdown(shctx)
	shcancel()

	srv.Close()
	if relay != nil {
		relay.Close()
	}
	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = client.Disconnect(dctx)
	dcancel()
	logger.Sync()
}
