package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/gin-gonic/gin"

	"lostandfound-exchange/claim"
	"lostandfound-exchange/config"
	"lostandfound-exchange/dao"
	"lostandfound-exchange/handler"
	"lostandfound-exchange/keyword"
	"lostandfound-exchange/match"
	"lostandfound-exchange/metrics"
	"lostandfound-exchange/notify"
	"lostandfound-exchange/server"
	"lostandfound-exchange/utils"
)

func main() {
	defer func() {
		r := recover()
		if r != nil {
			if err, ok := r.(error); ok {
				log.WithError(err).Error("exit")
			} else {
				log.Errorf("%v", r)
			}
			os.Exit(1)
		}
	}()
	log.SetHandler(text.New(os.Stderr))
	log.Info("Loading config...")
	cfg, err := config.Load()
	utils.CheckError(err, "读取配置文件")
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	gin.SetMode(gin.ReleaseMode)

	store, err := dao.Open(cfg.Database.Driver, cfg.Database.DSN)
	utils.CheckError(err, "数据库连接")
	defer store.Close()

	var publisher notify.Publisher
	if cfg.AMQP.URL != "" {
		p, err := notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
		utils.CheckError(err, "连接RabbitMQ")
		defer p.Close()
		publisher = p
	}

	var tagger handler.Tagger
	if cfg.Keyword.Enabled {
		extractor := keyword.NewExtractor()
		defer extractor.Free()
		tagger = extractor
	}

	metrics.Register()
	engine := match.NewEngine(store, cfg.Match.Threshold)
	sink := notify.NewSink(store, publisher)
	workflow := claim.NewWorkflow(store, sink)
	srv := server.New(cfg.Server, handler.NewHandlers(store, engine, workflow, sink, tagger))

	go func() {
		if err := srv.Start(); err != nil {
			log.WithError(err).Fatal("启动HTTP服务")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")
	if err := srv.Shutdown(30 * time.Second); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
}
