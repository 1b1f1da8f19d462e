package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"pay-gateway-api/internal/adapter"
	"pay-gateway-api/internal/config"
	"pay-gateway-api/internal/dal"
	"pay-gateway-api/internal/dao"
	"pay-gateway-api/internal/engine"
	"pay-gateway-api/internal/handler"
	"pay-gateway-api/internal/idgen"
	"pay-gateway-api/internal/logger"
	"pay-gateway-api/internal/middleware"
	"pay-gateway-api/internal/mq"
	"pay-gateway-api/internal/notify"
)

func main() {
	// load config env
	config.Init()
	logger.Init()

	// init infra
	dal.InitDB()
	dal.InitRedis()
	dal.InitRabbitMQ()

	// idgen
	idgen.Init(1)

	// 渠道注册表从配置装载，进程内只读
	registry := adapter.BuildFromConfig(config.C.Channels)

	eng := engine.New(
		dao.NewStore(dal.DB),
		dal.NewRedisKV(dal.RedisClient),
		registry,
		mq.NewPublisher(),
		notify.NewTelegramAlerter(),
		nil, // 默认金额上限风控
		config.C,
		logger.Engine,
	)

	// 后台：重试/查证调度 + 商户通知消费
	go eng.RunScheduler(context.Background())
	go mq.StartConsumers()

	// http server
	if config.C.Server.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recover())
	r.Use(middleware.RequestLogger())

	v1 := r.Group("/api/v1")
	{
		oh := handler.NewOrderHandler(eng)
		rh := handler.NewRefundHandler(eng)
		ch := handler.NewCallbackHandler(eng)

		v1.POST("/orders", middleware.AuthHMAC(), oh.Create)
		v1.GET("/orders", oh.Query)
		v1.POST("/refunds", middleware.AuthHMAC(), rh.Create)
		// 上游回调不走商户验签，验签在各渠道适配器内完成
		v1.POST("/callbacks/:channel", ch.Receive)
	}

	addr := ":" + config.C.Server.Port
	log.Printf("listening %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal(err)
	}
}
