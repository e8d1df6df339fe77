package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jeloualonzo/amsuip-sub000/config"
	authcontroller "github.com/jeloualonzo/amsuip-sub000/controllers/auth"
	healthcontroller "github.com/jeloualonzo/amsuip-sub000/controllers/health"
	signaturecontroller "github.com/jeloualonzo/amsuip-sub000/controllers/signature"
	verifycontroller "github.com/jeloualonzo/amsuip-sub000/controllers/verify"
	"github.com/jeloualonzo/amsuip-sub000/embedding"
	"github.com/jeloualonzo/amsuip-sub000/middlewares"
	"github.com/jeloualonzo/amsuip-sub000/models"
	"github.com/jeloualonzo/amsuip-sub000/services"
)

func main() {
	config.Load()
	models.ConnectDatabase()

	generator := embedding.NewGenerator(
		config.ModelPath, config.EmbeddingDim, config.TargetWidth, config.TargetHeight)
	defer generator.Close()

	enrollService := services.NewEnrollmentService(generator)
	verifyService := services.NewVerificationService(generator)

	scheduler := services.StartScheduler(enrollService)
	defer scheduler.Stop()

	router := gin.Default()
	router.Use(cors.Default())
	router.MaxMultipartMemory = config.MaxUploadBytes

	router.GET("/health", healthcontroller.HealthHandler(generator))
	router.Static("/uploads", config.UploadDir)

	api := router.Group("/api")
	api.POST("/login", authcontroller.LoginHandler)

	authorized := api.Group("/", middlewares.RequireAuth())
	authorized.GET("/students/:id/signatures", signaturecontroller.ListSignaturesHandler)
	authorized.POST("/students/:id/signatures", signaturecontroller.UploadSignatureHandler)
	authorized.POST("/students/:id/signature/train", signaturecontroller.TrainSignatureHandler(enrollService))
	authorized.GET("/students/:id/signature/profile", signaturecontroller.ProfileStatusHandler)
	authorized.POST("/verify", verifycontroller.VerifyHandler(verifyService))
	authorized.GET("/verifications", verifycontroller.GetRecentVerificationsHandler)

	log.Printf("server listening on %s", config.ServerAddr)
	log.Fatal(router.Run(config.ServerAddr))
}
