package main

import (
	"database/sql"
	"log"
	"time"

	config "github.com/anjiri1684/tutor_fees/configs"
	"github.com/anjiri1684/tutor_fees/database"
	"github.com/anjiri1684/tutor_fees/handlers"
	"github.com/anjiri1684/tutor_fees/jobs"
	"github.com/anjiri1684/tutor_fees/notifications"
	"github.com/anjiri1684/tutor_fees/routes"
	"github.com/anjiri1684/tutor_fees/services"
	"github.com/anjiri1684/tutor_fees/websocket"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	var email notifications.EmailSender
	if notifications.EmailClient != nil {
		email = notifications.EmailClient
	}
	dispatcher := notifications.NewDispatcher(database.DB, email, websocket.HubPusher{})

	directory := services.NewGormEnrollmentDirectory(database.DB)
	isolation := services.WithIsolation(sql.LevelSerializable)
	plans := services.NewFeePlanService(database.DB, directory, dispatcher, isolation)
	ledger := services.NewPaymentLedger(database.DB, directory, dispatcher, isolation)

	feeHandler := &handlers.FeeHandler{Plans: plans, Ledger: ledger, Directory: directory}
	if cloudinaryURL := config.Config("CLOUDINARY_URL"); cloudinaryURL != "" {
		store, err := services.NewCloudinaryStore(cloudinaryURL, "tutor_fees_statements")
		if err != nil {
			log.Printf("🔥 Fee statements disabled: %v", err)
		} else {
			feeHandler.Statements = services.NewStatementService(plans, services.ChromePDFRenderer{}, store)
		}
	}

	reminder := &jobs.FeeReminder{Source: plans, Notifier: dispatcher}
	c := cron.New()
	if _, err := c.AddFunc(config.ConfigDefault("FEE_REMINDER_CRON", "0 8 * * *"), reminder.SendOverdueReminders); err != nil {
		log.Fatalf("🔥 Invalid FEE_REMINDER_CRON: %v", err)
	}
	go c.Start()
	log.Println("✅ Cron job for overdue fee reminders scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "Tutor Fees",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		JSONEncoder:       sonic.Marshal,
		JSONDecoder:       sonic.Unmarshal,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  config.ConfigDefault("CORS_ORIGINS", "*"),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Africa/Nairobi",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Tutor Fees API",
		})
	})

	routes.AuthRoutes(app)
	routes.ProfileRoutes(app)
	routes.TeacherRoutes(app)
	routes.AdminRoutes(app)
	routes.UploadRoutes(app)
	routes.FeeRoutes(app, feeHandler)
	routes.NotificationRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	port := config.ConfigDefault("PORT", "8080")
	log.Printf("✅ Server is running on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
	c.Stop()
	dispatcher.Wait()
}
