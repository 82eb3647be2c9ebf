package routes

import (
	"github.com/anjiri1684/tutor_fees/handlers"
	"github.com/anjiri1684/tutor_fees/middleware"
	"github.com/gofiber/fiber/v2"
)

func FeeRoutes(app *fiber.App, h *handlers.FeeHandler) {
	api := app.Group("/api/v1")

	fees := api.Group("/fees", middleware.Protected())
	fees.Get("/lookup", middleware.TeacherOrAdmin(), h.LookupEnrollment)

	enrollment := fees.Group("/enrollments/:enrollmentId")
	enrollment.Get("/plan", h.GetFeePlan)
	enrollment.Get("/payments", h.ListPayments)
	enrollment.Get("/statement", h.GetStatement)
	enrollment.Put("/plan", middleware.TeacherOrAdmin(), h.SetFeePlan)
	enrollment.Delete("/plan", middleware.TeacherOrAdmin(), h.DeleteFeePlan)
	enrollment.Post("/monthly-fees", middleware.TeacherOrAdmin(), h.AddMonthlyFee)
	enrollment.Post("/payments", middleware.TeacherOrAdmin(), h.RecordPayment)

	enrollment.Put("/end", middleware.TeacherOrAdmin(), h.EndEnrollment)

	fees.Put("/installments/:installmentId/status", middleware.TeacherOrAdmin(), h.MarkInstallment)
	fees.Put("/monthly-fees/:monthlyFeeId/status", middleware.TeacherOrAdmin(), h.MarkMonthlyFee)
	fees.Put("/payments/:paymentId", middleware.TeacherOrAdmin(), h.UpdatePayment)
	fees.Delete("/payments/:paymentId", middleware.TeacherOrAdmin(), h.DeletePayment)
	fees.Put("/payments/:paymentId/receipt", middleware.TeacherOrAdmin(), h.AttachReceipt)

	api.Get("/student/fees", middleware.Protected(), middleware.StudentRequired(), h.GetStudentFees)
	api.Get("/teacher/fees", middleware.Protected(), middleware.TeacherRequired(), h.GetTeacherFees)
}
