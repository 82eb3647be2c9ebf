package routes

import (
	"github.com/anjiri1684/tutor_fees/handlers"
	"github.com/anjiri1684/tutor_fees/middleware"
	"github.com/gofiber/fiber/v2"
)

func TeacherRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	teacher := api.Group("/teacher", middleware.Protected(), middleware.TeacherRequired())

	profile := teacher.Group("/profile")
	profile.Get("/me", handlers.GetMyTeacherProfile)
	profile.Put("/me", handlers.UpdateMyTeacherProfile)

	courses := teacher.Group("/courses")
	courses.Post("", handlers.CreateCourse)
	courses.Get("", handlers.GetMyCourses)
	courses.Post("/:courseId/enrollments", handlers.EnrollStudent)
	courses.Get("/:courseId/enrollments", handlers.GetCourseEnrollments)

	student := api.Group("/student", middleware.Protected(), middleware.StudentRequired())
	student.Get("/enrollments", handlers.GetMyEnrollments)
}
