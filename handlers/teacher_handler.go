package handlers

import (
	"errors"
	"strings"

	"github.com/anjiri1684/tutor_fees/database"
	"github.com/anjiri1684/tutor_fees/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func GetMyTeacherProfile(c *fiber.Ctx) error {
	teacherID, _ := currentUser(c)

	var teacher models.Teacher
	if err := database.DB.Preload("User").First(&teacher, "user_id = ?", teacherID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher profile not found"})
	}
	return c.JSON(teacher)
}

func UpdateMyTeacherProfile(c *fiber.Ctx) error {
	teacherID, _ := currentUser(c)

	type UpdateRequest struct {
		Headline *string `json:"headline"`
		Bio      *string `json:"bio"`
		Currency *string `json:"currency" validate:"omitempty,len=3,alpha"`
	}
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var teacher models.Teacher
	if err := database.DB.First(&teacher, "user_id = ?", teacherID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher profile not found"})
	}

	if req.Headline != nil {
		teacher.Headline = req.Headline
	}
	if req.Bio != nil {
		teacher.Bio = req.Bio
	}
	if req.Currency != nil {
		teacher.Currency = strings.ToUpper(*req.Currency)
	}
	if err := database.DB.Save(&teacher).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update teacher profile"})
	}

	return c.JSON(teacher)
}

type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required,min=2,max=255"`
	Description *string `json:"description"`
}

func CreateCourse(c *fiber.Ctx) error {
	teacherID, _ := currentUser(c)

	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	course := models.Course{
		TeacherID:   teacherID,
		Title:       req.Title,
		Description: req.Description,
		IsActive:    true,
	}
	if err := database.DB.Create(&course).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create course"})
	}

	return c.Status(fiber.StatusCreated).JSON(course)
}

func GetMyCourses(c *fiber.Ctx) error {
	teacherID, _ := currentUser(c)

	var courses []models.Course
	if err := database.DB.Where("teacher_id = ?", teacherID).Order("created_at desc").Find(&courses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch courses"})
	}
	return c.JSON(courses)
}

// ownedCourse loads a course from the :courseId param, restricted to the
// calling teacher unless the caller is an admin.
func ownedCourse(c *fiber.Ctx) (*models.Course, error) {
	courseID, err := uuidParam(c, "courseId")
	if err != nil {
		return nil, err
	}
	userID, role := currentUser(c)

	var course models.Course
	if err := database.DB.First(&course, "id = ?", courseID).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Course not found")
	}
	if role != models.RoleAdmin && course.TeacherID != userID {
		return nil, fiber.NewError(fiber.StatusForbidden, "You do not own this course")
	}
	return &course, nil
}

type EnrollStudentRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func EnrollStudent(c *fiber.Ctx) error {
	course, err := ownedCourse(c)
	if err != nil {
		return feeError(c, err)
	}

	var req EnrollStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var student models.User
	if err := database.DB.Where("email = ? AND role = ?", strings.ToLower(req.Email), models.RoleStudent).First(&student).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	}

	enrollment := models.Enrollment{
		StudentID: student.ID,
		CourseID:  course.ID,
		Status:    models.EnrollmentStatusActive,
	}
	if err := database.DB.Create(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Student is already enrolled in this course"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to enroll student"})
	}
	enrollment.Student = student

	return c.Status(fiber.StatusCreated).JSON(enrollment)
}

func GetCourseEnrollments(c *fiber.Ctx) error {
	course, err := ownedCourse(c)
	if err != nil {
		return feeError(c, err)
	}

	var enrollments []models.Enrollment
	if err := database.DB.Preload("Student").Where("course_id = ?", course.ID).Order("enrolled_at asc").Find(&enrollments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch enrollments"})
	}
	return c.JSON(enrollments)
}

func GetMyEnrollments(c *fiber.Ctx) error {
	studentID, _ := currentUser(c)

	var enrollments []models.Enrollment
	if err := database.DB.Preload("Course").Where("student_id = ?", studentID).Order("enrolled_at desc").Find(&enrollments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch enrollments"})
	}
	return c.JSON(enrollments)
}
