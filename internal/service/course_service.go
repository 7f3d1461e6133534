package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/ntjsa/studentcrm/internal/models"
	appErrors "github.com/ntjsa/studentcrm/pkg/errors"
)

type courseRepository interface {
	FindAll(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Insert(ctx context.Context, course *models.Course) error
	Save(ctx context.Context, course *models.Course) error
	DeleteByID(ctx context.Context, id string) error
}

// CreateCourseRequest holds payload for creating courses.
type CreateCourseRequest struct {
	ID          string   `json:"id"`
	Description string   `json:"description" validate:"required,max=35"`
	StudentIDs  []string `json:"studentIds"`
}

// UpdateCourseRequest holds payload for updating courses. The identifier
// comes from the URL; an id in the body is ignored.
type UpdateCourseRequest struct {
	Description string   `json:"description" validate:"required,max=35"`
	StudentIDs  []string `json:"studentIds"`
}

// CourseService handles course use-cases and keeps student enrollments
// mutually consistent.
type CourseService struct {
	courses   courseRepository
	students  studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(courses courseRepository, students studentRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, students: students, validator: validate, logger: logger}
}

// List returns every course with student references resolved.
func (s *CourseService) List(ctx context.Context) ([]models.CourseDetail, error) {
	courses, err := s.courses.FindAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	details := make([]models.CourseDetail, 0, len(courses))
	for _, course := range courses {
		details = append(details, models.CourseDetail{
			Course:   course,
			Students: s.resolveStudents(ctx, course.StudentIDs),
		})
	}
	return details, nil
}

// Get returns the course with its student references resolved.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course with id [%s] does not exist", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return &models.CourseDetail{
		Course:   *course,
		Students: s.resolveStudents(ctx, course.StudentIDs),
	}, nil
}

// Create registers a new course, generating an id when none is supplied.
// Duplicate ids and descriptions are rejected by the gateway's unique
// indexes.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("data violates constraints: %v", err))
	}
	course := &models.Course{
		ID:          req.ID,
		Description: req.Description,
		StudentIDs:  normalizeIDs(req.StudentIDs),
	}
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if err := s.courses.Insert(ctx, course); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course with id [%s] or description [%s] already exists", course.ID, course.Description))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update replaces the stored course, keeping its original identifier, and
// pushes the inverse relationship into every student now listed.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("data violates constraints: %v", err))
	}
	original, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course with id [%s] does not exist", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	course := &models.Course{
		ID:          original.ID,
		Description: req.Description,
		StudentIDs:  normalizeIDs(req.StudentIDs),
	}
	s.syncStudents(ctx, course)
	if err := s.courses.Save(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete removes the course. Students that still reference it keep the
// dangling id; reads skip ids that no longer resolve.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.courses.FindByID(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course with id [%s] does not exist", id))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.courses.DeleteByID(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// syncStudents appends the course's id to every listed student that does
// not reference it yet. Best-effort, same policy as the student side.
func (s *CourseService) syncStudents(ctx context.Context, course *models.Course) {
	for _, studentID := range course.StudentIDs {
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				s.logger.Warn("sync skipped dangling student reference",
					zap.String("course_id", course.ID),
					zap.String("student_id", studentID))
			} else {
				s.logger.Error("sync failed to load student",
					zap.String("course_id", course.ID),
					zap.String("student_id", studentID),
					zap.Error(err))
			}
			continue
		}
		if containsID(student.CourseIDs, course.ID) {
			continue
		}
		student.CourseIDs = append(student.CourseIDs, course.ID)
		if err := s.students.Save(ctx, student); err != nil {
			s.logger.Error("sync failed to save student",
				zap.String("course_id", course.ID),
				zap.String("student_id", studentID),
				zap.Error(err))
		}
	}
}

// resolveStudents materialises student references for the read path,
// skipping ids that no longer resolve.
func (s *CourseService) resolveStudents(ctx context.Context, ids []string) []models.Student {
	students := make([]models.Student, 0, len(ids))
	for _, id := range ids {
		student, err := s.students.FindByID(ctx, id)
		if err != nil {
			if !errors.Is(err, mongo.ErrNoDocuments) {
				s.logger.Error("failed to resolve student reference", zap.String("student_id", id), zap.Error(err))
			}
			continue
		}
		students = append(students, *student)
	}
	return students
}
