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

type studentRepository interface {
	FindAll(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Insert(ctx context.Context, student *models.Student) error
	Save(ctx context.Context, student *models.Student) error
	DeleteByID(ctx context.Context, id string) error
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName" validate:"required,max=20"`
	LastName  string   `json:"lastName" validate:"required,max=20"`
	Email     string   `json:"email" validate:"required,email"`
	CourseIDs []string `json:"courseIds"`
}

// UpdateStudentRequest holds payload for updating students. The identifier
// comes from the URL; an id in the body is ignored.
type UpdateStudentRequest struct {
	FirstName string   `json:"firstName" validate:"required,max=20"`
	LastName  string   `json:"lastName" validate:"required,max=20"`
	Email     string   `json:"email" validate:"required,email"`
	CourseIDs []string `json:"courseIds"`
}

// StudentService handles student use-cases and keeps course enrollments
// mutually consistent.
type StudentService struct {
	students  studentRepository
	courses   courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(students studentRepository, courses courseRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{students: students, courses: courses, validator: validate, logger: logger}
}

// List returns every student with course references resolved.
func (s *StudentService) List(ctx context.Context) ([]models.StudentDetail, error) {
	students, err := s.students.FindAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	details := make([]models.StudentDetail, 0, len(students))
	for _, student := range students {
		details = append(details, models.StudentDetail{
			Student: student,
			Courses: s.resolveCourses(ctx, student.CourseIDs),
		})
	}
	return details, nil
}

// Get returns the student with its course references resolved.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student with id [%s] was not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return &models.StudentDetail{
		Student: *student,
		Courses: s.resolveCourses(ctx, student.CourseIDs),
	}, nil
}

// Create registers a new student, generating an id when none is supplied.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("data violates constraints: %v", err))
	}
	exists, err := s.students.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student with email [%s] already exists", req.Email))
	}
	student := &models.Student{
		ID:        req.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		CourseIDs: normalizeIDs(req.CourseIDs),
	}
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if err := s.students.Insert(ctx, student); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student with id [%s] or email [%s] already exists", student.ID, student.Email))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update replaces the stored student, keeping its original identifier, and
// pushes the inverse relationship into every course now listed.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("data violates constraints: %v", err))
	}
	original, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student with id [%s] was not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if req.Email != original.Email {
		exists, err := s.students.ExistsByEmail(ctx, req.Email)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student with email [%s] already exists", req.Email))
		}
	}
	student := &models.Student{
		ID:        original.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		CourseIDs: normalizeIDs(req.CourseIDs),
	}
	s.syncCourses(ctx, student)
	if err := s.students.Save(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes the student. Courses that still reference it keep the
// dangling id; reads skip ids that no longer resolve.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.students.FindByID(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student with id [%s] was not found", id))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.students.DeleteByID(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// syncCourses appends the student's id to every listed course that does not
// reference it yet. Sync is best-effort: a course that cannot be loaded or
// written is logged and skipped, the primary write still proceeds.
func (s *StudentService) syncCourses(ctx context.Context, student *models.Student) {
	for _, courseID := range student.CourseIDs {
		course, err := s.courses.FindByID(ctx, courseID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				s.logger.Warn("sync skipped dangling course reference",
					zap.String("student_id", student.ID),
					zap.String("course_id", courseID))
			} else {
				s.logger.Error("sync failed to load course",
					zap.String("student_id", student.ID),
					zap.String("course_id", courseID),
					zap.Error(err))
			}
			continue
		}
		if containsID(course.StudentIDs, student.ID) {
			continue
		}
		course.StudentIDs = append(course.StudentIDs, student.ID)
		if err := s.courses.Save(ctx, course); err != nil {
			s.logger.Error("sync failed to save course",
				zap.String("student_id", student.ID),
				zap.String("course_id", courseID),
				zap.Error(err))
		}
	}
}

// resolveCourses materialises course references for the read path, skipping
// ids that no longer resolve.
func (s *StudentService) resolveCourses(ctx context.Context, ids []string) []models.Course {
	courses := make([]models.Course, 0, len(ids))
	for _, id := range ids {
		course, err := s.courses.FindByID(ctx, id)
		if err != nil {
			if !errors.Is(err, mongo.ErrNoDocuments) {
				s.logger.Error("failed to resolve course reference", zap.String("course_id", id), zap.Error(err))
			}
			continue
		}
		courses = append(courses, *course)
	}
	return courses
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func normalizeIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
