package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/ntjsa/studentcrm/internal/models"
	appErrors "github.com/ntjsa/studentcrm/pkg/errors"
)

func duplicateKeyErr() error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
}

type mockStudentRepo struct {
	students map[string]models.Student
	saveErr  error
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]models.Student)}
}

func (m *mockStudentRepo) FindAll(ctx context.Context) ([]models.Student, error) {
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockStudentRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, s := range m.students {
		if s.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Insert(ctx context.Context, student *models.Student) error {
	if _, ok := m.students[student.ID]; ok {
		return duplicateKeyErr()
	}
	for _, s := range m.students {
		if s.Email == student.Email {
			return duplicateKeyErr()
		}
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Save(ctx context.Context, student *models.Student) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) DeleteByID(ctx context.Context, id string) error {
	delete(m.students, id)
	return nil
}

type mockCourseRepo struct {
	courses map[string]models.Course
	saveErr error
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[string]models.Course)}
}

func (m *mockCourseRepo) FindAll(ctx context.Context) ([]models.Course, error) {
	out := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockCourseRepo) Insert(ctx context.Context, course *models.Course) error {
	if _, ok := m.courses[course.ID]; ok {
		return duplicateKeyErr()
	}
	for _, c := range m.courses {
		if c.Description == course.Description {
			return duplicateKeyErr()
		}
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Save(ctx context.Context, course *models.Course) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) DeleteByID(ctx context.Context, id string) error {
	delete(m.courses, id)
	return nil
}

func newStudentService(students *mockStudentRepo, courses *mockCourseRepo) *StudentService {
	return NewStudentService(students, courses, validator.New(), zap.NewNop())
}

func TestStudentServiceCreateAndGet(t *testing.T) {
	students := newMockStudentRepo()
	svc := newStudentService(students, newMockCourseRepo())

	created, err := svc.Create(context.Background(), CreateStudentRequest{
		ID:        "1",
		FirstName: "first",
		LastName:  "last",
		Email:     "a@email.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", created.ID)

	got, err := svc.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, *created, got.Student)
	assert.Empty(t, got.Courses)
}

func TestStudentServiceCreateGeneratesID(t *testing.T) {
	svc := newStudentService(newMockStudentRepo(), newMockCourseRepo())

	created, err := svc.Create(context.Background(), CreateStudentRequest{
		FirstName: "first",
		LastName:  "last",
		Email:     "gen@email.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestStudentServiceCreateDuplicateEmail(t *testing.T) {
	students := newMockStudentRepo()
	students.students["2"] = models.Student{ID: "2", FirstName: "a", LastName: "b", Email: "dup@email.com"}
	svc := newStudentService(students, newMockCourseRepo())

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		ID:        "3",
		FirstName: "c",
		LastName:  "d",
		Email:     "dup@email.com",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Status, appErrors.FromError(err).Status)
}

func TestStudentServiceCreateDuplicateID(t *testing.T) {
	students := newMockStudentRepo()
	students.students["1"] = models.Student{ID: "1", FirstName: "a", LastName: "b", Email: "one@email.com"}
	svc := newStudentService(students, newMockCourseRepo())

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		ID:        "1",
		FirstName: "c",
		LastName:  "d",
		Email:     "other@email.com",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Status, appErrors.FromError(err).Status)
}

func TestStudentServiceCreateInvalidEmail(t *testing.T) {
	svc := newStudentService(newMockStudentRepo(), newMockCourseRepo())

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		ID:        "1",
		FirstName: "first",
		LastName:  "last",
		Email:     "not-an-email",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestStudentServiceCreateFirstNameTooLong(t *testing.T) {
	svc := newStudentService(newMockStudentRepo(), newMockCourseRepo())

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		ID:        "1",
		FirstName: "abcdefghijklmnopqrstu",
		LastName:  "last",
		Email:     "a@email.com",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestStudentServiceUpdateKeepsID(t *testing.T) {
	students := newMockStudentRepo()
	students.students["1"] = models.Student{ID: "1", FirstName: "old", LastName: "name", Email: "a@email.com", CourseIDs: []string{}}
	svc := newStudentService(students, newMockCourseRepo())

	updated, err := svc.Update(context.Background(), "1", UpdateStudentRequest{
		FirstName: "new",
		LastName:  "name",
		Email:     "a@email.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", updated.ID)
	assert.Equal(t, "new", updated.FirstName)
	assert.Equal(t, "new", students.students["1"].FirstName)
}

func TestStudentServiceUpdateNotFound(t *testing.T) {
	svc := newStudentService(newMockStudentRepo(), newMockCourseRepo())

	_, err := svc.Update(context.Background(), "missing", UpdateStudentRequest{
		FirstName: "a",
		LastName:  "b",
		Email:     "a@email.com",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestStudentServiceUpdateEmailCollision(t *testing.T) {
	students := newMockStudentRepo()
	students.students["1"] = models.Student{ID: "1", FirstName: "a", LastName: "b", Email: "one@email.com"}
	students.students["2"] = models.Student{ID: "2", FirstName: "c", LastName: "d", Email: "two@email.com"}
	svc := newStudentService(students, newMockCourseRepo())

	_, err := svc.Update(context.Background(), "1", UpdateStudentRequest{
		FirstName: "a",
		LastName:  "b",
		Email:     "two@email.com",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Status, appErrors.FromError(err).Status)
}

func TestStudentServiceUpdateKeepingEmailIsNotACollision(t *testing.T) {
	students := newMockStudentRepo()
	students.students["1"] = models.Student{ID: "1", FirstName: "a", LastName: "b", Email: "one@email.com"}
	svc := newStudentService(students, newMockCourseRepo())

	_, err := svc.Update(context.Background(), "1", UpdateStudentRequest{
		FirstName: "renamed",
		LastName:  "b",
		Email:     "one@email.com",
	})
	require.NoError(t, err)
}

func TestStudentServiceUpdateSyncsCourses(t *testing.T) {
	students := newMockStudentRepo()
	students.students["1"] = models.Student{ID: "1", FirstName: "a", LastName: "b", Email: "a@email.com", CourseIDs: []string{}}
	courses := newMockCourseRepo()
	courses.courses["c1"] = models.Course{ID: "c1", Description: "d1", StudentIDs: []string{}}
	svc := newStudentService(students, courses)

	req := UpdateStudentRequest{FirstName: "a", LastName: "b", Email: "a@email.com", CourseIDs: []string{"c1"}}
	_, err := svc.Update(context.Background(), "1", req)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, courses.courses["c1"].StudentIDs)

	// repeating the identical update must not append a second entry
	_, err = svc.Update(context.Background(), "1", req)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, courses.courses["c1"].StudentIDs)
}

func TestStudentServiceUpdateSyncSkipsDanglingCourse(t *testing.T) {
	students := newMockStudentRepo()
	students.students["1"] = models.Student{ID: "1", FirstName: "a", LastName: "b", Email: "a@email.com"}
	svc := newStudentService(students, newMockCourseRepo())

	updated, err := svc.Update(context.Background(), "1", UpdateStudentRequest{
		FirstName: "a",
		LastName:  "b",
		Email:     "a@email.com",
		CourseIDs: []string{"ghost"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, updated.CourseIDs)

	// the read path drops the reference that no longer resolves
	got, err := svc.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, got.Courses)
}

func TestStudentServiceUpdateSyncSaveFailureDoesNotAbort(t *testing.T) {
	students := newMockStudentRepo()
	students.students["1"] = models.Student{ID: "1", FirstName: "a", LastName: "b", Email: "a@email.com"}
	courses := newMockCourseRepo()
	courses.courses["c1"] = models.Course{ID: "c1", Description: "d1", StudentIDs: []string{}}
	courses.saveErr = assert.AnError
	svc := newStudentService(students, courses)

	updated, err := svc.Update(context.Background(), "1", UpdateStudentRequest{
		FirstName: "a",
		LastName:  "b",
		Email:     "a@email.com",
		CourseIDs: []string{"c1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, students.students["1"].CourseIDs)
	assert.Equal(t, []string{"c1"}, updated.CourseIDs)
}

func TestStudentServiceDelete(t *testing.T) {
	students := newMockStudentRepo()
	students.students["1"] = models.Student{ID: "1", FirstName: "a", LastName: "b", Email: "a@email.com"}
	svc := newStudentService(students, newMockCourseRepo())

	require.NoError(t, svc.Delete(context.Background(), "1"))

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	err = svc.Delete(context.Background(), "1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc := newStudentService(newMockStudentRepo(), newMockCourseRepo())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErr.Status)
	assert.Contains(t, appErr.Message, "missing")
}
