package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ntjsa/studentcrm/internal/models"
)

// StudentRepository manages persistence for student documents.
type StudentRepository struct {
	coll    *mongo.Collection
	metrics QueryObserver
}

// NewStudentRepository constructs a StudentRepository over the students
// collection.
func NewStudentRepository(db *mongo.Database, metrics QueryObserver) *StudentRepository {
	return &StudentRepository{coll: db.Collection("students"), metrics: metrics}
}

// FindAll returns every student in storage order.
func (r *StudentRepository) FindAll(ctx context.Context) ([]models.Student, error) {
	defer observe(r.metrics, "students.find_all", time.Now())

	cursor, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find all students: %w", err)
	}
	students := []models.Student{}
	if err := cursor.All(ctx, &students); err != nil {
		return nil, fmt.Errorf("decode students: %w", err)
	}
	return students, nil
}

// FindByID returns the student with the given id. Returns
// mongo.ErrNoDocuments when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	defer observe(r.metrics, "students.find_by_id", time.Now())

	var student models.Student
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&student); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByEmail returns the student holding the given email. Returns
// mongo.ErrNoDocuments when absent.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	defer observe(r.metrics, "students.find_by_email", time.Now())

	var student models.Student
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&student); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByEmail reports whether any student holds the given email.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	defer observe(r.metrics, "students.exists_by_email", time.Now())

	count, err := r.coll.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count students by email: %w", err)
	}
	return count > 0, nil
}

// Insert stores a new student. The unique indexes on _id and email surface
// collisions as a duplicate-key write error.
func (r *StudentRepository) Insert(ctx context.Context, student *models.Student) error {
	defer observe(r.metrics, "students.insert", time.Now())

	_, err := r.coll.InsertOne(ctx, student)
	return err
}

// Save upserts the student by id without any uniqueness pre-check.
func (r *StudentRepository) Save(ctx context.Context, student *models.Student) error {
	defer observe(r.metrics, "students.save", time.Now())

	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": student.ID}, student, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save student %s: %w", student.ID, err)
	}
	return nil
}

// DeleteByID removes the student with the given id.
func (r *StudentRepository) DeleteByID(ctx context.Context, id string) error {
	defer observe(r.metrics, "students.delete_by_id", time.Now())

	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete student %s: %w", id, err)
	}
	return nil
}
