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

// CourseRepository manages persistence for course documents.
type CourseRepository struct {
	coll    *mongo.Collection
	metrics QueryObserver
}

// NewCourseRepository constructs a CourseRepository over the courses
// collection.
func NewCourseRepository(db *mongo.Database, metrics QueryObserver) *CourseRepository {
	return &CourseRepository{coll: db.Collection("courses"), metrics: metrics}
}

// FindAll returns every course in storage order.
func (r *CourseRepository) FindAll(ctx context.Context) ([]models.Course, error) {
	defer observe(r.metrics, "courses.find_all", time.Now())

	cursor, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find all courses: %w", err)
	}
	courses := []models.Course{}
	if err := cursor.All(ctx, &courses); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	return courses, nil
}

// FindByID returns the course with the given id. Returns
// mongo.ErrNoDocuments when absent.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	defer observe(r.metrics, "courses.find_by_id", time.Now())

	var course models.Course
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&course); err != nil {
		return nil, err
	}
	return &course, nil
}

// Insert stores a new course. The unique indexes on _id and description
// surface collisions as a duplicate-key write error.
func (r *CourseRepository) Insert(ctx context.Context, course *models.Course) error {
	defer observe(r.metrics, "courses.insert", time.Now())

	_, err := r.coll.InsertOne(ctx, course)
	return err
}

// Save upserts the course by id without any uniqueness pre-check.
func (r *CourseRepository) Save(ctx context.Context, course *models.Course) error {
	defer observe(r.metrics, "courses.save", time.Now())

	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": course.ID}, course, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save course %s: %w", course.ID, err)
	}
	return nil
}

// DeleteByID removes the course with the given id.
func (r *CourseRepository) DeleteByID(ctx context.Context, id string) error {
	defer observe(r.metrics, "courses.delete_by_id", time.Now())

	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete course %s: %w", id, err)
	}
	return nil
}
