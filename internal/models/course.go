package models

// Course represents a course offering with its enrolled students stored as
// identifier references.
type Course struct {
	ID          string   `bson:"_id" json:"id"`
	Description string   `bson:"description" json:"description"`
	StudentIDs  []string `bson:"studentIds" json:"studentIds"`
}

// CourseDetail is the read-side view of a course with its student references
// resolved one level deep.
type CourseDetail struct {
	Course
	Students []Student `json:"students"`
}
