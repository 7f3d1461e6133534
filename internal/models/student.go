package models

// Student represents a learner enrolled in zero or more courses. Related
// courses are stored as identifier references; full objects are resolved at
// the API boundary.
type Student struct {
	ID        string   `bson:"_id" json:"id"`
	FirstName string   `bson:"firstName" json:"firstName"`
	LastName  string   `bson:"lastName" json:"lastName"`
	Email     string   `bson:"email" json:"email"`
	CourseIDs []string `bson:"courseIds" json:"courseIds"`
}

// StudentDetail is the read-side view of a student with its course
// references resolved one level deep. The resolved courses carry student id
// lists only, which keeps the otherwise cyclic graph finite.
type StudentDetail struct {
	Student
	Courses []Course `json:"courses"`
}
