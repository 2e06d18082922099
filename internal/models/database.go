package models

// Database is the full persisted gradebook document.
type Database struct {
	Settings Settings      `json:"settings"`
	Subjects []Subject     `json:"subjects"`
	Students []Student     `json:"students"`
	Grades   []GradeRecord `json:"grades"`
}

// DefaultDatabase returns an empty gradebook with default settings.
func DefaultDatabase() Database {
	return Database{
		Settings: DefaultSettings(),
		Subjects: []Subject{},
		Students: []Student{},
		Grades:   []GradeRecord{},
	}
}

// Clone returns a deep copy of db.
func (db Database) Clone() Database {
	clone := Database{
		Settings: db.Settings.Clone(),
		Subjects: make([]Subject, len(db.Subjects)),
		Students: append([]Student{}, db.Students...),
		Grades:   make([]GradeRecord, len(db.Grades)),
	}
	for i, subject := range db.Subjects {
		clone.Subjects[i] = subject.Clone()
	}
	for i, grade := range db.Grades {
		clone.Grades[i] = grade.Clone()
	}
	return clone
}

// EnsureCollections replaces nil collections with empty ones so the document
// always encodes arrays and maps rather than null.
func (db *Database) EnsureCollections() {
	if db.Subjects == nil {
		db.Subjects = []Subject{}
	}
	if db.Students == nil {
		db.Students = []Student{}
	}
	if db.Grades == nil {
		db.Grades = []GradeRecord{}
	}
	if db.Settings.Users == nil {
		db.Settings.Users = []User{}
	}
	for i := range db.Subjects {
		if db.Subjects[i].CourseworkCategories == nil {
			db.Subjects[i].CourseworkCategories = []CourseworkCategory{}
		}
	}
}
