package service

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook/internal/models"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
)

type snapshotScheduler interface {
	Schedule(db models.Database)
}

// Mutation names used in logs and metrics.
const (
	opAddSubject     = "add_subject"
	opUpdateSubject  = "update_subject"
	opDeleteSubject  = "delete_subject"
	opAddStudent     = "add_student"
	opUpdateStudent  = "update_student"
	opImportStudents = "import_students"
	opUpsertGrade    = "upsert_grade"
	opUpdateAbsences = "update_absences"
	opUpdateSettings = "update_settings"
)

// GradebookStore owns the subjects, students, grade records and settings.
// Mutators run one at a time; every successful mutator hands exactly one
// snapshot of the committed state to the scheduler. Values returned by the
// store are copies.
type GradebookStore struct {
	mu         sync.RWMutex
	db         models.Database
	gradeIndex map[models.GradeKey]int

	validator *DomainValidator
	scheduler snapshotScheduler
	metrics   *MetricsService
	logger    *zap.Logger
	newID     func() string
}

// NewGradebookStore builds a store over initial. Grade records sharing a
// (subject, student) pair are collapsed, keeping the last one.
func NewGradebookStore(initial models.Database, scheduler snapshotScheduler, validator *DomainValidator, metrics *MetricsService, logger *zap.Logger) *GradebookStore {
	if validator == nil {
		validator = NewDomainValidator(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db := initial.Clone()
	db.EnsureCollections()

	store := &GradebookStore{
		validator: validator,
		scheduler: scheduler,
		metrics:   metrics,
		logger:    logger,
		newID:     uuid.NewString,
	}
	store.db = db
	store.rebuildGradeIndex()
	return store
}

// OpenGradebook loads the persisted gradebook through gateway and builds the
// store on top of it. A load failure is logged and the store starts from the
// defaults, so the returned store is always usable.
func OpenGradebook(ctx context.Context, gateway *SyncGateway, validator *DomainValidator, metrics *MetricsService, logger *zap.Logger) *GradebookStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gateway.Load(ctx)
	if err != nil {
		logger.Warn("gradebook load failed, starting from defaults", zap.Error(err))
	}
	return NewGradebookStore(db, gateway, validator, metrics, logger)
}

func (s *GradebookStore) rebuildGradeIndex() {
	index := make(map[models.GradeKey]int, len(s.db.Grades))
	grades := make([]models.GradeRecord, 0, len(s.db.Grades))
	for _, grade := range s.db.Grades {
		if pos, ok := index[grade.Key()]; ok {
			s.logger.Warn("duplicate grade record collapsed", zap.String("subject_id", grade.SubjectID), zap.String("student_id", grade.StudentID))
			grades[pos] = grade
			continue
		}
		index[grade.Key()] = len(grades)
		grades = append(grades, grade)
	}
	s.db.Grades = grades
	s.gradeIndex = index
}

// commit must be called with the write lock held after a successful change.
func (s *GradebookStore) commit(op string) {
	s.metrics.RecordMutation(op, true)
	if s.scheduler != nil {
		s.scheduler.Schedule(s.db.Clone())
	}
	s.logger.Debug("gradebook mutation committed", zap.String("op", op))
}

func (s *GradebookStore) reject(op string, err error) error {
	s.metrics.RecordMutation(op, false)
	s.logger.Debug("gradebook mutation rejected", zap.String("op", op), zap.Error(err))
	return err
}

func (s *GradebookStore) subjectIndex(id string) int {
	for i, subject := range s.db.Subjects {
		if subject.ID == id {
			return i
		}
	}
	return -1
}

func (s *GradebookStore) studentIndex(id string) int {
	for i, student := range s.db.Students {
		if student.ID == id {
			return i
		}
	}
	return -1
}

func subjectNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
}

func studentNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

func (s *GradebookStore) prepareSubject(subject models.Subject) models.Subject {
	prepared := subject.Clone()
	for i := range prepared.CourseworkCategories {
		if prepared.CourseworkCategories[i].ID == "" {
			prepared.CourseworkCategories[i].ID = s.newID()
		}
	}
	return prepared
}

// AddSubject inserts subject, generating an id when none is given.
func (s *GradebookStore) AddSubject(subject models.Subject) (models.Subject, error) {
	prepared := s.prepareSubject(subject)
	if prepared.ID == "" {
		prepared.ID = s.newID()
	}
	if err := s.validator.ValidateSubject(prepared).Err(); err != nil {
		return models.Subject{}, s.reject(opAddSubject, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subjectIndex(prepared.ID) >= 0 {
		return models.Subject{}, s.reject(opAddSubject, appErrors.Clone(appErrors.ErrConflict, "subject id already exists"))
	}
	s.db.Subjects = append(s.db.Subjects, prepared)
	s.commit(opAddSubject)
	return prepared.Clone(), nil
}

// UpdateSubject replaces the subject with the same id.
func (s *GradebookStore) UpdateSubject(subject models.Subject) (models.Subject, error) {
	prepared := s.prepareSubject(subject)
	if err := s.validator.ValidateSubject(prepared).Err(); err != nil {
		return models.Subject{}, s.reject(opUpdateSubject, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.subjectIndex(prepared.ID)
	if prepared.ID == "" || idx < 0 {
		return models.Subject{}, s.reject(opUpdateSubject, subjectNotFound())
	}
	s.db.Subjects[idx] = prepared
	s.commit(opUpdateSubject)
	return prepared.Clone(), nil
}

// DeleteSubject removes the subject. Its grade records stay in the store.
func (s *GradebookStore) DeleteSubject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.subjectIndex(id)
	if id == "" || idx < 0 {
		return s.reject(opDeleteSubject, subjectNotFound())
	}
	s.db.Subjects = append(s.db.Subjects[:idx], s.db.Subjects[idx+1:]...)
	s.commit(opDeleteSubject)
	return nil
}

// AddStudent inserts student. Usernames are not checked for uniqueness here.
func (s *GradebookStore) AddStudent(student models.Student) (models.Student, error) {
	if student.ID == "" {
		student.ID = s.newID()
	}
	if err := s.validator.ValidateStudent(student).Err(); err != nil {
		return models.Student{}, s.reject(opAddStudent, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.studentIndex(student.ID) >= 0 {
		return models.Student{}, s.reject(opAddStudent, appErrors.Clone(appErrors.ErrConflict, "student id already exists"))
	}
	s.db.Students = append(s.db.Students, student)
	s.commit(opAddStudent)
	return student, nil
}

// UpdateStudent replaces the student with the same id.
func (s *GradebookStore) UpdateStudent(student models.Student) (models.Student, error) {
	if err := s.validator.ValidateStudent(student).Err(); err != nil {
		return models.Student{}, s.reject(opUpdateStudent, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.studentIndex(student.ID)
	if student.ID == "" || idx < 0 {
		return models.Student{}, s.reject(opUpdateStudent, studentNotFound())
	}
	s.db.Students[idx] = student
	s.commit(opUpdateStudent)
	return student, nil
}

// ImportStudents appends candidates whose username is not taken yet, either
// by an existing student or by an earlier candidate of the same batch.
// Invalid candidates are skipped as well.
func (s *GradebookStore) ImportStudents(candidates []models.Student) models.ImportSummary {
	summary := models.ImportSummary{Added: []models.Student{}, Skipped: []string{}}

	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]struct{}, len(s.db.Students)+len(candidates))
	for _, student := range s.db.Students {
		taken[student.Username] = struct{}{}
	}
	for _, candidate := range candidates {
		if _, ok := taken[candidate.Username]; ok {
			summary.Skipped = append(summary.Skipped, candidate.Username)
			continue
		}
		if candidate.ID == "" || s.studentIndex(candidate.ID) >= 0 {
			candidate.ID = s.newID()
		}
		if !s.validator.ValidateStudent(candidate).Valid() {
			summary.Skipped = append(summary.Skipped, candidate.Username)
			continue
		}
		taken[candidate.Username] = struct{}{}
		s.db.Students = append(s.db.Students, candidate)
		summary.Added = append(summary.Added, candidate)
	}

	s.metrics.RecordImport(len(summary.Added), len(summary.Skipped))
	if len(summary.Added) == 0 {
		s.metrics.RecordMutation(opImportStudents, false)
		return summary
	}
	s.commit(opImportStudents)
	return summary
}

// UpsertGradeRecord replaces or inserts the record for its (subject, student)
// pair. The total is always recomputed from the component scores.
func (s *GradebookStore) UpsertGradeRecord(record models.GradeRecord) (models.GradeRecord, error) {
	prepared := record.Clone()
	if err := s.validator.ValidateGradeRecord(prepared).Err(); err != nil {
		return models.GradeRecord{}, s.reject(opUpsertGrade, err)
	}
	prepared.NormalizeAbsences()
	prepared = WithTotal(prepared)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensurePair(prepared.SubjectID, prepared.StudentID); err != nil {
		return models.GradeRecord{}, s.reject(opUpsertGrade, err)
	}
	s.putGrade(prepared)
	s.commit(opUpsertGrade)
	return prepared.Clone(), nil
}

// UpdateAbsences removes the remove date, when given, and then records add,
// when given. Both the date list and the type map change together. Adding a
// date that is already recorded keeps the existing entry.
func (s *GradebookStore) UpdateAbsences(subjectID, studentID string, add *models.AbsenceEntry, remove string) (models.GradeRecord, error) {
	if add == nil && remove == "" {
		return models.GradeRecord{}, s.reject(opUpdateAbsences, appErrors.Clone(appErrors.ErrValidation, "add or remove is required"))
	}
	if add != nil {
		if err := s.validator.ValidateAbsenceEntry(*add).Err(); err != nil {
			return models.GradeRecord{}, s.reject(opUpdateAbsences, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensurePair(subjectID, studentID); err != nil {
		return models.GradeRecord{}, s.reject(opUpdateAbsences, err)
	}
	record := s.gradeFor(subjectID, studentID)
	if remove != "" {
		record.RemoveAbsence(remove)
	}
	if add != nil {
		record.AddAbsence(add.Date, add.Type)
	}
	record = WithTotal(record)
	s.putGrade(record)
	s.commit(opUpdateAbsences)
	return record.Clone(), nil
}

// UpdateSettings merges patch into the current settings.
func (s *GradebookStore) UpdateSettings(patch models.SettingsPatch) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := patch.Apply(s.db.Settings)
	if err := s.validator.ValidateSettings(merged).Err(); err != nil {
		return models.Settings{}, s.reject(opUpdateSettings, err)
	}
	s.db.Settings = merged
	s.commit(opUpdateSettings)
	return merged.Clone(), nil
}

func (s *GradebookStore) ensurePair(subjectID, studentID string) error {
	if s.subjectIndex(subjectID) < 0 {
		return subjectNotFound()
	}
	if s.studentIndex(studentID) < 0 {
		return studentNotFound()
	}
	return nil
}

func (s *GradebookStore) putGrade(record models.GradeRecord) {
	if pos, ok := s.gradeIndex[record.Key()]; ok {
		s.db.Grades[pos] = record
		return
	}
	s.gradeIndex[record.Key()] = len(s.db.Grades)
	s.db.Grades = append(s.db.Grades, record)
}

// gradeFor returns a copy of the stored record or a fresh empty one.
func (s *GradebookStore) gradeFor(subjectID, studentID string) models.GradeRecord {
	if pos, ok := s.gradeIndex[models.GradeKey{SubjectID: subjectID, StudentID: studentID}]; ok {
		return s.db.Grades[pos].Clone()
	}
	return models.EmptyGradeRecord(subjectID, studentID)
}

// ListSubjects returns all subjects in insertion order.
func (s *GradebookStore) ListSubjects() []models.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subjects := make([]models.Subject, len(s.db.Subjects))
	for i, subject := range s.db.Subjects {
		subjects[i] = subject.Clone()
	}
	return subjects
}

// GetSubject returns the subject with id.
func (s *GradebookStore) GetSubject(id string) (models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.subjectIndex(id)
	if idx < 0 {
		return models.Subject{}, subjectNotFound()
	}
	return s.db.Subjects[idx].Clone(), nil
}

// ListStudents returns students whose full name or username contains search,
// ignoring case. An empty search returns everyone.
func (s *GradebookStore) ListStudents(search string) []models.Student {
	needle := strings.ToLower(strings.TrimSpace(search))
	s.mu.RLock()
	defer s.mu.RUnlock()
	students := make([]models.Student, 0, len(s.db.Students))
	for _, student := range s.db.Students {
		if needle != "" &&
			!strings.Contains(strings.ToLower(student.FullName), needle) &&
			!strings.Contains(strings.ToLower(student.Username), needle) {
			continue
		}
		students = append(students, student)
	}
	return students
}

// GetStudent returns the student with id.
func (s *GradebookStore) GetStudent(id string) (models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.studentIndex(id)
	if idx < 0 {
		return models.Student{}, studentNotFound()
	}
	return s.db.Students[idx], nil
}

// GradeFor returns the record of the pair, or an empty record when none exists.
func (s *GradebookStore) GradeFor(subjectID, studentID string) models.GradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gradeFor(subjectID, studentID)
}

// ListGrades returns the stored records of a subject, or every record when
// subjectID is empty. Records of deleted subjects are included.
func (s *GradebookStore) ListGrades(subjectID string) []models.GradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grades := make([]models.GradeRecord, 0, len(s.db.Grades))
	for _, grade := range s.db.Grades {
		if subjectID != "" && grade.SubjectID != subjectID {
			continue
		}
		grades = append(grades, grade.Clone())
	}
	return grades
}

// Settings returns the current settings.
func (s *GradebookStore) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Settings.Clone()
}

// Snapshot returns a deep copy of the whole gradebook.
func (s *GradebookStore) Snapshot() models.Database {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Clone()
}

func (s *GradebookStore) exportRow(subjectID string, student models.Student) (models.ExportRow, models.GradeRecord) {
	record := s.gradeFor(subjectID, student.ID)
	return models.ExportRow{
		StudentID:    student.ID,
		Username:     student.Username,
		FullName:     student.FullName,
		Exam1:        record.Exam1,
		Exam2:        record.Exam2,
		Coursework:   record.Coursework,
		FinalExam:    record.FinalExam,
		Total:        record.Total,
		AbsenceCount: len(record.Absences),
	}, record
}

// ExportRows projects every student's record in subjectID for exporters.
func (s *GradebookStore) ExportRows(subjectID string) (models.Subject, []models.ExportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.subjectIndex(subjectID)
	if idx < 0 {
		return models.Subject{}, nil, subjectNotFound()
	}
	rows := make([]models.ExportRow, 0, len(s.db.Students))
	for _, student := range s.db.Students {
		row, _ := s.exportRow(subjectID, student)
		rows = append(rows, row)
	}
	return s.db.Subjects[idx].Clone(), rows, nil
}

// GradeSheet returns every student's scores in subjectID with the derived
// pass and attendance status.
func (s *GradebookStore) GradeSheet(subjectID string) (models.GradeSheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.subjectIndex(subjectID)
	if idx < 0 {
		return models.GradeSheet{}, subjectNotFound()
	}
	subject := s.db.Subjects[idx]
	sheet := models.GradeSheet{
		Subject:  subject.Clone(),
		MaxTotal: subject.MaxTotal(),
		Rows:     make([]models.GradeSheetRow, 0, len(s.db.Students)),
	}
	for _, student := range s.db.Students {
		row, record := s.exportRow(subjectID, student)
		result := PassFail(record, subject, s.db.Settings)
		sheet.Rows = append(sheet.Rows, models.GradeSheetRow{
			ExportRow:   row,
			Percent:     result.Percent,
			Passing:     result.Passing,
			LastAbsence: record.LastAbsence(),
			Severity:    AbsenceSeverity(record, s.db.Settings),
		})
	}
	return sheet, nil
}

// Dashboard returns headline counts and the average total over records that have one.
func (s *GradebookStore) Dashboard() models.DashboardSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := models.DashboardSummary{
		StudentCount: len(s.db.Students),
		SubjectCount: len(s.db.Subjects),
		GradeCount:   len(s.db.Grades),
	}
	var sum float64
	var counted int
	for _, grade := range s.db.Grades {
		if total, ok := grade.Total.Value(); ok {
			sum += total
			counted++
		}
	}
	if counted > 0 {
		summary.AverageTotal = sum / float64(counted)
	}
	return summary
}
