package service

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook/internal/models"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
)

type recordingScheduler struct {
	mu        sync.Mutex
	snapshots []models.Database
}

func (r *recordingScheduler) Schedule(db models.Database) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, db)
}

func (r *recordingScheduler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recordingScheduler) last() models.Database {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[len(r.snapshots)-1]
}

func newTestStore(t *testing.T) (*GradebookStore, *recordingScheduler) {
	t.Helper()
	scheduler := &recordingScheduler{}
	store := NewGradebookStore(models.DefaultDatabase(), scheduler, nil, nil, nil)
	seq := 0
	store.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return store, scheduler
}

func seedPair(t *testing.T, store *GradebookStore) (models.Subject, models.Student) {
	t.Helper()
	subject, err := store.AddSubject(mathSubject())
	require.NoError(t, err)
	student, err := store.AddStudent(models.Student{Username: "2023001", FullName: "Jane Doe"})
	require.NoError(t, err)
	return subject, student
}

func TestStoreAddSubjectGeneratesIDAndSchedulesOnce(t *testing.T) {
	store, scheduler := newTestStore(t)
	subject := mathSubject()
	subject.ID = ""
	subject.CourseworkCategories = []models.CourseworkCategory{{Name: "Homework", MaxPoints: 10}}

	created, err := store.AddSubject(subject)
	require.NoError(t, err)
	assert.Equal(t, "id-2", created.ID)
	assert.Equal(t, "id-1", created.CourseworkCategories[0].ID)
	assert.Equal(t, 1, scheduler.count())
	assert.Len(t, scheduler.last().Subjects, 1)
}

func TestStoreAddSubjectRejectsInvalidWithoutSaving(t *testing.T) {
	store, scheduler := newTestStore(t)

	_, err := store.AddSubject(models.Subject{NameEn: "Only English"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, store.ListSubjects())
	assert.Zero(t, scheduler.count())
}

func TestStoreAddSubjectDuplicateID(t *testing.T) {
	store, scheduler := newTestStore(t)
	_, err := store.AddSubject(mathSubject())
	require.NoError(t, err)

	_, err = store.AddSubject(mathSubject())
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, 1, scheduler.count())
}

func TestStoreUpdateSubject(t *testing.T) {
	store, scheduler := newTestStore(t)
	subject, _ := seedPair(t, store)

	subject.NameEn = "Mathematics"
	updated, err := store.UpdateSubject(subject)
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", updated.NameEn)

	got, err := store.GetSubject(subject.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", got.NameEn)
	assert.Equal(t, 3, scheduler.count())

	missing := mathSubject()
	missing.ID = "nope"
	_, err = store.UpdateSubject(missing)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 3, scheduler.count())
}

func TestStoreDeleteSubjectRetainsGrades(t *testing.T) {
	store, _ := newTestStore(t)
	subject, student := seedPair(t, store)

	record := models.EmptyGradeRecord(subject.ID, student.ID)
	record.Exam1 = models.ScoreOf(12)
	_, err := store.UpsertGradeRecord(record)
	require.NoError(t, err)

	require.NoError(t, store.DeleteSubject(subject.ID))
	assert.Empty(t, store.ListSubjects())
	grades := store.ListGrades("")
	require.Len(t, grades, 1)
	assert.Equal(t, subject.ID, grades[0].SubjectID)

	assert.True(t, errors.Is(store.DeleteSubject(subject.ID), appErrors.ErrNotFound))
}

func TestStoreStudents(t *testing.T) {
	store, scheduler := newTestStore(t)
	ann, err := store.AddStudent(models.Student{Username: "a-1", FullName: "Ann Smith"})
	require.NoError(t, err)
	_, err = store.AddStudent(models.Student{Username: "b-2", FullName: "Bob Jones"})
	require.NoError(t, err)
	_, err = store.AddStudent(models.Student{Username: "a-1", FullName: "Duplicate Allowed"})
	require.NoError(t, err)

	assert.Len(t, store.ListStudents(""), 3)
	assert.Len(t, store.ListStudents("SMITH"), 1)
	assert.Len(t, store.ListStudents("b-2"), 1)
	assert.Empty(t, store.ListStudents("zzz"))

	ann.Email = "ann@x.edu"
	_, err = store.UpdateStudent(ann)
	require.NoError(t, err)
	got, err := store.GetStudent(ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@x.edu", got.Email)

	_, err = store.UpdateStudent(models.Student{ID: "missing", Username: "x", FullName: "X"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = store.GetStudent("missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 4, scheduler.count())
}

func TestStoreImportStudentsSkipsDuplicates(t *testing.T) {
	store, scheduler := newTestStore(t)
	_, err := store.AddStudent(models.Student{Username: "u1", FullName: "Existing"})
	require.NoError(t, err)

	summary := store.ImportStudents([]models.Student{
		{Username: "u1", FullName: "Again"},
		{Username: "u2", FullName: "New"},
		{Username: "u2", FullName: "Same Batch"},
		{Username: "u3", FullName: ""},
	})

	assert.Equal(t, 1, summary.AddedCount())
	assert.Equal(t, "u2", summary.Added[0].Username)
	assert.NotEmpty(t, summary.Added[0].ID)
	assert.Equal(t, []string{"u1", "u2", "u3"}, summary.Skipped)
	assert.Len(t, store.ListStudents(""), 2)
	assert.Equal(t, 2, scheduler.count())

	summary = store.ImportStudents([]models.Student{{Username: "u1", FullName: "Again"}})
	assert.Zero(t, summary.AddedCount())
	assert.Equal(t, 2, scheduler.count())
}

func TestStoreUpsertGradeRecordRecomputesTotal(t *testing.T) {
	store, scheduler := newTestStore(t)
	subject, student := seedPair(t, store)

	record := models.EmptyGradeRecord(subject.ID, student.ID)
	record.Exam1 = models.ScoreOf(10)
	record.Total = models.ScoreOf(100)

	saved, err := store.UpsertGradeRecord(record)
	require.NoError(t, err)
	assert.Equal(t, models.ScoreOf(10), saved.Total)
	assert.False(t, saved.Exam2.IsSet())

	record.Exam2 = models.ScoreOf(5)
	saved, err = store.UpsertGradeRecord(record)
	require.NoError(t, err)
	assert.Equal(t, models.ScoreOf(15), saved.Total)
	assert.Len(t, store.ListGrades(subject.ID), 1)
	assert.Equal(t, 4, scheduler.count())
	assert.Equal(t, models.ScoreOf(15), scheduler.last().Grades[0].Total)
}

func TestStoreUpsertGradeRecordRejectsOverflowingScores(t *testing.T) {
	store, scheduler := newTestStore(t)
	subject, student := seedPair(t, store)

	record := models.EmptyGradeRecord(subject.ID, student.ID)
	record.Exam1 = models.ScoreOf(1e308)
	record.Exam2 = models.ScoreOf(1e308)

	_, err := store.UpsertGradeRecord(record)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 2, scheduler.count())
	assert.Empty(t, store.ListGrades(subject.ID))
	assert.False(t, store.GradeFor(subject.ID, student.ID).Exam1.IsSet())
}

func TestStoreUpsertGradeRecordRequiresPair(t *testing.T) {
	store, scheduler := newTestStore(t)
	subject, student := seedPair(t, store)

	_, err := store.UpsertGradeRecord(models.EmptyGradeRecord("ghost", student.ID))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = store.UpsertGradeRecord(models.EmptyGradeRecord(subject.ID, "ghost"))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	bad := models.EmptyGradeRecord(subject.ID, student.ID)
	bad.FinalExam = models.ScoreOf(-3)
	_, err = store.UpsertGradeRecord(bad)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	assert.Empty(t, store.ListGrades(""))
	assert.Equal(t, 2, scheduler.count())
}

func TestStoreGradeForMaterializesEmptyRecord(t *testing.T) {
	store, _ := newTestStore(t)

	record := store.GradeFor("sub", "stu")
	assert.Equal(t, "sub", record.SubjectID)
	assert.Equal(t, "stu", record.StudentID)
	assert.False(t, record.Total.IsSet())
	assert.NotNil(t, record.Absences)
	assert.NotNil(t, record.AbsenceTypes)
	assert.NotNil(t, record.CourseworkScores)
}

func TestStoreUpdateAbsences(t *testing.T) {
	store, scheduler := newTestStore(t)
	subject, student := seedPair(t, store)

	add := func(date string, kind models.AbsenceType) models.GradeRecord {
		record, err := store.UpdateAbsences(subject.ID, student.ID, &models.AbsenceEntry{Date: date, Type: kind}, "")
		require.NoError(t, err)
		return record
	}

	add("2024-03-05", models.AbsenceAbsent)
	add("2024-03-01", models.AbsenceLate)
	record := add("2024-03-01", models.AbsenceExcused)
	assert.Equal(t, []string{"2024-03-01", "2024-03-05"}, record.Absences)
	assert.Equal(t, models.AbsenceLate, record.AbsenceTypes["2024-03-01"])
	assert.Equal(t, models.ScoreOf(0), record.Total)

	record, err := store.UpdateAbsences(subject.ID, student.ID, &models.AbsenceEntry{Date: "2024-03-02", Type: models.AbsenceExcused}, "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, record.Absences)
	assert.Equal(t, map[string]models.AbsenceType{"2024-03-01": models.AbsenceLate, "2024-03-02": models.AbsenceExcused}, record.AbsenceTypes)

	_, err = store.UpdateAbsences(subject.ID, student.ID, &models.AbsenceEntry{Date: "03/02/2024", Type: models.AbsenceAbsent}, "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = store.UpdateAbsences(subject.ID, student.ID, nil, "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = store.UpdateAbsences("ghost", student.ID, nil, "2024-03-01")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	assert.Equal(t, 6, scheduler.count())
}

func TestStoreAbsenceInvariantHoldsForRandomSequences(t *testing.T) {
	store, _ := newTestStore(t)
	subject, student := seedPair(t, store)
	rng := rand.New(rand.NewSource(42))
	kinds := []models.AbsenceType{models.AbsenceAbsent, models.AbsenceExcused, models.AbsenceLate}

	for i := 0; i < 200; i++ {
		date := fmt.Sprintf("2024-01-%02d", rng.Intn(10)+1)
		var err error
		if rng.Intn(3) == 0 {
			_, err = store.UpdateAbsences(subject.ID, student.ID, nil, date)
		} else {
			_, err = store.UpdateAbsences(subject.ID, student.ID, &models.AbsenceEntry{Date: date, Type: kinds[rng.Intn(3)]}, "")
		}
		require.NoError(t, err)

		record := store.GradeFor(subject.ID, student.ID)
		require.True(t, sort.StringsAreSorted(record.Absences))
		require.Len(t, record.AbsenceTypes, len(record.Absences))
		for _, d := range record.Absences {
			_, ok := record.AbsenceTypes[d]
			require.True(t, ok)
		}
	}
}

func TestStoreUpdateSettings(t *testing.T) {
	store, scheduler := newTestStore(t)
	threshold := 75.0
	lang := models.LanguageEnglish

	settings, err := store.UpdateSettings(models.SettingsPatch{PassThresholdPct: &threshold, DefaultLanguage: &lang})
	require.NoError(t, err)
	assert.Equal(t, 75.0, settings.PassThresholdPct)
	assert.Equal(t, models.LanguageEnglish, settings.DefaultLanguage)
	assert.Equal(t, models.DefaultAbsenceThreshold, settings.AbsenceThreshold)

	tooHigh := 150.0
	_, err = store.UpdateSettings(models.SettingsPatch{PassThresholdPct: &tooHigh})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 75.0, store.Settings().PassThresholdPct)
	assert.Equal(t, 1, scheduler.count())
}

func TestStoreUpdateSettingsAuthFields(t *testing.T) {
	store, scheduler := newTestStore(t)
	username, salt, hash := "admin", "c2FsdA==", "deadbeef"

	settings, err := store.UpdateSettings(models.SettingsPatch{AuthUsername: &username, AuthSalt: &salt, AuthPasswordHash: &hash})
	require.NoError(t, err)
	assert.Equal(t, "admin", settings.AuthUsername)
	assert.Equal(t, "c2FsdA==", settings.AuthSalt)
	assert.Equal(t, "deadbeef", settings.AuthPasswordHash)
	assert.Equal(t, models.DefaultPassThresholdPct, settings.PassThresholdPct)
	assert.Equal(t, "deadbeef", scheduler.last().Settings.AuthPasswordHash)
}

func TestStoreReturnsCopies(t *testing.T) {
	store, _ := newTestStore(t)
	subject, student := seedPair(t, store)
	_, err := store.UpdateAbsences(subject.ID, student.ID, &models.AbsenceEntry{Date: "2024-01-01", Type: models.AbsenceAbsent}, "")
	require.NoError(t, err)

	record := store.GradeFor(subject.ID, student.ID)
	record.Absences[0] = "tampered"
	record.AbsenceTypes["x"] = models.AbsenceLate

	snapshot := store.Snapshot()
	snapshot.Subjects[0].NameEn = "tampered"

	assert.Equal(t, []string{"2024-01-01"}, store.GradeFor(subject.ID, student.ID).Absences)
	assert.Equal(t, "Math", store.ListSubjects()[0].NameEn)
}

func TestStoreGradeSheetAndExportRows(t *testing.T) {
	store, _ := newTestStore(t)
	subject, jane := seedPair(t, store)
	bob, err := store.AddStudent(models.Student{Username: "2023002", FullName: "Bob"})
	require.NoError(t, err)

	record := models.EmptyGradeRecord(subject.ID, jane.ID)
	record.Exam1 = models.ScoreOf(20)
	record.Exam2 = models.ScoreOf(20)
	record.Coursework = models.ScoreOf(20)
	record.AddAbsence("2024-01-01", models.AbsenceAbsent)
	record.AddAbsence("2024-01-08", models.AbsenceLate)
	_, err = store.UpsertGradeRecord(record)
	require.NoError(t, err)

	_, rows, err := store.ExportRows(subject.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2023001", rows[0].Username)
	assert.Equal(t, models.ScoreOf(60), rows[0].Total)
	assert.False(t, rows[0].FinalExam.IsSet())
	assert.Equal(t, 2, rows[0].AbsenceCount)
	assert.Equal(t, bob.ID, rows[1].StudentID)
	assert.False(t, rows[1].Total.IsSet())

	sheet, err := store.GradeSheet(subject.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, sheet.MaxTotal)
	assert.True(t, sheet.Rows[0].Passing)
	assert.InDelta(t, 60.0, sheet.Rows[0].Percent, 1e-9)
	assert.Equal(t, "2024-01-08", sheet.Rows[0].LastAbsence)
	assert.Equal(t, models.SeverityModerate, sheet.Rows[0].Severity)
	assert.False(t, sheet.Rows[1].Passing)
	assert.Equal(t, models.SeverityNone, sheet.Rows[1].Severity)

	_, _, err = store.ExportRows("ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = store.GradeSheet("ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStoreDashboard(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Equal(t, models.DashboardSummary{}, store.Dashboard())

	subject, jane := seedPair(t, store)
	bob, err := store.AddStudent(models.Student{Username: "b", FullName: "Bob"})
	require.NoError(t, err)
	for _, entry := range []struct {
		student string
		score   float64
	}{{jane.ID, 40}, {bob.ID, 80}} {
		record := models.EmptyGradeRecord(subject.ID, entry.student)
		record.FinalExam = models.ScoreOf(entry.score)
		_, err := store.UpsertGradeRecord(record)
		require.NoError(t, err)
	}

	summary := store.Dashboard()
	assert.Equal(t, 2, summary.StudentCount)
	assert.Equal(t, 1, summary.SubjectCount)
	assert.Equal(t, 2, summary.GradeCount)
	assert.Equal(t, 60.0, summary.AverageTotal)
}

func TestNewGradebookStoreCollapsesDuplicatePairs(t *testing.T) {
	db := models.DefaultDatabase()
	first := models.EmptyGradeRecord("s", "t")
	first.Exam1 = models.ScoreOf(1)
	second := models.EmptyGradeRecord("s", "t")
	second.Exam1 = models.ScoreOf(2)
	db.Grades = append(db.Grades, first, second)

	store := NewGradebookStore(db, nil, nil, nil, nil)
	grades := store.ListGrades("")
	require.Len(t, grades, 1)
	assert.Equal(t, models.ScoreOf(2), grades[0].Exam1)
}

func TestStoreConcurrentMutationsSerialize(t *testing.T) {
	store, scheduler := newTestStore(t)
	store.newID = func() string { return "" }
	subject, err := store.AddSubject(mathSubject())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AddStudent(models.Student{ID: fmt.Sprintf("stu-%d", i), Username: fmt.Sprintf("u%d", i), FullName: "N"})
			assert.NoError(t, err)
			_ = store.ListStudents("")
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.ListStudents(""), 50)
	assert.Equal(t, 51, scheduler.count())
	assert.Len(t, scheduler.last().Students, 50)
	assert.Equal(t, subject.ID, scheduler.last().Subjects[0].ID)
}
