package fees_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimaro/shulebook/core/fees"
	"github.com/kimaro/shulebook/core/school"
	testutil "github.com/kimaro/shulebook/tests"
)

func Test_Service_AssignStudentsToBatch(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	batch := testutil.CreateBatch(t, env.batches, "Grade 1 A", class.ID, year.ID)
	bareClass := testutil.CreateClass(t, env.classes, "Grade 2", year.ID)
	bareBatch := testutil.CreateBatch(t, env.batches, "Grade 2 A", bareClass.ID, year.ID)

	// two structures target the batch; the furthest-future due date must win
	near := timePtr(time.Now().UTC().AddDate(0, 1, 0))
	far := timePtr(time.Now().UTC().AddDate(0, 3, 0))
	testutil.CreateFeeStructure(t, env.structures, "Tuition Early", class.ID, year.ID, "1000", near)
	winner := testutil.CreateFeeStructure(t, env.structures, "Tuition Late", class.ID, year.ID, "1000", far)

	t.Run("unknown batch", func(t *testing.T) {
		_, err := env.svc.AssignStudentsToBatch(ctx, "nope", []string{"x"})
		assert.Equal(t, school.ErrBatchNotFound, err)
	})

	t.Run("links, skips and reports errors", func(t *testing.T) {
		s1 := testutil.CreateStudent(t, env.students, "Asha", "", "")
		s2 := testutil.CreateStudent(t, env.students, "Biko", "", "")

		results, err := env.svc.AssignStudentsToBatch(ctx, batch.ID, []string{s1.ID, "ghost", s2.ID})
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, fees.LinkResult{StudentID: s1.ID, FeeStructureID: winner.ID, Outcome: fees.OutcomeLinked}, results[0])
		assert.Equal(t, fees.OutcomeError, results[1].Outcome)
		assert.Equal(t, "ghost", results[1].StudentID)
		assert.NotEmpty(t, results[1].Error)
		assert.Equal(t, fees.LinkResult{StudentID: s2.ID, FeeStructureID: winner.ID, Outcome: fees.OutcomeLinked}, results[2])

		got, err := env.students.GetStudentByID(ctx, s1.ID)
		require.NoError(t, err)
		assert.Equal(t, batch.ID, got.BatchID)
		assert.Equal(t, class.ID, got.ClassID)
		assert.Equal(t, winner.ID, got.FeeStructureID)
	})

	t.Run("re-assignment is idempotent", func(t *testing.T) {
		s := testutil.CreateStudent(t, env.students, "Dada", "", "")

		first, err := env.svc.AssignStudentsToBatch(ctx, batch.ID, []string{s.ID})
		require.NoError(t, err)
		second, err := env.svc.AssignStudentsToBatch(ctx, batch.ID, []string{s.ID})
		require.NoError(t, err)
		assert.Equal(t, first, second)

		got, err := env.students.GetStudentByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, winner.ID, got.FeeStructureID)
	})

	t.Run("skipped when no structure matches", func(t *testing.T) {
		s := testutil.CreateStudent(t, env.students, "Chipo", "", "")

		results, err := env.svc.AssignStudentsToBatch(ctx, bareBatch.ID, []string{s.ID})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, fees.LinkResult{StudentID: s.ID, Outcome: fees.OutcomeSkipped}, results[0])

		// batch membership is still updated
		got, err := env.students.GetStudentByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, bareBatch.ID, got.BatchID)
		assert.Equal(t, bareClass.ID, got.ClassID)
		assert.Empty(t, got.FeeStructureID)
	})
}

func Test_Service_RemoveStudentFromBatch(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	batch := testutil.CreateBatch(t, env.batches, "Grade 1 A", class.ID, year.ID)
	otherClass := testutil.CreateClass(t, env.classes, "Grade 2", year.ID)

	t.Run("clears matching fee link", func(t *testing.T) {
		fs := testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, year.ID, "1000", nil)
		s := testutil.CreateStudent(t, env.students, "Asha", class.ID, batch.ID)
		s.FeeStructureID = fs.ID
		_, err := env.students.UpdateStudent(ctx, s)
		require.NoError(t, err)

		got, err := env.svc.RemoveStudentFromBatch(ctx, batch.ID, s.ID)
		require.NoError(t, err)
		assert.Empty(t, got.BatchID)
		assert.Empty(t, got.FeeStructureID)
	})

	t.Run("keeps unrelated fee link", func(t *testing.T) {
		fs := testutil.CreateFeeStructure(t, env.structures, "Transfer Levy", otherClass.ID, year.ID, "500", nil)
		s := testutil.CreateStudent(t, env.students, "Biko", class.ID, batch.ID)
		s.FeeStructureID = fs.ID
		_, err := env.students.UpdateStudent(ctx, s)
		require.NoError(t, err)

		got, err := env.svc.RemoveStudentFromBatch(ctx, batch.ID, s.ID)
		require.NoError(t, err)
		assert.Empty(t, got.BatchID)
		assert.Equal(t, fs.ID, got.FeeStructureID)
	})
}

func Test_Service_Reconcile(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	batch := testutil.CreateBatch(t, env.batches, "Grade 1 A", class.ID, year.ID)
	fs := testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, year.ID, "1000", nil)

	orphanClass := testutil.CreateClass(t, env.classes, "Grade 7", year.ID)

	batched := testutil.CreateStudent(t, env.students, "Asha", class.ID, batch.ID)
	classOnly := testutil.CreateStudent(t, env.students, "Biko", class.ID, "")
	noMatch := testutil.CreateStudent(t, env.students, "Chipo", orphanClass.ID, "")

	results, err := env.svc.Reconcile(ctx, "")
	require.NoError(t, err)
	require.Len(t, results, 3)

	byStudent := make(map[string]fees.LinkResult, len(results))
	for _, res := range results {
		byStudent[res.StudentID] = res
	}
	assert.Equal(t, fees.OutcomeLinked, byStudent[batched.ID].Outcome)
	assert.Equal(t, fs.ID, byStudent[batched.ID].FeeStructureID)
	assert.Equal(t, fees.OutcomeLinked, byStudent[classOnly.ID].Outcome)
	assert.Equal(t, fs.ID, byStudent[classOnly.ID].FeeStructureID)
	assert.Equal(t, fees.OutcomeSkipped, byStudent[noMatch.ID].Outcome)

	// second run: linked students are untouched, only the unmatched one shows up
	results, err = env.svc.Reconcile(ctx, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, fees.LinkResult{StudentID: noMatch.ID, Outcome: fees.OutcomeSkipped}, results[0])

	// class scoping leaves other classes alone
	late := testutil.CreateStudent(t, env.students, "Dada", class.ID, "")
	results, err = env.svc.Reconcile(ctx, orphanClass.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, noMatch.ID, results[0].StudentID)

	got, err := env.students.GetStudentByID(ctx, late.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FeeStructureID)
}
