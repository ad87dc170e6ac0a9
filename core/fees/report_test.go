package fees_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimaro/shulebook/core/fees"
	testutil "github.com/kimaro/shulebook/tests"
)

func Test_Service_PendingFees_statuses(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	pastDue := timePtr(time.Now().UTC().AddDate(0, 0, -7))
	fs := testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, year.ID, "500.00", pastDue)

	link := func(name string) string {
		s := testutil.CreateStudent(t, env.students, name, class.ID, "")
		s.FeeStructureID = fs.ID
		s, err := env.students.UpdateStudent(ctx, s)
		require.NoError(t, err)
		return s.ID
	}
	unpaid := link("Asha")
	partial := link("Biko")
	settled := link("Chipo")
	discounted := link("Dada")
	legacyDiscount := link("Erevu")

	testutil.CreatePayment(t, env.payments, partial, fs.ID, "200.00", false)
	testutil.CreatePayment(t, env.payments, settled, fs.ID, "500.00", false)
	testutil.CreatePayment(t, env.payments, discounted, fs.ID, "100.00", true)
	testutil.CreatePayment(t, env.payments, legacyDiscount, fs.ID, "100.00", false, "Sibling discount applied by bursar")

	rows, err := env.svc.PendingFees(ctx, class.ID)
	require.NoError(t, err)

	// settled and discounted balances never show up
	require.Len(t, rows, 2)

	// fully overdue sorts first
	require.NotNil(t, rows[0].StudentID)
	assert.Equal(t, unpaid, *rows[0].StudentID)
	assert.Equal(t, "Asha", rows[0].StudentName)
	assert.Equal(t, fees.StatusOverdue, rows[0].Status)
	assert.True(t, rows[0].TotalPaid.IsZero())
	assert.True(t, rows[0].DueAmount.Equal(decimal.RequireFromString("500.00")))

	require.NotNil(t, rows[1].StudentID)
	assert.Equal(t, partial, *rows[1].StudentID)
	assert.Equal(t, fees.StatusPartialOverdue, rows[1].Status)
	assert.True(t, rows[1].TotalPaid.Equal(decimal.RequireFromString("200.00")))
	assert.True(t, rows[1].DueAmount.Equal(decimal.RequireFromString("300.00")))
	assert.Equal(t, fs.ID, rows[1].FeeStructureID)
	assert.Equal(t, "Tuition", rows[1].FeeName)
}

func Test_Service_PendingFees_upcoming(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	futureDue := timePtr(time.Now().UTC().AddDate(0, 1, 0))
	fs := testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, year.ID, "1000", futureDue)

	fresh := testutil.CreateStudent(t, env.students, "Asha", class.ID, "")
	fresh.FeeStructureID = fs.ID
	_, err := env.students.UpdateStudent(ctx, fresh)
	require.NoError(t, err)

	paying := testutil.CreateStudent(t, env.students, "Biko", class.ID, "")
	paying.FeeStructureID = fs.ID
	_, err = env.students.UpdateStudent(ctx, paying)
	require.NoError(t, err)
	testutil.CreatePayment(t, env.payments, paying.ID, fs.ID, "400", false)

	rows, err := env.svc.PendingFees(ctx, class.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byName := make(map[string]fees.PendingFeeRow, len(rows))
	for _, row := range rows {
		byName[row.StudentName] = row
	}
	assert.Equal(t, fees.StatusUpcoming, byName["Asha"].Status)
	assert.True(t, byName["Asha"].DueAmount.Equal(decimal.RequireFromString("1000")))
	assert.Equal(t, fees.StatusPartialPaid, byName["Biko"].Status)
	assert.True(t, byName["Biko"].DueAmount.Equal(decimal.RequireFromString("600")))
}

func Test_Service_PendingFees_unassignedPlaceholder(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	emptyClass := testutil.CreateClass(t, env.classes, "Grade 6", year.ID)
	pastDue := timePtr(time.Now().UTC().AddDate(0, 0, -3))
	orphan := testutil.CreateFeeStructure(t, env.structures, "Lab Fee", emptyClass.ID, year.ID, "150", pastDue)

	// a student in another class must not leak into the report
	otherClass := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	testutil.CreateStudent(t, env.students, "Asha", otherClass.ID, "")

	rows, err := env.svc.PendingFees(ctx, emptyClass.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Nil(t, row.StudentID)
	assert.Equal(t, fees.UnassignedName, row.StudentName)
	assert.Equal(t, orphan.ID, row.FeeStructureID)
	assert.True(t, row.TotalPaid.IsZero())
	assert.True(t, row.DueAmount.Equal(decimal.RequireFromString("150")))
	assert.Equal(t, fees.StatusOverdue, row.Status)
}

func Test_Service_PendingFees_orphanPassMatchesStudents(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	batch := testutil.CreateBatch(t, env.batches, "Grade 1 A", class.ID, year.ID)
	student := testutil.CreateStudent(t, env.students, "Asha", class.ID, batch.ID)

	// the structure was never linked; the report must still surface the
	// batch's students instead of a placeholder
	futureDue := timePtr(time.Now().UTC().AddDate(0, 1, 0))
	fs := testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, year.ID, "800", futureDue)

	rows, err := env.svc.PendingFees(ctx, class.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].StudentID)
	assert.Equal(t, student.ID, *rows[0].StudentID)
	assert.Equal(t, fs.ID, rows[0].FeeStructureID)
	assert.Equal(t, fees.StatusUpcoming, rows[0].Status)

	// the report is read-only, the student stays unlinked
	got, err := env.students.GetStudentByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FeeStructureID)
}

func Test_Service_PendingFees_danglingLink(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	fs := testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, year.ID, "1000", nil)

	student := testutil.CreateStudent(t, env.students, "Asha", class.ID, "")
	student.FeeStructureID = fs.ID
	_, err := env.students.UpdateStudent(ctx, student)
	require.NoError(t, err)

	// delete the structure out from under the student
	require.NoError(t, env.structures.DeleteFeeStructuresByID(ctx, fs.ID))

	rows, err := env.svc.PendingFees(ctx, class.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func Test_Service_PendingFees_ordering(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)

	soon := timePtr(time.Now().UTC().AddDate(0, 0, 7))
	later := timePtr(time.Now().UTC().AddDate(0, 2, 0))
	past := timePtr(time.Now().UTC().AddDate(0, 0, -7))

	link := func(name string, fs fees.FeeStructure) {
		s := testutil.CreateStudent(t, env.students, name, class.ID, "")
		s.FeeStructureID = fs.ID
		_, err := env.students.UpdateStudent(ctx, s)
		require.NoError(t, err)
	}
	link("Later", testutil.CreateFeeStructure(t, env.structures, "Trip", class.ID, year.ID, "300", later))
	link("NoDue", testutil.CreateFeeStructure(t, env.structures, "Uniform", class.ID, year.ID, "100", nil))
	link("Past", testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, year.ID, "1000", past))
	link("Soon", testutil.CreateFeeStructure(t, env.structures, "Books", class.ID, year.ID, "200", soon))

	rows, err := env.svc.PendingFees(ctx, class.ID)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	got := make([]string, len(rows))
	for i, row := range rows {
		got[i] = row.StudentName
	}
	assert.Equal(t, []string{"Past", "Soon", "Later", "NoDue"}, got)
}
