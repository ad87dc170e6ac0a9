package fees_test

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimaro/shulebook/core"
	"github.com/kimaro/shulebook/core/activity"
	"github.com/kimaro/shulebook/core/fees"
	"github.com/kimaro/shulebook/core/school"
	emailsvc "github.com/kimaro/shulebook/services/email"
	logsvc "github.com/kimaro/shulebook/services/logger"
	inmemdb "github.com/kimaro/shulebook/storage/database/inmem"
	testutil "github.com/kimaro/shulebook/tests"
)

type testEnv struct {
	svc        *fees.Service
	years      school.AcademicYearRepository
	classes    school.ClassRepository
	batches    school.BatchRepository
	students   school.StudentRepository
	structures fees.FeeStructureRepository
	payments   fees.FeePaymentRepository
	reminders  fees.ReminderRepository
}

func setup(t *testing.T) testEnv {
	conf := testutil.NewConfig(t)
	core.InitMail(conf)
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lshortfile),
		conf,
	)
	db := testutil.PrepareDB(t)

	env := testEnv{
		years:      inmemdb.NewAcademicYearRepository(db),
		classes:    inmemdb.NewClassRepository(db),
		batches:    inmemdb.NewBatchRepository(db),
		students:   inmemdb.NewStudentRepository(db),
		structures: inmemdb.NewFeeStructureRepository(db),
		payments:   inmemdb.NewFeePaymentRepository(db),
		reminders:  inmemdb.NewReminderRepository(db),
	}
	actSvc := activity.NewService(inmemdb.NewActivityRepository(db), logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	env.svc = fees.NewService(
		env.structures, env.payments, env.reminders,
		env.students, env.batches, env.classes,
		actSvc, mailSvc, logger,
	)
	return env
}

func timePtr(t time.Time) *time.Time { return &t }

func Test_Service_CreateFeeStructure(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	batch := testutil.CreateBatch(t, env.batches, "Grade 1 A", class.ID, year.ID)
	s1 := testutil.CreateStudent(t, env.students, "Asha", class.ID, batch.ID)
	s2 := testutil.CreateStudent(t, env.students, "Biko", class.ID, batch.ID)

	t.Run("unknown class", func(t *testing.T) {
		_, _, err := env.svc.CreateFeeStructure(ctx, fees.NewFeeStructure{
			Name:           "Tuition",
			ClassID:        "nope",
			AcademicYearID: year.ID,
			TotalAmount:    "1000",
		})
		assert.Equal(t, school.ErrClassNotFound, err)
	})

	t.Run("creates and links batch students", func(t *testing.T) {
		due := timePtr(time.Now().UTC().AddDate(0, 1, 0))
		fs, links, err := env.svc.CreateFeeStructure(ctx, fees.NewFeeStructure{
			Name:           "Tuition Term 1",
			ClassID:        class.ID,
			AcademicYearID: year.ID,
			TotalAmount:    "1200.50",
			DueDate:        due,
		})
		require.NoError(t, err)
		assert.Equal(t, "Tuition Term 1", fs.Name)
		assert.True(t, fs.TotalAmount.Equal(decimal.RequireFromString("1200.50")))

		require.Len(t, links, 2)
		for _, link := range links {
			assert.Equal(t, fees.OutcomeLinked, link.Outcome)
			assert.Equal(t, fs.ID, link.FeeStructureID)
		}
		for _, sid := range []string{s1.ID, s2.ID} {
			student, err := env.students.GetStudentByID(ctx, sid)
			require.NoError(t, err)
			assert.Equal(t, fs.ID, student.FeeStructureID)
		}
	})
}

func Test_Service_UpdateFeeStructure(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	otherClass := testutil.CreateClass(t, env.classes, "Grade 2", year.ID)
	otherBatch := testutil.CreateBatch(t, env.batches, "Grade 2 A", otherClass.ID, year.ID)
	mover := testutil.CreateStudent(t, env.students, "Chipo", otherClass.ID, otherBatch.ID)

	t.Run("not found", func(t *testing.T) {
		_, _, err := env.svc.UpdateFeeStructure(ctx, "nope", fees.UpdateFeeStructure{})
		assert.Equal(t, fees.ErrStructureNotFound, err)
	})

	t.Run("frozen when past due with payments", func(t *testing.T) {
		pastDue := timePtr(time.Now().UTC().AddDate(0, 0, -10))
		frozen := testutil.CreateFeeStructure(t, env.structures, "Old Tuition", class.ID, year.ID, "1000", pastDue)
		payer := testutil.CreateStudent(t, env.students, "Dada", class.ID, "")
		testutil.CreatePayment(t, env.payments, payer.ID, frozen.ID, "400", false)

		_, _, err := env.svc.UpdateFeeStructure(ctx, frozen.ID, fees.UpdateFeeStructure{
			Name:           "Old Tuition",
			ClassID:        frozen.ClassID,
			AcademicYearID: frozen.AcademicYearID,
			TotalAmount:    "1500",
			DueDate:        frozen.DueDate,
		})
		require.Error(t, err)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok)
		assert.EqualError(t, vErr, "past-due fee structure with recorded payments cannot be modified")
	})

	t.Run("past due without payments stays editable", func(t *testing.T) {
		pastDue := timePtr(time.Now().UTC().AddDate(0, 0, -10))
		fs := testutil.CreateFeeStructure(t, env.structures, "Unpaid Levy", class.ID, year.ID, "300", pastDue)

		updated, links, err := env.svc.UpdateFeeStructure(ctx, fs.ID, fees.UpdateFeeStructure{
			Name:           "Unpaid Levy",
			ClassID:        fs.ClassID,
			AcademicYearID: fs.AcademicYearID,
			TotalAmount:    "350",
			DueDate:        fs.DueDate,
		})
		require.NoError(t, err)
		assert.True(t, updated.TotalAmount.Equal(decimal.RequireFromString("350")))
		assert.Empty(t, links) // class/year unchanged, no relink
	})

	t.Run("target change relinks", func(t *testing.T) {
		due := timePtr(time.Now().UTC().AddDate(0, 2, 0))
		fs := testutil.CreateFeeStructure(t, env.structures, "Sports Fee", class.ID, year.ID, "200", due)

		updated, links, err := env.svc.UpdateFeeStructure(ctx, fs.ID, fees.UpdateFeeStructure{
			Name:           "Sports Fee",
			ClassID:        otherClass.ID,
			AcademicYearID: year.ID,
			TotalAmount:    "200",
			DueDate:        due,
		})
		require.NoError(t, err)
		assert.Equal(t, otherClass.ID, updated.ClassID)

		require.Len(t, links, 1)
		assert.Equal(t, mover.ID, links[0].StudentID)
		assert.Equal(t, fees.OutcomeLinked, links[0].Outcome)

		student, err := env.students.GetStudentByID(ctx, mover.ID)
		require.NoError(t, err)
		assert.Equal(t, updated.ID, student.FeeStructureID)
	})
}

func Test_Service_CloneFeeStructures(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	prevYear := testutil.CreateAcademicYear(t, env.years, "2025-2026", time.Now().AddDate(-1, 0, 0), time.Now())
	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	batch := testutil.CreateBatch(t, env.batches, "Grade 1 A", class.ID, year.ID)
	student := testutil.CreateStudent(t, env.students, "Asha", class.ID, batch.ID)

	t.Run("nothing to clone", func(t *testing.T) {
		_, _, err := env.svc.CloneFeeStructures(ctx, fees.CloneFeeStructures{
			SourceAcademicYearID: prevYear.ID,
			SourceClassID:        class.ID,
			TargetAcademicYearID: year.ID,
			TargetClassID:        class.ID,
		})
		require.Error(t, err)
		assert.EqualError(t, err, "no fee structures found for the source class and academic year")
	})

	t.Run("clones and links", func(t *testing.T) {
		due := timePtr(time.Now().UTC().AddDate(-1, 6, 0))
		testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, prevYear.ID, "1000", due)
		testutil.CreateFeeStructure(t, env.structures, "Library", class.ID, prevYear.ID, "50", nil)

		clones, links, err := env.svc.CloneFeeStructures(ctx, fees.CloneFeeStructures{
			SourceAcademicYearID: prevYear.ID,
			SourceClassID:        class.ID,
			TargetAcademicYearID: year.ID,
			TargetClassID:        class.ID,
		})
		require.NoError(t, err)
		require.Len(t, clones, 2)
		for _, clone := range clones {
			assert.Equal(t, year.ID, clone.AcademicYearID)
			assert.Equal(t, class.ID, clone.ClassID)
		}

		// both clones target the student's batch, each linking pass rewrites the link
		require.Len(t, links, 2)
		got, err := env.students.GetStudentByID(ctx, student.ID)
		require.NoError(t, err)
		assert.Equal(t, clones[len(clones)-1].ID, got.FeeStructureID)
	})
}

func Test_Service_RecordPayment(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	student := testutil.CreateStudent(t, env.students, "Asha", class.ID, "")
	fs := testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, year.ID, "1000", nil)

	t.Run("unknown student", func(t *testing.T) {
		_, err := env.svc.RecordPayment(ctx, fees.NewFeePayment{
			StudentID:      "nope",
			FeeStructureID: fs.ID,
			Amount:         "100",
		})
		assert.Equal(t, school.ErrStudentNotFound, err)
	})

	t.Run("unknown structure", func(t *testing.T) {
		_, err := env.svc.RecordPayment(ctx, fees.NewFeePayment{
			StudentID:      student.ID,
			FeeStructureID: "nope",
			Amount:         "100",
		})
		assert.Equal(t, fees.ErrStructureNotFound, err)
	})

	t.Run("defaults receipt number and payment date", func(t *testing.T) {
		payment, err := env.svc.RecordPayment(ctx, fees.NewFeePayment{
			StudentID:      student.ID,
			FeeStructureID: fs.ID,
			Amount:         "250.75",
			PaymentMethod:  fees.MethodMobileMoney,
		})
		require.NoError(t, err)
		assert.True(t, payment.Amount.Equal(decimal.RequireFromString("250.75")))
		assert.True(t, strings.HasPrefix(payment.ReceiptNumber, "RCP-"))
		assert.False(t, payment.PaymentDate.IsZero())
		assert.False(t, payment.DiscountApplied)
	})

	t.Run("keeps provided receipt number", func(t *testing.T) {
		payDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
		payment, err := env.svc.RecordPayment(ctx, fees.NewFeePayment{
			StudentID:       student.ID,
			FeeStructureID:  fs.ID,
			Amount:          "100",
			PaymentDate:     &payDate,
			PaymentMethod:   fees.MethodCash,
			ReceiptNumber:   "RCP-MANUAL01",
			DiscountApplied: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "RCP-MANUAL01", payment.ReceiptNumber)
		assert.True(t, payment.PaymentDate.Equal(payDate))
		assert.True(t, payment.DiscountApplied)
	})
}

func Test_Service_MonthlyCollections(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	student := testutil.CreateStudent(t, env.students, "Asha", class.ID, "")
	fs := testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, year.ID, "5000", nil)

	record := func(amount string, date time.Time) {
		_, err := env.svc.RecordPayment(ctx, fees.NewFeePayment{
			StudentID:      student.ID,
			FeeStructureID: fs.ID,
			Amount:         amount,
			PaymentDate:    &date,
			PaymentMethod:  fees.MethodCash,
		})
		require.NoError(t, err)
	}
	record("100", time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	record("250.50", time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC))
	record("300", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	record("999", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)) // other year, excluded

	collections, err := env.svc.MonthlyCollections(ctx, 2026)
	require.NoError(t, err)
	require.Len(t, collections, 2)

	assert.Equal(t, "2026-01", collections[0].Month)
	assert.True(t, collections[0].Total.Equal(decimal.RequireFromString("350.50")))
	assert.Equal(t, 2, collections[0].Count)

	assert.Equal(t, "2026-03", collections[1].Month)
	assert.True(t, collections[1].Total.Equal(decimal.RequireFromString("300")))
	assert.Equal(t, 1, collections[1].Count)
}

func Test_Service_Reminders(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	year := testutil.CreateAcademicYear(t, env.years, "2026-2027", time.Now(), time.Now().AddDate(1, 0, 0))
	class := testutil.CreateClass(t, env.classes, "Grade 1", year.ID)
	student := testutil.CreateStudent(t, env.students, "Asha", class.ID, "")
	student.GuardianName = "Mrs Kimaro"
	student.GuardianEmail = "guardian@test.shulebook.app"
	student, err := env.students.UpdateStudent(ctx, student)
	require.NoError(t, err)
	fs := testutil.CreateFeeStructure(t, env.structures, "Tuition", class.ID, year.ID, "1000", nil)

	t.Run("unknown student", func(t *testing.T) {
		_, err := env.svc.CreateReminder(ctx, fees.NewReminder{
			StudentID:      "nope",
			FeeStructureID: fs.ID,
			Message:        "please pay",
		})
		assert.Equal(t, school.ErrStudentNotFound, err)
	})

	t.Run("create and send", func(t *testing.T) {
		rem, err := env.svc.CreateReminder(ctx, fees.NewReminder{
			StudentID:      student.ID,
			FeeStructureID: fs.ID,
			Message:        "Term 1 balance outstanding",
		})
		require.NoError(t, err)
		assert.Equal(t, fees.ReminderPending, rem.Status)
		assert.Nil(t, rem.SentAt)

		mailCount := len(emailsvc.SentMessages)
		sent, err := env.svc.SendReminder(ctx, rem.ID)
		require.NoError(t, err)
		assert.Equal(t, fees.ReminderSent, sent.Status)
		require.NotNil(t, sent.SentAt)

		require.Len(t, emailsvc.SentMessages, mailCount+1)
		msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
		assert.Equal(t, student.GuardianEmail, msg.To[0].Address)
		assert.Contains(t, msg.Subject, student.Name)
	})

	t.Run("send pending skips sent", func(t *testing.T) {
		rem, err := env.svc.CreateReminder(ctx, fees.NewReminder{
			StudentID:      student.ID,
			FeeStructureID: fs.ID,
			Message:        "second notice",
		})
		require.NoError(t, err)

		sent, err := env.svc.SendPendingReminders(ctx)
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, rem.ID, sent[0].ID)

		// nothing pending left
		sent, err = env.svc.SendPendingReminders(ctx)
		require.NoError(t, err)
		assert.Empty(t, sent)
	})
}
