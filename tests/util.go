package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kimaro/shulebook/core"
	"github.com/kimaro/shulebook/core/fees"
	"github.com/kimaro/shulebook/core/school"
	"github.com/kimaro/shulebook/core/user"
	inmemdb "github.com/kimaro/shulebook/storage/database/inmem"
)

// NewConfig returns a config suitable for tests.
func NewConfig(t *testing.T) *core.Config {
	conf, err := core.NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() failed: %v", err)
	}
	conf.Debug = true
	conf.TestMode = true
	return conf
}

// PrepareDB opens a fresh in-memory DB for a test.
func PrepareDB(t *testing.T) *inmemdb.DB {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(db.Reset)
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateAcademicYear(t *testing.T, repo school.AcademicYearRepository, name string, start, end time.Time) school.AcademicYear {
	tstamp := time.Now().UTC()
	year, err := repo.CreateAcademicYear(context.Background(), school.AcademicYear{
		ID:        uuid.New().String(),
		Name:      name,
		StartDate: start,
		EndDate:   end,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateAcademicYear() failed: %v", err)
	}
	return year
}

func CreateClass(t *testing.T, repo school.ClassRepository, name, yearID string) school.Class {
	tstamp := time.Now().UTC()
	class, err := repo.CreateClass(context.Background(), school.Class{
		ID:             uuid.New().String(),
		Name:           name,
		AcademicYearID: yearID,
		Capacity:       30,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return class
}

func CreateBatch(t *testing.T, repo school.BatchRepository, name, classID, yearID string) school.Batch {
	tstamp := time.Now().UTC()
	batch, err := repo.CreateBatch(context.Background(), school.Batch{
		ID:             uuid.New().String(),
		Name:           name,
		ClassID:        classID,
		AcademicYearID: yearID,
		Capacity:       school.DefaultBatchCapacity,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
	if err != nil {
		t.Fatalf("CreateBatch() failed: %v", err)
	}
	return batch
}

func CreateStudent(t *testing.T, repo school.StudentRepository, name, classID, batchID string) school.Student {
	tstamp := time.Now().UTC()
	student, err := repo.CreateStudent(context.Background(), school.Student{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    school.StudentStatusActive,
		ClassID:   classID,
		BatchID:   batchID,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return student
}

func CreateFeeStructure(
	t *testing.T,
	repo fees.FeeStructureRepository,
	name, classID, yearID, amount string,
	dueDate *time.Time,
	createdAt ...time.Time,
) fees.FeeStructure {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	total, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("CreateFeeStructure() failed: %v", err)
	}
	structure, err := repo.CreateFeeStructure(context.Background(), fees.FeeStructure{
		ID:             uuid.New().String(),
		Name:           name,
		ClassID:        classID,
		AcademicYearID: yearID,
		TotalAmount:    total,
		DueDate:        dueDate,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
	if err != nil {
		t.Fatalf("CreateFeeStructure() failed: %v", err)
	}
	return structure
}

func CreatePayment(
	t *testing.T,
	repo fees.FeePaymentRepository,
	studentID, structureID, amount string,
	discountApplied bool,
	notes ...string,
) fees.FeePayment {
	tstamp := time.Now().UTC()
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	payment := fees.FeePayment{
		ID:              uuid.New().String(),
		StudentID:       studentID,
		FeeStructureID:  structureID,
		Amount:          amt,
		PaymentDate:     tstamp,
		PaymentMethod:   fees.MethodCash,
		ReceiptNumber:   "RCP-" + uuid.New().String()[:8],
		DiscountApplied: discountApplied,
		CreatedAt:       tstamp,
	}
	if len(notes) > 0 {
		payment.Notes = notes[0]
	}
	payment, err = repo.CreateFeePayment(context.Background(), payment)
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return payment
}
