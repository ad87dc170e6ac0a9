package inmemdb

import (
	"context"

	"github.com/kimaro/shulebook/core/fees"
	"github.com/kimaro/shulebook/core/school"
)

// Fee structures

type structureRepository struct {
	db *structureTable
}

var (
	_ fees.FeeStructureRepository  = (*structureRepository)(nil) // interface compliance check
	_ school.FeeStructureDirectory = (*structureRepository)(nil)
)

func NewFeeStructureRepository(db *DB) *structureRepository {
	return &structureRepository{db: db.structures}
}

func (repo *structureRepository) query() []fees.FeeStructure {
	structures := make([]fees.FeeStructure, 0, len(repo.db.table))
	for _, fs := range repo.db.table {
		structures = append(structures, *fs)
	}
	return structures
}

func (repo *structureRepository) CreateFeeStructure(_ context.Context, fs fees.FeeStructure) (fees.FeeStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[fs.ID] = &fs
	return fs, nil
}

func (repo *structureRepository) QueryAllFeeStructures(_ context.Context) ([]fees.FeeStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *structureRepository) GetFeeStructureByID(_ context.Context, id string) (fees.FeeStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if fs, ok := repo.db.table[id]; ok {
		return *fs, nil
	}
	return fees.FeeStructure{}, fees.ErrStructureNotFound
}

func (repo *structureRepository) FilterFeeStructures(_ context.Context, filter fees.FeeStructureQueryFilter) ([]fees.FeeStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	structures := make([]fees.FeeStructure, 0)
	for _, fs := range repo.query() {
		if filter.ClassID != "" && fs.ClassID != filter.ClassID {
			continue
		}
		if filter.AcademicYearID != "" && fs.AcademicYearID != filter.AcademicYearID {
			continue
		}
		structures = append(structures, fs)
	}
	return structures, nil
}

func (repo *structureRepository) UpdateFeeStructure(_ context.Context, fs fees.FeeStructure) (fees.FeeStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[fs.ID]; !ok {
		return fees.FeeStructure{}, fees.ErrStructureNotFound
	}
	repo.db.table[fs.ID] = &fs
	return fs, nil
}

func (repo *structureRepository) DeleteFeeStructuresByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func (repo *structureRepository) FeeStructuresExistForClass(_ context.Context, classID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, fs := range repo.db.table {
		if fs.ClassID == classID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *structureRepository) FeeStructuresExistForAcademicYear(_ context.Context, academicYearID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, fs := range repo.db.table {
		if fs.AcademicYearID == academicYearID {
			return true, nil
		}
	}
	return false, nil
}

// Fee payments

type paymentRepository struct {
	db *paymentTable
}

var _ fees.FeePaymentRepository = (*paymentRepository)(nil) // interface compliance check

func NewFeePaymentRepository(db *DB) *paymentRepository {
	return &paymentRepository{db: db.payments}
}

func (repo *paymentRepository) query() []fees.FeePayment {
	payments := make([]fees.FeePayment, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		payments = append(payments, *p)
	}
	return payments
}

func (repo *paymentRepository) CreateFeePayment(_ context.Context, p fees.FeePayment) (fees.FeePayment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *paymentRepository) QueryAllFeePayments(_ context.Context) ([]fees.FeePayment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *paymentRepository) GetFeePaymentByID(_ context.Context, id string) (fees.FeePayment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if p, ok := repo.db.table[id]; ok {
		return *p, nil
	}
	return fees.FeePayment{}, fees.ErrPaymentNotFound
}

func (repo *paymentRepository) FilterFeePayments(_ context.Context, filter fees.FeePaymentQueryFilter) ([]fees.FeePayment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	payments := make([]fees.FeePayment, 0)
	for _, p := range repo.query() {
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		if filter.FeeStructureID != "" && p.FeeStructureID != filter.FeeStructureID {
			continue
		}
		if !filter.From.IsZero() && p.PaymentDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && p.PaymentDate.After(filter.To) {
			continue
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// Reminders

type reminderRepository struct {
	db *reminderTable
}

var _ fees.ReminderRepository = (*reminderRepository)(nil) // interface compliance check

func NewReminderRepository(db *DB) *reminderRepository {
	return &reminderRepository{db: db.reminders}
}

func (repo *reminderRepository) query() []fees.Reminder {
	reminders := make([]fees.Reminder, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		reminders = append(reminders, *r)
	}
	return reminders
}

func (repo *reminderRepository) CreateReminder(_ context.Context, r fees.Reminder) (fees.Reminder, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *reminderRepository) QueryAllReminders(_ context.Context) ([]fees.Reminder, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *reminderRepository) GetReminderByID(_ context.Context, id string) (fees.Reminder, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if r, ok := repo.db.table[id]; ok {
		return *r, nil
	}
	return fees.Reminder{}, fees.ErrReminderNotFound
}

func (repo *reminderRepository) FilterReminders(_ context.Context, filter fees.ReminderQueryFilter) ([]fees.Reminder, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reminders := make([]fees.Reminder, 0)
	for _, r := range repo.query() {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		reminders = append(reminders, r)
	}
	return reminders, nil
}

func (repo *reminderRepository) UpdateReminder(_ context.Context, r fees.Reminder) (fees.Reminder, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[r.ID]; !ok {
		return fees.Reminder{}, fees.ErrReminderNotFound
	}
	repo.db.table[r.ID] = &r
	return r, nil
}
