package inmemdb

import (
	"context"
	"strings"

	"github.com/kimaro/shulebook/core/school"
)

// Academic years

type yearRepository struct {
	db *yearTable
}

var _ school.AcademicYearRepository = (*yearRepository)(nil) // interface compliance check

func NewAcademicYearRepository(db *DB) *yearRepository {
	return &yearRepository{db: db.years}
}

func (repo *yearRepository) query() []school.AcademicYear {
	years := make([]school.AcademicYear, 0, len(repo.db.table))
	for _, y := range repo.db.table {
		years = append(years, *y)
	}
	return years
}

func (repo *yearRepository) CreateAcademicYear(_ context.Context, year school.AcademicYear) (school.AcademicYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[year.ID] = &year
	return year, nil
}

func (repo *yearRepository) QueryAllAcademicYears(_ context.Context) ([]school.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *yearRepository) GetAcademicYearByID(_ context.Context, id string) (school.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if y, ok := repo.db.table[id]; ok {
		return *y, nil
	}
	return school.AcademicYear{}, school.ErrAcademicYearNotFound
}

func (repo *yearRepository) GetAcademicYearByName(_ context.Context, name string) (school.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	for _, y := range repo.query() {
		if strings.EqualFold(y.Name, name) {
			return y, nil
		}
	}
	return school.AcademicYear{}, school.ErrAcademicYearNotFound
}

func (repo *yearRepository) ClearCurrentAcademicYear(_ context.Context) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, y := range repo.db.table {
		y.IsCurrent = false
	}
	return nil
}

func (repo *yearRepository) UpdateAcademicYear(_ context.Context, year school.AcademicYear) (school.AcademicYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[year.ID]; !ok {
		return school.AcademicYear{}, school.ErrAcademicYearNotFound
	}
	repo.db.table[year.ID] = &year
	return year, nil
}

func (repo *yearRepository) DeleteAcademicYearsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

// Classes

type classRepository struct {
	db *classTable
}

var _ school.ClassRepository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db.classes}
}

func (repo *classRepository) query() []school.Class {
	classes := make([]school.Class, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		classes = append(classes, *c)
	}
	return classes
}

func (repo *classRepository) CreateClass(_ context.Context, class school.Class) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[class.ID] = &class
	return class, nil
}

func (repo *classRepository) QueryAllClasses(_ context.Context) ([]school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *classRepository) GetClassByID(_ context.Context, id string) (school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *classRepository) FilterClasses(_ context.Context, filter school.ClassQueryFilter) ([]school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]school.Class, 0)
	search := strings.ToLower(filter.Search)
	for _, c := range repo.query() {
		if filter.AcademicYearID != "" && c.AcademicYearID != filter.AcademicYearID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) {
			continue
		}
		classes = append(classes, c)
	}
	return classes, nil
}

func (repo *classRepository) UpdateClass(_ context.Context, class school.Class) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[class.ID]; !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	repo.db.table[class.ID] = &class
	return class, nil
}

func (repo *classRepository) DeleteClassesByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

// Batches

type batchRepository struct {
	db *batchTable
}

var _ school.BatchRepository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(db *DB) *batchRepository {
	return &batchRepository{db: db.batches}
}

func (repo *batchRepository) query() []school.Batch {
	batches := make([]school.Batch, 0, len(repo.db.table))
	for _, b := range repo.db.table {
		batches = append(batches, *b)
	}
	return batches
}

func (repo *batchRepository) CreateBatch(_ context.Context, batch school.Batch) (school.Batch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[batch.ID] = &batch
	return batch, nil
}

func (repo *batchRepository) QueryAllBatches(_ context.Context) ([]school.Batch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *batchRepository) GetBatchByID(_ context.Context, id string) (school.Batch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if b, ok := repo.db.table[id]; ok {
		return *b, nil
	}
	return school.Batch{}, school.ErrBatchNotFound
}

func (repo *batchRepository) FilterBatches(_ context.Context, filter school.BatchQueryFilter) ([]school.Batch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	batches := make([]school.Batch, 0)
	for _, b := range repo.query() {
		if filter.ClassID != "" && b.ClassID != filter.ClassID {
			continue
		}
		if filter.AcademicYearID != "" && b.AcademicYearID != filter.AcademicYearID {
			continue
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func (repo *batchRepository) UpdateBatch(_ context.Context, batch school.Batch) (school.Batch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[batch.ID]; !ok {
		return school.Batch{}, school.ErrBatchNotFound
	}
	repo.db.table[batch.ID] = &batch
	return batch, nil
}

func (repo *batchRepository) DeleteBatchesByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

// Students

type studentRepository struct {
	db *studentTable
}

var _ school.StudentRepository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.students}
}

func (repo *studentRepository) query() []school.Student {
	students := make([]school.Student, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		students = append(students, *s)
	}
	return students
}

func (repo *studentRepository) CreateStudent(_ context.Context, student school.Student) (school.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[student.ID] = &student
	return student, nil
}

func (repo *studentRepository) QueryAllStudents(_ context.Context) ([]school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id string) (school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if s, ok := repo.db.table[id]; ok {
		return *s, nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *studentRepository) FilterStudents(_ context.Context, filter school.StudentQueryFilter) ([]school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]school.Student, 0)
	search := strings.ToLower(filter.Search)
	for _, s := range repo.query() {
		if search != "" &&
			!strings.Contains(strings.ToLower(s.Name), search) &&
			!strings.Contains(strings.ToLower(s.GuardianName), search) &&
			!strings.Contains(strings.ToLower(s.GuardianEmail), search) {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.ClassID != "" && s.ClassID != filter.ClassID {
			continue
		}
		if filter.BatchID != "" && s.BatchID != filter.BatchID {
			continue
		}
		if filter.FeeStructureID != "" && s.FeeStructureID != filter.FeeStructureID {
			continue
		}
		students = append(students, s)
	}
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, student school.Student) (school.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[student.ID]; !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	repo.db.table[student.ID] = &student
	return student, nil
}

func (repo *studentRepository) DeleteStudentsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
