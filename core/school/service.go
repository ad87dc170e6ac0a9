package school

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kimaro/shulebook/core"
)

var (
	// errors
	ErrAcademicYearNotFound = errors.New("academic year not found")
	ErrClassNotFound        = errors.New("class not found")
	ErrBatchNotFound        = errors.New("batch not found")
	ErrStudentNotFound      = errors.New("student not found")
	ErrNameExists           = errors.New("an academic year with this name already exists")

	errYearInUse  = errors.New("academic year is referenced by existing classes, batches or fee structures")
	errClassInUse = errors.New("class is referenced by existing students or fee structures")
	errBatchInUse = errors.New("batch still has students assigned")
)

type (
	AcademicYearRepository interface {
		CreateAcademicYear(ctx context.Context, year AcademicYear) (AcademicYear, error)
		QueryAllAcademicYears(ctx context.Context) ([]AcademicYear, error)
		GetAcademicYearByID(ctx context.Context, id string) (AcademicYear, error)
		GetAcademicYearByName(ctx context.Context, name string) (AcademicYear, error)
		// ClearCurrentAcademicYear unsets IsCurrent on all years.
		ClearCurrentAcademicYear(ctx context.Context) error
		UpdateAcademicYear(ctx context.Context, year AcademicYear) (AcademicYear, error)
		DeleteAcademicYearsByID(ctx context.Context, ids ...string) error
	}

	ClassRepository interface {
		CreateClass(ctx context.Context, class Class) (Class, error)
		QueryAllClasses(ctx context.Context) ([]Class, error)
		GetClassByID(ctx context.Context, id string) (Class, error)
		FilterClasses(ctx context.Context, filter ClassQueryFilter) ([]Class, error)
		UpdateClass(ctx context.Context, class Class) (Class, error)
		DeleteClassesByID(ctx context.Context, ids ...string) error
	}

	BatchRepository interface {
		CreateBatch(ctx context.Context, batch Batch) (Batch, error)
		QueryAllBatches(ctx context.Context) ([]Batch, error)
		GetBatchByID(ctx context.Context, id string) (Batch, error)
		FilterBatches(ctx context.Context, filter BatchQueryFilter) ([]Batch, error)
		UpdateBatch(ctx context.Context, batch Batch) (Batch, error)
		DeleteBatchesByID(ctx context.Context, ids ...string) error
	}

	StudentRepository interface {
		CreateStudent(ctx context.Context, student Student) (Student, error)
		QueryAllStudents(ctx context.Context) ([]Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		FilterStudents(ctx context.Context, filter StudentQueryFilter) ([]Student, error)
		UpdateStudent(ctx context.Context, student Student) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) error
	}

	// FeeStructureDirectory is the minimal view of the fee module needed for
	// reference-integrity checks on deletes.
	FeeStructureDirectory interface {
		FeeStructuresExistForClass(ctx context.Context, classID string) (bool, error)
		FeeStructuresExistForAcademicYear(ctx context.Context, academicYearID string) (bool, error)
	}

	ServiceInterface interface {
		CheckAcademicYearName(ctx context.Context, name string, excluded ...AcademicYear) error

		CreateAcademicYear(ctx context.Context, ny NewAcademicYear) (AcademicYear, error)
		QueryAcademicYears(ctx context.Context) ([]AcademicYear, error)
		GetAcademicYearByID(ctx context.Context, id string) (AcademicYear, error)
		UpdateAcademicYear(ctx context.Context, id string, uy UpdateAcademicYear) (AcademicYear, error)
		DeleteAcademicYear(ctx context.Context, id string) error

		CreateClass(ctx context.Context, nc NewClass) (Class, error)
		QueryClasses(ctx context.Context, filter *ClassQueryFilter) ([]Class, error)
		GetClassByID(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, id string, uc UpdateClass) (Class, error)
		DeleteClass(ctx context.Context, id string) error

		CreateBatch(ctx context.Context, nb NewBatch) (Batch, error)
		QueryBatches(ctx context.Context, filter *BatchQueryFilter) ([]Batch, error)
		GetBatchByID(ctx context.Context, id string) (Batch, error)
		UpdateBatch(ctx context.Context, id string, ub UpdateBatch) (Batch, error)
		DeleteBatch(ctx context.Context, id string) error

		CreateStudent(ctx context.Context, ns NewStudent) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentQueryFilter) ([]Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		UpdateStudent(ctx context.Context, id string, us UpdateStudent) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
	}

	Service struct {
		years    AcademicYearRepository
		classes  ClassRepository
		batches  BatchRepository
		students StudentRepository
		feeDir   FeeStructureDirectory
		logger   core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	years AcademicYearRepository,
	classes ClassRepository,
	batches BatchRepository,
	students StudentRepository,
	feeDir FeeStructureDirectory,
	logger core.Logger,
) *Service {
	return &Service{
		years:    years,
		classes:  classes,
		batches:  batches,
		students: students,
		feeDir:   feeDir,
		logger:   logger,
	}
}

// Academic Years

func (svc *Service) CheckAcademicYearName(ctx context.Context, name string, excluded ...AcademicYear) error {
	year, err := svc.years.GetAcademicYearByName(ctx, name)
	if err != nil {
		if err == ErrAcademicYearNotFound {
			return nil
		}
		return err
	}
	for _, excl := range excluded {
		if excl.ID == year.ID {
			return nil
		}
	}
	return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
}

func (svc *Service) CreateAcademicYear(ctx context.Context, ny NewAcademicYear) (AcademicYear, error) {
	now := time.Now().UTC()
	year := AcademicYear{
		ID:        uuid.New().String(),
		Name:      ny.Name,
		StartDate: ny.StartDate,
		EndDate:   ny.EndDate,
		IsCurrent: ny.IsCurrent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// at most one current year at a time
	if year.IsCurrent {
		if err := svc.years.ClearCurrentAcademicYear(ctx); err != nil {
			return AcademicYear{}, err
		}
	}
	return svc.years.CreateAcademicYear(ctx, year)
}

func (svc *Service) QueryAcademicYears(ctx context.Context) ([]AcademicYear, error) {
	return svc.years.QueryAllAcademicYears(ctx)
}

func (svc *Service) GetAcademicYearByID(ctx context.Context, id string) (AcademicYear, error) {
	return svc.years.GetAcademicYearByID(ctx, id)
}

func (svc *Service) UpdateAcademicYear(ctx context.Context, id string, uy UpdateAcademicYear) (AcademicYear, error) {
	year, err := svc.years.GetAcademicYearByID(ctx, id)
	if err != nil {
		return AcademicYear{}, err
	}
	year.Name = uy.Name
	year.StartDate = uy.StartDate
	year.EndDate = uy.EndDate
	if uy.IsCurrent != nil {
		if *uy.IsCurrent && !year.IsCurrent {
			if err := svc.years.ClearCurrentAcademicYear(ctx); err != nil {
				return AcademicYear{}, err
			}
		}
		year.IsCurrent = *uy.IsCurrent
	}
	year.UpdatedAt = time.Now().UTC()
	return svc.years.UpdateAcademicYear(ctx, year)
}

func (svc *Service) DeleteAcademicYear(ctx context.Context, id string) error {
	if _, err := svc.years.GetAcademicYearByID(ctx, id); err != nil {
		return err
	}

	classes, err := svc.classes.FilterClasses(ctx, ClassQueryFilter{AcademicYearID: id})
	if err != nil {
		return err
	}
	if len(classes) > 0 {
		return core.NewValidationError(errYearInUse)
	}
	batches, err := svc.batches.FilterBatches(ctx, BatchQueryFilter{AcademicYearID: id})
	if err != nil {
		return err
	}
	if len(batches) > 0 {
		return core.NewValidationError(errYearInUse)
	}
	exists, err := svc.feeDir.FeeStructuresExistForAcademicYear(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return core.NewValidationError(errYearInUse)
	}
	return svc.years.DeleteAcademicYearsByID(ctx, id)
}

// Classes

func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	if _, err := svc.years.GetAcademicYearByID(ctx, nc.AcademicYearID); err != nil {
		return Class{}, err
	}
	now := time.Now().UTC()
	class := Class{
		ID:             uuid.New().String(),
		Name:           nc.Name,
		AcademicYearID: nc.AcademicYearID,
		Capacity:       nc.Capacity,
		Description:    nc.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.classes.CreateClass(ctx, class)
}

func (svc *Service) QueryClasses(ctx context.Context, filter *ClassQueryFilter) ([]Class, error) {
	if filter == nil || filter.IsEmpty() {
		return svc.classes.QueryAllClasses(ctx)
	}
	return svc.classes.FilterClasses(ctx, *filter)
}

func (svc *Service) GetClassByID(ctx context.Context, id string) (Class, error) {
	return svc.classes.GetClassByID(ctx, id)
}

func (svc *Service) UpdateClass(ctx context.Context, id string, uc UpdateClass) (Class, error) {
	class, err := svc.classes.GetClassByID(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if uc.AcademicYearID != class.AcademicYearID {
		if _, err := svc.years.GetAcademicYearByID(ctx, uc.AcademicYearID); err != nil {
			return Class{}, err
		}
	}
	class.Name = uc.Name
	class.AcademicYearID = uc.AcademicYearID
	class.Capacity = uc.Capacity
	class.Description = uc.Description
	class.UpdatedAt = time.Now().UTC()
	return svc.classes.UpdateClass(ctx, class)
}

func (svc *Service) DeleteClass(ctx context.Context, id string) error {
	if _, err := svc.classes.GetClassByID(ctx, id); err != nil {
		return err
	}

	students, err := svc.students.FilterStudents(ctx, StudentQueryFilter{ClassID: id})
	if err != nil {
		return err
	}
	if len(students) > 0 {
		return core.NewValidationError(errClassInUse)
	}
	exists, err := svc.feeDir.FeeStructuresExistForClass(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return core.NewValidationError(errClassInUse)
	}
	return svc.classes.DeleteClassesByID(ctx, id)
}

// Batches

func (svc *Service) CreateBatch(ctx context.Context, nb NewBatch) (Batch, error) {
	class, err := svc.classes.GetClassByID(ctx, nb.ClassID)
	if err != nil {
		return Batch{}, err
	}
	// a batch always lives in its class's academic year
	if nb.AcademicYearID == "" {
		nb.AcademicYearID = class.AcademicYearID
	}
	if nb.Capacity == 0 {
		nb.Capacity = DefaultBatchCapacity
	}
	now := time.Now().UTC()
	batch := Batch{
		ID:             uuid.New().String(),
		Name:           nb.Name,
		ClassID:        nb.ClassID,
		AcademicYearID: nb.AcademicYearID,
		Capacity:       nb.Capacity,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.batches.CreateBatch(ctx, batch)
}

func (svc *Service) QueryBatches(ctx context.Context, filter *BatchQueryFilter) ([]Batch, error) {
	if filter == nil || filter.IsEmpty() {
		return svc.batches.QueryAllBatches(ctx)
	}
	return svc.batches.FilterBatches(ctx, *filter)
}

func (svc *Service) GetBatchByID(ctx context.Context, id string) (Batch, error) {
	return svc.batches.GetBatchByID(ctx, id)
}

func (svc *Service) UpdateBatch(ctx context.Context, id string, ub UpdateBatch) (Batch, error) {
	batch, err := svc.batches.GetBatchByID(ctx, id)
	if err != nil {
		return Batch{}, err
	}
	batch.Name = ub.Name
	batch.Capacity = ub.Capacity
	batch.UpdatedAt = time.Now().UTC()
	return svc.batches.UpdateBatch(ctx, batch)
}

func (svc *Service) DeleteBatch(ctx context.Context, id string) error {
	if _, err := svc.batches.GetBatchByID(ctx, id); err != nil {
		return err
	}
	students, err := svc.students.FilterStudents(ctx, StudentQueryFilter{BatchID: id})
	if err != nil {
		return err
	}
	if len(students) > 0 {
		return core.NewValidationError(errBatchInUse)
	}
	return svc.batches.DeleteBatchesByID(ctx, id)
}

// Students

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if ns.ClassID != "" {
		if _, err := svc.classes.GetClassByID(ctx, ns.ClassID); err != nil {
			return Student{}, err
		}
	}
	if ns.BatchID != "" {
		batch, err := svc.batches.GetBatchByID(ctx, ns.BatchID)
		if err != nil {
			return Student{}, err
		}
		ns.ClassID = batch.ClassID
	}
	now := time.Now().UTC()
	student := Student{
		ID:            uuid.New().String(),
		Name:          ns.Name,
		GuardianName:  ns.GuardianName,
		GuardianEmail: ns.GuardianEmail,
		Phone:         ns.Phone,
		Address:       ns.Address,
		DateOfBirth:   ns.DateOfBirth,
		Status:        ns.Status,
		ClassID:       ns.ClassID,
		BatchID:       ns.BatchID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.students.CreateStudent(ctx, student)
}

func (svc *Service) QueryStudents(ctx context.Context, filter *StudentQueryFilter) ([]Student, error) {
	if filter == nil || filter.IsEmpty() {
		return svc.students.QueryAllStudents(ctx)
	}
	return svc.students.FilterStudents(ctx, *filter)
}

func (svc *Service) GetStudentByID(ctx context.Context, id string) (Student, error) {
	return svc.students.GetStudentByID(ctx, id)
}

func (svc *Service) UpdateStudent(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	student, err := svc.students.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	student.Name = us.Name
	student.GuardianName = us.GuardianName
	student.GuardianEmail = us.GuardianEmail
	student.Phone = us.Phone
	student.Address = us.Address
	student.DateOfBirth = us.DateOfBirth
	student.Status = us.Status
	if us.ClassID != nil {
		if *us.ClassID != "" {
			if _, err := svc.classes.GetClassByID(ctx, *us.ClassID); err != nil {
				return Student{}, err
			}
		}
		student.ClassID = *us.ClassID
	}
	if us.BatchID != nil {
		if *us.BatchID != "" {
			batch, err := svc.batches.GetBatchByID(ctx, *us.BatchID)
			if err != nil {
				return Student{}, err
			}
			student.ClassID = batch.ClassID
		}
		student.BatchID = *us.BatchID
	}
	if us.FeeStructureID != nil {
		student.FeeStructureID = *us.FeeStructureID
	}
	student.UpdatedAt = time.Now().UTC()
	return svc.students.UpdateStudent(ctx, student)
}

func (svc *Service) DeleteStudent(ctx context.Context, id string) error {
	if _, err := svc.students.GetStudentByID(ctx, id); err != nil {
		return err
	}
	return svc.students.DeleteStudentsByID(ctx, id)
}
