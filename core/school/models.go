package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kimaro/shulebook/core"
)

// Student statuses
const (
	StudentStatusActive   = "active"
	StudentStatusInactive = "inactive"
	StudentStatusOnLeave  = "on_leave"
)

var StudentStatuses = []string{StudentStatusActive, StudentStatusInactive, StudentStatusOnLeave}

// DefaultBatchCapacity applies when a new Batch does not specify one.
const DefaultBatchCapacity = 20

type AcademicYear struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsCurrent bool      `json:"is_current"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Class struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	AcademicYearID string    `json:"academic_year_id"`
	Capacity       int       `json:"capacity"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

type Batch struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ClassID        string    `json:"class_id"`
	AcademicYearID string    `json:"academic_year_id"`
	Capacity       int       `json:"capacity"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

type Student struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	GuardianName  string     `json:"guardian_name"`
	GuardianEmail string     `json:"guardian_email"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	Status        string     `json:"status"`

	// nullable links; empty means unassigned.
	// FeeStructureID caches the student's current fee obligation and is kept
	// consistent by the fee linking engine, not only by direct edits.
	ClassID        string `json:"class_id,omitempty"`
	BatchID        string `json:"batch_id,omitempty"`
	FeeStructureID string `json:"fee_structure_id,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (s Student) IsActive() bool { return s.Status == StudentStatusActive }

// NewAcademicYear contains information needed to create a new AcademicYear.
type NewAcademicYear struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	IsCurrent bool      `json:"is_current"`
}

func (ny *NewAcademicYear) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	ny.Name = core.CleanString(ny.Name)
	if err := validate.Struct(ny); err != nil {
		return err
	}
	return svc.CheckAcademicYearName(ctx, ny.Name)
}

// UpdateAcademicYear defines what information may be provided to modify an existing AcademicYear.
// Empty fields fall back to the original values.
type UpdateAcademicYear struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date" validate:"omitempty,gtfield=StartDate"`
	IsCurrent *bool     `json:"is_current"`
}

func (uy *UpdateAcademicYear) Validate(ctx context.Context, orig AcademicYear, validate *validator.Validate, svc ServiceInterface) error {
	if name := core.CleanString(uy.Name); name != "" {
		uy.Name = name
	} else {
		uy.Name = orig.Name
	}
	if uy.StartDate.IsZero() {
		uy.StartDate = orig.StartDate
	}
	if uy.EndDate.IsZero() {
		uy.EndDate = orig.EndDate
	}
	if err := validate.Struct(uy); err != nil {
		return err
	}
	return svc.CheckAcademicYearName(ctx, uy.Name, orig)
}

type NewClass struct {
	Name           string `json:"name" validate:"required"`
	AcademicYearID string `json:"academic_year_id" validate:"required"`
	Capacity       int    `json:"capacity" validate:"omitempty,gt=0"`
	Description    string `json:"description"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type UpdateClass struct {
	Name           string `json:"name"`
	AcademicYearID string `json:"academic_year_id"`
	Capacity       int    `json:"capacity" validate:"omitempty,gt=0"`
	Description    string `json:"description"`
}

func (uc *UpdateClass) Validate(orig Class, validate *validator.Validate) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if uc.AcademicYearID == "" {
		uc.AcademicYearID = orig.AcademicYearID
	}
	if uc.Capacity == 0 {
		uc.Capacity = orig.Capacity
	}
	if desc := core.CleanString(uc.Description); desc != "" {
		uc.Description = desc
	} else {
		uc.Description = orig.Description
	}
	return validate.Struct(uc)
}

type NewBatch struct {
	Name           string `json:"name" validate:"required"`
	ClassID        string `json:"class_id" validate:"required"`
	AcademicYearID string `json:"academic_year_id"`
	Capacity       int    `json:"capacity" validate:"omitempty,gt=0"`
}

func (nb *NewBatch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	return validate.Struct(nb)
}

type UpdateBatch struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity" validate:"omitempty,gt=0"`
}

func (ub *UpdateBatch) Validate(orig Batch, validate *validator.Validate) error {
	if name := core.CleanString(ub.Name); name != "" {
		ub.Name = name
	} else {
		ub.Name = orig.Name
	}
	if ub.Capacity == 0 {
		ub.Capacity = orig.Capacity
	}
	return validate.Struct(ub)
}

type NewStudent struct {
	Name          string     `json:"name" validate:"required"`
	GuardianName  string     `json:"guardian_name"`
	GuardianEmail string     `json:"guardian_email" validate:"omitempty,email"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	Status        string     `json:"status" validate:"omitempty,oneof=active inactive on_leave"`
	ClassID       string     `json:"class_id"`
	BatchID       string     `json:"batch_id"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.GuardianName = core.CleanString(ns.GuardianName)
	ns.GuardianEmail = core.CleanString(ns.GuardianEmail, true /* lower */)
	if ns.Status == "" {
		ns.Status = StudentStatusActive
	}
	return validate.Struct(ns)
}

type UpdateStudent struct {
	Name          string     `json:"name"`
	GuardianName  string     `json:"guardian_name"`
	GuardianEmail string     `json:"guardian_email" validate:"omitempty,email"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	Status        string     `json:"status" validate:"omitempty,oneof=active inactive on_leave"`

	// pointers distinguish "leave untouched" (nil) from "clear" (empty string)
	ClassID        *string `json:"class_id"`
	BatchID        *string `json:"batch_id"`
	FeeStructureID *string `json:"fee_structure_id"`
}

func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	us.GuardianName = core.CleanString(us.GuardianName)
	if us.GuardianName == "" {
		us.GuardianName = orig.GuardianName
	}
	us.GuardianEmail = core.CleanString(us.GuardianEmail, true /* lower */)
	if us.GuardianEmail == "" {
		us.GuardianEmail = orig.GuardianEmail
	}
	if us.Phone == "" {
		us.Phone = orig.Phone
	}
	if us.Address == "" {
		us.Address = orig.Address
	}
	if us.DateOfBirth == nil {
		us.DateOfBirth = orig.DateOfBirth
	}
	if us.Status == "" {
		us.Status = orig.Status
	}
	return validate.Struct(us)
}

// StudentQueryFilter applies AND operation on available fields.
// Search does a case-insensitive match on one of Student.Name, Student.GuardianName or Student.GuardianEmail.
type StudentQueryFilter struct {
	Search         string `query:"search"`
	Status         string `query:"status"`
	ClassID        string `query:"class_id"`
	BatchID        string `query:"batch_id"`
	FeeStructureID string `query:"fee_structure_id"`
}

func (qf *StudentQueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.ClassID == "" && qf.BatchID == "" && qf.FeeStructureID == ""
}

func (qf *StudentQueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// BatchQueryFilter applies AND operation on available fields.
type BatchQueryFilter struct {
	ClassID        string `query:"class_id"`
	AcademicYearID string `query:"academic_year_id"`
}

func (qf *BatchQueryFilter) IsEmpty() bool {
	return qf.ClassID == "" && qf.AcademicYearID == ""
}

// ClassQueryFilter applies AND operation on available fields.
type ClassQueryFilter struct {
	AcademicYearID string `query:"academic_year_id"`
	Search         string `query:"search"`
}

func (qf *ClassQueryFilter) IsEmpty() bool {
	return qf.AcademicYearID == "" && qf.Search == ""
}

func (qf *ClassQueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
