package fees

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kimaro/shulebook/core"
)

// Pending-fee row statuses
const (
	StatusOverdue        = "overdue"         // due date passed, zero payments
	StatusPartialOverdue = "partial-overdue" // due date passed, some payments, balance remains
	StatusUpcoming       = "upcoming"        // due date not passed, zero payments
	StatusPartialPaid    = "partial-paid"    // due date not passed, some payments, balance remains
)

// Payment methods
const (
	MethodCash         = "cash"
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodMobileMoney  = "mobile_money"
)

// Reminder statuses
const (
	ReminderPending = "pending"
	ReminderSent    = "sent"
)

// Linking operations recorded in the audit trail
const (
	OpBatchAssign  = "batch-assign"
	OpLinkOnCreate = "auto-link-on-creation"
	OpLinkOnUpdate = "auto-link-on-update"
	OpLinkOnClone  = "auto-link-on-clone"
	OpReconcile    = "reconcile"
)

// Link outcomes
const (
	OutcomeLinked  = "linked"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// UnassignedName labels placeholder report rows for fee structures no student matches.
const UnassignedName = "Unassigned"

// legacy marker kept for payments imported before the explicit flag existed
const discountMarker = "discount applied"

// FeeStructure is a named fee obligation (amount + due date) tied to one
// class and one academic year. Several may coexist per class/year pair.
type FeeStructure struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	ClassID        string          `json:"class_id"`
	AcademicYearID string          `json:"academic_year_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DueDate        *time.Time      `json:"due_date"`
	CreatedAt      time.Time       `json:"created_at"` // UTC
	UpdatedAt      time.Time       `json:"updated_at"` // UTC
}

// IsPastDue reports whether the structure's due date has passed at `now`.
// Structures without a due date are never past due.
func (fs FeeStructure) IsPastDue(now time.Time) bool {
	return fs.DueDate != nil && fs.DueDate.Before(now)
}

// FeePayment is an append-only ledger entry; multiple payments may apply
// against one student+feeStructure pair.
type FeePayment struct {
	ID              string          `json:"id"`
	StudentID       string          `json:"student_id"`
	FeeStructureID  string          `json:"fee_structure_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     time.Time       `json:"payment_date"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes,omitempty"`
	ReceiptNumber   string          `json:"receipt_number"`
	DiscountApplied bool            `json:"discount_applied"`
	CreatedAt       time.Time       `json:"created_at"` // UTC
}

// HasDiscount reports whether the payment settles the balance through a
// discount. The notes substring match survives for ledger entries recorded
// before DiscountApplied existed.
func (p FeePayment) HasDiscount() bool {
	return p.DiscountApplied || strings.Contains(strings.ToLower(p.Notes), discountMarker)
}

type Reminder struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	FeeStructureID string     `json:"fee_structure_id"`
	Message        string     `json:"message"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at"`
	CreatedAt      time.Time  `json:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

// PendingFeeRow is one line of the pending-fee report: an unpaid or partially
// paid balance for a student, or an "Unassigned" placeholder when no student
// currently matches the structure.
type PendingFeeRow struct {
	StudentID      *string         `json:"student_id"`
	StudentName    string          `json:"student_name"`
	FeeStructureID string          `json:"fee_structure_id"`
	FeeName        string          `json:"fee_name"`
	ClassID        string          `json:"class_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	DueAmount      decimal.Decimal `json:"due_amount"`
	DueDate        *time.Time      `json:"due_date"`
	Status         string          `json:"status"`
}

// LinkResult reports the outcome of one student in a bulk linking operation.
// Partial failures are surfaced here instead of being silently swallowed.
type LinkResult struct {
	StudentID      string `json:"student_id"`
	FeeStructureID string `json:"fee_structure_id,omitempty"`
	Outcome        string `json:"outcome"` // linked | skipped | error
	Error          string `json:"error,omitempty"`
}

// MonthlyCollection totals recorded payments for one calendar month.
type MonthlyCollection struct {
	Month string          `json:"month"` // YYYY-MM
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// NewFeeStructure contains information needed to create a new FeeStructure.
type NewFeeStructure struct {
	Name           string     `json:"name" validate:"required"`
	ClassID        string     `json:"class_id" validate:"required"`
	AcademicYearID string     `json:"academic_year_id" validate:"required"`
	TotalAmount    string     `json:"total_amount" validate:"required,decimal"`
	DueDate        *time.Time `json:"due_date"`
}

func (nf *NewFeeStructure) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	return validate.Struct(nf)
}

// Amount returns the parsed total amount. Validate must have passed.
func (nf NewFeeStructure) Amount() decimal.Decimal {
	d, _ := decimal.NewFromString(nf.TotalAmount)
	return d
}

// UpdateFeeStructure defines what information may be provided to modify an
// existing FeeStructure. Empty fields fall back to the original values.
type UpdateFeeStructure struct {
	Name           string     `json:"name"`
	ClassID        string     `json:"class_id"`
	AcademicYearID string     `json:"academic_year_id"`
	TotalAmount    string     `json:"total_amount" validate:"omitempty,decimal"`
	DueDate        *time.Time `json:"due_date"`
}

func (uf *UpdateFeeStructure) Validate(orig FeeStructure, validate *validator.Validate) error {
	if name := core.CleanString(uf.Name); name != "" {
		uf.Name = name
	} else {
		uf.Name = orig.Name
	}
	if uf.ClassID == "" {
		uf.ClassID = orig.ClassID
	}
	if uf.AcademicYearID == "" {
		uf.AcademicYearID = orig.AcademicYearID
	}
	if uf.TotalAmount == "" {
		uf.TotalAmount = orig.TotalAmount.String()
	}
	if uf.DueDate == nil {
		uf.DueDate = orig.DueDate
	}
	return validate.Struct(uf)
}

func (uf UpdateFeeStructure) Amount() decimal.Decimal {
	d, _ := decimal.NewFromString(uf.TotalAmount)
	return d
}

// CloneFeeStructures duplicates every structure of the source class/year pair
// into the target pair.
type CloneFeeStructures struct {
	SourceAcademicYearID string `json:"source_academic_year_id" validate:"required"`
	SourceClassID        string `json:"source_class_id" validate:"required"`
	TargetAcademicYearID string `json:"target_academic_year_id" validate:"required"`
	TargetClassID        string `json:"target_class_id" validate:"required"`
}

func (cf *CloneFeeStructures) Validate(validate *validator.Validate) error {
	return validate.Struct(cf)
}

// NewFeePayment contains information needed to record a payment.
type NewFeePayment struct {
	StudentID       string     `json:"student_id" validate:"required"`
	FeeStructureID  string     `json:"fee_structure_id" validate:"required"`
	Amount          string     `json:"amount" validate:"required,decimal"`
	PaymentDate     *time.Time `json:"payment_date"`
	PaymentMethod   string     `json:"payment_method" validate:"omitempty,oneof=cash card bank_transfer mobile_money"`
	Notes           string     `json:"notes"`
	ReceiptNumber   string     `json:"receipt_number"`
	DiscountApplied bool       `json:"discount_applied"`
}

func (np *NewFeePayment) Validate(validate *validator.Validate) error {
	np.Notes = core.CleanString(np.Notes)
	np.ReceiptNumber = core.CleanString(np.ReceiptNumber)
	if np.PaymentMethod == "" {
		np.PaymentMethod = MethodCash
	}
	return validate.Struct(np)
}

func (np NewFeePayment) ParsedAmount() decimal.Decimal {
	d, _ := decimal.NewFromString(np.Amount)
	return d
}

// NewReminder contains information needed to create a fee Reminder.
type NewReminder struct {
	StudentID      string `json:"student_id" validate:"required"`
	FeeStructureID string `json:"fee_structure_id" validate:"required"`
	Message        string `json:"message" validate:"required"`
}

func (nr *NewReminder) Validate(validate *validator.Validate) error {
	nr.Message = core.CleanString(nr.Message)
	return validate.Struct(nr)
}

// FeeStructureQueryFilter applies AND operation on available fields.
type FeeStructureQueryFilter struct {
	ClassID        string `query:"class_id"`
	AcademicYearID string `query:"academic_year_id"`
}

func (qf *FeeStructureQueryFilter) IsEmpty() bool {
	return qf.ClassID == "" && qf.AcademicYearID == ""
}

// FeePaymentQueryFilter applies AND operation on available fields.
type FeePaymentQueryFilter struct {
	StudentID      string    `query:"student_id"`
	FeeStructureID string    `query:"fee_structure_id"`
	From           time.Time `query:"from"`
	To             time.Time `query:"to"`
}

func (qf *FeePaymentQueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.FeeStructureID == "" && qf.From.IsZero() && qf.To.IsZero()
}

// ReminderQueryFilter applies AND operation on available fields.
type ReminderQueryFilter struct {
	Status    string `query:"status"`
	StudentID string `query:"student_id"`
}

func (qf *ReminderQueryFilter) IsEmpty() bool {
	return qf.Status == "" && qf.StudentID == ""
}
