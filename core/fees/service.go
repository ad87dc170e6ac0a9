package fees

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kimaro/shulebook/core"
	"github.com/kimaro/shulebook/core/activity"
	"github.com/kimaro/shulebook/core/school"
)

var (
	// errors
	ErrStructureNotFound = errors.New("fee structure not found")
	ErrPaymentNotFound   = errors.New("fee payment not found")
	ErrReminderNotFound  = errors.New("reminder not found")

	errStructureFrozen = errors.New("past-due fee structure with recorded payments cannot be modified")
	errNothingToClone  = errors.New("no fee structures found for the source class and academic year")
)

type (
	FeeStructureRepository interface {
		CreateFeeStructure(ctx context.Context, fs FeeStructure) (FeeStructure, error)
		QueryAllFeeStructures(ctx context.Context) ([]FeeStructure, error)
		GetFeeStructureByID(ctx context.Context, id string) (FeeStructure, error)
		FilterFeeStructures(ctx context.Context, filter FeeStructureQueryFilter) ([]FeeStructure, error)
		UpdateFeeStructure(ctx context.Context, fs FeeStructure) (FeeStructure, error)
		DeleteFeeStructuresByID(ctx context.Context, ids ...string) error
	}

	FeePaymentRepository interface {
		CreateFeePayment(ctx context.Context, p FeePayment) (FeePayment, error)
		QueryAllFeePayments(ctx context.Context) ([]FeePayment, error)
		GetFeePaymentByID(ctx context.Context, id string) (FeePayment, error)
		FilterFeePayments(ctx context.Context, filter FeePaymentQueryFilter) ([]FeePayment, error)
	}

	ReminderRepository interface {
		CreateReminder(ctx context.Context, r Reminder) (Reminder, error)
		QueryAllReminders(ctx context.Context) ([]Reminder, error)
		GetReminderByID(ctx context.Context, id string) (Reminder, error)
		FilterReminders(ctx context.Context, filter ReminderQueryFilter) ([]Reminder, error)
		UpdateReminder(ctx context.Context, r Reminder) (Reminder, error)
	}

	ServiceInterface interface {
		CreateFeeStructure(ctx context.Context, nf NewFeeStructure) (FeeStructure, []LinkResult, error)
		QueryFeeStructures(ctx context.Context, filter *FeeStructureQueryFilter) ([]FeeStructure, error)
		GetFeeStructureByID(ctx context.Context, id string) (FeeStructure, error)
		UpdateFeeStructure(ctx context.Context, id string, uf UpdateFeeStructure) (FeeStructure, []LinkResult, error)
		CloneFeeStructures(ctx context.Context, cf CloneFeeStructures) ([]FeeStructure, []LinkResult, error)

		AssignStudentsToBatch(ctx context.Context, batchID string, studentIDs []string) ([]LinkResult, error)
		RemoveStudentFromBatch(ctx context.Context, batchID, studentID string) (school.Student, error)
		Reconcile(ctx context.Context, classID string) ([]LinkResult, error)

		PendingFees(ctx context.Context, classID string) ([]PendingFeeRow, error)
		MonthlyCollections(ctx context.Context, year int) ([]MonthlyCollection, error)

		RecordPayment(ctx context.Context, np NewFeePayment) (FeePayment, error)
		QueryPayments(ctx context.Context, filter *FeePaymentQueryFilter) ([]FeePayment, error)

		CreateReminder(ctx context.Context, nr NewReminder) (Reminder, error)
		QueryReminders(ctx context.Context, filter *ReminderQueryFilter) ([]Reminder, error)
		SendReminder(ctx context.Context, id string) (Reminder, error)
		SendPendingReminders(ctx context.Context) ([]Reminder, error)
	}

	Service struct {
		structures FeeStructureRepository
		payments   FeePaymentRepository
		reminders  ReminderRepository
		students   school.StudentRepository
		batches    school.BatchRepository
		classes    school.ClassRepository
		activities activity.ServiceInterface
		mail       core.EmailService
		logger     core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	structures FeeStructureRepository,
	payments FeePaymentRepository,
	reminders ReminderRepository,
	students school.StudentRepository,
	batches school.BatchRepository,
	classes school.ClassRepository,
	activities activity.ServiceInterface,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		structures: structures,
		payments:   payments,
		reminders:  reminders,
		students:   students,
		batches:    batches,
		classes:    classes,
		activities: activities,
		mail:       mailSvc,
		logger:     logger,
	}
}

// Fee Structures

func (svc *Service) CreateFeeStructure(ctx context.Context, nf NewFeeStructure) (FeeStructure, []LinkResult, error) {
	if _, err := svc.classes.GetClassByID(ctx, nf.ClassID); err != nil {
		return FeeStructure{}, nil, err
	}

	now := time.Now().UTC()
	fs := FeeStructure{
		ID:             uuid.New().String(),
		Name:           nf.Name,
		ClassID:        nf.ClassID,
		AcademicYearID: nf.AcademicYearID,
		TotalAmount:    nf.Amount(),
		DueDate:        nf.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	fs, err := svc.structures.CreateFeeStructure(ctx, fs)
	if err != nil {
		return FeeStructure{}, nil, err
	}

	// best effort: linking failures never fail the create
	results := svc.linkStructure(ctx, fs, OpLinkOnCreate)
	return fs, results, nil
}

func (svc *Service) QueryFeeStructures(ctx context.Context, filter *FeeStructureQueryFilter) ([]FeeStructure, error) {
	if filter == nil || filter.IsEmpty() {
		return svc.structures.QueryAllFeeStructures(ctx)
	}
	return svc.structures.FilterFeeStructures(ctx, *filter)
}

func (svc *Service) GetFeeStructureByID(ctx context.Context, id string) (FeeStructure, error) {
	return svc.structures.GetFeeStructureByID(ctx, id)
}

func (svc *Service) UpdateFeeStructure(ctx context.Context, id string, uf UpdateFeeStructure) (FeeStructure, []LinkResult, error) {
	fs, err := svc.structures.GetFeeStructureByID(ctx, id)
	if err != nil {
		return FeeStructure{}, nil, err
	}

	// past-due structures with recorded collections are frozen to preserve
	// reporting integrity
	if fs.IsPastDue(time.Now().UTC()) {
		pays, err := svc.payments.FilterFeePayments(ctx, FeePaymentQueryFilter{FeeStructureID: fs.ID})
		if err != nil {
			return FeeStructure{}, nil, err
		}
		if len(pays) > 0 {
			return FeeStructure{}, nil, core.NewValidationError(errStructureFrozen)
		}
	}

	targetChanged := uf.ClassID != fs.ClassID || uf.AcademicYearID != fs.AcademicYearID
	if targetChanged {
		if _, err := svc.classes.GetClassByID(ctx, uf.ClassID); err != nil {
			return FeeStructure{}, nil, err
		}
	}

	fs.Name = uf.Name
	fs.ClassID = uf.ClassID
	fs.AcademicYearID = uf.AcademicYearID
	fs.TotalAmount = uf.Amount()
	fs.DueDate = uf.DueDate
	fs.UpdatedAt = time.Now().UTC()

	fs, err = svc.structures.UpdateFeeStructure(ctx, fs)
	if err != nil {
		return FeeStructure{}, nil, err
	}

	var results []LinkResult
	if targetChanged {
		results = svc.linkStructure(ctx, fs, OpLinkOnUpdate)
	}
	return fs, results, nil
}

func (svc *Service) CloneFeeStructures(ctx context.Context, cf CloneFeeStructures) ([]FeeStructure, []LinkResult, error) {
	if _, err := svc.classes.GetClassByID(ctx, cf.TargetClassID); err != nil {
		return nil, nil, err
	}

	src, err := svc.structures.FilterFeeStructures(ctx, FeeStructureQueryFilter{
		ClassID:        cf.SourceClassID,
		AcademicYearID: cf.SourceAcademicYearID,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(src) == 0 {
		return nil, nil, core.NewValidationError(errNothingToClone)
	}

	now := time.Now().UTC()
	clones := make([]FeeStructure, 0, len(src))
	var results []LinkResult
	for _, orig := range src {
		clone := FeeStructure{
			ID:             uuid.New().String(),
			Name:           orig.Name,
			ClassID:        cf.TargetClassID,
			AcademicYearID: cf.TargetAcademicYearID,
			TotalAmount:    orig.TotalAmount,
			DueDate:        orig.DueDate,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		clone, err := svc.structures.CreateFeeStructure(ctx, clone)
		if err != nil {
			return nil, nil, err
		}
		clones = append(clones, clone)
		results = append(results, svc.linkStructure(ctx, clone, OpLinkOnClone)...)
	}
	return clones, results, nil
}

// Payments

func (svc *Service) RecordPayment(ctx context.Context, np NewFeePayment) (FeePayment, error) {
	if _, err := svc.students.GetStudentByID(ctx, np.StudentID); err != nil {
		return FeePayment{}, err
	}
	if _, err := svc.structures.GetFeeStructureByID(ctx, np.FeeStructureID); err != nil {
		return FeePayment{}, err
	}

	now := time.Now().UTC()
	payDate := now
	if np.PaymentDate != nil {
		payDate = np.PaymentDate.UTC()
	}
	receipt := np.ReceiptNumber
	if receipt == "" {
		receipt = newReceiptNumber()
	}

	payment := FeePayment{
		ID:              uuid.New().String(),
		StudentID:       np.StudentID,
		FeeStructureID:  np.FeeStructureID,
		Amount:          np.ParsedAmount(),
		PaymentDate:     payDate,
		PaymentMethod:   np.PaymentMethod,
		Notes:           np.Notes,
		ReceiptNumber:   receipt,
		DiscountApplied: np.DiscountApplied,
		CreatedAt:       now,
	}
	payment, err := svc.payments.CreateFeePayment(ctx, payment)
	if err != nil {
		return FeePayment{}, err
	}

	svc.activities.Record(ctx, activity.TypeFee, "payment", map[string]interface{}{
		"studentId":      payment.StudentID,
		"feeStructureId": payment.FeeStructureID,
		"amount":         payment.Amount.String(),
		"receiptNumber":  payment.ReceiptNumber,
	})
	return payment, nil
}

func (svc *Service) QueryPayments(ctx context.Context, filter *FeePaymentQueryFilter) ([]FeePayment, error) {
	if filter == nil || filter.IsEmpty() {
		return svc.payments.QueryAllFeePayments(ctx)
	}
	return svc.payments.FilterFeePayments(ctx, *filter)
}

func newReceiptNumber() string {
	return "RCP-" + strings.ToUpper(uuid.New().String()[:8])
}

// Reminders

func (svc *Service) CreateReminder(ctx context.Context, nr NewReminder) (Reminder, error) {
	if _, err := svc.students.GetStudentByID(ctx, nr.StudentID); err != nil {
		return Reminder{}, err
	}
	if _, err := svc.structures.GetFeeStructureByID(ctx, nr.FeeStructureID); err != nil {
		return Reminder{}, err
	}
	now := time.Now().UTC()
	rem := Reminder{
		ID:             uuid.New().String(),
		StudentID:      nr.StudentID,
		FeeStructureID: nr.FeeStructureID,
		Message:        nr.Message,
		Status:         ReminderPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.reminders.CreateReminder(ctx, rem)
}

func (svc *Service) QueryReminders(ctx context.Context, filter *ReminderQueryFilter) ([]Reminder, error) {
	if filter == nil || filter.IsEmpty() {
		return svc.reminders.QueryAllReminders(ctx)
	}
	return svc.reminders.FilterReminders(ctx, *filter)
}

func (svc *Service) SendReminder(ctx context.Context, id string) (Reminder, error) {
	rem, err := svc.reminders.GetReminderByID(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	return svc.send(ctx, rem)
}

func (svc *Service) SendPendingReminders(ctx context.Context) ([]Reminder, error) {
	pending, err := svc.reminders.FilterReminders(ctx, ReminderQueryFilter{Status: ReminderPending})
	if err != nil {
		return nil, err
	}
	sent := make([]Reminder, 0, len(pending))
	for _, rem := range pending {
		rem, err := svc.send(ctx, rem)
		if err != nil {
			svc.logger.Error("sending reminder", err, map[string]interface{}{"reminderId": rem.ID})
			continue
		}
		sent = append(sent, rem)
	}
	return sent, nil
}

func (svc *Service) send(ctx context.Context, rem Reminder) (Reminder, error) {
	student, err := svc.students.GetStudentByID(ctx, rem.StudentID)
	if err != nil {
		return Reminder{}, err
	}
	fs, err := svc.structures.GetFeeStructureByID(ctx, rem.FeeStructureID)
	if err != nil {
		return Reminder{}, err
	}

	if student.GuardianEmail != "" {
		due, _, _, err := svc.balance(ctx, student.ID, fs)
		if err != nil {
			return Reminder{}, err
		}
		svc.mail.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: student.GuardianName, Address: student.GuardianEmail}},
			Subject:      fmt.Sprintf("Fee reminder for %s", student.Name),
			TemplateName: "fee-reminder",
			TemplateData: struct {
				StudentName string
				FeeName     string
				DueAmount   string
				DueDate     *time.Time
				Message     string
			}{student.Name, fs.Name, due.StringFixed(2), fs.DueDate, rem.Message},
		})
	}

	now := time.Now().UTC()
	rem.Status = ReminderSent
	rem.SentAt = &now
	rem.UpdatedAt = now
	return svc.reminders.UpdateReminder(ctx, rem)
}
