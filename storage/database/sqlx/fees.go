package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/kimaro/shulebook/core/fees"
	"github.com/kimaro/shulebook/core/school"
)

// Fee structures

type structureRow struct {
	ID             string          `db:"id"`
	Name           string          `db:"name"`
	ClassID        string          `db:"class_id"`
	AcademicYearID sql.NullString  `db:"academic_year_id"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	DueDate        *time.Time      `db:"due_date"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r structureRow) unpack() fees.FeeStructure {
	return fees.FeeStructure{
		ID:             r.ID,
		Name:           r.Name,
		ClassID:        r.ClassID,
		AcademicYearID: r.AcademicYearID.String,
		TotalAmount:    r.TotalAmount,
		DueDate:        r.DueDate,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type structureRepository struct {
	db *sqlx.DB
}

var (
	_ fees.FeeStructureRepository  = (*structureRepository)(nil) // interface compliance check
	_ school.FeeStructureDirectory = (*structureRepository)(nil)
)

func NewFeeStructureRepository(db *sqlx.DB) *structureRepository {
	return &structureRepository{db: db}
}

func (repo *structureRepository) CreateFeeStructure(ctx context.Context, fs fees.FeeStructure) (fees.FeeStructure, error) {
	const q = `
		INSERT INTO fee_structure (id, name, class_id, academic_year_id, total_amount, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := repo.db.ExecContext(ctx, q,
		fs.ID, fs.Name, fs.ClassID, nullStr(fs.AcademicYearID), fs.TotalAmount, fs.DueDate, fs.CreatedAt, fs.UpdatedAt,
	); err != nil {
		return fees.FeeStructure{}, errors.Wrap(err, "inserting fee structure")
	}
	return fs, nil
}

func (repo *structureRepository) QueryAllFeeStructures(ctx context.Context) ([]fees.FeeStructure, error) {
	var rows []structureRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM fee_structure ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	structures := make([]fees.FeeStructure, 0, len(rows))
	for _, r := range rows {
		structures = append(structures, r.unpack())
	}
	return structures, nil
}

func (repo *structureRepository) GetFeeStructureByID(ctx context.Context, id string) (fees.FeeStructure, error) {
	var r structureRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM fee_structure WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return fees.FeeStructure{}, fees.ErrStructureNotFound
		}
		return fees.FeeStructure{}, errors.Wrap(err, "getting fee structure")
	}
	return r.unpack(), nil
}

func (repo *structureRepository) FilterFeeStructures(ctx context.Context, filter fees.FeeStructureQueryFilter) ([]fees.FeeStructure, error) {
	q := `SELECT * FROM fee_structure WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		q += ` AND class_id = ?`
	}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		q += ` AND academic_year_id = ?`
	}
	q += ` ORDER BY created_at DESC`

	var rows []structureRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering fee structures")
	}
	structures := make([]fees.FeeStructure, 0, len(rows))
	for _, r := range rows {
		structures = append(structures, r.unpack())
	}
	return structures, nil
}

func (repo *structureRepository) UpdateFeeStructure(ctx context.Context, fs fees.FeeStructure) (fees.FeeStructure, error) {
	const q = `
		UPDATE fee_structure
		SET name = $2, class_id = $3, academic_year_id = $4, total_amount = $5, due_date = $6, updated_at = $7
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		fs.ID, fs.Name, fs.ClassID, nullStr(fs.AcademicYearID), fs.TotalAmount, fs.DueDate, fs.UpdatedAt,
	)
	if err != nil {
		return fees.FeeStructure{}, errors.Wrap(err, "updating fee structure")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fees.FeeStructure{}, fees.ErrStructureNotFound
	}
	return fs, nil
}

func (repo *structureRepository) DeleteFeeStructuresByID(ctx context.Context, ids ...string) error {
	q, args, err := sqlx.In(`DELETE FROM fee_structure WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting fee structures")
	}
	return nil
}

func (repo *structureRepository) FeeStructuresExistForClass(ctx context.Context, classID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM fee_structure WHERE class_id = $1)`, classID)
	return exists, errors.Wrap(err, "checking fee structures for class")
}

func (repo *structureRepository) FeeStructuresExistForAcademicYear(ctx context.Context, academicYearID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM fee_structure WHERE academic_year_id = $1)`, academicYearID)
	return exists, errors.Wrap(err, "checking fee structures for academic year")
}

// Fee payments

type paymentRow struct {
	ID              string          `db:"id"`
	StudentID       string          `db:"student_id"`
	FeeStructureID  string          `db:"fee_structure_id"`
	Amount          decimal.Decimal `db:"amount"`
	PaymentDate     time.Time       `db:"payment_date"`
	PaymentMethod   string          `db:"payment_method"`
	Notes           string          `db:"notes"`
	ReceiptNumber   string          `db:"receipt_number"`
	DiscountApplied bool            `db:"discount_applied"`
	CreatedAt       time.Time       `db:"created_at"`
}

func (r paymentRow) unpack() fees.FeePayment {
	return fees.FeePayment{
		ID:              r.ID,
		StudentID:       r.StudentID,
		FeeStructureID:  r.FeeStructureID,
		Amount:          r.Amount,
		PaymentDate:     r.PaymentDate,
		PaymentMethod:   r.PaymentMethod,
		Notes:           r.Notes,
		ReceiptNumber:   r.ReceiptNumber,
		DiscountApplied: r.DiscountApplied,
		CreatedAt:       r.CreatedAt,
	}
}

type paymentRepository struct {
	db *sqlx.DB
}

var _ fees.FeePaymentRepository = (*paymentRepository)(nil) // interface compliance check

func NewFeePaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreateFeePayment(ctx context.Context, p fees.FeePayment) (fees.FeePayment, error) {
	const q = `
		INSERT INTO fee_payment (id, student_id, fee_structure_id, amount, payment_date, payment_method,
								 notes, receipt_number, discount_applied, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := repo.db.ExecContext(ctx, q,
		p.ID, p.StudentID, p.FeeStructureID, p.Amount, p.PaymentDate, p.PaymentMethod,
		p.Notes, p.ReceiptNumber, p.DiscountApplied, p.CreatedAt,
	); err != nil {
		return fees.FeePayment{}, errors.Wrap(err, "inserting fee payment")
	}
	return p, nil
}

func (repo *paymentRepository) QueryAllFeePayments(ctx context.Context) ([]fees.FeePayment, error) {
	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM fee_payment ORDER BY payment_date DESC`); err != nil {
		return nil, errors.Wrap(err, "querying fee payments")
	}
	payments := make([]fees.FeePayment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.unpack())
	}
	return payments, nil
}

func (repo *paymentRepository) GetFeePaymentByID(ctx context.Context, id string) (fees.FeePayment, error) {
	var r paymentRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM fee_payment WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return fees.FeePayment{}, fees.ErrPaymentNotFound
		}
		return fees.FeePayment{}, errors.Wrap(err, "getting fee payment")
	}
	return r.unpack(), nil
}

func (repo *paymentRepository) FilterFeePayments(ctx context.Context, filter fees.FeePaymentQueryFilter) ([]fees.FeePayment, error) {
	q := `SELECT * FROM fee_payment WHERE 1=1`
	args := make([]interface{}, 0, 4)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		q += ` AND student_id = ?`
	}
	if filter.FeeStructureID != "" {
		args = append(args, filter.FeeStructureID)
		q += ` AND fee_structure_id = ?`
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		q += ` AND payment_date >= ?`
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		q += ` AND payment_date <= ?`
	}
	q += ` ORDER BY payment_date DESC`

	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering fee payments")
	}
	payments := make([]fees.FeePayment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.unpack())
	}
	return payments, nil
}

// Reminders

type reminderRow struct {
	ID             string     `db:"id"`
	StudentID      string     `db:"student_id"`
	FeeStructureID string     `db:"fee_structure_id"`
	Message        string     `db:"message"`
	Status         string     `db:"status"`
	SentAt         *time.Time `db:"sent_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (r reminderRow) unpack() fees.Reminder {
	return fees.Reminder{
		ID:             r.ID,
		StudentID:      r.StudentID,
		FeeStructureID: r.FeeStructureID,
		Message:        r.Message,
		Status:         r.Status,
		SentAt:         r.SentAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type reminderRepository struct {
	db *sqlx.DB
}

var _ fees.ReminderRepository = (*reminderRepository)(nil) // interface compliance check

func NewReminderRepository(db *sqlx.DB) *reminderRepository {
	return &reminderRepository{db: db}
}

func (repo *reminderRepository) CreateReminder(ctx context.Context, r fees.Reminder) (fees.Reminder, error) {
	const q = `
		INSERT INTO reminder (id, student_id, fee_structure_id, message, status, sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := repo.db.ExecContext(ctx, q,
		r.ID, r.StudentID, r.FeeStructureID, r.Message, r.Status, r.SentAt, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		return fees.Reminder{}, errors.Wrap(err, "inserting reminder")
	}
	return r, nil
}

func (repo *reminderRepository) QueryAllReminders(ctx context.Context) ([]fees.Reminder, error) {
	var rows []reminderRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM reminder ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying reminders")
	}
	reminders := make([]fees.Reminder, 0, len(rows))
	for _, r := range rows {
		reminders = append(reminders, r.unpack())
	}
	return reminders, nil
}

func (repo *reminderRepository) GetReminderByID(ctx context.Context, id string) (fees.Reminder, error) {
	var r reminderRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM reminder WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return fees.Reminder{}, fees.ErrReminderNotFound
		}
		return fees.Reminder{}, errors.Wrap(err, "getting reminder")
	}
	return r.unpack(), nil
}

func (repo *reminderRepository) FilterReminders(ctx context.Context, filter fees.ReminderQueryFilter) ([]fees.Reminder, error) {
	q := `SELECT * FROM reminder WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if filter.Status != "" {
		args = append(args, filter.Status)
		q += ` AND status = ?`
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		q += ` AND student_id = ?`
	}
	q += ` ORDER BY created_at DESC`

	var rows []reminderRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering reminders")
	}
	reminders := make([]fees.Reminder, 0, len(rows))
	for _, r := range rows {
		reminders = append(reminders, r.unpack())
	}
	return reminders, nil
}

func (repo *reminderRepository) UpdateReminder(ctx context.Context, r fees.Reminder) (fees.Reminder, error) {
	const q = `
		UPDATE reminder
		SET message = $2, status = $3, sent_at = $4, updated_at = $5
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, r.ID, r.Message, r.Status, r.SentAt, r.UpdatedAt)
	if err != nil {
		return fees.Reminder{}, errors.Wrap(err, "updating reminder")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fees.Reminder{}, fees.ErrReminderNotFound
	}
	return r, nil
}
