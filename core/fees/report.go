package fees

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimaro/shulebook/core/school"
)

// balance computes the student's due amount against the structure:
// totalAmount minus the sum of matching payments.
func (svc *Service) balance(ctx context.Context, studentID string, fs FeeStructure) (due, totalPaid decimal.Decimal, payments []FeePayment, err error) {
	payments, err = svc.payments.FilterFeePayments(ctx, FeePaymentQueryFilter{
		StudentID:      studentID,
		FeeStructureID: fs.ID,
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, nil, err
	}
	totalPaid = decimal.Zero
	for _, p := range payments {
		totalPaid = totalPaid.Add(p.Amount)
	}
	return fs.TotalAmount.Sub(totalPaid), totalPaid, payments, nil
}

func deriveStatus(fs FeeStructure, hasPayments bool, now time.Time) string {
	if fs.IsPastDue(now) {
		if hasPayments {
			return StatusPartialOverdue
		}
		return StatusOverdue
	}
	if hasPayments {
		return StatusPartialPaid
	}
	return StatusUpcoming
}

// pendingRow builds the report row for one student/structure pair. The bool
// is false when the pair must be omitted: settled (due <= 0) or suppressed by
// a discount payment.
func (svc *Service) pendingRow(ctx context.Context, student school.Student, fs FeeStructure, now time.Time) (PendingFeeRow, bool, error) {
	due, totalPaid, payments, err := svc.balance(ctx, student.ID, fs)
	if err != nil {
		return PendingFeeRow{}, false, err
	}
	if due.LessThanOrEqual(decimal.Zero) {
		return PendingFeeRow{}, false, nil
	}
	for _, p := range payments {
		if p.HasDiscount() {
			return PendingFeeRow{}, false, nil
		}
	}

	studentID := student.ID
	return PendingFeeRow{
		StudentID:      &studentID,
		StudentName:    student.Name,
		FeeStructureID: fs.ID,
		FeeName:        fs.Name,
		ClassID:        fs.ClassID,
		TotalAmount:    fs.TotalAmount,
		TotalPaid:      totalPaid,
		DueAmount:      due,
		DueDate:        fs.DueDate,
		Status:         deriveStatus(fs, len(payments) > 0, now),
	}, true, nil
}

// PendingFees computes the pending-fee report. It is a pure query: candidate
// resolution never mutates student state (Reconcile is the write-side
// counterpart). An optional classID narrows both passes.
func (svc *Service) PendingFees(ctx context.Context, classID string) ([]PendingFeeRow, error) {
	now := time.Now().UTC()

	studentFilter := school.StudentQueryFilter{Status: school.StudentStatusActive}
	if classID != "" {
		studentFilter.ClassID = classID
	}
	students, err := svc.students.FilterStudents(ctx, studentFilter)
	if err != nil {
		return nil, err
	}

	rows := make([]PendingFeeRow, 0, len(students))
	represented := make(map[string]bool)

	// assigned pass: every active student with a fee link
	for _, student := range students {
		if student.FeeStructureID == "" {
			continue
		}
		fs, err := svc.structures.GetFeeStructureByID(ctx, student.FeeStructureID)
		if err != nil {
			if err == ErrStructureNotFound {
				// dangling link; the structure was deleted out from under the student
				svc.logger.Warn("student references missing fee structure",
					map[string]interface{}{"studentId": student.ID, "feeStructureId": student.FeeStructureID})
				continue
			}
			return nil, err
		}
		row, ok, err := svc.pendingRow(ctx, student, fs, now)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
			represented[fs.ID] = true
		}
	}

	// orphan pass: structures with no row yet
	var structures []FeeStructure
	if classID != "" {
		structures, err = svc.structures.FilterFeeStructures(ctx, FeeStructureQueryFilter{ClassID: classID})
	} else {
		structures, err = svc.structures.QueryAllFeeStructures(ctx)
	}
	if err != nil {
		return nil, err
	}

	batchByID, err := svc.batchIndex(ctx)
	if err != nil {
		return nil, err
	}

	for _, fs := range structures {
		if represented[fs.ID] {
			continue
		}

		var qualified bool
		for _, student := range students {
			if !studentMatchesStructure(student, fs, batchByID) {
				continue
			}
			qualified = true
			row, ok, err := svc.pendingRow(ctx, student, fs, now)
			if err != nil {
				return nil, err
			}
			if ok {
				rows = append(rows, row)
			}
		}
		if !qualified {
			rows = append(rows, placeholderRow(fs, now))
		}
	}

	sortPendingRows(rows)
	return rows, nil
}

// studentMatchesStructure reports whether the student qualifies for the
// structure in the orphan pass: a direct reference, the same class/year pair
// via their batch, or a matching class for students with no batch at all.
func studentMatchesStructure(student school.Student, fs FeeStructure, batchByID map[string]school.Batch) bool {
	if student.FeeStructureID == fs.ID {
		return true
	}
	if student.BatchID != "" {
		batch, ok := batchByID[student.BatchID]
		return ok && batch.ClassID == fs.ClassID && batch.AcademicYearID == fs.AcademicYearID
	}
	return student.ClassID == fs.ClassID
}

func placeholderRow(fs FeeStructure, now time.Time) PendingFeeRow {
	return PendingFeeRow{
		StudentID:      nil,
		StudentName:    UnassignedName,
		FeeStructureID: fs.ID,
		FeeName:        fs.Name,
		ClassID:        fs.ClassID,
		TotalAmount:    fs.TotalAmount,
		TotalPaid:      decimal.Zero,
		DueAmount:      fs.TotalAmount,
		DueDate:        fs.DueDate,
		Status:         deriveStatus(fs, false, now),
	}
}

// sortPendingRows orders overdue rows first, the rest by ascending due date
// with null due dates last.
func sortPendingRows(rows []PendingFeeRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		ao, bo := a.Status == StatusOverdue, b.Status == StatusOverdue
		if ao != bo {
			return ao
		}
		if (a.DueDate == nil) != (b.DueDate == nil) {
			return a.DueDate != nil
		}
		if a.DueDate == nil {
			return false
		}
		return a.DueDate.Before(*b.DueDate)
	})
}

// MonthlyCollections totals recorded payments per calendar month of the given
// year (current year when zero).
func (svc *Service) MonthlyCollections(ctx context.Context, year int) ([]MonthlyCollection, error) {
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	payments, err := svc.payments.QueryAllFeePayments(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*MonthlyCollection)
	for _, p := range payments {
		if p.PaymentDate.Year() != year {
			continue
		}
		key := fmt.Sprintf("%d-%02d", year, int(p.PaymentDate.Month()))
		mc, ok := totals[key]
		if !ok {
			mc = &MonthlyCollection{Month: key, Total: decimal.Zero}
			totals[key] = mc
		}
		mc.Total = mc.Total.Add(p.Amount)
		mc.Count++
	}

	out := make([]MonthlyCollection, 0, len(totals))
	for _, mc := range totals {
		out = append(out, *mc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}
