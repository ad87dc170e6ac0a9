package fees

import (
	"context"
	"sort"

	"github.com/kimaro/shulebook/core/activity"
	"github.com/kimaro/shulebook/core/school"
)

// pickFeeStructure resolves the ambiguity when several fee structures target
// the same class/year pair: prefer the structure with the furthest-future due
// date, null due dates sort last, ties broken by newest CreatedAt first.
func pickFeeStructure(matches []FeeStructure) FeeStructure {
	sorted := make([]FeeStructure, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if (a.DueDate == nil) != (b.DueDate == nil) {
			return a.DueDate != nil
		}
		if a.DueDate != nil && !a.DueDate.Equal(*b.DueDate) {
			return a.DueDate.After(*b.DueDate)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return sorted[0]
}

// AssignStudentsToBatch assigns the students to the batch and links each one
// to the fee structure matching the batch's class/year pair, if any. The
// operation is best effort: a failing student is reported in the result list
// and never aborts the loop.
func (svc *Service) AssignStudentsToBatch(ctx context.Context, batchID string, studentIDs []string) ([]LinkResult, error) {
	batch, err := svc.batches.GetBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	matches, err := svc.structures.FilterFeeStructures(ctx, FeeStructureQueryFilter{
		ClassID:        batch.ClassID,
		AcademicYearID: batch.AcademicYearID,
	})
	if err != nil {
		return nil, err
	}
	var target FeeStructure
	if len(matches) > 0 {
		target = pickFeeStructure(matches)
	}

	results := make([]LinkResult, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		student, err := svc.students.GetStudentByID(ctx, studentID)
		if err != nil {
			svc.logger.Error("assigning student to batch", err, map[string]interface{}{"studentId": studentID})
			results = append(results, LinkResult{StudentID: studentID, Outcome: OutcomeError, Error: err.Error()})
			continue
		}

		// batch and class are set unconditionally; the fee link only when a
		// structure matches
		student.BatchID = batch.ID
		student.ClassID = batch.ClassID
		if target.ID != "" {
			student.FeeStructureID = target.ID
		}

		if _, err := svc.students.UpdateStudent(ctx, student); err != nil {
			svc.logger.Error("assigning student to batch", err, map[string]interface{}{"studentId": studentID})
			results = append(results, LinkResult{StudentID: studentID, Outcome: OutcomeError, Error: err.Error()})
			continue
		}

		if target.ID == "" {
			results = append(results, LinkResult{StudentID: studentID, Outcome: OutcomeSkipped})
			continue
		}

		svc.activities.Record(ctx, activity.TypeFee, "assign", map[string]interface{}{
			"studentId":      studentID,
			"feeStructureId": target.ID,
			"operation":      OpBatchAssign,
		})
		results = append(results, LinkResult{StudentID: studentID, FeeStructureID: target.ID, Outcome: OutcomeLinked})
	}
	return results, nil
}

// RemoveStudentFromBatch clears the student's batch assignment. The fee link
// is cleared only when the current fee structure targets the removed batch's
// class/year pair, guarding against clearing an unrelated fee assignment.
func (svc *Service) RemoveStudentFromBatch(ctx context.Context, batchID, studentID string) (school.Student, error) {
	batch, err := svc.batches.GetBatchByID(ctx, batchID)
	if err != nil {
		return school.Student{}, err
	}
	student, err := svc.students.GetStudentByID(ctx, studentID)
	if err != nil {
		return school.Student{}, err
	}

	student.BatchID = ""
	if student.FeeStructureID != "" {
		fs, err := svc.structures.GetFeeStructureByID(ctx, student.FeeStructureID)
		if err == nil && fs.ClassID == batch.ClassID && fs.AcademicYearID == batch.AcademicYearID {
			student.FeeStructureID = ""
			svc.activities.Record(ctx, activity.TypeFee, "unassign", map[string]interface{}{
				"studentId":      studentID,
				"feeStructureId": fs.ID,
				"operation":      OpBatchAssign,
			})
		}
	}
	return svc.students.UpdateStudent(ctx, student)
}

// linkStructure sets the fee link on every student sitting in a batch
// matching the structure's class/year pair. Failures are logged and reported,
// never propagated: the parent create/update/clone must succeed regardless.
func (svc *Service) linkStructure(ctx context.Context, fs FeeStructure, operation string) []LinkResult {
	batches, err := svc.batches.FilterBatches(ctx, school.BatchQueryFilter{
		ClassID:        fs.ClassID,
		AcademicYearID: fs.AcademicYearID,
	})
	if err != nil {
		svc.logger.Error("resolving batches for fee structure", err, map[string]interface{}{"feeStructureId": fs.ID})
		return nil
	}

	var results []LinkResult
	for _, batch := range batches {
		students, err := svc.students.FilterStudents(ctx, school.StudentQueryFilter{BatchID: batch.ID})
		if err != nil {
			svc.logger.Error("resolving students for fee structure", err, map[string]interface{}{"batchId": batch.ID})
			continue
		}
		for _, student := range students {
			student.FeeStructureID = fs.ID
			if _, err := svc.students.UpdateStudent(ctx, student); err != nil {
				svc.logger.Error("linking student to fee structure", err, map[string]interface{}{"studentId": student.ID})
				results = append(results, LinkResult{StudentID: student.ID, Outcome: OutcomeError, Error: err.Error()})
				continue
			}
			svc.activities.Record(ctx, activity.TypeFee, "assign", map[string]interface{}{
				"studentId":      student.ID,
				"feeStructureId": fs.ID,
				"operation":      operation,
			})
			results = append(results, LinkResult{StudentID: student.ID, FeeStructureID: fs.ID, Outcome: OutcomeLinked})
		}
	}
	return results
}

// Reconcile assigns a fee structure to every active student currently missing
// one, resolving candidates the same way the pending-fee report does. It is
// the explicit command counterpart of the report's read-only candidate
// resolution.
func (svc *Service) Reconcile(ctx context.Context, classID string) ([]LinkResult, error) {
	filter := school.StudentQueryFilter{Status: school.StudentStatusActive}
	if classID != "" {
		filter.ClassID = classID
	}
	students, err := svc.students.FilterStudents(ctx, filter)
	if err != nil {
		return nil, err
	}

	batchByID, err := svc.batchIndex(ctx)
	if err != nil {
		return nil, err
	}

	var results []LinkResult
	for _, student := range students {
		if student.FeeStructureID != "" {
			continue
		}

		matches, err := svc.candidateStructures(ctx, student, batchByID)
		if err != nil {
			svc.logger.Error("resolving candidate fee structures", err, map[string]interface{}{"studentId": student.ID})
			results = append(results, LinkResult{StudentID: student.ID, Outcome: OutcomeError, Error: err.Error()})
			continue
		}
		if len(matches) == 0 {
			results = append(results, LinkResult{StudentID: student.ID, Outcome: OutcomeSkipped})
			continue
		}

		target := pickFeeStructure(matches)
		student.FeeStructureID = target.ID
		if _, err := svc.students.UpdateStudent(ctx, student); err != nil {
			svc.logger.Error("reconciling fee assignment", err, map[string]interface{}{"studentId": student.ID})
			results = append(results, LinkResult{StudentID: student.ID, Outcome: OutcomeError, Error: err.Error()})
			continue
		}
		svc.activities.Record(ctx, activity.TypeFee, "assign", map[string]interface{}{
			"studentId":      student.ID,
			"feeStructureId": target.ID,
			"operation":      OpReconcile,
		})
		results = append(results, LinkResult{StudentID: student.ID, FeeStructureID: target.ID, Outcome: OutcomeLinked})
	}
	return results, nil
}

// candidateStructures resolves the fee structures a student is eligible for:
// the student's batch class/year pair, or, for batch-less students, any
// structure targeting their class.
func (svc *Service) candidateStructures(ctx context.Context, student school.Student, batchByID map[string]school.Batch) ([]FeeStructure, error) {
	if student.BatchID != "" {
		batch, ok := batchByID[student.BatchID]
		if !ok {
			return nil, nil
		}
		return svc.structures.FilterFeeStructures(ctx, FeeStructureQueryFilter{
			ClassID:        batch.ClassID,
			AcademicYearID: batch.AcademicYearID,
		})
	}
	if student.ClassID == "" {
		return nil, nil
	}
	return svc.structures.FilterFeeStructures(ctx, FeeStructureQueryFilter{ClassID: student.ClassID})
}

func (svc *Service) batchIndex(ctx context.Context) (map[string]school.Batch, error) {
	batches, err := svc.batches.QueryAllBatches(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]school.Batch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}
	return byID, nil
}
