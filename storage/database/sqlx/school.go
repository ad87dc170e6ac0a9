package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kimaro/shulebook/core/school"
)

// Academic years

type yearRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	IsCurrent bool      `db:"is_current"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r yearRow) unpack() school.AcademicYear {
	return school.AcademicYear{
		ID:        r.ID,
		Name:      r.Name,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		IsCurrent: r.IsCurrent,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type yearRepository struct {
	db *sqlx.DB
}

var _ school.AcademicYearRepository = (*yearRepository)(nil) // interface compliance check

func NewAcademicYearRepository(db *sqlx.DB) *yearRepository {
	return &yearRepository{db: db}
}

func (repo *yearRepository) CreateAcademicYear(ctx context.Context, year school.AcademicYear) (school.AcademicYear, error) {
	const q = `
		INSERT INTO academic_year (id, name, start_date, end_date, is_current, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := repo.db.ExecContext(ctx, q,
		year.ID, year.Name, year.StartDate, year.EndDate, year.IsCurrent, year.CreatedAt, year.UpdatedAt,
	); err != nil {
		return school.AcademicYear{}, errors.Wrap(err, "inserting academic year")
	}
	return year, nil
}

func (repo *yearRepository) QueryAllAcademicYears(ctx context.Context) ([]school.AcademicYear, error) {
	var rows []yearRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM academic_year ORDER BY start_date DESC`); err != nil {
		return nil, errors.Wrap(err, "querying academic years")
	}
	years := make([]school.AcademicYear, 0, len(rows))
	for _, r := range rows {
		years = append(years, r.unpack())
	}
	return years, nil
}

func (repo *yearRepository) GetAcademicYearByID(ctx context.Context, id string) (school.AcademicYear, error) {
	var r yearRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM academic_year WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return school.AcademicYear{}, school.ErrAcademicYearNotFound
		}
		return school.AcademicYear{}, errors.Wrap(err, "getting academic year")
	}
	return r.unpack(), nil
}

func (repo *yearRepository) GetAcademicYearByName(ctx context.Context, name string) (school.AcademicYear, error) {
	var r yearRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM academic_year WHERE LOWER(name) = LOWER($1)`, name); err != nil {
		if err == sql.ErrNoRows {
			return school.AcademicYear{}, school.ErrAcademicYearNotFound
		}
		return school.AcademicYear{}, errors.Wrap(err, "getting academic year by name")
	}
	return r.unpack(), nil
}

func (repo *yearRepository) ClearCurrentAcademicYear(ctx context.Context) error {
	if _, err := repo.db.ExecContext(ctx, `UPDATE academic_year SET is_current = FALSE WHERE is_current`); err != nil {
		return errors.Wrap(err, "clearing current academic year")
	}
	return nil
}

func (repo *yearRepository) UpdateAcademicYear(ctx context.Context, year school.AcademicYear) (school.AcademicYear, error) {
	const q = `
		UPDATE academic_year
		SET name = $2, start_date = $3, end_date = $4, is_current = $5, updated_at = $6
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		year.ID, year.Name, year.StartDate, year.EndDate, year.IsCurrent, year.UpdatedAt,
	)
	if err != nil {
		return school.AcademicYear{}, errors.Wrap(err, "updating academic year")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.AcademicYear{}, school.ErrAcademicYearNotFound
	}
	return year, nil
}

func (repo *yearRepository) DeleteAcademicYearsByID(ctx context.Context, ids ...string) error {
	q, args, err := sqlx.In(`DELETE FROM academic_year WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting academic years")
	}
	return nil
}

// Classes

type classRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	AcademicYearID sql.NullString `db:"academic_year_id"`
	Capacity       int            `db:"capacity"`
	Description    string         `db:"description"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r classRow) unpack() school.Class {
	return school.Class{
		ID:             r.ID,
		Name:           r.Name,
		AcademicYearID: r.AcademicYearID.String,
		Capacity:       r.Capacity,
		Description:    r.Description,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type classRepository struct {
	db *sqlx.DB
}

var _ school.ClassRepository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, class school.Class) (school.Class, error) {
	const q = `
		INSERT INTO class (id, name, academic_year_id, capacity, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := repo.db.ExecContext(ctx, q,
		class.ID, class.Name, nullStr(class.AcademicYearID), class.Capacity, class.Description,
		class.CreatedAt, class.UpdatedAt,
	); err != nil {
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	return class, nil
}

func (repo *classRepository) QueryAllClasses(ctx context.Context) ([]school.Class, error) {
	var rows []classRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM class ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.unpack())
	}
	return classes, nil
}

func (repo *classRepository) GetClassByID(ctx context.Context, id string) (school.Class, error) {
	var r classRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM class WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Class{}, school.ErrClassNotFound
		}
		return school.Class{}, errors.Wrap(err, "getting class")
	}
	return r.unpack(), nil
}

func (repo *classRepository) FilterClasses(ctx context.Context, filter school.ClassQueryFilter) ([]school.Class, error) {
	q := `SELECT * FROM class WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		q += ` AND academic_year_id = ?`
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		q += ` AND name ILIKE ?`
	}
	q += ` ORDER BY name`

	var rows []classRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering classes")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.unpack())
	}
	return classes, nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, class school.Class) (school.Class, error) {
	const q = `
		UPDATE class
		SET name = $2, academic_year_id = $3, capacity = $4, description = $5, updated_at = $6
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		class.ID, class.Name, nullStr(class.AcademicYearID), class.Capacity, class.Description, class.UpdatedAt,
	)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "updating class")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Class{}, school.ErrClassNotFound
	}
	return class, nil
}

func (repo *classRepository) DeleteClassesByID(ctx context.Context, ids ...string) error {
	q, args, err := sqlx.In(`DELETE FROM class WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting classes")
	}
	return nil
}

// Batches

type batchRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	ClassID        string         `db:"class_id"`
	AcademicYearID sql.NullString `db:"academic_year_id"`
	Capacity       int            `db:"capacity"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r batchRow) unpack() school.Batch {
	return school.Batch{
		ID:             r.ID,
		Name:           r.Name,
		ClassID:        r.ClassID,
		AcademicYearID: r.AcademicYearID.String,
		Capacity:       r.Capacity,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type batchRepository struct {
	db *sqlx.DB
}

var _ school.BatchRepository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(db *sqlx.DB) *batchRepository {
	return &batchRepository{db: db}
}

func (repo *batchRepository) CreateBatch(ctx context.Context, batch school.Batch) (school.Batch, error) {
	const q = `
		INSERT INTO batch (id, name, class_id, academic_year_id, capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := repo.db.ExecContext(ctx, q,
		batch.ID, batch.Name, batch.ClassID, nullStr(batch.AcademicYearID), batch.Capacity,
		batch.CreatedAt, batch.UpdatedAt,
	); err != nil {
		return school.Batch{}, errors.Wrap(err, "inserting batch")
	}
	return batch, nil
}

func (repo *batchRepository) QueryAllBatches(ctx context.Context) ([]school.Batch, error) {
	var rows []batchRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM batch ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying batches")
	}
	batches := make([]school.Batch, 0, len(rows))
	for _, r := range rows {
		batches = append(batches, r.unpack())
	}
	return batches, nil
}

func (repo *batchRepository) GetBatchByID(ctx context.Context, id string) (school.Batch, error) {
	var r batchRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM batch WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Batch{}, school.ErrBatchNotFound
		}
		return school.Batch{}, errors.Wrap(err, "getting batch")
	}
	return r.unpack(), nil
}

func (repo *batchRepository) FilterBatches(ctx context.Context, filter school.BatchQueryFilter) ([]school.Batch, error) {
	q := `SELECT * FROM batch WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		q += ` AND class_id = ?`
	}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		q += ` AND academic_year_id = ?`
	}
	q += ` ORDER BY name`

	var rows []batchRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering batches")
	}
	batches := make([]school.Batch, 0, len(rows))
	for _, r := range rows {
		batches = append(batches, r.unpack())
	}
	return batches, nil
}

func (repo *batchRepository) UpdateBatch(ctx context.Context, batch school.Batch) (school.Batch, error) {
	const q = `
		UPDATE batch
		SET name = $2, class_id = $3, academic_year_id = $4, capacity = $5, updated_at = $6
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		batch.ID, batch.Name, batch.ClassID, nullStr(batch.AcademicYearID), batch.Capacity, batch.UpdatedAt,
	)
	if err != nil {
		return school.Batch{}, errors.Wrap(err, "updating batch")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Batch{}, school.ErrBatchNotFound
	}
	return batch, nil
}

func (repo *batchRepository) DeleteBatchesByID(ctx context.Context, ids ...string) error {
	q, args, err := sqlx.In(`DELETE FROM batch WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting batches")
	}
	return nil
}

// Students

type studentRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	GuardianName   string         `db:"guardian_name"`
	GuardianEmail  string         `db:"guardian_email"`
	Phone          string         `db:"phone"`
	Address        string         `db:"address"`
	DateOfBirth    *time.Time     `db:"date_of_birth"`
	Status         string         `db:"status"`
	ClassID        sql.NullString `db:"class_id"`
	BatchID        sql.NullString `db:"batch_id"`
	FeeStructureID sql.NullString `db:"fee_structure_id"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r studentRow) unpack() school.Student {
	return school.Student{
		ID:             r.ID,
		Name:           r.Name,
		GuardianName:   r.GuardianName,
		GuardianEmail:  r.GuardianEmail,
		Phone:          r.Phone,
		Address:        r.Address,
		DateOfBirth:    r.DateOfBirth,
		Status:         r.Status,
		ClassID:        r.ClassID.String,
		BatchID:        r.BatchID.String,
		FeeStructureID: r.FeeStructureID.String,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ school.StudentRepository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, student school.Student) (school.Student, error) {
	const q = `
		INSERT INTO student (id, name, guardian_name, guardian_email, phone, address, date_of_birth, status,
							 class_id, batch_id, fee_structure_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := repo.db.ExecContext(ctx, q,
		student.ID, student.Name, student.GuardianName, student.GuardianEmail, student.Phone, student.Address,
		student.DateOfBirth, student.Status, nullStr(student.ClassID), nullStr(student.BatchID),
		nullStr(student.FeeStructureID), student.CreatedAt, student.UpdatedAt,
	); err != nil {
		return school.Student{}, errors.Wrap(err, "inserting student")
	}
	return student, nil
}

func (repo *studentRepository) QueryAllStudents(ctx context.Context) ([]school.Student, error) {
	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM student ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.unpack())
	}
	return students, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (school.Student, error) {
	var r studentRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM student WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return school.Student{}, school.ErrStudentNotFound
		}
		return school.Student{}, errors.Wrap(err, "getting student")
	}
	return r.unpack(), nil
}

func (repo *studentRepository) FilterStudents(ctx context.Context, filter school.StudentQueryFilter) ([]school.Student, error) {
	q := `SELECT * FROM student WHERE 1=1`
	args := make([]interface{}, 0, 5)
	if filter.Search != "" {
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s)
		q += ` AND (name ILIKE ? OR guardian_name ILIKE ? OR guardian_email ILIKE ?)`
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		q += ` AND status = ?`
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		q += ` AND class_id = ?`
	}
	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		q += ` AND batch_id = ?`
	}
	if filter.FeeStructureID != "" {
		args = append(args, filter.FeeStructureID)
		q += ` AND fee_structure_id = ?`
	}
	q += ` ORDER BY name`

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.unpack())
	}
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, student school.Student) (school.Student, error) {
	const q = `
		UPDATE student
		SET name = $2, guardian_name = $3, guardian_email = $4, phone = $5, address = $6, date_of_birth = $7,
			status = $8, class_id = $9, batch_id = $10, fee_structure_id = $11, updated_at = $12
		WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		student.ID, student.Name, student.GuardianName, student.GuardianEmail, student.Phone, student.Address,
		student.DateOfBirth, student.Status, nullStr(student.ClassID), nullStr(student.BatchID),
		nullStr(student.FeeStructureID), student.UpdatedAt,
	)
	if err != nil {
		return school.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Student{}, school.ErrStudentNotFound
	}
	return student, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	q, args, err := sqlx.In(`DELETE FROM student WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}

// nullStr maps "" to NULL for nullable FK columns.
func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
