package inmemdb

import (
	"sync"

	"github.com/kimaro/shulebook/core/activity"
	"github.com/kimaro/shulebook/core/fees"
	"github.com/kimaro/shulebook/core/school"
	"github.com/kimaro/shulebook/core/user"
)

type (
	DB struct {
		years      *yearTable
		classes    *classTable
		batches    *batchTable
		students   *studentTable
		structures *structureTable
		payments   *paymentTable
		reminders  *reminderTable
		users      *userTable
		activities *activityTable
	}

	yearTable struct {
		sync.RWMutex
		table map[string]*school.AcademicYear
	}
	classTable struct {
		sync.RWMutex
		table map[string]*school.Class
	}
	batchTable struct {
		sync.RWMutex
		table map[string]*school.Batch
	}
	studentTable struct {
		sync.RWMutex
		table map[string]*school.Student
	}
	structureTable struct {
		sync.RWMutex
		table map[string]*fees.FeeStructure
	}
	paymentTable struct {
		sync.RWMutex
		table map[string]*fees.FeePayment
	}
	reminderTable struct {
		sync.RWMutex
		table map[string]*fees.Reminder
	}
	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}
	activityTable struct {
		sync.RWMutex
		entries []activity.Activity
	}
)

func Open() (*DB, error) {
	db := &DB{
		years:      &yearTable{},
		classes:    &classTable{},
		batches:    &batchTable{},
		students:   &studentTable{},
		structures: &structureTable{},
		payments:   &paymentTable{},
		reminders:  &reminderTable{},
		users:      &userTable{},
		activities: &activityTable{},
	}
	db.reset()
	return db, nil
}

// reset clears the tables in place so repositories holding table
// pointers from before the reset still see the cleared data.
func (db *DB) reset() {
	db.years.Lock()
	db.years.table = make(map[string]*school.AcademicYear)
	db.years.Unlock()
	db.classes.Lock()
	db.classes.table = make(map[string]*school.Class)
	db.classes.Unlock()
	db.batches.Lock()
	db.batches.table = make(map[string]*school.Batch)
	db.batches.Unlock()
	db.students.Lock()
	db.students.table = make(map[string]*school.Student)
	db.students.Unlock()
	db.structures.Lock()
	db.structures.table = make(map[string]*fees.FeeStructure)
	db.structures.Unlock()
	db.payments.Lock()
	db.payments.table = make(map[string]*fees.FeePayment)
	db.payments.Unlock()
	db.reminders.Lock()
	db.reminders.table = make(map[string]*fees.Reminder)
	db.reminders.Unlock()
	db.users.Lock()
	db.users.table = make(map[string]*user.User)
	db.users.Unlock()
	db.activities.Lock()
	db.activities.entries = nil
	db.activities.Unlock()
}

// Reset drops all stored data. For tests.
func (db *DB) Reset() {
	db.reset()
}
