package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/kimaro/shulebook/apps/api/echo"
	"github.com/kimaro/shulebook/core"
	"github.com/kimaro/shulebook/core/activity"
	"github.com/kimaro/shulebook/core/fees"
	"github.com/kimaro/shulebook/core/school"
	"github.com/kimaro/shulebook/core/user"
	emailsvc "github.com/kimaro/shulebook/services/email"
	logsvc "github.com/kimaro/shulebook/services/logger"
	inmemdb "github.com/kimaro/shulebook/storage/database/inmem"
)

var (
	app  Server
	db   *inmemdb.DB
	conf *core.Config

	usrRepo      user.Repository
	yearRepo     school.AcademicYearRepository
	classRepo    school.ClassRepository
	batchRepo    school.BatchRepository
	studentRepo  school.StudentRepository
	structRepo   fees.FeeStructureRepository
	paymentRepo  fees.FeePaymentRepository
	reminderRepo fees.ReminderRepository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	var err error

	conf, err = core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	conf.Debug = false
	conf.TestMode = true

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lshortfile),
		conf,
	)

	// set up DB & repos
	db, err = inmemdb.Open()
	if err != nil {
		log.Fatalf("opening db: %v", err)
	}
	usrRepo = inmemdb.NewUserRepository(db)
	yearRepo = inmemdb.NewAcademicYearRepository(db)
	classRepo = inmemdb.NewClassRepository(db)
	batchRepo = inmemdb.NewBatchRepository(db)
	studentRepo = inmemdb.NewStudentRepository(db)
	feeDir := inmemdb.NewFeeStructureRepository(db)
	structRepo = feeDir
	paymentRepo = inmemdb.NewFeePaymentRepository(db)
	reminderRepo = inmemdb.NewReminderRepository(db)
	actRepo := inmemdb.NewActivityRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(conf, usrRepo, mailSvc, logger)
	actSvc := activity.NewService(actRepo, logger)
	schoolSvc := school.NewService(yearRepo, classRepo, batchRepo, studentRepo, feeDir, logger)
	feeSvc := fees.NewService(structRepo, paymentRepo, reminderRepo, studentRepo, batchRepo, classRepo, actSvc, mailSvc, logger)

	validate, translator := core.NewValidator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	core.InitMail(conf)

	// set up server
	app = NewServer(
		ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			SchoolSvc:   schoolSvc,
			FeeSvc:      feeSvc,
			ActivitySvc: actSvc,
			Validate:    validate,
			Translator:  translator,
		},
	)

	os.Exit(m.Run())
}

func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{} // a nil slice would marshal to "null", not "[]"
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if l1, ok := j1.([]interface{}); ok {
		if l2, ok := j2.([]interface{}); ok {
			return assert.ElementsMatch(t, l1, l2), nil
		}
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
