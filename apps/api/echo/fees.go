package echoapi

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kimaro/shulebook/core"
	"github.com/kimaro/shulebook/core/fees"
	"github.com/kimaro/shulebook/core/school"
	"github.com/kimaro/shulebook/core/user"
)

type feesApi struct {
	svc      fees.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerFeesAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc fees.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := feesApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	fg := g.Group("/fee-structures", jwt)
	fg.GET("", api.queryStructures, permissionMiddleware(user.ModuleFees, user.ActionView))
	fg.POST("", api.createStructure, permissionMiddleware(user.ModuleFees, user.ActionCreate))
	fg.POST("/clone", api.cloneStructures, permissionMiddleware(user.ModuleFees, user.ActionCreate))
	fg.GET("/:id", api.retrieveStructure, permissionMiddleware(user.ModuleFees, user.ActionView))
	fg.PUT("/:id", api.updateStructure, permissionMiddleware(user.ModuleFees, user.ActionEdit))

	bg := g.Group("/batches/:id/students", jwt)
	bg.POST("", api.assignStudents, permissionMiddleware(user.ModuleBatches, user.ActionEdit))
	bg.DELETE("/:studentId", api.removeStudent, permissionMiddleware(user.ModuleBatches, user.ActionEdit))

	rg := g.Group("/fee-reports", jwt)
	rg.GET("/pending", api.pendingFees, permissionMiddleware(user.ModuleFeeReports, user.ActionView))
	rg.GET("/monthly-collections", api.monthlyCollections, permissionMiddleware(user.ModuleFeeReports, user.ActionView))
	rg.POST("/reconcile", api.reconcile, permissionMiddleware(user.ModuleFeeReports, user.ActionCreate))

	pg := g.Group("/fee-payments", jwt)
	pg.GET("", api.queryPayments, permissionMiddleware(user.ModuleFees, user.ActionView))
	pg.POST("", api.recordPayment, permissionMiddleware(user.ModuleFees, user.ActionCreate))

	mg := g.Group("/reminders", jwt)
	mg.GET("", api.queryReminders, permissionMiddleware(user.ModuleReminders, user.ActionView))
	mg.POST("", api.createReminder, permissionMiddleware(user.ModuleReminders, user.ActionCreate))
	mg.POST("/send-pending", api.sendPendingReminders, adminMiddleware())
	mg.POST("/:id/send", api.sendReminder, permissionMiddleware(user.ModuleReminders, user.ActionEdit))
}

// Fee structures

func (api *feesApi) createStructure(ctx echo.Context) error {
	var data fees.NewFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeStructure")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	structure, links, err := api.svc.CreateFeeStructure(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee structure")
	}
	return ctx.JSON(http.StatusCreated, FeeStructureResponse{FeeStructure: structure, Links: links})
}

func (api *feesApi) queryStructures(ctx echo.Context) error {
	filter := new(fees.FeeStructureQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []fees.FeeStructure{})
	}

	structures, err := api.svc.QueryFeeStructures(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if structures == nil {
		structures = []fees.FeeStructure{}
	}
	return ctx.JSON(http.StatusOK, structures)
}

func (api *feesApi) retrieveStructure(ctx echo.Context) error {
	structure, err := api.svc.GetFeeStructureByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == fees.ErrStructureNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding fee structure by ID")
	}
	return ctx.JSON(http.StatusOK, structure)
}

func (api *feesApi) updateStructure(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	orig, err := api.svc.GetFeeStructureByID(rctx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == fees.ErrStructureNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding fee structure by ID")
	}

	var data fees.UpdateFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFeeStructure")
	}
	if err := data.Validate(orig, api.validate); err != nil {
		return err
	}

	structure, links, err := api.svc.UpdateFeeStructure(rctx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating fee structure")
	}
	return ctx.JSON(http.StatusOK, FeeStructureResponse{FeeStructure: structure, Links: links})
}

func (api *feesApi) cloneStructures(ctx echo.Context) error {
	var data fees.CloneFeeStructures
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CloneFeeStructures")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	structures, links, err := api.svc.CloneFeeStructures(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "cloning fee structures")
	}
	return ctx.JSON(http.StatusCreated, CloneResponse{FeeStructures: structures, Links: links})
}

// Batch membership

func (api *feesApi) assignStudents(ctx echo.Context) error {
	var data AssignStudentsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignStudentsRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	links, err := api.svc.AssignStudentsToBatch(ctx.Request().Context(), ctx.Param("id"), data.StudentIDs)
	if err != nil {
		if errors.Cause(err) == school.ErrBatchNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "assigning students to batch")
	}
	return ctx.JSON(http.StatusOK, LinkResultsResponse{Links: links})
}

func (api *feesApi) removeStudent(ctx echo.Context) error {
	student, err := api.svc.RemoveStudentFromBatch(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentId"))
	if err != nil {
		switch errors.Cause(err) {
		case school.ErrBatchNotFound, school.ErrStudentNotFound:
			return errHttpNotFound
		}
		return errors.Wrap(err, "removing student from batch")
	}
	return ctx.JSON(http.StatusOK, student)
}

// Reports

func (api *feesApi) pendingFees(ctx echo.Context) error {
	classID := ctx.QueryParam("class_id")
	if classID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "this field is required"})
	}

	rows, err := api.svc.PendingFees(ctx.Request().Context(), classID)
	if err != nil {
		if errors.Cause(err) == school.ErrClassNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "building pending fees report")
	}

	// parents only see rows for their own students
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsParent() {
		rows = filterParentRows(rows, ctxUsr)
	}

	if rows == nil {
		rows = []fees.PendingFeeRow{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *feesApi) monthlyCollections(ctx echo.Context) error {
	yearParam := ctx.QueryParam("year")
	if yearParam == "" {
		yearParam = strconv.Itoa(time.Now().Year())
	}
	year, err := strconv.Atoi(yearParam)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "year", Error: "must be a valid year"})
	}

	collections, err := api.svc.MonthlyCollections(ctx.Request().Context(), year)
	if err != nil {
		return errors.Wrap(err, "building monthly collections report")
	}
	if collections == nil {
		collections = []fees.MonthlyCollection{}
	}
	return ctx.JSON(http.StatusOK, collections)
}

func (api *feesApi) reconcile(ctx echo.Context) error {
	classID := ctx.QueryParam("class_id")
	if classID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "this field is required"})
	}

	links, err := api.svc.Reconcile(ctx.Request().Context(), classID)
	if err != nil {
		if errors.Cause(err) == school.ErrClassNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "reconciling fee links")
	}
	return ctx.JSON(http.StatusOK, LinkResultsResponse{Links: links})
}

// Payments

func (api *feesApi) recordPayment(ctx echo.Context) error {
	var data fees.NewFeePayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeePayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	payment, err := api.svc.RecordPayment(ctx.Request().Context(), data)
	if err != nil {
		switch errors.Cause(err) {
		case school.ErrStudentNotFound, fees.ErrStructureNotFound:
			return errHttpNotFound
		}
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, payment)
}

func (api *feesApi) queryPayments(ctx echo.Context) error {
	filter := new(fees.FeePaymentQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []fees.FeePayment{})
	}

	// parents may only query payments of a student linked to them
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.Role == user.RoleParent {
		if filter.StudentID == "" || !containsString(claims.StudentIDs, filter.StudentID) {
			return errHttpForbidden
		}
	}

	payments, err := api.svc.QueryPayments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []fees.FeePayment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

// Reminders

func (api *feesApi) createReminder(ctx echo.Context) error {
	var data fees.NewReminder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReminder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reminder, err := api.svc.CreateReminder(ctx.Request().Context(), data)
	if err != nil {
		switch errors.Cause(err) {
		case school.ErrStudentNotFound, fees.ErrStructureNotFound:
			return errHttpNotFound
		}
		return errors.Wrap(err, "creating reminder")
	}
	return ctx.JSON(http.StatusCreated, reminder)
}

func (api *feesApi) queryReminders(ctx echo.Context) error {
	filter := new(fees.ReminderQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []fees.Reminder{})
	}

	reminders, err := api.svc.QueryReminders(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying reminders")
	}
	if reminders == nil {
		reminders = []fees.Reminder{}
	}
	return ctx.JSON(http.StatusOK, reminders)
}

func (api *feesApi) sendReminder(ctx echo.Context) error {
	reminder, err := api.svc.SendReminder(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == fees.ErrReminderNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "sending reminder")
	}
	return ctx.JSON(http.StatusOK, reminder)
}

func (api *feesApi) sendPendingReminders(ctx echo.Context) error {
	reminders, err := api.svc.SendPendingReminders(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "sending pending reminders")
	}
	if reminders == nil {
		reminders = []fees.Reminder{}
	}
	return ctx.JSON(http.StatusOK, reminders)
}

func filterParentRows(rows []fees.PendingFeeRow, usr user.User) []fees.PendingFeeRow {
	kept := make([]fees.PendingFeeRow, 0, len(rows))
	for _, row := range rows {
		if row.StudentID != nil && containsString(usr.StudentIDs, *row.StudentID) {
			kept = append(kept, row)
		}
	}
	return kept
}

func containsString(haystack []string, needle string) bool {
	sorted := append([]string(nil), haystack...)
	sort.Strings(sorted)
	if i := sort.SearchStrings(sorted, needle); i < len(sorted) {
		return sorted[i] == needle
	}
	return false
}

type (
	FeeStructureResponse struct {
		FeeStructure fees.FeeStructure `json:"fee_structure"`
		Links        []fees.LinkResult `json:"links"`
	}

	CloneResponse struct {
		FeeStructures []fees.FeeStructure `json:"fee_structures"`
		Links         []fees.LinkResult   `json:"links"`
	}

	LinkResultsResponse struct {
		Links []fees.LinkResult `json:"links"`
	}

	AssignStudentsRequest struct {
		StudentIDs []string `json:"student_ids" validate:"required,min=1"`
	}
)
