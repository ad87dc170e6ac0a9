package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kimaro/shulebook/core/school"
	"github.com/kimaro/shulebook/core/user"
)

type schoolApi struct {
	svc      school.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerSchoolAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc school.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := schoolApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	yg := g.Group("/academic-years", jwt)
	yg.GET("", api.queryAcademicYears, permissionMiddleware(user.ModuleAcademicYears, user.ActionView))
	yg.POST("", api.createAcademicYear, permissionMiddleware(user.ModuleAcademicYears, user.ActionCreate))
	yg.GET("/:id", api.retrieveAcademicYear, permissionMiddleware(user.ModuleAcademicYears, user.ActionView))
	yg.PUT("/:id", api.updateAcademicYear, permissionMiddleware(user.ModuleAcademicYears, user.ActionEdit))
	yg.DELETE("/:id", api.destroyAcademicYear, permissionMiddleware(user.ModuleAcademicYears, user.ActionDelete))

	cg := g.Group("/classes", jwt)
	cg.GET("", api.queryClasses, permissionMiddleware(user.ModuleClasses, user.ActionView))
	cg.POST("", api.createClass, permissionMiddleware(user.ModuleClasses, user.ActionCreate))
	cg.GET("/:id", api.retrieveClass, permissionMiddleware(user.ModuleClasses, user.ActionView))
	cg.PUT("/:id", api.updateClass, permissionMiddleware(user.ModuleClasses, user.ActionEdit))
	cg.DELETE("/:id", api.destroyClass, permissionMiddleware(user.ModuleClasses, user.ActionDelete))

	bg := g.Group("/batches", jwt)
	bg.GET("", api.queryBatches, permissionMiddleware(user.ModuleBatches, user.ActionView))
	bg.POST("", api.createBatch, permissionMiddleware(user.ModuleBatches, user.ActionCreate))
	bg.GET("/:id", api.retrieveBatch, permissionMiddleware(user.ModuleBatches, user.ActionView))
	bg.PUT("/:id", api.updateBatch, permissionMiddleware(user.ModuleBatches, user.ActionEdit))
	bg.DELETE("/:id", api.destroyBatch, permissionMiddleware(user.ModuleBatches, user.ActionDelete))

	sg := g.Group("/students", jwt)
	sg.GET("", api.queryStudents, permissionMiddleware(user.ModuleStudents, user.ActionView))
	sg.POST("", api.createStudent, permissionMiddleware(user.ModuleStudents, user.ActionCreate))
	sg.GET("/:id", api.retrieveStudent, permissionMiddleware(user.ModuleStudents, user.ActionView))
	sg.PUT("/:id", api.updateStudent, permissionMiddleware(user.ModuleStudents, user.ActionEdit))
	sg.DELETE("/:id", api.destroyStudent, permissionMiddleware(user.ModuleStudents, user.ActionDelete))
}

// Academic years

func (api *schoolApi) createAcademicYear(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	var data school.NewAcademicYear
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAcademicYear")
	}
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}

	year, err := api.svc.CreateAcademicYear(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating academic year")
	}
	return ctx.JSON(http.StatusCreated, year)
}

func (api *schoolApi) queryAcademicYears(ctx echo.Context) error {
	years, err := api.svc.QueryAcademicYears(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying academic years")
	}
	if years == nil {
		years = []school.AcademicYear{}
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *schoolApi) retrieveAcademicYear(ctx echo.Context) error {
	year, err := api.svc.GetAcademicYearByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrAcademicYearNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding academic year by ID")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *schoolApi) updateAcademicYear(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	orig, err := api.svc.GetAcademicYearByID(rctx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrAcademicYearNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding academic year by ID")
	}

	var data school.UpdateAcademicYear
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAcademicYear")
	}
	if err := data.Validate(rctx, orig, api.validate, api.svc); err != nil {
		return err
	}

	year, err := api.svc.UpdateAcademicYear(rctx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating academic year")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *schoolApi) destroyAcademicYear(ctx echo.Context) error {
	if err := api.svc.DeleteAcademicYear(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == school.ErrAcademicYearNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting academic year")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Classes

func (api *schoolApi) createClass(ctx echo.Context) error {
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	class, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *schoolApi) queryClasses(ctx echo.Context) error {
	filter := new(school.ClassQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Class{})
	}
	filter.Clean()

	classes, err := api.svc.QueryClasses(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	class, err := api.svc.GetClassByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrClassNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding class by ID")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *schoolApi) updateClass(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	orig, err := api.svc.GetClassByID(rctx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrClassNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding class by ID")
	}

	var data school.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(orig, api.validate); err != nil {
		return err
	}

	class, err := api.svc.UpdateClass(rctx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *schoolApi) destroyClass(ctx echo.Context) error {
	if err := api.svc.DeleteClass(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == school.ErrClassNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Batches

func (api *schoolApi) createBatch(ctx echo.Context) error {
	var data school.NewBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	batch, err := api.svc.CreateBatch(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating batch")
	}
	return ctx.JSON(http.StatusCreated, batch)
}

func (api *schoolApi) queryBatches(ctx echo.Context) error {
	filter := new(school.BatchQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Batch{})
	}

	batches, err := api.svc.QueryBatches(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying batches")
	}
	if batches == nil {
		batches = []school.Batch{}
	}
	return ctx.JSON(http.StatusOK, batches)
}

func (api *schoolApi) retrieveBatch(ctx echo.Context) error {
	batch, err := api.svc.GetBatchByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrBatchNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding batch by ID")
	}
	return ctx.JSON(http.StatusOK, batch)
}

func (api *schoolApi) updateBatch(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	orig, err := api.svc.GetBatchByID(rctx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrBatchNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding batch by ID")
	}

	var data school.UpdateBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBatch")
	}
	if err := data.Validate(orig, api.validate); err != nil {
		return err
	}

	batch, err := api.svc.UpdateBatch(rctx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating batch")
	}
	return ctx.JSON(http.StatusOK, batch)
}

func (api *schoolApi) destroyBatch(ctx echo.Context) error {
	if err := api.svc.DeleteBatch(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == school.ErrBatchNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting batch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Students

func (api *schoolApi) createStudent(ctx echo.Context) error {
	var data school.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	student, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, student)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	filter := new(school.StudentQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Student{})
	}
	filter.Clean()

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}

	// parents only see their own students
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsParent() {
		accessible := make([]school.Student, 0, len(students))
		for _, st := range students {
			if ctxUsr.CanAccessStudent(st) {
				accessible = append(accessible, st)
			}
		}
		students = accessible
	}

	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	student, err := api.svc.GetStudentByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrStudentNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding student by ID")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.CanAccessStudent(student) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *schoolApi) updateStudent(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	orig, err := api.svc.GetStudentByID(rctx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrStudentNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding student by ID")
	}

	var data school.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(orig, api.validate); err != nil {
		return err
	}

	student, err := api.svc.UpdateStudent(rctx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *schoolApi) destroyStudent(ctx echo.Context) error {
	if err := api.svc.DeleteStudent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == school.ErrStudentNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
