package borrowing

import (
	"log/slog"
	"net/http"
	"strconv"

	borrowsvc "liblending/service/borrowing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc borrowsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/borrowings
func (ct *Controller) Borrow(c echo.Context) error {
	var req BorrowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := ct.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, _ := c.Get("user_id").(int64)

	b, err := ct.Svc.Borrow(c.Request().Context(), uid, req.BookID)
	if err != nil {
		ct.Log.Error("borrow", "err", err, "user_id", uid, "book_id", req.BookID)
		switch borrowsvc.Code(err) {
		case borrowsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user or book not found"})
		case borrowsvc.ErrNotBorrowable:
			return c.JSON(http.StatusConflict, echo.Map{"message": "reference books cannot be borrowed"})
		case borrowsvc.ErrQuotaExceeded:
			return c.JSON(http.StatusConflict, echo.Map{"message": "subscription does not allow this borrow"})
		case borrowsvc.ErrUnavailable:
			return c.JSON(http.StatusConflict, echo.Map{"message": "no copies available"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, b)
}

// POST /v1/borrowings/:id/return
func (ct *Controller) Return(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	b, err := ct.Svc.Return(c.Request().Context(), id)
	if err != nil {
		ct.Log.Error("return", "err", err, "borrowing_id", id)
		switch borrowsvc.Code(err) {
		case borrowsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "borrowing not found"})
		case borrowsvc.ErrAlreadyReturned:
			return c.JSON(http.StatusConflict, echo.Map{"message": "already returned"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, b)
}

// POST /v1/borrowings/:id/renew
func (ct *Controller) Renew(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	b, err := ct.Svc.Renew(c.Request().Context(), id, uid)
	if err != nil {
		ct.Log.Error("renew", "err", err, "borrowing_id", id, "user_id", uid)
		switch borrowsvc.Code(err) {
		case borrowsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "borrowing not found"})
		case borrowsvc.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case borrowsvc.ErrNotRenewable:
			return c.JSON(http.StatusConflict, echo.Map{"message": "borrowing cannot be renewed"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, b)
}

// GET /v1/borrowings/my
func (ct *Controller) My(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	rows, err := ct.Svc.MyBorrowings(c.Request().Context(), uid)
	if err != nil {
		ct.Log.Error("borrowings my", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrowings/:id/fine
func (ct *Controller) Fine(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	fine, err := ct.Svc.CalculateFine(c.Request().Context(), id)
	if err != nil {
		if borrowsvc.Code(err) == borrowsvc.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "borrowing not found"})
		}
		ct.Log.Error("fine", "err", err, "borrowing_id", id)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"borrowing_id": id, "fine": fine})
}

// GET /v1/borrowings/most-borrowed
func (ct *Controller) MostBorrowed(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	rows, err := ct.Svc.MostBorrowed(c.Request().Context(), limit)
	if err != nil {
		ct.Log.Error("most borrowed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrowings/overdue
func (ct *Controller) Overdue(c echo.Context) error {
	rows, err := ct.Svc.Overdue(c.Request().Context())
	if err != nil {
		ct.Log.Error("overdue", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}
