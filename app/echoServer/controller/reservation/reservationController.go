package reservation

import (
	"log/slog"
	"net/http"
	"strconv"

	ressvc "liblending/service/reservation"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc ressvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

type ReserveReq struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

// POST /v1/reservations
func (ct *Controller) Reserve(c echo.Context) error {
	var req ReserveReq
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

	res, err := ct.Svc.Reserve(c.Request().Context(), uid, req.BookID)
	if err != nil {
		ct.Log.Error("reserve", "err", err, "user_id", uid, "book_id", req.BookID)
		switch ressvc.Code(err) {
		case ressvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user or book not found"})
		case ressvc.ErrStillAvailable:
			return c.JSON(http.StatusConflict, echo.Map{"message": "book is available, borrow it directly"})
		case ressvc.ErrAlreadyBorrowed:
			return c.JSON(http.StatusConflict, echo.Map{"message": "you already have this book checked out"})
		case ressvc.ErrDuplicateReservation:
			return c.JSON(http.StatusConflict, echo.Map{"message": "you already have a reservation for this book"})
		case ressvc.ErrLimitExceeded:
			return c.JSON(http.StatusConflict, echo.Map{"message": "reservation limit reached"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, res)
}

// POST /v1/reservations/:id/cancel
func (ct *Controller) Cancel(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	if err := ct.Svc.Cancel(c.Request().Context(), id, uid); err != nil {
		ct.Log.Error("reservation cancel", "err", err, "reservation_id", id)
		switch ressvc.Code(err) {
		case ressvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "reservation not found"})
		case ressvc.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case ressvc.ErrAlreadyInactive:
			return c.JSON(http.StatusConflict, echo.Map{"message": "reservation is already inactive"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "cancelled"})
}

// POST /v1/reservations/:id/fulfill
func (ct *Controller) Fulfill(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	if err := ct.Svc.Fulfill(c.Request().Context(), id); err != nil {
		ct.Log.Error("reservation fulfill", "err", err, "reservation_id", id)
		switch ressvc.Code(err) {
		case ressvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "reservation not found"})
		case ressvc.ErrNotReadyForPickup:
			return c.JSON(http.StatusConflict, echo.Map{"message": "reservation is not ready for pickup"})
		case ressvc.ErrAlreadyInactive:
			return c.JSON(http.StatusConflict, echo.Map{"message": "reservation is already inactive"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "fulfilled"})
}

// GET /v1/reservations/my
func (ct *Controller) My(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	rows, err := ct.Svc.MyReservations(c.Request().Context(), uid)
	if err != nil {
		ct.Log.Error("reservations my", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/books/:id/queue
func (ct *Controller) Queue(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	rows, err := ct.Svc.QueueForBook(c.Request().Context(), id)
	if err != nil {
		ct.Log.Error("reservation queue", "err", err, "book_id", id)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}
