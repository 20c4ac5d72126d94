package admin

import (
	"log/slog"
	"net/http"

	sweepsvc "liblending/service/sweep"

	"github.com/labstack/echo/v4"
)

type Controller struct {
	Sweeper sweepsvc.Sweeper
	Log     *slog.Logger
}

// POST /v1/admin/sweep
func (ct *Controller) Sweep(c echo.Context) error {
	res, err := ct.Sweeper.Run(c.Request().Context())
	if err != nil {
		ct.Log.Error("sweep", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "sweep failed"})
	}
	return c.JSON(http.StatusOK, res)
}
