package subscription

import (
	"errors"
	"log/slog"
	"net/http"

	"liblending/model"
	subsvc "liblending/service/subscription"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc subsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

type UpgradeReq struct {
	Tier string `json:"tier" validate:"required,oneof=FREE MONTHLY ANNUAL"`
}

type AutoRenewReq struct {
	AutoRenew *bool `json:"auto_renew" validate:"required"`
}

// GET /v1/subscriptions/tiers
func (ct *Controller) Tiers(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"data": []model.TierInfo{
		model.Tiers[model.TierFree],
		model.Tiers[model.TierMonthly],
		model.Tiers[model.TierAnnual],
	}})
}

// GET /v1/subscriptions/my
func (ct *Controller) My(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	sub, err := ct.Svc.GetOrCreate(c.Request().Context(), uid)
	if err != nil {
		ct.Log.Error("subscription my", "err", err, "user_id", uid)
		if errors.Is(err, subsvc.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, sub)
}

// POST /v1/subscriptions/upgrade
func (ct *Controller) Upgrade(c echo.Context) error {
	var req UpgradeReq
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

	sub, err := ct.Svc.Upgrade(c.Request().Context(), uid, model.SubscriptionTier(req.Tier))
	if err != nil {
		ct.Log.Error("subscription upgrade", "err", err, "user_id", uid, "tier", req.Tier)
		switch {
		case errors.Is(err, subsvc.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		case errors.Is(err, subsvc.ErrSameTier):
			return c.JSON(http.StatusConflict, echo.Map{"message": "already on that tier"})
		case errors.Is(err, subsvc.ErrInvalidTier):
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "unknown tier"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, sub)
}

// POST /v1/subscriptions/renew
func (ct *Controller) Renew(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	sub, err := ct.Svc.Renew(c.Request().Context(), uid)
	if err != nil {
		ct.Log.Error("subscription renew", "err", err, "user_id", uid)
		switch {
		case errors.Is(err, subsvc.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		case errors.Is(err, subsvc.ErrInvalidTier):
			return c.JSON(http.StatusConflict, echo.Map{"message": "free tier cannot be renewed"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, sub)
}

// POST /v1/subscriptions/cancel
func (ct *Controller) Cancel(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	if err := ct.Svc.Cancel(c.Request().Context(), uid); err != nil {
		ct.Log.Error("subscription cancel", "err", err, "user_id", uid)
		if errors.Is(err, subsvc.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "subscription cancelled"})
}

// PUT /v1/subscriptions/auto-renew
func (ct *Controller) SetAutoRenew(c echo.Context) error {
	var req AutoRenewReq
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

	if err := ct.Svc.SetAutoRenew(c.Request().Context(), uid, *req.AutoRenew); err != nil {
		ct.Log.Error("subscription auto-renew", "err", err, "user_id", uid)
		if errors.Is(err, subsvc.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"auto_renew": *req.AutoRenew})
}
