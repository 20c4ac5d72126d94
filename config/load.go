package config

import (
	"log/slog"
	"os"
	"strconv"
)

func Load() App {
	cfg := App{
		Port:        getenv("APP_PORT", "8080"),
		DatabaseURL: must("DATABASE_URL"),
		JWTSecret:   getenv("JWT_SECRET", "local_dev_secret"),
		Env:         getenv("APP_ENV", "dev"),

		DailyFineRate:      getfloat("DAILY_FINE_RATE", 0.50),
		RenewalDays:        getint("RENEWAL_DAYS", 14),
		RenewBlockedByHold: getbool("RENEW_BLOCKED_BY_HOLDS", false),
		AutoRenewHorizonH:  getint("AUTO_RENEW_HORIZON_HOURS", 24),
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Error("invalid env value", "key", k, "value", v)
			panic("invalid env " + k)
		}
		return f
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			slog.Error("invalid env value", "key", k, "value", v)
			panic("invalid env " + k)
		}
		return i
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Error("invalid env value", "key", k, "value", v)
			panic("invalid env " + k)
		}
		return b
	}
	return def
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		slog.Error("required env missing", "key", k)
		panic("missing env " + k)
	}
	return v
}
