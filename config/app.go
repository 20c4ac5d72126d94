package config

type App struct {
	Port        string `env:"APP_PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Env         string `env:"APP_ENV" default:"dev"`

	// Circulation policy knobs. Defaults mirror the standing library rules.
	DailyFineRate      float64 `env:"DAILY_FINE_RATE" default:"0.50"`
	RenewalDays        int     `env:"RENEWAL_DAYS" default:"14"`
	RenewBlockedByHold bool    `env:"RENEW_BLOCKED_BY_HOLDS" default:"false"`
	AutoRenewHorizonH  int     `env:"AUTO_RENEW_HORIZON_HOURS" default:"24"`
}
