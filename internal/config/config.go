// Package config содержит логику чтения конфигурации утилиты и сервера отчётов о чаевых.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress    = "localhost:8080"
	defaultSquareBaseURL = "https://connect.squareup.com"
	defaultTimezone      = "America/New_York"

	// SourceSquare читает данные напрямую из Square.
	SourceSquare = "square"
	// SourceDB читает данные из снимка в PostgreSQL.
	SourceDB = "db"
)

// Config содержит параметры конфигурации.
type Config struct {
	SquareAccessToken string
	SquareBaseURL     string
	SquareVersion     string
	LocalTimezone     string

	DatabaseURI  string
	RunAddress   string
	APIKey       string
	SyncSchedule string

	ReportDate     string
	ReportFrom     string
	ReportTo       string
	WeekStart      string
	IgnoreDates    []string
	LocationIDs    []string
	ReportFormat   string
	ReportOutput   string
	ReportSource   string
	Hourly         bool
	SimulateMember string
	// SimulateCutoff равен -1, если симуляция не задана.
	SimulateCutoff int
}

type envConfig struct {
	SquareAccessToken string   `env:"SQUARE_ACCESS_TOKEN"`
	SquareBaseURL     string   `env:"SQUARE_BASE_URL"`
	SquareVersion     string   `env:"SQUARE_VERSION" envDefault:"2025-01-23"`
	LocalTimezone     string   `env:"LOCAL_TIMEZONE"`
	DatabaseURI       string   `env:"DATABASE_URI"`
	RunAddress        string   `env:"RUN_ADDRESS"`
	APIKey            string   `env:"API_KEY"`
	SyncSchedule      string   `env:"SYNC_SCHEDULE"`
	ReportDate        string   `env:"REPORT_DATE"`
	ReportFrom        string   `env:"REPORT_FROM"`
	ReportTo          string   `env:"REPORT_TO"`
	WeekStart         string   `env:"WEEK_START"`
	IgnoreDates       []string `env:"IGNORE_DATES" envSeparator:","`
	LocationIDs       []string `env:"LOCATION_IDS" envSeparator:","`
	ReportFormat      string   `env:"REPORT_FORMAT"`
	ReportOutput      string   `env:"REPORT_OUTPUT"`
	ReportSource      string   `env:"REPORT_SOURCE"`
	Hourly            bool     `env:"REPORT_HOURLY"`
	SimulateMember    string   `env:"SIMULATE_MEMBER"`
	SimulateCutoff    string   `env:"SIMULATE_CUTOFF"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{SquareVersion: e.SquareVersion}
	var ignore, locations string

	flag.StringVar(&cfg.SquareAccessToken, "t", "", "Square access token")
	flag.StringVar(&cfg.SquareBaseURL, "s", defaultSquareBaseURL, "Square API base URL")
	flag.StringVar(&cfg.LocalTimezone, "z", defaultTimezone, "local IANA time zone")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.APIKey, "k", "", "API key for the report server")
	flag.StringVar(&cfg.SyncSchedule, "c", "", "cron schedule for snapshot sync")
	flag.StringVar(&cfg.ReportDate, "date", "", "any date inside the report week (YYYY-MM-DD), default today")
	flag.StringVar(&cfg.ReportFrom, "from", "", "custom window first date (YYYY-MM-DD)")
	flag.StringVar(&cfg.ReportTo, "to", "", "custom window last date (YYYY-MM-DD)")
	flag.StringVar(&cfg.WeekStart, "week-start", "0", "first day of the week: 0=Monday ... 6=Sunday or a day name")
	flag.StringVar(&ignore, "ignore", "", "comma-separated local dates excluded from payment aggregation")
	flag.StringVar(&locations, "location", "", "comma-separated location ids, default all")
	flag.StringVar(&cfg.ReportFormat, "format", "text", "report format: text, json or xlsx")
	flag.StringVar(&cfg.ReportOutput, "o", "", "report output path, default stdout")
	flag.StringVar(&cfg.ReportSource, "source", SourceSquare, "data source: square or db")
	flag.BoolVar(&cfg.Hourly, "hourly", false, "include the hourly tip summary")
	flag.StringVar(&cfg.SimulateMember, "simulate-member", "", "team member whose shifts end at the cutoff hour")
	flag.IntVar(&cfg.SimulateCutoff, "simulate-cutoff", -1, "local clock-out hour (0-23) for the simulated member")

	flag.Parse()

	cfg.IgnoreDates = SplitList(ignore)
	cfg.LocationIDs = SplitList(locations)

	if err := cfg.overlay(e); err != nil {
		return nil, err
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.SquareBaseURL == "" {
		cfg.SquareBaseURL = defaultSquareBaseURL
	}
	if cfg.LocalTimezone == "" {
		cfg.LocalTimezone = defaultTimezone
	}

	return cfg, nil
}

func (cfg *Config) overlay(e envConfig) error {
	setString(&cfg.SquareAccessToken, e.SquareAccessToken)
	setString(&cfg.SquareBaseURL, e.SquareBaseURL)
	setString(&cfg.LocalTimezone, e.LocalTimezone)
	setString(&cfg.DatabaseURI, e.DatabaseURI)
	setString(&cfg.RunAddress, e.RunAddress)
	setString(&cfg.APIKey, e.APIKey)
	setString(&cfg.SyncSchedule, e.SyncSchedule)
	setString(&cfg.ReportDate, e.ReportDate)
	setString(&cfg.ReportFrom, e.ReportFrom)
	setString(&cfg.ReportTo, e.ReportTo)
	setString(&cfg.WeekStart, e.WeekStart)
	setString(&cfg.ReportFormat, e.ReportFormat)
	setString(&cfg.ReportOutput, e.ReportOutput)
	setString(&cfg.ReportSource, e.ReportSource)
	setString(&cfg.SimulateMember, e.SimulateMember)

	if len(e.IgnoreDates) > 0 {
		cfg.IgnoreDates = SplitList(e.IgnoreDates...)
	}
	if len(e.LocationIDs) > 0 {
		cfg.LocationIDs = SplitList(e.LocationIDs...)
	}
	if e.Hourly {
		cfg.Hourly = true
	}
	if e.SimulateCutoff != "" {
		cutoff, err := strconv.Atoi(e.SimulateCutoff)
		if err != nil {
			return fmt.Errorf("parse SIMULATE_CUTOFF: %w", err)
		}
		cfg.SimulateCutoff = cutoff
	}

	return nil
}

func setString(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}

// SplitList разбивает значения по запятым, отбрасывая пустые элементы.
func SplitList(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Location загружает локальную зону расчёта.
func (cfg *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.LocalTimezone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", cfg.LocalTimezone, err)
	}
	return loc, nil
}

// Simulated сообщает, задана ли симуляция окончания смены.
func (cfg *Config) Simulated() bool {
	return cfg.SimulateMember != "" || cfg.SimulateCutoff >= 0
}
