package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FIT_WORKERS", "")
	t.Setenv("FIT_BOOTSTRAP", "")
	t.Setenv("FIT_TOLERANCE", "")
	t.Setenv("FIT_MAX_ITERATIONS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Fit.DefaultBootstrap != 100 {
		t.Errorf("DefaultBootstrap = %d", cfg.Fit.DefaultBootstrap)
	}
	if cfg.Fit.DefaultTolerance != 1e-7 {
		t.Errorf("DefaultTolerance = %g", cfg.Fit.DefaultTolerance)
	}
	if cfg.Fit.MaxIterations != 200 {
		t.Errorf("MaxIterations = %d", cfg.Fit.MaxIterations)
	}
	if cfg.Fit.Workers < 1 {
		t.Errorf("Workers = %d", cfg.Fit.Workers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FIT_WORKERS", "3")
	t.Setenv("FIT_BOOTSTRAP", "500")
	t.Setenv("FIT_TOLERANCE", "1e-5")
	t.Setenv("FIT_MAX_ITERATIONS", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Fit.Workers != 3 || cfg.Fit.DefaultBootstrap != 500 ||
		cfg.Fit.DefaultTolerance != 1e-5 || cfg.Fit.MaxIterations != 50 {
		t.Errorf("Fit = %+v", cfg.Fit)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Setenv("FIT_WORKERS", "0")
	if _, err := Load(); err == nil {
		t.Error("zero workers should not load")
	}
}

func TestLoadDatabase_RequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadDatabase(); err == nil {
		t.Error("missing DATABASE_URL should fail")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/cure")
	db, err := LoadDatabase()
	if err != nil {
		t.Fatal(err)
	}
	if db.URL != "postgres://localhost/cure" {
		t.Errorf("URL = %q", db.URL)
	}
}
