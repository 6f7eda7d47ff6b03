package source

import "testing"

func TestBuildQuerySubstitution(t *testing.T) {
	tmpl := "SELECT * FROM visits WHERE updated_at >= '{start}' AND updated_at < '{end}' ORDER BY id LIMIT {limit} OFFSET {offset}"
	win := Window{Start: "2026-01-01T00:00:00Z", End: "2026-02-01T00:00:00Z"}
	got := BuildQuery(tmpl, win, 50000, 100000)
	want := "SELECT * FROM visits WHERE updated_at >= '2026-01-01T00:00:00Z' AND updated_at < '2026-02-01T00:00:00Z' ORDER BY id LIMIT 50000 OFFSET 100000"
	if got != want {
		t.Errorf("BuildQuery() = %q, want %q", got, want)
	}
}

func TestPagedDetection(t *testing.T) {
	if !Paged("SELECT 1 LIMIT {limit} OFFSET {offset}") {
		t.Error("Paged() = false for template with both placeholders")
	}
	if Paged("SELECT * FROM visits WHERE updated_at >= '{start}'") {
		t.Error("Paged() = true for cursor template")
	}
}

func TestDriverNameMapping(t *testing.T) {
	cases := map[string]string{
		"postgres":   "pgx",
		"postgresql": "pgx",
		"sqlserver":  "sqlserver",
		"mssql":      "sqlserver",
	}
	for in, want := range cases {
		got, err := driverName(in)
		if err != nil || got != want {
			t.Errorf("driverName(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := driverName("oracle"); err == nil {
		t.Error("driverName(oracle) succeeded, want error")
	}
}
