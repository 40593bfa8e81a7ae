package databases

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresConfig configures the relational connection.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	PoolSize int    `yaml:"pool_size"`
}

// SetDefaults fills missing connection settings.
func (c *PostgresConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
}

// DSN renders the lib/pq connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Postgres is the read-only relational adapter. Generated SQL runs inside
// read-only transactions so an unsafe statement slipping past validation
// still cannot write.
type Postgres struct {
	db *sql.DB
}

// School is a row of the truong table used by the school_info node.
type School struct {
	ID          int64
	MaTruong    string
	TenTruong   string
	TenKhongDau string
	LoaiTruong  string
	DiaChi      string
	Website     string
	MoTa        string
}

// Major is a row of the nganh table.
type Major struct {
	ID       int64
	MaNganh  string
	TenNganh string
	MoTa     string
}

// NewPostgres opens the pool and verifies connectivity.
func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	cfg.SetDefaults()
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an existing handle. Used by tests.
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Query executes a SELECT inside a read-only transaction and returns the
// rows as ordered column maps.
func (p *Postgres) Query(ctx context.Context, query string) ([]map[string]any, []string, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin read-only tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return out, columns, nil
}

// ActiveSchools lists every active school for name matching.
func (p *Postgres) ActiveSchools(ctx context.Context) ([]School, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, ma_truong, ten_truong, COALESCE(ten_khong_dau, ''),
		       COALESCE(loai_truong, ''), COALESCE(dia_chi, ''),
		       COALESCE(website, ''), COALESCE(mo_ta, '')
		FROM truong WHERE active = true`)
	if err != nil {
		return nil, fmt.Errorf("failed to load schools: %w", err)
	}
	defer rows.Close()

	var schools []School
	for rows.Next() {
		var s School
		if err := rows.Scan(&s.ID, &s.MaTruong, &s.TenTruong, &s.TenKhongDau,
			&s.LoaiTruong, &s.DiaChi, &s.Website, &s.MoTa); err != nil {
			return nil, fmt.Errorf("failed to scan school: %w", err)
		}
		schools = append(schools, s)
	}
	return schools, rows.Err()
}

// MajorsBySchool lists the active majors of a school.
func (p *Postgres) MajorsBySchool(ctx context.Context, schoolID int64) ([]Major, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, COALESCE(ma_nganh, ''), ten_nganh, COALESCE(mo_ta, '')
		FROM nganh WHERE truong_id = $1 AND active = true
		ORDER BY ten_nganh`, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load majors: %w", err)
	}
	defer rows.Close()

	var majors []Major
	for rows.Next() {
		var m Major
		if err := rows.Scan(&m.ID, &m.MaNganh, &m.TenNganh, &m.MoTa); err != nil {
			return nil, fmt.Errorf("failed to scan major: %w", err)
		}
		majors = append(majors, m)
	}
	return majors, rows.Err()
}

// Close closes the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
