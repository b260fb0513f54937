package storage

import (
	"database/sql"
	"errors"
	"time"

	"billed/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a bill does not exist.
var ErrNotFound = errors.New("bill not found")

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// A single connection keeps ":memory:" databases shared across queries.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS bills (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			amount INTEGER NOT NULL DEFAULT 0,
			date TEXT NOT NULL DEFAULT '',
			vat TEXT NOT NULL DEFAULT '',
			pct INTEGER NOT NULL DEFAULT 20,
			commentary TEXT NOT NULL DEFAULT '',
			file_url TEXT,
			file_name TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			comment_admin TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bills_email ON bills(email)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// CreateDraft inserts a bill that only knows its owner and proof file.
func (db *DB) CreateDraft(id, email, fileURL, fileName string) error {
	_, err := db.conn.Exec(
		"INSERT INTO bills (id, email, file_url, file_name, created_at) VALUES (?, ?, ?, ?, ?)",
		id, email, fileURL, fileName, time.Now(),
	)
	return err
}

const billColumns = "id, email, type, name, amount, date, vat, pct, commentary, file_url, file_name, status, comment_admin"

type scanner interface {
	Scan(dest ...any) error
}

func scanBill(row scanner) (*models.Bill, error) {
	var b models.Bill
	var fileURL, fileName sql.NullString
	if err := row.Scan(&b.ID, &b.Email, &b.Type, &b.Name, &b.Amount, &b.Date, &b.VAT, &b.Pct,
		&b.Commentary, &fileURL, &fileName, &b.Status, &b.CommentAdmin); err != nil {
		return nil, err
	}
	if fileURL.Valid {
		b.FileURL = &fileURL.String
	}
	if fileName.Valid {
		b.FileName = &fileName.String
	}
	return &b, nil
}

// GetBill retrieves a single bill by ID.
func (db *DB) GetBill(id string) (*models.Bill, error) {
	row := db.conn.QueryRow("SELECT "+billColumns+" FROM bills WHERE id = ?", id)
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// UpdateBill overwrites the editable fields of an existing bill. File fields
// left nil keep their stored value.
func (db *DB) UpdateBill(b *models.Bill) error {
	res, err := db.conn.Exec(`
		UPDATE bills SET
			email = ?, type = ?, name = ?, amount = ?, date = ?, vat = ?, pct = ?,
			commentary = ?, status = ?,
			file_url = COALESCE(?, file_url), file_name = COALESCE(?, file_name)
		WHERE id = ?`,
		b.Email, b.Type, b.Name, b.Amount, b.Date, b.VAT, b.Pct,
		b.Commentary, b.Status, b.FileURL, b.FileName, b.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBills retrieves submitted bills in insertion order. Drafts whose form
// was never submitted have no date and are left out. A non-empty email
// restricts the result to that owner.
func (db *DB) ListBills(email string) ([]models.Bill, error) {
	query := "SELECT " + billColumns + " FROM bills WHERE date != ''"
	var args []any
	if email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}
	query += " ORDER BY created_at, rowid"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := []models.Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *b)
	}

	return bills, rows.Err()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
