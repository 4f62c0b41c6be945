package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"task-observer/src/logger"
	"task-observer/src/models"

	_ "modernc.org/sqlite"
)

// ErrTaskNotFound is returned by GetTask and UpdateStatus when no row
// matches the id.
var ErrTaskNotFound = errors.New("task not found")

// -----------------------------------------------------------------------------

type SQLiteTaskStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteTaskStore(cfg *models.MConfig, log *logger.Logger) (*SQLiteTaskStore, error) {
	return &SQLiteTaskStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteTaskStore) Initialize() error {
	dsn := d.Config.Sim.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteTaskStore) createTables() error {
	// SQLite types: INTEGER for int64, TEXT for string. Timestamps are
	// unix seconds; updated_at stays NULL until the first status change.
	query := `
		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			symbol TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create tasks: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteTaskStore) ListTasks() ([]models.MTask, error) {
	rows, err := d.DB.Query(`
		SELECT id, name, symbol, status, created_at, updated_at
		FROM tasks
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]models.MTask, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteTaskStore) GetTask(id int64) (models.MTask, error) {
	row := d.DB.QueryRow(`
		SELECT id, name, symbol, status, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MTask{}, ErrTaskNotFound
	}
	return task, err
}

// -----------------------------------------------------------------------------

func (d *SQLiteTaskStore) CreateTask(name, symbol string) (models.MTask, error) {
	now := time.Now().UTC()

	res, err := d.DB.Exec(`
		INSERT INTO tasks (name, symbol, status, created_at)
		VALUES (?, ?, ?, ?)
	`, name, symbol, string(models.TaskPending), now.Unix())
	if err != nil {
		return models.MTask{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.MTask{}, err
	}

	return models.MTask{
		ID:        id,
		Name:      name,
		Symbol:    symbol,
		Status:    models.TaskPending,
		CreatedAt: now,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteTaskStore) UpdateStatus(id int64, status models.MTaskStatus) (models.MTask, error) {
	now := time.Now().UTC()

	res, err := d.DB.Exec(`
		UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), now.Unix(), id)
	if err != nil {
		return models.MTask{}, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return models.MTask{}, err
	}
	if affected == 0 {
		return models.MTask{}, ErrTaskNotFound
	}

	return d.GetTask(id)
}

// -----------------------------------------------------------------------------

func (d *SQLiteTaskStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (models.MTask, error) {
	var (
		task      models.MTask
		status    string
		createdAt int64
		updatedAt sql.NullInt64
	)

	err := row.Scan(&task.ID, &task.Name, &task.Symbol, &status, &createdAt, &updatedAt)
	if err != nil {
		return models.MTask{}, err
	}

	task.Status = models.MTaskStatus(status)
	task.CreatedAt = time.Unix(createdAt, 0).UTC()
	if updatedAt.Valid {
		t := time.Unix(updatedAt.Int64, 0).UTC()
		task.UpdatedAt = &t
	}

	return task, nil
}
