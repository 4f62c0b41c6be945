package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"task-observer/src/helpers"
	"task-observer/src/logger"
	"task-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresTaskStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresTaskStore(cfg *models.MConfig, log *logger.Logger) (*PostgresTaskStore, error) {
	return &PostgresTaskStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresTaskStore) Initialize() error {
	dsn := d.Config.Sim.Storage.DBConnectionString

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	// The database may still be coming up when the simulator starts
	err = helpers.RetryWithBackoff("postgres ping", 5, 2*time.Second, func() error {
		return db.Ping()
	})
	if err != nil {
		return err
	}

	d.DB = db

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresTaskStore initialized successfully")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresTaskStore) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			symbol TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create tasks: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresTaskStore) ListTasks() ([]models.MTask, error) {
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

func (d *PostgresTaskStore) GetTask(id int64) (models.MTask, error) {
	row := d.DB.QueryRow(`
		SELECT id, name, symbol, status, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MTask{}, ErrTaskNotFound
	}
	return task, err
}

// -----------------------------------------------------------------------------

func (d *PostgresTaskStore) CreateTask(name, symbol string) (models.MTask, error) {
	now := time.Now().UTC()

	var id int64
	err := d.DB.QueryRow(`
		INSERT INTO tasks (name, symbol, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, name, symbol, string(models.TaskPending), now.Unix()).Scan(&id)
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

func (d *PostgresTaskStore) UpdateStatus(id int64, status models.MTaskStatus) (models.MTask, error) {
	now := time.Now().UTC()

	res, err := d.DB.Exec(`
		UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3
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

func (d *PostgresTaskStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
