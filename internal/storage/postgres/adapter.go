// Package postgres implements the storage boundary on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
	"coursehub/internal/common/utils"
	"coursehub/internal/models"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
}

// Validate checks the configuration for required values.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

// Type returns the storage type identifier.
func (c *Config) Type() string {
	return "postgres"
}

// ConnectionString builds the pgx connection string.
func (c *Config) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, sslMode)
}

// Adapter is the PostgreSQL storage backend.
type Adapter struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// New connects to PostgreSQL, runs migrations and returns the adapter.
func New(ctx context.Context, config *Config, logger logging.Logger) (*Adapter, error) {
	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString())
	if err != nil {
		return nil, errors.StorageError("failed to parse postgres config", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.StorageError("failed to create postgres pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.ConnectionError("failed to ping postgres", err)
	}

	adapter := &Adapter{pool: pool, logger: logger}
	if err := adapter.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres storage",
		logging.Field{Key: "host", Value: config.Host},
		logging.Field{Key: "database", Value: config.Database})

	return adapter, nil
}

func (a *Adapter) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS user_credentials (
			user_id TEXT PRIMARY KEY,
			google_access_token TEXT NOT NULL DEFAULT '',
			google_refresh_token TEXT NOT NULL DEFAULT '',
			google_token_expiry TIMESTAMPTZ,
			google_reauth_required BOOLEAN NOT NULL DEFAULT FALSE,
			canvas_domain TEXT NOT NULL DEFAULT '',
			canvas_access_token TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_credentials_expiry
			ON user_credentials (google_token_expiry)
			WHERE google_refresh_token <> ''`,
		`CREATE TABLE IF NOT EXISTS classes (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			code TEXT NOT NULL DEFAULT '',
			instructor TEXT NOT NULL DEFAULT '',
			canvas_course_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_classes_user ON classes (user_id)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			class_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			due_at TIMESTAMPTZ,
			remote_id TEXT NOT NULL DEFAULT '',
			html_url TEXT NOT NULL DEFAULT '',
			points DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_remote
			ON tasks (class_id, user_id, remote_id)
			WHERE remote_id <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_class ON tasks (class_id, user_id)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, stmt := range statements {
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			return errors.StorageError("failed to run migration", err)
		}
	}

	return nil
}

func (a *Adapter) GetCredentials(ctx context.Context, userID string) (*models.Credentials, error) {
	creds := &models.Credentials{}
	err := a.pool.QueryRow(ctx,
		`SELECT user_id, google_access_token, google_refresh_token, google_token_expiry,
			google_reauth_required, canvas_domain, canvas_access_token
		FROM user_credentials WHERE user_id = $1`, userID).Scan(
		&creds.UserID, &creds.GoogleAccessToken, &creds.GoogleRefreshToken,
		&creds.GoogleTokenExpiry, &creds.GoogleReauthRequired,
		&creds.CanvasDomain, &creds.CanvasAccessToken)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError("failed to load credentials", err)
	}
	return creds, nil
}

// credentialColumn validates a credential update key and normalizes its value
// for the driver. Keys are column names; anything else is rejected.
func credentialColumn(key string, value interface{}) (interface{}, error) {
	switch key {
	case "google_access_token", "google_refresh_token", "canvas_domain", "canvas_access_token":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("field %s must be a string", key)
		}
		return s, nil
	case "google_reauth_required":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("field %s must be a bool", key)
		}
		return b, nil
	case "google_token_expiry":
		switch v := value.(type) {
		case nil:
			return nil, nil
		case time.Time:
			return v, nil
		case *time.Time:
			if v == nil {
				return nil, nil
			}
			return *v, nil
		default:
			return nil, fmt.Errorf("field %s must be a time or nil", key)
		}
	default:
		return nil, fmt.Errorf("unknown credential field %s", key)
	}
}

func (a *Adapter) UpsertCredentialFields(ctx context.Context, userID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return errors.ValidationError("credential update must contain at least one field")
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	columns := []string{"user_id"}
	placeholders := []string{"$1"}
	updates := []string{"updated_at = now()"}
	args := []interface{}{userID}

	for _, key := range keys {
		value, err := credentialColumn(key, fields[key])
		if err != nil {
			return errors.ValidationError(err.Error())
		}
		args = append(args, value)
		columns = append(columns, key)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", key, key))
	}

	query := fmt.Sprintf(
		`INSERT INTO user_credentials (%s) VALUES (%s)
		ON CONFLICT (user_id) DO UPDATE SET %s`,
		strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	if _, err := a.pool.Exec(ctx, query, args...); err != nil {
		return errors.StorageError("failed to update credentials", err)
	}
	return nil
}

func (a *Adapter) ListExpiringGoogleCredentials(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT user_id FROM user_credentials
		WHERE google_refresh_token <> ''
			AND google_reauth_required = FALSE
			AND (google_token_expiry IS NULL OR google_token_expiry < $1)
		ORDER BY user_id`, before)
	if err != nil {
		return nil, errors.StorageError("failed to list expiring credentials", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, errors.StorageError("failed to scan credential row", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("failed to iterate credential rows", err)
	}
	return userIDs, nil
}

func (a *Adapter) CreateClass(ctx context.Context, class *models.Class) (*models.Class, error) {
	if class.ID == "" {
		id, err := utils.GenerateUUID()
		if err != nil {
			return nil, errors.InternalError("failed to generate class ID", err)
		}
		class.ID = id
	}
	if class.CreatedAt.IsZero() {
		class.CreatedAt = time.Now().UTC()
	}

	_, err := a.pool.Exec(ctx,
		`INSERT INTO classes (id, user_id, name, code, instructor, canvas_course_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		class.ID, class.UserID, class.Name, class.Code, class.Instructor,
		class.CanvasCourseID, class.CreatedAt)
	if err != nil {
		return nil, errors.StorageError("failed to insert class", err)
	}
	return class, nil
}

func (a *Adapter) GetClass(ctx context.Context, classID string) (*models.Class, error) {
	class := &models.Class{}
	err := a.pool.QueryRow(ctx,
		`SELECT id, user_id, name, code, instructor, canvas_course_id, created_at
		FROM classes WHERE id = $1`, classID).Scan(
		&class.ID, &class.UserID, &class.Name, &class.Code,
		&class.Instructor, &class.CanvasCourseID, &class.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFoundError("class")
	}
	if err != nil {
		return nil, errors.StorageError("failed to load class", err)
	}
	return class, nil
}

func (a *Adapter) ListClasses(ctx context.Context, userID string) ([]*models.Class, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT id, user_id, name, code, instructor, canvas_course_id, created_at
		FROM classes WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, errors.StorageError("failed to list classes", err)
	}
	defer rows.Close()

	var classes []*models.Class
	for rows.Next() {
		class := &models.Class{}
		if err := rows.Scan(&class.ID, &class.UserID, &class.Name, &class.Code,
			&class.Instructor, &class.CanvasCourseID, &class.CreatedAt); err != nil {
			return nil, errors.StorageError("failed to scan class row", err)
		}
		classes = append(classes, class)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("failed to iterate class rows", err)
	}
	return classes, nil
}

func (a *Adapter) UserOwnsClass(ctx context.Context, classID, userID string) (bool, error) {
	var exists bool
	err := a.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM classes WHERE id = $1 AND user_id = $2)`,
		classID, userID).Scan(&exists)
	if err != nil {
		return false, errors.StorageError("failed to check class ownership", err)
	}
	return exists, nil
}

func (a *Adapter) TaskExistsByRemoteID(ctx context.Context, classID, userID, remoteID string) (bool, error) {
	var exists bool
	err := a.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE class_id = $1 AND user_id = $2 AND remote_id = $3)`,
		classID, userID, remoteID).Scan(&exists)
	if err != nil {
		return false, errors.StorageError("failed to check task existence", err)
	}
	return exists, nil
}

func (a *Adapter) InsertTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.ID == "" {
		id, err := utils.GenerateUUID()
		if err != nil {
			return nil, errors.InternalError("failed to generate task ID", err)
		}
		task.ID = id
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	_, err := a.pool.Exec(ctx,
		`INSERT INTO tasks (id, class_id, user_id, title, description, due_at,
			remote_id, html_url, points, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.ClassID, task.UserID, task.Title, task.Description, task.DueAt,
		task.RemoteID, task.HTMLURL, task.Points, task.Status, task.CreatedAt)
	if err != nil {
		return nil, errors.StorageError("failed to insert task", err)
	}
	return task, nil
}

func (a *Adapter) ListTasks(ctx context.Context, classID, userID string) ([]*models.Task, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT id, class_id, user_id, title, description, due_at,
			remote_id, html_url, points, status, created_at
		FROM tasks WHERE class_id = $1 AND user_id = $2
		ORDER BY due_at NULLS LAST, created_at`, classID, userID)
	if err != nil {
		return nil, errors.StorageError("failed to list tasks", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task := &models.Task{}
		if err := rows.Scan(&task.ID, &task.ClassID, &task.UserID, &task.Title,
			&task.Description, &task.DueAt, &task.RemoteID, &task.HTMLURL,
			&task.Points, &task.Status, &task.CreatedAt); err != nil {
			return nil, errors.StorageError("failed to scan task row", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("failed to iterate task rows", err)
	}
	return tasks, nil
}

func (a *Adapter) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := a.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", errors.NotFoundError("setting")
	}
	if err != nil {
		return "", errors.StorageError("failed to load setting", err)
	}
	return value, nil
}

func (a *Adapter) SetSetting(ctx context.Context, key, value string) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return errors.StorageError("failed to store setting", err)
	}
	return nil
}

func (a *Adapter) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.pool.Ping(ctx); err != nil {
		return errors.ConnectionError("postgres health check failed", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}
