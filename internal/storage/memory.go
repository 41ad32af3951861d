package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"coursehub/internal/common/errors"
	"coursehub/internal/common/utils"
	"coursehub/internal/models"
)

// MemoryStorage is an in-memory Storage implementation. It backs tests and
// ephemeral development runs; nothing survives a restart.
type MemoryStorage struct {
	mu          sync.RWMutex
	credentials map[string]*models.Credentials
	classes     map[string]*models.Class
	tasks       map[string]*models.Task
	settings    map[string]string
	closed      bool
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		credentials: make(map[string]*models.Credentials),
		classes:     make(map[string]*models.Class),
		tasks:       make(map[string]*models.Task),
		settings:    make(map[string]string),
	}
}

func (m *MemoryStorage) GetCredentials(ctx context.Context, userID string) (*models.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	creds, ok := m.credentials[userID]
	if !ok {
		return nil, nil
	}

	copied := *creds
	if creds.GoogleTokenExpiry != nil {
		expiry := *creds.GoogleTokenExpiry
		copied.GoogleTokenExpiry = &expiry
	}
	return &copied, nil
}

func (m *MemoryStorage) UpsertCredentialFields(ctx context.Context, userID string, fields map[string]interface{}) error {
	if err := ValidateCredentialFields(fields); err != nil {
		return errors.ValidationError(err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	creds, ok := m.credentials[userID]
	if !ok {
		creds = &models.Credentials{UserID: userID}
		m.credentials[userID] = creds
	}

	ApplyCredentialFields(creds, fields)
	return nil
}

func (m *MemoryStorage) ListExpiringGoogleCredentials(ctx context.Context, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var userIDs []string
	for userID, creds := range m.credentials {
		if creds.GoogleRefreshToken == "" || creds.GoogleReauthRequired {
			continue
		}
		if creds.GoogleTokenExpiry == nil || creds.GoogleTokenExpiry.Before(before) {
			userIDs = append(userIDs, userID)
		}
	}

	sort.Strings(userIDs)
	return userIDs, nil
}

func (m *MemoryStorage) CreateClass(ctx context.Context, class *models.Class) (*models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

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

	copied := *class
	m.classes[class.ID] = &copied
	return class, nil
}

func (m *MemoryStorage) GetClass(ctx context.Context, classID string) (*models.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	class, ok := m.classes[classID]
	if !ok {
		return nil, errors.NotFoundError("class")
	}

	copied := *class
	return &copied, nil
}

func (m *MemoryStorage) ListClasses(ctx context.Context, userID string) ([]*models.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var classes []*models.Class
	for _, class := range m.classes {
		if class.UserID == userID {
			copied := *class
			classes = append(classes, &copied)
		}
	}

	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

func (m *MemoryStorage) UserOwnsClass(ctx context.Context, classID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	class, ok := m.classes[classID]
	return ok && class.UserID == userID, nil
}

func (m *MemoryStorage) TaskExistsByRemoteID(ctx context.Context, classID, userID, remoteID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, task := range m.tasks {
		if task.ClassID == classID && task.UserID == userID && task.RemoteID == remoteID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStorage) InsertTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

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

	copied := *task
	if task.DueAt != nil {
		due := *task.DueAt
		copied.DueAt = &due
	}
	m.tasks[task.ID] = &copied
	return task, nil
}

func (m *MemoryStorage) ListTasks(ctx context.Context, classID, userID string) ([]*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tasks []*models.Task
	for _, task := range m.tasks {
		if task.ClassID == classID && task.UserID == userID {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		di, dj := tasks[i].DueAt, tasks[j].DueAt
		if di == nil || dj == nil {
			return dj == nil && di != nil
		}
		return di.Before(*dj)
	})
	return tasks, nil
}

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.settings[key]
	if !ok {
		return "", errors.NotFoundError("setting")
	}
	return value, nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

func (m *MemoryStorage) Health() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.StorageError("memory storage is closed", nil)
	}
	return nil
}

func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
