package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"formflow/internal/models"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStorage keeps objects in a map. Safe for concurrent use.
type MemoryStorage struct {
	objects map[string]memoryObject
	mu      sync.RWMutex
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (m *MemoryStorage) Put(ctx context.Context, file models.FileUpload, folder string) (models.StorageReference, error) {
	key := ObjectKey(folder, file.Filename, m.now())
	if err := ctx.Err(); err != nil {
		return models.StorageReference{}, &Failure{Op: "put", Key: key, Err: err}
	}

	data := make([]byte, len(file.Data))
	copy(data, file.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: ContentType(file)}

	return models.StorageReference{URL: "memory://" + key, StorageID: key}, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, storageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[storageID]; !ok {
		return &Failure{Op: "delete", Key: storageID, Err: fmt.Errorf("object not found")}
	}
	delete(m.objects, storageID)
	return nil
}

// Get returns a stored object's bytes and content type.
func (m *MemoryStorage) Get(storageID string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[storageID]
	return obj.data, obj.contentType, ok
}

// Len reports how many objects are stored.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Storage = (*MemoryStorage)(nil)
