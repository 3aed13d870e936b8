package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/maine/promo_offers_bot/internal/offer"
)

// ledgerFile — формат снапшота журнала на диске.
type ledgerFile struct {
	Offers []offer.LedgerEntry `json:"offers"`
}

// FileStore хранит журнал в JSON-файле.
type FileStore struct {
	path string
}

// NewFileStore создаёт новый файловый стор.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load читает журнал из файла.
func (s *FileStore) Load(ctx context.Context) (map[offer.IdentityKey]offer.LedgerEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[offer.IdentityKey]offer.LedgerEntry{}, nil
		}
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	var file ledgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		// Fallback: если JSON повреждён, начинаем с пустого журнала.
		// Старый файл переименовывается в .broken для диагностики,
		// чтобы цикл мог продолжить работу.
		brokenPath := s.path + ".broken"
		_ = os.WriteFile(brokenPath, data, 0644)
		return map[offer.IdentityKey]offer.LedgerEntry{}, nil
	}

	entries := make(map[offer.IdentityKey]offer.LedgerEntry, len(file.Offers))
	for _, e := range file.Offers {
		entries[e.Key] = e
	}
	return entries, nil
}

// Save записывает журнал в файл атомарно (через временный файл).
func (s *FileStore) Save(ctx context.Context, entries map[offer.IdentityKey]offer.LedgerEntry) error {
	file := ledgerFile{Offers: make([]offer.LedgerEntry, 0, len(entries))}
	for _, e := range entries {
		file.Offers = append(file.Offers, e)
	}
	// Стабильный порядок, чтобы файл не менялся без причины.
	sort.Slice(file.Offers, func(i, j int) bool {
		return file.Offers[i].Key < file.Offers[j].Key
	})

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	// Атомарная запись через временный файл
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp ledger file: %w", err)
	}

	// Переименовываем временный файл - это атомарная операция на большинстве файловых систем
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp ledger file: %w", err)
	}

	return nil
}
