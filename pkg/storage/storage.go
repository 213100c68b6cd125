// Package storage persists wallet records as one JSON file per wallet
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/Caqil/solana-share-signer/pkg/crypto/rand"
	"github.com/Caqil/solana-share-signer/pkg/wallet"
)

// Storage errors
var (
	ErrNotFound         = errors.New("wallet record not found")
	ErrAlreadyExists    = errors.New("wallet record already exists")
	ErrDuplicateDefault = errors.New("user already has a default wallet")
	ErrDuplicateAPIKey  = errors.New("api key already has a wallet")
	ErrIdentityChanged  = errors.New("rotation may not change wallet identity")
	ErrStorageCorrupted = errors.New("storage corrupted")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidPubkey    = errors.New("invalid wallet public key")
	ErrBackupFailed     = errors.New("backup failed")
	ErrRestoreFailed    = errors.New("restore failed")
)

const recordExt = ".json"

// RecordStore is the persistence the signer depends on. Reads return
// snapshots; rotations are serialized against reads of the same record.
type RecordStore interface {
	// Create persists a new record, enforcing one wallet per pubkey, one
	// default wallet per user and one wallet per API key
	Create(ctx context.Context, rec wallet.WalletRecord) error

	// ByPubkey returns a snapshot of the wallet with the given base58 pubkey
	ByPubkey(ctx context.Context, pubkey string) (wallet.WalletRecord, error)

	// DefaultForUser returns a snapshot of the user's default wallet
	DefaultForUser(ctx context.Context, userID uuid.UUID) (wallet.WalletRecord, error)

	// ByAPIKey returns a snapshot of the wallet scoped to an API key
	ByAPIKey(ctx context.Context, apiKeyID uuid.UUID) (wallet.WalletRecord, error)

	// View runs fn on a snapshot while no rotation of that record can commit
	View(ctx context.Context, pubkey string, fn func(wallet.WalletRecord) error) error

	// ApplyRotation runs fn under the record's write lock and persists the
	// record it returns atomically
	ApplyRotation(ctx context.Context, pubkey string, fn func(wallet.WalletRecord) (wallet.WalletRecord, error)) error

	// Delete overwrites and removes a record
	Delete(ctx context.Context, pubkey string) error
}

// StorageConfig contains configuration for the record store
type StorageConfig struct {
	// Dir holds one file per wallet
	Dir string

	// FileMode is the Unix file permissions (default: 0600)
	FileMode os.FileMode
}

// DefaultStorageConfig returns a secure default configuration
func DefaultStorageConfig(dir string) *StorageConfig {
	return &StorageConfig{
		Dir:      dir,
		FileMode: 0600, // Read/write for owner only
	}
}

// Validate validates the storage configuration
func (c *StorageConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("storage directory cannot be empty")
	}

	if c.FileMode&0077 != 0 {
		return fmt.Errorf("insecure file permissions: %o (should be 0600)", c.FileMode)
	}

	if c.FileMode&0600 != 0600 {
		return fmt.Errorf("owner must be able to read and write records: %o", c.FileMode)
	}

	return nil
}

// FileStore implements RecordStore on the local filesystem. The lookup
// indexes live in memory and are rebuilt from disk on open.
type FileStore struct {
	config *StorageConfig

	mu       sync.Mutex
	locks    map[string]*sync.RWMutex
	byUser   map[uuid.UUID]string
	byAPIKey map[uuid.UUID]string
}

var _ RecordStore = (*FileStore)(nil)

// NewFileStore opens (creating if needed) the store directory and indexes
// every record in it
func NewFileStore(config *StorageConfig) (*FileStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.Dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	fs := &FileStore{
		config:   config,
		locks:    make(map[string]*sync.RWMutex),
		byUser:   make(map[uuid.UUID]string),
		byAPIKey: make(map[uuid.UUID]string),
	}

	entries, err := os.ReadDir(config.Dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		pubkey := strings.TrimSuffix(e.Name(), recordExt)

		rec, err := fs.load(pubkey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if err := fs.checkUnique(rec); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStorageCorrupted, e.Name(), err)
		}
		fs.index(rec)
	}

	return fs, nil
}

// Create persists a new record
func (fs *FileStore) Create(ctx context.Context, rec wallet.WalletRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.checkUnique(rec); err != nil {
		return err
	}
	if err := fs.save(rec); err != nil {
		return err
	}
	fs.index(rec)
	return nil
}

// ByPubkey returns a snapshot of the wallet with the given pubkey
func (fs *FileStore) ByPubkey(ctx context.Context, pubkey string) (wallet.WalletRecord, error) {
	var out wallet.WalletRecord
	err := fs.View(ctx, pubkey, func(rec wallet.WalletRecord) error {
		out = rec
		return nil
	})
	return out, err
}

// DefaultForUser returns a snapshot of the user's default wallet
func (fs *FileStore) DefaultForUser(ctx context.Context, userID uuid.UUID) (wallet.WalletRecord, error) {
	fs.mu.Lock()
	pubkey, ok := fs.byUser[userID]
	fs.mu.Unlock()
	if !ok {
		return wallet.WalletRecord{}, ErrNotFound
	}
	return fs.ByPubkey(ctx, pubkey)
}

// ByAPIKey returns a snapshot of the wallet scoped to apiKeyID
func (fs *FileStore) ByAPIKey(ctx context.Context, apiKeyID uuid.UUID) (wallet.WalletRecord, error) {
	fs.mu.Lock()
	pubkey, ok := fs.byAPIKey[apiKeyID]
	fs.mu.Unlock()
	if !ok {
		return wallet.WalletRecord{}, ErrNotFound
	}
	return fs.ByPubkey(ctx, pubkey)
}

// View runs fn on a snapshot under the record's read lock
func (fs *FileStore) View(ctx context.Context, pubkey string, fn func(wallet.WalletRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock, err := fs.lockFor(pubkey)
	if err != nil {
		return err
	}
	lock.RLock()
	defer lock.RUnlock()

	rec, err := fs.load(pubkey)
	if err != nil {
		return err
	}
	return fn(rec)
}

// ApplyRotation runs fn under the record's write lock. The record fn
// returns must keep the same id, owner, API key and pubkey.
func (fs *FileStore) ApplyRotation(ctx context.Context, pubkey string, fn func(wallet.WalletRecord) (wallet.WalletRecord, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock, err := fs.lockFor(pubkey)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	current, err := fs.load(pubkey)
	if err != nil {
		return err
	}

	updated, err := fn(current.Clone())
	if err != nil {
		return err
	}

	if !sameIdentity(current, updated) {
		return ErrIdentityChanged
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return fs.save(updated)
}

// Delete overwrites the record file with random bytes and removes it
func (fs *FileStore) Delete(ctx context.Context, pubkey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	lock, ok := fs.locks[pubkey]
	if !ok {
		return ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	rec, err := fs.load(pubkey)
	if err != nil {
		return err
	}

	path := fs.path(pubkey)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	randomData, err := rand.GenerateRandomBytes(int(max(info.Size(), 1)))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, randomData, fs.config.FileMode); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return err
	}

	delete(fs.locks, pubkey)
	if rec.APIKeyID != nil {
		delete(fs.byAPIKey, *rec.APIKeyID)
	} else {
		delete(fs.byUser, rec.UserID)
	}
	return nil
}

// Backup copies a record file to backupPath with the store's permissions
func (fs *FileStore) Backup(ctx context.Context, pubkey, backupPath string) error {
	return fs.View(ctx, pubkey, func(wallet.WalletRecord) error {
		data, err := readSecureFile(fs.path(pubkey), fs.config.FileMode)
		if err != nil {
			return err
		}
		if err := writeSecureFile(backupPath, data, fs.config.FileMode); err != nil {
			return fmt.Errorf("%w: %w", ErrBackupFailed, err)
		}
		return nil
	})
}

// Restore validates a backup file and creates its record in the store.
// The usual uniqueness rules apply.
func (fs *FileStore) Restore(ctx context.Context, backupPath string) (wallet.WalletRecord, error) {
	data, err := readSecureFile(backupPath, fs.config.FileMode)
	if err != nil {
		return wallet.WalletRecord{}, fmt.Errorf("%w: %w", ErrRestoreFailed, err)
	}

	var rec wallet.WalletRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return wallet.WalletRecord{}, fmt.Errorf("%w: %w", ErrRestoreFailed, ErrStorageCorrupted)
	}

	if err := fs.Create(ctx, rec); err != nil {
		return wallet.WalletRecord{}, fmt.Errorf("%w: %w", ErrRestoreFailed, err)
	}
	return rec, nil
}

// checkUnique must be called with fs.mu held
func (fs *FileStore) checkUnique(rec wallet.WalletRecord) error {
	if _, ok := fs.locks[rec.SolanaPubkey]; ok {
		return ErrAlreadyExists
	}
	if rec.APIKeyID != nil {
		if _, ok := fs.byAPIKey[*rec.APIKeyID]; ok {
			return ErrDuplicateAPIKey
		}
		return nil
	}
	if _, ok := fs.byUser[rec.UserID]; ok {
		return ErrDuplicateDefault
	}
	return nil
}

// index must be called with fs.mu held
func (fs *FileStore) index(rec wallet.WalletRecord) {
	fs.locks[rec.SolanaPubkey] = &sync.RWMutex{}
	if rec.APIKeyID != nil {
		fs.byAPIKey[*rec.APIKeyID] = rec.SolanaPubkey
	} else {
		fs.byUser[rec.UserID] = rec.SolanaPubkey
	}
}

func (fs *FileStore) lockFor(pubkey string) (*sync.RWMutex, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	lock, ok := fs.locks[pubkey]
	if !ok {
		return nil, ErrNotFound
	}
	return lock, nil
}

// path maps a pubkey to its file. Only canonical base58 keys are accepted,
// which also keeps path separators out of file names.
func (fs *FileStore) path(pubkey string) string {
	return filepath.Join(fs.config.Dir, pubkey+recordExt)
}

func (fs *FileStore) load(pubkey string) (wallet.WalletRecord, error) {
	if err := checkPubkey(pubkey); err != nil {
		return wallet.WalletRecord{}, err
	}

	data, err := readSecureFile(fs.path(pubkey), fs.config.FileMode)
	if err != nil {
		return wallet.WalletRecord{}, err
	}

	var rec wallet.WalletRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return wallet.WalletRecord{}, ErrStorageCorrupted
	}
	if rec.SolanaPubkey != pubkey {
		return wallet.WalletRecord{}, fmt.Errorf("%w: file name does not match record pubkey", ErrStorageCorrupted)
	}
	if err := rec.Validate(); err != nil {
		return wallet.WalletRecord{}, fmt.Errorf("%w: %w", ErrStorageCorrupted, err)
	}
	return rec, nil
}

func (fs *FileStore) save(rec wallet.WalletRecord) error {
	if err := checkPubkey(rec.SolanaPubkey); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize wallet record: %w", err)
	}

	return writeSecureFile(fs.path(rec.SolanaPubkey), data, fs.config.FileMode)
}

func checkPubkey(pubkey string) error {
	pub, err := solana.PublicKeyFromBase58(pubkey)
	if err != nil || pub.String() != pubkey {
		return ErrInvalidPubkey
	}
	return nil
}

func sameIdentity(a, b wallet.WalletRecord) bool {
	if a.ID != b.ID || a.UserID != b.UserID || a.SolanaPubkey != b.SolanaPubkey {
		return false
	}
	if (a.APIKeyID == nil) != (b.APIKeyID == nil) {
		return false
	}
	return a.APIKeyID == nil || *a.APIKeyID == *b.APIKeyID
}

// writeSecureFile writes data to a file with secure permissions
func writeSecureFile(path string, data []byte, mode os.FileMode) error {
	// Create temporary file
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return ErrPermissionDenied
	}

	// Write data
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	// Sync to disk
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync: %w", err)
	}

	f.Close()

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename: %w", err)
	}

	return nil
}

// readSecureFile reads data from a file and validates permissions
func readSecureFile(path string, expectedMode os.FileMode) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if info.Mode().Perm() != expectedMode {
		return nil, fmt.Errorf("%w: file has permissions %o, expected %o",
			ErrPermissionDenied, info.Mode().Perm(), expectedMode)
	}

	return os.ReadFile(path)
}
