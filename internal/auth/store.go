package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"fabdrop/internal/common"
	apperrors "fabdrop/pkg/errors"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keyringService   = "fabdrop"
	saltSize         = 32
	pbkdf2Iterations = 100000
	keySize          = 32

	// KeyringEnvVar set to "false" forces the encrypted file store; "true"
	// forces the system keyring.
	KeyringEnvVar = "FABDROP_USE_KEYRING"
)

// StoredToken is one token saved with auth set.
type StoredToken struct {
	Resource  string    `json:"resource"`
	Token     string    `json:"token"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresOn time.Time `json:"expires_on,omitempty"`
	Encrypted bool      `json:"encrypted"`
}

// Expired reports whether the token has a known expiry in the past.
func (c *StoredToken) Expired(now time.Time) bool {
	return !c.ExpiresOn.IsZero() && now.After(c.ExpiresOn)
}

// Store keeps tokens in the system keyring, or encrypted on disk when no
// keyring is available.
type Store struct {
	dir        string
	useKeyring bool
	masterKey  []byte
	now        func() time.Time
}

// NewStore opens the store rooted at dir, ~/.fabdrop/credentials when empty.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to locate home directory")
		}
		dir = filepath.Join(home, ".fabdrop", "credentials")
	}
	s := &Store{dir: dir, useKeyring: isKeyringAvailable(), now: time.Now}

	if !s.useKeyring {
		key, err := s.loadMasterKey()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to initialize master key")
		}
		s.masterKey = key
	}
	return s, nil
}

// UsesKeyring reports which backend the store writes to.
func (s *Store) UsesKeyring() bool {
	return s.useKeyring
}

// Set stores token for resource. A zero ttl means no known expiry.
func (s *Store) Set(resource, token string, ttl time.Duration) error {
	resource = ResolveResource(resource)
	cred := &StoredToken{Resource: resource, Token: token, StoredAt: s.now().UTC()}
	if ttl > 0 {
		cred.ExpiresOn = cred.StoredAt.Add(ttl)
	}
	name := ResourceName(resource)

	if s.useKeyring {
		data, err := json.Marshal(cred)
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %w", err)
		}
		if err := keyring.Set(keyringService, name, string(data)); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeAuth, "failed to store in keyring")
		}
		return s.updateIndex(name, true)
	}

	encrypted, err := s.encrypt(token)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encrypt token")
	}
	stored := *cred
	stored.Token = encrypted
	stored.Encrypted = true
	return s.saveFile(name, &stored)
}

// Get returns the stored token for resource.
func (s *Store) Get(resource string) (*StoredToken, error) {
	resource = ResolveResource(resource)
	name := ResourceName(resource)

	if s.useKeyring {
		data, err := keyring.Get(keyringService, name)
		if err != nil {
			if err == keyring.ErrNotFound {
				return nil, apperrors.NotFound("stored token", name)
			}
			return nil, apperrors.Wrap(err, apperrors.ErrCodeAuth, "failed to read keyring")
		}
		var cred StoredToken
		if err := json.Unmarshal([]byte(data), &cred); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "stored token is corrupt")
		}
		return &cred, nil
	}

	cred, err := s.loadFile(name)
	if err != nil {
		return nil, err
	}
	if cred.Encrypted {
		token, err := s.decrypt(cred.Token)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeAuth, "failed to decrypt stored token")
		}
		cred.Token = token
		cred.Encrypted = false
	}
	return cred, nil
}

// Delete removes the stored token for resource.
func (s *Store) Delete(resource string) error {
	name := ResourceName(ResolveResource(resource))
	if s.useKeyring {
		if err := keyring.Delete(keyringService, name); err != nil {
			if err == keyring.ErrNotFound {
				return apperrors.NotFound("stored token", name)
			}
			return apperrors.Wrap(err, apperrors.ErrCodeAuth, "failed to delete from keyring")
		}
		return s.updateIndex(name, false)
	}

	path, err := s.credentialPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return apperrors.NotFound("stored token", name)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to delete credential file")
	}
	return nil
}

// List returns the short names of all stored tokens, sorted.
func (s *Store) List() ([]string, error) {
	if s.useKeyring {
		return s.readIndex()
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	names := []string{}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".cred") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".cred"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Token implements TokenProvider. Expired tokens are reported as missing.
func (s *Store) Token(_ context.Context, resource string) (string, error) {
	cred, err := s.Get(resource)
	if err != nil {
		return "", err
	}
	if cred.Expired(s.now()) {
		return "", apperrors.New(apperrors.ErrCodeAuth,
			fmt.Sprintf("stored token for %s expired at %s", ResourceName(resource), cred.ExpiresOn.Format(time.RFC3339)))
	}
	return cred.Token, nil
}

func (s *Store) encrypt(plaintext string) (string, error) {
	gcm, err := newGCM(s.masterKey)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(s.masterKey)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// loadMasterKey reads salt+key from <dir>/.master, creating it on first use
// from a machine-derived secret.
func (s *Store) loadMasterKey() ([]byte, error) {
	keyPath, err := common.ValidatePath(filepath.Join(s.dir, ".master"), s.dir)
	if err != nil {
		return nil, fmt.Errorf("invalid master key path: %w", err)
	}

	data, err := os.ReadFile(keyPath) // #nosec G304 - path is validated
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(machineID()), salt, pbkdf2Iterations, keySize, sha256.New)

	if err := os.MkdirAll(s.dir, common.DirPermissionSecure); err != nil {
		return nil, err
	}
	if err := common.WriteFileAtomic(keyPath, append(salt, key...), common.FilePermissionSecure); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *Store) credentialPath(name string) (string, error) {
	path, err := common.ValidatePath(filepath.Join(s.dir, name+".cred"), s.dir)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "invalid credential name").
			WithContext("name", name)
	}
	return path, nil
}

func (s *Store) saveFile(name string, cred *StoredToken) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, common.DirPermissionSecure); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create credentials directory")
	}
	path, err := s.credentialPath(name)
	if err != nil {
		return err
	}
	return common.WriteFileAtomic(path, data, common.FilePermissionSecure)
}

func (s *Store) loadFile(name string) (*StoredToken, error) {
	path, err := s.credentialPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("stored token", name)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read credential file")
	}
	var cred StoredToken
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "credential file is corrupt").
			WithContext("file", path)
	}
	return &cred, nil
}

// The keyring cannot enumerate entries, so names are indexed in a file.
func (s *Store) indexPath() string {
	return filepath.Join(s.dir, ".index")
}

func (s *Store) readIndex() ([]string, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var index []string
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	sort.Strings(index)
	return index, nil
}

func (s *Store) updateIndex(name string, add bool) error {
	index, err := s.readIndex()
	if err != nil {
		return err
	}
	updated := []string{}
	for _, n := range index {
		if n != name {
			updated = append(updated, n)
		}
	}
	if add {
		updated = append(updated, name)
	}
	sort.Strings(updated)

	data, err := json.Marshal(updated)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, common.DirPermissionSecure); err != nil {
		return err
	}
	return common.WriteFileAtomic(s.indexPath(), data, common.FilePermissionSecure)
}

func isKeyringAvailable() bool {
	switch strings.ToLower(os.Getenv(KeyringEnvVar)) {
	case "false", "0", "no":
		return false
	case "true", "1", "yes":
		return true
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	}
	return false
}

func machineID() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s-%s", hostname, user, runtime.GOOS, runtime.GOARCH)))
	return base64.StdEncoding.EncodeToString(sum[:])
}
