package misc

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
	"sync"
)

var (
	// Seperator terminates every line written to an event stream.
	Seperator = []byte("\n\n")

	appNameRegex = regexp.MustCompile(`^[a-z0-9-]*$`)
)

// IsValidAppName reports whether name only uses lowercase letters, digits and hyphens.
func IsValidAppName(name string) bool {
	return name != "" && appNameRegex.MatchString(name)
}

// StripTenantPrefix removes the first matching prefix from an app name as reported
// by the GitOps controller, yielding the instance name.
func StripTenantPrefix(appName string, prefixes []string) string {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(appName, prefix) {
			return strings.TrimPrefix(appName, prefix)
		}
	}
	return appName
}

const (
	charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type (
	RandomIdGenerator interface {
		Generate(n int) (string, error)
	}
)

type randomIdGenerator struct {
}

func newRandomIdGenerator() RandomIdGenerator {
	return &randomIdGenerator{}
}

func (p randomIdGenerator) Generate(n int) (string, error) {
	result := make([]byte, n)
	charsetLength := int64(len(charset))

	for i := range result {
		randomByte, err := rand.Int(rand.Reader, big.NewInt(charsetLength))
		if err != nil {
			return "", err
		}
		result[i] = charset[randomByte.Int64()]
	}

	return string(result), nil
}

var (
	DefaultRandomIdGenerator = newRandomIdGenerator()
)

// KeyedMutex hands out one mutex per key. Entries are dropped once nobody holds
// or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
