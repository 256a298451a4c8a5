package keyring

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
)

// Store is the slice of storage.Backend the keyring needs.
type Store interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
}

// Keyring holds the repository signing keys trusted on this machine. Keys
// imported during a session are persisted by Save.
type Keyring struct {
	store    Store
	path     string
	entities openpgp.EntityList
	dirty    bool
}

// Open loads the armored keyring at path; a missing file yields an empty
// keyring.
func Open(ctx context.Context, store Store, path string) (*Keyring, error) {
	k := &Keyring{store: store, path: path}
	data, err := store.ReadFile(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		return k, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keyring %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return k, nil
	}
	k.entities, err = openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse keyring %s: %w", path, err)
	}
	return k, nil
}

// Fingerprint formats an entity's primary key fingerprint.
func Fingerprint(e *openpgp.Entity) string {
	return strings.ToUpper(hex.EncodeToString(e.PrimaryKey.Fingerprint[:]))
}

// Trusted lists fingerprints of all keys in the keyring.
func (k *Keyring) Trusted() []string {
	out := make([]string, 0, len(k.entities))
	for _, e := range k.entities {
		out = append(out, Fingerprint(e))
	}
	return out
}

func (k *Keyring) has(fp string) bool {
	for _, e := range k.entities {
		if Fingerprint(e) == fp {
			return true
		}
	}
	return false
}

// Import adds the keys in an armored block (for example repomd.xml.key) and
// returns the fingerprints that were new.
func (k *Keyring) Import(source string, armored []byte) ([]string, error) {
	list, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armored))
	if err != nil {
		return nil, fmt.Errorf("import key from %s: %w", source, err)
	}
	var added []string
	for _, e := range list {
		fp := Fingerprint(e)
		if k.has(fp) {
			continue
		}
		k.entities = append(k.entities, e)
		added = append(added, fp)
	}
	if len(added) > 0 {
		k.dirty = true
	}
	return added, nil
}

// Save writes the keyring when keys were imported since the last save.
func (k *Keyring) Save(ctx context.Context) error {
	if !k.dirty {
		return nil
	}
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return err
	}
	for _, e := range k.entities {
		if err := e.Serialize(w); err != nil {
			return fmt.Errorf("serialize key %s: %w", Fingerprint(e), err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := k.store.WriteFile(ctx, k.path, buf.Bytes()); err != nil {
		return fmt.Errorf("write keyring %s: %w", k.path, err)
	}
	k.dirty = false
	return nil
}
