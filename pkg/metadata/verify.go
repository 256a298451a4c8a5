package metadata

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/e2llm/repoconf/pkg/storage"
)

const (
	RepoMDPath    = "repodata/repomd.xml"
	RepoMDKeyPath = "repodata/repomd.xml.key"
)

// LoadRepoMD reads and unmarshals repodata/repomd.xml from b.
func LoadRepoMD(ctx context.Context, b storage.Backend) (RepoMD, error) {
	data, err := b.ReadFile(ctx, RepoMDPath)
	if err != nil {
		return RepoMD{}, err
	}
	return ParseRepoMD(data)
}

// ReadAndVerify downloads the file behind d, checks the compressed checksum
// and, when recorded, the open checksum of the decompressed payload.
// It returns the decompressed payload.
func ReadAndVerify(ctx context.Context, b storage.Backend, d RepoData) ([]byte, error) {
	if d.Location.Href == "" {
		return nil, errors.New("missing location href")
	}
	if !SupportedChecksum(d.Checksum.Type) {
		return nil, fmt.Errorf("unsupported checksum type %q", d.Checksum.Type)
	}
	compressed, err := b.ReadFile(ctx, d.Location.Href)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.Location.Href, err)
	}
	sum, err := ComputeChecksum(compressed, d.Checksum.Type)
	if err != nil {
		return nil, err
	}
	if sum != strings.TrimSpace(d.Checksum.Value) {
		return nil, fmt.Errorf("checksum mismatch for %s: expected %s got %s", d.Type, d.Checksum.Value, sum)
	}

	payload := compressed
	if strings.HasSuffix(d.Location.Href, ".gz") {
		if payload, err = gunzip(compressed); err != nil {
			return nil, fmt.Errorf("decompress %s: %w", d.Location.Href, err)
		}
	}
	if d.OpenChecksum != nil && d.OpenChecksum.Type != "" {
		openSum, err := ComputeChecksum(payload, d.OpenChecksum.Type)
		if err != nil {
			return nil, err
		}
		if openSum != strings.TrimSpace(d.OpenChecksum.Value) {
			return nil, fmt.Errorf("open-checksum mismatch for %s: expected %s got %s", d.Type, d.OpenChecksum.Value, openSum)
		}
	}
	return payload, nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ComputeChecksum(data []byte, alg string) (string, error) {
	switch strings.ToLower(alg) {
	case "sha256":
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case "sha512":
		sum := sha512.Sum512(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", alg)
	}
}

// SupportedChecksum reports whether the algorithm is one of the allowed types.
func SupportedChecksum(alg string) bool {
	switch strings.ToLower(alg) {
	case "sha256", "sha512":
		return true
	default:
		return false
	}
}
