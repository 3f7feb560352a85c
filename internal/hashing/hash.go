package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kpblcaoo/llmstruct/internal/model"
)

// HashContent returns the SHA-256 hex digest of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// HashFile returns the SHA-256 hex digest of a file's raw bytes.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashSource hashes normalized source, so edits that only touch whitespace or
// comments produce the same digest.
func HashSource(source string, lang model.Language) string {
	return HashContent(NormalizeSource(source, lang))
}

// EntityFingerprint holds the parts of an entity that contribute to its hash.
type EntityFingerprint struct {
	Type       string
	Name       string
	Content    string
	Language   model.Language
	Parameters []string
	Returns    []string
}

// HashEntity hashes an entity's identity together with its normalized body.
// Renaming a parameter changes the digest even when the body is unchanged.
func HashEntity(fp EntityFingerprint) string {
	parts := []string{
		"type=" + fp.Type,
		"name=" + fp.Name,
		"params=" + strings.Join(fp.Parameters, ","),
		"returns=" + strings.Join(fp.Returns, ","),
		"content=" + NormalizeSource(fp.Content, fp.Language),
	}
	return HashContent(strings.Join(parts, "\x00"))
}
