package identity

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// legacyIDLength is the number of hex characters kept from the legacy digest.
const legacyIDLength = 12

// LegacyEntity carries the fields the legacy artifact id is derived from.
type LegacyEntity struct {
	Type       string
	Name       string
	File       string
	Parent     string
	Parameters []string
}

// CreateLegacyArtifactID returns the truncated MD5 id older consumers key on.
// It changes whenever any input changes, including a rename, so it must not
// be used as a primary key.
func CreateLegacyArtifactID(e LegacyEntity) string {
	key := strings.Join([]string{
		e.Type,
		e.Name,
		e.File,
		e.Parent,
		strings.Join(e.Parameters, ","),
	}, ":")
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:legacyIDLength]
}

// pathNamespace scopes the name-based UUIDs generated for folder listings.
var pathNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("llmstruct:folder-structure"))

// PathID returns a stable id for a file or directory entry.
// The same path and kind always yield the same id, so folder listings diff
// cleanly between runs.
func PathID(relPath, kind string) string {
	return uuid.NewSHA1(pathNamespace, []byte(kind+":"+relPath)).String()
}
