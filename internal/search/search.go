// Package search provides full-text search over the entities of a generated
// modular directory, backed by an in-memory bleve index.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kpblcaoo/llmstruct/internal/assembler"
)

// Document kinds.
const (
	KindModule   = "module"
	KindFunction = "function"
	KindClass    = "class"
)

const (
	defaultLimit = 15
	maxLimit     = 100
	batchSize    = 1000
)

// ErrEmptyQuery is returned for blank query strings.
var ErrEmptyQuery = errors.New("empty query")

// storedFields are returned with every hit.
var storedFields = []string{"uid", "kind", "name", "module", "file_path", "language", "doc", "signature", "tags"}

// Document is one searchable entity.
type Document struct {
	UID       string   `json:"uid"`
	Kind      string   `json:"kind"`
	Name      string   `json:"name"`
	Module    string   `json:"module"`
	FilePath  string   `json:"file_path"`
	Language  string   `json:"language"`
	Doc       string   `json:"doc,omitempty"`
	Signature string   `json:"signature,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Result is a single search hit.
type Result struct {
	Document   Document `json:"document"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
}

// Options narrows a search. The zero value searches everything.
type Options struct {
	Limit    int    // 1-100, default 15
	Kind     string // module, function or class
	Language string
	Tag      string
}

// Index is a full-text index over Documents. Safe for concurrent use.
type Index struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewIndex creates an in-memory index holding docs.
func NewIndex(ctx context.Context, docs []Document) (*Index, error) {
	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	if err := indexDocuments(ctx, index, docs); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to index documents: %w", err)
	}
	return &Index{index: index}, nil
}

// BuildFromReader indexes every module, function and class of the
// directory behind r.
func BuildFromReader(ctx context.Context, r *assembler.Reader) (*Index, error) {
	var docs []Document
	for _, uid := range r.UIDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mf, err := r.LoadModule(uid)
		if err != nil {
			return nil, fmt.Errorf("failed to load module %s: %w", uid, err)
		}
		docs = append(docs, Documents(mf)...)
	}
	return NewIndex(ctx, docs)
}

// BuildFromDir opens the modular directory at dir and indexes it.
func BuildFromDir(ctx context.Context, dir string) (*Index, error) {
	r, err := assembler.OpenReader(dir)
	if err != nil {
		return nil, err
	}
	return BuildFromReader(ctx, r)
}

// Documents converts a module file into its searchable documents: the
// module itself followed by its functions and classes.
func Documents(mf *assembler.ModuleFile) []Document {
	info := mf.ModuleInfo
	lang := string(info.Language)

	docs := make([]Document, 0, 1+len(mf.Functions)+len(mf.Classes))
	docs = append(docs, Document{
		UID:      info.UID,
		Kind:     KindModule,
		Name:     info.UID,
		Module:   info.UID,
		FilePath: info.FilePath,
		Language: lang,
		Doc:      strings.TrimSpace(info.Doc + "\n" + info.Summary),
		Tags:     info.Tags,
	})
	for _, fn := range mf.Functions {
		docs = append(docs, Document{
			UID:       fn.UID,
			Kind:      KindFunction,
			Name:      fn.QualifiedName(),
			Module:    info.UID,
			FilePath:  info.FilePath,
			Language:  lang,
			Doc:       fn.Doc,
			Signature: fn.Signature,
			Tags:      fn.Tags,
		})
	}
	for _, cls := range mf.Classes {
		docs = append(docs, Document{
			UID:      cls.UID,
			Kind:     KindClass,
			Name:     cls.Name,
			Module:   info.UID,
			FilePath: info.FilePath,
			Language: lang,
			Doc:      cls.Doc,
			Tags:     cls.Tags,
		})
	}
	return docs
}

// buildMapping creates the index mapping for entity documents.
func buildMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	text := func(analyzer string, index bool) *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzer
		fm.Store = true
		fm.Index = index
		return fm
	}

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("uid", text("keyword", true))
	docMapping.AddFieldMappingsAt("kind", text("keyword", true))
	docMapping.AddFieldMappingsAt("language", text("keyword", true))
	docMapping.AddFieldMappingsAt("tags", text("keyword", true))
	docMapping.AddFieldMappingsAt("module", text("keyword", true))
	docMapping.AddFieldMappingsAt("name", text("standard", true))
	docMapping.AddFieldMappingsAt("file_path", text("standard", true))
	docMapping.AddFieldMappingsAt("signature", text("standard", true))

	docText := text("standard", true)
	docText.IncludeTermVectors = true // phrase search and highlighting
	docMapping.AddFieldMappingsAt("doc", docText)

	// Split identifiers so "parse" finds ParseFile and parse_file
	terms := text("standard", true)
	terms.Store = false
	docMapping.AddFieldMappingsAt("name_terms", terms)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// indexDocuments adds docs to the bleve index in batches.
func indexDocuments(ctx context.Context, index bleve.Index, docs []Document) error {
	batch := index.NewBatch()
	for i, doc := range docs {
		if i%batchSize == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if err := batch.Index(doc.UID, toFields(doc)); err != nil {
			return fmt.Errorf("failed to add %s to batch: %w", doc.UID, err)
		}

		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("failed to execute batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("failed to execute final batch: %w", err)
		}
	}
	return nil
}

func toFields(doc Document) map[string]interface{} {
	return map[string]interface{}{
		"uid":        doc.UID,
		"kind":       doc.Kind,
		"name":       doc.Name,
		"name_terms": strings.Join(splitIdentifier(doc.Name), " "),
		"module":     doc.Module,
		"file_path":  doc.FilePath,
		"language":   doc.Language,
		"doc":        doc.Doc,
		"signature":  doc.Signature,
		"tags":       doc.Tags,
	}
}

// splitIdentifier breaks camelCase, snake_case and dotted names into words.
func splitIdentifier(name string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && len(cur) > 0:
			prevLower := !unicode.IsUpper(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// Search executes a query using bleve query string syntax. Field scoping
// (name:parse, tags:io, kind:function), boolean operators, phrases,
// wildcards and fuzzy terms are supported.
func (i *Index) Search(ctx context.Context, queryStr string, opts *Options) ([]Result, error) {
	if strings.TrimSpace(queryStr) == "" {
		return nil, ErrEmptyQuery
	}
	if opts == nil {
		opts = &Options{}
	}

	limit := opts.Limit
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	queries := []query.Query{bleve.NewQueryStringQuery(queryStr)}
	for field, value := range map[string]string{"kind": opts.Kind, "language": opts.Language, "tags": opts.Tag} {
		if value == "" {
			continue
		}
		q := bleve.NewTermQuery(value)
		q.SetField(field)
		queries = append(queries, q)
	}

	var finalQuery query.Query = queries[0]
	if len(queries) > 1 {
		finalQuery = bleve.NewConjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequestOptions(finalQuery, limit, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.Fields = []string{"doc"}
	req.Fields = storedFields

	i.mu.RLock()
	defer i.mu.RUnlock()

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, Result{
			Document:   fromFields(hit.Fields),
			Score:      hit.Score,
			Highlights: extractHighlights(hit.Fragments),
		})
	}
	return results, nil
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Close releases resources held by the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.index != nil {
		return i.index.Close()
	}
	return nil
}

func fromFields(fields map[string]interface{}) Document {
	str := func(key string) string {
		s, _ := fields[key].(string)
		return s
	}
	doc := Document{
		UID:       str("uid"),
		Kind:      str("kind"),
		Name:      str("name"),
		Module:    str("module"),
		FilePath:  str("file_path"),
		Language:  str("language"),
		Doc:       str("doc"),
		Signature: str("signature"),
	}

	// A single-element array comes back as a plain string
	switch tags := fields["tags"].(type) {
	case string:
		doc.Tags = []string{tags}
	case []interface{}:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				doc.Tags = append(doc.Tags, s)
			}
		}
	}
	return doc
}

// extractHighlights limits highlights to 3 per result.
func extractHighlights(fragments map[string][]string) []string {
	var highlights []string
	for _, snippets := range fragments {
		highlights = append(highlights, snippets...)
	}
	if len(highlights) > 3 {
		highlights = highlights[:3]
	}
	return highlights
}
