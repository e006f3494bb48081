package searchindex

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/tidwall/jsonc"

	"github.com/Aman-CERP/catindex/internal/document"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

// exactFields are matched as whole terms: identifiers, paths and reader
// and parent arrays.
var exactFields = []string{
	document.FieldDocID,
	document.FieldZone,
	document.FieldKind,
	document.FieldKindCode,
	document.FieldPath,
	document.FieldOwner,
	document.FieldReadersUsers,
	document.FieldReadersGroups,
	document.FieldParentIDs,
	document.FieldParentPaths,
}

var timeFields = []string{
	document.FieldCreated,
	document.FieldModified,
	document.FieldIndexedAt,
}

var numericFields = []string{
	document.FieldItemID,
	document.FieldSize,
}

// DefaultMapping returns the explicit field-type schema for index
// documents.
func DefaultMapping() *mapping.IndexMappingImpl {
	doc := bleve.NewDocumentStaticMapping()

	for _, name := range exactFields {
		fm := bleve.NewKeywordFieldMapping()
		fm.Analyzer = keyword.Name
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}
	for _, name := range timeFields {
		fm := bleve.NewDateTimeFieldMapping()
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}
	for _, name := range numericFields {
		fm := bleve.NewNumericFieldMapping()
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}

	name := bleve.NewTextFieldMapping()
	name.Analyzer = standard.Name
	doc.AddFieldMappingsAt(document.FieldName, name)

	freetext := bleve.NewTextFieldMapping()
	freetext.Analyzer = standard.Name
	freetext.IncludeTermVectors = true
	doc.AddFieldMappingsAt(document.FieldFreeText, freetext)

	// Metadata keys are open ended; the namespaces are nested objects
	// whose leaves are indexed as text.
	meta := bleve.NewDocumentMapping()
	meta.Dynamic = true
	meta.DefaultAnalyzer = standard.Name
	for _, ns := range []string{document.NamespaceCore, document.NamespaceSchema} {
		sub := bleve.NewDocumentMapping()
		sub.Dynamic = true
		sub.DefaultAnalyzer = standard.Name
		meta.AddSubDocumentMapping(ns, sub)
	}
	doc.AddSubDocumentMapping(document.FieldMetadata, meta)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// ParseMapping reads a mapping from JSON with comments.
func ParseMapping(data []byte) (*mapping.IndexMappingImpl, error) {
	var m mapping.IndexMappingImpl
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, engerrors.New(engerrors.ErrCodeMapping, "invalid mapping document", err)
	}
	if err := m.Validate(); err != nil {
		return nil, engerrors.New(engerrors.ErrCodeMapping, "mapping failed validation", err)
	}
	return &m, nil
}

// LoadMapping returns DefaultMapping when path is empty and the parsed
// file otherwise.
func LoadMapping(path string) (*mapping.IndexMappingImpl, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeMapping, fmt.Sprintf("cannot read mapping file %s", path), err)
	}
	m, err := ParseMapping(data)
	if err != nil {
		if ee, ok := engerrors.As(err); ok {
			ee.WithDetail("path", path)
		}
		return nil, err
	}
	return m, nil
}

// MarshalMapping renders m as indented JSON.
func MarshalMapping(m mapping.IndexMapping) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
