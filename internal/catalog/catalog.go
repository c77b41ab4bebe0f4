// Package catalog provides a column-type lookup loaded from a YAML
// document. The translator consults it for the numeric-encoded date
// special case; it is never used to validate SQL semantics.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TypeLookup resolves a (table, column) pair to its declared storage type.
type TypeLookup interface {
	// ColumnType returns the storage type for a column in a table,
	// and false if the catalog has no entry for it.
	ColumnType(table, column string) (string, bool)
}

// Catalog is a TypeLookup backed by an in-memory table map.
// Lookups are case-insensitive, matching the legacy tool's behavior.
type Catalog struct {
	// tables maps lowercased table name -> lowercased column name -> type
	tables map[string]map[string]string
}

// catalogFile mirrors the YAML document shape:
//
//	tables:
//	  SRC.CUSTOMER:
//	    DATE_STATUT: NUMBER(8)
//	    NAME: VARCHAR2(100)
type catalogFile struct {
	Tables map[string]map[string]string `yaml:"tables"`
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{tables: make(map[string]map[string]string)}
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML content.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid catalog yaml: %w", err)
	}

	c := New()
	for table, cols := range doc.Tables {
		for col, typ := range cols {
			c.Add(table, col, typ)
		}
	}
	return c, nil
}

// Add registers a column type.
func (c *Catalog) Add(table, column, storageType string) {
	key := strings.ToLower(table)
	if c.tables[key] == nil {
		c.tables[key] = make(map[string]string)
	}
	c.tables[key][strings.ToLower(column)] = storageType
}

// ColumnType implements TypeLookup.
// Qualified table names fall back to their unqualified form, since SQL
// text frequently drops the schema prefix the catalog was built with.
func (c *Catalog) ColumnType(table, column string) (string, bool) {
	cols, ok := c.tables[strings.ToLower(table)]
	if !ok {
		// Try matching by unqualified table name
		if idx := strings.LastIndex(table, "."); idx >= 0 {
			cols, ok = c.tables[strings.ToLower(table[idx+1:])]
		}
		if !ok {
			for name, candidate := range c.tables {
				if tail := name[strings.LastIndex(name, ".")+1:]; tail == strings.ToLower(table) {
					cols = candidate
					ok = true
					break
				}
			}
		}
	}
	if !ok {
		return "", false
	}
	typ, ok := cols[strings.ToLower(column)]
	return typ, ok
}

// ColumnTypeAny searches every table for a column, returning its type if
// the column resolves to exactly one storage type across the catalog.
// Used when SQL references a column without a resolvable table.
func (c *Catalog) ColumnTypeAny(column string) (string, bool) {
	var found string
	var count int
	col := strings.ToLower(column)
	for _, cols := range c.tables {
		if typ, ok := cols[col]; ok {
			if count > 0 && typ != found {
				return "", false // ambiguous across tables
			}
			found = typ
			count++
		}
	}
	return found, count > 0
}
