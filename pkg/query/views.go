package query

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/sqltoken"
)

const viewCacheSize = 4096

// ViewCache remembers which identifiers are views. It is keyed by fully
// qualified identifier and belongs to one Dispatcher, so entries are
// implicitly scoped to its connection.
type ViewCache struct {
	lru *expirable.LRU[string, bool]
}

// NewViewCache creates a cache whose entries expire after ttl.
// A ttl of zero keeps entries until they are invalidated.
func NewViewCache(ttl time.Duration) *ViewCache {
	return &ViewCache{lru: expirable.NewLRU[string, bool](viewCacheSize, nil, ttl)}
}

// Get returns the cached answer for name.
func (c *ViewCache) Get(name string) (isView, ok bool) {
	return c.lru.Get(name)
}

// Put records whether name is a view.
func (c *ViewCache) Put(name string, isView bool) {
	c.lru.Add(name, isView)
}

// Invalidate drops the entries for names.
func (c *ViewCache) Invalidate(names ...string) {
	for _, name := range names {
		c.lru.Remove(name)
	}
}

// Purge drops every entry.
func (c *ViewCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *ViewCache) Len() int {
	return c.lru.Len()
}

// isView lists the tables of name's database and reports whether name is
// listed with the view kind. A bare name is looked up in the session's
// current database.
func isView(ctx context.Context, exec connection.Executor, name sqltoken.Name) (bool, error) {
	show := "SHOW TABLES"
	if name.Database != "" {
		show += " FROM " + sqltoken.QuoteIdent(name.Database)
	}
	res, err := exec.Query(ctx, show)
	if err != nil {
		return false, err
	}
	for _, row := range res.Rows {
		if len(row) <= config.ShowTablesKindIndex {
			continue
		}
		if cellString(row[config.ShowTablesNameIndex]) == name.Table &&
			cellString(row[config.ShowTablesKindIndex]) == config.ViewKind {
			return true, nil
		}
	}
	return false, nil
}

func cellString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
