package pagination

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Keyset is a position in a scan ordered by (column, id). Batch jobs use it
// to walk every candidate even when most rows of a page are skipped.
type Keyset struct {
	At time.Time
	ID snowflake.ID
}

// After restricts stmt to rows strictly past k. A nil k starts from the top.
func (k *Keyset) After(stmt *gorm.DB, column string) *gorm.DB {
	if k == nil {
		return stmt
	}
	return stmt.Where(fmt.Sprintf("(%s > ? OR (%s = ? AND id > ?))", column, column), k.At, k.At, k.ID)
}
