package sqlbox

import "github.com/sqlboxdb/sqlbox/internal/rows"

// resultCache holds one statement's decoded row-record batch client-side
// (spec §3, "Result cache"): the client owns it exclusively, serving
// cursor advances out of memory until the batch is exhausted, at which
// point a fresh STEP request refills it. REBIND and a fresh statement
// both start from a zero-value cache.
type resultCache struct {
	records []rows.Record
	pos     int
}

func (c *resultCache) reset() { *c = resultCache{} }

func (c *resultCache) exhausted() bool { return c.pos >= len(c.records) }

func (c *resultCache) fill(records []rows.Record) {
	c.records = records
	c.pos = 0
}

func (c *resultCache) next() (rows.Record, bool) {
	if c.exhausted() {
		return rows.Record{}, false
	}
	r := c.records[c.pos]
	c.pos++
	return r, true
}
