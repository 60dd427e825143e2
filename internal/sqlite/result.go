package sqlite

import (
	"iter"
	"slices"
)

// ResultSet is the lazy, single-pass sequence of rows produced by Execute.
//
// It exclusively owns the prepared statement. The first step already happened
// when Execute returned, so HaveRows is answerable immediately. Iterators
// borrow the ResultSet and must not be used after Close.
type ResultSet struct {
	cur *cursor
	// pos counts successful steps past the first row; every iterator compares
	// against it to know whether it still reflects the live position.
	pos int64
}

func newResultSet(cur *cursor) *ResultSet {
	rs := &ResultSet{cur: cur}
	cur.step()
	return rs
}

// HaveRows reports whether a row is currently available.
func (rs *ResultSet) HaveRows() bool {
	return rs.cur.state == stateHasRow
}

// Columns returns the column names captured at the first step.
// It is nil for statements that produce no columns.
func (rs *ResultSet) Columns() []string {
	return slices.Clone(rs.cur.cols)
}

// Err returns the step error that terminated iteration, if any.
func (rs *ResultSet) Err() error {
	if rs.cur.err == nil {
		return nil
	}
	return rs.cur.err
}

// Close finalizes the statement. It is safe to call repeatedly and after the
// pass has already ended.
func (rs *ResultSet) Close() {
	rs.cur.finalize()
}

// Begin returns an iterator at the current position. It does not restart the
// pass: rows already consumed by another iterator are gone.
func (rs *ResultSet) Begin() *Iterator {
	it := &Iterator{rs: rs}
	it.sync()
	return it
}

// End returns the exhaustion sentinel.
func (rs *ResultSet) End() *Iterator {
	return &Iterator{end: true, done: true}
}

// All returns a range-over-func view of the remaining rows. A terminal step
// error is yielded once with a nil Row. Breaking out of the loop closes the
// ResultSet.
func (rs *ResultSet) All() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for it := rs.Begin(); !it.Done(); it.Next() {
			if !yield(it.Row(), nil) {
				rs.Close()
				return
			}
		}
		if err := rs.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Rows drains the remaining rows into a slice.
func (rs *ResultSet) Rows() ([]Row, error) {
	var out []Row
	for row, err := range rs.All() {
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}

// advance steps the shared cursor once.
func (rs *ResultSet) advance() {
	if rs.cur.ended() {
		return
	}
	rs.pos++
	rs.cur.step()
}

// Iterator is a forward-only view into a ResultSet.
//
// Its row is decoded when the iterator is created or advanced, so Row is O(1)
// and stays valid after the shared cursor moves. All iterators of one
// ResultSet advance the same engine position.
type Iterator struct {
	rs   *ResultSet
	end  bool
	pos  int64
	row  Row
	done bool
	err  error
}

func (it *Iterator) sync() {
	cur := it.rs.cur
	it.pos = it.rs.pos
	if cur.state == stateHasRow {
		it.row = cur.row
		it.done = false
		return
	}
	it.row = nil
	it.done = true
	it.err = cur.err
}

// Row returns the materialized row, or nil when the iterator is exhausted.
func (it *Iterator) Row() Row {
	return it.row
}

// Position returns the shared step counter this iterator was synced to.
func (it *Iterator) Position() int64 {
	return it.pos
}

// Done reports whether the iterator has reached the end of the pass,
// either by exhaustion or by a step error.
func (it *Iterator) Done() bool {
	return it.done
}

// Err returns the step error that ended the pass, if any.
func (it *Iterator) Err() error {
	if it.err == nil {
		return nil
	}
	return it.err
}

// Next steps the engine once and re-decodes the row. Advancing an exhausted
// iterator is a no-op; it never re-executes the statement.
func (it *Iterator) Next() {
	if it.end || it.done {
		return
	}
	it.rs.advance()
	it.sync()
}

// Equal compares two iterators. Any iterator equals the End sentinel iff it is
// done. Two live iterators are equal iff they borrow the same ResultSet and
// were synced to the same position.
func (it *Iterator) Equal(o *Iterator) bool {
	if it.end || o.end {
		return it.done && o.done
	}
	return it.rs == o.rs && it.pos == o.pos && it.done == o.done
}
