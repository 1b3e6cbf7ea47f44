package core

// Callback is the progress and cancellation collaborator for a compress
// call. Methods may be invoked from any worker goroutine concurrently;
// implementations must be internally synchronized.
type Callback interface {
	// OnItemStart is invoked when an item's bytes begin streaming.
	OnItemStart(index int, name string)

	// OnItemProgress reports intermediate byte counts for an item. It is
	// best-effort and may be invoked zero times for a short item.
	OnItemProgress(index int, inBytes, outBytes uint64)

	// OnItemComplete is invoked exactly once per item at terminal
	// completion. err is nil on success.
	OnItemComplete(index int, err error, inBytes, outBytes uint64)

	// OnError reports a failure attributed to an item, or to the call as
	// a whole (index 0).
	OnError(index int, err error, message string)

	// ShouldCancel is polled before each job starts. Returning true
	// cancels cooperatively at job granularity; an in-progress codec run
	// is not interrupted.
	ShouldCancel() bool

	// GetNextItems lets the callback append extra items after the
	// initial set. It is drained exactly once per call, between job
	// construction and the first worker assignment. cursor is the count
	// of items already queued; at most max items are accepted.
	GetNextItems(cursor, max int) ([]InputItem, error)
}

// CallbackFuncs adapts optional functions to the Callback interface.
// Nil fields are no-ops; a nil Cancel never cancels.
type CallbackFuncs struct {
	ItemStart    func(index int, name string)
	ItemProgress func(index int, inBytes, outBytes uint64)
	ItemComplete func(index int, err error, inBytes, outBytes uint64)
	Error        func(index int, err error, message string)
	Cancel       func() bool
	NextItems    func(cursor, max int) ([]InputItem, error)
}

// Interface compliance.
var _ Callback = (*CallbackFuncs)(nil)

func (c *CallbackFuncs) OnItemStart(index int, name string) {
	if c.ItemStart != nil {
		c.ItemStart(index, name)
	}
}

func (c *CallbackFuncs) OnItemProgress(index int, inBytes, outBytes uint64) {
	if c.ItemProgress != nil {
		c.ItemProgress(index, inBytes, outBytes)
	}
}

func (c *CallbackFuncs) OnItemComplete(index int, err error, inBytes, outBytes uint64) {
	if c.ItemComplete != nil {
		c.ItemComplete(index, err, inBytes, outBytes)
	}
}

func (c *CallbackFuncs) OnError(index int, err error, message string) {
	if c.Error != nil {
		c.Error(index, err, message)
	}
}

func (c *CallbackFuncs) ShouldCancel() bool {
	return c.Cancel != nil && c.Cancel()
}

func (c *CallbackFuncs) GetNextItems(cursor, max int) ([]InputItem, error) {
	if c.NextItems == nil {
		return nil, nil
	}
	return c.NextItems(cursor, max)
}

// callbacks wraps an optional Callback with nil-safe dispatch.
type callbacks struct {
	cb Callback
}

func (c callbacks) OnItemStart(index int, name string) {
	if c.cb != nil {
		c.cb.OnItemStart(index, name)
	}
}

func (c callbacks) OnItemProgress(index int, inBytes, outBytes uint64) {
	if c.cb != nil {
		c.cb.OnItemProgress(index, inBytes, outBytes)
	}
}

func (c callbacks) OnItemComplete(index int, err error, inBytes, outBytes uint64) {
	if c.cb != nil {
		c.cb.OnItemComplete(index, err, inBytes, outBytes)
	}
}

func (c callbacks) OnError(index int, err error, message string) {
	if c.cb != nil {
		c.cb.OnError(index, err, message)
	}
}

func (c callbacks) ShouldCancel() bool {
	return c.cb != nil && c.cb.ShouldCancel()
}

func (c callbacks) GetNextItems(cursor, max int) ([]InputItem, error) {
	if c.cb == nil {
		return nil, nil
	}
	return c.cb.GetNextItems(cursor, max)
}
