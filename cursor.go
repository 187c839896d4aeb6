package threadstream

// Cursor tracks incremental read progress over a shared Engine without
// consuming from its buffer. Independent cursors over the same engine keep
// independent offsets.
//
// A direct ReadUntil or ConsumeBuffer on the engine shrinks the buffer
// underneath every cursor; ReadNew detects that and clamps the offset to
// the new buffer length instead of returning stale or invalid data.
type Cursor struct {
	engine *Engine
	offset int
}

// NewCursor returns a cursor positioned at the current end of the read
// buffer's consumed region, i.e. the next ReadNew delivers everything
// currently buffered.
func (e *Engine) NewCursor() *Cursor {
	return &Cursor{engine: e}
}

// ReadNew returns a copy of the read buffer content that arrived since the
// previous ReadNew call and advances the cursor past it. The engine's
// buffer is not modified. Returns an empty slice when nothing new arrived.
func (c *Cursor) ReadNew() []byte {
	e := c.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if c.offset > len(e.readBuf) {
		// Buffer shrank under us via a drain or marker read.
		c.offset = len(e.readBuf)
	}
	out := append([]byte(nil), e.readBuf[c.offset:]...)
	c.offset = len(e.readBuf)
	return out
}
