package pgcopy

// Field is one column value of the current row: either SQL NULL or a view
// of the decoded bytes.
//
// A Field borrows from the stream's row buffer. It stays valid only until
// the next ReadRow or Close on the stream that produced it; after that the
// buffer is reused and the view's contents are undefined. Callers that need
// a value beyond the current row must copy it (String always copies).
type Field struct {
	data []byte
	null bool
}

// IsNull reports whether the field is SQL NULL (sent on the wire as \N).
func (f Field) IsNull() bool {
	return f.null
}

// Bytes returns the decoded field bytes, or nil for a NULL field. The slice
// aliases the stream's row buffer; see the type comment for its lifetime.
func (f Field) Bytes() []byte {
	if f.null {
		return nil
	}
	return f.data
}

// String returns the field as a freshly copied string, or "" for NULL. Use
// IsNull to tell an empty string from NULL.
func (f Field) String() string {
	return string(f.data)
}
