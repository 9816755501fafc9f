package envelope

// Builder constructs Response envelopes using a fluent API.
type Builder struct {
	resp *Response
}

// New creates a new envelope builder.
func New() *Builder {
	return &Builder{
		resp: &Response{
			SchemaVersion: CurrentSchemaVersion,
			Success:       true,
		},
	}
}

// Data sets the operation-specific payload.
func (b *Builder) Data(data interface{}) *Builder {
	b.resp.Data = data
	return b
}

// Message sets the human-readable summary.
func (b *Builder) Message(msg string) *Builder {
	b.resp.Message = msg
	return b
}

// Fail marks the response unsuccessful and records the error string.
func (b *Builder) Fail(errMsg string) *Builder {
	b.resp.Success = false
	b.resp.Error = &errMsg
	return b
}

// Warn appends a warning.
func (b *Builder) Warn(code, message string) *Builder {
	b.resp.AddWarning(code, message)
	return b
}

// Meta sets response metadata.
func (b *Builder) Meta(meta *Meta) *Builder {
	b.resp.Meta = meta
	return b
}

// Duration records the operation duration in the metadata.
func (b *Builder) Duration(ms int64) *Builder {
	if b.resp.Meta == nil {
		b.resp.Meta = &Meta{}
	}
	b.resp.Meta.DurationMs = ms
	return b
}

// Build returns the assembled response.
func (b *Builder) Build() *Response {
	return b.resp
}
