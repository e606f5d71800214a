package server

// noopFlusher is used when the underlying ResponseWriter does not
// implement http.Flusher (e.g. in tests using httptest.ResponseRecorder
// without a flush-aware wrapper).
type noopFlusher struct{}

func (noopFlusher) Flush() {}
