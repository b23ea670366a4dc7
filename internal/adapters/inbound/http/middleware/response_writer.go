package middleware

import "net/http"

// ResponseRecorder passes writes through while noting the status code and
// the number of body bytes.
type ResponseRecorder struct {
	http.ResponseWriter
	status int
	size   int64
}

// Record wraps w once. Nested middlewares share the same recorder.
func Record(w http.ResponseWriter) *ResponseRecorder {
	if rec, ok := w.(*ResponseRecorder); ok {
		return rec
	}

	return &ResponseRecorder{ResponseWriter: w}
}

func (r *ResponseRecorder) WriteHeader(status int) {
	if r.status != 0 {
		return
	}

	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *ResponseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.WriteHeader(http.StatusOK)
	}

	n, err := r.ResponseWriter.Write(b)
	r.size += int64(n)

	return n, err
}

// Status is 200 when the handler never wrote a header.
func (r *ResponseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}

	return r.status
}

func (r *ResponseRecorder) Size() int64 { return r.size }

func (r *ResponseRecorder) Flush() {
	_ = http.NewResponseController(r.ResponseWriter).Flush()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *ResponseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
