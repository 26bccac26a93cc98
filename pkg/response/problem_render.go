package response

import (
	"encoding/json"
	"net/http"
)

// problemRender keeps the problem+json content type instead of gin's application/json default.
type problemRender struct {
	problem ProblemDetails
}

func (r problemRender) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	return json.NewEncoder(w).Encode(r.problem)
}

func (r problemRender) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if val := header["Content-Type"]; len(val) == 0 {
		header["Content-Type"] = []string{ProblemContentType}
	}
}
