package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

func TestWriteResponse(t *testing.T) {
	v := 2.5
	data := payload{Name: "mw-1", Value: &v}

	tests := []struct {
		name        string
		url         string
		accept      string
		contentType string
	}{
		{name: "default json", url: "/runs", contentType: "application/json"},
		{name: "query msgpack", url: "/runs?format=msgpack", contentType: "application/x-msgpack"},
		{name: "accept msgpack", url: "/runs", accept: "application/x-msgpack", contentType: "application/x-msgpack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()

			if err := NewFormatter().WriteResponse(rec, req, http.StatusCreated, data); err != nil {
				t.Fatalf("WriteResponse returned error: %v", err)
			}
			if rec.Code != http.StatusCreated {
				t.Errorf("status %d, expected %d", rec.Code, http.StatusCreated)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Fatalf("content type %q, expected %q", got, tt.contentType)
			}

			var got payload
			var err error
			if tt.contentType == "application/json" {
				err = json.Unmarshal(rec.Body.Bytes(), &got)
			} else {
				dec := msgpack.NewDecoder(rec.Body)
				dec.SetCustomStructTag("json")
				err = dec.Decode(&got)
			}
			if err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if got.Name != "mw-1" || got.Value == nil || *got.Value != 2.5 {
				t.Errorf("unexpected body: %+v", got)
			}
		})
	}
}
