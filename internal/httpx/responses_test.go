package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONSuccessWithRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-1"))
	w := httptest.NewRecorder()

	JSONSuccessWithRequest(req, w, map[string]string{"hello": "world"}, map[string]any{"total": 3})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}

	var resp SuccessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success=true")
	}
	meta := resp.Meta.(map[string]any)
	if meta["request_id"] != "req-1" {
		t.Errorf("Expected request_id in meta, got %v", meta)
	}
	if meta["total"] != float64(3) {
		t.Errorf("Expected custom meta to be merged, got %v", meta)
	}
}

func TestJSONErrorWithRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	JSONErrorWithRequest(req, w, http.StatusConflict, "ALREADY_EXISTS", "book already exists", []ErrorDetail{
		{Field: "isbn", Message: "already in use"},
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if resp.Success {
		t.Error("Expected success=false")
	}
	if resp.Error.Code != "ALREADY_EXISTS" {
		t.Errorf("Expected error code, got %s", resp.Error.Code)
	}
	if len(resp.Error.Details) != 1 || resp.Error.Details[0].Field != "isbn" {
		t.Errorf("Expected isbn detail, got %v", resp.Error.Details)
	}
}

func TestJSONSuccessNoContent(t *testing.T) {
	w := httptest.NewRecorder()

	JSONSuccessNoContent(w)

	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %s", w.Body.String())
	}
}
