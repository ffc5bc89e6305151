package generation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSDXLWorkflowDefaults(t *testing.T) {
	workflow := sdxlWorkflow(Request{Prompt: "a quiet harbor at dawn"})

	latent := workflow["5"].(map[string]interface{})["inputs"].(map[string]interface{})
	if latent["width"] != 1024 || latent["height"] != 1024 {
		t.Fatalf("default latent size = %vx%v, want 1024x1024", latent["width"], latent["height"])
	}

	sampler := workflow["3"].(map[string]interface{})["inputs"].(map[string]interface{})
	if sampler["steps"] != 35 {
		t.Fatalf("steps = %v, want 35", sampler["steps"])
	}
	if sampler["cfg"] != 7.5 {
		t.Fatalf("default cfg = %v, want 7.5", sampler["cfg"])
	}
	if sampler["sampler_name"] != "dpmpp_2m_sde" || sampler["scheduler"] != "karras" {
		t.Fatalf("sampler = %v/%v", sampler["sampler_name"], sampler["scheduler"])
	}

	positive := workflow["6"].(map[string]interface{})["inputs"].(map[string]interface{})
	if positive["text"] != "a quiet harbor at dawn" {
		t.Fatalf("prompt not wired: %v", positive["text"])
	}

	negative := workflow["7"].(map[string]interface{})["inputs"].(map[string]interface{})
	if negative["text"] != defaultNegativePrompt {
		t.Fatalf("negative prompt not wired")
	}
}

func TestSDXLWorkflowOverrides(t *testing.T) {
	seed := int64(42)
	workflow := sdxlWorkflow(Request{
		Prompt:        "test",
		Width:         768,
		Height:        1344,
		Seed:          &seed,
		GuidanceScale: 5.0,
	})

	latent := workflow["5"].(map[string]interface{})["inputs"].(map[string]interface{})
	if latent["width"] != 768 || latent["height"] != 1344 {
		t.Fatalf("latent size = %vx%v", latent["width"], latent["height"])
	}

	sampler := workflow["3"].(map[string]interface{})["inputs"].(map[string]interface{})
	if sampler["seed"] != seed {
		t.Fatalf("seed = %v, want %d", sampler["seed"], seed)
	}
	if sampler["cfg"] != 5.0 {
		t.Fatalf("cfg = %v, want 5", sampler["cfg"])
	}
}

func TestHistoryReportsEngineStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>engine error page</html>"))
	}))
	defer srv.Close()

	c := &ComfyUIClient{serverURL: srv.URL, httpClient: srv.Client()}

	// A non-200 answer must come back as a status-coded error, not as a
	// decode failure on the error page body.
	_, err := c.History(context.Background(), "abc123")
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("error does not carry the status code: %v", err)
	}
}

func TestHistoryPendingPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := &ComfyUIClient{serverURL: srv.URL, httpClient: srv.Client()}

	h, err := c.History(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("pending prompt should not error: %v", err)
	}
	if h != nil {
		t.Fatalf("pending prompt should return nil history, got %+v", h)
	}
}

func TestComfyImageURL(t *testing.T) {
	c := &ComfyUIClient{serverURL: "http://127.0.0.1:8188"}

	url := c.imageURL("kampai_00001_.png", "", "output")
	if !strings.HasPrefix(url, "http://127.0.0.1:8188/view?") {
		t.Fatalf("unexpected base: %s", url)
	}
	if !strings.Contains(url, "filename=kampai_00001_.png") {
		t.Fatalf("filename missing: %s", url)
	}
	if !strings.Contains(url, "type=output") {
		t.Fatalf("type missing: %s", url)
	}
}
