package vertex

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/vertexai/genai"

	"github.com/joseph-ayodele/ocr-batch/internal/ocr"
)

type fakeModel struct {
	reply string
	err   error
	parts []genai.Part
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(f.reply)}},
		}},
	}, nil
}

func pngFile(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "file1.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestEngine_Recognize(t *testing.T) {
	cases := []struct {
		reply  string
		status ocr.Status
		text   string
	}{
		{reply: "```text\nInvoice 42\n```", status: ocr.StatusText, text: "Invoice 42"},
		{reply: "NO_TEXT", status: ocr.StatusNoText},
		{reply: "  ", status: ocr.StatusNoText},
	}
	path := pngFile(t)
	for _, tc := range cases {
		m := &fakeModel{reply: tc.reply}
		e := &Engine{model: m, name: "test-model", logger: discardLogger()}
		res, err := e.Recognize(context.Background(), path)
		if err != nil {
			t.Fatalf("recognize: %v", err)
		}
		if res.Status != tc.status || res.Text != tc.text {
			t.Fatalf("reply %q: got %s %q", tc.reply, res.Status, res.Text)
		}
		blob, ok := m.parts[0].(genai.Blob)
		if !ok || blob.MIMEType != "image/png" {
			t.Fatalf("first part should be the png blob, got %#v", m.parts[0])
		}
	}
}

func TestEngine_Errors(t *testing.T) {
	e := &Engine{model: &fakeModel{err: errors.New("quota")}, logger: discardLogger()}
	if _, err := e.Recognize(context.Background(), pngFile(t)); err == nil {
		t.Fatalf("expected model error")
	}

	notImage := filepath.Join(t.TempDir(), "x.png")
	_ = os.WriteFile(notImage, []byte("plain text"), 0o600)
	if _, err := e.Recognize(context.Background(), notImage); err == nil {
		t.Fatalf("expected content type error")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
