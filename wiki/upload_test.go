package wiki

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"testing"
)

// chunkRecorder answers stashed chunk uploads and the final commit the way
// MediaWiki does.
type chunkRecorder struct {
	mu      sync.Mutex
	offsets []int64
	sizes   []int
	data    bytes.Buffer
	commit  map[string]string
}

func (c *chunkRecorder) handle(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("action") != "upload" {
			http.Error(w, "unexpected", http.StatusBadRequest)
			return
		}

		file, _, err := r.FormFile("chunk")
		if err != nil {
			// No chunk part: this is the commit.
			c.mu.Lock()
			c.commit = map[string]string{
				"filekey": r.FormValue("filekey"),
				"comment": r.FormValue("comment"),
				"text":    r.FormValue("text"),
				"token":   r.FormValue("token"),
			}
			c.mu.Unlock()
			writeJSON(w, map[string]interface{}{
				"upload": map[string]interface{}{
					"result":   "Success",
					"filename": r.FormValue("filename"),
					"imageinfo": map[string]interface{}{
						"url":  "https://wiki.example.com/images/" + r.FormValue("filename"),
						"size": c.data.Len(),
					},
				},
			})
			return
		}
		defer file.Close()
		chunk, _ := io.ReadAll(file)

		offset, _ := strconv.ParseInt(r.FormValue("offset"), 10, 64)
		total, _ := strconv.ParseInt(r.FormValue("filesize"), 10, 64)
		if r.FormValue("stash") != "1" {
			t.Errorf("chunk at %d sent without stash=1", offset)
		}
		if offset > 0 && r.FormValue("filekey") != "stash.key" {
			t.Errorf("chunk at %d sent without filekey", offset)
		}

		c.mu.Lock()
		c.offsets = append(c.offsets, offset)
		c.sizes = append(c.sizes, len(chunk))
		c.data.Write(chunk)
		c.mu.Unlock()

		next := offset + int64(len(chunk))
		result := "Continue"
		if next >= total {
			result = "Success"
		}
		writeJSON(w, map[string]interface{}{
			"upload": map[string]interface{}{
				"result":  result,
				"filekey": "stash.key",
				"offset":  next,
			},
		})
	}
}

func TestUploadFile_Chunked(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		chunkSize  int64
		wantChunks int
		wantSizes  []int
	}{
		{"uneven", 10, 4, 3, []int{4, 4, 2}},
		{"even", 12, 4, 3, []int{4, 4, 4}},
		{"one byte short", 5, 4, 2, []int{4, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &chunkRecorder{}
			server := mockMediaWikiServer(t, rec.handle(t))
			client := createMockClient(t, server.Server)

			data := bytes.Repeat([]byte("x"), tt.size)
			data[0] = 'A'
			result, err := client.UploadFile(context.Background(), FileUpload{
				Filename:  "File:Logo.png",
				Data:      data,
				ChunkSize: tt.chunkSize,
				Comment:   "initial upload",
				Text:      "== Summary ==",
			})
			if err != nil {
				t.Fatalf("UploadFile() error: %v", err)
			}

			if result.Chunks != tt.wantChunks || len(rec.sizes) != tt.wantChunks {
				t.Errorf("chunks = %d (server saw %d), want %d", result.Chunks, len(rec.sizes), tt.wantChunks)
			}
			for i, size := range tt.wantSizes {
				if i < len(rec.sizes) && rec.sizes[i] != size {
					t.Errorf("chunk %d size = %d, want %d", i, rec.sizes[i], size)
				}
				if i < len(rec.offsets) && rec.offsets[i] != int64(i)*tt.chunkSize {
					t.Errorf("chunk %d offset = %d, want %d", i, rec.offsets[i], int64(i)*tt.chunkSize)
				}
			}
			if !bytes.Equal(rec.data.Bytes(), data) {
				t.Error("reassembled data does not match the file")
			}

			if rec.commit == nil {
				t.Fatal("upload was not committed")
			}
			if rec.commit["filekey"] != "stash.key" {
				t.Errorf("commit filekey = %q", rec.commit["filekey"])
			}
			if rec.commit["comment"] != "initial upload" || rec.commit["text"] != "== Summary ==" {
				t.Errorf("commit params = %v", rec.commit)
			}
			if rec.commit["token"] != "test-csrf-token" {
				t.Errorf("commit token = %q", rec.commit["token"])
			}
			if result.Filename != "Logo.png" || result.Size != tt.size {
				t.Errorf("result = %+v", result)
			}
		})
	}
}

func TestUploadFile_Whole(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int64
	}{
		{"no chunking", 0},
		{"chunk equals size", 8},
		{"chunk larger than file", 1 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []byte
			var gotName string
			server := mockMediaWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
				if _, _, err := r.FormFile("chunk"); err == nil {
					t.Error("whole upload should not send chunks")
				}
				file, header, err := r.FormFile("file")
				if err != nil {
					t.Errorf("missing file part: %v", err)
					return
				}
				defer file.Close()
				got, _ = io.ReadAll(file)
				gotName = header.Filename
				writeJSON(w, map[string]interface{}{
					"upload": map[string]interface{}{
						"result":    "Success",
						"filename":  "Doc.pdf",
						"imageinfo": map[string]interface{}{"url": "https://wiki.example.com/Doc.pdf", "size": len(got)},
					},
				})
			})
			client := createMockClient(t, server.Server)

			data := []byte("PDFDATA!")
			result, err := client.UploadFile(context.Background(), FileUpload{
				Filename:  "Doc.pdf",
				Data:      data,
				ChunkSize: tt.chunkSize,
			})
			if err != nil {
				t.Fatalf("UploadFile() error: %v", err)
			}
			if !bytes.Equal(got, data) || gotName != "Doc.pdf" {
				t.Errorf("server received %q as %q", got, gotName)
			}
			if result.Chunks != 1 || result.URL != "https://wiki.example.com/Doc.pdf" || result.Size != len(data) {
				t.Errorf("result = %+v", result)
			}
		})
	}
}

func TestUploadFile_Warnings(t *testing.T) {
	server := mockMediaWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"upload": map[string]interface{}{
				"result":   "Warning",
				"warnings": map[string]interface{}{"exists": "Logo.png", "duplicate": []interface{}{"Other.png"}},
			},
		})
	})
	client := createMockClient(t, server.Server)

	result, err := client.UploadFile(context.Background(), FileUpload{Filename: "Logo.png", Data: []byte("img")})
	if err == nil {
		t.Fatal("expected warning error")
	}
	want := []string{"duplicate: [Other.png]", "exists: Logo.png"}
	if len(result.Warnings) != len(want) {
		t.Fatalf("warnings = %v, want %v", result.Warnings, want)
	}
	for i := range want {
		if result.Warnings[i] != want[i] {
			t.Errorf("warning %d = %q, want %q", i, result.Warnings[i], want[i])
		}
	}
}

func TestUploadFile_IgnoreWarningsParam(t *testing.T) {
	var ignore string
	server := mockMediaWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		ignore = r.FormValue("ignorewarnings")
		writeJSON(w, map[string]interface{}{
			"upload": map[string]interface{}{"result": "Success", "filename": "Logo.png"},
		})
	})
	client := createMockClient(t, server.Server)

	_, err := client.UploadFile(context.Background(), FileUpload{
		Filename:       "Logo.png",
		Data:           []byte("img"),
		IgnoreWarnings: true,
	})
	if err != nil {
		t.Fatalf("UploadFile() error: %v", err)
	}
	if ignore != "1" {
		t.Errorf("ignorewarnings = %q, want 1", ignore)
	}
}

func TestUploadFile_StalledOffset(t *testing.T) {
	server := mockMediaWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"upload": map[string]interface{}{"result": "Continue", "filekey": "k", "offset": 0},
		})
	})
	client := createMockClient(t, server.Server)

	_, err := client.UploadFile(context.Background(), FileUpload{
		Filename:  "Big.bin",
		Data:      make([]byte, 16),
		ChunkSize: 4,
	})
	if err == nil {
		t.Fatal("expected an error when the server does not advance")
	}
}

func TestUploadFile_Validation(t *testing.T) {
	server := mockMediaWikiServer(t, nil)
	client := createMockClient(t, server.Server)

	tests := []struct {
		name string
		args FileUpload
	}{
		{"no name", FileUpload{Filename: "File:", Data: []byte("x")}},
		{"no data", FileUpload{Filename: "A.png"}},
		{"negative chunk", FileUpload{Filename: "A.png", Data: []byte("x"), ChunkSize: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.UploadFile(context.Background(), tt.args)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
	if server.count("upload") != 0 {
		t.Error("invalid uploads must not reach the server")
	}
}
