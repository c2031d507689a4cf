// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestIngest(t *testing.T) {
	var gotChunkSize, gotChunkOverlap, gotSessionID, gotFileName string
	var gotFileData []byte
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/vector/upsert/flow-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		gotChunkSize = r.FormValue("chunkSize")
		gotChunkOverlap = r.FormValue("chunkOverlap")
		gotSessionID = r.FormValue("sessionId")

		file, header, err := r.FormFile("files")
		if err != nil {
			t.Fatalf("reading files part: %v", err)
		}
		defer file.Close()
		gotFileName = header.Filename
		gotFileData, err = io.ReadAll(file)
		if err != nil {
			t.Fatalf("reading file data: %v", err)
		}

		json.NewEncoder(w).Encode(IngestResult{NumAdded: 7, NumUpdated: 2})
	}, nil)

	result, err := gw.Ingest(context.Background(), Attachment{
		Name:     "notes.md",
		MimeType: "text/markdown",
		Data:     []byte("# notes"),
	}, "session-1", IngestOptions{ChunkSize: 500, ChunkOverlap: 50})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.NumAdded != 7 || result.NumUpdated != 2 {
		t.Errorf("result = %+v", result)
	}
	if gotChunkSize != "500" || gotChunkOverlap != "50" {
		t.Errorf("chunk fields = %q/%q", gotChunkSize, gotChunkOverlap)
	}
	if gotSessionID != "session-1" {
		t.Errorf("sessionId = %q", gotSessionID)
	}
	if gotFileName != "notes.md" || string(gotFileData) != "# notes" {
		t.Errorf("file = %q %q", gotFileName, gotFileData)
	}
}

func TestIngestOmitsZeroOptions(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		if _, present := r.MultipartForm.Value["chunkSize"]; present {
			t.Error("chunkSize should be omitted when zero")
		}
		if _, present := r.MultipartForm.Value["chunkOverlap"]; present {
			t.Error("chunkOverlap should be omitted when zero")
		}
		json.NewEncoder(w).Encode(IngestResult{NumAdded: 1})
	}, nil)

	if _, err := gw.Ingest(context.Background(), Attachment{
		Name: "a.txt", MimeType: "text/plain", Data: []byte("x"),
	}, "s", IngestOptions{}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
}

func TestIngestServiceError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "vector store offline", http.StatusBadGateway)
	}, nil)

	_, err := gw.Ingest(context.Background(), Attachment{
		Name: "a.txt", MimeType: "text/plain", Data: []byte("x"),
	}, "s", IngestOptions{})
	if err == nil {
		t.Fatal("Ingest succeeded, want error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want HTTP 502 mention", err)
	}
}
