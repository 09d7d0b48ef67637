package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSniffImage(t *testing.T) {
	cases := []struct {
		name    string
		body    []byte
		wantExt string
		wantErr error
	}{
		{name: "png", body: []byte("\x89PNG\r\n\x1a\n0000"), wantExt: ".png"},
		{name: "jpeg", body: []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), wantExt: ".jpg"},
		{name: "gif", body: []byte("GIF89a...."), wantExt: ".gif"},
		{name: "text", body: []byte("hello world"), wantErr: ErrInvalidImageType},
		{name: "empty", body: nil, wantErr: ErrInvalidImageType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ext, head, err := sniffImage(bytes.NewReader(tc.body))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil || ext != tc.wantExt {
				t.Fatalf("expected %s, got ext=%q err=%v", tc.wantExt, ext, err)
			}
			if !bytes.Equal(head, tc.body) {
				t.Fatal("expected sniffed bytes to be returned for replay")
			}
		})
	}
}

func TestMinIOStorageRejectsOversizedImageBeforeUpload(t *testing.T) {
	s, err := NewMinIOStorageService("127.0.0.1:1", "k", "s", "bucket", "", false, 10)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.UploadProductImage(context.Background(), strings.NewReader("x"), 11)
	if !errors.Is(err, ErrImageTooBig) {
		t.Fatalf("expected ErrImageTooBig, got %v", err)
	}
	if got := s.publicURL("products/a.png"); got != "http://127.0.0.1:1/bucket/products/a.png" {
		t.Fatalf("unexpected public url %q", got)
	}
}

func TestMinIOStorageDeleteRejectsForeignKeys(t *testing.T) {
	s, err := NewMinIOStorageService("127.0.0.1:1", "k", "s", "bucket", "https://cdn.example.com/", false, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"avatars/a.png", "products/../secret"} {
		if err := s.DeleteObject(context.Background(), key); !errors.Is(err, ErrDeleteFailed) {
			t.Fatalf("expected ErrDeleteFailed for %q, got %v", key, err)
		}
	}
	if err := s.DeleteObject(context.Background(), ""); err != nil {
		t.Fatalf("empty key should be a no-op, got %v", err)
	}
}

func TestDisabledImageStorage(t *testing.T) {
	var s DisabledImageStorage
	if _, err := s.UploadProductImage(context.Background(), strings.NewReader("x"), 1); !errors.Is(err, ErrStorageDisabled) {
		t.Fatalf("expected ErrStorageDisabled, got %v", err)
	}
	if err := s.DeleteObject(context.Background(), "products/a.png"); err != nil {
		t.Fatal(err)
	}
}
