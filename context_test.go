package dbus

import (
	"context"
	"os"
	"slices"
	"testing"
)

func TestContextEmitter(t *testing.T) {
	var conn *Conn
	hdr := &header{Sender: "foo", Path: "/bar", Interface: "qux"}
	ctx := withContextHeader(context.Background(), conn, hdr)

	got, ok := ContextEmitter(ctx)
	if !ok {
		t.Fatal("emitter not found in context")
	}
	want := conn.Peer("foo").Object("/bar").Interface("qux")
	if got != want {
		t.Fatalf("wrong emitter, got %#v want %#v", got, want)
	}

	_, ok = ContextEmitter(context.Background())
	if ok {
		t.Fatal("got emitter from context with no header")
	}

	ctx = withContextHeader(context.Background(), conn, &header{Path: "/bar", Interface: "qux"})
	if _, ok := ContextEmitter(ctx); ok {
		t.Fatal("got emitter from header with no sender")
	}
}

func TestContextFile(t *testing.T) {
	var fs []*os.File
	for range 2 {
		f, err := os.CreateTemp(t.TempDir(), "contextfile")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		fs = append(fs, f)
	}
	// Keep a separate copy of the file list for checking output.
	want := slices.Clone(fs)

	ctx := withContextFiles(context.Background(), fs)

	for i := range 2 {
		got := contextFile(ctx, uint32(i))
		if got == nil {
			t.Fatal("file not found in context")
		}
		if got != want[i] {
			t.Fatalf("wrong file received, got %p, want file %d from %v", got, i, want)
		}
	}

	got := contextFile(ctx, 2)
	if got != nil {
		t.Fatalf("got unexpected file %p past the end of %v", got, want)
	}
}

func TestContextPutFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "contextputfile")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var files []*os.File
	ctx := withContextPutFiles(context.Background(), &files)

	idx, err := contextPutFile(ctx, f)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Fatalf("got index %d, want 0", idx)
	}
	if len(files) != 1 || files[0] != f {
		t.Fatalf("file was not recorded, got %v", files)
	}

	if _, err := contextPutFile(context.Background(), f); err == nil {
		t.Fatal("expected error putting file into context with no file sink")
	}
}
