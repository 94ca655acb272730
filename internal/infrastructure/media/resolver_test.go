package media

import (
	"context"
	"reflect"
	"testing"
)

func TestResolverJoinsKeysOntoBase(t *testing.T) {
	resolver, err := NewResolver("https://cdn.civicfix.example/media")
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	got, err := resolver.ResolveMediaURLs(context.Background(), []string{
		"issues/42/a.jpg",
		"/issues/42/b.jpg",
		"https://elsewhere.example/c.jpg",
		"  ",
	})
	if err != nil {
		t.Fatalf("ResolveMediaURLs() error = %v", err)
	}

	want := []string{
		"https://cdn.civicfix.example/media/issues/42/a.jpg",
		"https://cdn.civicfix.example/media/issues/42/b.jpg",
		"https://elsewhere.example/c.jpg",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolveMediaURLs() = %v, want %v", got, want)
	}
}

func TestResolverWithoutBasePassesThrough(t *testing.T) {
	resolver, err := NewResolver("")
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	got, err := resolver.ResolveMediaURLs(context.Background(), []string{"issues/1/a.jpg"})
	if err != nil {
		t.Fatalf("ResolveMediaURLs() error = %v", err)
	}
	if len(got) != 1 || got[0] != "issues/1/a.jpg" {
		t.Fatalf("ResolveMediaURLs() = %v", got)
	}

	if _, err := NewResolver("cdn.example"); err == nil {
		t.Fatalf("NewResolver() expected error for relative base")
	}
}
