package core

import (
	"encoding/json"
	"testing"
)

func TestBook_UnmarshalNormalizesID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"numeric id", `{"id":42,"title":"Dune"}`, "42"},
		{"string id", `{"id":"42","title":"Dune"}`, "42"},
		{"numeric bookId", `{"bookId":7,"title":"Dune"}`, "7"},
		{"string bookId", `{"bookId":"7","title":"Dune"}`, "7"},
		{"id wins over bookId", `{"id":1,"bookId":2,"title":"Dune"}`, "1"},
		{"no id at all", `{"title":"Dune"}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var b Book
			if err := json.Unmarshal([]byte(tc.in), &b); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if b.ID != tc.want {
				t.Fatalf("id = %q, want %q", b.ID, tc.want)
			}
		})
	}
}

func TestBook_MarshalWireShape(t *testing.T) {
	b := Book{
		ID:       "42",
		Title:    "Dune",
		Author:   "Herbert",
		Category: "sci-fi",
		Status:   StatusAvailable,
		ImageRef: "/images/dune.png",
	}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if wire["imageUrl"] != "/images/dune.png" {
		t.Fatalf("imageUrl = %v, want the image reference", wire["imageUrl"])
	}
	if wire["status"] != "AVAILABLE" {
		t.Fatalf("status = %v, want AVAILABLE", wire["status"])
	}

	// A draft without an id omits the field entirely.
	data, err = json.Marshal(Book{Title: "Dune"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var draft map[string]any
	if err := json.Unmarshal(data, &draft); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, present := draft["id"]; present {
		t.Fatal("id present in draft wire shape, want omitted")
	}
}

func TestFilter_Values(t *testing.T) {
	f := Filter{Category: "sci-fi", Status: StatusAvailable}
	q := f.Values()
	if got := q.Get("category"); got != "sci-fi" {
		t.Fatalf("category = %q, want %q", got, "sci-fi")
	}
	if got := q.Get("status"); got != "AVAILABLE" {
		t.Fatalf("status = %q, want %q", got, "AVAILABLE")
	}
	if q.Has("author") || q.Has("name") {
		t.Fatal("zero fields must be omitted from the query")
	}

	if !(Filter{}).IsZero() {
		t.Fatal("IsZero() = false for empty filter, want true")
	}
	if f.IsZero() {
		t.Fatal("IsZero() = true for non-empty filter, want false")
	}
}

func TestIdentity_IsAdmin(t *testing.T) {
	if (Identity{Role: RoleUser}).IsAdmin() {
		t.Fatal("IsAdmin() = true for USER, want false")
	}
	if !(Identity{Role: RoleAdmin}).IsAdmin() {
		t.Fatal("IsAdmin() = false for ADMIN, want true")
	}
}
