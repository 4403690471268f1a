package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestResolveNormalizesLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 7: 7, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		w, err := Resolve(Params{Limit: in})
		if err != nil {
			t.Fatalf("Resolve(%d): %v", in, err)
		}
		if w.Limit != want || w.After != nil {
			t.Fatalf("Resolve(%d) = %+v, want limit %d and no cursor", in, w, want)
		}
		if w.Fetch() != want+1 {
			t.Fatalf("Fetch() = %d, want %d", w.Fetch(), want+1)
		}
	}
}

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.FixedZone("MSK", 3*3600)), ID: uuid.New()}
	encoded := EncodeCursor(c)
	for _, r := range encoded {
		if r == '+' || r == '/' || r == '=' {
			t.Fatalf("cursor %q is not url safe", encoded)
		}
	}

	w, err := Resolve(Params{Limit: 5, Cursor: encoded})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if w.After == nil || !w.After.CreatedAt.Equal(c.CreatedAt) || w.After.ID != c.ID {
		t.Fatalf("decoded %+v, want %+v", w.After, c)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, in := range []string{"%%%", encodeRaw("no-separator"), encodeRaw("yesterday|" + uuid.NewString()), encodeRaw(time.Now().Format(time.RFC3339Nano) + "|nope")} {
		if _, err := ParseCursor(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestCutReturnsNextCursorOnlyWhenMoreRows(t *testing.T) {
	base := time.Now().UTC()
	rows := []Cursor{
		{CreatedAt: base, ID: uuid.New()},
		{CreatedAt: base.Add(-time.Minute), ID: uuid.New()},
		{CreatedAt: base.Add(-2 * time.Minute), ID: uuid.New()},
	}
	self := func(c Cursor) Cursor { return c }

	page, next := Cut(Window{Limit: 2}, rows, self)
	if len(page) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page))
	}
	if next != EncodeCursor(rows[1]) {
		t.Fatalf("next cursor should point at the last row on the page")
	}

	page, next = Cut(Window{Limit: 3}, rows, self)
	if len(page) != 3 || next != "" {
		t.Fatalf("expected last page without cursor, got %d rows and %q", len(page), next)
	}
}

func encodeRaw(payload string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}
