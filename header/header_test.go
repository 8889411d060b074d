package header

import "testing"

func TestPutAppendsNewKey(t *testing.T) {
	h := New(4)
	if err := h.Put([]byte("Host"), []byte("a.com")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	v, ok := h.GetString("Host")
	if !ok || v != "a.com" {
		t.Errorf("GetString(Host) = %q, %v, want a.com/true", v, ok)
	}
}

func TestPutReplacesExistingKeyCaseInsensitively(t *testing.T) {
	h := New(4)
	_ = h.Put([]byte("Content-Type"), []byte("text/plain"))
	_ = h.Put([]byte("content-type"), []byte("application/json"))
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (Put should replace, not append)", h.Len())
	}
	v, _ := h.GetString("Content-Type")
	if v != "application/json" {
		t.Errorf("value = %q, want application/json", v)
	}
}

func TestAppendAllowsDuplicates(t *testing.T) {
	h := New(4)
	_ = h.Append([]byte("Set-Cookie"), []byte("a=1"))
	_ = h.Append([]byte("Set-Cookie"), []byte("b=2"))
	if h.CountOf([]byte("Set-Cookie")) != 2 {
		t.Errorf("CountOf(Set-Cookie) = %d, want 2", h.CountOf([]byte("Set-Cookie")))
	}
}

func TestAppendRejectsBeyondCapacity(t *testing.T) {
	h := New(1)
	if err := h.Append([]byte("A"), []byte("1")); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}
	if err := h.Append([]byte("B"), []byte("2")); err == nil {
		t.Fatal("expected error appending past capacity")
	}
}

func TestRemoveDeletesAllMatches(t *testing.T) {
	h := New(4)
	_ = h.Append([]byte("X-Foo"), []byte("1"))
	_ = h.Append([]byte("x-foo"), []byte("2"))
	_ = h.Append([]byte("X-Bar"), []byte("3"))
	n := h.Remove([]byte("X-Foo"))
	if n != 2 {
		t.Errorf("Remove returned %d, want 2", n)
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
}

func TestGetMissingKeyReturnsError(t *testing.T) {
	h := New(4)
	if _, err := h.Get([]byte("Missing")); err == nil {
		t.Fatal("expected error for a missing key")
	}
}

func TestVisitAllPreservesInsertionOrder(t *testing.T) {
	h := New(4)
	_ = h.Append([]byte("A"), []byte("1"))
	_ = h.Append([]byte("B"), []byte("2"))
	_ = h.Append([]byte("C"), []byte("3"))

	var order []string
	h.VisitAll(func(key, value []byte) bool {
		order = append(order, string(key))
		return true
	})
	want := []string{"A", "B", "C"}
	for i, k := range want {
		if order[i] != k {
			t.Errorf("order[%d] = %q, want %q", i, order[i], k)
		}
	}
}

func TestVisitAllStopsOnFalse(t *testing.T) {
	h := New(4)
	_ = h.Append([]byte("A"), []byte("1"))
	_ = h.Append([]byte("B"), []byte("2"))

	count := 0
	h.VisitAll(func(key, value []byte) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("visited %d pairs, want 1 (should stop after false)", count)
	}
}

func TestResetEmptiesList(t *testing.T) {
	h := New(4)
	_ = h.Append([]byte("A"), []byte("1"))
	h.Reset()
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Reset", h.Len())
	}
}

func TestCookiesParseBasic(t *testing.T) {
	c := NewCookies(8)
	if err := c.Parse([]byte("a=1; b=2; c=3")); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	v, err := c.Get([]byte("b"))
	if err != nil || string(v) != "2" {
		t.Errorf("Get(b) = %q, %v, want 2/nil", v, err)
	}
}

func TestCookiesParseSkipsEntriesWithoutEquals(t *testing.T) {
	c := NewCookies(8)
	if err := c.Parse([]byte("a=1; justflag; b=2")); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (bare token without '=' should be skipped)", c.Len())
	}
}

func TestCookiesGetBeforeParseReturnsAbsent(t *testing.T) {
	c := NewCookies(8)
	if _, err := c.Get([]byte("a")); err == nil {
		t.Fatal("expected absent result before Parse is called")
	}
}

func TestCookiesKeyComparisonIsCaseSensitive(t *testing.T) {
	c := NewCookies(8)
	_ = c.Parse([]byte("Session=abc"))
	if _, err := c.Get([]byte("session")); err == nil {
		t.Fatal("expected case-sensitive cookie key lookup to reject a differently-cased key")
	}
}

func TestCookiesParseRejectsBeyondCapacity(t *testing.T) {
	c := NewCookies(1)
	if err := c.Parse([]byte("a=1; b=2")); err == nil {
		t.Fatal("expected error exceeding cookie capacity")
	}
}
