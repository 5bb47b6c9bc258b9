package optimize

import (
	"testing"
)

func TestBytePool(t *testing.T) {
	pool := NewBytePool(1500)

	buf := pool.Get()
	if len(buf) != 1500 {
		t.Errorf("expected buffer size 1500, got %d", len(buf))
	}

	pool.Put(buf)

	buf2 := pool.Get()
	if len(buf2) != 1500 {
		t.Errorf("expected buffer size 1500, got %d", len(buf2))
	}
}

func TestBytePool_DropsShortBuffers(t *testing.T) {
	pool := NewBytePool(64)
	pool.Put(make([]byte, 8))

	if got := len(pool.Get()); got != 64 {
		t.Errorf("expected buffer size 64, got %d", got)
	}
}

func TestFloat32Pool(t *testing.T) {
	var pool Float32Pool

	s := pool.Get(100)
	if len(s) != 100 {
		t.Fatalf("expected len 100, got %d", len(s))
	}
	pool.Put(s)

	if got := len(pool.Get(50)); got != 50 {
		t.Errorf("expected len 50, got %d", got)
	}
	if got := len(pool.Get(400)); got != 400 {
		t.Errorf("expected len 400, got %d", got)
	}
}
