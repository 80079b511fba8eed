package simmsg

import "testing"

func TestCloneIsDeep(t *testing.T) {
	m := New("m0", 0, Payload{
		"tags": []Field{"a", "b"},
	})
	clone := m.Clone()
	tags := clone.Payload["tags"].([]Field)
	tags[0] = "mutated"

	original := m.Payload["tags"].([]Field)
	if original[0] == "mutated" {
		t.Fatal("clone shares backing array with original")
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.Enqueue(New("a", 0, nil))
	q.Enqueue(New("b", 1, nil))

	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}

	first := q.Dequeue()
	if first.ID != "a" {
		t.Fatalf("expected FIFO order, got %s first", first.ID)
	}
	second := q.Dequeue()
	if second.ID != "b" {
		t.Fatalf("expected b second, got %s", second.ID)
	}
	if !q.Empty() {
		t.Fatal("expected queue empty")
	}
	if q.Dequeue() != nil {
		t.Fatal("expected nil from empty queue")
	}
}

func TestGetSet(t *testing.T) {
	m := New("m0", 0, nil)
	m.Set("size_mbits", 4.0)
	v, ok := m.Get("size_mbits")
	if !ok {
		t.Fatal("expected field present")
	}
	if f, _ := Float64(v); f != 4.0 {
		t.Fatalf("expected 4.0, got %v", v)
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatal("expected missing field absent")
	}
}
