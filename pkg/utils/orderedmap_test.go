package utils_test

import (
	"testing"

	"its-hmny.dev/logik/pkg/utils"
)

func TestOrderedMap(t *testing.T) {
	om := utils.NewOrderedMap[string, int]()

	om.Set("main", 1)
	om.Set("helper", 2)
	om.Set("main", 3) // Overwrites keep the original position

	if om.Count() != 2 {
		t.Fatalf("Unexpected count: expected 2 got %d", om.Count())
	}
	if value, found := om.Get("main"); !found || value != 3 {
		t.Fatalf("Unexpected value for 'main': got %d (found: %t)", value, found)
	}
	if om.Has("missing") {
		t.Fatal("Unexpected hit for a key never set")
	}

	keys := []string{}
	om.Iterator()(func(key string, _ int) bool {
		keys = append(keys, key)
		return true
	})
	if len(keys) != 2 || keys[0] != "main" || keys[1] != "helper" {
		t.Fatalf("Unexpected iteration order: %v", keys)
	}
}

func TestStack(t *testing.T) {
	stack := utils.NewStack(1, 2)
	stack.Push(3)

	if top, err := stack.Top(); err != nil || top != 3 {
		t.Fatalf("Unexpected top: got %d (err: %v)", top, err)
	}
	for expected := 3; expected >= 1; expected-- {
		popped, err := stack.Pop()
		if err != nil || popped != expected {
			t.Fatalf("Unexpected pop: expected %d got %d (err: %v)", expected, popped, err)
		}
	}
	if _, err := stack.Pop(); err == nil {
		t.Fatal("Expected an error popping an empty stack")
	}
}
