package pool_test

import (
	"fmt"

	"github.com/ajitpratap0/stratum/pkg/pool"
)

type workspace struct {
	buf []byte
}

// Example demonstrates a custom typed pool with a reset function.
func Example() {
	scratch := pool.New(
		func() *workspace { return &workspace{buf: make([]byte, 0, 64)} },
		func(w *workspace) { w.buf = w.buf[:0] },
	)

	ws := scratch.Get()
	ws.buf = append(ws.buf, "abc"...)
	fmt.Println(string(ws.buf))
	scratch.Put(ws)

	_, inUse, _, _ := scratch.Stats()
	fmt.Println("in use:", inUse)

	// Output:
	// abc
	// in use: 0
}

// ExampleGetIndexSlice shows how to borrow gather-map scratch.
func ExampleGetIndexSlice() {
	rows := pool.GetIndexSlice(8)
	defer pool.PutIndexSlice(rows)

	*rows = append(*rows, 0, 2, 5)
	fmt.Println(len(*rows), cap(*rows) >= 8)

	// Output:
	// 3 true
}
