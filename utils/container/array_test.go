package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/container"
)

type item struct {
	container.IncrementalItemBase
	name string
}

func names(items []*item) []string {
	res := make([]string, len(items))
	for i, it := range items {
		res[i] = it.name
	}
	return res
}

func TestIncrementalArray(t *testing.T) {
	a := container.NewIncrementalArray[*item]()
	x, y, z := &item{name: "x"}, &item{name: "y"}, &item{name: "z"}
	a.Add(x)
	a.Add(y)
	a.Add(z)
	assert.Equal(t, 0, a.Len())
	nAdd, nRemove := a.Pending()
	assert.Equal(t, 3, nAdd)
	assert.Equal(t, 0, nRemove)

	a.Prepare()
	assert.Equal(t, []string{"x", "y", "z"}, names(a.Data()))

	// remove the head and the tail at once, add one
	w := &item{name: "w"}
	a.Remove(x)
	a.Remove(z)
	a.Add(w)
	a.Prepare()
	assert.Equal(t, []string{"y", "w"}, names(a.Data()))
	for i, it := range a.Data() {
		assert.Equal(t, i, it.Index())
	}

	a.Remove(y)
	a.Remove(w)
	a.Prepare()
	assert.Equal(t, 0, a.Len())
}
