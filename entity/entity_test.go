package entity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDAllocator(t *testing.T) {
	a := NewIDAllocator()
	assert.Equal(t, int32(1), a.Next())
	assert.Equal(t, int32(2), a.Next())

	var wg sync.WaitGroup
	ids := make([]int32, 100)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = a.Next()
		}()
	}
	wg.Wait()
	seen := map[int32]bool{}
	for _, id := range ids {
		assert.False(t, seen[id])
		assert.Greater(t, id, int32(2))
		seen[id] = true
	}

	a.Reset()
	assert.Equal(t, int32(1), a.Next())
}

func TestParseVehicleType(t *testing.T) {
	typ, err := ParseVehicleType("")
	assert.NoError(t, err)
	assert.Equal(t, VehicleTypeVehicle, typ)
	typ, err = ParseVehicleType("Obstacle")
	assert.NoError(t, err)
	assert.Equal(t, VehicleTypeObstacle, typ)
	_, err = ParseVehicleType("bus")
	assert.Error(t, err)
	assert.Equal(t, -1, SideToLaneOffset(LEFT))
	assert.Equal(t, 1, SideToLaneOffset(RIGHT))
}
