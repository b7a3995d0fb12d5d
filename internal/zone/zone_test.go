package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/geometry"
)

func box(x0, y0, x1, y1 float64) detection.Detection {
	return detection.Detection{Label: detection.LabelPerson, Box: geometry.NewBoundingBox(x0, y0, x1, y1)}
}

func TestMembers(t *testing.T) {
	t.Parallel()
	area := Zone{Name: "waiting", Box: geometry.NewBoundingBox(0, 0, 100, 100), Threshold: WaitingAreaThreshold}

	tracked := map[int]detection.Detection{
		5: box(10, 10, 40, 40),     // fully inside
		2: box(500, 500, 540, 580), // fully outside
		9: box(80, 0, 100, 10),     // fully inside on the edge
		3: box(30, 0, 130, 10),     // 70% inside: not strictly greater
		4: box(29, 0, 129, 10),     // 71% inside
	}
	assert.Equal(t, []int{4, 5, 9}, Members(tracked, area))
	assert.Equal(t, []int{}, Members(nil, area))
}

func TestMembers_ChairThreshold(t *testing.T) {
	t.Parallel()
	chairs := Zone{Name: "vaccination", Box: geometry.NewBoundingBox(1269, 187, 1920, 1080), Threshold: ChairThreshold}

	tracked := map[int]detection.Detection{
		1: box(1300, 200, 1500, 900),
		2: box(1260, 200, 1460, 900), // 95.5% inside
	}
	assert.Equal(t, []int{1}, Members(tracked, chairs))
}

func TestMembersAny(t *testing.T) {
	t.Parallel()
	zones := []Zone{
		{Name: "left", Box: geometry.NewBoundingBox(0, 0, 100, 100), Threshold: 0.5},
		{Name: "right", Box: geometry.NewBoundingBox(200, 0, 300, 100), Threshold: 0.5},
	}
	tracked := map[int]detection.Detection{
		1: box(10, 10, 50, 50),
		2: box(210, 10, 250, 50),
		3: box(120, 10, 180, 50),
		4: box(90, 10, 130, 50), // 25% in left only
	}
	assert.Equal(t, []int{1, 2}, MembersAny(tracked, zones))
}
