package engine

// SensorReading is one cell observed by the sensor sweep, with its Manhattan
// distance from the robot.
type SensorReading struct {
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Type     CellType `json:"type"`
	Distance int      `json:"relativeDistance"`
}

// ScanResult carries the readings from one sensor sweep. Updated is the
// explicit change flag: callers must use it rather than comparing grid
// identity to detect newly revealed cells.
type ScanResult struct {
	Readings []SensorReading `json:"readings"`
	Updated  bool            `json:"updated"`
}

// Scan reveals every cell within the square sensor window (|dx| ≤ R, |dy| ≤ R,
// clipped to grid bounds) around the robot and returns a reading for each
// visible cell. Revealing is idempotent and monotonic: a revealed cell never
// reverts, and a sweep that reveals nothing new reports Updated=false.
func Scan(g *Grid, robotPos Coord) ScanResult {
	res := ScanResult{}

	for dy := -SensorRadius; dy <= SensorRadius; dy++ {
		for dx := -SensorRadius; dx <= SensorRadius; dx++ {
			x, y := robotPos.X+dx, robotPos.Y+dy
			if !g.InBounds(x, y) {
				continue
			}
			cell := g.At(x, y)
			if !cell.Revealed {
				cell.Revealed = true
				g.MarkDirty(x, y)
				res.Updated = true
			}
			res.Readings = append(res.Readings, SensorReading{
				X:        x,
				Y:        y,
				Type:     cell.Type,
				Distance: Manhattan(robotPos, Coord{X: x, Y: y}),
			})
		}
	}

	return res
}
