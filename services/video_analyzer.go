package services

import "math"

// VideoAnalyzer derives engagement metrics from client-side head pose
// and movement telemetry. The browser runs the face tracking model and
// streams per-frame samples; the server only aggregates them.
type VideoAnalyzer struct{}

func NewVideoAnalyzer() *VideoAnalyzer {
	return &VideoAnalyzer{}
}

// EyeContactPercentage estimates camera engagement from head pose.
// A frame counts as eye contact when yaw stays within 45 degrees and
// pitch within 30 degrees of center.
func (v *VideoAnalyzer) EyeContactPercentage(yaw, pitch []float64) float64 {
	n := len(yaw)
	if len(pitch) < n {
		n = len(pitch)
	}
	if n == 0 {
		return 0
	}
	engaged := 0
	for i := 0; i < n; i++ {
		if math.Abs(yaw[i])/45.0 < 1.0 && math.Abs(pitch[i])/30.0 < 1.0 {
			engaged++
		}
	}
	return float64(engaged) / float64(n) * 100.0
}

// CountFidgets counts movement spikes. A fidget is a rising crossing
// of the 0.2 movement-magnitude threshold, so one sustained motion
// counts once.
func (v *VideoAnalyzer) CountFidgets(movement []float64) int {
	count := 0
	above := false
	for _, m := range movement {
		if m > 0.2 {
			if !above {
				count++
				above = true
			}
		} else {
			above = false
		}
	}
	return count
}

// PostureScore scores shoulder stability against the opening frame.
// Average vertical drift of 0.1 (normalized frame units) or more maps
// to the floor.
func (v *VideoAnalyzer) PostureScore(shoulderY []float64) float64 {
	if len(shoulderY) < 2 {
		return 100
	}
	baseline := shoulderY[0]
	var sum float64
	for _, y := range shoulderY[1:] {
		sum += math.Abs(y - baseline)
	}
	avgDiff := sum / float64(len(shoulderY)-1)

	score := 100 - avgDiff/0.1*70
	if score < 30 {
		score = 30
	}
	if score > 100 {
		score = 100
	}
	return score
}
