package rover

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/teslashibe/go-rover/pkg/geometry"
)

type fixedState string

func (s fixedState) Mode() string { return string(s) }

func TestStatusEmptySnapshot(t *testing.T) {
	var s Snapshot
	st := s.Status()

	if st.Mode != "" {
		t.Errorf("Mode = %q, want empty before the first decision", st.Mode)
	}
	if st.NavPixels != 0 || st.SampleVisible {
		t.Errorf("unexpected perception in %+v", st)
	}
}

func TestStatusSummarizesSnapshot(t *testing.T) {
	nav, err := geometry.NewPolarSet([]float64{1, 2, 3}, []float64{0, 0.1, -0.1})
	if err != nil {
		t.Fatal(err)
	}
	bearing, err := geometry.NewPolarSet([]float64{4}, []float64{0.2})
	if err != nil {
		t.Fatal(err)
	}

	s := Snapshot{
		Pose:             Pose{X: 99.7, Y: 85.6, Yaw: 56.8},
		Velocity:         0.4,
		Elapsed:          2500 * time.Millisecond,
		State:            fixedState("forward"),
		Nav:              &nav,
		SampleBearing:    &bearing,
		NearSample:       true,
		Command:          Command{Throttle: 0.2, Steer: -3},
		SamplesLocated:   2,
		SamplesCollected: 1,
	}
	st := s.Status()

	if st.Mode != "forward" || st.NavPixels != 3 || !st.SampleVisible {
		t.Errorf("status = %+v", st)
	}
	if st.ElapsedSeconds != 2.5 {
		t.Errorf("ElapsedSeconds = %v, want 2.5", st.ElapsedSeconds)
	}

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	cmd := decoded["command"].(map[string]any)
	if cmd["steering_angle"] != -3.0 {
		t.Errorf("command JSON = %v", cmd)
	}
	if decoded["samples_collected"] != 1.0 {
		t.Errorf("samples_collected = %v", decoded["samples_collected"])
	}
}
