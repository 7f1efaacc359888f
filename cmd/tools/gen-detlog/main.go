// Command gen-detlog generates synthetic JSONL detection logs for testing
// replay. Objects move at constant velocity with positional noise and
// occasional dropped detections.
package main

import (
	"flag"
	"log"
	"math/rand"

	"github.com/wildsight-data/wildsight/internal/replay"
)

type object struct {
	cx, cy float64
	vx, vy float64
	w, h   float64
	label  string
}

func main() {
	output := flag.String("o", "sample.jsonl", "output path")
	frames := flag.Int("n", 300, "number of frames")
	fps := flag.Float64("fps", 30, "nominal frame rate")
	frameW := flag.Float64("w", 1280, "frame width in pixels")
	frameH := flag.Float64("h", 720, "frame height in pixels")
	noise := flag.Float64("noise", 2.0, "positional noise stddev in pixels")
	dropout := flag.Float64("dropout", 0.1, "probability a detection is dropped per frame")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	dt := 1.0 / *fps
	sigma := *noise
	width, height := *frameW, *frameH

	objects := []object{
		{cx: 100, cy: 360, vx: 90, vy: 0, w: 120, h: 80, label: "deer"},
		{cx: 1180, cy: 200, vx: -60, vy: 20, w: 40, h: 30, label: "fox"},
		{cx: 640, cy: 100, vx: 150, vy: 60, w: 25, h: 18, label: "bird"},
		{cx: 400, cy: 600, vx: 0, vy: 0, w: 50, h: 40, label: "rabbit"},
	}

	w, err := replay.NewWriter(*output)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer w.Close()

	for frame := 1; frame <= *frames; frame++ {
		rec := replay.FrameRecord{Frame: int64(frame), Dt: dt}

		for i := range objects {
			o := &objects[i]
			o.cx += o.vx * dt
			o.cy += o.vy * dt

			// Objects that leave the frame stop producing detections.
			if o.cx < 0 || o.cx > width || o.cy < 0 || o.cy > height {
				continue
			}
			if rng.Float64() < *dropout {
				continue
			}

			cx := o.cx + rng.NormFloat64()*sigma
			cy := o.cy + rng.NormFloat64()*sigma
			rec.Detections = append(rec.Detections, replay.BoxRecord{
				XMin:       cx - o.w/2,
				YMin:       cy - o.h/2,
				XMax:       cx + o.w/2,
				YMax:       cy + o.h/2,
				Label:      o.label,
				Confidence: 0.6 + 0.4*rng.Float64(),
			})
		}

		if err := w.Write(&rec); err != nil {
			log.Fatalf("write frame %d: %v", frame, err)
		}
		if frame%100 == 0 {
			log.Printf("%d/%d frames", frame, *frames)
		}
	}
	log.Printf("✓ Created: %s", *output)
}
