// Command wildsight replays a JSONL detection log through the tracking
// pipeline, persists tracks to sqlite, and serves live state over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wildsight-data/wildsight/internal/config"
	"github.com/wildsight-data/wildsight/internal/db"
	"github.com/wildsight-data/wildsight/internal/monitor"
	"github.com/wildsight-data/wildsight/internal/replay"
	"github.com/wildsight-data/wildsight/internal/session"
	sqlitestore "github.com/wildsight-data/wildsight/internal/storage/sqlite"
	"github.com/wildsight-data/wildsight/internal/track"
	"github.com/wildsight-data/wildsight/internal/version"
)

const migrationsDir = "db/migrations"

func main() {
	listen := flag.String("listen", ":8080", "HTTP listen address")
	replayPath := flag.String("replay", "", "path to JSONL detection log (required)")
	dbPath := flag.String("db", "wildsight.db", "sqlite database path (empty disables persistence)")
	configPath := flag.String("config", "", "tuning config JSON (defaults to built-in values)")
	summaryCSV := flag.String("summary-csv", "", "write per-track summary CSV to this path at end of run")
	frameLogPath := flag.String("frame-log", "", "write per-frame CSV log to this path")
	realtime := flag.Bool("realtime", false, "pace replay at recorded frame intervals")
	flag.Parse()

	if *replayPath == "" {
		log.Fatal("-replay flag is required")
	}

	log.Printf("wildsight %s (%s)", version.Version, version.GitSHA)

	tuning := loadTuning(*configPath)

	var store *sqlitestore.TrackStore
	if *dbPath != "" {
		dbh, err := db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer dbh.Close()
		if err := dbh.MigrateUp(migrationsDir); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
		store = sqlitestore.NewTrackStore(dbh.DB)
	}

	var frameLog *session.FrameLog
	if *frameLogPath != "" {
		fl, err := session.NewFrameLog(*frameLogPath)
		if err != nil {
			log.Fatalf("open frame log: %v", err)
		}
		frameLog = fl
	}

	sess, err := session.New(tuning, session.Options{
		Source:   "replay:" + *replayPath,
		Store:    store,
		FrameLog: frameLog,
	})
	if err != nil {
		log.Fatalf("start session: %v", err)
	}

	reader, err := replay.NewReader(*replayPath)
	if err != nil {
		log.Fatalf("open detection log: %v", err)
	}
	defer reader.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address: *listen,
		Session: sess,
		Store:   store,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			log.Printf("web server: %v", err)
		}
	}()

	if err := runReplay(ctx, sess, reader, *realtime); err != nil {
		log.Printf("replay: %v", err)
	}

	if err := sess.Finish(); err != nil {
		log.Printf("finish session: %v", err)
	}

	if *summaryCSV != "" {
		if err := writeSummaryCSV(*summaryCSV, sess, tuning.GetNominalFPS()); err != nil {
			log.Printf("write summary csv: %v", err)
		} else {
			log.Printf("wrote track summaries to %s", *summaryCSV)
		}
	}

	stop()
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func loadTuning(path string) *config.TuningConfig {
	if path == "" {
		return config.MustLoadDefaultConfig()
	}
	tuning, err := config.LoadTuningConfig(path)
	if err != nil {
		log.Fatalf("load tuning config: %v", err)
	}
	return tuning
}

// runReplay feeds every frame of the detection log through the session.
// With realtime pacing it sleeps each frame's recorded dt; otherwise frames
// are processed as fast as they parse.
func runReplay(ctx context.Context, sess *session.Session, reader *replay.Reader, realtime bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if realtime && rec.Dt > 0 {
			select {
			case <-time.After(time.Duration(rec.Dt * float64(time.Second))):
			case <-ctx.Done():
				return nil
			}
		}

		if _, err := sess.ProcessFrame(rec.ToDetections(), rec.Dt); err != nil {
			return err
		}
	}
}

func writeSummaryCSV(path string, sess *session.Session, fps float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := track.WriteSummariesCSV(f, sess.Tracker().Summaries(), fps); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
