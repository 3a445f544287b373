package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/export"
	"github.com/ayusman/mocaprec/internal/hooks"
	"github.com/ayusman/mocaprec/internal/overlay"
	"github.com/ayusman/mocaprec/internal/skeleton"
	"github.com/ayusman/mocaprec/internal/source"
	"github.com/ayusman/mocaprec/internal/store"
	"github.com/ayusman/mocaprec/internal/tracker"
	"github.com/ayusman/mocaprec/internal/video"
	"github.com/google/uuid"
)

// run holds the resources of one recording. Release functions are pushed
// in acquisition order and popped in reverse.
type run struct {
	ctx      context.Context
	id       string
	rc       RecordingConfig
	exporter export.Writer
	video    video.Writer
	sources  []*source.FrameSource
	sink     overlay.Sink
	release  []func() error
	started  time.Time

	ticks     int64
	snapshots int64
	videoErr  bool
	sinkErr   bool

	idle chan struct{}
	done chan struct{}
}

func (r *run) push(release func() error) {
	r.release = append(r.release, release)
}

// teardown releases everything in reverse acquisition order.
func (r *run) teardown() error {
	var errs []error
	for i := len(r.release) - 1; i >= 0; i-- {
		if err := r.release[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.release = nil
	return errors.Join(errs...)
}

// open acquires the output streams, the video writer, every frame source
// (primary first) and the sink.
func (s *Session) open(ctx context.Context, rc RecordingConfig) (*run, error) {
	r := &run{
		ctx:     ctx,
		id:      uuid.New().String(),
		rc:      rc,
		started: time.Now(),
		idle:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	fail := func(err error) (*run, error) {
		if terr := r.teardown(); terr != nil {
			log.Printf("Releasing partial recording %s: %v", rc.BaseName(), terr)
		}
		return nil, err
	}

	if err := ensureDir(s.cfg.OutputDir); err != nil {
		return fail(err)
	}

	newExporter := s.cfg.NewExporter
	if newExporter == nil {
		newExporter = export.OpenWriter
	}
	exp, err := newExporter(rc.EulerPath(), rc.QuatPath())
	if err != nil {
		return fail(err)
	}
	r.exporter = exp
	r.push(exp.Close)

	if s.cfg.NewVideo != nil {
		w, err := s.cfg.NewVideo(rc.VideoPath(), s.cfg.FPS)
		if err != nil {
			return fail(fmt.Errorf("open video writer: %w", err))
		}
		r.video = w
		r.push(w.Close)
	}

	calibs := make(map[int]device.Calibration, len(s.cfg.Devices))
	for _, d := range s.cfg.Devices {
		src, err := source.Open(d.Index, d.Role, d.Config, s.cfg.Opener, s.cfg.NewTracker, s.cfg.Tracker)
		if err != nil {
			return fail(err)
		}
		r.sources = append(r.sources, src)
		r.push(src.Close)

		calibs[d.Index] = src.Calibration()
		if c, ok := s.cfg.Calibrations[d.Index]; ok && c.Known() {
			calibs[d.Index] = c
		}
	}

	r.sink = overlay.Nop{}
	if s.cfg.NewSink != nil {
		sink, err := s.cfg.NewSink(calibs)
		if err != nil {
			return fail(fmt.Errorf("open overlay: %w", err))
		}
		r.sink = sink
		r.push(sink.Close)
	}

	s.catalog(r)
	return r, nil
}

// catalog records the start of r. The catalog is informational; failures
// are logged only.
func (s *Session) catalog(r *run) {
	if s.cfg.Store == nil {
		return
	}

	rec := &store.Recording{
		ID:        r.id,
		Subject:   r.rc.Subject(),
		Sequence:  r.rc.Sequence(),
		Trial:     r.rc.Trial(),
		VideoPath: r.rc.VideoPath(),
		EulerPath: r.rc.EulerPath(),
		QuatPath:  r.rc.QuatPath(),
		StartedAt: r.started,
	}
	if err := s.cfg.Store.Recordings().Create(rec); err != nil {
		log.Printf("Failed to catalog recording %s: %v", r.rc.BaseName(), err)
	}

	settings := s.cfg.Store.Settings()
	if err := settings.Set(store.SettingLastSubject, r.rc.Subject()); err != nil {
		log.Printf("Failed to save last subject: %v", err)
	}
	if err := settings.Set(store.SettingLastSequence, fmt.Sprint(r.rc.Sequence())); err != nil {
		log.Printf("Failed to save last sequence: %v", err)
	}
}

// work runs ticks until the run flag clears or a tick fails, then tears
// the recording down.
func (s *Session) work(r *run) {
	defer close(r.done)

	var fault error
	for s.running.Load() {
		if err := s.tick(r); err != nil {
			fault = err
			break
		}
	}
	s.running.Store(false)

	if fault != nil {
		log.Printf("Recording %s stopped by fault: %v", r.rc.BaseName(), fault)
		s.cfg.Metrics.RecordFault(r.ctx, faultKind(fault))
	}

	s.setState(Stopping)
	out := s.finish(r, fault)

	s.mu.Lock()
	s.current = nil
	s.outcome = &out
	s.state = Idle
	s.mu.Unlock()
	s.notify(Idle)
	close(r.idle)

	s.cfg.Metrics.RecordActive(r.ctx, -1)
	log.Printf("Recording %s stopped after %d ticks, %d snapshots", r.rc.BaseName(), out.Ticks, out.Snapshots)

	s.runHooks(r, out)
}

// tick steps every source once. Rows are exported in source order.
func (s *Session) tick(r *run) error {
	s.cfg.Metrics.RecordTick(r.ctx)
	r.ticks++

	for i, src := range r.sources {
		begin := time.Now()
		res, err := src.Step()
		s.cfg.Metrics.RecordStep(r.ctx, src.Index(), time.Since(begin), !res.Captured && err == nil)
		if err != nil {
			return err
		}

		err = s.handle(r, i == 0, src.Index(), res)
		res.Close()
		if err != nil {
			return err
		}
	}

	r.sink.Poll()
	return nil
}

func (s *Session) handle(r *run, primary bool, index int, res source.StepResult) error {
	if res.Snapshot != nil {
		if err := r.exporter.Export(res.Snapshot); err != nil {
			return err
		}
		r.snapshots++
		s.cfg.Metrics.RecordSnapshot(r.ctx, index, skeleton.JointCount)

		if s.cfg.LogJoints {
			logJoints(res.Snapshot)
		}
	}

	if res.Color == nil {
		return nil
	}

	if primary && r.video != nil && !r.videoErr {
		if err := r.video.Write(res.Color); err != nil {
			r.videoErr = true
			log.Printf("Video output disabled for %s: %v", r.rc.BaseName(), err)
		}
	}

	if res.Snapshot != nil && !r.sinkErr {
		if err := r.sink.Show(index, res.Color, res.Snapshot); err != nil {
			r.sinkErr = true
			log.Printf("Overlay disabled for %s: %v", r.rc.BaseName(), err)
		}
	}
	return nil
}

func logJoints(snap *skeleton.Snapshot) {
	for _, j := range snap.Joints {
		e := j.Euler()
		log.Printf("device %d body %d %-13s pos (%.1f, %.1f, %.1f) rpy (%.3f, %.3f, %.3f)",
			snap.DeviceIndex, j.BodyID, j.Joint, j.Position.X, j.Position.Y, j.Position.Z,
			e.Roll, e.Pitch, e.Yaw)
	}
}

// finish releases the recording's resources and updates the catalog.
func (s *Session) finish(r *run, fault error) Outcome {
	rows, _ := r.exporter.Rows()
	closeErr := r.teardown()
	if closeErr != nil {
		log.Printf("Closing recording %s: %v", r.rc.BaseName(), closeErr)
	}

	out := Outcome{
		ID:         r.id,
		Recording:  r.rc,
		Err:        errors.Join(fault, closeErr),
		Ticks:      r.ticks,
		Snapshots:  r.snapshots,
		Rows:       rows,
		StartedAt:  r.started,
		FinishedAt: time.Now(),
	}
	if out.Err != nil {
		out.Error = out.Err.Error()
	}

	if s.cfg.Store != nil {
		rec := &store.Recording{
			ID:        r.id,
			Status:    store.StatusCompleted,
			Error:     out.Error,
			Ticks:     out.Ticks,
			Snapshots: out.Snapshots,
			Rows:      out.Rows,
		}
		if out.Err != nil {
			rec.Status = store.StatusFailed
		}
		if err := s.cfg.Store.Recordings().Finish(rec); err != nil {
			log.Printf("Failed to update catalog for %s: %v", r.rc.BaseName(), err)
		}
	}

	return out
}

// runHooks hands the finished recording to every subscribed hook.
func (s *Session) runHooks(r *run, out Outcome) {
	if s.cfg.Hooks == nil {
		return
	}

	status := string(store.StatusCompleted)
	if out.Err != nil {
		status = string(store.StatusFailed)
	}

	results := s.cfg.Hooks.Run(r.ctx, hooks.Request{
		Event: hooks.EventRecordingFinished,
		Recording: hooks.RecordingInfo{
			ID:        r.id,
			Subject:   r.rc.Subject(),
			Sequence:  r.rc.Sequence(),
			Trial:     r.rc.Trial(),
			VideoPath: r.rc.VideoPath(),
			EulerPath: r.rc.EulerPath(),
			QuatPath:  r.rc.QuatPath(),
			Status:    status,
			Error:     out.Error,
			Rows:      out.Rows,
		},
	})

	for _, res := range results {
		s.cfg.Metrics.RecordHookRun(r.ctx, res.Hook, res.Success())
		if s.cfg.Store == nil {
			continue
		}
		hr := &store.HookRun{
			RecordingID: r.id,
			Hook:        res.Hook,
			Success:     res.Success(),
			Error:       res.Message(),
		}
		if err := s.cfg.Store.HookRuns().Create(hr); err != nil {
			log.Printf("Failed to record hook run %s: %v", res.Hook, err)
		}
	}
}

func faultKind(err error) string {
	switch {
	case errors.Is(err, tracker.ErrTrackerFault):
		return "tracker"
	case errors.Is(err, device.ErrDeviceLost):
		return "device"
	case errors.Is(err, export.ErrFileWrite):
		return "file"
	default:
		return "other"
	}
}
