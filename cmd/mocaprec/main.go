package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ayusman/mocaprec/internal/hooks"
	"github.com/ayusman/mocaprec/internal/observe"
	"github.com/ayusman/mocaprec/internal/overlay"
	"github.com/ayusman/mocaprec/internal/server"
	"github.com/ayusman/mocaprec/internal/session"
	"github.com/ayusman/mocaprec/internal/store"
	"github.com/ayusman/mocaprec/internal/tray"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	addr := flag.String("addr", "", "HTTP listen address (overrides the configuration)")
	simulate := flag.Bool("simulate", false, "record generated motion instead of real devices")
	noTray := flag.Bool("no-tray", false, "run without the system tray menu")
	flag.Parse()

	log.Printf("mocaprec %s - dual depth camera recorder", version)

	if err := run(*configPath, *addr, *simulate, *noTray); err != nil {
		log.Fatalf("mocaprec: %v", err)
	}
}

func run(configPath, addr string, simulate, noTray bool) error {
	dataDir, err := defaultDataDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	cfg, err := loadConfig(configPath, dataDir)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if simulate {
		cfg.Simulate = true
	}
	if cfg.Simulate {
		log.Println("Simulation mode: devices and trackers are generated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			log.Printf("Metrics shutdown: %v", err)
		}
	}()

	st, err := store.New(cfg.Recording.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if n, err := st.Recordings().AbandonRunning(); err != nil {
		log.Printf("Failed to clean up interrupted recordings: %v", err)
	} else if n > 0 {
		log.Printf("Marked %d interrupted recordings as failed", n)
	}

	hookMgr := hooks.NewManager(cfg.Hooks.Dir)
	if err := hookMgr.Discover(); err != nil {
		log.Printf("Failed to discover hooks: %v", err)
	}
	log.Printf("Loaded %d hooks from %s", len(hookMgr.List()), hookMgr.Dir())

	hub := overlay.NewHub(cfg.Overlay.PreviewEvery)

	var t *tray.Tray
	if !noTray {
		t = tray.New()
	}

	sc, err := sessionConfig(cfg, collaborators{
		store:   st,
		hooks:   hooks.NewRunner(hookMgr, hooks.NewExecutor(cfg.Hooks.Timeout)),
		hub:     hub,
		metrics: observe.DefaultMetrics(),
	})
	if err != nil {
		return err
	}

	var sess *session.Session
	sc.OnStateChange = func(state session.State) {
		if t == nil {
			return
		}
		canStart, canStop := sess.Enablement()
		status := state.String()
		if rc, ok := sess.Current(); ok {
			status += " " + rc.BaseName()
		}
		t.SetState(status, canStart, canStop)
	}
	sess = session.New(sc)

	srv := server.New(server.Config{
		StaticDir: cfg.Server.StaticDir,
		Store:     st,
		Session:   sess,
		Hub:       hub,
		Metrics:   promhttp.Handler(),
	})
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ln, err := net.Listen("tcp", cfg.Server.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
		}
		log.Printf("Control page on http://%s", ln.Addr())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		sess.Stop()
		sess.Wait()

		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if t != nil {
			t.Quit()
		}
		if err := httpSrv.Shutdown(sctx); err != nil {
			// Preview streams stay open until their clients leave.
			log.Printf("HTTP shutdown: %v", err)
			return httpSrv.Close()
		}
		return nil
	})

	if t != nil {
		wireTray(ctx, t, sess, st, cfg.Recording.Subject, cfg.Recording.Sequence, cfg.Server.Addr, stop)
		t.Run()
		stop()
	}

	err = g.Wait()
	log.Println("mocaprec stopped")
	return err
}

// wireTray connects the tray menu to the session. Start records the next
// free trial of the last used subject and sequence.
func wireTray(ctx context.Context, t *tray.Tray, sess *session.Session, st *store.Store, subject string, sequence int, addr string, quit func()) {
	t.OnStart(func() {
		subj, seq := lastIdentifiers(st, subject, sequence)
		trial, err := st.Recordings().NextTrial(subj, seq)
		if err != nil {
			log.Printf("Failed to pick trial number: %v", err)
			return
		}
		if _, err := sess.Start(ctx, subj, seq, trial); err != nil {
			log.Printf("Start from tray failed: %v", err)
		}
	})
	t.OnStop(sess.Stop)
	t.OnOpenPage(func() {
		if err := openBrowser("http://" + addr); err != nil {
			log.Printf("Failed to open browser: %v", err)
		}
	})
	t.OnQuit(quit)
}

// lastIdentifiers returns the subject and sequence of the last recording,
// falling back to the configured ones.
func lastIdentifiers(st *store.Store, subject string, sequence int) (string, int) {
	settings := st.Settings()
	if v, err := settings.Get(store.SettingLastSubject); err == nil && v != "" {
		subject = v
	}
	if v, err := settings.Get(store.SettingLastSequence); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			sequence = n
		}
	}
	return subject, sequence
}
