// Package launcher runs a fixed set of long-lived apps (the HTTP server, the
// RabbitMQ event consumer, the gRPC health server) side by side and waits
// for all of them, modeled on the teacher's common.Launcher.
package launcher

import (
	"sync"

	"github.com/banktrail/ingestor/internal/platform/mlog"
)

// App is a long-running process component. Run blocks until the app stops
// (cleanly or due to error) or the process is asked to shut down.
type App interface {
	Run(l *Launcher) error
}

// Launcher owns a set of named Apps and runs them concurrently.
type Launcher struct {
	Logger mlog.Logger

	mu   sync.Mutex
	apps map[string]App
	wg   sync.WaitGroup
}

// New creates an empty Launcher.
func New(logger mlog.Logger) *Launcher {
	return &Launcher{
		Logger: logger,
		apps:   make(map[string]App),
	}
}

// Add registers an app under a name for later Run.
func (l *Launcher) Add(name string, a App) *Launcher {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.apps[name] = a

	return l
}

// Run starts every registered app in its own goroutine and blocks until all
// of them return.
func (l *Launcher) Run() {
	l.mu.Lock()
	apps := make(map[string]App, len(l.apps))
	for k, v := range l.apps {
		apps[k] = v
	}
	l.mu.Unlock()

	l.wg.Add(len(apps))

	l.Logger.Infof("launcher: starting %d app(s)", len(apps))

	for name, app := range apps {
		go func(name string, app App) {
			defer l.wg.Done()

			l.Logger.Infof("launcher: app %q starting", name)

			if err := app.Run(l); err != nil {
				l.Logger.Errorf("launcher: app %q stopped with error: %v", name, err)
				return
			}

			l.Logger.Infof("launcher: app %q finished", name)
		}(name, app)
	}

	l.wg.Wait()

	l.Logger.Info("launcher: all apps terminated")
}
