// Package tray provides a system tray control surface for the recorder.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray menu with mutually exclusive
// Start and Stop items.
type Tray struct {
	onStart    func()
	onStop     func()
	onOpenPage func()
	onQuit     func()
	status     string
	canStart   bool
	canStop    bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuStart  *systray.MenuItem
	menuStop   *systray.MenuItem
}

// New creates a new Tray in the idle state.
func New() *Tray {
	return &Tray{
		status:   "Idle",
		canStart: true,
	}
}

// OnStart sets the callback called when Start Recording is clicked.
func (t *Tray) OnStart(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnStop sets the callback called when Stop Recording is clicked.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnOpenPage sets the callback called when the control page item is clicked.
func (t *Tray) OnOpenPage(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenPage = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("mocaprec")
	systray.SetTooltip("Motion capture recorder")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("", "Recorder state")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuStart = systray.AddMenuItem("Start Recording", "Start a new trial")
	t.menuStop = systray.AddMenuItem("Stop Recording", "Stop the running trial")
	systray.AddSeparator()
	t.applyLocked()
	t.mu.Unlock()

	menuPage := systray.AddMenuItem("Open Control Page...", "Open the control page in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit mocaprec")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuStart.ClickedCh:
				t.call(func() func() { return t.onStart })
			case <-t.menuStop.ClickedCh:
				t.call(func() func() { return t.onStop })
			case <-menuPage.ClickedCh:
				t.call(func() func() { return t.onOpenPage })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// call runs the callback picked under the read lock, outside the lock.
func (t *Tray) call(pick func() func()) {
	t.mu.RLock()
	callback := pick()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetState updates the status line and which of Start and Stop is enabled.
func (t *Tray) SetState(status string, canStart, canStop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = status
	t.canStart = canStart
	t.canStop = canStop
	t.applyLocked()
}

// applyLocked pushes the stored state to the menu items, once they exist.
func (t *Tray) applyLocked() {
	if t.menuStatus == nil {
		return
	}

	t.menuStatus.SetTitle("Status: " + t.status)
	setEnabled(t.menuStart, t.canStart)
	setEnabled(t.menuStop, t.canStop)
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

// Enablement returns the last state set with SetState.
func (t *Tray) Enablement() (canStart, canStop bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.canStart, t.canStop
}

// Status returns the status line text.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
