// Package notify sends desktop notifications over the session bus.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest  = "org.freedesktop.Notifications"
	notifyPath  = "/org/freedesktop/Notifications"
	notifyCall  = notifyDest + ".Notify"
	defaultName = "lumen"
)

// Urgency levels of the freedesktop urgency hint.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// Notification is one desktop notification.
type Notification struct {
	Summary string
	Body    string
	Icon    string
	Urgency byte
	// Timeout in milliseconds; -1 lets the server decide.
	Timeout int32
}

// DBus delivers notifications to org.freedesktop.Notifications. The session
// bus connection is opened on first use.
type DBus struct {
	AppName string

	mu   sync.Mutex
	conn *dbus.Conn
}

// Send delivers n and returns the server-assigned id.
func (d *DBus) Send(ctx context.Context, n Notification) (uint32, error) {
	conn, err := d.connect()
	if err != nil {
		return 0, err
	}
	app := d.AppName
	if app == "" {
		app = defaultName
	}
	hints := map[string]dbus.Variant{"urgency": dbus.MakeVariant(n.Urgency)}

	var id uint32
	obj := conn.Object(notifyDest, notifyPath)
	call := obj.CallWithContext(ctx, notifyCall, 0, app, uint32(0), n.Icon, n.Summary, n.Body, []string{}, hints, n.Timeout)
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notify %q: %w", n.Summary, err)
	}
	return id, nil
}

// Close releases the bus connection.
func (d *DBus) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *DBus) connect() (*dbus.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil && d.conn.Connected() {
		return d.conn, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	d.conn = conn
	return conn, nil
}
