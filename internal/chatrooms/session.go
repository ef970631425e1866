package chatrooms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/lumen/internal/mirror"
	"github.com/five82/lumen/internal/poll"
	"github.com/five82/lumen/internal/prefs"
	"github.com/five82/lumen/internal/state"
)

// ServerVersion is the server version this client speaks.
const ServerVersion = "1.0"

// DefaultFetchInterval is the message fetch cadence while logged in.
const DefaultFetchInterval = 1500 * time.Millisecond

// PendingApprovalNotice is reported through LastError when a new account
// still needs approval by the room owner.
const PendingApprovalNotice = "account created, waiting for approval"

var (
	ErrNoServer        = errors.New("no chatrooms server set")
	ErrVersionMismatch = errors.New("chatrooms server version mismatch")
	ErrNoRoom          = errors.New("no room selected")
	ErrNotLoggedIn     = errors.New("not logged in")
	errSuperseded      = errors.New("superseded by a newer server or room change")
)

// Phase is the session's position in its lifecycle.
type Phase int

const (
	PhaseNoServer Phase = iota
	PhaseServerChecking
	PhaseServerReady
	PhaseRoomReady
	PhaseLoggedIn
	PhaseVersionMismatch
)

func (p Phase) String() string {
	switch p {
	case PhaseNoServer:
		return "no server"
	case PhaseServerChecking:
		return "checking server"
	case PhaseServerReady:
		return "server ready"
	case PhaseRoomReady:
		return "room ready"
	case PhaseLoggedIn:
		return "logged in"
	case PhaseVersionMismatch:
		return "version mismatch"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// SessionDefaults are the keys of the session file.
func SessionDefaults() prefs.Values {
	return prefs.Values{"ip": "", "room": "", "username": ""}
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	state.Snapshot
	Phase    Phase
	Address  string
	Room     string
	Username string
}

// Options configure a Session.
type Options struct {
	// Registry runs the fetch loop while logged in. Without it callers
	// drive FetchNew themselves.
	Registry *poll.Registry
	// Persist stores {ip, room, username}. Optional.
	Persist       *prefs.Store
	FetchInterval time.Duration
	// Version overrides ServerVersion.
	Version string
	// Dial builds the API for an address. Defaults to NewClient.
	Dial   func(address string) (API, error)
	Logger *slog.Logger
}

// Session drives one chatrooms connection: server, room, login, and the
// incremental message fetch.
type Session struct {
	registry *poll.Registry
	persist  *prefs.Store
	interval time.Duration
	version  string
	dial     func(string) (API, error)
	logger   *slog.Logger

	store    *state.Store
	changed  *mirror.Property[Snapshot]
	messages *mirror.Property[[]state.Message]

	mu       sync.Mutex
	api      API
	address  string
	room     string
	creds    Credentials
	phase    Phase
	gen      uint64
	fetchJob *poll.Handle

	fetching atomic.Bool
}

// NewSession returns a session in PhaseNoServer.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	interval := opts.FetchInterval
	if interval <= 0 {
		interval = DefaultFetchInterval
	}
	version := opts.Version
	if version == "" {
		version = ServerVersion
	}
	dial := opts.Dial
	if dial == nil {
		dial = func(address string) (API, error) { return NewClient(address) }
	}
	logger = logger.With("component", "chatrooms")
	return &Session{
		registry: opts.Registry,
		persist:  opts.Persist,
		interval: interval,
		version:  version,
		dial:     dial,
		logger:   logger,
		store:    &state.Store{},
		changed:  mirror.New(mirror.Config[Snapshot]{Name: "chatrooms session", Logger: logger}),
		messages: mirror.New(mirror.Config[[]state.Message]{Name: "chatrooms messages", Logger: logger}),
	}
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Phase:    s.phase,
		Address:  s.address,
		Room:     s.room,
		Username: s.creds.Username,
	}
	s.mu.Unlock()
	snap.Snapshot = s.store.Snapshot()
	return snap
}

// OnChange registers cb for every state change, including failures.
func (s *Session) OnChange(cb func(Snapshot)) (cancel func()) {
	return s.changed.OnChange(cb)
}

// OnMessages registers cb for each batch of newly appended messages.
func (s *Session) OnMessages(cb func([]state.Message)) (cancel func()) {
	return s.messages.OnChange(cb)
}

func (s *Session) notify() {
	s.changed.Publish(s.Snapshot())
}

// SetServerAddress points the session at a new server, resets the log and
// login, and checks that the server speaks the expected version.
func (s *Session) SetServerAddress(ctx context.Context, address string) error {
	return s.setServerAddress(ctx, address, true)
}

func (s *Session) setServerAddress(ctx context.Context, address string, persist bool) error {
	address = strings.TrimSpace(address)
	api, dialErr := s.dial(address)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	job := s.takeFetchJobLocked()
	s.api = api
	s.address = address
	s.room = ""
	s.phase = PhaseServerChecking
	if dialErr != nil {
		s.api = nil
		s.phase = PhaseNoServer
	}
	s.mu.Unlock()

	job.Dispose()
	s.store.Reset()
	if dialErr != nil {
		s.fail(dialErr)
		return dialErr
	}
	s.notify()

	info, err := api.Info(ctx)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return errSuperseded
	}
	switch {
	case err != nil:
		s.phase = PhaseNoServer
		s.mu.Unlock()
		s.fail(err)
		return err
	case strings.TrimSpace(info.Version) != s.version:
		s.phase = PhaseVersionMismatch
		s.mu.Unlock()
		mismatch := fmt.Errorf("%w: server speaks %q, client expects %q", ErrVersionMismatch, info.Version, s.version)
		s.store.RecordError(mismatch.Error(), false)
		s.logger.Warn("server version mismatch", "address", address, "server", info.Version, "client", s.version)
		s.notify()
		return mismatch
	}
	s.phase = PhaseServerReady
	s.mu.Unlock()

	s.logger.Info("server ready", "address", address, "version", info.Version)
	s.store.ClearError()
	if persist {
		s.save()
	}
	s.notify()
	return nil
}

// SetRoom joins an existing room. On failure the session stays where it was.
func (s *Session) SetRoom(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	if err := s.requireLocked(PhaseServerReady); err != nil {
		s.mu.Unlock()
		return err
	}
	api, gen := s.api, s.gen
	s.mu.Unlock()

	room, err := api.GetRoom(ctx, key)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return errSuperseded
	}
	if err != nil {
		s.mu.Unlock()
		s.fail(err)
		return err
	}
	s.gen++
	job := s.takeFetchJobLocked()
	s.room = room.Key
	s.phase = PhaseRoomReady
	s.mu.Unlock()

	job.Dispose()
	s.logger.Info("room ready", "room", room.Key, "name", room.Name)
	s.store.Reset()
	s.store.ClearError()
	s.save()
	s.notify()
	return nil
}

// CreateRoom asks the server for a new room and joins it.
func (s *Session) CreateRoom(ctx context.Context) (string, error) {
	s.mu.Lock()
	if err := s.requireLocked(PhaseServerReady); err != nil {
		s.mu.Unlock()
		return "", err
	}
	api := s.api
	s.mu.Unlock()

	room, err := api.CreateRoom(ctx)
	if err != nil {
		s.fail(err)
		return "", err
	}
	if err := s.SetRoom(ctx, room.Key); err != nil {
		return "", err
	}
	return room.Key, nil
}

// Login checks credentials and starts the fetch loop.
func (s *Session) Login(ctx context.Context, username, password string) error {
	creds := Credentials{Username: strings.TrimSpace(username), Password: password}
	api, room, gen, err := s.roomContext()
	if err != nil {
		return err
	}

	err = api.CheckUser(ctx, room, creds)
	if s.superseded(gen) {
		return errSuperseded
	}
	if err != nil {
		s.fail(err)
		return err
	}
	s.loggedIn(creds)
	return nil
}

// CreateUser registers a new user. When the room requires approval the
// session reports PendingApprovalNotice and stays logged out.
func (s *Session) CreateUser(ctx context.Context, username, password string) error {
	creds := Credentials{Username: strings.TrimSpace(username), Password: password}
	api, room, gen, err := s.roomContext()
	if err != nil {
		return err
	}

	status, err := api.CreateUser(ctx, room, creds)
	if s.superseded(gen) {
		return errSuperseded
	}
	if err != nil {
		s.fail(err)
		return err
	}
	if !status.Approved {
		s.mu.Lock()
		s.creds = Credentials{Username: creds.Username}
		s.mu.Unlock()
		s.store.SetLoggedIn(false)
		s.store.RecordError(PendingApprovalNotice, false)
		s.logger.Info("account pending approval", "username", creds.Username)
		s.save()
		s.notify()
		return nil
	}
	s.loggedIn(creds)
	return nil
}

// Logout stops the fetch loop and drops the credentials.
func (s *Session) Logout() {
	s.mu.Lock()
	job := s.takeFetchJobLocked()
	if s.phase == PhaseLoggedIn {
		s.phase = PhaseRoomReady
	}
	s.creds.Password = ""
	s.mu.Unlock()

	job.Dispose()
	s.store.SetLoggedIn(false)
	s.notify()
}

// Close stops the fetch loop.
func (s *Session) Close() {
	s.mu.Lock()
	job := s.takeFetchJobLocked()
	s.mu.Unlock()
	job.Dispose()
}

// FetchNew requests messages after the last known id and appends them. A
// call made while a previous fetch is still running returns immediately
// without contacting the server.
func (s *Session) FetchNew(ctx context.Context) (int, error) {
	if !s.fetching.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.fetching.Store(false)

	s.mu.Lock()
	if s.phase != PhaseLoggedIn {
		s.mu.Unlock()
		return 0, ErrNotLoggedIn
	}
	api, room, creds, gen := s.api, s.room, s.creds, s.gen
	s.mu.Unlock()

	msgs, err := api.LastMessages(ctx, room, creds, s.store.LastID())
	if s.superseded(gen) {
		return 0, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		s.fail(err)
		return 0, err
	}
	s.store.MarkReachable()

	added := s.store.Append(msgs)
	if len(added) == 0 {
		return 0, nil
	}
	s.messages.Publish(added)
	s.notify()
	return len(added), nil
}

// SendMessage posts text and appends the server's echo to the log.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("message is empty")
	}
	s.mu.Lock()
	if s.phase != PhaseLoggedIn {
		s.mu.Unlock()
		return ErrNotLoggedIn
	}
	api, room, creds, gen := s.api, s.room, s.creds, s.gen
	s.mu.Unlock()

	echo, err := api.SendMessage(ctx, room, creds, text)
	if s.superseded(gen) {
		return errSuperseded
	}
	if err != nil {
		s.fail(err)
		return err
	}
	msg, added := s.store.AppendEchoed(echo)
	if !added {
		s.logger.Debug("echo already fetched", "id", msg.ID)
		return nil
	}
	s.messages.Publish([]state.Message{msg})
	s.notify()
	return nil
}

// Restore replays the saved server address and room. The session file is
// rewritten only once the saved room has been joined again.
func (s *Session) Restore(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	saved := s.persist.Config()
	address, _ := saved["ip"].(string)
	room, _ := saved["room"].(string)
	username, _ := saved["username"].(string)

	s.mu.Lock()
	s.creds.Username = username
	s.mu.Unlock()

	if strings.TrimSpace(address) == "" {
		return nil
	}
	// The saved file is left alone until the room step finishes, so a
	// room that fails to rejoin is still there next start.
	if err := s.setServerAddress(ctx, address, false); err != nil {
		return fmt.Errorf("restore server: %w", err)
	}
	if strings.TrimSpace(room) == "" {
		return nil
	}
	if err := s.SetRoom(ctx, room); err != nil {
		return fmt.Errorf("restore room: %w", err)
	}
	return nil
}

func (s *Session) requireLocked(min Phase) error {
	switch {
	case s.phase == PhaseVersionMismatch:
		return ErrVersionMismatch
	case s.phase < PhaseServerReady:
		return ErrNoServer
	case s.phase < min:
		return ErrNoRoom
	}
	return nil
}

func (s *Session) roomContext() (API, string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(PhaseRoomReady); err != nil {
		return nil, "", 0, err
	}
	return s.api, s.room, s.gen, nil
}

func (s *Session) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

func (s *Session) loggedIn(creds Credentials) {
	s.mu.Lock()
	old := s.takeFetchJobLocked()
	s.creds = creds
	s.phase = PhaseLoggedIn
	s.mu.Unlock()
	old.Dispose()

	s.store.SetLoggedIn(true)
	s.store.ClearError()
	s.logger.Info("logged in", "username", creds.Username)
	s.save()
	s.startFetch()
	s.notify()
}

func (s *Session) startFetch() {
	if s.registry == nil {
		return
	}
	job, err := s.registry.Register("chatrooms.fetch", s.interval, func(ctx context.Context) error {
		_, err := s.FetchNew(ctx)
		if errors.Is(err, ErrNotLoggedIn) {
			return nil
		}
		return err
	})
	if err != nil {
		s.logger.Error("start fetch loop", "error", err)
		return
	}

	s.mu.Lock()
	if s.phase != PhaseLoggedIn || s.fetchJob != nil {
		s.mu.Unlock()
		job.Dispose()
		return
	}
	s.fetchJob = job
	s.mu.Unlock()
}

// takeFetchJobLocked detaches the fetch job. The caller disposes it after
// releasing s.mu, since disposing waits for a running fetch.
func (s *Session) takeFetchJobLocked() *poll.Handle {
	job := s.fetchJob
	s.fetchJob = nil
	return job
}

func (s *Session) fail(err error) {
	var perr *ProtocolError
	transport := !errors.As(err, &perr)
	s.store.RecordError(err.Error(), transport)
	s.logger.Warn("chatrooms call failed", "error", err)
	s.notify()
}

func (s *Session) save() {
	if s.persist == nil {
		return
	}
	s.mu.Lock()
	values := prefs.Values{"ip": s.address, "room": s.room, "username": s.creds.Username}
	s.mu.Unlock()
	if err := s.persist.Save(values); err != nil {
		s.logger.Warn("save session file", "error", err)
	}
}
