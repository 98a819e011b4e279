package dimmer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryanchriswhite/dimsway/internal/config"
	"github.com/bryanchriswhite/dimsway/internal/ipc"
	"github.com/stretchr/testify/require"
)

// fakeCommander records every command the dimmer issues.
type fakeCommander struct {
	calls   []string
	seatID  int64
	seatErr error
	subErr  error
	events  [][]byte
}

func (f *fakeCommander) InitTiling(opacity float64) error {
	f.calls = append(f.calls, ipc.TilingOpacityCommand(opacity))
	return nil
}

func (f *fakeCommander) GetSeats() (int64, error) {
	f.calls = append(f.calls, "get_seats")
	return f.seatID, f.seatErr
}

func (f *fakeCommander) SubscribeWindow() error {
	f.calls = append(f.calls, "subscribe")
	return f.subErr
}

func (f *fakeCommander) SetOpacity(id int64, opacity float64) error {
	f.calls = append(f.calls, ipc.SetOpacityCommand(id, opacity))
	return nil
}

func (f *fakeCommander) NextEvent() ([]byte, error) {
	if len(f.events) == 0 {
		return nil, io.EOF
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, nil
}

func defaultLevels() *config.Levels {
	return config.NewLevels(config.Snapshot{Focused: 1, Unfocused: 0.95, Step: 0.05})
}

func focusEvent(id int64) []byte {
	return []byte(fmt.Sprintf(`{"change":"focus","container":{"id":%d}}`, id))
}

func TestStartSeedsTrackingWithoutDimming(t *testing.T) {
	cmd := &fakeCommander{seatID: 7}
	d := New(cmd, defaultLevels())

	require.False(t, d.State().Tracking)
	require.NoError(t, d.Start())

	require.Equal(t, []string{
		"for_window [tiling] opacity 0.95",
		"get_seats",
		"subscribe",
	}, cmd.calls)
	st := d.State()
	require.True(t, st.Tracking)
	require.Equal(t, int64(7), st.FocusedID)
}

func TestStartSeatFailureStaysUninitialized(t *testing.T) {
	cmd := &fakeCommander{seatErr: errors.New("seats reply is empty")}
	d := New(cmd, defaultLevels())

	require.NoError(t, d.Start())
	require.False(t, d.State().Tracking)

	cmd.calls = nil
	d.Handle(focusEvent(42))
	require.Equal(t, []string{`[con_id="42"] opacity set 1.00`}, cmd.calls)
}

func TestStartSubscribeFailureIsReturned(t *testing.T) {
	cmd := &fakeCommander{subErr: ipc.ErrConnectFailed}
	err := New(cmd, defaultLevels()).Start()
	require.ErrorIs(t, err, ipc.ErrConnectFailed)
}

func TestFocusEventDimsPreviousThenBrightensNew(t *testing.T) {
	cmd := &fakeCommander{seatID: 10}
	d := New(cmd, defaultLevels())
	require.NoError(t, d.Start())
	cmd.calls = nil

	d.Handle(focusEvent(42))

	require.Equal(t, []string{
		`[con_id="10"] opacity set 0.95`,
		`[con_id="42"] opacity set 1.00`,
	}, cmd.calls)
	require.Equal(t, int64(42), d.State().FocusedID)
}

func TestRejectedEventsLeaveStateUntouched(t *testing.T) {
	cmd := &fakeCommander{seatID: 10}
	d := New(cmd, defaultLevels())
	require.NoError(t, d.Start())
	cmd.calls = nil

	for _, raw := range []string{
		`not json`,
		`{"container":{"id":3}}`,
		`{"change":"close","container":{"id":3}}`,
		`{"change":"new","container":{"id":3}}`,
		`{"change":"title","container":{"id":3}}`,
		`{"change":"focus"}`,
		`[{"success":false,"error":"boom"}]`,
	} {
		d.Handle([]byte(raw))
	}

	require.Empty(t, cmd.calls)
	require.Equal(t, int64(10), d.State().FocusedID)
}

func TestNegativeFocusIsNotDimmed(t *testing.T) {
	cmd := &fakeCommander{seatID: -1}
	d := New(cmd, defaultLevels())
	require.NoError(t, d.Start())
	cmd.calls = nil

	d.Handle(focusEvent(5))
	require.Equal(t, []string{`[con_id="5"] opacity set 1.00`}, cmd.calls)
}

func TestApplyReadsLevelsPerEvent(t *testing.T) {
	cmd := &fakeCommander{seatID: 1}
	levels := defaultLevels()
	d := New(cmd, levels)
	require.NoError(t, d.Start())
	cmd.calls = nil

	levels.Decrease()
	d.Handle(focusEvent(2))

	require.Equal(t, []string{
		`[con_id="1"] opacity set 0.90`,
		`[con_id="2"] opacity set 1.00`,
	}, cmd.calls)
}

func TestRunProcessesEventsInOrder(t *testing.T) {
	cmd := &fakeCommander{seatID: 1, events: [][]byte{
		focusEvent(2),
		[]byte(`{"change":"title","container":{"id":2}}`),
		focusEvent(3),
	}}
	d := New(cmd, defaultLevels())
	require.NoError(t, d.Start())
	cmd.calls = nil

	err := d.Run(context.Background())
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, []string{
		`[con_id="1"] opacity set 0.95`,
		`[con_id="2"] opacity set 1.00`,
		`[con_id="2"] opacity set 0.95`,
		`[con_id="3"] opacity set 1.00`,
	}, cmd.calls)
}

func TestRunStopsCleanlyAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(&fakeCommander{}, defaultLevels()).Run(ctx)
	require.NoError(t, err)
}

func TestSubscribersReceiveTransitions(t *testing.T) {
	cmd := &fakeCommander{seatID: 4}
	d := New(cmd, defaultLevels())
	require.NoError(t, d.Start())

	ch := d.Subscribe()
	d.Handle([]byte(`{"change":"focus","container":{"id":8,"app_id":"foot"}}`))

	select {
	case tr := <-ch:
		require.Equal(t, int64(4), tr.From)
		require.True(t, tr.Dimmed)
		require.Equal(t, ipc.WindowChange{Change: "focus", ContainerID: 8, AppID: "foot"}, tr.To)
		require.Equal(t, 0.95, tr.Unfocused)
	case <-time.After(time.Second):
		t.Fatal("no transition delivered")
	}

	d.Unsubscribe(ch)
	_, open := <-ch
	require.False(t, open)
}

// TestEndToEndOverUnixSocket drives the dimmer against a fake compositor.
func TestEndToEndOverUnixSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "sway.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	commands := make(chan string, 16)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- fakeCompositor(listener, commands)
	}()

	tr := ipc.NewTransport(ipc.TransportConfig{SocketPath: socketPath})
	d := New(ipc.NewClient(tr), defaultLevels())
	require.NoError(t, d.Start())

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(ctx) }()

	var got []string
	for len(got) < 3 {
		select {
		case c := <-commands:
			got = append(got, c)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	require.Equal(t, []string{
		"for_window [tiling] opacity 0.95",
		`[con_id="7"] opacity set 0.95`,
		`[con_id="42"] opacity set 1.00`,
	}, got)

	cancel()
	require.NoError(t, tr.Close())
	require.NoError(t, <-runErr)
	require.NoError(t, <-serverErr)
	require.Equal(t, int64(42), d.State().FocusedID)
}

// fakeCompositor answers the startup handshake, emits one focus event, and
// acknowledges run_command requests, reporting each command text.
func fakeCompositor(listener net.Listener, commands chan<- string) error {
	conn, err := listener.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()

	reply := func(t ipc.MessageType, body string) error {
		env, err := ipc.Encode(t, []byte(body), 0)
		if err != nil {
			return err
		}
		_, err = conn.Write(env)
		return err
	}

	for {
		hdr, err := ipc.ReadHeader(conn)
		if err != nil {
			return nil
		}
		body := make([]byte, hdr.Length)
		if _, err := io.ReadFull(conn, body); err != nil {
			return err
		}

		switch hdr.Type {
		case ipc.RunCommand:
			commands <- string(body)
			if err := reply(ipc.RunCommand, `[{"success":true}]`); err != nil {
				return err
			}
		case ipc.GetSeats:
			if err := reply(ipc.GetSeats, `[7]`); err != nil {
				return err
			}
		case ipc.Subscribe:
			if err := reply(ipc.Subscribe, `{"success":true}`); err != nil {
				return err
			}
			if err := reply(ipc.Subscribe, `{"change":"focus","container":{"id":42}}`); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected message %s", hdr.Type)
		}
	}
}
