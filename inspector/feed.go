package inspector

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/ingwaz/scene"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	MsgTypeSnapshot    = "snapshot"
	MsgTypeFrameReport = "frame_report"
	MsgTypeHeartbeat   = "heartbeat"
)

// Msg is a message of the frame report feed.
type Msg struct {
	Type      string             `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Report    *scene.FrameReport `json:"report,omitempty"`
	Snapshot  *Snapshot          `json:"snapshot,omitempty"`
}

// HandleFeed returns a WebSocket handler that streams the reports published on
// hub. A heartbeat is sent when no report was sent for heartbeatInterval.
func HandleFeed(ctx context.Context, hub *Hub, heartbeatInterval time.Duration) websocket.Handler {
	return func(conn *websocket.Conn) {
		defer conn.Close()

		f := feed{
			Conn:              conn,
			Hub:               hub,
			HeartbeatInterval: heartbeatInterval,
		}
		f.Handle(ctx)
	}
}

type feed struct {
	Conn              *websocket.Conn
	Hub               *Hub
	HeartbeatInterval time.Duration

	disconnectChan chan error
}

func (f *feed) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	remoteAddr := ""
	if req := f.Conn.Request(); req != nil {
		remoteAddr = req.RemoteAddr
	}

	id, reports := f.Hub.Subscribe()
	defer f.Hub.Unsubscribe(id)

	logs.WithTag("subscriber_id", id).
		WithTag("remote_addr", remoteAddr).
		Info("inspector feed client connected")

	f.disconnectChan = make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.startReceiving(ctx)
	}()

	if snapshot, ok := f.Hub.Latest(); ok {
		if err := f.send(Msg{Type: MsgTypeSnapshot, Snapshot: &snapshot}); err != nil {
			f.disconnect(err)
		}
	}

	heartbeatInterval := f.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = time.Second * 5
	}
	heartbeat := time.NewTimer(heartbeatInterval)
	defer heartbeat.Stop()

	var err error
	for err == nil {
		select {
		case <-ctx.Done():
			err = ctx.Err()

		case <-heartbeat.C:
			if sendErr := f.send(Msg{Type: MsgTypeHeartbeat}); sendErr != nil {
				err = sendErr
			}
			heartbeat.Reset(heartbeatInterval)

		case report := <-reports:
			if sendErr := f.send(Msg{Type: MsgTypeFrameReport, Report: &report}); sendErr != nil {
				err = sendErr
			}
			heartbeat.Stop()
			heartbeat.Reset(heartbeatInterval)

		case err = <-f.disconnectChan:
		}
	}

	f.Conn.Close()
	cancel()
	wg.Wait()

	logs.WithTag("subscriber_id", id).
		WithTag("remote_addr", remoteAddr).
		WithTag("reason", err.Error()).
		Info("inspector feed client disconnected")
}

func (f *feed) send(msg Msg) error {
	msg.Timestamp = time.Now()

	b, err := json.Marshal(msg)
	if err != nil {
		return errors.New("encoding feed message failed").
			WithTag("type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(f.Conn, string(b)); err != nil {
		return errors.New("sending feed message failed").
			WithTag("type", msg.Type).
			Wrap(err)
	}

	instrumentSentMessage(msg.Type)
	return nil
}

// startReceiving drains client messages so that a closed connection is
// noticed without waiting for the next send.
func (f *feed) startReceiving(ctx context.Context) {
	for ctx.Err() == nil {
		var data []byte
		if err := websocket.Message.Receive(f.Conn, &data); err != nil {
			f.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}
	}
}

func (f *feed) disconnect(err error) {
	select {
	case f.disconnectChan <- err:
	default:
	}
}
